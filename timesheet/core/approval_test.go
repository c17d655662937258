package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/utils"
)

func TestFetchPendingScopesByStage(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r-pending", "2024-03-01", model.StatusPending, t0, "10")
	seedRecord(s, "r-approved", "2024-03-02", model.StatusApproved, t0.Add(time.Hour), "5")
	seedRecord(s, "r-done", "2024-03-03", model.StatusSectionChiefApproved, t0.Add(2*time.Hour), "5")
	other := seedRecord(s, "r-other", "2024-03-04", model.StatusPending, t0.Add(3*time.Hour), "1")
	other.SupervisorID = utils.Ptr("someone-else")
	s.SeedRecord(other)

	svc := newApprovalService(s)
	ctx := context.Background()

	groups, err := svc.FetchPending(ctx, supervisor)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"r-pending"}, groups[0].RecordIDs)
	require.NotNil(t, groups[0].AllItems[0].Process)
	assert.Equal(t, "Cut", groups[0].AllItems[0].Process.ProcessName)

	groups, err = svc.FetchPending(ctx, chief)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"r-approved"}, groups[0].RecordIDs)

	groups, err = svc.FetchPending(ctx, root)
	require.NoError(t, err)
	assert.Len(t, groups, 3)

	_, err = svc.FetchPending(ctx, employee)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestFetchPendingDropsUnresolvableItems(t *testing.T) {
	s := newFixture(t)
	rec := seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "10", "4")
	rec.Items[1].ProcessID = "missing-process"
	s.SeedRecord(rec)
	orphan := seedRecord(s, "r2", "2024-03-02", model.StatusPending, t0.Add(time.Hour), "3")
	orphan.Items[0].ProcessID = "missing-process"
	s.SeedRecord(orphan)

	groups, err := newApprovalService(s).FetchPending(context.Background(), supervisor)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "r1", groups[0].RecordIDs[0])
	assert.Len(t, groups[0].AllItems, 1)
}

func TestFetchPendingRetriesTransientErrors(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "10")
	calls := 0
	s.FailWhen = func(op string, arg interface{}) error {
		if op == "Records.List" {
			calls++
			if calls == 1 {
				return errors.New("dial tcp 10.0.0.1:3306: i/o timeout")
			}
		}
		return nil
	}

	groups, err := newApprovalService(s).FetchPending(context.Background(), supervisor)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Equal(t, 2, calls)
}

func TestApproveSingle(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "10")
	svc := newApprovalService(s)
	ctx := context.Background()

	rec, err := svc.ApproveSingle(ctx, supervisor, "r1", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, rec.Status)

	stored, _ := s.Record("r1")
	assert.Equal(t, model.StatusApproved, stored.Status)
	history := s.Approvals()
	require.Len(t, history, 1)
	assert.Equal(t, model.ApproverSupervisor, history[0].ApproverType)
	assert.Equal(t, supervisorID, history[0].ApproverID)
	assert.Equal(t, model.ActionApproved, history[0].Action)

	rec, err = svc.ApproveSingle(ctx, chief, "r1", "ok")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSectionChiefApproved, rec.Status)
	assert.Equal(t, model.ApproverSectionChief, s.Approvals()[1].ApproverType)

	_, err = svc.ApproveSingle(ctx, root, "r1", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, s.Approvals(), 2)
}

func TestApproveSingleRequiresAssignedApprover(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "10")
	svc := newApprovalService(s)
	ctx := context.Background()

	stranger := Actor{UserID: "user-other", Role: model.RoleSupervisor, CompanyID: companyID}
	_, err := svc.ApproveSingle(ctx, stranger, "r1", "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ApproveSingle(ctx, chief, "r1", "")
	assert.ErrorIs(t, err, ErrForbidden)

	rec, err := svc.ApproveSingle(ctx, root, "r1", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, rec.Status)
	assert.Equal(t, model.ApproverSupervisor, s.Approvals()[0].ApproverType)
}

func TestApproveSingleRollsBackWhenHistoryFails(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "10")
	s.Fail["History.AppendApproval"] = errors.New("disk full")

	_, err := newApprovalService(s).ApproveSingle(context.Background(), supervisor, "r1", "")
	assert.Error(t, err)

	stored, _ := s.Record("r1")
	assert.Equal(t, model.StatusPending, stored.Status)
}

func TestApproveSingleRecordDeletedConcurrently(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "10")
	s.Fail["Records.UpdateStatus"] = ErrNotFound

	_, err := newApprovalService(s).ApproveSingle(context.Background(), supervisor, "r1", "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, s.Approvals())
}

func TestApproveGrouped(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "10")
	seedRecord(s, "r2", "2024-03-01", model.StatusPending, t0.Add(time.Minute), "2")
	seedRecord(s, "r3", "2024-03-02", model.StatusPending, t0, "1")

	res, err := newApprovalService(s).ApproveGrouped(context.Background(), supervisor, GroupKey(employeeID, "2024-03-01"), "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 0, res.Failed)

	for id, want := range map[string]model.Status{"r1": model.StatusApproved, "r2": model.StatusApproved, "r3": model.StatusPending} {
		rec, _ := s.Record(id)
		assert.Equal(t, want, rec.Status, id)
	}
}

func TestApproveGroupedUnknownGroup(t *testing.T) {
	s := newFixture(t)
	_, err := newApprovalService(s).ApproveGrouped(context.Background(), supervisor, GroupKey(employeeID, "2024-01-01"), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApproveBatchPartialFailure(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "10")
	seedRecord(s, "r2", "2024-03-02", model.StatusPending, t0, "3")
	s.FailWhen = func(op string, arg interface{}) error {
		if op == "Records.UpdateStatus" && arg == "r2" {
			return errors.New("lock wait timeout")
		}
		return nil
	}

	res, err := newApprovalService(s).ApproveBatch(context.Background(), supervisor, []string{
		GroupKey(employeeID, "2024-03-01"),
		GroupKey(employeeID, "2024-03-02"),
		"not-a-key",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "r2", res.Errors[0].RecordID)
	assert.Equal(t, "not-a-key", res.Errors[1].GroupKey)

	r1, _ := s.Record("r1")
	r2, _ := s.Record("r2")
	assert.Equal(t, model.StatusApproved, r1.Status)
	assert.Equal(t, model.StatusPending, r2.Status)
}

func TestApproveBatchRequiresKeys(t *testing.T) {
	_, err := newApprovalService(newFixture(t)).ApproveBatch(context.Background(), supervisor, nil, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReject(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusApproved, t0, "10")
	svc := newApprovalService(s)

	_, err := svc.Reject(context.Background(), supervisor, "r1", "wrong stage")
	assert.ErrorIs(t, err, ErrForbidden)

	rec, err := svc.Reject(context.Background(), chief, "r1", "quantities do not match")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rec.Status)
	h := s.Approvals()
	require.Len(t, h, 1)
	assert.Equal(t, model.ActionRejected, h[0].Action)
	assert.Equal(t, "quantities do not match", h[0].Comment)

	_, err = svc.ApproveSingle(context.Background(), chief, "r1", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEditQuantity(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "10")
	svc := newApprovalService(s)
	ctx := context.Background()

	_, err := svc.EditQuantity(ctx, supervisor, "r1-item-a", dec("1.5"))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.EditQuantity(ctx, supervisor, "r1-item-a", dec("0"))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.EditQuantity(ctx, employee, "r1-item-a", dec("12"))
	assert.ErrorIs(t, err, ErrForbidden)

	item, err := svc.EditQuantity(ctx, supervisor, "r1-item-a", dec("12"))
	require.NoError(t, err)
	assert.True(t, dec("18").Equal(item.Amount))

	stored, _ := s.Item("r1-item-a")
	assert.True(t, dec("12").Equal(stored.Quantity))
	assert.True(t, dec("18").Equal(stored.Amount))

	mods := s.Modifications()
	require.Len(t, mods, 1)
	assert.True(t, dec("10").Equal(mods[0].OldQuantity))
	assert.True(t, dec("12").Equal(mods[0].NewQuantity))
	assert.True(t, dec("15").Equal(mods[0].OldAmount))
	assert.Equal(t, supervisorID, mods[0].ActorID)
}

func TestEditQuantityNonProductionUnpriced(t *testing.T) {
	s := newFixture(t)
	rec := seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "2")
	rec.Items[0].ProcessID = processFree
	rec.Items[0].UnitPrice = decimal.Zero
	rec.Items[0].Amount = decimal.Zero
	s.SeedRecord(rec)

	item, err := newApprovalService(s).EditQuantity(context.Background(), supervisor, "r1-item-a", dec("0"))
	require.NoError(t, err)
	assert.True(t, item.Amount.IsZero())
	assert.True(t, item.UnitPrice.IsZero())
}

func TestEditQuantityKeepsEnteredPrice(t *testing.T) {
	tests := []struct {
		name  string
		price decimal.NullDecimal
	}{
		{name: "process repriced", price: decimal.NewNullDecimal(dec("2.00"))},
		{name: "process unpriced", price: decimal.NullDecimal{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFixture(t)
			seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "10")
			proc, _ := s.Process(processPriced)
			proc.UnitPrice = tt.price
			s.SeedProcess(proc)

			item, err := newApprovalService(s).EditQuantity(context.Background(), supervisor, "r1-item-a", dec("12"))
			require.NoError(t, err)
			assert.True(t, dec("1.50").Equal(item.UnitPrice))
			assert.True(t, dec("18").Equal(item.Amount))

			stored, _ := s.Item("r1-item-a")
			assert.True(t, dec("1.50").Equal(stored.UnitPrice))
			assert.True(t, dec("18").Equal(stored.Amount))
		})
	}
}

func TestEditQuantityAfterFinalApproval(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusSectionChiefApproved, t0, "2")

	_, err := newApprovalService(s).EditQuantity(context.Background(), root, "r1-item-a", dec("3"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestHistoryVisibility(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "2")
	svc := newApprovalService(s)
	ctx := context.Background()
	_, err := svc.ApproveSingle(ctx, supervisor, "r1", "")
	require.NoError(t, err)

	entries, err := svc.History(ctx, employee, "r1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = svc.History(ctx, Actor{UserID: "x", Role: model.RoleEmployee, CompanyID: companyID}, "r1")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.History(ctx, Actor{UserID: "x", Role: model.RoleAdmin, CompanyID: otherCompanyID}, "r1")
	assert.ErrorIs(t, err, ErrForbidden)
}
