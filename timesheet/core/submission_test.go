package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/utils"
)

func TestSubmit(t *testing.T) {
	s := newFixture(t)
	svc := NewTimesheetService(s.Repository(), zap.NewNop())
	ctx := context.Background()

	rec, err := svc.Submit(ctx, employee, Submission{
		WorkDate:  "2024-03-04",
		ShiftType: model.ShiftNight,
		Items: []SubmitItem{
			{ProcessID: processPriced, Quantity: dec("12")},
			{ProcessID: processFree, Quantity: dec("1.5")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, rec.Status)
	assert.Equal(t, employee.Name, rec.EmployeeName)
	assert.Equal(t, supervisor.Name, rec.SupervisorName)
	assert.Equal(t, chief.Name, rec.SectionChiefName)
	assert.Equal(t, supervisorID, utils.Deref(rec.SupervisorID))

	stored, ok := s.Record(rec.ID)
	require.True(t, ok)
	require.Len(t, stored.Items, 2)
	assert.True(t, dec("18").Equal(stored.Items[0].Amount))
	assert.True(t, dec("1.50").Equal(stored.Items[0].UnitPrice))
	assert.True(t, stored.Items[1].Amount.IsZero())
	assert.Equal(t, "h", stored.Items[1].Unit)
}

func TestSubmitRejects(t *testing.T) {
	s := newFixture(t)
	s.SeedProcess(model.Process{ID: "p-old", CompanyID: companyID, ProductionLine: "Line A", Category: model.CategoryProduction, ProductName: "Widget", ProcessName: "Old", Active: false})
	s.SeedProcess(model.Process{ID: "p-globex", CompanyID: otherCompanyID, ProductionLine: "Line A", Category: model.CategoryProduction, ProductName: "Widget", ProcessName: "Cut", Active: true})
	svc := NewTimesheetService(s.Repository(), zap.NewNop())
	ctx := context.Background()

	valid := func(items ...SubmitItem) Submission {
		return Submission{WorkDate: "2024-03-04", ShiftType: model.ShiftDay, Items: items}
	}
	tests := []struct {
		name  string
		actor Actor
		in    Submission
		want  error
	}{
		{name: "admin cannot submit", actor: admin, in: valid(SubmitItem{ProcessID: processPriced, Quantity: dec("1")}), want: ErrForbidden},
		{name: "bad date", actor: employee, in: Submission{WorkDate: "04/03/2024", ShiftType: model.ShiftDay, Items: []SubmitItem{{ProcessID: processPriced, Quantity: dec("1")}}}, want: ErrValidation},
		{name: "bad shift", actor: employee, in: Submission{WorkDate: "2024-03-04", ShiftType: "evening", Items: []SubmitItem{{ProcessID: processPriced, Quantity: dec("1")}}}, want: ErrValidation},
		{name: "no items", actor: employee, in: valid(), want: ErrValidation},
		{name: "fractional production quantity", actor: employee, in: valid(SubmitItem{ProcessID: processPriced, Quantity: dec("2.5")}), want: ErrInvalidQuantity},
		{name: "zero production quantity", actor: employee, in: valid(SubmitItem{ProcessID: processPriced, Quantity: dec("0")}), want: ErrInvalidQuantity},
		{name: "negative hours", actor: employee, in: valid(SubmitItem{ProcessID: processFree, Quantity: dec("-1")}), want: ErrInvalidQuantity},
		{name: "inactive process", actor: employee, in: valid(SubmitItem{ProcessID: "p-old", Quantity: dec("1")}), want: ErrValidation},
		{name: "other company's process", actor: employee, in: valid(SubmitItem{ProcessID: "p-globex", Quantity: dec("1")}), want: ErrValidation},
		{name: "unknown process", actor: employee, in: valid(SubmitItem{ProcessID: "nope", Quantity: dec("1")}), want: ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHistoryGroupsOwnRecords(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "1")
	seedRecord(s, "r2", "2024-03-01", model.StatusApproved, t0.Add(1), "2")
	seedRecord(s, "r3", "2024-03-05", model.StatusPending, t0.Add(2), "3")
	svc := NewTimesheetService(s.Repository(), zap.NewNop())
	ctx := context.Background()

	groups, err := svc.History(ctx, employee, RecordFilter{})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "2024-03-05", groups[0].WorkDate)
	assert.Len(t, groups[1].RecordIDs, 2)

	groups, err = svc.History(ctx, employee, RecordFilter{From: "2024-03-02", To: "2024-03-31"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"r3"}, groups[0].RecordIDs)

	groups, err = svc.History(ctx, supervisor, RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, groups)

	_, err = svc.History(ctx, employee, RecordFilter{From: "2024-03-31", To: "2024-03-01"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetRecordVisibility(t *testing.T) {
	s := newFixture(t)
	seedRecord(s, "r1", "2024-03-01", model.StatusPending, t0, "4")
	svc := NewTimesheetService(s.Repository(), zap.NewNop())
	ctx := context.Background()

	stranger := Actor{UserID: "user-x", Role: model.RoleEmployee, CompanyID: companyID}
	outsider := Actor{UserID: "user-y", Role: model.RoleAdmin, CompanyID: otherCompanyID}
	for _, a := range []Actor{employee, supervisor, chief, admin, root} {
		rec, err := svc.Get(ctx, a, "r1")
		require.NoError(t, err, a.Role)
		require.Len(t, rec.Items, 1)
		assert.Equal(t, "Cut", rec.Items[0].Process.ProcessName)
	}
	for _, a := range []Actor{stranger, outsider} {
		_, err := svc.Get(ctx, a, "r1")
		assert.ErrorIs(t, err, ErrForbidden, a.UserID)
	}
	_, err := svc.Get(ctx, employee, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
