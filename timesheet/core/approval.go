package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
	"piecework.app/piecework/utils"
)

type ApprovalService struct {
	repo   *repository.Repository
	drafts DraftStore
	logger *zap.Logger
	retry  utils.RetryPolicy
}

func NewApprovalService(repo *repository.Repository, drafts DraftStore, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		repo:   repo,
		drafts: drafts,
		logger: logger.Named("approval"),
		retry:  utils.DefaultRetryPolicy,
	}
}

type BatchError struct {
	GroupKey string `json:"groupKey,omitempty"`
	RecordID string `json:"recordId,omitempty"`
	Message  string `json:"message"`
}

// BatchResult reports a multi-record approval. Records that succeeded stay
// approved even when others fail.
type BatchResult struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors"`
}

func (r *BatchResult) fail(groupKey, recordID string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, BatchError{GroupKey: groupKey, RecordID: recordID, Message: err.Error()})
}

// stageQuery selects the records waiting on actor: a supervisor's pending
// records, a section chief's approved records, or both stages for a super
// admin.
func stageQuery(actor Actor) (repository.RecordQuery, error) {
	switch {
	case actor.IsSuperAdmin():
		return repository.RecordQuery{Statuses: []model.Status{model.StatusPending, model.StatusApproved}}, nil
	case actor.Role == model.RoleSupervisor:
		return repository.RecordQuery{Statuses: []model.Status{model.StatusPending}, SupervisorID: actor.UserID}, nil
	case actor.Role == model.RoleSectionChief:
		return repository.RecordQuery{Statuses: []model.Status{model.StatusApproved}, SectionChiefID: actor.UserID}, nil
	}
	return repository.RecordQuery{}, ErrForbidden
}

// FetchPending returns the grouped records awaiting actor's approval.
func (s *ApprovalService) FetchPending(ctx context.Context, actor Actor) ([]GroupedRecord, error) {
	q, err := stageQuery(actor)
	if err != nil {
		return nil, err
	}

	records, err := utils.Retry(ctx, s.retry, func(ctx context.Context) ([]model.TimesheetRecord, error) {
		return s.repo.Records.List(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("load pending records: %w", err)
	}

	records, err = resolveItems(ctx, s.repo.Processes, s.retry, records)
	if err != nil {
		return nil, err
	}
	return GroupRecords(records), nil
}

// authorizeStage checks that actor may act on rec at its current stage.
func authorizeStage(actor Actor, rec *model.TimesheetRecord) error {
	switch rec.Status {
	case model.StatusPending:
		if !actor.Can(CapApproveSupervisor) {
			return ErrForbidden
		}
		if !actor.IsSuperAdmin() && (rec.SupervisorID == nil || *rec.SupervisorID != actor.UserID) {
			return ErrForbidden
		}
	case model.StatusApproved:
		if !actor.Can(CapApproveSectionChief) {
			return ErrForbidden
		}
		if !actor.IsSuperAdmin() && (rec.SectionChiefID == nil || *rec.SectionChiefID != actor.UserID) {
			return ErrForbidden
		}
	default:
		return fmt.Errorf("%w: record %s is already %s", ErrInvalidTransition, rec.ID, rec.Status)
	}
	return nil
}

// transition writes the new status and then the history row.
func (s *ApprovalService) transition(ctx context.Context, actor Actor, rec *model.TimesheetRecord, next model.Status, action model.HistoryAction, comment string) error {
	approverType, err := model.ApproverTypeFor(rec.Status)
	if err != nil {
		return err
	}

	err = s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		if err := tx.Records.UpdateStatus(ctx, rec.ID, next); err != nil {
			return fmt.Errorf("update status of %s: %w", rec.ID, err)
		}
		entry := &model.ApprovalHistoryEntry{
			ID:           uuid.NewString(),
			RecordID:     rec.ID,
			ApproverID:   actor.UserID,
			ApproverName: actor.Name,
			ApproverType: approverType,
			Action:       action,
			Comment:      comment,
		}
		if err := tx.History.AppendApproval(ctx, entry); err != nil {
			return fmt.Errorf("append history of %s: %w", rec.ID, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("status transition failed",
			zap.String("record", rec.ID), zap.String("from", string(rec.Status)), zap.String("to", string(next)), zap.Error(err))
		return err
	}

	s.logger.Info("status transition",
		zap.String("record", rec.ID), zap.String("from", string(rec.Status)), zap.String("to", string(next)), zap.String("actor", actor.UserID))
	rec.Status = next
	return nil
}

func (s *ApprovalService) advance(ctx context.Context, actor Actor, rec *model.TimesheetRecord, comment string) error {
	if err := authorizeStage(actor, rec); err != nil {
		return err
	}
	next, err := model.TryAdvance(rec.Status)
	if err != nil {
		return err
	}
	return s.transition(ctx, actor, rec, next, model.ActionApproved, comment)
}

// ApproveSingle moves one record to its next stage.
func (s *ApprovalService) ApproveSingle(ctx context.Context, actor Actor, recordID, comment string) (*model.TimesheetRecord, error) {
	if err := s.guard(ctx, actor, PendingAction{Kind: ActionApproveSingle, RecordID: recordID, Comment: comment}); err != nil {
		return nil, err
	}
	return s.approveSingle(ctx, actor, recordID, comment)
}

func (s *ApprovalService) approveSingle(ctx context.Context, actor Actor, recordID, comment string) (*model.TimesheetRecord, error) {
	rec, err := s.repo.Records.FindByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", recordID, err)
	}
	if err := s.advance(ctx, actor, rec, comment); err != nil {
		return nil, err
	}
	return rec, nil
}

// ApproveGrouped approves every constituent of one group that sits at the
// group's stage.
func (s *ApprovalService) ApproveGrouped(ctx context.Context, actor Actor, groupKey, comment string) (*BatchResult, error) {
	if err := s.guard(ctx, actor, PendingAction{Kind: ActionApproveGroup, GroupKey: groupKey, Comment: comment}); err != nil {
		return nil, err
	}
	return s.approveGroup(ctx, actor, groupKey, comment)
}

func (s *ApprovalService) approveGroup(ctx context.Context, actor Actor, groupKey, comment string) (*BatchResult, error) {
	result := &BatchResult{Errors: []BatchError{}}
	records, err := s.groupRecords(ctx, actor, groupKey)
	if err != nil {
		return nil, err
	}

	var firstErr error
	for i := range records {
		if err := s.advance(ctx, actor, &records[i], comment); err != nil {
			result.fail(groupKey, records[i].ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result.Succeeded++
	}
	if result.Succeeded == 0 && firstErr != nil {
		return result, firstErr
	}
	return result, nil
}

// groupRecords loads the constituents of groupKey visible at actor's stage,
// keeping those that share the status of the group's first record.
func (s *ApprovalService) groupRecords(ctx context.Context, actor Actor, groupKey string) ([]model.TimesheetRecord, error) {
	employeeID, workDate, err := ParseGroupKey(groupKey)
	if err != nil {
		return nil, err
	}
	q, err := stageQuery(actor)
	if err != nil {
		return nil, err
	}
	q.EmployeeID = employeeID
	q.WorkDate = workDate

	records, err := utils.Retry(ctx, s.retry, func(ctx context.Context) ([]model.TimesheetRecord, error) {
		return s.repo.Records.List(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("load group %s: %w", groupKey, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("group %s: %w", groupKey, ErrNotFound)
	}
	status := records[0].Status
	return utils.Filter(records, func(r model.TimesheetRecord) bool { return r.Status == status }), nil
}

// ApproveBatch approves the groups one after another. A failing group does
// not stop the rest.
func (s *ApprovalService) ApproveBatch(ctx context.Context, actor Actor, groupKeys []string, comment string) (*BatchResult, error) {
	if len(groupKeys) == 0 {
		return nil, fieldError("groupKeys", "select at least one group")
	}
	if err := s.guard(ctx, actor, PendingAction{Kind: ActionApproveBatch, GroupKeys: groupKeys, Comment: comment}); err != nil {
		return nil, err
	}
	return s.approveBatch(ctx, actor, groupKeys, comment), nil
}

func (s *ApprovalService) approveBatch(ctx context.Context, actor Actor, groupKeys []string, comment string) *BatchResult {
	total := &BatchResult{Errors: []BatchError{}}
	for _, key := range utils.Unique(groupKeys) {
		res, err := s.approveGroup(ctx, actor, key, comment)
		if res == nil {
			total.fail(key, "", err)
			continue
		}
		total.Succeeded += res.Succeeded
		total.Failed += res.Failed
		total.Errors = append(total.Errors, res.Errors...)
	}
	s.logger.Info("batch approval",
		zap.String("actor", actor.UserID), zap.Int("groups", len(groupKeys)),
		zap.Int("succeeded", total.Succeeded), zap.Int("failed", total.Failed))
	return total
}

// Reject ends the workflow for a record still awaiting approval.
func (s *ApprovalService) Reject(ctx context.Context, actor Actor, recordID, comment string) (*model.TimesheetRecord, error) {
	rec, err := s.repo.Records.FindByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", recordID, err)
	}
	if err := authorizeStage(actor, rec); err != nil {
		return nil, err
	}
	next, err := model.Reject(rec.Status)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, actor, rec, next, model.ActionRejected, comment); err != nil {
		return nil, err
	}
	return rec, nil
}

// History returns the approval trail of a record.
func (s *ApprovalService) History(ctx context.Context, actor Actor, recordID string) ([]model.ApprovalHistoryEntry, error) {
	rec, err := s.repo.Records.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !actor.CanSeeCompany(rec.CompanyID) {
		return nil, ErrForbidden
	}
	if actor.Role == model.RoleEmployee && rec.EmployeeID != actor.UserID {
		return nil, ErrForbidden
	}
	return s.repo.History.ListApprovals(ctx, recordID)
}

// EditQuantity corrects an item's quantity during review. The item keeps the
// unit price it was entered at. While another item has unsaved changes the
// edit is held back like an approval.
func (s *ApprovalService) EditQuantity(ctx context.Context, actor Actor, itemID string, quantity decimal.Decimal) (*model.TimesheetLineItem, error) {
	if err := actor.Require(CapEditQuantity); err != nil {
		return nil, err
	}
	draft, err := s.drafts.Get(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft != nil && draft.ItemID != itemID && draft.Dirty() {
		return nil, s.guard(ctx, actor, PendingAction{Kind: ActionEditQuantity, ItemID: itemID, Quantity: &quantity})
	}
	item, err := s.editQuantity(ctx, actor, itemID, quantity)
	if err != nil {
		return nil, err
	}
	if draft != nil && draft.ItemID == itemID {
		if err := s.drafts.Delete(ctx, actor.UserID); err != nil {
			return nil, fmt.Errorf("clear draft: %w", err)
		}
	}
	return item, nil
}

func (s *ApprovalService) editQuantity(ctx context.Context, actor Actor, itemID string, quantity decimal.Decimal) (*model.TimesheetLineItem, error) {
	if err := actor.Require(CapEditQuantity); err != nil {
		return nil, err
	}
	item, rec, proc, err := s.loadEditable(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}
	if err := ValidateQuantity(proc.Category, quantity); err != nil {
		return nil, err
	}

	amount := Amount(quantity, decimal.NewNullDecimal(item.UnitPrice))

	err = s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		if err := tx.Items.UpdateQuantity(ctx, item.ID, quantity, amount); err != nil {
			return fmt.Errorf("update item %s: %w", item.ID, err)
		}
		return tx.History.AppendModification(ctx, &model.ModificationHistoryEntry{
			ID:          uuid.NewString(),
			ItemID:      item.ID,
			RecordID:    rec.ID,
			OldQuantity: item.Quantity,
			NewQuantity: quantity,
			OldAmount:   item.Amount,
			NewAmount:   amount,
			ActorID:     actor.UserID,
			ActorName:   actor.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quantity edited",
		zap.String("item", item.ID), zap.String("old", item.Quantity.String()), zap.String("new", quantity.String()), zap.String("actor", actor.UserID))

	item.Quantity = quantity
	item.Amount = amount
	item.UpdatedAt = time.Now()
	item.Process = proc.Info()
	return item, nil
}

func (s *ApprovalService) loadEditable(ctx context.Context, actor Actor, itemID string) (*model.TimesheetLineItem, *model.TimesheetRecord, *model.Process, error) {
	item, err := s.repo.Items.FindByID(ctx, itemID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load item %s: %w", itemID, err)
	}
	rec, err := s.repo.Records.FindByID(ctx, item.RecordID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load record %s: %w", item.RecordID, err)
	}
	if err := authorizeStage(actor, rec); err != nil {
		return nil, nil, nil, err
	}
	proc, err := s.repo.Processes.FindByID(ctx, item.ProcessID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, nil, fieldError("processId", "the process of this item no longer exists")
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load process %s: %w", item.ProcessID, err)
	}
	return item, rec, proc, nil
}
