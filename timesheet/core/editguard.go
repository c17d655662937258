package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/model"
)

const DraftTTL = 2 * time.Hour

type ActionKind string

const (
	ActionApproveSingle ActionKind = "approve_single"
	ActionApproveGroup  ActionKind = "approve_group"
	ActionApproveBatch  ActionKind = "approve_batch"
	ActionSwitchEdit    ActionKind = "switch_edit"
	ActionEditQuantity  ActionKind = "edit_quantity"
)

// PendingAction is an operation held back by an unsaved edit.
type PendingAction struct {
	Kind      ActionKind       `json:"kind"`
	RecordID  string           `json:"recordId,omitempty"`
	GroupKey  string           `json:"groupKey,omitempty"`
	GroupKeys []string         `json:"groupKeys,omitempty"`
	ItemID    string           `json:"itemId,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	Comment   string           `json:"comment,omitempty"`
}

// Draft is a reviewer's in-progress quantity edit.
type Draft struct {
	ItemID    string             `json:"itemId"`
	RecordID  string             `json:"recordId"`
	Category  model.WorkCategory `json:"category"`
	Original  decimal.Decimal    `json:"original"`
	Quantity  decimal.Decimal    `json:"quantity"`
	StartedAt time.Time          `json:"startedAt"`
	Pending   *PendingAction     `json:"pending,omitempty"`
}

// Dirty reports an uncommitted change.
func (d *Draft) Dirty() bool {
	return !d.Quantity.Equal(d.Original)
}

// DraftStore keeps at most one draft per user.
type DraftStore interface {
	// Get returns nil without error when the user has no draft.
	Get(ctx context.Context, userID string) (*Draft, error)
	Put(ctx context.Context, userID string, draft *Draft) error
	Delete(ctx context.Context, userID string) error
}

// UnsavedEditError asks the caller to save or discard before Action runs.
type UnsavedEditError struct {
	Draft  *Draft
	Action PendingAction
}

func (e *UnsavedEditError) Error() string {
	return fmt.Sprintf("item %s has unsaved changes (%s → %s); save or discard before continuing",
		e.Draft.ItemID, e.Draft.Original, e.Draft.Quantity)
}

type Resolution string

const (
	ResolveSave    Resolution = "save"
	ResolveDiscard Resolution = "discard"
)

type ConflictResult struct {
	Resolution Resolution               `json:"resolution"`
	Action     PendingAction            `json:"action"`
	Saved      *model.TimesheetLineItem `json:"saved,omitempty"`
	Edited     *model.TimesheetLineItem `json:"edited,omitempty"`
	Draft      *Draft                   `json:"draft,omitempty"`
	Record     *model.TimesheetRecord   `json:"record,omitempty"`
	Approval   *BatchResult             `json:"approval,omitempty"`
}

// guard holds action back while the actor has a dirty draft.
func (s *ApprovalService) guard(ctx context.Context, actor Actor, action PendingAction) error {
	draft, err := s.drafts.Get(ctx, actor.UserID)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	if draft == nil || !draft.Dirty() {
		return nil
	}
	draft.Pending = &action
	if err := s.drafts.Put(ctx, actor.UserID, draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return &UnsavedEditError{Draft: draft, Action: action}
}

func (s *ApprovalService) CurrentDraft(ctx context.Context, actor Actor) (*Draft, error) {
	draft, err := s.drafts.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, ErrNoDraft
	}
	return draft, nil
}

// BeginEdit opens itemID for editing. Switching away from another item
// with unsaved changes is held back like an approval.
func (s *ApprovalService) BeginEdit(ctx context.Context, actor Actor, itemID string) (*Draft, error) {
	if err := actor.Require(CapEditQuantity); err != nil {
		return nil, err
	}
	current, err := s.drafts.Get(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if current != nil && current.ItemID == itemID {
		return current, nil
	}
	if current != nil && current.Dirty() {
		return nil, s.guard(ctx, actor, PendingAction{Kind: ActionSwitchEdit, ItemID: itemID})
	}
	return s.openDraft(ctx, actor, itemID)
}

func (s *ApprovalService) openDraft(ctx context.Context, actor Actor, itemID string) (*Draft, error) {
	item, rec, proc, err := s.loadEditable(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}
	draft := &Draft{
		ItemID:    item.ID,
		RecordID:  rec.ID,
		Category:  proc.Category,
		Original:  item.Quantity,
		Quantity:  item.Quantity,
		StartedAt: time.Now().UTC(),
	}
	if err := s.drafts.Put(ctx, actor.UserID, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return draft, nil
}

// UpdateDraft records a new quantity without persisting it.
func (s *ApprovalService) UpdateDraft(ctx context.Context, actor Actor, quantity decimal.Decimal) (*Draft, error) {
	draft, err := s.CurrentDraft(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := ValidateQuantity(draft.Category, quantity); err != nil {
		return nil, err
	}
	draft.Quantity = quantity
	if err := s.drafts.Put(ctx, actor.UserID, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return draft, nil
}

// CommitEdit persists the draft and closes it.
func (s *ApprovalService) CommitEdit(ctx context.Context, actor Actor) (*model.TimesheetLineItem, error) {
	draft, err := s.CurrentDraft(ctx, actor)
	if err != nil {
		return nil, err
	}
	var item *model.TimesheetLineItem
	if draft.Dirty() {
		item, err = s.editQuantity(ctx, actor, draft.ItemID, draft.Quantity)
	} else {
		item, err = s.repo.Items.FindByID(ctx, draft.ItemID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Delete(ctx, actor.UserID); err != nil {
		return nil, fmt.Errorf("clear draft: %w", err)
	}
	return item, nil
}

// DiscardEdit drops the draft; nothing was persisted.
func (s *ApprovalService) DiscardEdit(ctx context.Context, actor Actor) error {
	return s.drafts.Delete(ctx, actor.UserID)
}

// ResolveConflict answers the unsaved-edit prompt: the draft is saved or
// discarded and then the held-back action runs. A held-back switch to
// another item only opens that item.
func (s *ApprovalService) ResolveConflict(ctx context.Context, actor Actor, resolution Resolution) (*ConflictResult, error) {
	if resolution != ResolveSave && resolution != ResolveDiscard {
		return nil, fieldError("resolution", "must be %q or %q", ResolveSave, ResolveDiscard)
	}
	draft, err := s.drafts.Get(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft == nil || draft.Pending == nil {
		return nil, ErrNoPendingConflict
	}

	action := *draft.Pending
	result := &ConflictResult{Resolution: resolution, Action: action}

	if resolution == ResolveSave && draft.Dirty() {
		saved, err := s.editQuantity(ctx, actor, draft.ItemID, draft.Quantity)
		if err != nil {
			return nil, err
		}
		result.Saved = saved
	}
	if err := s.drafts.Delete(ctx, actor.UserID); err != nil {
		return nil, fmt.Errorf("clear draft: %w", err)
	}
	s.logger.Info("unsaved edit resolved",
		zap.String("actor", actor.UserID), zap.String("resolution", string(resolution)), zap.String("action", string(action.Kind)))

	switch action.Kind {
	case ActionSwitchEdit:
		result.Draft, err = s.openDraft(ctx, actor, action.ItemID)
	case ActionEditQuantity:
		if action.Quantity == nil {
			err = fieldError("quantity", "is required")
			break
		}
		result.Edited, err = s.editQuantity(ctx, actor, action.ItemID, *action.Quantity)
	case ActionApproveSingle:
		result.Record, err = s.approveSingle(ctx, actor, action.RecordID, action.Comment)
	case ActionApproveGroup:
		result.Approval, err = s.approveGroup(ctx, actor, action.GroupKey, action.Comment)
	case ActionApproveBatch:
		result.Approval = s.approveBatch(ctx, actor, action.GroupKeys, action.Comment)
	default:
		err = fmt.Errorf("unknown pending action %q", action.Kind)
	}
	return result, err
}

type draftEntry struct {
	draft   Draft
	expires time.Time
}

// MemoryDraftStore keeps drafts in process memory.
type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string]draftEntry
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryDraftStore(ttl time.Duration) *MemoryDraftStore {
	return &MemoryDraftStore{drafts: map[string]draftEntry{}, ttl: ttl, now: time.Now}
}

func (m *MemoryDraftStore) Get(ctx context.Context, userID string) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.drafts[userID]
	if !ok {
		return nil, nil
	}
	if m.now().After(e.expires) {
		delete(m.drafts, userID)
		return nil, nil
	}
	d := e.draft
	if d.Pending != nil {
		p := *d.Pending
		d.Pending = &p
	}
	return &d, nil
}

func (m *MemoryDraftStore) Put(ctx context.Context, userID string, draft *Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *draft
	if d.Pending != nil {
		p := *d.Pending
		d.Pending = &p
	}
	m.drafts[userID] = draftEntry{draft: d, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryDraftStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, userID)
	return nil
}
