package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
	"piecework.app/piecework/utils"
)

const DefaultRetention = 100 * 24 * time.Hour

// ItemSnapshot is a line item as captured at deletion. Amount is optional so
// that restores can re-derive it.
type ItemSnapshot struct {
	ID        string             `json:"id"`
	ProcessID string             `json:"processId"`
	Quantity  decimal.Decimal    `json:"quantity"`
	Unit      string             `json:"unit"`
	UnitPrice decimal.Decimal    `json:"unitPrice"`
	Amount    *decimal.Decimal   `json:"amount,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Process   *model.ProcessInfo `json:"process,omitempty"`
}

func snapshotItem(it model.TimesheetLineItem) ItemSnapshot {
	amount := it.Amount
	return ItemSnapshot{
		ID:        it.ID,
		ProcessID: it.ProcessID,
		Quantity:  it.Quantity,
		Unit:      it.Unit,
		UnitPrice: it.UnitPrice,
		Amount:    &amount,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
		Process:   it.Process,
	}
}

func (s ItemSnapshot) lineItem(recordID string) model.TimesheetLineItem {
	amount := s.Quantity.Mul(s.UnitPrice).Round(2)
	if s.Amount != nil {
		amount = *s.Amount
	}
	unit := s.Unit
	if unit == "" {
		unit = model.DefaultUnit
	}
	return model.TimesheetLineItem{
		ID:        s.ID,
		RecordID:  recordID,
		ProcessID: s.ProcessID,
		Quantity:  s.Quantity,
		Unit:      unit,
		UnitPrice: s.UnitPrice,
		Amount:    amount,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// RecordSnapshot holds a record header and the items deleted with it. A
// single deleted line item is stored the same way with one item.
type RecordSnapshot struct {
	Record model.TimesheetRecord `json:"record"`
	Items  []ItemSnapshot        `json:"items"`
}

type RecycleFilter struct {
	ItemType model.RecycleItemType
	Search   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type RecyclePage struct {
	Entries  []model.RecycleBinEntry `json:"entries"`
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"pageSize"`
}

// Removal records how a consumed entry left the bin.
type Removal string

const (
	RemovalDeleted    Removal = "deleted"
	RemovalPrivileged Removal = "privileged_delete"
	RemovalFlagged    Removal = "flagged"
	RemovalFailed     Removal = "failed"
)

type RestoreResult struct {
	Entry   *model.RecycleBinEntry `json:"entry"`
	Record  *model.TimesheetRecord `json:"record,omitempty"`
	Process *model.Process         `json:"process,omitempty"`
	Removal Removal                `json:"removal"`
}

// DeleteResult lists the entries written by one delete, the cascaded
// parent record included.
type DeleteResult struct {
	Entries       []model.RecycleBinEntry `json:"entries"`
	RecordRemoved bool                    `json:"recordRemoved"`
}

type RecycleBinService struct {
	repo       *repository.Repository
	privileged repository.RecycleBinRepository
	retention  time.Duration
	logger     *zap.Logger
	retry      utils.RetryPolicy
	now        func() time.Time
}

// NewRecycleBinService builds the service. privileged may be nil when no
// elevated connection is configured.
func NewRecycleBinService(repo *repository.Repository, privileged repository.RecycleBinRepository, retention time.Duration, logger *zap.Logger) *RecycleBinService {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RecycleBinService{
		repo:       repo,
		privileged: privileged,
		retention:  retention,
		logger:     logger.Named("recyclebin"),
		retry:      utils.DefaultRetryPolicy,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *RecycleBinService) newEntry(actor Actor, itemType model.RecycleItemType, table, originalID, companyID, display string, snapshot interface{}) (*model.RecycleBinEntry, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot of %s: %w", originalID, err)
	}
	now := s.now()
	return &model.RecycleBinEntry{
		ID:            uuid.NewString(),
		CompanyID:     companyID,
		ItemType:      itemType,
		OriginalTable: table,
		OriginalID:    originalID,
		DisplayName:   display,
		Snapshot:      datatypes.JSON(raw),
		DeletedBy:     actor.UserID,
		DeletedByName: actor.Name,
		DeletedAt:     now,
		ExpiresAt:     now.Add(s.retention),
	}, nil
}

func recordDisplay(rec *model.TimesheetRecord) string {
	return strings.TrimSpace(rec.EmployeeName + " " + rec.WorkDate + " " + string(rec.ShiftType))
}

// authorizeRecordDelete allows the record's own approvers and company
// administrators to delete it.
func authorizeRecordDelete(actor Actor, rec *model.TimesheetRecord) error {
	if err := actor.Require(CapDeleteTimesheet); err != nil {
		return err
	}
	if !actor.CanSeeCompany(rec.CompanyID) {
		return ErrForbidden
	}
	switch actor.Role {
	case model.RoleSupervisor:
		if rec.SupervisorID == nil || *rec.SupervisorID != actor.UserID {
			return ErrForbidden
		}
	case model.RoleSectionChief:
		if rec.SectionChiefID == nil || *rec.SectionChiefID != actor.UserID {
			return ErrForbidden
		}
	}
	return nil
}

// attachProcesses resolves each item's process for the snapshot; unknown
// processes are left empty rather than dropping the item.
func (s *RecycleBinService) attachProcesses(ctx context.Context, tx *repository.Repository, items []model.TimesheetLineItem) error {
	ids := utils.Unique(utils.Map(items, func(it model.TimesheetLineItem) string { return it.ProcessID }))
	if len(ids) == 0 {
		return nil
	}
	found, err := tx.Processes.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolve processes: %w", err)
	}
	lookup := make(map[string]*model.ProcessInfo, len(found))
	for _, p := range found {
		lookup[p.ID] = p.Info()
	}
	for i := range items {
		items[i].Process = lookup[items[i].ProcessID]
	}
	return nil
}

// DeleteRecord moves a record and all of its items to the bin.
func (s *RecycleBinService) DeleteRecord(ctx context.Context, actor Actor, recordID string) (*DeleteResult, error) {
	result := &DeleteResult{}
	err := s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		rec, err := tx.Records.FindByID(ctx, recordID)
		if err != nil {
			return fmt.Errorf("load record %s: %w", recordID, err)
		}
		if err := authorizeRecordDelete(actor, rec); err != nil {
			return err
		}
		entry, err := s.recycleRecord(ctx, tx, actor, rec)
		if err != nil {
			return err
		}
		result.Entries = append(result.Entries, *entry)
		result.RecordRemoved = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("record recycled", zap.String("record", recordID), zap.String("actor", actor.UserID))
	return result, nil
}

// recycleRecord snapshots rec with its items, then deletes them.
func (s *RecycleBinService) recycleRecord(ctx context.Context, tx *repository.Repository, actor Actor, rec *model.TimesheetRecord) (*model.RecycleBinEntry, error) {
	items := append([]model.TimesheetLineItem(nil), rec.Items...)
	if err := s.attachProcesses(ctx, tx, items); err != nil {
		return nil, err
	}
	snap := RecordSnapshot{Record: rec.Header(), Items: utils.Map(items, snapshotItem)}
	entry, err := s.newEntry(actor, model.RecycleTimesheetRecord, model.TimesheetRecord{}.TableName(), rec.ID, rec.CompanyID, recordDisplay(rec), snap)
	if err != nil {
		return nil, err
	}
	if err := tx.RecycleBin.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("store snapshot of %s: %w", rec.ID, err)
	}
	if err := tx.Items.DeleteByRecord(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("delete items of %s: %w", rec.ID, err)
	}
	if err := tx.Records.Delete(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("delete record %s: %w", rec.ID, err)
	}
	return entry, nil
}

// DeleteLineItem moves one item to the bin. Removing the last item of a
// record also recycles the emptied record under its own entry.
func (s *RecycleBinService) DeleteLineItem(ctx context.Context, actor Actor, itemID string) (*DeleteResult, error) {
	result := &DeleteResult{}
	err := s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		item, err := tx.Items.FindByID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("load item %s: %w", itemID, err)
		}
		rec, err := tx.Records.FindByID(ctx, item.RecordID)
		if err != nil {
			return fmt.Errorf("load record %s: %w", item.RecordID, err)
		}
		if err := authorizeRecordDelete(actor, rec); err != nil {
			return err
		}

		items := []model.TimesheetLineItem{*item}
		if err := s.attachProcesses(ctx, tx, items); err != nil {
			return err
		}
		display := recordDisplay(rec)
		if items[0].Process != nil {
			display += " " + items[0].Process.ProcessName
		}
		snap := RecordSnapshot{Record: rec.Header(), Items: []ItemSnapshot{snapshotItem(items[0])}}
		entry, err := s.newEntry(actor, model.RecycleTimesheetRecord, model.TimesheetLineItem{}.TableName(), item.ID, rec.CompanyID, display, snap)
		if err != nil {
			return err
		}
		if err := tx.RecycleBin.Create(ctx, entry); err != nil {
			return fmt.Errorf("store snapshot of %s: %w", item.ID, err)
		}
		if err := tx.Items.Delete(ctx, item.ID); err != nil {
			return fmt.Errorf("delete item %s: %w", item.ID, err)
		}
		result.Entries = append(result.Entries, *entry)

		left, err := tx.Items.CountByRecord(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("count items of %s: %w", rec.ID, err)
		}
		if left > 0 {
			return nil
		}
		rec.Items = nil
		parent, err := s.recycleRecord(ctx, tx, actor, rec)
		if err != nil {
			return err
		}
		result.Entries = append(result.Entries, *parent)
		result.RecordRemoved = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("item recycled",
		zap.String("item", itemID), zap.Bool("recordRemoved", result.RecordRemoved), zap.String("actor", actor.UserID))
	return result, nil
}

// DeleteProcess moves a process to the bin. Items that reference it keep
// their copied price and are left in place.
func (s *RecycleBinService) DeleteProcess(ctx context.Context, actor Actor, processID string) (*DeleteResult, error) {
	if err := actor.Require(CapManageProcesses); err != nil {
		return nil, err
	}
	result := &DeleteResult{}
	err := s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		proc, err := tx.Processes.FindByID(ctx, processID)
		if err != nil {
			return fmt.Errorf("load process %s: %w", processID, err)
		}
		if !actor.CanSeeCompany(proc.CompanyID) {
			return ErrForbidden
		}
		entry, err := s.newEntry(actor, model.RecycleProcess, proc.TableName(), proc.ID, proc.CompanyID, proc.DisplayName(), proc)
		if err != nil {
			return err
		}
		if err := tx.RecycleBin.Create(ctx, entry); err != nil {
			return fmt.Errorf("store snapshot of %s: %w", proc.ID, err)
		}
		if err := tx.Processes.Delete(ctx, proc.ID); err != nil {
			return fmt.Errorf("delete process %s: %w", proc.ID, err)
		}
		result.Entries = append(result.Entries, *entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("process recycled", zap.String("process", processID), zap.String("actor", actor.UserID))
	return result, nil
}

func (s *RecycleBinService) loadEntry(ctx context.Context, actor Actor, entryID string) (*model.RecycleBinEntry, error) {
	if err := actor.Require(CapManageRecycleBin); err != nil {
		return nil, err
	}
	entry, err := s.repo.RecycleBin.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("load recycle entry %s: %w", entryID, err)
	}
	if !actor.CanSeeCompany(entry.CompanyID) {
		return nil, ErrForbidden
	}
	if entry.IsPermanentlyDeleted {
		return nil, ErrEntryUnavailable
	}
	return entry, nil
}

// Restore writes the snapshot back under its original ids and removes the
// entry from the bin.
func (s *RecycleBinService) Restore(ctx context.Context, actor Actor, entryID string) (*RestoreResult, error) {
	entry, err := s.loadEntry(ctx, actor, entryID)
	if err != nil {
		return nil, err
	}

	restoredAt := s.now()
	result := &RestoreResult{Entry: entry}
	err = s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		switch entry.ItemType {
		case model.RecycleTimesheetRecord:
			rec, err := s.restoreRecord(ctx, tx, actor, entry)
			if err != nil {
				return err
			}
			result.Record = rec
		case model.RecycleProcess:
			proc, err := s.restoreProcess(ctx, tx, entry)
			if err != nil {
				return err
			}
			result.Process = proc
		default:
			return fmt.Errorf("unknown recycle item type %q", entry.ItemType)
		}
		return s.audit(ctx, tx, actor, entry, restoredAt)
	})
	if err != nil {
		s.logger.Error("restore failed", zap.String("entry", entryID), zap.Error(err))
		return nil, err
	}

	result.Removal = s.removeEntry(ctx, entry.ID, &actor.UserID, &restoredAt)
	s.logger.Info("entry restored",
		zap.String("entry", entryID), zap.String("original", entry.OriginalID), zap.String("removal", string(result.Removal)))
	return result, nil
}

func (s *RecycleBinService) restoreRecord(ctx context.Context, tx *repository.Repository, actor Actor, entry *model.RecycleBinEntry) (*model.TimesheetRecord, error) {
	var snap RecordSnapshot
	if err := json.Unmarshal(entry.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot of %s: %w", entry.OriginalID, err)
	}
	rec := snap.Record.Header()
	if rec.ID == "" {
		return nil, fmt.Errorf("snapshot of %s has no record", entry.OriginalID)
	}

	wholeRecord := entry.OriginalTable == rec.TableName()
	exists, err := tx.Records.Exists(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("check record %s: %w", rec.ID, err)
	}
	if wholeRecord || !exists {
		if err := tx.Records.Upsert(ctx, &rec); err != nil {
			return nil, fmt.Errorf("restore record %s: %w", rec.ID, err)
		}
	}

	items := utils.Map(snap.Items, func(it ItemSnapshot) model.TimesheetLineItem { return it.lineItem(rec.ID) })
	if len(items) > 0 {
		if err := tx.Items.Upsert(ctx, items); err != nil {
			return nil, fmt.Errorf("restore items of %s: %w", rec.ID, err)
		}
	}

	approverType := model.ApproverAdmin
	switch actor.Role {
	case model.RoleSupervisor:
		approverType = model.ApproverSupervisor
	case model.RoleSectionChief:
		approverType = model.ApproverSectionChief
	}
	err = tx.History.AppendApproval(ctx, &model.ApprovalHistoryEntry{
		ID:           uuid.NewString(),
		RecordID:     rec.ID,
		ApproverID:   actor.UserID,
		ApproverName: actor.Name,
		ApproverType: approverType,
		Action:       model.ActionRestored,
		Comment: fmt.Sprintf("restored from recycle bin; deleted by %s at %s",
			nonEmpty(entry.DeletedByName, entry.DeletedBy), entry.DeletedAt.UTC().Format(time.RFC3339)),
	})
	if err != nil {
		return nil, fmt.Errorf("append restore history of %s: %w", rec.ID, err)
	}

	rec.Items = items
	return &rec, nil
}

func (s *RecycleBinService) restoreProcess(ctx context.Context, tx *repository.Repository, entry *model.RecycleBinEntry) (*model.Process, error) {
	var proc model.Process
	if err := json.Unmarshal(entry.Snapshot, &proc); err != nil {
		return nil, fmt.Errorf("decode snapshot of %s: %w", entry.OriginalID, err)
	}
	proc.Active = true

	live, err := tx.Processes.List(ctx, repository.ProcessQuery{CompanyID: proc.CompanyID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("load processes: %w", err)
	}
	key := proc.DuplicateKey()
	for _, p := range live {
		if p.ID != proc.ID && p.DuplicateKey() == key {
			return nil, fmt.Errorf("%w: %s already exists", ErrDuplicateProcess, proc.DisplayName())
		}
	}
	if err := tx.Processes.Upsert(ctx, &proc); err != nil {
		return nil, fmt.Errorf("restore process %s: %w", proc.ID, err)
	}
	return &proc, nil
}

func (s *RecycleBinService) audit(ctx context.Context, tx *repository.Repository, actor Actor, entry *model.RecycleBinEntry, restoredAt time.Time) error {
	details, err := json.Marshal(map[string]interface{}{
		"entryId":       entry.ID,
		"itemType":      entry.ItemType,
		"deletedBy":     entry.DeletedBy,
		"deletedByName": entry.DeletedByName,
		"deletedAt":     entry.DeletedAt,
		"restoredBy":    actor.UserID,
		"restoredAt":    restoredAt,
	})
	if err != nil {
		return err
	}
	return tx.Audit.Append(ctx, &model.AuditLog{
		ID:         uuid.NewString(),
		CompanyID:  entry.CompanyID,
		Action:     "restore",
		EntityType: entry.OriginalTable,
		EntityID:   entry.OriginalID,
		ActorID:    actor.UserID,
		ActorName:  actor.Name,
		Details:    datatypes.JSON(details),
	})
}

// removeEntry deletes a consumed entry, falling back to the privileged
// connection and finally to flagging the row.
func (s *RecycleBinService) removeEntry(ctx context.Context, entryID string, by *string, at *time.Time) Removal {
	err := s.repo.RecycleBin.Delete(ctx, entryID)
	if err == nil {
		return RemovalDeleted
	}
	s.logger.Warn("recycle entry delete failed", zap.String("entry", entryID), zap.Error(err))

	if s.privileged != nil {
		perr := s.privileged.Delete(ctx, entryID)
		if perr == nil {
			return RemovalPrivileged
		}
		s.logger.Warn("privileged recycle entry delete failed", zap.String("entry", entryID), zap.Error(perr))
	}

	if ferr := s.repo.RecycleBin.MarkPermanentlyDeleted(ctx, entryID, by, at); ferr != nil {
		s.logger.Error("recycle entry left in place", zap.String("entry", entryID), zap.Error(ferr))
		return RemovalFailed
	}
	return RemovalFlagged
}

// Purge permanently removes one entry.
func (s *RecycleBinService) Purge(ctx context.Context, actor Actor, entryID string) (Removal, error) {
	entry, err := s.loadEntry(ctx, actor, entryID)
	if err != nil {
		return "", err
	}
	removal := s.removeEntry(ctx, entry.ID, nil, nil)
	if removal == RemovalFailed {
		return removal, fmt.Errorf("purge entry %s failed", entryID)
	}
	s.logger.Info("entry purged", zap.String("entry", entryID), zap.String("actor", actor.UserID))
	return removal, nil
}

// Sweep deletes every live entry that expired before now.
func (s *RecycleBinService) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.RecycleBin.DeleteExpired(ctx, now)
	if err != nil && s.privileged != nil {
		s.logger.Warn("sweep failed, retrying with privileged connection", zap.Error(err))
		n, err = s.privileged.DeleteExpired(ctx, now)
	}
	if err != nil {
		return 0, fmt.Errorf("sweep expired entries: %w", err)
	}
	return n, nil
}

// List filters the bin in memory and pages the result.
func (s *RecycleBinService) List(ctx context.Context, actor Actor, filter RecycleFilter) (*RecyclePage, error) {
	if err := actor.Require(CapManageRecycleBin); err != nil {
		return nil, err
	}
	if filter.ItemType != "" && !filter.ItemType.Valid() {
		return nil, fieldError("itemType", "unknown item type %q", filter.ItemType)
	}
	q := repository.RecycleQuery{
		CompanyID:   actor.companyScope(),
		ItemType:    filter.ItemType,
		DeletedFrom: filter.From,
		DeletedTo:   filter.To,
	}
	entries, err := utils.Retry(ctx, s.retry, func(ctx context.Context) ([]model.RecycleBinEntry, error) {
		return s.repo.RecycleBin.List(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("load recycle bin: %w", err)
	}

	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		entries = utils.Filter(entries, func(e model.RecycleBinEntry) bool {
			return strings.Contains(strings.ToLower(e.DisplayName), term) ||
				strings.Contains(strings.ToLower(e.DeletedByName), term) ||
				strings.Contains(strings.ToLower(e.OriginalID), term)
		})
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	items, total := utils.Paginate(entries, page, size)
	if items == nil {
		items = []model.RecycleBinEntry{}
	}
	return &RecyclePage{Entries: items, Total: total, Page: page, PageSize: size}, nil
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
