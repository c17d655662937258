package repotest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
)

type recordRepo struct{ s *Store }

func (r *recordRepo) FindByID(ctx context.Context, id string) (*model.TimesheetRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Records.FindByID", id); err != nil {
		return nil, err
	}
	rec, ok := r.s.data.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rec.Items = r.s.itemsOf(id)
	return &rec, nil
}

func (r *recordRepo) Exists(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Records.Exists", id); err != nil {
		return false, err
	}
	_, ok := r.s.data.records[id]
	return ok, nil
}

func (r *recordRepo) List(ctx context.Context, q repository.RecordQuery) ([]model.TimesheetRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Records.List", q); err != nil {
		return nil, err
	}
	var out []model.TimesheetRecord
	for _, rec := range r.s.data.records {
		if !matchRecord(rec, q) {
			continue
		}
		rec.Items = r.s.itemsOf(rec.ID)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchRecord(rec model.TimesheetRecord, q repository.RecordQuery) bool {
	if q.CompanyID != "" && rec.CompanyID != q.CompanyID {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, st := range q.Statuses {
			if rec.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.SupervisorID != "" && (rec.SupervisorID == nil || *rec.SupervisorID != q.SupervisorID) {
		return false
	}
	if q.SectionChiefID != "" && (rec.SectionChiefID == nil || *rec.SectionChiefID != q.SectionChiefID) {
		return false
	}
	if q.EmployeeID != "" && rec.EmployeeID != q.EmployeeID {
		return false
	}
	if q.WorkDate != "" && rec.WorkDate != q.WorkDate {
		return false
	}
	if q.From != "" && rec.WorkDate < q.From {
		return false
	}
	if q.To != "" && rec.WorkDate > q.To {
		return false
	}
	return true
}

func (r *recordRepo) Create(ctx context.Context, record *model.TimesheetRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Records.Create", record); err != nil {
		return err
	}
	now := r.s.tick()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	for i := range record.Items {
		it := &record.Items[i]
		it.RecordID = record.ID
		if it.CreatedAt.IsZero() {
			it.CreatedAt = r.s.tick()
		}
		if it.UpdatedAt.IsZero() {
			it.UpdatedAt = it.CreatedAt
		}
		stored := *it
		stored.Process = nil
		r.s.data.items[it.ID] = stored
	}
	r.s.data.records[record.ID] = record.Header()
	return nil
}

func (r *recordRepo) Upsert(ctx context.Context, record *model.TimesheetRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Records.Upsert", record); err != nil {
		return err
	}
	r.s.data.records[record.ID] = record.Header()
	return nil
}

func (r *recordRepo) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Records.UpdateStatus", id); err != nil {
		return err
	}
	rec, ok := r.s.data.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = r.s.tick()
	r.s.data.records[id] = rec
	return nil
}

func (r *recordRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Records.Delete", id); err != nil {
		return err
	}
	if _, ok := r.s.data.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.records, id)
	return nil
}

type itemRepo struct{ s *Store }

func (r *itemRepo) FindByID(ctx context.Context, id string) (*model.TimesheetLineItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Items.FindByID", id); err != nil {
		return nil, err
	}
	it, ok := r.s.data.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &it, nil
}

func (r *itemRepo) CountByRecord(ctx context.Context, recordID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Items.CountByRecord", recordID); err != nil {
		return 0, err
	}
	return int64(len(r.s.itemsOf(recordID))), nil
}

func (r *itemRepo) UpdateQuantity(ctx context.Context, id string, quantity, amount decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Items.UpdateQuantity", id); err != nil {
		return err
	}
	it, ok := r.s.data.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	it.Quantity = quantity
	it.Amount = amount
	it.UpdatedAt = r.s.tick()
	r.s.data.items[id] = it
	return nil
}

func (r *itemRepo) Upsert(ctx context.Context, items []model.TimesheetLineItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Items.Upsert", items); err != nil {
		return err
	}
	for _, it := range items {
		it.Process = nil
		r.s.data.items[it.ID] = it
	}
	return nil
}

func (r *itemRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Items.Delete", id); err != nil {
		return err
	}
	if _, ok := r.s.data.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.items, id)
	return nil
}

func (r *itemRepo) DeleteByRecord(ctx context.Context, recordID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Items.DeleteByRecord", recordID); err != nil {
		return err
	}
	for id, it := range r.s.data.items {
		if it.RecordID == recordID {
			delete(r.s.data.items, id)
		}
	}
	return nil
}

type processRepo struct{ s *Store }

func (r *processRepo) FindByID(ctx context.Context, id string) (*model.Process, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Processes.FindByID", id); err != nil {
		return nil, err
	}
	p, ok := r.s.data.processes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *processRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Process, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Processes.FindByIDs", ids); err != nil {
		return nil, err
	}
	var out []model.Process
	for _, id := range ids {
		if p, ok := r.s.data.processes[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *processRepo) List(ctx context.Context, q repository.ProcessQuery) ([]model.Process, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Processes.List", q); err != nil {
		return nil, err
	}
	var out []model.Process
	for _, p := range r.s.data.processes {
		if q.CompanyID != "" && p.CompanyID != q.CompanyID {
			continue
		}
		if q.ProductionLine != "" && p.ProductionLine != q.ProductionLine {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if q.ActiveOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a := strings.Join([]string{out[i].ProductionLine, out[i].ProductName, out[i].ProcessName, out[i].ID}, "\x00")
		b := strings.Join([]string{out[j].ProductionLine, out[j].ProductName, out[j].ProcessName, out[j].ID}, "\x00")
		return a < b
	})
	return out, nil
}

func (r *processRepo) create(p *model.Process) {
	now := r.s.tick()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	r.s.data.processes[p.ID] = *p
}

func (r *processRepo) Create(ctx context.Context, process *model.Process) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Processes.Create", process); err != nil {
		return err
	}
	r.create(process)
	return nil
}

func (r *processRepo) CreateBatch(ctx context.Context, processes []model.Process) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Processes.CreateBatch", processes); err != nil {
		return err
	}
	for i := range processes {
		r.create(&processes[i])
	}
	return nil
}

func (r *processRepo) Update(ctx context.Context, process *model.Process) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Processes.Update", process); err != nil {
		return err
	}
	process.UpdatedAt = r.s.tick()
	r.s.data.processes[process.ID] = *process
	return nil
}

func (r *processRepo) Upsert(ctx context.Context, process *model.Process) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Processes.Upsert", process); err != nil {
		return err
	}
	r.s.data.processes[process.ID] = *process
	return nil
}

func (r *processRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Processes.Delete", id); err != nil {
		return err
	}
	if _, ok := r.s.data.processes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.processes, id)
	return nil
}

type historyRepo struct{ s *Store }

func (r *historyRepo) AppendApproval(ctx context.Context, entry *model.ApprovalHistoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("History.AppendApproval", entry); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.s.tick()
	}
	r.s.data.approvals = append(r.s.data.approvals, *entry)
	return nil
}

func (r *historyRepo) AppendModification(ctx context.Context, entry *model.ModificationHistoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("History.AppendModification", entry); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.s.tick()
	}
	r.s.data.modifications = append(r.s.data.modifications, *entry)
	return nil
}

func (r *historyRepo) ListApprovals(ctx context.Context, recordID string) ([]model.ApprovalHistoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.ApprovalHistoryEntry
	for _, e := range r.s.data.approvals {
		if e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *historyRepo) ListModifications(ctx context.Context, recordID string) ([]model.ModificationHistoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.ModificationHistoryEntry
	for _, e := range r.s.data.modifications {
		if e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

type recycleBinRepo struct {
	s      *Store
	prefix string
}

func (r *recycleBinRepo) op(name string) string {
	return r.prefix + "." + name
}

func (r *recycleBinRepo) Create(ctx context.Context, entry *model.RecycleBinEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(r.op("Create"), entry); err != nil {
		return err
	}
	r.s.data.recycle[entry.ID] = *entry
	return nil
}

func (r *recycleBinRepo) FindByID(ctx context.Context, id string) (*model.RecycleBinEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(r.op("FindByID"), id); err != nil {
		return nil, err
	}
	e, ok := r.s.data.recycle[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r *recycleBinRepo) List(ctx context.Context, q repository.RecycleQuery) ([]model.RecycleBinEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(r.op("List"), q); err != nil {
		return nil, err
	}
	var out []model.RecycleBinEntry
	for _, e := range r.s.data.recycle {
		if e.IsPermanentlyDeleted {
			continue
		}
		if q.CompanyID != "" && e.CompanyID != q.CompanyID {
			continue
		}
		if q.ItemType != "" && e.ItemType != q.ItemType {
			continue
		}
		if q.DeletedFrom != nil && e.DeletedAt.Before(*q.DeletedFrom) {
			continue
		}
		if q.DeletedTo != nil && e.DeletedAt.After(*q.DeletedTo) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeletedAt.Equal(out[j].DeletedAt) {
			return out[i].DeletedAt.After(out[j].DeletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *recycleBinRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(r.op("Delete"), id); err != nil {
		return err
	}
	if _, ok := r.s.data.recycle[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.recycle, id)
	return nil
}

func (r *recycleBinRepo) MarkPermanentlyDeleted(ctx context.Context, id string, restoredBy *string, restoredAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(r.op("MarkPermanentlyDeleted"), id); err != nil {
		return err
	}
	e, ok := r.s.data.recycle[id]
	if !ok {
		return nil
	}
	e.IsPermanentlyDeleted = true
	e.RestoredBy = restoredBy
	e.RestoredAt = restoredAt
	r.s.data.recycle[id] = e
	return nil
}

func (r *recycleBinRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(r.op("DeleteExpired"), now); err != nil {
		return 0, err
	}
	var n int64
	for id, e := range r.s.data.recycle {
		if !e.IsPermanentlyDeleted && e.ExpiresAt.Before(now) {
			delete(r.s.data.recycle, id)
			n++
		}
	}
	return n, nil
}

type auditRepo struct{ s *Store }

func (r *auditRepo) Append(ctx context.Context, entry *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Audit.Append", entry); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.s.tick()
	}
	r.s.data.audit = append(r.s.data.audit, *entry)
	return nil
}

func (r *auditRepo) ListByEntity(ctx context.Context, entityID string) ([]model.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.AuditLog
	for _, e := range r.s.data.audit {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type userRepo struct{ s *Store }

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Users.FindByID", id); err != nil {
		return nil, err
	}
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Users.FindByUsername", username); err != nil {
		return nil, err
	}
	for _, u := range r.s.data.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) List(ctx context.Context, companyID string) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.User
	for _, u := range r.s.data.users {
		if companyID == "" || u.CompanyID == companyID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Users.Create", user); err != nil {
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.s.tick()
	}
	r.s.data.users[user.ID] = *user
	return nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Users.Update", user); err != nil {
		return err
	}
	user.UpdatedAt = r.s.tick()
	r.s.data.users[user.ID] = *user
	return nil
}

func (r *userRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Users.TouchLastLogin", id); err != nil {
		return err
	}
	u, ok := r.s.data.users[id]
	if !ok {
		return nil
	}
	u.LastLoginAt = &at
	r.s.data.users[id] = u
	return nil
}

type companyRepo struct{ s *Store }

func (r *companyRepo) FindByID(ctx context.Context, id string) (*model.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.data.companies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *companyRepo) FindByName(ctx context.Context, name string) (*model.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Companies.FindByName", name); err != nil {
		return nil, err
	}
	for _, c := range r.s.data.companies {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *companyRepo) List(ctx context.Context) ([]model.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Company, 0, len(r.s.data.companies))
	for _, c := range r.s.data.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *companyRepo) Create(ctx context.Context, company *model.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Companies.Create", company); err != nil {
		return err
	}
	if company.CreatedAt.IsZero() {
		company.CreatedAt = r.s.tick()
	}
	r.s.data.companies[company.ID] = *company
	return nil
}
