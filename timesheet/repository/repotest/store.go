// Package repotest provides an in-memory implementation of the repository
// interfaces for service and handler tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
)

type state struct {
	companies     map[string]model.Company
	users         map[string]model.User
	processes     map[string]model.Process
	records       map[string]model.TimesheetRecord
	items         map[string]model.TimesheetLineItem
	approvals     []model.ApprovalHistoryEntry
	modifications []model.ModificationHistoryEntry
	recycle       map[string]model.RecycleBinEntry
	audit         []model.AuditLog
}

func newState() state {
	return state{
		companies: map[string]model.Company{},
		users:     map[string]model.User{},
		processes: map[string]model.Process{},
		records:   map[string]model.TimesheetRecord{},
		items:     map[string]model.TimesheetLineItem{},
		recycle:   map[string]model.RecycleBinEntry{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.processes {
		c.processes[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.recycle {
		c.recycle[k] = v
	}
	c.approvals = append(c.approvals, s.approvals...)
	c.modifications = append(c.modifications, s.modifications...)
	c.audit = append(c.audit, s.audit...)
	return c
}

// Store is an in-memory database. Transactions snapshot the whole state and
// restore it when the callback fails.
type Store struct {
	mu    sync.Mutex
	data  state
	clock time.Time

	// Fail makes the named operation (e.g. "Records.Delete") return the error.
	Fail map[string]error
	// FailWhen is consulted for every operation with its main argument.
	FailWhen func(op string, arg interface{}) error
}

func New() *Store {
	return &Store{
		data:  newState(),
		clock: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		Fail:  map[string]error{},
	}
}

// Repository returns a repository aggregate backed by the store.
func (s *Store) Repository() *repository.Repository {
	return &repository.Repository{
		Records:    &recordRepo{s},
		Items:      &itemRepo{s},
		Processes:  &processRepo{s},
		History:    &historyRepo{s},
		RecycleBin: &recycleBinRepo{s: s, prefix: "RecycleBin"},
		Audit:      &auditRepo{s},
		Users:      &userRepo{s},
		Companies:  &companyRepo{s},
		Transact:   s.transact,
	}
}

// PrivilegedRecycleBin is a second view of the recycle bin whose failures
// are injected under the "Privileged.RecycleBin." prefix.
func (s *Store) PrivilegedRecycleBin() repository.RecycleBinRepository {
	return &recycleBinRepo{s: s, prefix: "Privileged.RecycleBin"}
}

func (s *Store) transact(ctx context.Context, fn func(tx *repository.Repository) error) error {
	s.mu.Lock()
	saved := s.data.clone()
	s.mu.Unlock()

	if err := fn(s.Repository()); err != nil {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) fail(op string, arg interface{}) error {
	if err, ok := s.Fail[op]; ok && err != nil {
		return err
	}
	if s.FailWhen != nil {
		return s.FailWhen(op, arg)
	}
	return nil
}

// tick returns a strictly increasing timestamp. Callers hold mu.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// Now returns the store clock without advancing it.
func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

func (s *Store) itemsOf(recordID string) []model.TimesheetLineItem {
	var items []model.TimesheetLineItem
	for _, it := range s.data.items {
		if it.RecordID == recordID {
			it.Process = nil
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// Seed helpers insert rows as-is, stamping missing timestamps.

func (s *Store) SeedCompany(c model.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.tick()
	}
	s.data.companies[c.ID] = c
}

func (s *Store) SeedUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.tick()
	}
	s.data.users[u.ID] = u
}

func (s *Store) SeedProcess(p model.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.tick()
	}
	s.data.processes[p.ID] = p
}

func (s *Store) SeedRecord(r model.TimesheetRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.tick()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	for _, it := range r.Items {
		it.RecordID = r.ID
		if it.CreatedAt.IsZero() {
			it.CreatedAt = s.tick()
		}
		s.data.items[it.ID] = it
	}
	r.Items = nil
	s.data.records[r.ID] = r
}

func (s *Store) SeedRecycleEntry(e model.RecycleBinEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.recycle[e.ID] = e
}

// Inspection helpers.

func (s *Store) Record(id string) (model.TimesheetRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data.records[id]
	if ok {
		r.Items = s.itemsOf(id)
	}
	return r, ok
}

func (s *Store) Item(id string) (model.TimesheetLineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.data.items[id]
	return it, ok
}

func (s *Store) Process(id string) (model.Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.processes[id]
	return p, ok
}

func (s *Store) Processes() []model.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Process, 0, len(s.data.processes))
	for _, p := range s.data.processes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) RecycleEntries() []model.RecycleBinEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.RecycleBinEntry, 0, len(s.data.recycle))
	for _, e := range s.data.recycle {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Approvals() []model.ApprovalHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ApprovalHistoryEntry(nil), s.data.approvals...)
}

func (s *Store) Modifications() []model.ModificationHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ModificationHistoryEntry(nil), s.data.modifications...)
}

func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.data.audit...)
}
