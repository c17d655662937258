package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned by every lookup and delete that matches no row.
var ErrNotFound = gorm.ErrRecordNotFound

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// TxFunc runs fn against a repository whose writes commit or roll back together.
type TxFunc func(ctx context.Context, fn func(tx *Repository) error) error

type Repository struct {
	Records    RecordRepository
	Items      ItemRepository
	Processes  ProcessRepository
	History    HistoryRepository
	RecycleBin RecycleBinRepository
	Audit      AuditRepository
	Users      UserRepository
	Companies  CompanyRepository

	Transact TxFunc
}

func New(db *gorm.DB) *Repository {
	r := &Repository{
		Records:    NewRecordRepo(db),
		Items:      NewItemRepo(db),
		Processes:  NewProcessRepo(db),
		History:    NewHistoryRepo(db),
		RecycleBin: NewRecycleBinRepo(db),
		Audit:      NewAuditRepo(db),
		Users:      NewUserRepo(db),
		Companies:  NewCompanyRepo(db),
	}
	r.Transact = func(ctx context.Context, fn func(tx *Repository) error) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(New(tx))
		})
	}
	return r
}

// Atomic runs fn in a transaction. Without a Transact function fn runs
// directly against r.
func (r *Repository) Atomic(ctx context.Context, fn func(tx *Repository) error) error {
	if r.Transact == nil {
		return fn(r)
	}
	return r.Transact(ctx, fn)
}

// requireRows turns a write that matched nothing into ErrNotFound.
func requireRows(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
