package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"piecework.app/piecework/timesheet/model"
)

type RecycleQuery struct {
	CompanyID   string
	ItemType    model.RecycleItemType
	DeletedFrom *time.Time
	DeletedTo   *time.Time
}

type RecycleBinRepository interface {
	Create(ctx context.Context, entry *model.RecycleBinEntry) error
	FindByID(ctx context.Context, id string) (*model.RecycleBinEntry, error)
	// List skips permanently deleted entries, newest deletion first.
	List(ctx context.Context, q RecycleQuery) ([]model.RecycleBinEntry, error)
	Delete(ctx context.Context, id string) error
	MarkPermanentlyDeleted(ctx context.Context, id string, restoredBy *string, restoredAt *time.Time) error
	// DeleteExpired removes live entries whose expiry is before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type recycleBinRepo struct {
	db *gorm.DB
}

func NewRecycleBinRepo(db *gorm.DB) RecycleBinRepository {
	return &recycleBinRepo{db: db}
}

func (r *recycleBinRepo) Create(ctx context.Context, entry *model.RecycleBinEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *recycleBinRepo) FindByID(ctx context.Context, id string) (*model.RecycleBinEntry, error) {
	var entry model.RecycleBinEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *recycleBinRepo) List(ctx context.Context, q RecycleQuery) ([]model.RecycleBinEntry, error) {
	db := r.db.WithContext(ctx).Where("is_permanently_deleted = ?", false)
	if q.CompanyID != "" {
		db = db.Where("company_id = ?", q.CompanyID)
	}
	if q.ItemType != "" {
		db = db.Where("item_type = ?", q.ItemType)
	}
	if q.DeletedFrom != nil {
		db = db.Where("deleted_at >= ?", *q.DeletedFrom)
	}
	if q.DeletedTo != nil {
		db = db.Where("deleted_at <= ?", *q.DeletedTo)
	}

	var entries []model.RecycleBinEntry
	err := db.Order("deleted_at DESC, id").Find(&entries).Error
	return entries, err
}

func (r *recycleBinRepo) Delete(ctx context.Context, id string) error {
	return requireRows(r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.RecycleBinEntry{}))
}

func (r *recycleBinRepo) MarkPermanentlyDeleted(ctx context.Context, id string, restoredBy *string, restoredAt *time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.RecycleBinEntry{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_permanently_deleted": true,
			"restored_by":            restoredBy,
			"restored_at":            restoredAt,
		})
	return res.Error
}

func (r *recycleBinRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? AND is_permanently_deleted = ?", now, false).
		Delete(&model.RecycleBinEntry{})
	return res.RowsAffected, res.Error
}
