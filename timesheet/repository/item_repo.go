package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"piecework.app/piecework/timesheet/model"
)

type ItemRepository interface {
	FindByID(ctx context.Context, id string) (*model.TimesheetLineItem, error)
	CountByRecord(ctx context.Context, recordID string) (int64, error)
	// UpdateQuantity rewrites the quantity and its amount. The unit price is left as entered.
	UpdateQuantity(ctx context.Context, id string, quantity, amount decimal.Decimal) error
	Upsert(ctx context.Context, items []model.TimesheetLineItem) error
	Delete(ctx context.Context, id string) error
	DeleteByRecord(ctx context.Context, recordID string) error
}

type itemRepo struct {
	db *gorm.DB
}

func NewItemRepo(db *gorm.DB) ItemRepository {
	return &itemRepo{db: db}
}

func (r *itemRepo) FindByID(ctx context.Context, id string) (*model.TimesheetLineItem, error) {
	var item model.TimesheetLineItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepo) CountByRecord(ctx context.Context, recordID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TimesheetLineItem{}).Where("record_id = ?", recordID).Count(&count).Error
	return count, err
}

func (r *itemRepo) UpdateQuantity(ctx context.Context, id string, quantity, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&model.TimesheetLineItem{}).Where("id = ?", id).
		Updates(map[string]interface{}{"quantity": quantity, "amount": amount}).Error
}

func (r *itemRepo) Upsert(ctx context.Context, items []model.TimesheetLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&items).Error
}

func (r *itemRepo) Delete(ctx context.Context, id string) error {
	return requireRows(r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.TimesheetLineItem{}))
}

func (r *itemRepo) DeleteByRecord(ctx context.Context, recordID string) error {
	return r.db.WithContext(ctx).Where("record_id = ?", recordID).Delete(&model.TimesheetLineItem{}).Error
}
