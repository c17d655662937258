package repository

import (
	"context"

	"gorm.io/gorm"

	"piecework.app/piecework/timesheet/model"
)

type AuditRepository interface {
	Append(ctx context.Context, entry *model.AuditLog) error
	ListByEntity(ctx context.Context, entityID string) ([]model.AuditLog, error)
}

type auditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepo) ListByEntity(ctx context.Context, entityID string) ([]model.AuditLog, error) {
	var entries []model.AuditLog
	err := r.db.WithContext(ctx).Where("entity_id = ?", entityID).Order("created_at, id").Find(&entries).Error
	return entries, err
}
