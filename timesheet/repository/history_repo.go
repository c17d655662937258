package repository

import (
	"context"

	"gorm.io/gorm"

	"piecework.app/piecework/timesheet/model"
)

type HistoryRepository interface {
	AppendApproval(ctx context.Context, entry *model.ApprovalHistoryEntry) error
	AppendModification(ctx context.Context, entry *model.ModificationHistoryEntry) error
	ListApprovals(ctx context.Context, recordID string) ([]model.ApprovalHistoryEntry, error)
	ListModifications(ctx context.Context, recordID string) ([]model.ModificationHistoryEntry, error)
}

type historyRepo struct {
	db *gorm.DB
}

func NewHistoryRepo(db *gorm.DB) HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) AppendApproval(ctx context.Context, entry *model.ApprovalHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *historyRepo) AppendModification(ctx context.Context, entry *model.ModificationHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *historyRepo) ListApprovals(ctx context.Context, recordID string) ([]model.ApprovalHistoryEntry, error) {
	var entries []model.ApprovalHistoryEntry
	err := r.db.WithContext(ctx).Where("record_id = ?", recordID).Order("created_at, id").Find(&entries).Error
	return entries, err
}

func (r *historyRepo) ListModifications(ctx context.Context, recordID string) ([]model.ModificationHistoryEntry, error) {
	var entries []model.ModificationHistoryEntry
	err := r.db.WithContext(ctx).Where("record_id = ?", recordID).Order("created_at, id").Find(&entries).Error
	return entries, err
}
