package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"piecework.app/piecework/timesheet/model"
)

type RecordQuery struct {
	CompanyID      string
	Statuses       []model.Status
	SupervisorID   string
	SectionChiefID string
	EmployeeID     string
	WorkDate       string
	// Inclusive work date bounds, yyyy-MM-dd.
	From string
	To   string
}

type RecordRepository interface {
	// FindByID loads the record with its items.
	FindByID(ctx context.Context, id string) (*model.TimesheetRecord, error)
	Exists(ctx context.Context, id string) (bool, error)
	// List loads matching records with items, newest first.
	List(ctx context.Context, q RecordQuery) ([]model.TimesheetRecord, error)
	// Create inserts the record and its items.
	Create(ctx context.Context, record *model.TimesheetRecord) error
	// Upsert writes the header only, keyed by id.
	Upsert(ctx context.Context, record *model.TimesheetRecord) error
	UpdateStatus(ctx context.Context, id string, status model.Status) error
	Delete(ctx context.Context, id string) error
}

type recordRepo struct {
	db *gorm.DB
}

func NewRecordRepo(db *gorm.DB) RecordRepository {
	return &recordRepo{db: db}
}

func (r *recordRepo) FindByID(ctx context.Context, id string) (*model.TimesheetRecord, error) {
	var record model.TimesheetRecord
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *recordRepo) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TimesheetRecord{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *recordRepo) List(ctx context.Context, q RecordQuery) ([]model.TimesheetRecord, error) {
	db := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") })

	if q.CompanyID != "" {
		db = db.Where("company_id = ?", q.CompanyID)
	}
	if len(q.Statuses) > 0 {
		db = db.Where("status IN ?", q.Statuses)
	}
	if q.SupervisorID != "" {
		db = db.Where("supervisor_id = ?", q.SupervisorID)
	}
	if q.SectionChiefID != "" {
		db = db.Where("section_chief_id = ?", q.SectionChiefID)
	}
	if q.EmployeeID != "" {
		db = db.Where("employee_id = ?", q.EmployeeID)
	}
	if q.WorkDate != "" {
		db = db.Where("work_date = ?", q.WorkDate)
	}
	if q.From != "" {
		db = db.Where("work_date >= ?", q.From)
	}
	if q.To != "" {
		db = db.Where("work_date <= ?", q.To)
	}

	var records []model.TimesheetRecord
	if err := db.Order("created_at DESC, id").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *recordRepo) Create(ctx context.Context, record *model.TimesheetRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *recordRepo) Upsert(ctx context.Context, record *model.TimesheetRecord) error {
	header := record.Header()
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&header).Error
}

// UpdateStatus fails with ErrNotFound when the record is gone. Callers only
// write a status different from the stored one, so a match always changes a row.
func (r *recordRepo) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	return requireRows(r.db.WithContext(ctx).Model(&model.TimesheetRecord{}).Where("id = ?", id).Update("status", status))
}

func (r *recordRepo) Delete(ctx context.Context, id string) error {
	return requireRows(r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.TimesheetRecord{}))
}
