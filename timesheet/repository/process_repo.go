package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"piecework.app/piecework/timesheet/model"
)

type ProcessQuery struct {
	CompanyID      string
	ProductionLine string
	Category       model.WorkCategory
	ActiveOnly     bool
}

type ProcessRepository interface {
	FindByID(ctx context.Context, id string) (*model.Process, error)
	// FindByIDs resolves many processes in one query; unknown ids are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]model.Process, error)
	List(ctx context.Context, q ProcessQuery) ([]model.Process, error)
	Create(ctx context.Context, process *model.Process) error
	CreateBatch(ctx context.Context, processes []model.Process) error
	Update(ctx context.Context, process *model.Process) error
	Upsert(ctx context.Context, process *model.Process) error
	Delete(ctx context.Context, id string) error
}

type processRepo struct {
	db *gorm.DB
}

func NewProcessRepo(db *gorm.DB) ProcessRepository {
	return &processRepo{db: db}
}

func (r *processRepo) FindByID(ctx context.Context, id string) (*model.Process, error) {
	var p model.Process
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *processRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Process, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var processes []model.Process
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&processes).Error; err != nil {
		return nil, err
	}
	return processes, nil
}

func (r *processRepo) List(ctx context.Context, q ProcessQuery) ([]model.Process, error) {
	db := r.db.WithContext(ctx)
	if q.CompanyID != "" {
		db = db.Where("company_id = ?", q.CompanyID)
	}
	if q.ProductionLine != "" {
		db = db.Where("production_line = ?", q.ProductionLine)
	}
	if q.Category != "" {
		db = db.Where("category = ?", q.Category)
	}
	if q.ActiveOnly {
		db = db.Where("active = ?", true)
	}

	var processes []model.Process
	err := db.Order("production_line, product_name, process_name").Find(&processes).Error
	return processes, err
}

func (r *processRepo) Create(ctx context.Context, process *model.Process) error {
	return r.db.WithContext(ctx).Create(process).Error
}

func (r *processRepo) CreateBatch(ctx context.Context, processes []model.Process) error {
	if len(processes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&processes, len(processes)).Error
}

func (r *processRepo) Update(ctx context.Context, process *model.Process) error {
	return r.db.WithContext(ctx).Save(process).Error
}

func (r *processRepo) Upsert(ctx context.Context, process *model.Process) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(process).Error
}

func (r *processRepo) Delete(ctx context.Context, id string) error {
	return requireRows(r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Process{}))
}
