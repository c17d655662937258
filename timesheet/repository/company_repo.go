package repository

import (
	"context"

	"gorm.io/gorm"

	"piecework.app/piecework/timesheet/model"
)

type CompanyRepository interface {
	FindByID(ctx context.Context, id string) (*model.Company, error)
	FindByName(ctx context.Context, name string) (*model.Company, error)
	List(ctx context.Context) ([]model.Company, error)
	Create(ctx context.Context, company *model.Company) error
}

type companyRepo struct {
	db *gorm.DB
}

func NewCompanyRepo(db *gorm.DB) CompanyRepository {
	return &companyRepo{db: db}
}

func (r *companyRepo) FindByID(ctx context.Context, id string) (*model.Company, error) {
	var company model.Company
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepo) FindByName(ctx context.Context, name string) (*model.Company, error) {
	var company model.Company
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepo) List(ctx context.Context) ([]model.Company, error) {
	var companies []model.Company
	err := r.db.WithContext(ctx).Order("name").Find(&companies).Error
	return companies, err
}

func (r *companyRepo) Create(ctx context.Context, company *model.Company) error {
	return r.db.WithContext(ctx).Create(company).Error
}
