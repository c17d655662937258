package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
	"piecework.app/piecework/utils"
)

type ProcessInput struct {
	CompanyID      string              `json:"companyId"`
	ProductionLine string              `json:"productionLine" binding:"required,max=100"`
	Category       model.WorkCategory  `json:"category" binding:"required"`
	ProductName    string              `json:"productName" binding:"required,max=200"`
	ProcessName    string              `json:"processName" binding:"required,max=200"`
	Unit           string              `json:"unit" binding:"max=20"`
	UnitPrice      decimal.NullDecimal `json:"unitPrice"`
	EffectiveMonth string              `json:"effectiveMonth" binding:"required"`
}

type ProcessFilter struct {
	CompanyID       string             `form:"companyId"`
	ProductionLine  string             `form:"productionLine"`
	Category        model.WorkCategory `form:"category"`
	IncludeInactive bool               `form:"includeInactive"`
}

type ProcessService struct {
	repo   *repository.Repository
	logger *zap.Logger
	retry  utils.RetryPolicy
}

func NewProcessService(repo *repository.Repository, logger *zap.Logger) *ProcessService {
	return &ProcessService{
		repo:   repo,
		logger: logger.Named("process"),
		retry:  utils.DefaultRetryPolicy,
	}
}

// List returns a company's processes. Only process managers see inactive ones.
func (s *ProcessService) List(ctx context.Context, actor Actor, filter ProcessFilter) ([]model.Process, error) {
	companyID := filter.CompanyID
	if companyID == "" {
		companyID = actor.companyScope()
	}
	if companyID != "" && !actor.CanSeeCompany(companyID) {
		return nil, ErrForbidden
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, fieldError("category", "unknown work-time type %q", filter.Category)
	}
	q := repository.ProcessQuery{
		CompanyID:      companyID,
		ProductionLine: strings.TrimSpace(filter.ProductionLine),
		Category:       filter.Category,
		ActiveOnly:     !filter.IncludeInactive || !actor.Can(CapManageProcesses),
	}
	processes, err := utils.Retry(ctx, s.retry, func(ctx context.Context) ([]model.Process, error) {
		return s.repo.Processes.List(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("load processes: %w", err)
	}
	if processes == nil {
		processes = []model.Process{}
	}
	return processes, nil
}

// normalize validates in and fills a process from it.
func (s *ProcessService) normalize(actor Actor, in ProcessInput, p *model.Process) error {
	companyID := in.CompanyID
	if companyID == "" {
		companyID = actor.CompanyID
	}
	if !actor.CanSeeCompany(companyID) {
		return ErrForbidden
	}
	category := model.WorkCategory(strings.ToLower(string(in.Category)))
	if !category.Valid() {
		return fieldError("category", "must be %q or %q", model.CategoryProduction, model.CategoryNonProduction)
	}
	month, err := utils.NormalizeMonth(in.EffectiveMonth)
	if err != nil {
		return fieldError("effectiveMonth", "%v", err)
	}
	if in.UnitPrice.Valid && in.UnitPrice.Decimal.IsNegative() {
		return fieldError("unitPrice", "must not be negative")
	}
	for _, f := range []struct{ field, value string }{
		{"productionLine", in.ProductionLine},
		{"productName", in.ProductName},
		{"processName", in.ProcessName},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fieldError(f.field, "is required")
		}
	}
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = model.DefaultUnit
	}

	p.CompanyID = companyID
	p.ProductionLine = strings.TrimSpace(in.ProductionLine)
	p.Category = category
	p.ProductName = strings.TrimSpace(in.ProductName)
	p.ProcessName = strings.TrimSpace(in.ProcessName)
	p.Unit = unit
	p.UnitPrice = in.UnitPrice
	p.EffectiveMonth = month
	return nil
}

// checkDuplicate rejects p when another active process of the company has
// the same key.
func (s *ProcessService) checkDuplicate(ctx context.Context, p *model.Process) error {
	live, err := s.repo.Processes.List(ctx, repository.ProcessQuery{CompanyID: p.CompanyID, ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("load processes: %w", err)
	}
	key := p.DuplicateKey()
	for _, other := range live {
		if other.ID != p.ID && other.DuplicateKey() == key {
			return fmt.Errorf("%w: %s already exists", ErrDuplicateProcess, p.DisplayName())
		}
	}
	return nil
}

func (s *ProcessService) Create(ctx context.Context, actor Actor, in ProcessInput) (*model.Process, error) {
	if err := actor.Require(CapManageProcesses); err != nil {
		return nil, err
	}
	p := &model.Process{ID: uuid.NewString(), Active: true}
	if err := s.normalize(actor, in, p); err != nil {
		return nil, err
	}
	if err := s.checkDuplicate(ctx, p); err != nil {
		return nil, err
	}
	if err := s.repo.Processes.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("save process: %w", err)
	}
	s.logger.Info("process created", zap.String("process", p.ID), zap.String("name", p.DisplayName()))
	return p, nil
}

func (s *ProcessService) load(ctx context.Context, actor Actor, id string) (*model.Process, error) {
	if err := actor.Require(CapManageProcesses); err != nil {
		return nil, err
	}
	p, err := s.repo.Processes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanSeeCompany(p.CompanyID) {
		return nil, ErrNotFound
	}
	return p, nil
}

// Update rewrites a process. Items already recorded keep the price they
// were submitted with.
func (s *ProcessService) Update(ctx context.Context, actor Actor, id string, in ProcessInput) (*model.Process, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.CompanyID == "" {
		in.CompanyID = p.CompanyID
	}
	if err := s.normalize(actor, in, p); err != nil {
		return nil, err
	}
	if p.Active {
		if err := s.checkDuplicate(ctx, p); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Processes.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update process: %w", err)
	}
	return p, nil
}

// SetActive deactivates or reactivates a process. Reactivation is rejected
// when an active duplicate appeared in the meantime.
func (s *ProcessService) SetActive(ctx context.Context, actor Actor, id string, active bool) (*model.Process, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.Active == active {
		return p, nil
	}
	if active {
		if err := s.checkDuplicate(ctx, p); err != nil {
			return nil, err
		}
	}
	p.Active = active
	if err := s.repo.Processes.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update process: %w", err)
	}
	s.logger.Info("process active flag changed", zap.String("process", p.ID), zap.Bool("active", active))
	return p, nil
}
