package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
)

type CompanyInput struct {
	Name string `json:"name" binding:"required,max=200"`
}

type UserInput struct {
	CompanyID      string     `json:"companyId"`
	Username       string     `json:"username" binding:"required,max=100"`
	Name           string     `json:"name" binding:"required,max=200"`
	Password       string     `json:"password" binding:"required,min=8"`
	Role           model.Role `json:"role" binding:"required"`
	SupervisorID   *string    `json:"supervisorId"`
	SectionChiefID *string    `json:"sectionChiefId"`
}

// UserUpdate changes only the fields that are set.
type UserUpdate struct {
	Name           *string     `json:"name"`
	Role           *model.Role `json:"role"`
	SupervisorID   *string     `json:"supervisorId"`
	SectionChiefID *string     `json:"sectionChiefId"`
	Active         *bool       `json:"active"`
	Password       *string     `json:"password"`
}

type AdminService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

func NewAdminService(repo *repository.Repository, logger *zap.Logger) *AdminService {
	return &AdminService{repo: repo, logger: logger.Named("admin")}
}

func (s *AdminService) CreateCompany(ctx context.Context, actor Actor, in CompanyInput) (*model.Company, error) {
	if err := actor.Require(CapManageCompanies); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fieldError("name", "is required")
	}
	_, err := s.repo.Companies.FindByName(ctx, name)
	switch {
	case err == nil:
		return nil, fieldError("name", "company %q already exists", name)
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("check company name: %w", err)
	}

	c := &model.Company{ID: uuid.NewString(), Name: name, Active: true}
	if err := s.repo.Companies.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("save company: %w", err)
	}
	s.logger.Info("company created", zap.String("company", c.ID), zap.String("name", name))
	return c, nil
}

// ListCompanies returns every company to a super admin and the actor's own
// company to everyone else.
func (s *AdminService) ListCompanies(ctx context.Context, actor Actor) ([]model.Company, error) {
	if actor.IsSuperAdmin() {
		return s.repo.Companies.List(ctx)
	}
	c, err := s.repo.Companies.FindByID(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	return []model.Company{*c}, nil
}

// checkRole stops admins from granting roles at or above their own.
func checkRole(actor Actor, role model.Role) error {
	if !role.Valid() {
		return fieldError("role", "unknown role %q", role)
	}
	if role == model.RoleSuperAdmin && !actor.IsSuperAdmin() {
		return ErrForbidden
	}
	return nil
}

// checkApprover confirms id names an active user of the company holding
// the given approval capability.
func (s *AdminService) checkApprover(ctx context.Context, field, companyID string, id *string, capability Capability) error {
	if id == nil || *id == "" {
		return nil
	}
	u, err := s.repo.Users.FindByID(ctx, *id)
	if repository.IsNotFound(err) {
		return fieldError(field, "user %s does not exist", *id)
	}
	if err != nil {
		return fmt.Errorf("load approver: %w", err)
	}
	if u.CompanyID != companyID || !u.Active || !Can(u.Role, capability) {
		return fieldError(field, "%s cannot approve at this stage", u.Name)
	}
	return nil
}

func (s *AdminService) checkApprovers(ctx context.Context, companyID string, supervisorID, chiefID *string) error {
	if err := s.checkApprover(ctx, "supervisorId", companyID, supervisorID, CapApproveSupervisor); err != nil {
		return err
	}
	return s.checkApprover(ctx, "sectionChiefId", companyID, chiefID, CapApproveSectionChief)
}

func emptyToNil(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return id
}

func (s *AdminService) CreateUser(ctx context.Context, actor Actor, in UserInput) (*model.User, error) {
	if err := actor.Require(CapManageUsers); err != nil {
		return nil, err
	}
	companyID := in.CompanyID
	if companyID == "" {
		companyID = actor.CompanyID
	}
	if !actor.CanSeeCompany(companyID) {
		return nil, ErrForbidden
	}
	if _, err := s.repo.Companies.FindByID(ctx, companyID); err != nil {
		if repository.IsNotFound(err) {
			return nil, fieldError("companyId", "company %s does not exist", companyID)
		}
		return nil, err
	}
	if err := checkRole(actor, in.Role); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fieldError("username", "is required")
	}
	if len(in.Password) < 8 {
		return nil, fieldError("password", "must be at least 8 characters")
	}
	_, err := s.repo.Users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, fieldError("username", "%q is taken", username)
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("check username: %w", err)
	}
	supervisorID, chiefID := emptyToNil(in.SupervisorID), emptyToNil(in.SectionChiefID)
	if err := s.checkApprovers(ctx, companyID, supervisorID, chiefID); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:             uuid.NewString(),
		CompanyID:      companyID,
		Username:       username,
		Name:           strings.TrimSpace(in.Name),
		PasswordHash:   hash,
		Role:           in.Role,
		SupervisorID:   supervisorID,
		SectionChiefID: chiefID,
		Active:         true,
	}
	if err := s.repo.Users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	s.logger.Info("user created", zap.String("user", u.ID), zap.String("role", string(u.Role)), zap.String("by", actor.UserID))
	return u, nil
}

func (s *AdminService) ListUsers(ctx context.Context, actor Actor, companyID string) ([]model.User, error) {
	if err := actor.Require(CapManageUsers); err != nil {
		return nil, err
	}
	if companyID == "" {
		companyID = actor.companyScope()
	}
	if companyID != "" && !actor.CanSeeCompany(companyID) {
		return nil, ErrForbidden
	}
	users, err := s.repo.Users.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// UpdateUser applies in to a user. Signed-in sessions pick the change up
// at their next revalidation.
func (s *AdminService) UpdateUser(ctx context.Context, actor Actor, id string, in UserUpdate) (*model.User, error) {
	if err := actor.Require(CapManageUsers); err != nil {
		return nil, err
	}
	u, err := s.repo.Users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanSeeCompany(u.CompanyID) {
		return nil, ErrNotFound
	}
	if u.Role == model.RoleSuperAdmin && !actor.IsSuperAdmin() {
		return nil, ErrForbidden
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fieldError("name", "is required")
		}
		u.Name = name
	}
	if in.Role != nil {
		if err := checkRole(actor, *in.Role); err != nil {
			return nil, err
		}
		u.Role = *in.Role
	}
	if in.SupervisorID != nil {
		u.SupervisorID = emptyToNil(in.SupervisorID)
	}
	if in.SectionChiefID != nil {
		u.SectionChiefID = emptyToNil(in.SectionChiefID)
	}
	if err := s.checkApprovers(ctx, u.CompanyID, u.SupervisorID, u.SectionChiefID); err != nil {
		return nil, err
	}
	if in.Active != nil {
		if !*in.Active && u.ID == actor.UserID {
			return nil, fieldError("active", "you cannot disable your own account")
		}
		u.Active = *in.Active
	}
	if in.Password != nil {
		if len(*in.Password) < 8 {
			return nil, fieldError("password", "must be at least 8 characters")
		}
		hash, err := HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}

	if err := s.repo.Users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.logger.Info("user updated", zap.String("user", u.ID), zap.String("by", actor.UserID))
	return u, nil
}
