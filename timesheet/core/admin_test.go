package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/utils"
)

func TestCreateCompany(t *testing.T) {
	s := newFixture(t)
	svc := NewAdminService(s.Repository(), zap.NewNop())
	ctx := context.Background()

	c, err := svc.CreateCompany(ctx, root, CompanyInput{Name: " Initech "})
	require.NoError(t, err)
	assert.Equal(t, "Initech", c.Name)
	assert.True(t, c.Active)

	_, err = svc.CreateCompany(ctx, root, CompanyInput{Name: "Acme"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CreateCompany(ctx, admin, CompanyInput{Name: "Umbrella"})
	assert.ErrorIs(t, err, ErrForbidden)

	all, err := svc.ListCompanies(ctx, root)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	own, err := svc.ListCompanies(ctx, admin)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "Acme", own[0].Name)
}

func TestCreateUser(t *testing.T) {
	s := newFixture(t)
	svc := NewAdminService(s.Repository(), zap.NewNop())
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, admin, UserInput{
		Username: "zhaoliu", Name: "Zhao Liu", Password: "long enough", Role: model.RoleEmployee,
		SupervisorID: utils.Ptr(supervisorID), SectionChiefID: utils.Ptr(chiefID),
	})
	require.NoError(t, err)
	assert.Equal(t, companyID, u.CompanyID)
	assert.True(t, u.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("long enough")))

	base := func() UserInput {
		return UserInput{Username: "sunqi", Name: "Sun Qi", Password: "long enough", Role: model.RoleEmployee}
	}
	tests := []struct {
		name  string
		actor Actor
		in    func() UserInput
		want  error
	}{
		{name: "supervisor cannot manage users", actor: supervisor, in: base, want: ErrForbidden},
		{name: "taken username", actor: admin, in: func() UserInput { in := base(); in.Username = "zhaoliu"; return in }, want: ErrValidation},
		{name: "short password", actor: admin, in: func() UserInput { in := base(); in.Password = "short"; return in }, want: ErrValidation},
		{name: "unknown role", actor: admin, in: func() UserInput { in := base(); in.Role = "owner"; return in }, want: ErrValidation},
		{name: "admin cannot mint super admins", actor: admin, in: func() UserInput { in := base(); in.Role = model.RoleSuperAdmin; return in }, want: ErrForbidden},
		{name: "other company", actor: admin, in: func() UserInput { in := base(); in.CompanyID = otherCompanyID; return in }, want: ErrForbidden},
		{name: "unknown company", actor: root, in: func() UserInput { in := base(); in.CompanyID = "nope"; return in }, want: ErrValidation},
		{name: "approver lacks the stage", actor: admin, in: func() UserInput { in := base(); in.SupervisorID = utils.Ptr(employeeID); return in }, want: ErrValidation},
		{name: "chief in the supervisor slot", actor: admin, in: func() UserInput { in := base(); in.SupervisorID = utils.Ptr(chiefID); return in }, want: ErrValidation},
		{name: "unknown approver", actor: admin, in: func() UserInput { in := base(); in.SectionChiefID = utils.Ptr("ghost"); return in }, want: ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, tt.actor, tt.in())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdateUser(t *testing.T) {
	s := newFixture(t)
	svc := NewAdminService(s.Repository(), zap.NewNop())
	ctx := context.Background()

	role := model.RoleSupervisor
	u, err := svc.UpdateUser(ctx, admin, employeeID, UserUpdate{Role: &role, SupervisorID: utils.Ptr("")})
	require.NoError(t, err)
	assert.Equal(t, model.RoleSupervisor, u.Role)
	assert.Nil(t, u.SupervisorID)
	assert.Equal(t, chiefID, utils.Deref(u.SectionChiefID))

	_, err = svc.UpdateUser(ctx, admin, adminID, UserUpdate{Active: utils.Ptr(false)})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.UpdateUser(ctx, admin, rootID, UserUpdate{Name: utils.Ptr("Renamed")})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.UpdateUser(ctx, admin, employeeID, UserUpdate{Password: utils.Ptr("short")})
	assert.ErrorIs(t, err, ErrValidation)

	u, err = svc.UpdateUser(ctx, admin, employeeID, UserUpdate{Active: utils.Ptr(false), Password: utils.Ptr("a brand new one")})
	require.NoError(t, err)
	assert.False(t, u.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("a brand new one")))

	users, err := svc.ListUsers(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, users, 5)
	_, err = svc.ListUsers(ctx, admin, otherCompanyID)
	assert.ErrorIs(t, err, ErrForbidden)
}
