package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"piecework.app/piecework/security"
	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository/repotest"
)

var testSecret = []byte("test-secret-test-secret-test-secret")

func seedLogin(t *testing.T, s *repotest.Store, id, username, password string, role model.Role, active bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	s.SeedUser(model.User{ID: id, CompanyID: companyID, Username: username, Name: "王五", PasswordHash: string(hash), Role: role, Active: active})
}

func newAuthService(s *repotest.Store, now *time.Time) *AuthService {
	svc := NewAuthService(s.Repository(), AuthSettings{Secret: testSecret}, zap.NewNop())
	svc.now = func() time.Time { return *now }
	return svc
}

func TestLogin(t *testing.T) {
	s := newFixture(t)
	seedLogin(t, s, "u-wang", "wangwu", "correct horse", model.RoleEmployee, true)
	seedLogin(t, s, "u-gone", "gone", "correct horse", model.RoleEmployee, false)
	now := t0
	svc := newAuthService(s, &now)
	ctx := context.Background()

	session, err := svc.Login(ctx, " wangwu ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "u-wang", session.User.ID)
	assert.Equal(t, t0.Add(DefaultSessionTTL), session.ExpiresAt)
	assert.Equal(t, Capabilities(model.RoleEmployee), session.Capabilities)
	require.NotNil(t, session.User.LastLoginAt)

	claims, err := security.ParseSessionToken(session.Token, testSecret, t0)
	require.NoError(t, err)
	assert.Equal(t, "u-wang", claims.UserID)
	assert.Equal(t, string(model.RoleEmployee), claims.Role)

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{name: "wrong password", username: "wangwu", password: "battery staple", want: ErrInvalidCredentials},
		{name: "unknown user", username: "nobody", password: "correct horse", want: ErrInvalidCredentials},
		{name: "disabled", username: "gone", password: "correct horse", want: ErrAccountDisabled},
		{name: "blank", username: "", password: "", want: ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateRevalidatesAfterWindow(t *testing.T) {
	s := newFixture(t)
	seedLogin(t, s, "u-wang", "wangwu", "correct horse", model.RoleEmployee, true)
	now := t0
	svc := newAuthService(s, &now)
	ctx := context.Background()

	session, err := svc.Login(ctx, "wangwu", "correct horse")
	require.NoError(t, err)

	now = t0.Add(time.Hour)
	actor, refreshed, err := svc.Validate(ctx, session.Token)
	require.NoError(t, err)
	assert.Empty(t, refreshed)
	assert.Equal(t, model.RoleEmployee, actor.Role)

	// promote the user; the old token still says employee until revalidated
	user, _ := s.Repository().Users.FindByID(ctx, "u-wang")
	user.Role = model.RoleSupervisor
	require.NoError(t, s.Repository().Users.Update(ctx, user))

	now = t0.Add(25 * time.Hour)
	actor, refreshed, err = svc.Validate(ctx, session.Token)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed)
	assert.Equal(t, model.RoleSupervisor, actor.Role)

	claims, err := security.ParseSessionToken(refreshed, testSecret, now)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), claims.ValidatedAt)
	assert.Equal(t, session.ExpiresAt.Unix(), claims.ExpiresAt.Unix())

	actor, again, err := svc.Validate(ctx, refreshed)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, model.RoleSupervisor, actor.Role)
}

func TestValidateRejects(t *testing.T) {
	s := newFixture(t)
	seedLogin(t, s, "u-wang", "wangwu", "correct horse", model.RoleEmployee, true)
	now := t0
	svc := newAuthService(s, &now)
	ctx := context.Background()

	session, err := svc.Login(ctx, "wangwu", "correct horse")
	require.NoError(t, err)

	now = t0.Add(DefaultSessionTTL + time.Minute)
	_, _, err = svc.Validate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, _, err = svc.Validate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrSessionExpired)

	now = t0.Add(48 * time.Hour)
	user, _ := s.Repository().Users.FindByID(ctx, "u-wang")
	user.Active = false
	require.NoError(t, s.Repository().Users.Update(ctx, user))
	_, _, err = svc.Validate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestChangePassword(t *testing.T) {
	s := newFixture(t)
	seedLogin(t, s, "u-wang", "wangwu", "correct horse", model.RoleEmployee, true)
	now := t0
	svc := newAuthService(s, &now)
	ctx := context.Background()
	actor := Actor{UserID: "u-wang", Role: model.RoleEmployee, CompanyID: companyID}

	assert.ErrorIs(t, svc.ChangePassword(ctx, actor, "correct horse", "short"), ErrValidation)
	assert.ErrorIs(t, svc.ChangePassword(ctx, actor, "wrong", "a much longer one"), ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, actor, "correct horse", "a much longer one"))

	_, err := svc.Login(ctx, "wangwu", "a much longer one")
	assert.NoError(t, err)
}
