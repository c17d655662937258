package utils

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetryRecoversFromTransientError(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastPolicy, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("query: %w", driver.ErrBadConn)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("record not found")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("dial tcp: i/o timeout")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{Attempts: 5, BaseDelay: time.Hour}
	calls := 0
	_, err := Retry(ctx, policy, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("connection refused")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"invalid conn", mysql.ErrInvalidConn, true},
		{"lock wait timeout", &mysql.MySQLError{Number: 1205}, true},
		{"duplicate key", &mysql.MySQLError{Number: 1062}, false},
		{"network message", errors.New("Failed to fetch"), true},
		{"cancelled", context.Canceled, false},
		{"validation", errors.New("quantity must be positive"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
