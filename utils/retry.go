package utils

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	Attempts:  3,
	BaseDelay: 200 * time.Millisecond,
	MaxDelay:  2 * time.Second,
}

// Retry runs fn until it succeeds, returns a non-transient error, the
// attempts are exhausted or ctx is done. The delay doubles after every
// failed attempt, capped at MaxDelay.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := policy.BaseDelay

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil || !IsTransient(err) || attempt == attempts {
			return result, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, errors.Join(err, ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return result, err
}

var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no such host",
	"failed to fetch",
	"network",
	"timeout",
}

// MySQL server errors worth another attempt: lock wait timeout, deadlock,
// too many connections and lost connection.
var transientMySQLCodes = map[uint16]struct{}{
	1040: {},
	1205: {},
	1213: {},
	2006: {},
	2013: {},
}

// IsTransient classifies err as a network or backend timeout failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		_, ok := transientMySQLCodes[myErr.Number]
		return ok
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
