package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"piecework.app/piecework/timesheet/model"
)

type recordingNotifier struct {
	mu     sync.Mutex
	errors []string
}

func (n *recordingNotifier) Info(string) error { return nil }

func (n *recordingNotifier) Error(msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
	return nil
}

func TestSweeperRunOnce(t *testing.T) {
	s := newFixture(t)
	s.SeedRecycleEntry(model.RecycleBinEntry{ID: "old", ExpiresAt: t0.Add(-time.Hour)})
	s.SeedRecycleEntry(model.RecycleBinEntry{ID: "new", ExpiresAt: t0.Add(time.Hour)})

	notifier := &recordingNotifier{}
	sw := NewSweeper(newRecycleService(s), notifier, zap.NewNop())
	sw.now = func() time.Time { return t0 }

	n, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, s.RecycleEntries(), 1)
	assert.Empty(t, notifier.errors)
}

func TestSweeperReportsFailure(t *testing.T) {
	s := newFixture(t)
	s.Fail["RecycleBin.DeleteExpired"] = errors.New("connection refused")
	s.Fail["Privileged.RecycleBin.DeleteExpired"] = errors.New("connection refused")

	notifier := &recordingNotifier{}
	sw := NewSweeper(newRecycleService(s), notifier, zap.NewNop())

	_, err := sw.RunOnce(context.Background())
	assert.Error(t, err)
	require.Len(t, notifier.errors, 1)
	assert.Contains(t, notifier.errors[0], "connection refused")
}

func TestSweeperStartRejectsBadSchedule(t *testing.T) {
	s := newFixture(t)
	sw := NewSweeper(newRecycleService(s), nil, zap.NewNop())
	assert.Error(t, sw.Start("every now and then"))
}

func TestSweeperStartRunsImmediately(t *testing.T) {
	s := newFixture(t)
	s.SeedRecycleEntry(model.RecycleBinEntry{ID: "old", ExpiresAt: time.Now().Add(-time.Hour)})
	sw := NewSweeper(newRecycleService(s), nil, zap.NewNop())

	require.NoError(t, sw.Start("@every 1h"))
	defer sw.Stop()
	assert.Empty(t, s.RecycleEntries())
}
