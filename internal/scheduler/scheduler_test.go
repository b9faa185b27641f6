package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdxevents/internal/recurrence"
)

type fakeRoller struct {
	mu    sync.Mutex
	days  []recurrence.Date
	moved int
	err   error
}

func (f *fakeRoller) RollForward(_ context.Context, today recurrence.Date) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, today)
	return f.moved, f.err
}

func (f *fakeRoller) calls() []recurrence.Date {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recurrence.Date(nil), f.days...)
}

func portland(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(&fakeRoller{}, "every night", time.UTC, nil)
	assert.Error(t, err)

	_, err = New(nil, "5 0 * * *", time.UTC, nil)
	assert.Error(t, err)
}

func TestRunOnceUsesLocalDate(t *testing.T) {
	roller := &fakeRoller{moved: 3}
	// 06:00 UTC on Jan 10 is still Jan 9 in Portland.
	now := func() time.Time { return time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC) }

	s, err := New(roller, "5 0 * * *", portland(t), now)
	require.NoError(t, err)

	moved, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, moved)
	assert.Equal(t, []recurrence.Date{recurrence.NewDate(2024, time.January, 9)}, roller.calls())
	assert.Equal(t, now(), s.LastRun())
}

func TestRunOnceError(t *testing.T) {
	roller := &fakeRoller{err: errors.New("db locked")}
	s, err := New(roller, "5 0 * * *", time.UTC, nil)
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	assert.EqualError(t, err, "db locked")
	assert.True(t, s.LastRun().IsZero())
}

func TestStartRunsCatchUpAndSchedules(t *testing.T) {
	roller := &fakeRoller{}
	now := func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }

	s, err := New(roller, "5 0 * * *", time.UTC, now)
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	assert.Len(t, roller.calls(), 1)
	assert.False(t, s.Next().IsZero())

	assert.Error(t, s.Start(ctx))
}
