package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lifeplanner-backend/models"
	"lifeplanner-backend/utils"
)

type blockingRunner struct {
	calls   atomic.Int32
	release chan struct{}
	gotCtx  chan context.Context
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{}), gotCtx: make(chan context.Context, 16)}
}

func (r *blockingRunner) RunPass(ctx context.Context) PassReport {
	r.calls.Add(1)
	r.gotCtx <- ctx
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return PassReport{PassID: "p"}
}

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) RunPass(ctx context.Context) PassReport {
	r.calls.Add(1)
	return PassReport{PassID: "p"}
}

type panickingRunner struct{}

func (panickingRunner) RunPass(ctx context.Context) PassReport { panic("boom") }

func TestScheduler_TickSkipsWhileRunning(t *testing.T) {
	runner := newBlockingRunner()
	s := NewScheduler(runner, time.Hour, time.UTC, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := s.Tick()
		done <- err
	}()
	<-runner.gotCtx
	assert.True(t, s.Status().Running)

	_, err := s.Tick()
	assert.ErrorIs(t, err, ErrPassInProgress)
	_, err = s.Tick()
	assert.ErrorIs(t, err, ErrPassInProgress)

	close(runner.release)
	require.NoError(t, <-done)

	st := s.Status()
	assert.False(t, st.Running)
	assert.Equal(t, int64(1), st.Passes)
	assert.Equal(t, int64(2), st.Skipped)
	assert.Equal(t, int32(1), runner.calls.Load(), "skipped ticks are not queued")
	require.NotNil(t, st.LastPass)
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Hour, time.UTC, zap.NewNop())

	stop := s.Start()
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))

	_, err := s.Tick()
	assert.ErrorIs(t, err, ErrSchedulerStopped)
}

func TestScheduler_StopCancelsPassAfterDeadline(t *testing.T) {
	runner := newBlockingRunner()
	s := NewScheduler(runner, time.Hour, time.UTC, zap.NewNop())

	stop := s.Start()
	passCtx := <-runner.gotCtx

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-passCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("in-flight pass was not cancelled")
	}
	assert.ErrorIs(t, stop(context.Background()), context.DeadlineExceeded, "stop is idempotent")
}

func TestScheduler_PanicDoesNotWedgeLoop(t *testing.T) {
	s := NewScheduler(panickingRunner{}, time.Hour, time.UTC, zap.NewNop())

	_, err := s.Tick()
	assert.Error(t, err)
	assert.False(t, s.Status().Running)

	_, err = s.Tick()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPassInProgress)
}

func TestScheduler_AddFunc(t *testing.T) {
	s := NewScheduler(&countingRunner{}, time.Hour, time.UTC, zap.NewNop())
	assert.NoError(t, s.AddFunc("@daily", "prune", func(ctx context.Context) error { return nil }))
	assert.Error(t, s.AddFunc("every tuesday-ish", "bad", func(ctx context.Context) error { return nil }))
}

// A pass blocked on the repository spans several intervals; the overlapping ticks are dropped
// and the due reminder is delivered exactly once.
func TestScheduler_SlowPassSendsOnce(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2024, 6, 10, 6, 25, 0, 0, loc)
	source := &fakeSource{
		events:   []models.CalendarEvent{eventOn("2024-06-11", nil)},
		contacts: map[string]models.Profile{"owner-1": ana},
		block:    make(chan struct{}),
	}
	notifier := &recordingNotifier{}
	svc := NewReminderService(ReminderServiceDeps{
		Source:   source,
		Ledger:   newMemLedger(),
		Notifier: notifier,
		Policy:   dayBefore(t),
		Clock:    utils.NewClockWithSource(loc, func() time.Time { return now }),
	})

	s := NewScheduler(svc, time.Second, loc, zap.NewNop())
	stop := s.Start()
	defer stop(context.Background())

	require.Eventually(t, func() bool { return s.Status().Skipped >= 2 }, 5*time.Second, 20*time.Millisecond)
	assert.Empty(t, notifier.Sent())

	close(source.block)
	require.Eventually(t, func() bool { return s.Status().Passes >= 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))

	assert.Len(t, notifier.Sent(), 1)
}
