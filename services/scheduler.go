package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var ErrSchedulerStopped = errors.New("reminder scheduler stopped")

// PassRunner executes one evaluation pass.
type PassRunner interface {
	RunPass(ctx context.Context) PassReport
}

// SchedulerStatus is a point-in-time view of the poll loop.
type SchedulerStatus struct {
	Running  bool        `json:"running"`
	Interval string      `json:"interval"`
	Passes   int64       `json:"passes"`
	Skipped  int64       `json:"skipped"`
	LastPass *PassReport `json:"last_pass,omitempty"`
}

// Scheduler drives passes on a fixed interval. A tick that fires while a pass is still running
// is dropped, never queued.
type Scheduler struct {
	runner   PassRunner
	interval time.Duration
	log      *zap.Logger
	cron     *cron.Cron

	running atomic.Bool
	passes  atomic.Int64
	skipped atomic.Int64

	mu      sync.Mutex
	stopped bool
	last    *PassReport
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
	stopErr   error
}

func NewScheduler(runner PassRunner, interval time.Duration, loc *time.Location, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log.Sugar()}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		log:      log,
		cron:     cron.New(cron.WithLocation(loc), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AddFunc registers a maintenance job on the scheduler's cron, e.g. "@daily".
func (s *Scheduler) AddFunc(spec, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := fn(s.ctx); err != nil {
			s.log.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	return nil
}

// Start runs one pass immediately and then one per interval. The returned function stops new
// ticks and waits for an in-flight pass; if ctx expires first the pass is cancelled.
func (s *Scheduler) Start() func(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.Tick() }))
		s.cron.Start()
		go s.Tick()
		s.log.Info("reminder scheduler started", zap.Duration("interval", s.interval))
	})
	return s.stop
}

func (s *Scheduler) stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		cronDone := s.cron.Stop()
		done := make(chan struct{})
		go func() {
			<-cronDone.Done()
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			s.log.Info("reminder scheduler stopped")
		case <-ctx.Done():
			s.stopErr = ctx.Err()
			s.log.Warn("reminder scheduler stop timed out, cancelling in-flight pass", zap.Error(ctx.Err()))
		}
		s.cancel()
	})
	return s.stopErr
}

// Tick runs one pass unless one is already running, in which case it returns ErrPassInProgress.
func (s *Scheduler) Tick() (report PassReport, err error) {
	if !s.running.CompareAndSwap(false, true) {
		n := s.skipped.Add(1)
		s.log.Warn("previous reminder pass still running, skipping tick", zap.Int64("skipped_total", n))
		return PassReport{}, ErrPassInProgress
	}
	defer s.running.Store(false)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return PassReport{}, ErrSchedulerStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("reminder pass panicked", zap.Any("panic", r))
			err = fmt.Errorf("reminder pass panicked: %v", r)
		}
	}()

	report = s.runner.RunPass(s.ctx)
	s.passes.Add(1)

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()
	return report, nil
}

func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	return SchedulerStatus{
		Running:  s.running.Load(),
		Interval: s.interval.String(),
		Passes:   s.passes.Load(),
		Skipped:  s.skipped.Load(),
		LastPass: last,
	}
}

// cronLogger routes cron's logr-style calls into zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
