// services/reminder_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lifeplanner-backend/models"
	"lifeplanner-backend/utils"
)

// SubsystemReport counts what one subsystem did during a pass.
type SubsystemReport struct {
	Due     int    `json:"due"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// PassReport summarizes one full evaluation pass.
type PassReport struct {
	PassID     string          `json:"pass_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Events     SubsystemReport `json:"events"`
	Workouts   SubsystemReport `json:"workouts"`
	Daily      SubsystemReport `json:"daily"`
}

func (r PassReport) Sent() int {
	return r.Events.Sent + r.Workouts.Sent + r.Daily.Sent
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (r *SubsystemReport) record(o outcome) {
	switch o {
	case outcomeSent:
		r.Sent++
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
	}
}

// ReminderServiceDeps wires a ReminderService. Guard and Logger are optional.
type ReminderServiceDeps struct {
	Source   ReadSource
	Ledger   Ledger
	Guard    Guard
	Notifier Notifier
	Policy   EventPolicy
	Clock    utils.Clock
	Logger   *zap.Logger
}

// ReminderService evaluates every reminder source against the clock and dispatches what is due.
type ReminderService struct {
	source   ReadSource
	ledger   Ledger
	guard    Guard
	notifier Notifier
	policy   EventPolicy
	clock    utils.Clock
	log      *zap.Logger
}

func NewReminderService(d ReminderServiceDeps) *ReminderService {
	if d.Guard == nil {
		d.Guard = NewMemoryGuard(90*time.Second, 5000)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = utils.NewClock(time.UTC)
	}
	return &ReminderService{
		source:   d.Source,
		ledger:   d.Ledger,
		guard:    d.Guard,
		notifier: d.Notifier,
		policy:   d.Policy,
		clock:    d.Clock,
		log:      d.Logger,
	}
}

// RunPass runs the event, workout and daily subsystems once. A failure in one subsystem is
// recorded in its report and does not stop the others.
func (s *ReminderService) RunPass(ctx context.Context) PassReport {
	now := s.clock.Now()
	report := PassReport{PassID: uuid.NewString(), StartedAt: now}
	log := s.log.With(zap.String("pass_id", report.PassID))

	report.Events = s.runSubsystem(ctx, log, "events", now, s.ProcessEventReminders)
	report.Workouts = s.runSubsystem(ctx, log, "workouts", now, s.ProcessWorkoutReminders)
	report.Daily = s.runSubsystem(ctx, log, "daily", now, s.ProcessDailyReminders)

	report.FinishedAt = s.clock.Now()
	log.Info("reminder pass finished",
		zap.Int("sent", report.Sent()),
		zap.Int("events_due", report.Events.Due),
		zap.Int("workouts_due", report.Workouts.Due),
		zap.Int("daily_due", report.Daily.Due),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report
}

type subsystemFunc func(ctx context.Context, now time.Time) (SubsystemReport, error)

func (s *ReminderService) runSubsystem(ctx context.Context, log *zap.Logger, name string, now time.Time, fn subsystemFunc) (rep SubsystemReport) {
	defer func() {
		if r := recover(); r != nil {
			rep.Error = fmt.Sprintf("panic: %v", r)
			log.Error("reminder subsystem panicked", zap.String("subsystem", name), zap.Any("panic", r))
		}
	}()

	rep, err := fn(ctx, now)
	if err != nil {
		rep.Error = err.Error()
		log.Error("reminder subsystem failed", zap.String("subsystem", name), zap.Error(err))
	}
	return rep
}

// ProcessEventReminders dispatches calendar event reminders due at now under the active policy.
func (s *ReminderService) ProcessEventReminders(ctx context.Context, now time.Time) (SubsystemReport, error) {
	var rep SubsystemReport
	events, err := s.source.UpcomingEvents(ctx, s.policy.Horizon(now))
	if err != nil {
		return rep, err
	}

	type dueEvent struct {
		event models.CalendarEvent
		due   Due
	}
	var due []dueEvent
	owners := newIDSet()
	for _, ev := range events {
		if ev.OwnerID == "" {
			continue
		}
		d, ok := s.policy.Evaluate(now, ev)
		if !ok {
			continue
		}
		due = append(due, dueEvent{event: ev, due: d})
		owners.add(ev.OwnerID)
	}
	rep.Due = len(due)
	if len(due) == 0 {
		return rep, nil
	}

	contacts, err := s.source.Contacts(ctx, owners.list())
	if err != nil {
		return rep, err
	}

	day := utils.DayString(now)
	for _, item := range due {
		ev, kind := item.event, item.due.Kind
		rep.record(s.dispatch(ctx, dispatchItem{
			key:     SendKey{SubjectID: ev.ID, Kind: kind, Day: day},
			ownerID: ev.OwnerID,
			phone:   contacts[ev.OwnerID].WhatsApp,
			now:     now,
			compose: func() string { return ComposeEventMessage(ev, kind) },
		}))
	}
	return rep, nil
}

// ProcessWorkoutReminders dispatches workout slots scheduled for the current minute.
func (s *ReminderService) ProcessWorkoutReminders(ctx context.Context, now time.Time) (SubsystemReport, error) {
	var rep SubsystemReport
	slots, err := s.source.ActiveWorkoutSlots(ctx, utils.ISOWeekday(now))
	if err != nil {
		return rep, err
	}

	var due []models.WorkoutScheduleSlot
	owners, routineIDs := newIDSet(), newIDSet()
	for _, slot := range slots {
		if _, ok := EvaluateWorkoutSlot(now, slot); !ok || slot.OwnerID == "" {
			continue
		}
		due = append(due, slot)
		owners.add(slot.OwnerID)
		if slot.WorkoutRef != nil {
			routineIDs.add(*slot.WorkoutRef)
		}
	}
	rep.Due = len(due)
	if len(due) == 0 {
		return rep, nil
	}

	var routines map[string]models.WorkoutRoutine
	var contacts map[string]models.Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		routines, err = s.source.WorkoutRoutines(gctx, routineIDs.list())
		return err
	})
	g.Go(func() error {
		var err error
		contacts, err = s.source.Contacts(gctx, owners.list())
		return err
	})
	if err := g.Wait(); err != nil {
		return rep, err
	}

	day, clock := utils.DayString(now), utils.TimeString(now)
	for _, slot := range due {
		var routine *models.WorkoutRoutine
		if slot.WorkoutRef != nil {
			if r, ok := routines[*slot.WorkoutRef]; ok {
				routine = &r
			}
		}
		profile := contacts[slot.OwnerID]
		rep.record(s.dispatch(ctx, dispatchItem{
			key:      SendKey{SubjectID: slot.ID, Kind: models.KindWorkoutExactTime, Day: day},
			ownerID:  slot.OwnerID,
			phone:    profile.WhatsApp,
			guardKey: GuardKey("workout", slot.OwnerID, day, clock),
			now:      now,
			compose:  func() string { return ComposeWorkoutMessage(slot, routine, profile) },
		}))
	}
	return rep, nil
}

// ProcessDailyReminders dispatches user-defined daily reminders set for the current minute.
func (s *ReminderService) ProcessDailyReminders(ctx context.Context, now time.Time) (SubsystemReport, error) {
	var rep SubsystemReport
	reminders, err := s.source.ActiveDailyReminders(ctx)
	if err != nil {
		return rep, err
	}

	var due []models.DailyReminder
	owners := newIDSet()
	for _, r := range reminders {
		if _, ok := EvaluateDailyReminder(now, r); !ok || r.OwnerID == "" {
			continue
		}
		due = append(due, r)
		owners.add(r.OwnerID)
	}
	rep.Due = len(due)
	if len(due) == 0 {
		return rep, nil
	}

	contacts, err := s.source.Contacts(ctx, owners.list())
	if err != nil {
		return rep, err
	}

	day, clock := utils.DayString(now), utils.TimeString(now)
	for _, r := range due {
		rep.record(s.dispatch(ctx, dispatchItem{
			key:      SendKey{SubjectID: r.ID, Kind: models.KindDailyExactTime, Day: day},
			ownerID:  r.OwnerID,
			phone:    contacts[r.OwnerID].WhatsApp,
			guardKey: GuardKey("daily:"+r.ID, r.OwnerID, day, clock),
			now:      now,
			compose:  func() string { return ComposeDailyMessage(r) },
		}))
	}
	return rep, nil
}

type dispatchItem struct {
	key      SendKey
	ownerID  string
	phone    string
	guardKey string
	now      time.Time
	compose  func() string
}

// dispatch claims the ledger row first and sends only if the claim was new.
// A failed send releases the claim so a later tick inside the window can retry.
func (s *ReminderService) dispatch(ctx context.Context, it dispatchItem) outcome {
	log := s.log.With(
		zap.String("subject_id", it.key.SubjectID),
		zap.String("kind", string(it.key.Kind)),
		zap.String("day", it.key.Day),
		zap.String("owner_id", it.ownerID),
	)

	phone := utils.NormalizePhone(it.phone)
	if phone == "" {
		log.Info("no whatsapp number on file, skipping")
		return outcomeSkipped
	}
	// The gateway is the authority on reachability; a malformed number is only flagged.
	if !utils.ValidatePhone(phone) {
		log.Warn("whatsapp number does not look international, sending anyway", zap.String("phone", phone))
	}

	if it.guardKey != "" {
		ok, err := s.guard.Acquire(ctx, it.guardKey)
		if err != nil {
			log.Warn("send guard unavailable, relying on ledger", zap.Error(err))
		} else if !ok {
			log.Debug("send guard already held", zap.String("guard_key", it.guardKey))
			return outcomeSkipped
		}
	}

	claimed, err := s.ledger.MarkSent(ctx, it.key, it.ownerID, it.now)
	if err != nil {
		log.Error("could not claim reminder in ledger", zap.Error(err))
		s.forgetGuard(ctx, log, it.guardKey)
		return outcomeFailed
	}
	if !claimed {
		log.Debug("reminder already sent")
		return outcomeSkipped
	}

	res, err := s.notifier.Send(ctx, phone, it.compose())
	if err != nil {
		log.Error("failed to send reminder",
			zap.Int("status_code", res.StatusCode),
			zap.Error(err),
		)
		if rerr := s.ledger.Release(context.WithoutCancel(ctx), it.key); rerr != nil {
			log.Error("could not release ledger claim after failed send", zap.Error(rerr))
		}
		s.forgetGuard(ctx, log, it.guardKey)
		return outcomeFailed
	}

	log.Info("reminder sent", zap.Int("status_code", res.StatusCode))
	return outcomeSent
}

func (s *ReminderService) forgetGuard(ctx context.Context, log *zap.Logger, key string) {
	if key == "" {
		return
	}
	if err := s.guard.Forget(context.WithoutCancel(ctx), key); err != nil {
		log.Warn("could not clear send guard", zap.Error(err))
	}
}

// idSet collects ids in first-seen order.
type idSet struct {
	seen  map[string]struct{}
	order []string
}

func newIDSet() *idSet { return &idSet{seen: make(map[string]struct{})} }

func (s *idSet) add(id string) {
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *idSet) list() []string { return s.order }

// PruneLedger removes ledger records older than the retention period.
func (s *ReminderService) PruneLedger(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.clock.Now().Add(-retention)
	removed, err := s.ledger.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Info("pruned reminder ledger", zap.Int64("removed", removed), zap.Time("before", cutoff))
	return removed, nil
}
