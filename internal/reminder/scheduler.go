package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teamtrack/internal/config"
	"github.com/teamtrack/internal/domain"
)

// Store persists reminders so a restart can re-arm them.
type Store interface {
	CreateReminder(ctx context.Context, rem domain.Reminder) error
	ListPendingReminders(ctx context.Context) ([]domain.Reminder, error)
	UpdateReminderStatus(ctx context.Context, reminderID string, status domain.ReminderStatus) error
	CancelPendingForEvent(ctx context.Context, eventID string) ([]string, error)
	GetScheduledEvent(ctx context.Context, eventID string) (*domain.ScheduledEvent, error)
}

// Notifier receives due reminders.
type Notifier interface {
	ReminderDue(ctx context.Context, event domain.ScheduledEvent, offset time.Duration, userID, teamID string)
}

// Scheduler arranges reminders at fixed offsets before a scheduled event's
// start. Each reminder is a persisted due-at row plus, while this process is
// alive, an in-memory timer that can be cancelled when the event is deleted
// or rescheduled. Recover re-arms pending rows on startup, and a rescan loop
// picks up rows created by other instances.
type Scheduler struct {
	store    Store
	notifier Notifier
	offsets  []time.Duration
	rescan   time.Duration
	fireLate bool
	logger   *slog.Logger

	// now is replaceable in tests.
	now func() time.Time

	mu     sync.Mutex
	timers map[string]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new reminder scheduler
func NewScheduler(store Store, notifier Notifier, cfg *config.ReminderConfig, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    store,
		notifier: notifier,
		offsets:  cfg.Offsets,
		rescan:   cfg.RescanInterval,
		fireLate: cfg.FireOverdueOnStart,
		logger:   logger,
		now:      time.Now,
		timers:   make(map[string]context.CancelFunc),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ScheduleReminders creates one reminder per configured offset whose fire
// time has not already passed. Elapsed offsets are skipped entirely and
// never fire.
func (s *Scheduler) ScheduleReminders(ctx context.Context, event domain.ScheduledEvent, userID, teamID string) error {
	now := s.now()
	scheduled := 0
	for _, offset := range s.offsets {
		dueAt := event.StartAt.Add(-offset)
		if !dueAt.After(now) {
			s.logger.Info("reminder offset already elapsed, skipping",
				"event_id", event.ID,
				"offset", offset,
			)
			continue
		}

		rem := domain.Reminder{
			ID:        uuid.New().String(),
			EventID:   event.ID,
			UserID:    userID,
			TeamID:    teamID,
			Offset:    offset,
			DueAt:     dueAt,
			Status:    domain.ReminderPending,
			CreatedAt: now,
		}
		if err := s.store.CreateReminder(ctx, rem); err != nil {
			return fmt.Errorf("persisting reminder: %w", err)
		}
		s.arm(rem)
		scheduled++
	}

	s.logger.Info("reminders scheduled",
		"event_id", event.ID,
		"scheduled", scheduled,
		"offsets", len(s.offsets),
	)
	return nil
}

// Reschedule replaces an event's pending reminders with ones computed from
// its new start time. The recipient of the old rows is carried forward so a
// moved event still reminds the same user.
func (s *Scheduler) Reschedule(ctx context.Context, event domain.ScheduledEvent, teamID string) error {
	userID := ""
	pending, err := s.store.ListPendingReminders(ctx)
	if err != nil {
		s.logger.Error("failed to resolve reminder recipient", "event_id", event.ID, "error", err)
	} else {
		for _, rem := range pending {
			if rem.EventID == event.ID {
				userID = rem.UserID
				break
			}
		}
	}

	if err := s.CancelForEvent(ctx, event.ID); err != nil {
		return err
	}
	return s.ScheduleReminders(ctx, event, userID, teamID)
}

// CancelForEvent tears down all pending reminders for an event, both the
// persisted rows and any armed timers.
func (s *Scheduler) CancelForEvent(ctx context.Context, eventID string) error {
	ids, err := s.store.CancelPendingForEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("cancelling reminders: %w", err)
	}

	s.mu.Lock()
	for _, id := range ids {
		if cancel, ok := s.timers[id]; ok {
			cancel()
			delete(s.timers, id)
		}
	}
	s.mu.Unlock()

	if len(ids) > 0 {
		s.logger.Info("reminders cancelled", "event_id", eventID, "count", len(ids))
	}
	return nil
}

// Recover re-arms pending reminders from storage. Overdue ones are marked
// skipped, or fired immediately when configured to.
func (s *Scheduler) Recover(ctx context.Context) error {
	pending, err := s.store.ListPendingReminders(ctx)
	if err != nil {
		return fmt.Errorf("listing pending reminders: %w", err)
	}

	armed, overdue := 0, 0
	now := s.now()
	for _, rem := range pending {
		if rem.DueAt.After(now) {
			s.arm(rem)
			armed++
			continue
		}
		overdue++
		if s.fireLate {
			s.fire(ctx, rem)
		} else {
			if err := s.store.UpdateReminderStatus(ctx, rem.ID, domain.ReminderSkipped); err != nil {
				s.logger.Error("failed to skip overdue reminder", "reminder_id", rem.ID, "error", err)
			}
		}
	}

	s.logger.Info("reminder recovery completed", "armed", armed, "overdue", overdue)
	return nil
}

// Start launches the rescan loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.rescan)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.rescanPending()
			}
		}
	}()
	s.logger.Info("reminder scheduler started", "rescan_interval", s.rescan)
}

// Stop cancels all armed timers and waits for firing goroutines.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("reminder scheduler stopped")
}

// rescanPending arms any pending reminder this process does not yet hold a
// timer for. Overdue unarmed rows are marked skipped.
func (s *Scheduler) rescanPending() {
	pending, err := s.store.ListPendingReminders(s.ctx)
	if err != nil {
		s.logger.Error("rescan failed", "error", err)
		return
	}

	now := s.now()
	for _, rem := range pending {
		s.mu.Lock()
		_, held := s.timers[rem.ID]
		s.mu.Unlock()
		if held {
			continue
		}
		if rem.DueAt.After(now) {
			s.arm(rem)
		} else {
			if err := s.store.UpdateReminderStatus(s.ctx, rem.ID, domain.ReminderSkipped); err != nil {
				s.logger.Error("failed to skip stale reminder", "reminder_id", rem.ID, "error", err)
			}
		}
	}
}

// arm starts a cancellable timer goroutine for one reminder.
func (s *Scheduler) arm(rem domain.Reminder) {
	ctx, cancel := context.WithCancel(s.ctx)

	s.mu.Lock()
	s.timers[rem.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.timers, rem.ID)
			s.mu.Unlock()
		}()

		timer := time.NewTimer(rem.DueAt.Sub(s.now()))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.fire(s.ctx, rem)
		}
	}()
}

// fire resolves the event and hands the reminder to the notifier. A vanished
// event downgrades the reminder to skipped.
func (s *Scheduler) fire(ctx context.Context, rem domain.Reminder) {
	event, err := s.store.GetScheduledEvent(ctx, rem.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			s.logger.Info("event gone before reminder fired, skipping",
				"reminder_id", rem.ID,
				"event_id", rem.EventID,
			)
			if err := s.store.UpdateReminderStatus(ctx, rem.ID, domain.ReminderSkipped); err != nil {
				s.logger.Error("failed to skip reminder", "reminder_id", rem.ID, "error", err)
			}
			return
		}
		s.logger.Error("failed to load event for reminder", "reminder_id", rem.ID, "error", err)
		return
	}

	s.notifier.ReminderDue(ctx, *event, rem.Offset, rem.UserID, rem.TeamID)

	if err := s.store.UpdateReminderStatus(ctx, rem.ID, domain.ReminderFired); err != nil {
		s.logger.Error("failed to mark reminder fired", "reminder_id", rem.ID, "error", err)
	}

	s.logger.Info("reminder fired",
		"reminder_id", rem.ID,
		"event_id", rem.EventID,
		"offset", rem.Offset,
	)
}
