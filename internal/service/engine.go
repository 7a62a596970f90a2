package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teamtrack/internal/domain"
)

// EventLog is the durable record of raw domain events and calendar entries.
type EventLog interface {
	RecordMatchEvent(ctx context.Context, event domain.MatchEvent) error
	RecordAttendance(ctx context.Context, att domain.Attendance) error
	UpsertScheduledEvent(ctx context.Context, event domain.ScheduledEvent) error
	DeleteScheduledEvent(ctx context.Context, eventID string) error
	GetScheduledEvent(ctx context.Context, eventID string) (*domain.ScheduledEvent, error)
}

// Aggregator is the statistics side of the reaction engine.
type Aggregator interface {
	ApplyMatchEvent(ctx context.Context, event domain.MatchEvent) error
	ApplyAttendance(ctx context.Context, att domain.Attendance) error
	Recalculate(ctx context.Context, playerID, teamID string) (*domain.PlayerStatistics, error)
	Ensure(ctx context.Context, playerID, teamID string) (*domain.PlayerStatistics, error)
	SetWeight(ctx context.Context, playerID string, weight float64) error
	Get(ctx context.Context, playerID string) (*domain.PlayerStatistics, error)
}

// Reminders is the scheduling side of the reaction engine.
type Reminders interface {
	ScheduleReminders(ctx context.Context, event domain.ScheduledEvent, userID, teamID string) error
	Reschedule(ctx context.Context, event domain.ScheduledEvent, teamID string) error
	CancelForEvent(ctx context.Context, eventID string) error
}

// Notifier dispatches composed notifications.
type Notifier interface {
	Dispatch(ctx context.Context, tr domain.Trigger) domain.Notification
}

// Engine is the dispatch boundary: it routes each incoming domain event to
// the aggregator, the reminder scheduler and the notifier. Storage failures
// along the reaction paths are logged and abandoned; the event source is
// never failed for them, and a later recalculation is the repair path.
type Engine struct {
	log       EventLog
	stats     Aggregator
	reminders Reminders
	notifier  Notifier
	logger    *slog.Logger
}

// NewEngine creates a new event routing engine
func NewEngine(log EventLog, stats Aggregator, reminders Reminders, notifier Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		log:       log,
		stats:     stats,
		reminders: reminders,
		notifier:  notifier,
		logger:    logger,
	}
}

// HandleMatchEvent records a match event, folds it into the statistics and
// emits any in-match notification it warrants.
func (e *Engine) HandleMatchEvent(ctx context.Context, event domain.MatchEvent) error {
	if err := e.log.RecordMatchEvent(ctx, event); err != nil {
		e.logger.Error("failed to record match event",
			"event_id", event.ID,
			"match_id", event.MatchID,
			"error", err,
		)
	}

	if err := e.stats.ApplyMatchEvent(ctx, event); err != nil {
		e.logger.Error("failed to apply match event",
			"event_id", event.ID,
			"match_id", event.MatchID,
			"type", string(event.Type),
			"error", err,
		)
	}

	e.notifyMatchEvent(ctx, event)
	return nil
}

// notifyMatchEvent maps an in-match event to its notification trigger.
func (e *Engine) notifyMatchEvent(ctx context.Context, event domain.MatchEvent) {
	teamID := e.teamForMatch(ctx, event.MatchID)

	switch event.Type {
	case domain.EventGoal:
		e.notifier.Dispatch(ctx, domain.Trigger{
			Kind:    domain.TriggerGoal,
			TeamID:  teamID,
			Match:   &event,
			OwnTeam: event.PlayerID != "",
		})
	case domain.EventYellowCard, domain.EventRedCard:
		e.notifier.Dispatch(ctx, domain.Trigger{
			Kind:   domain.TriggerCard,
			TeamID: teamID,
			Match:  &event,
		})
	case domain.EventSubstitution:
		if event.Substitution == nil {
			return
		}
		e.notifier.Dispatch(ctx, domain.Trigger{
			Kind:   domain.TriggerSubstitution,
			TeamID: teamID,
			Match:  &event,
		})
	case domain.EventMatchEnd:
		e.notifier.Dispatch(ctx, domain.Trigger{
			Kind:   domain.TriggerMatchResult,
			TeamID: teamID,
			Match:  &event,
		})
	}
}

// teamForMatch resolves the owning team of a match from the calendar. An
// unknown match still produces a notification, just without team scoping.
func (e *Engine) teamForMatch(ctx context.Context, matchID string) string {
	event, err := e.log.GetScheduledEvent(ctx, matchID)
	if err != nil {
		if !errors.Is(err, domain.ErrEventNotFound) {
			e.logger.Warn("failed to resolve match team", "match_id", matchID, "error", err)
		}
		return ""
	}
	return event.TeamID
}

// HandleAttendance records an attendance response and folds it into the
// player's counters.
func (e *Engine) HandleAttendance(ctx context.Context, att domain.Attendance) error {
	if err := e.log.RecordAttendance(ctx, att); err != nil {
		e.logger.Error("failed to record attendance",
			"player_id", att.PlayerID,
			"event_id", att.EventID,
			"error", err,
		)
	}

	if err := e.stats.ApplyAttendance(ctx, att); err != nil {
		e.logger.Error("failed to apply attendance",
			"player_id", att.PlayerID,
			"event_id", att.EventID,
			"error", err,
		)
	}
	return nil
}

// HandleEventCreated persists a new calendar entry, schedules its reminders
// and announces it.
func (e *Engine) HandleEventCreated(ctx context.Context, event domain.ScheduledEvent, recipientUserID string) error {
	if err := e.log.UpsertScheduledEvent(ctx, event); err != nil {
		return fmt.Errorf("persisting scheduled event: %w", err)
	}

	if err := e.reminders.ScheduleReminders(ctx, event, recipientUserID, event.TeamID); err != nil {
		e.logger.Error("failed to schedule reminders", "event_id", event.ID, "error", err)
	}

	e.notifier.Dispatch(ctx, domain.Trigger{
		Kind:   domain.TriggerEventCreated,
		UserID: recipientUserID,
		TeamID: event.TeamID,
		Event:  &event,
	})
	return nil
}

// HandleEventUpdated reschedules reminders against the new start time and
// announces the change.
func (e *Engine) HandleEventUpdated(ctx context.Context, event domain.ScheduledEvent, changes string) error {
	if err := e.log.UpsertScheduledEvent(ctx, event); err != nil {
		return fmt.Errorf("persisting scheduled event: %w", err)
	}

	if err := e.reminders.Reschedule(ctx, event, event.TeamID); err != nil {
		e.logger.Error("failed to reschedule reminders", "event_id", event.ID, "error", err)
	}

	if changes == "" {
		changes = "schedule changed"
	}
	e.notifier.Dispatch(ctx, domain.Trigger{
		Kind:    domain.TriggerScheduleChange,
		TeamID:  event.TeamID,
		Event:   &event,
		Changes: changes,
	})
	return nil
}

// HandleEventDeleted tears down reminders for a removed calendar entry.
func (e *Engine) HandleEventDeleted(ctx context.Context, eventID string) error {
	if err := e.reminders.CancelForEvent(ctx, eventID); err != nil {
		e.logger.Error("failed to cancel reminders", "event_id", eventID, "error", err)
	}

	if err := e.log.DeleteScheduledEvent(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			return nil
		}
		return fmt.Errorf("deleting scheduled event: %w", err)
	}
	return nil
}

// GetStatistics reads a player's current record.
func (e *Engine) GetStatistics(ctx context.Context, playerID string) (*domain.PlayerStatistics, error) {
	return e.stats.Get(ctx, playerID)
}

// Recalculate rebuilds a player's record from history.
func (e *Engine) Recalculate(ctx context.Context, playerID, teamID string) (*domain.PlayerStatistics, error) {
	return e.stats.Recalculate(ctx, playerID, teamID)
}

// Ensure gets or creates a player's record, backfilling from history.
func (e *Engine) Ensure(ctx context.Context, playerID, teamID string) (*domain.PlayerStatistics, error) {
	return e.stats.Ensure(ctx, playerID, teamID)
}

// SetWeight records an external weight measurement for a player.
func (e *Engine) SetWeight(ctx context.Context, playerID string, weight float64) error {
	return e.stats.SetWeight(ctx, playerID, weight)
}
