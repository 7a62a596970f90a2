package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/teamtrack/internal/domain"
)

// Store persists composed notifications.
type Store interface {
	InsertNotification(ctx context.Context, n domain.Notification) error
	MarkNotificationSeen(ctx context.Context, notificationID string) error
	DeleteNotification(ctx context.Context, notificationID string) error
	ListNotificationsForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
}

// Sink receives composed notifications for transport. Delivery is fire and
// forget; the dispatcher does not wait for acknowledgement.
type Sink interface {
	Deliver(n domain.Notification)
}

// Dispatcher composes notifications from triggers, persists them, and fans
// them out to the configured sinks.
type Dispatcher struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(store Store, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		store:  store,
		sinks:  sinks,
		logger: logger,
	}
}

// Dispatch composes and delivers a notification for the trigger. Persistence
// failures are logged, not propagated; live delivery still happens.
func (d *Dispatcher) Dispatch(ctx context.Context, tr domain.Trigger) domain.Notification {
	n := Compose(tr)

	if err := d.store.InsertNotification(ctx, n); err != nil {
		d.logger.Error("failed to persist notification",
			"notification_id", n.ID,
			"type", n.Type,
			"error", err,
		)
	}

	for _, sink := range d.sinks {
		sink.Deliver(n)
	}

	d.logger.Debug("notification dispatched",
		"notification_id", n.ID,
		"type", n.Type,
		"priority", string(n.Priority),
	)
	return n
}

// ReminderDue implements the reminder scheduler's notifier contract.
func (d *Dispatcher) ReminderDue(ctx context.Context, event domain.ScheduledEvent, offset time.Duration, userID, teamID string) {
	d.Dispatch(ctx, domain.Trigger{
		Kind:   domain.TriggerReminder,
		UserID: userID,
		TeamID: teamID,
		Event:  &event,
		Offset: offset,
	})
}

// MarkSeen flags a stored notification as seen.
func (d *Dispatcher) MarkSeen(ctx context.Context, notificationID string) error {
	return d.store.MarkNotificationSeen(ctx, notificationID)
}

// Delete removes a stored notification.
func (d *Dispatcher) Delete(ctx context.Context, notificationID string) error {
	return d.store.DeleteNotification(ctx, notificationID)
}

// ListForUser returns a user's stored notifications, newest first.
func (d *Dispatcher) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return d.store.ListNotificationsForUser(ctx, userID, limit)
}
