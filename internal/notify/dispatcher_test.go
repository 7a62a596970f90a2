package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamtrack/internal/domain"
)

type fakeNotificationStore struct {
	inserted  []domain.Notification
	insertErr error
}

func (f *fakeNotificationStore) InsertNotification(_ context.Context, n domain.Notification) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, n)
	return nil
}

func (f *fakeNotificationStore) MarkNotificationSeen(_ context.Context, _ string) error { return nil }

func (f *fakeNotificationStore) DeleteNotification(_ context.Context, _ string) error { return nil }

func (f *fakeNotificationStore) ListNotificationsForUser(_ context.Context, _ string, _ int) ([]domain.Notification, error) {
	return f.inserted, nil
}

type fakeSink struct {
	delivered []domain.Notification
}

func (f *fakeSink) Deliver(n domain.Notification) {
	f.delivered = append(f.delivered, n)
}

func TestDispatchPersistsAndDelivers(t *testing.T) {
	store := &fakeNotificationStore{}
	sink := &fakeSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(store, logger, sink)

	n := d.Dispatch(context.Background(), domain.Trigger{
		Kind:    domain.TriggerAnnouncement,
		TeamID:  "t1",
		Title:   "Club News",
		Message: "hi",
	})

	require.Len(t, store.inserted, 1)
	require.Len(t, sink.delivered, 1)
	assert.Equal(t, n.ID, sink.delivered[0].ID)
	assert.Equal(t, "Club News", sink.delivered[0].Title)
}

func TestDispatchDeliversDespitePersistenceFailure(t *testing.T) {
	store := &fakeNotificationStore{insertErr: errors.New("db down")}
	sink := &fakeSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(store, logger, sink)

	d.Dispatch(context.Background(), domain.Trigger{Kind: domain.TriggerAnnouncement, Title: "x"})

	assert.Empty(t, store.inserted)
	assert.Len(t, sink.delivered, 1)
}

func TestReminderDueComposesReminderNotification(t *testing.T) {
	store := &fakeNotificationStore{}
	sink := &fakeSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(store, logger, sink)

	event := domain.ScheduledEvent{
		ID:      "e1",
		Name:    "Derby",
		StartAt: time.Now().Add(2 * time.Hour),
	}
	d.ReminderDue(context.Background(), event, 2*time.Hour, "u1", "t1")

	require.Len(t, sink.delivered, 1)
	n := sink.delivered[0]
	assert.Equal(t, domain.NotificationReminder, n.Type)
	assert.Equal(t, "u1", n.UserID)
	assert.Equal(t, "t1", n.TeamID)
	assert.Equal(t, "2 hours until Derby!", n.Title)
}
