package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamtrack/internal/domain"
)

// recordingRouter captures the decoded events handed to it.
type recordingRouter struct {
	matchEvents []domain.MatchEvent
	attendance  []domain.Attendance
	created     []domain.ScheduledEvent
	updated     []domain.ScheduledEvent
	changes     []string
	recipients  []string
	deleted     []string
}

func (r *recordingRouter) HandleMatchEvent(_ context.Context, event domain.MatchEvent) error {
	r.matchEvents = append(r.matchEvents, event)
	return nil
}

func (r *recordingRouter) HandleAttendance(_ context.Context, att domain.Attendance) error {
	r.attendance = append(r.attendance, att)
	return nil
}

func (r *recordingRouter) HandleEventCreated(_ context.Context, event domain.ScheduledEvent, recipientUserID string) error {
	r.created = append(r.created, event)
	r.recipients = append(r.recipients, recipientUserID)
	return nil
}

func (r *recordingRouter) HandleEventUpdated(_ context.Context, event domain.ScheduledEvent, changes string) error {
	r.updated = append(r.updated, event)
	r.changes = append(r.changes, changes)
	return nil
}

func (r *recordingRouter) HandleEventDeleted(_ context.Context, eventID string) error {
	r.deleted = append(r.deleted, eventID)
	return nil
}

func envelope(t *testing.T, kind string, payload interface{}) Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return Envelope{Kind: kind, Payload: data}
}

func TestDispatchMatchEventDecodesTypedDetails(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindMatchEvent, map[string]interface{}{
		"match_id":    "m1",
		"type":        "goal",
		"minute":      12,
		"player_id":   "p1",
		"player_name": "Silva",
		"details": map[string]string{
			"assist_id": "p2",
			"kind":      "penalty",
		},
	})

	require.NoError(t, Dispatch(context.Background(), router, env))
	require.Len(t, router.matchEvents, 1)

	event := router.matchEvents[0]
	assert.Equal(t, "m1", event.MatchID)
	assert.Equal(t, domain.EventGoal, event.Type)
	assert.Equal(t, 12, event.Minute)
	require.NotNil(t, event.Goal)
	assert.Equal(t, "p2", event.Goal.AssistID)
	assert.Equal(t, "penalty", event.Goal.Kind)
	assert.Nil(t, event.Card)

	// Missing id and timestamp are filled at the boundary.
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestDispatchMatchEventMatchEndDetails(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindMatchEvent, map[string]interface{}{
		"match_id": "m1",
		"type":     "match_end",
		"minute":   90,
		"details": map[string]string{
			"goals_for":     "2",
			"goals_against": "0",
		},
	})

	require.NoError(t, Dispatch(context.Background(), router, env))
	require.Len(t, router.matchEvents, 1)
	result := router.matchEvents[0].Result
	require.NotNil(t, result)
	assert.Equal(t, 2, result.GoalsFor)
	assert.Equal(t, 0, result.GoalsAgainst)
}

func TestDispatchRejectsUnknownEventType(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindMatchEvent, map[string]interface{}{
		"match_id": "m1",
		"type":     "throw_in",
	})

	err := Dispatch(context.Background(), router, env)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
	assert.Empty(t, router.matchEvents)
}

func TestDispatchRejectsMissingMatchID(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindMatchEvent, map[string]interface{}{"type": "goal"})

	err := Dispatch(context.Background(), router, env)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestDispatchRejectsMalformedMatchEndScore(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindMatchEvent, map[string]interface{}{
		"match_id": "m1",
		"type":     "match_end",
		"details":  map[string]string{"goals_for": "two"},
	})

	err := Dispatch(context.Background(), router, env)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestDispatchAttendance(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindAttendance, map[string]interface{}{
		"player_id": "p1",
		"event_id":  "e1",
		"status":    2,
	})

	require.NoError(t, Dispatch(context.Background(), router, env))
	require.Len(t, router.attendance, 1)
	assert.Equal(t, domain.AttendanceUnavailable, router.attendance[0].Status)
	assert.False(t, router.attendance[0].RespondedAt.IsZero())
}

func TestDispatchRejectsUnknownAttendanceStatus(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindAttendance, map[string]interface{}{
		"player_id": "p1",
		"event_id":  "e1",
		"status":    7,
	})

	err := Dispatch(context.Background(), router, env)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestDispatchEventCreated(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindEventCreated, map[string]interface{}{
		"id":                "e1",
		"team_id":           "t1",
		"name":              "Friendly",
		"category":          "match",
		"start_at":          time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"recipient_user_id": "u1",
	})

	require.NoError(t, Dispatch(context.Background(), router, env))
	require.Len(t, router.created, 1)
	assert.Equal(t, domain.CategoryMatch, router.created[0].Category)
	assert.Equal(t, []string{"u1"}, router.recipients)
}

func TestDispatchEventCreatedDefaultsCategory(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindEventCreated, map[string]interface{}{
		"id":       "e1",
		"team_id":  "t1",
		"start_at": time.Now().Format(time.RFC3339),
	})

	require.NoError(t, Dispatch(context.Background(), router, env))
	require.Len(t, router.created, 1)
	assert.Equal(t, domain.CategoryOther, router.created[0].Category)
}

func TestDispatchEventUpdatedCarriesChanges(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindEventUpdated, map[string]interface{}{
		"id":       "e1",
		"team_id":  "t1",
		"category": "practice",
		"start_at": time.Now().Format(time.RFC3339),
		"changes":  "moved to Sunday",
	})

	require.NoError(t, Dispatch(context.Background(), router, env))
	assert.Equal(t, []string{"moved to Sunday"}, router.changes)
}

func TestDispatchEventDeleted(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindEventDeleted, map[string]interface{}{"event_id": "e1"})

	require.NoError(t, Dispatch(context.Background(), router, env))
	assert.Equal(t, []string{"e1"}, router.deleted)
}

func TestDispatchRejectsDeletionWithoutID(t *testing.T) {
	router := &recordingRouter{}
	env := envelope(t, KindEventDeleted, map[string]interface{}{})

	err := Dispatch(context.Background(), router, env)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestDispatchRejectsUnknownKind(t *testing.T) {
	router := &recordingRouter{}
	env := Envelope{Kind: "mystery", Payload: []byte(`{}`)}

	err := Dispatch(context.Background(), router, env)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}
