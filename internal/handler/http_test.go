package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamtrack/internal/domain"
	"github.com/teamtrack/internal/notify"
	"github.com/teamtrack/internal/service"
	"github.com/teamtrack/internal/websocket"
)

type stubLog struct{}

func (stubLog) RecordMatchEvent(context.Context, domain.MatchEvent) error       { return nil }
func (stubLog) RecordAttendance(context.Context, domain.Attendance) error       { return nil }
func (stubLog) UpsertScheduledEvent(context.Context, domain.ScheduledEvent) error { return nil }
func (stubLog) DeleteScheduledEvent(context.Context, string) error              { return nil }
func (stubLog) GetScheduledEvent(context.Context, string) (*domain.ScheduledEvent, error) {
	return nil, domain.ErrEventNotFound
}

type stubStats struct {
	recalculated []string
	ensured      []string
}

func (s *stubStats) ApplyMatchEvent(context.Context, domain.MatchEvent) error { return nil }
func (s *stubStats) ApplyAttendance(context.Context, domain.Attendance) error { return nil }

func (s *stubStats) Recalculate(_ context.Context, playerID, teamID string) (*domain.PlayerStatistics, error) {
	s.recalculated = append(s.recalculated, playerID+"/"+teamID)
	return &domain.PlayerStatistics{PlayerID: playerID, TeamID: teamID}, nil
}

func (s *stubStats) Ensure(_ context.Context, playerID, teamID string) (*domain.PlayerStatistics, error) {
	s.ensured = append(s.ensured, playerID+"/"+teamID)
	return &domain.PlayerStatistics{PlayerID: playerID, TeamID: teamID}, nil
}

func (s *stubStats) SetWeight(context.Context, string, float64) error { return nil }

func (s *stubStats) Get(_ context.Context, playerID string) (*domain.PlayerStatistics, error) {
	return &domain.PlayerStatistics{PlayerID: playerID}, nil
}

type stubReminders struct{}

func (stubReminders) ScheduleReminders(context.Context, domain.ScheduledEvent, string, string) error {
	return nil
}
func (stubReminders) Reschedule(context.Context, domain.ScheduledEvent, string) error { return nil }
func (stubReminders) CancelForEvent(context.Context, string) error                    { return nil }

type stubNotificationStore struct{}

func (stubNotificationStore) InsertNotification(context.Context, domain.Notification) error {
	return nil
}
func (stubNotificationStore) MarkNotificationSeen(context.Context, string) error { return nil }
func (stubNotificationStore) DeleteNotification(context.Context, string) error   { return nil }
func (stubNotificationStore) ListNotificationsForUser(context.Context, string, int) ([]domain.Notification, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (http.Handler, *stubStats) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats := &stubStats{}
	dispatcher := notify.NewDispatcher(stubNotificationStore{}, logger)
	engine := service.NewEngine(stubLog{}, stats, stubReminders{}, dispatcher, logger)
	h := NewHandler(engine, dispatcher, websocket.NewHub(logger), logger)
	return h.Router(), stats
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestRecalculateRequiresTeamScope(t *testing.T) {
	router, stats := newTestRouter(t)

	// Without a team scope the rebuild would run against an empty calendar
	// and zero out the record, so the request must be rejected outright.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/players/p1/recalculate", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeResponse(t, rec).Success)
	assert.Empty(t, stats.recalculated)
}

func TestRecalculateWithTeamScope(t *testing.T) {
	router, stats := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/players/p1/recalculate?team_id=t1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
	assert.Equal(t, []string{"p1/t1"}, stats.recalculated)
}

func TestEnsureRequiresTeamScope(t *testing.T) {
	router, stats := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/players/p1/ensure", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stats.ensured)
}

func TestEnsureWithTeamScope(t *testing.T) {
	router, stats := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/players/p1/ensure?team_id=t1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"p1/t1"}, stats.ensured)
}
