package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teamtrack/internal/domain"
)

func matchTrigger(kind domain.TriggerKind, event domain.MatchEvent) domain.Trigger {
	return domain.Trigger{Kind: kind, TeamID: "t1", Match: &event}
}

func TestComposeEventCreatedTitles(t *testing.T) {
	start := time.Date(2026, 9, 5, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		category domain.EventCategory
		title    string
	}{
		{domain.CategoryMatch, "New Game Scheduled!"},
		{domain.CategoryPractice, "New Practice Session!"},
		{domain.CategoryTraining, "New Training Session!"},
		{domain.CategoryOther, "New Event Scheduled!"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			n := Compose(domain.Trigger{
				Kind:   domain.TriggerEventCreated,
				UserID: "u1",
				TeamID: "t1",
				Event: &domain.ScheduledEvent{
					ID:       "e1",
					Name:     "Session",
					Category: tt.category,
					StartAt:  start,
					Location: "Pitch 2",
				},
			})

			assert.Equal(t, tt.title, n.Title)
			assert.Equal(t, domain.NotificationEventCreated, n.Type)
			assert.Equal(t, domain.PriorityNormal, n.Priority)
			assert.Equal(t, "e1", n.LinkedEventID)
			assert.Contains(t, n.Message, "Session")
			assert.Contains(t, n.Message, "at Pitch 2")
			assert.NotEmpty(t, n.ID)
		})
	}
}

func TestComposeReminder(t *testing.T) {
	start := time.Date(2026, 9, 5, 18, 30, 0, 0, time.UTC)
	n := Compose(domain.Trigger{
		Kind:   domain.TriggerReminder,
		UserID: "u1",
		Event: &domain.ScheduledEvent{
			ID:      "e1",
			Name:    "Derby",
			StartAt: start,
		},
		Offset: 24 * time.Hour,
	})

	assert.Equal(t, "24 hours until Derby!", n.Title)
	assert.Equal(t, domain.NotificationReminder, n.Type)
	assert.Equal(t, domain.PriorityHigh, n.Priority)
	assert.Contains(t, n.Message, "18:30")
	assert.Equal(t, "24h0m0s", n.Data["offset"])
}

func TestComposeReminderMinutes(t *testing.T) {
	n := Compose(domain.Trigger{
		Kind:   domain.TriggerReminder,
		Event:  &domain.ScheduledEvent{ID: "e1", Name: "Kickoff", StartAt: time.Now()},
		Offset: 30 * time.Minute,
	})
	assert.Equal(t, "30 minutes until Kickoff!", n.Title)
}

func TestComposeGoalOwnTeam(t *testing.T) {
	n := Compose(domain.Trigger{
		Kind:    domain.TriggerGoal,
		TeamID:  "t1",
		OwnTeam: true,
		Match: &domain.MatchEvent{
			MatchID:    "m1",
			Type:       domain.EventGoal,
			Minute:     37,
			PlayerID:   "p1",
			PlayerName: "Silva",
		},
	})

	assert.Equal(t, "Goal! Silva at 37'", n.Title)
	assert.Equal(t, domain.NotificationMatchUpdate, n.Type)
	assert.Equal(t, domain.PriorityHigh, n.Priority)
	assert.Equal(t, "m1", n.Data["match_id"])
	assert.Equal(t, "37", n.Data["minute"])
}

func TestComposeGoalOpposition(t *testing.T) {
	n := Compose(domain.Trigger{
		Kind:   domain.TriggerGoal,
		TeamID: "t1",
		Match:  &domain.MatchEvent{MatchID: "m1", Type: domain.EventGoal, Minute: 55},
	})

	assert.Equal(t, "Opponent Goal", n.Title)
	assert.Contains(t, n.Message, "minute 55")
}

func TestComposeCards(t *testing.T) {
	yellow := Compose(matchTrigger(domain.TriggerCard, domain.MatchEvent{
		MatchID: "m1", Type: domain.EventYellowCard, Minute: 20, PlayerName: "Weber",
	}))
	assert.Equal(t, "Yellow Card for Weber", yellow.Title)
	assert.Equal(t, domain.PriorityNormal, yellow.Priority)

	red := Compose(matchTrigger(domain.TriggerCard, domain.MatchEvent{
		MatchID: "m1", Type: domain.EventRedCard, Minute: 72, PlayerName: "Weber",
	}))
	assert.Equal(t, "Red Card for Weber", red.Title)
	assert.Equal(t, domain.PriorityHigh, red.Priority)
}

func TestComposeSubstitution(t *testing.T) {
	n := Compose(matchTrigger(domain.TriggerSubstitution, domain.MatchEvent{
		MatchID: "m1",
		Type:    domain.EventSubstitution,
		Minute:  60,
		Substitution: &domain.SubstitutionDetails{
			PlayerOutName: "Rossi",
			PlayerInName:  "Tanaka",
		},
	}))

	assert.Equal(t, "Rossi replaced by Tanaka", n.Title)
	assert.Contains(t, n.Message, "minute 60")
}

func TestComposeMatchResult(t *testing.T) {
	win := Compose(matchTrigger(domain.TriggerMatchResult, domain.MatchEvent{
		MatchID: "m1",
		Type:    domain.EventMatchEnd,
		Result:  &domain.MatchEndDetails{GoalsFor: 3, GoalsAgainst: 1},
	}))
	assert.Equal(t, "Victory!", win.Title)
	assert.Equal(t, "Final score 3-1.", win.Message)
	assert.Equal(t, domain.NotificationMatchResult, win.Type)

	loss := Compose(matchTrigger(domain.TriggerMatchResult, domain.MatchEvent{
		MatchID: "m1",
		Type:    domain.EventMatchEnd,
		Result:  &domain.MatchEndDetails{GoalsFor: 0, GoalsAgainst: 2},
	}))
	assert.Equal(t, "Match Complete", loss.Title)
}

func TestComposeScheduleChange(t *testing.T) {
	n := Compose(domain.Trigger{
		Kind:   domain.TriggerScheduleChange,
		TeamID: "t1",
		Event: &domain.ScheduledEvent{
			ID:      "e1",
			Name:    "Friendly",
			StartAt: time.Date(2026, 9, 7, 19, 0, 0, 0, time.UTC),
		},
		Changes: "time changed",
	})

	assert.Equal(t, "Event Updated: time changed", n.Title)
	assert.Equal(t, domain.NotificationScheduleChange, n.Type)
	assert.Equal(t, domain.PriorityHigh, n.Priority)
	assert.Contains(t, n.Message, "Friendly")
}

func TestComposeUnknownKindFallsBackToAnnouncement(t *testing.T) {
	n := Compose(domain.Trigger{
		Kind:    domain.TriggerKind("something_new"),
		Title:   "Club News",
		Message: "Season tickets available.",
	})

	assert.Equal(t, domain.NotificationAnnouncement, n.Type)
	assert.Equal(t, "Club News", n.Title)
	assert.Equal(t, "Season tickets available.", n.Message)
}

func TestComposeMissingPayloadFallsBackToAnnouncement(t *testing.T) {
	// A trigger arriving without the payload its template renders from must
	// still produce a notification, not crash the dispatch path.
	triggers := []domain.Trigger{
		{Kind: domain.TriggerEventCreated},
		{Kind: domain.TriggerReminder, Offset: 2 * time.Hour},
		{Kind: domain.TriggerScheduleChange, Changes: "moved"},
		{Kind: domain.TriggerGoal, OwnTeam: true},
		{Kind: domain.TriggerCard},
		{Kind: domain.TriggerMatchResult},
		{Kind: domain.TriggerSubstitution},
		{Kind: domain.TriggerSubstitution, Match: &domain.MatchEvent{MatchID: "m1", Minute: 60}},
	}

	for _, tr := range triggers {
		n := Compose(tr)
		assert.Equal(t, domain.NotificationAnnouncement, n.Type, "kind %s", tr.Kind)
		assert.Equal(t, "Announcement", n.Title, "kind %s", tr.Kind)
	}
}

func TestComposeAnnouncementDefaultTitle(t *testing.T) {
	n := Compose(domain.Trigger{Kind: domain.TriggerAnnouncement, Message: "hi"})
	assert.Equal(t, "Announcement", n.Title)
}
