package domain

import (
	"fmt"
	"strconv"
	"time"
)

// MatchEventType identifies what happened on the pitch.
type MatchEventType string

const (
	EventGoal         MatchEventType = "goal"
	EventYellowCard   MatchEventType = "yellow_card"
	EventRedCard      MatchEventType = "red_card"
	EventSubstitution MatchEventType = "substitution"
	EventMatchStart   MatchEventType = "match_start"
	EventMatchEnd     MatchEventType = "match_end"
)

// GoalDetails carries goal-specific data.
type GoalDetails struct {
	AssistID string `json:"assist_id,omitempty"`
	Kind     string `json:"kind,omitempty"` // open_play, penalty, free_kick
}

// CardDetails carries booking-specific data.
type CardDetails struct {
	Reason string `json:"reason,omitempty"`
}

// SubstitutionDetails carries the players swapped.
type SubstitutionDetails struct {
	PlayerOutID   string `json:"player_out_id,omitempty"`
	PlayerInID    string `json:"player_in_id,omitempty"`
	PlayerOutName string `json:"player_out_name,omitempty"`
	PlayerInName  string `json:"player_in_name,omitempty"`
}

// MatchEndDetails carries the final score from the team's perspective.
type MatchEndDetails struct {
	GoalsFor     int `json:"goals_for"`
	GoalsAgainst int `json:"goals_against"`
}

// MatchEvent is a single in-match occurrence. Exactly one of the detail
// pointers is set, matching Type; the rest are nil.
type MatchEvent struct {
	ID           string               `json:"id"`
	MatchID      string               `json:"match_id"`
	Type         MatchEventType       `json:"type"`
	Minute       int                  `json:"minute"`
	PlayerID     string               `json:"player_id,omitempty"`
	PlayerName   string               `json:"player_name,omitempty"`
	Goal         *GoalDetails         `json:"goal,omitempty"`
	Card         *CardDetails         `json:"card,omitempty"`
	Substitution *SubstitutionDetails `json:"substitution,omitempty"`
	Result       *MatchEndDetails     `json:"result,omitempty"`
	CreatedBy    string               `json:"created_by,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

// Counts reports whether the event credits the player with match
// participation.
func (e *MatchEvent) Counts() bool {
	if e.PlayerID == "" || e.MatchID == "" {
		return false
	}
	switch e.Type {
	case EventGoal, EventYellowCard, EventRedCard, EventSubstitution:
		return true
	}
	return false
}

// ApplyDetails decodes a flat key-value detail map (the wire and storage
// form) into the typed detail struct matching the event type. Unknown keys
// are ignored; malformed numeric values are an error.
func (e *MatchEvent) ApplyDetails(details map[string]string) error {
	if len(details) == 0 {
		return nil
	}
	switch e.Type {
	case EventGoal:
		e.Goal = &GoalDetails{
			AssistID: details["assist_id"],
			Kind:     details["kind"],
		}
	case EventYellowCard, EventRedCard:
		e.Card = &CardDetails{Reason: details["reason"]}
	case EventSubstitution:
		e.Substitution = &SubstitutionDetails{
			PlayerOutID:   details["player_out_id"],
			PlayerInID:    details["player_in_id"],
			PlayerOutName: details["player_out_name"],
			PlayerInName:  details["player_in_name"],
		}
	case EventMatchEnd:
		r := &MatchEndDetails{}
		var err error
		if v, ok := details["goals_for"]; ok {
			if r.GoalsFor, err = strconv.Atoi(v); err != nil {
				return fmt.Errorf("parsing goals_for: %w", err)
			}
		}
		if v, ok := details["goals_against"]; ok {
			if r.GoalsAgainst, err = strconv.Atoi(v); err != nil {
				return fmt.Errorf("parsing goals_against: %w", err)
			}
		}
		e.Result = r
	}
	return nil
}

// EncodeDetails flattens the typed details back into the key-value form used
// on the wire and in storage. Returns nil when the event carries no details.
func (e *MatchEvent) EncodeDetails() map[string]string {
	switch {
	case e.Goal != nil:
		m := map[string]string{}
		if e.Goal.AssistID != "" {
			m["assist_id"] = e.Goal.AssistID
		}
		if e.Goal.Kind != "" {
			m["kind"] = e.Goal.Kind
		}
		return m
	case e.Card != nil:
		if e.Card.Reason == "" {
			return nil
		}
		return map[string]string{"reason": e.Card.Reason}
	case e.Substitution != nil:
		return map[string]string{
			"player_out_id":   e.Substitution.PlayerOutID,
			"player_in_id":    e.Substitution.PlayerInID,
			"player_out_name": e.Substitution.PlayerOutName,
			"player_in_name":  e.Substitution.PlayerInName,
		}
	case e.Result != nil:
		return map[string]string{
			"goals_for":     strconv.Itoa(e.Result.GoalsFor),
			"goals_against": strconv.Itoa(e.Result.GoalsAgainst),
		}
	}
	return nil
}

// AttendanceStatus is the tri-state RSVP answer.
type AttendanceStatus int

const (
	AttendanceAvailable   AttendanceStatus = 0
	AttendanceMaybe       AttendanceStatus = 1
	AttendanceUnavailable AttendanceStatus = 2
)

// Valid reports whether the status is one of the three known values.
func (s AttendanceStatus) Valid() bool {
	return s >= AttendanceAvailable && s <= AttendanceUnavailable
}

// Attendance is a player's response to a scheduled event.
type Attendance struct {
	PlayerID    string           `json:"player_id"`
	EventID     string           `json:"event_id"`
	Status      AttendanceStatus `json:"status"`
	RespondedAt time.Time        `json:"responded_at"`
}

// EventCategory classifies a scheduled event.
type EventCategory string

const (
	CategoryMatch    EventCategory = "match"
	CategoryPractice EventCategory = "practice"
	CategoryTraining EventCategory = "training"
	CategoryOther    EventCategory = "other"
)

// ScheduledEvent is a calendar entry for a team. For CategoryMatch its ID is
// also the match id referenced by MatchEvent.MatchID.
type ScheduledEvent struct {
	ID       string        `json:"id"`
	TeamID   string        `json:"team_id"`
	Name     string        `json:"name"`
	Category EventCategory `json:"category"`
	StartAt  time.Time     `json:"start_at"`
	Location string        `json:"location,omitempty"`
}

// ReminderStatus tracks the lifecycle of a persisted reminder.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderFired     ReminderStatus = "fired"
	ReminderSkipped   ReminderStatus = "skipped"
	ReminderCancelled ReminderStatus = "cancelled"
)

// Reminder is a persisted due-at record for a scheduled event. Reminders are
// re-armed from storage on startup so a restart does not lose them.
type Reminder struct {
	ID        string         `json:"id"`
	EventID   string         `json:"event_id"`
	UserID    string         `json:"user_id"`
	TeamID    string         `json:"team_id"`
	Offset    time.Duration  `json:"offset"`
	DueAt     time.Time      `json:"due_at"`
	Status    ReminderStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}
