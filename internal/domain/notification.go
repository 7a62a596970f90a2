package domain

import "time"

// NotificationPriority orders notifications for display and transport.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Notification types
const (
	NotificationEventCreated   = "event_created"
	NotificationReminder       = "reminder"
	NotificationMatchUpdate    = "match_update"
	NotificationScheduleChange = "schedule_change"
	NotificationMatchResult    = "match_result"
	NotificationAnnouncement   = "announcement"
)

// Notification is a fully composed, ready-to-deliver message. Once created
// it is only ever marked seen or deleted, never re-derived.
type Notification struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	Message         string               `json:"message"`
	Type            string               `json:"type"`
	Priority        NotificationPriority `json:"priority"`
	UserID          string               `json:"user_id,omitempty"`
	TeamID          string               `json:"team_id,omitempty"`
	LinkedEventID   string               `json:"linked_event_id,omitempty"`
	LinkedEventType string               `json:"linked_event_type,omitempty"`
	Data            map[string]string    `json:"data,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	Seen            bool                 `json:"is_seen"`
}

// TriggerKind identifies why a notification is being generated.
type TriggerKind string

const (
	TriggerEventCreated   TriggerKind = "event_created"
	TriggerReminder       TriggerKind = "reminder"
	TriggerGoal           TriggerKind = "goal"
	TriggerCard           TriggerKind = "card"
	TriggerSubstitution   TriggerKind = "substitution"
	TriggerScheduleChange TriggerKind = "schedule_change"
	TriggerMatchResult    TriggerKind = "match_result"
	TriggerAnnouncement   TriggerKind = "announcement"
)

// Trigger is the input to notification composition. Fields beyond Kind,
// UserID and TeamID are populated per kind: Event for calendar triggers,
// Match for in-match triggers, Offset for reminders, Changes for schedule
// updates, Title/Message for announcements.
type Trigger struct {
	Kind    TriggerKind
	UserID  string
	TeamID  string
	Event   *ScheduledEvent
	Match   *MatchEvent
	OwnTeam bool
	Offset  time.Duration
	Changes string
	Title   string
	Message string
}
