package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teamtrack/internal/domain"
)

// Envelope kinds
const (
	KindMatchEvent   = "match_event"
	KindAttendance   = "attendance"
	KindEventCreated = "event_created"
	KindEventUpdated = "event_updated"
	KindEventDeleted = "event_deleted"
)

// Envelope is the tagged wire form of a domain event.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Router receives decoded domain events.
type Router interface {
	HandleMatchEvent(ctx context.Context, event domain.MatchEvent) error
	HandleAttendance(ctx context.Context, att domain.Attendance) error
	HandleEventCreated(ctx context.Context, event domain.ScheduledEvent, recipientUserID string) error
	HandleEventUpdated(ctx context.Context, event domain.ScheduledEvent, changes string) error
	HandleEventDeleted(ctx context.Context, eventID string) error
}

// matchEventWire carries the free-form detail map used on the wire. Details
// are decoded into their typed form exactly once, here.
type matchEventWire struct {
	ID         string            `json:"id,omitempty"`
	MatchID    string            `json:"match_id"`
	Type       string            `json:"type"`
	Minute     int               `json:"minute"`
	PlayerID   string            `json:"player_id,omitempty"`
	PlayerName string            `json:"player_name,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	CreatedBy  string            `json:"created_by,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

type attendanceWire struct {
	PlayerID    string    `json:"player_id"`
	EventID     string    `json:"event_id"`
	Status      int       `json:"status"`
	RespondedAt time.Time `json:"responded_at"`
}

type scheduledEventWire struct {
	ID              string    `json:"id"`
	TeamID          string    `json:"team_id"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	StartAt         time.Time `json:"start_at"`
	Location        string    `json:"location,omitempty"`
	RecipientUserID string    `json:"recipient_user_id,omitempty"`
	Changes         string    `json:"changes,omitempty"`
}

type eventDeletedWire struct {
	EventID string `json:"event_id"`
}

// Dispatch decodes an envelope and routes it. Malformed payloads are an
// error for the caller to log; they are never retried.
func Dispatch(ctx context.Context, router Router, env Envelope) error {
	switch env.Kind {
	case KindMatchEvent:
		event, err := decodeMatchEvent(env.Payload)
		if err != nil {
			return err
		}
		return router.HandleMatchEvent(ctx, event)

	case KindAttendance:
		att, err := decodeAttendance(env.Payload)
		if err != nil {
			return err
		}
		return router.HandleAttendance(ctx, att)

	case KindEventCreated:
		event, wire, err := decodeScheduledEvent(env.Payload)
		if err != nil {
			return err
		}
		return router.HandleEventCreated(ctx, event, wire.RecipientUserID)

	case KindEventUpdated:
		event, wire, err := decodeScheduledEvent(env.Payload)
		if err != nil {
			return err
		}
		return router.HandleEventUpdated(ctx, event, wire.Changes)

	case KindEventDeleted:
		var wire eventDeletedWire
		if err := json.Unmarshal(env.Payload, &wire); err != nil {
			return fmt.Errorf("decoding event deletion: %w", err)
		}
		if wire.EventID == "" {
			return fmt.Errorf("%w: missing event_id", domain.ErrInvalidEvent)
		}
		return router.HandleEventDeleted(ctx, wire.EventID)

	default:
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidEvent, env.Kind)
	}
}

func decodeMatchEvent(payload []byte) (domain.MatchEvent, error) {
	var wire matchEventWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return domain.MatchEvent{}, fmt.Errorf("decoding match event: %w", err)
	}
	if wire.MatchID == "" {
		return domain.MatchEvent{}, fmt.Errorf("%w: missing match_id", domain.ErrInvalidEvent)
	}

	eventType := domain.MatchEventType(wire.Type)
	switch eventType {
	case domain.EventGoal, domain.EventYellowCard, domain.EventRedCard,
		domain.EventSubstitution, domain.EventMatchStart, domain.EventMatchEnd:
	default:
		return domain.MatchEvent{}, fmt.Errorf("%w: unknown match event type %q", domain.ErrInvalidEvent, wire.Type)
	}

	event := domain.MatchEvent{
		ID:         wire.ID,
		MatchID:    wire.MatchID,
		Type:       eventType,
		Minute:     wire.Minute,
		PlayerID:   wire.PlayerID,
		PlayerName: wire.PlayerName,
		CreatedBy:  wire.CreatedBy,
		Timestamp:  wire.Timestamp,
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := event.ApplyDetails(wire.Details); err != nil {
		return domain.MatchEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	return event, nil
}

func decodeAttendance(payload []byte) (domain.Attendance, error) {
	var wire attendanceWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return domain.Attendance{}, fmt.Errorf("decoding attendance: %w", err)
	}
	if wire.PlayerID == "" || wire.EventID == "" {
		return domain.Attendance{}, fmt.Errorf("%w: attendance requires player_id and event_id", domain.ErrInvalidEvent)
	}
	att := domain.Attendance{
		PlayerID:    wire.PlayerID,
		EventID:     wire.EventID,
		Status:      domain.AttendanceStatus(wire.Status),
		RespondedAt: wire.RespondedAt,
	}
	if !att.Status.Valid() {
		return domain.Attendance{}, fmt.Errorf("%w: unknown attendance status %d", domain.ErrInvalidEvent, wire.Status)
	}
	if att.RespondedAt.IsZero() {
		att.RespondedAt = time.Now()
	}
	return att, nil
}

func decodeScheduledEvent(payload []byte) (domain.ScheduledEvent, scheduledEventWire, error) {
	var wire scheduledEventWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return domain.ScheduledEvent{}, wire, fmt.Errorf("decoding scheduled event: %w", err)
	}
	if wire.ID == "" || wire.TeamID == "" || wire.StartAt.IsZero() {
		return domain.ScheduledEvent{}, wire, fmt.Errorf("%w: scheduled event requires id, team_id and start_at", domain.ErrInvalidEvent)
	}

	category := domain.EventCategory(wire.Category)
	switch category {
	case domain.CategoryMatch, domain.CategoryPractice, domain.CategoryTraining, domain.CategoryOther:
	case "":
		category = domain.CategoryOther
	default:
		return domain.ScheduledEvent{}, wire, fmt.Errorf("%w: unknown event category %q", domain.ErrInvalidEvent, wire.Category)
	}

	return domain.ScheduledEvent{
		ID:       wire.ID,
		TeamID:   wire.TeamID,
		Name:     wire.Name,
		Category: category,
		StartAt:  wire.StartAt,
		Location: wire.Location,
	}, wire, nil
}
