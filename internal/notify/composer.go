package notify

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/teamtrack/internal/domain"
)

// Compose maps a trigger to a ready-to-deliver notification. It never fails:
// an unrecognized trigger kind falls through to the generic announcement
// template.
func Compose(tr domain.Trigger) domain.Notification {
	n := domain.Notification{
		ID:        uuid.New().String(),
		Priority:  domain.PriorityNormal,
		UserID:    tr.UserID,
		TeamID:    tr.TeamID,
		CreatedAt: time.Now(),
		Data:      map[string]string{},
	}

	// A trigger missing the payload its template needs cannot be rendered;
	// it degrades to the announcement fallback like an unknown kind.
	kind := tr.Kind
	switch kind {
	case domain.TriggerEventCreated, domain.TriggerReminder, domain.TriggerScheduleChange:
		if tr.Event == nil {
			kind = domain.TriggerAnnouncement
		}
	case domain.TriggerGoal, domain.TriggerCard, domain.TriggerMatchResult:
		if tr.Match == nil {
			kind = domain.TriggerAnnouncement
		}
	case domain.TriggerSubstitution:
		if tr.Match == nil || tr.Match.Substitution == nil {
			kind = domain.TriggerAnnouncement
		}
	}

	switch kind {
	case domain.TriggerEventCreated:
		n.Type = domain.NotificationEventCreated
		composeEventCreated(&n, tr.Event)

	case domain.TriggerReminder:
		n.Type = domain.NotificationReminder
		n.Priority = domain.PriorityHigh
		n.Title = fmt.Sprintf("%s until %s!", formatOffset(tr.Offset), tr.Event.Name)
		n.Message = fmt.Sprintf("%s starts at %s%s.",
			tr.Event.Name,
			tr.Event.StartAt.Format("15:04"),
			atLocation(tr.Event.Location),
		)
		linkEvent(&n, tr.Event)
		n.Data["offset"] = tr.Offset.String()

	case domain.TriggerGoal:
		n.Type = domain.NotificationMatchUpdate
		n.Priority = domain.PriorityHigh
		if tr.OwnTeam {
			n.Title = fmt.Sprintf("Goal! %s at %d'", tr.Match.PlayerName, tr.Match.Minute)
			n.Message = fmt.Sprintf("%s scored in minute %d.", tr.Match.PlayerName, tr.Match.Minute)
		} else {
			n.Title = "Opponent Goal"
			n.Message = fmt.Sprintf("The opposition scored in minute %d.", tr.Match.Minute)
		}
		linkMatch(&n, tr.Match)

	case domain.TriggerCard:
		n.Type = domain.NotificationMatchUpdate
		if tr.Match.Type == domain.EventRedCard {
			n.Priority = domain.PriorityHigh
			n.Title = fmt.Sprintf("Red Card for %s", tr.Match.PlayerName)
		} else {
			n.Title = fmt.Sprintf("Yellow Card for %s", tr.Match.PlayerName)
		}
		n.Message = fmt.Sprintf("%s was booked in minute %d.", tr.Match.PlayerName, tr.Match.Minute)
		linkMatch(&n, tr.Match)

	case domain.TriggerSubstitution:
		n.Type = domain.NotificationMatchUpdate
		sub := tr.Match.Substitution
		n.Title = fmt.Sprintf("%s replaced by %s", sub.PlayerOutName, sub.PlayerInName)
		n.Message = fmt.Sprintf("Substitution in minute %d.", tr.Match.Minute)
		linkMatch(&n, tr.Match)

	case domain.TriggerScheduleChange:
		n.Type = domain.NotificationScheduleChange
		n.Priority = domain.PriorityHigh
		n.Title = fmt.Sprintf("Event Updated: %s", tr.Changes)
		n.Message = fmt.Sprintf("%s now starts at %s%s.",
			tr.Event.Name,
			tr.Event.StartAt.Format("Mon Jan 2 15:04"),
			atLocation(tr.Event.Location),
		)
		linkEvent(&n, tr.Event)

	case domain.TriggerMatchResult:
		n.Type = domain.NotificationMatchResult
		n.Priority = domain.PriorityHigh
		result := tr.Match.Result
		if result != nil && result.GoalsFor > result.GoalsAgainst {
			n.Title = "Victory!"
		} else {
			n.Title = "Match Complete"
		}
		if result != nil {
			n.Message = fmt.Sprintf("Final score %d-%d.", result.GoalsFor, result.GoalsAgainst)
			n.Data["goals_for"] = strconv.Itoa(result.GoalsFor)
			n.Data["goals_against"] = strconv.Itoa(result.GoalsAgainst)
		}
		linkMatch(&n, tr.Match)

	default:
		n.Type = domain.NotificationAnnouncement
		n.Title = tr.Title
		if n.Title == "" {
			n.Title = "Announcement"
		}
		n.Message = tr.Message
	}

	return n
}

func composeEventCreated(n *domain.Notification, event *domain.ScheduledEvent) {
	switch event.Category {
	case domain.CategoryMatch:
		n.Title = "New Game Scheduled!"
	case domain.CategoryPractice:
		n.Title = "New Practice Session!"
	case domain.CategoryTraining:
		n.Title = "New Training Session!"
	default:
		n.Title = "New Event Scheduled!"
	}
	n.Message = fmt.Sprintf("%s on %s%s.",
		event.Name,
		event.StartAt.Format("Mon Jan 2 15:04"),
		atLocation(event.Location),
	)
	linkEvent(n, event)
}

func linkEvent(n *domain.Notification, event *domain.ScheduledEvent) {
	n.LinkedEventID = event.ID
	n.LinkedEventType = string(event.Category)
	n.Data["event_id"] = event.ID
	n.Data["category"] = string(event.Category)
	n.Data["start_at"] = event.StartAt.Format(time.RFC3339)
}

func linkMatch(n *domain.Notification, event *domain.MatchEvent) {
	n.LinkedEventID = event.MatchID
	n.LinkedEventType = string(domain.CategoryMatch)
	n.Data["match_id"] = event.MatchID
	n.Data["event_type"] = string(event.Type)
	n.Data["minute"] = strconv.Itoa(event.Minute)
}

func atLocation(location string) string {
	if location == "" {
		return ""
	}
	return " at " + location
}

// formatOffset renders a reminder offset the way a person says it.
func formatOffset(offset time.Duration) string {
	if offset >= time.Hour {
		hours := int(offset.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(offset.Minutes())
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
