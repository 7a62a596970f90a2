package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teamtrack/internal/config"
	"github.com/teamtrack/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS scheduled_events (
			id VARCHAR(64) PRIMARY KEY,
			team_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(20) NOT NULL,
			start_at TIMESTAMPTZ NOT NULL,
			location VARCHAR(255),
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS match_events (
			id VARCHAR(64) PRIMARY KEY,
			match_id VARCHAR(64) NOT NULL,
			event_type VARCHAR(20) NOT NULL,
			minute INT NOT NULL DEFAULT 0,
			player_id VARCHAR(64),
			player_name VARCHAR(255),
			details JSONB,
			created_by VARCHAR(64),
			ts TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			player_id VARCHAR(64) NOT NULL,
			event_id VARCHAR(64) NOT NULL,
			status SMALLINT NOT NULL,
			responded_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (player_id, event_id)
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id VARCHAR(64) PRIMARY KEY,
			event_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			team_id VARCHAR(64) NOT NULL,
			offset_seconds BIGINT NOT NULL,
			due_at TIMESTAMPTZ NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id VARCHAR(64) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			type VARCHAR(30) NOT NULL,
			priority VARCHAR(10) NOT NULL,
			user_id VARCHAR(64),
			team_id VARCHAR(64),
			linked_event_id VARCHAR(64),
			linked_event_type VARCHAR(30),
			data JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			is_seen BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_match ON match_events(match_id)`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_player ON match_events(player_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_player ON attendance(player_id)`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_events_team ON scheduled_events(team_id, category)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_status ON reminders(status, due_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_event ON reminders(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// RecordMatchEvent appends a match event to the durable history.
func (r *Repository) RecordMatchEvent(ctx context.Context, event domain.MatchEvent) error {
	var detailsJSON []byte
	var err error
	if details := event.EncodeDetails(); details != nil {
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
	}

	query := `
		INSERT INTO match_events (id, match_id, event_type, minute, player_id, player_name, details, created_by, ts)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''), $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.pool.Exec(ctx, query,
		event.ID,
		event.MatchID,
		string(event.Type),
		event.Minute,
		event.PlayerID,
		event.PlayerName,
		detailsJSON,
		event.CreatedBy,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("recording match event: %w", err)
	}
	return nil
}

// ListMatchEvents returns all events recorded for a match, oldest first.
func (r *Repository) ListMatchEvents(ctx context.Context, matchID string) ([]domain.MatchEvent, error) {
	query := `
		SELECT id, match_id, event_type, minute, COALESCE(player_id, ''), COALESCE(player_name, ''), details, COALESCE(created_by, ''), ts
		FROM match_events
		WHERE match_id = $1
		ORDER BY ts ASC
	`
	rows, err := r.pool.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("listing match events: %w", err)
	}
	defer rows.Close()

	var events []domain.MatchEvent
	for rows.Next() {
		var event domain.MatchEvent
		var eventType string
		var detailsJSON []byte
		err := rows.Scan(
			&event.ID,
			&event.MatchID,
			&eventType,
			&event.Minute,
			&event.PlayerID,
			&event.PlayerName,
			&detailsJSON,
			&event.CreatedBy,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning match event: %w", err)
		}
		event.Type = domain.MatchEventType(eventType)
		if len(detailsJSON) > 0 {
			var details map[string]string
			if err := json.Unmarshal(detailsJSON, &details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
			if err := event.ApplyDetails(details); err != nil {
				return nil, fmt.Errorf("decoding details: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, nil
}

// RecordAttendance stores a player's response to an event. A repeat response
// overwrites the previous one.
func (r *Repository) RecordAttendance(ctx context.Context, att domain.Attendance) error {
	query := `
		INSERT INTO attendance (player_id, event_id, status, responded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id, event_id)
		DO UPDATE SET status = $3, responded_at = $4
	`
	_, err := r.pool.Exec(ctx, query, att.PlayerID, att.EventID, int(att.Status), att.RespondedAt)
	if err != nil {
		return fmt.Errorf("recording attendance: %w", err)
	}
	return nil
}

// ListAttendanceForPlayer returns all attendance records for a player.
func (r *Repository) ListAttendanceForPlayer(ctx context.Context, playerID string) ([]domain.Attendance, error) {
	query := `
		SELECT player_id, event_id, status, responded_at
		FROM attendance
		WHERE player_id = $1
		ORDER BY responded_at ASC
	`
	rows, err := r.pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("listing attendance: %w", err)
	}
	defer rows.Close()

	var records []domain.Attendance
	for rows.Next() {
		var att domain.Attendance
		var status int
		if err := rows.Scan(&att.PlayerID, &att.EventID, &status, &att.RespondedAt); err != nil {
			return nil, fmt.Errorf("scanning attendance: %w", err)
		}
		att.Status = domain.AttendanceStatus(status)
		records = append(records, att)
	}
	return records, nil
}

// UpsertScheduledEvent creates or updates a calendar entry.
func (r *Repository) UpsertScheduledEvent(ctx context.Context, event domain.ScheduledEvent) error {
	query := `
		INSERT INTO scheduled_events (id, team_id, name, category, start_at, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id)
		DO UPDATE SET team_id = $2, name = $3, category = $4, start_at = $5, location = $6, updated_at = $7
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.TeamID,
		event.Name,
		string(event.Category),
		event.StartAt,
		event.Location,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upserting scheduled event: %w", err)
	}
	return nil
}

// GetScheduledEvent retrieves a calendar entry by id.
func (r *Repository) GetScheduledEvent(ctx context.Context, eventID string) (*domain.ScheduledEvent, error) {
	query := `
		SELECT id, team_id, name, category, start_at, COALESCE(location, '')
		FROM scheduled_events
		WHERE id = $1
	`
	var event domain.ScheduledEvent
	var category string
	err := r.pool.QueryRow(ctx, query, eventID).Scan(
		&event.ID,
		&event.TeamID,
		&event.Name,
		&category,
		&event.StartAt,
		&event.Location,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("getting scheduled event: %w", err)
	}
	event.Category = domain.EventCategory(category)
	return &event, nil
}

// DeleteScheduledEvent removes a calendar entry.
func (r *Repository) DeleteScheduledEvent(ctx context.Context, eventID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM scheduled_events WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("deleting scheduled event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// ListEventsByTeamCategory returns a team's events of one category.
func (r *Repository) ListEventsByTeamCategory(ctx context.Context, teamID string, category domain.EventCategory) ([]domain.ScheduledEvent, error) {
	query := `
		SELECT id, team_id, name, category, start_at, COALESCE(location, '')
		FROM scheduled_events
		WHERE team_id = $1 AND category = $2
		ORDER BY start_at ASC
	`
	rows, err := r.pool.Query(ctx, query, teamID, string(category))
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []domain.ScheduledEvent
	for rows.Next() {
		var event domain.ScheduledEvent
		var cat string
		err := rows.Scan(&event.ID, &event.TeamID, &event.Name, &cat, &event.StartAt, &event.Location)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		event.Category = domain.EventCategory(cat)
		events = append(events, event)
	}
	return events, nil
}

// CreateReminder persists a pending reminder.
func (r *Repository) CreateReminder(ctx context.Context, rem domain.Reminder) error {
	query := `
		INSERT INTO reminders (id, event_id, user_id, team_id, offset_seconds, due_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		rem.ID,
		rem.EventID,
		rem.UserID,
		rem.TeamID,
		int64(rem.Offset.Seconds()),
		rem.DueAt,
		string(rem.Status),
		rem.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating reminder: %w", err)
	}
	return nil
}

// ListPendingReminders returns all reminders still waiting to fire.
func (r *Repository) ListPendingReminders(ctx context.Context) ([]domain.Reminder, error) {
	query := `
		SELECT id, event_id, user_id, team_id, offset_seconds, due_at, status, created_at
		FROM reminders
		WHERE status = 'pending'
		ORDER BY due_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing pending reminders: %w", err)
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		var rem domain.Reminder
		var offsetSeconds int64
		var status string
		err := rows.Scan(
			&rem.ID,
			&rem.EventID,
			&rem.UserID,
			&rem.TeamID,
			&offsetSeconds,
			&rem.DueAt,
			&status,
			&rem.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		rem.Offset = time.Duration(offsetSeconds) * time.Second
		rem.Status = domain.ReminderStatus(status)
		reminders = append(reminders, rem)
	}
	return reminders, nil
}

// UpdateReminderStatus transitions a reminder to a terminal state.
func (r *Repository) UpdateReminderStatus(ctx context.Context, reminderID string, status domain.ReminderStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE reminders SET status = $2 WHERE id = $1`,
		reminderID, string(status),
	)
	if err != nil {
		return fmt.Errorf("updating reminder status: %w", err)
	}
	return nil
}

// CancelPendingForEvent marks all pending reminders for an event cancelled
// and returns their ids so in-memory timers can be torn down.
func (r *Repository) CancelPendingForEvent(ctx context.Context, eventID string) ([]string, error) {
	query := `
		UPDATE reminders SET status = 'cancelled'
		WHERE event_id = $1 AND status = 'pending'
		RETURNING id
	`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("cancelling reminders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning reminder id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// InsertNotification persists a composed notification.
func (r *Repository) InsertNotification(ctx context.Context, n domain.Notification) error {
	var dataJSON []byte
	var err error
	if n.Data != nil {
		dataJSON, err = json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("marshaling data: %w", err)
		}
	}

	query := `
		INSERT INTO notifications (id, title, message, type, priority, user_id, team_id, linked_event_id, linked_event_type, data, created_at, is_seen)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12)
	`
	_, err = r.pool.Exec(ctx, query,
		n.ID,
		n.Title,
		n.Message,
		n.Type,
		string(n.Priority),
		n.UserID,
		n.TeamID,
		n.LinkedEventID,
		n.LinkedEventType,
		dataJSON,
		n.CreatedAt,
		n.Seen,
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// MarkNotificationSeen flags a notification as seen.
func (r *Repository) MarkNotificationSeen(ctx context.Context, notificationID string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_seen = TRUE WHERE id = $1`,
		notificationID,
	)
	if err != nil {
		return fmt.Errorf("marking notification seen: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

// DeleteNotification removes a notification.
func (r *Repository) DeleteNotification(ctx context.Context, notificationID string) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1`,
		notificationID,
	)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

// ListNotificationsForUser returns a user's notifications, newest first.
func (r *Repository) ListNotificationsForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	query := `
		SELECT id, title, message, type, priority, COALESCE(user_id, ''), COALESCE(team_id, ''),
		       COALESCE(linked_event_id, ''), COALESCE(linked_event_type, ''), data, created_at, is_seen
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var priority string
		var dataJSON []byte
		err := rows.Scan(
			&n.ID,
			&n.Title,
			&n.Message,
			&n.Type,
			&priority,
			&n.UserID,
			&n.TeamID,
			&n.LinkedEventID,
			&n.LinkedEventType,
			&dataJSON,
			&n.CreatedAt,
			&n.Seen,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.Priority = domain.NotificationPriority(priority)
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
				return nil, fmt.Errorf("unmarshaling data: %w", err)
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}
