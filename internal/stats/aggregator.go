package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teamtrack/internal/config"
	"github.com/teamtrack/internal/domain"
)

// Store is the aggregate store holding one statistics record per player.
type Store interface {
	Get(ctx context.Context, playerID string) (*domain.PlayerStatistics, error)
	Upsert(ctx context.Context, stats *domain.PlayerStatistics) error
	SetWeight(ctx context.Context, playerID string, weight float64) error
	GetWeight(ctx context.Context, playerID string) (float64, error)
	AddMatchPlayed(ctx context.Context, playerID, matchID string) (bool, int, error)
	ReplaceMatchesPlayed(ctx context.Context, playerID string, matchIDs []string) error
}

// History is the durable record of everything a recalculation replays.
type History interface {
	ListAttendanceForPlayer(ctx context.Context, playerID string) ([]domain.Attendance, error)
	ListEventsByTeamCategory(ctx context.Context, teamID string, category domain.EventCategory) ([]domain.ScheduledEvent, error)
	ListMatchEvents(ctx context.Context, matchID string) ([]domain.MatchEvent, error)
}

// ErrClosed is returned for updates submitted after shutdown began.
var ErrClosed = errors.New("aggregator closed")

// Aggregator applies domain events to the aggregate store. Every store
// mutation for a player runs on that player's mailbox goroutine, so
// read-modify-write cycles for the same player never interleave; updates for
// different players proceed in parallel.
type Aggregator struct {
	store         Store
	history       History
	logger        *slog.Logger
	storeTimeout  time.Duration
	mailboxSize   int
	createMissing bool

	mu        sync.RWMutex
	mailboxes map[string]chan func()
	closed    bool
	wg        sync.WaitGroup
}

// NewAggregator creates a new statistics aggregator
func NewAggregator(store Store, history History, cfg *config.StatsConfig, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:         store,
		history:       history,
		logger:        logger,
		storeTimeout:  cfg.StoreTimeout,
		mailboxSize:   cfg.MailboxSize,
		createMissing: cfg.CreateMissingEnabled(),
		mailboxes:     make(map[string]chan func()),
	}
}

// Close drains all player mailboxes and waits for in-flight updates.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	for _, mb := range a.mailboxes {
		close(mb)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

// run executes task on the player's mailbox goroutine and waits for it.
func (a *Aggregator) run(playerID string, task func() error) error {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return ErrClosed
	}
	mb, ok := a.mailboxes[playerID]
	if !ok {
		a.mu.RUnlock()
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return ErrClosed
		}
		mb, ok = a.mailboxes[playerID]
		if !ok {
			mb = make(chan func(), a.mailboxSize)
			a.mailboxes[playerID] = mb
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				for fn := range mb {
					fn()
				}
			}()
		}
		a.mu.Unlock()
		a.mu.RLock()
		// Close may have won the lock gap and closed the new mailbox.
		if a.closed {
			a.mu.RUnlock()
			return ErrClosed
		}
	}

	errc := make(chan error, 1)
	mb <- func() { errc <- task() }
	a.mu.RUnlock()
	return <-errc
}

// update performs a serialized read-modify-write of the player's record.
// A missing record is created or dropped per the create-missing policy.
func (a *Aggregator) update(ctx context.Context, playerID, reason string, mutate func(*domain.PlayerStatistics)) error {
	return a.run(playerID, func() error {
		ctx, cancel := context.WithTimeout(ctx, a.storeTimeout)
		defer cancel()

		s, err := a.loadOrInit(ctx, playerID, reason)
		if err != nil || s == nil {
			return err
		}
		mutate(s)
		s.UpdatedAt = time.Now()
		return a.store.Upsert(ctx, s)
	})
}

// loadOrInit fetches a record, applying the missing-record policy. A nil
// record with nil error means the update was dropped.
func (a *Aggregator) loadOrInit(ctx context.Context, playerID, reason string) (*domain.PlayerStatistics, error) {
	s, err := a.store.Get(ctx, playerID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		return nil, err
	}
	if !a.createMissing {
		a.logger.Warn("no statistics record, dropping update",
			"player_id", playerID,
			"reason", reason,
		)
		return nil, nil
	}
	return &domain.PlayerStatistics{PlayerID: playerID}, nil
}

// ApplyMatchEvent routes a single match event into the aggregate store.
func (a *Aggregator) ApplyMatchEvent(ctx context.Context, event domain.MatchEvent) error {
	switch event.Type {
	case domain.EventGoal:
		if event.PlayerID == "" {
			a.logger.Info("goal without scorer, counters unchanged", "match_id", event.MatchID)
		} else {
			if err := a.update(ctx, event.PlayerID, "goal", func(s *domain.PlayerStatistics) {
				s.Goals++
			}); err != nil {
				return fmt.Errorf("applying goal: %w", err)
			}
		}
		if event.Goal != nil && event.Goal.AssistID != "" {
			if err := a.update(ctx, event.Goal.AssistID, "assist", func(s *domain.PlayerStatistics) {
				s.Assists++
			}); err != nil {
				return fmt.Errorf("applying assist: %w", err)
			}
		}

	case domain.EventYellowCard:
		if event.PlayerID == "" {
			a.logger.Warn("card event without player, skipping", "match_id", event.MatchID)
			return nil
		}
		if err := a.update(ctx, event.PlayerID, "yellow_card", func(s *domain.PlayerStatistics) {
			s.YellowCards++
		}); err != nil {
			return fmt.Errorf("applying yellow card: %w", err)
		}

	case domain.EventRedCard:
		if event.PlayerID == "" {
			a.logger.Warn("card event without player, skipping", "match_id", event.MatchID)
			return nil
		}
		if err := a.update(ctx, event.PlayerID, "red_card", func(s *domain.PlayerStatistics) {
			s.RedCards++
		}); err != nil {
			return fmt.Errorf("applying red card: %w", err)
		}

	case domain.EventSubstitution:
		// Recorded for audit and participation only. Minute-accurate playing
		// time from substitution timing is out of scope.

	case domain.EventMatchStart:
		return nil

	case domain.EventMatchEnd:
		return a.applyMatchEnd(ctx, event)

	default:
		a.logger.Warn("unknown match event type, skipping",
			"type", string(event.Type),
			"match_id", event.MatchID,
		)
		return nil
	}

	if event.Counts() {
		return a.creditParticipation(ctx, event.PlayerID, event.MatchID)
	}
	return nil
}

// creditParticipation counts the match toward the player's total the first
// time any of their events is seen for it. The distinct-match set is the
// single source of truth for the matches counter, so the incremental path
// cannot drift from recalculation.
func (a *Aggregator) creditParticipation(ctx context.Context, playerID, matchID string) error {
	return a.run(playerID, func() error {
		ctx, cancel := context.WithTimeout(ctx, a.storeTimeout)
		defer cancel()

		s, err := a.loadOrInit(ctx, playerID, "participation")
		if err != nil || s == nil {
			return err
		}
		counted, total, err := a.store.AddMatchPlayed(ctx, playerID, matchID)
		if err != nil {
			return fmt.Errorf("crediting participation: %w", err)
		}
		if !counted {
			return nil
		}
		s.Matches = total
		s.MinutesPlayed = total * domain.MinutesPerMatch
		s.UpdatedAt = time.Now()
		return a.store.Upsert(ctx, s)
	})
}

// applyMatchEnd credits clean sheets to every participant when the team
// conceded nothing, using the recorded match history to find participants.
func (a *Aggregator) applyMatchEnd(ctx context.Context, event domain.MatchEvent) error {
	if event.Result == nil || event.Result.GoalsAgainst != 0 {
		return nil
	}
	events, err := a.history.ListMatchEvents(ctx, event.MatchID)
	if err != nil {
		return fmt.Errorf("listing match events: %w", err)
	}
	seen := make(map[string]bool)
	for _, ev := range events {
		if !ev.Counts() || seen[ev.PlayerID] {
			continue
		}
		seen[ev.PlayerID] = true
		if err := a.update(ctx, ev.PlayerID, "clean_sheet", func(s *domain.PlayerStatistics) {
			s.CleanSheets++
		}); err != nil {
			return fmt.Errorf("applying clean sheet: %w", err)
		}
	}
	return nil
}

// ApplyAttendance folds a single attendance response into the player's
// counters: scheduled always moves, and exactly one of attended or missed.
func (a *Aggregator) ApplyAttendance(ctx context.Context, att domain.Attendance) error {
	if !att.Status.Valid() {
		a.logger.Warn("unknown attendance status, skipping",
			"player_id", att.PlayerID,
			"event_id", att.EventID,
			"status", int(att.Status),
		)
		return nil
	}
	return a.update(ctx, att.PlayerID, "attendance", func(s *domain.PlayerStatistics) {
		s.Scheduled++
		if att.Status == domain.AttendanceAvailable {
			s.Attended++
		} else {
			s.Missed++
		}
	})
}

// SetWeight records an external weight measurement. This is the only write
// path for the weight field.
func (a *Aggregator) SetWeight(ctx context.Context, playerID string, weight float64) error {
	return a.run(playerID, func() error {
		ctx, cancel := context.WithTimeout(ctx, a.storeTimeout)
		defer cancel()
		return a.store.SetWeight(ctx, playerID, weight)
	})
}

// Get reads the player's current record.
func (a *Aggregator) Get(ctx context.Context, playerID string) (*domain.PlayerStatistics, error) {
	return a.store.Get(ctx, playerID)
}

// Recalculate rebuilds the player's record from the full attendance and
// match history. It runs on the player's mailbox, so it is serialized with
// incremental updates for that player.
func (a *Aggregator) Recalculate(ctx context.Context, playerID, teamID string) (*domain.PlayerStatistics, error) {
	var result *domain.PlayerStatistics
	err := a.run(playerID, func() error {
		s, err := a.recalculate(ctx, playerID, teamID)
		result = s
		return err
	})
	return result, err
}

func (a *Aggregator) recalculate(ctx context.Context, playerID, teamID string) (*domain.PlayerStatistics, error) {
	attendance, err := a.history.ListAttendanceForPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("listing attendance: %w", err)
	}
	matches, err := a.history.ListEventsByTeamCategory(ctx, teamID, domain.CategoryMatch)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}

	s := &domain.PlayerStatistics{
		PlayerID: playerID,
		TeamID:   teamID,
	}

	s.Scheduled = len(attendance)
	for _, att := range attendance {
		if att.Status == domain.AttendanceAvailable {
			s.Attended++
		} else {
			s.Missed++
		}
	}

	var matchIDs []string
	for _, match := range matches {
		events, err := a.history.ListMatchEvents(ctx, match.ID)
		if err != nil {
			return nil, fmt.Errorf("listing match events: %w", err)
		}

		participated := false
		cleanSheet := false
		for _, ev := range events {
			if ev.PlayerID == playerID {
				switch ev.Type {
				case domain.EventGoal:
					s.Goals++
					participated = true
				case domain.EventYellowCard:
					s.YellowCards++
					participated = true
				case domain.EventRedCard:
					s.RedCards++
					participated = true
				case domain.EventSubstitution:
					participated = true
				}
			}
			if ev.Type == domain.EventGoal && ev.Goal != nil && ev.Goal.AssistID == playerID {
				s.Assists++
			}
			if ev.Type == domain.EventMatchEnd && ev.Result != nil && ev.Result.GoalsAgainst == 0 {
				cleanSheet = true
			}
		}
		if participated {
			matchIDs = append(matchIDs, match.ID)
			if cleanSheet {
				s.CleanSheets++
			}
		}
	}

	// Distinct match ids are the authoritative matches count.
	s.Matches = len(matchIDs)
	s.MinutesPlayed = s.Matches * domain.MinutesPerMatch

	// Weight is not derivable from events; carry the stored value forward.
	weight, err := a.store.GetWeight(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("reading weight: %w", err)
	}
	s.Weight = weight
	s.UpdatedAt = time.Now()

	if err := a.store.ReplaceMatchesPlayed(ctx, playerID, matchIDs); err != nil {
		return nil, err
	}
	if err := a.store.Upsert(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Ensure returns the player's record, creating and backfilling it from
// history when absent. Safe to call redundantly.
func (a *Aggregator) Ensure(ctx context.Context, playerID, teamID string) (*domain.PlayerStatistics, error) {
	var result *domain.PlayerStatistics
	err := a.run(playerID, func() error {
		s, err := a.store.Get(ctx, playerID)
		if err == nil {
			result = s
			return nil
		}
		if !errors.Is(err, domain.ErrPlayerNotFound) {
			return err
		}
		zero := &domain.PlayerStatistics{
			PlayerID:  playerID,
			TeamID:    teamID,
			UpdatedAt: time.Now(),
		}
		if err := a.store.Upsert(ctx, zero); err != nil {
			return err
		}
		s, err = a.recalculate(ctx, playerID, teamID)
		result = s
		return err
	})
	return result, err
}
