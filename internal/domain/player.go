package domain

import "time"

// PlayerStatistics is the derived aggregate record for a single player.
// All counters are rebuilt from event history by a recalculation; Weight is
// the one field that is not derivable from events and must survive it.
type PlayerStatistics struct {
	PlayerID      string    `json:"player_id"`
	TeamID        string    `json:"team_id,omitempty"`
	Scheduled     int       `json:"scheduled"`
	Attended      int       `json:"attended"`
	Missed        int       `json:"missed"`
	Goals         int       `json:"goals"`
	Assists       int       `json:"assists"`
	YellowCards   int       `json:"yellow_cards"`
	RedCards      int       `json:"red_cards"`
	CleanSheets   int       `json:"clean_sheets"`
	Matches       int       `json:"matches"`
	MinutesPlayed int       `json:"minutes_played"`
	Weight        float64   `json:"weight"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MinutesPerMatch is the simplified playing-time model: full match credit
// for every match a player appears in.
const MinutesPerMatch = 90
