package model

import (
	"strings"
	"time"
)

type TournamentStatus string
type StageItemType string
type MatchStatus string
type AccountType string

const (
	TournamentOpen     TournamentStatus = "OPEN"
	TournamentArchived TournamentStatus = "ARCHIVED"

	StageItemSingleElimination StageItemType = "SINGLE_ELIMINATION"
	StageItemDoubleElimination StageItemType = "DOUBLE_ELIMINATION"
	StageItemRoundRobin        StageItemType = "ROUND_ROBIN"
	StageItemSwiss             StageItemType = "SWISS"

	MatchPending   MatchStatus = "pending"
	MatchCompleted MatchStatus = "completed"

	AccountDemo    AccountType = "DEMO"
	AccountRegular AccountType = "REGULAR"
)

type User struct {
	ID          string
	Name        string
	AccountType AccountType
	ClubIDs     []string
	APIKeyHash  string
}

func (u User) MemberOf(clubID string) bool {
	for _, id := range u.ClubIDs {
		if id == clubID {
			return true
		}
	}
	return false
}

type Tournament struct {
	ID              string
	ClubID          string
	Name            string
	Status          TournamentStatus
	DurationMinutes int
	MarginMinutes   int
	CreatedAt       time.Time
}

func (t Tournament) Archived() bool {
	return t.Status == TournamentArchived
}

type Stage struct {
	ID           string
	TournamentID string
	Name         string
	Position     int
	CreatedAt    time.Time
}

// RankingRules overrides the point values used by points-table scoring.
type RankingRules struct {
	WinPoints      float64 `json:"win_points"`
	DrawPoints     float64 `json:"draw_points"`
	LossPoints     float64 `json:"loss_points"`
	AddScorePoints bool    `json:"add_score_points"`
}

type StageItem struct {
	ID        string
	StageID   string
	Name      string
	Type      StageItemType
	TeamIDs   []string
	Rules     *RankingRules
	CreatedAt time.Time
}

func (s StageItem) HasTeam(teamID string) bool {
	for _, id := range s.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}

type Team struct {
	ID           string
	TournamentID string
	Name         string
	CreatedAt    time.Time
}

// Round is Draft while IsDraft is set, Active when published and IsActive,
// and Inactive when published but deactivated.
type Round struct {
	ID          string
	StageItemID string
	Name        string
	IsDraft     bool
	IsActive    bool
	CreatedAt   time.Time
}

func (r Round) Active() bool {
	return !r.IsDraft && r.IsActive
}

type Match struct {
	ID         string
	RoundID    string
	Team1ID    string
	Team2ID    string
	Team1Score int
	Team2Score int
	Status     MatchStatus
	CreatedAt  time.Time
}

func (m Match) Completed() bool {
	return m.Status == MatchCompleted
}

// IsBye reports whether one side of the match is a placeholder.
func (m Match) IsBye() bool {
	return strings.TrimSpace(m.Team1ID) == "" || strings.TrimSpace(m.Team2ID) == ""
}

type RankingEntry struct {
	Position          int     `json:"position"`
	TeamID            string  `json:"team_id"`
	TeamName          string  `json:"team_name"`
	Played            int     `json:"played"`
	Wins              int     `json:"wins"`
	Draws             int     `json:"draws"`
	Losses            int     `json:"losses"`
	Points            float64 `json:"points"`
	ScoreFor          int     `json:"score_for"`
	ScoreAgainst      int     `json:"score_against"`
	ScoreDifferential int     `json:"score_differential"`
	DecidedBy         string  `json:"decided_by,omitempty"`
}
