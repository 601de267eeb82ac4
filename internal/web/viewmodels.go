package web

import (
	"time"

	"bracket-app/internal/model"
	"bracket-app/internal/ranking"
)

type RoundView struct {
	ID          string    `json:"id"`
	StageItemID string    `json:"stage_item_id"`
	Name        string    `json:"name"`
	IsDraft     bool      `json:"is_draft"`
	IsActive    bool      `json:"is_active"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
}

type MatchView struct {
	ID         string `json:"id"`
	RoundID    string `json:"round_id"`
	Team1ID    string `json:"team1_id"`
	Team2ID    string `json:"team2_id"`
	Team1Score int    `json:"team1_score"`
	Team2Score int    `json:"team2_score"`
	Status     string `json:"status"`
	Bye        bool   `json:"bye"`
}

type StageItemRankingView struct {
	StageItemID string               `json:"stage_item_id"`
	Name        string               `json:"name,omitempty"`
	Ranking     []model.RankingEntry `json:"ranking"`
}

type DeleteRoundView struct {
	Success bool                 `json:"success"`
	Ranking []model.RankingEntry `json:"ranking"`
	Warning string               `json:"warning,omitempty"`
}

type ResultView struct {
	Data    MatchView            `json:"data"`
	Ranking []model.RankingEntry `json:"ranking"`
	Warning string               `json:"warning,omitempty"`
}

func roundView(r model.Round) RoundView {
	state := "inactive"
	switch {
	case r.IsDraft:
		state = "draft"
	case r.IsActive:
		state = "active"
	}
	return RoundView{
		ID:          r.ID,
		StageItemID: r.StageItemID,
		Name:        r.Name,
		IsDraft:     r.IsDraft,
		IsActive:    r.IsActive,
		State:       state,
		CreatedAt:   r.CreatedAt,
	}
}

func matchView(m model.Match) MatchView {
	return MatchView{
		ID:         m.ID,
		RoundID:    m.RoundID,
		Team1ID:    m.Team1ID,
		Team2ID:    m.Team2ID,
		Team1Score: m.Team1Score,
		Team2Score: m.Team2Score,
		Status:     string(m.Status),
		Bye:        m.IsBye(),
	}
}

func rankingViews(in []ranking.StageItemRanking) []StageItemRankingView {
	out := make([]StageItemRankingView, 0, len(in))
	for _, r := range in {
		out = append(out, StageItemRankingView{StageItemID: r.StageItemID, Name: r.Name, Ranking: nonNil(r.Ranking)})
	}
	return out
}

func nonNil(entries []model.RankingEntry) []model.RankingEntry {
	if entries == nil {
		return []model.RankingEntry{}
	}
	return entries
}
