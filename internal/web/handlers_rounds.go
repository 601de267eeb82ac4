package web

import (
	"errors"
	"net/http"

	"bracket-app/internal/rounds"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

type createRoundRequest struct {
	StageItemID string  `json:"stage_item_id"`
	Name        *string `json:"name"`
}

type updateRoundRequest struct {
	Name    *string `json:"name"`
	IsDraft *bool   `json:"is_draft"`
}

type createMatchRequest struct {
	Team1ID string `json:"team1_id"`
	Team2ID string `json:"team2_id"`
}

type resultRequest struct {
	Team1Score *int `json:"team1_score"`
	Team2Score *int `json:"team2_score"`
}

func (s *Server) handleRoundCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	var req createRoundRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	if req.StageItemID == "" {
		s.badRequest(w, r, errors.New("stage_item_id is required"))
		return
	}

	round, err := s.rounds.CreateRound(r.Context(), user, chi.URLParam(r, "tournamentID"), req.StageItemID, req.Name)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, envelope{"data": roundView(round)})
}

func (s *Server) handleRoundUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRoundRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}

	round, err := s.rounds.UpdateRound(r.Context(), chi.URLParam(r, "tournamentID"), chi.URLParam(r, "roundID"),
		rounds.RoundUpdate{Name: req.Name, IsDraft: req.IsDraft})
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, envelope{"data": roundView(round)})
}

func (s *Server) handleRoundDelete(w http.ResponseWriter, r *http.Request) {
	res, err := s.rounds.DeleteRound(r.Context(), chi.URLParam(r, "tournamentID"), chi.URLParam(r, "roundID"))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	view := DeleteRoundView{Success: true, Ranking: nonNil(res.Ranking)}
	if res.RankingErr != nil {
		hlog.FromRequest(r).Warn().Err(res.RankingErr).Str("stage_item_id", res.StageItemID).Msg("ranking not refreshed after delete")
		view.Warning = "round deleted but the ranking could not be recalculated"
	}
	s.respond(w, r, http.StatusOK, view)
}

func (s *Server) handleMatchCreate(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}

	match, err := s.rounds.CreateMatch(r.Context(), chi.URLParam(r, "tournamentID"), chi.URLParam(r, "roundID"), req.Team1ID, req.Team2ID)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, envelope{"data": matchView(match)})
}

func (s *Server) handleMatchResult(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	if req.Team1Score == nil || req.Team2Score == nil {
		s.badRequest(w, r, errors.New("team1_score and team2_score are required"))
		return
	}

	res, err := s.rounds.RecordResult(r.Context(), chi.URLParam(r, "tournamentID"), chi.URLParam(r, "matchID"), *req.Team1Score, *req.Team2Score)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	view := ResultView{Data: matchView(res.Match), Ranking: nonNil(res.Ranking)}
	if res.RankingErr != nil {
		hlog.FromRequest(r).Warn().Err(res.RankingErr).Str("match_id", res.Match.ID).Msg("ranking not refreshed after result")
		view.Warning = "result recorded but the ranking could not be recalculated"
	}
	s.respond(w, r, http.StatusOK, view)
}
