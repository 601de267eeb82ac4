package web

import (
	"context"
	"fmt"
	"net/http"

	"bracket-app/internal/model"
	"bracket-app/internal/store"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleStageItemRanking(w http.ResponseWriter, r *http.Request) {
	tournament, _ := currentTournament(r)
	item, err := s.stageItemOf(r.Context(), tournament.ID, chi.URLParam(r, "stageItemID"))
	if err != nil {
		s.mapError(w, r, err)
		return
	}

	entries, err := s.ranking.Recalculate(r.Context(), item.ID)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, envelope{"data": StageItemRankingView{
		StageItemID: item.ID,
		Name:        item.Name,
		Ranking:     nonNil(entries),
	}})
}

func (s *Server) handleTournamentRankings(w http.ResponseWriter, r *http.Request) {
	tournament, _ := currentTournament(r)
	rankings, err := s.ranking.RecalculateTournament(r.Context(), tournament.ID)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, envelope{"data": rankingViews(rankings)})
}

// stageItemOf loads a stage item and checks that it belongs to the
// tournament; a stage item of another tournament is reported as not found.
func (s *Server) stageItemOf(ctx context.Context, tournamentID, stageItemID string) (model.StageItem, error) {
	var item model.StageItem
	err := s.store.View(ctx, func(rd store.Reader) error {
		var err error
		item, err = rd.GetStageItem(ctx, stageItemID)
		if err != nil {
			return err
		}
		stage, err := rd.GetStage(ctx, item.StageID)
		if err != nil {
			return err
		}
		if stage.TournamentID != tournamentID {
			return fmt.Errorf("stage item %s: %w", stageItemID, store.ErrNotFound)
		}
		return nil
	})
	return item, err
}
