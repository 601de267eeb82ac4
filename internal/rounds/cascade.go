package rounds

import (
	"context"
	"fmt"

	"bracket-app/internal/model"
	"bracket-app/internal/store"
)

// DeleteResult reports a committed deletion. RankingErr is set when the
// follow-up recalculation failed; the deletion itself stands.
type DeleteResult struct {
	StageItemID    string
	DeletedMatches int
	Ranking        []model.RankingEntry
	RankingErr     error
}

// ResultUpdate reports a committed match result and the refreshed ranking.
type ResultUpdate struct {
	Match      model.Match
	Ranking    []model.RankingEntry
	RankingErr error
}

// DeleteRound removes a round and every match it owns as one unit, then
// recalculates the ranking of its stage item.
func (m *Manager) DeleteRound(ctx context.Context, tournamentID, roundID string) (DeleteResult, error) {
	var res DeleteResult
	err := m.store.Update(ctx, func(tx store.Tx) error {
		round, sc, err := lockRound(ctx, tx, tournamentID, roundID)
		if err != nil {
			return err
		}
		if err := writable(sc.tournament); err != nil {
			return err
		}
		matches, err := tx.ListMatches(ctx, roundID)
		if err != nil {
			return err
		}

		var b store.Batch
		for _, match := range matches {
			b.DeleteMatch(match.ID)
		}
		b.DeleteRound(round.ID)
		if err := b.Apply(ctx, tx); err != nil {
			return err
		}
		res.StageItemID = round.StageItemID
		res.DeletedMatches = len(matches)
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}

	m.logger.Debug().
		Str("round_id", roundID).
		Int("matches", res.DeletedMatches).
		Msg("round deleted")
	res.Ranking, res.RankingErr = m.refreshRanking(ctx, res.StageItemID)
	return res, nil
}

// RecordResult stores the final score of a match and recalculates the
// ranking of its stage item.
func (m *Manager) RecordResult(ctx context.Context, tournamentID, matchID string, score1, score2 int) (ResultUpdate, error) {
	if score1 < 0 || score2 < 0 {
		return ResultUpdate{}, fmt.Errorf("scores must not be negative: %w", ErrInvalidArgument)
	}
	var (
		res         ResultUpdate
		stageItemID string
	)
	err := m.store.Update(ctx, func(tx store.Tx) error {
		match, err := tx.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}
		round, sc, err := lockRound(ctx, tx, tournamentID, match.RoundID)
		if err != nil {
			return err
		}
		if err := writable(sc.tournament); err != nil {
			return err
		}
		if match.IsBye() {
			return fmt.Errorf("match %s is a bye: %w", matchID, ErrInvalidArgument)
		}

		match.Team1Score, match.Team2Score = score1, score2
		match.Status = model.MatchCompleted
		var b store.Batch
		b.UpdateMatch(match)
		if err := b.Apply(ctx, tx); err != nil {
			return err
		}
		res.Match = match
		stageItemID = round.StageItemID
		return nil
	})
	if err != nil {
		return ResultUpdate{}, err
	}

	res.Ranking, res.RankingErr = m.refreshRanking(ctx, stageItemID)
	return res, nil
}

// refreshRanking runs after commit. A failure is logged and handed back to the
// caller as a warning.
func (m *Manager) refreshRanking(ctx context.Context, stageItemID string) ([]model.RankingEntry, error) {
	if m.ranker == nil {
		return nil, nil
	}
	ranking, err := m.ranker.Recalculate(ctx, stageItemID)
	if err != nil {
		m.logger.Warn().
			Err(err).
			Str("stage_item_id", stageItemID).
			Msg("ranking recalculation failed after commit")
		return nil, fmt.Errorf("recalculate ranking for stage item %s: %w", stageItemID, err)
	}
	return ranking, nil
}
