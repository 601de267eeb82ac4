package ranking

import (
	"context"
	"testing"

	"bracket-app/internal/model"
	"bracket-app/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type world struct {
	store      *store.MemoryStore
	tournament model.Tournament
	swiss      model.StageItem
	robin      model.StageItem
}

func newWorld(t *testing.T) world {
	t.Helper()
	ctx := context.Background()
	w := world{store: store.NewMemoryStore()}
	require.NoError(t, w.store.Update(ctx, func(tx store.Tx) error {
		var err error
		if w.tournament, err = tx.CreateTournament(ctx, model.Tournament{ClubID: "club", Name: "Cup"}); err != nil {
			return err
		}
		for _, id := range []string{"A", "B", "C", "D"} {
			if _, err := tx.CreateTeam(ctx, model.Team{ID: id, TournamentID: w.tournament.ID, Name: "Team " + id}); err != nil {
				return err
			}
		}
		stage, err := tx.CreateStage(ctx, model.Stage{TournamentID: w.tournament.ID, Name: "Groups", Position: 1})
		if err != nil {
			return err
		}
		if w.swiss, err = tx.CreateStageItem(ctx, model.StageItem{ID: "si-1", StageID: stage.ID, Name: "Swiss", Type: model.StageItemSwiss, TeamIDs: []string{"A", "B", "C", "D"}}); err != nil {
			return err
		}
		if w.robin, err = tx.CreateStageItem(ctx, model.StageItem{ID: "si-2", StageID: stage.ID, Name: "Robin", Type: model.StageItemRoundRobin, TeamIDs: []string{"A", "B"}}); err != nil {
			return err
		}
		r1, err := tx.CreateRound(ctx, model.Round{StageItemID: w.swiss.ID, Name: "Round 1", IsActive: true})
		if err != nil {
			return err
		}
		for _, m := range []model.Match{
			completed("", r1.ID, "A", "B", 2, 1),
			completed("", r1.ID, "C", "D", 2, 0),
		} {
			if _, err := tx.CreateMatch(ctx, m); err != nil {
				return err
			}
		}
		r2, err := tx.CreateRound(ctx, model.Round{StageItemID: w.robin.ID, Name: "Round 1", IsActive: true})
		if err != nil {
			return err
		}
		_, err = tx.CreateMatch(ctx, completed("", r2.ID, "B", "A", 4, 0))
		return err
	}))
	return w
}

func TestRecalculateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	calc := NewCalculator(w.store)

	first, err := calc.Recalculate(ctx, w.swiss.ID)
	require.NoError(t, err)
	second, err := calc.Recalculate(ctx, w.swiss.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"C", "A", "B", "D"}, teamOrder(first))
	assert.Equal(t, "Team C", first[0].TeamName)
}

func TestRecalculateUnknownStageItem(t *testing.T) {
	calc := NewCalculator(newWorld(t).store)
	_, err := calc.Recalculate(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecalculateTournament(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	calc := NewCalculator(w.store, WithParallelism(2))

	all, err := calc.RecalculateTournament(ctx, w.tournament.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, w.swiss.ID, all[0].StageItemID)
	assert.Equal(t, []string{"C", "A", "B", "D"}, teamOrder(all[0].Ranking))
	assert.Equal(t, w.robin.ID, all[1].StageItemID)
	assert.Equal(t, []string{"B", "A"}, teamOrder(all[1].Ranking))

	_, err = calc.RecalculateTournament(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}
