package ranking

import (
	"testing"

	"bracket-app/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completed(id, round, t1, t2 string, s1, s2 int) model.Match {
	return model.Match{ID: id, RoundID: round, Team1ID: t1, Team2ID: t2, Team1Score: s1, Team2Score: s2, Status: model.MatchCompleted}
}

func teamOrder(entries []model.RankingEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.TeamID)
	}
	return out
}

var oneRound = []model.Round{{ID: "r1", StageItemID: "si"}}

func TestComputeEndToEndOrder(t *testing.T) {
	item := model.StageItem{ID: "si", Type: model.StageItemSwiss, TeamIDs: []string{"A", "B", "C", "D"}}
	matches := []model.Match{
		completed("m1", "r1", "A", "B", 2, 1),
		completed("m2", "r1", "C", "D", 2, 0),
	}

	entries, err := Compute(item, nil, oneRound, matches)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B", "D"}, teamOrder(entries))

	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, 2, entries[0].ScoreDifferential)
	assert.Equal(t, 1, entries[1].ScoreDifferential)
	assert.Equal(t, DecidedByScoreDifferential, entries[0].DecidedBy)
	assert.Equal(t, DecidedByPoints, entries[1].DecidedBy)
	assert.Equal(t, DecidedByScoreDifferential, entries[2].DecidedBy)
	assert.Empty(t, entries[3].DecidedBy)
}

func TestComputeHeadToHeadBeatsDifferential(t *testing.T) {
	item := model.StageItem{ID: "si", Type: model.StageItemSwiss, TeamIDs: []string{"X", "Y", "Z"}}
	matches := []model.Match{
		completed("m1", "r1", "X", "Y", 1, 0),
		completed("m2", "r1", "Y", "Z", 9, 0),
		completed("m3", "r1", "Z", "X", 1, 0),
		completed("m4", "r1", "Z", "Y", 0, 1),
	}
	// X: 1 win (vs Y), 1 loss. Y: 2 wins, 1 loss. Z: 1 win, 2 losses.
	entries, err := Compute(item, nil, oneRound, matches)
	require.NoError(t, err)
	require.Equal(t, "Y", entries[0].TeamID)

	two := model.StageItem{ID: "si", Type: model.StageItemSwiss, TeamIDs: []string{"Y", "X"}}
	entries, err = Compute(two, nil, oneRound, []model.Match{
		completed("m1", "r1", "X", "Y", 1, 0),
		completed("m2", "r1", "Y", "X", 0, 0),
		completed("m3", "r1", "Y", "Q", 10, 0),
		completed("m4", "r1", "X", "Q", 0, 1),
	})
	require.NoError(t, err)
	// X and Y finish level on points. Y has the better differential but X
	// won their meeting.
	assert.Equal(t, []string{"X", "Y", "Q"}, teamOrder(entries)[:3])
	assert.Equal(t, DecidedByHeadToHead, entries[0].DecidedBy)
}

func TestComputeHeadToHeadOnlyForTwoWayTies(t *testing.T) {
	item := model.StageItem{ID: "si", Type: model.StageItemSingleElimination, TeamIDs: []string{"A", "B", "C"}}
	matches := []model.Match{
		completed("m1", "r1", "A", "B", 1, 0),
		completed("m2", "r1", "B", "C", 5, 0),
		completed("m3", "r1", "C", "A", 3, 0),
	}
	// Three-way tie on one win each, resolved by differential: B +4, C -2, A -2.
	entries, err := Compute(item, nil, oneRound, matches)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, teamOrder(entries))
	assert.Equal(t, DecidedByScoreDifferential, entries[0].DecidedBy)
	assert.Equal(t, DecidedBySeed, entries[1].DecidedBy)
}

func TestComputeIgnoresPendingByesAndForeignRounds(t *testing.T) {
	item := model.StageItem{ID: "si", Type: model.StageItemSwiss, TeamIDs: []string{"A", "B"}}
	matches := []model.Match{
		{ID: "m1", RoundID: "r1", Team1ID: "A", Team2ID: "B", Team1Score: 3, Team2Score: 0, Status: model.MatchPending},
		completed("m2", "r1", "A", "", 3, 0),
		completed("m3", "other", "B", "A", 3, 0),
	}
	entries, err := Compute(item, nil, oneRound, matches)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Zero(t, e.Played)
		assert.Zero(t, e.Points)
	}
	assert.Equal(t, []string{"A", "B"}, teamOrder(entries))
	assert.Equal(t, DecidedBySeed, entries[0].DecidedBy)
}

func TestComputePointsTable(t *testing.T) {
	teams := []model.Team{{ID: "A", Name: "Alpha"}, {ID: "B", Name: "Bravo"}}
	matches := []model.Match{
		completed("m1", "r1", "A", "B", 2, 2),
		completed("m2", "r1", "A", "B", 3, 1),
	}

	t.Run("defaults", func(t *testing.T) {
		item := model.StageItem{ID: "si", Type: model.StageItemRoundRobin, TeamIDs: []string{"A", "B"}}
		entries, err := Compute(item, teams, oneRound, matches)
		require.NoError(t, err)
		assert.Equal(t, "Alpha", entries[0].TeamName)
		assert.Equal(t, 1.5, entries[0].Points)
		assert.Equal(t, 0.5, entries[1].Points)
		assert.Equal(t, 1, entries[1].Draws)
	})

	t.Run("custom rules with score points", func(t *testing.T) {
		item := model.StageItem{
			ID:      "si",
			Type:    model.StageItemRoundRobin,
			TeamIDs: []string{"A", "B"},
			Rules:   &model.RankingRules{WinPoints: 3, DrawPoints: 1, LossPoints: 0, AddScorePoints: true},
		}
		entries, err := Compute(item, teams, oneRound, matches)
		require.NoError(t, err)
		assert.Equal(t, 3.0+1.0+5.0, entries[0].Points)
		assert.Equal(t, 1.0+3.0, entries[1].Points)
	})

	t.Run("win count ignores rules", func(t *testing.T) {
		item := model.StageItem{
			ID:      "si",
			Type:    model.StageItemDoubleElimination,
			TeamIDs: []string{"A", "B"},
			Rules:   &model.RankingRules{WinPoints: 3},
		}
		entries, err := Compute(item, teams, oneRound, matches)
		require.NoError(t, err)
		assert.Equal(t, 1.0, entries[0].Points)
	})
}

func TestComputeUnknownType(t *testing.T) {
	_, err := Compute(model.StageItem{Type: "LADDER"}, nil, nil, nil)
	require.Error(t, err)
}

func TestComputeAppendsTeamsSeenOnlyInMatches(t *testing.T) {
	item := model.StageItem{ID: "si", Type: model.StageItemSwiss, TeamIDs: []string{"A"}}
	entries, err := Compute(item, nil, oneRound, []model.Match{completed("m1", "r1", "Z", "Y", 0, 0)})
	require.NoError(t, err)
	// Z and Y draw for half a point each and keep first-seen order.
	assert.Equal(t, []string{"Z", "Y", "A"}, teamOrder(entries))
	assert.Equal(t, DecidedBySeed, entries[0].DecidedBy)
}
