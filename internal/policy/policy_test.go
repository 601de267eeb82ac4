package policy

import (
	"testing"

	"bracket-app/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForKnownTypes(t *testing.T) {
	cases := []struct {
		typ        model.StageItemType
		dynamic    bool
		activation ActivationMode
		scoring    ScoringRule
	}{
		{model.StageItemSingleElimination, false, SingleActive, WinCount},
		{model.StageItemDoubleElimination, false, SingleActive, WinCount},
		{model.StageItemRoundRobin, false, MultiActive, PointsTable},
		{model.StageItemSwiss, true, SingleActive, PointsTable},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			p, err := For(tc.typ)
			require.NoError(t, err)
			assert.Equal(t, tc.dynamic, p.SupportsDynamicRounds)
			assert.Equal(t, tc.activation, p.Activation)
			assert.Equal(t, tc.scoring, p.Scoring)
			assert.True(t, Known(tc.typ))
		})
	}
}

func TestForUnknownType(t *testing.T) {
	_, err := For(model.StageItemType("LADDER"))
	require.ErrorIs(t, err, ErrUnknownStageItemType)
	assert.False(t, Known(model.StageItemType("LADDER")))
}

func TestModeStrings(t *testing.T) {
	assert.Equal(t, "single-active", SingleActive.String())
	assert.Equal(t, "multi-active", MultiActive.String())
	assert.Equal(t, "win-count", WinCount.String())
	assert.Equal(t, "points-table", PointsTable.String())
}
