package ranking

import (
	"context"
	"fmt"

	"bracket-app/internal/model"
	"bracket-app/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Calculator struct {
	store       store.Store
	logger      zerolog.Logger
	parallelism int
}

type Option func(*Calculator)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Calculator) { c.logger = l }
}

// WithParallelism bounds how many stage items RecalculateTournament computes
// at once.
func WithParallelism(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

func NewCalculator(s store.Store, opts ...Option) *Calculator {
	c := &Calculator{store: s, logger: zerolog.Nop(), parallelism: 4}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StageItemRanking is the ranking of one stage item within a tournament.
type StageItemRanking struct {
	StageItemID string               `json:"stage_item_id"`
	Name        string               `json:"name"`
	Ranking     []model.RankingEntry `json:"ranking"`
}

// Recalculate reads the stage item, its rounds and their matches from one
// snapshot and returns the freshly computed ranking.
func (c *Calculator) Recalculate(ctx context.Context, stageItemID string) ([]model.RankingEntry, error) {
	var (
		item    model.StageItem
		teams   []model.Team
		rounds  []model.Round
		matches []model.Match
	)
	err := c.store.View(ctx, func(r store.Reader) error {
		var err error
		if item, err = r.GetStageItem(ctx, stageItemID); err != nil {
			return err
		}
		stage, err := r.GetStage(ctx, item.StageID)
		if err != nil {
			return err
		}
		if teams, err = r.ListTeams(ctx, stage.TournamentID); err != nil {
			return err
		}
		if rounds, err = r.ListRounds(ctx, stageItemID); err != nil {
			return err
		}
		for _, round := range rounds {
			ms, err := r.ListMatches(ctx, round.ID)
			if err != nil {
				return err
			}
			matches = append(matches, ms...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load stage item %s: %w", stageItemID, err)
	}

	entries, err := Compute(item, teams, rounds, matches)
	if err != nil {
		return nil, fmt.Errorf("rank stage item %s: %w", stageItemID, err)
	}
	c.logger.Debug().
		Str("stage_item_id", stageItemID).
		Int("rounds", len(rounds)).
		Int("matches", len(matches)).
		Msg("ranking recalculated")
	return entries, nil
}

// RecalculateTournament ranks every stage item of the tournament. Stage items
// are computed concurrently, each from its own snapshot, and returned in stage
// order.
func (c *Calculator) RecalculateTournament(ctx context.Context, tournamentID string) ([]StageItemRanking, error) {
	var items []model.StageItem
	err := c.store.View(ctx, func(r store.Reader) error {
		if _, err := r.GetTournament(ctx, tournamentID); err != nil {
			return err
		}
		stages, err := r.ListStages(ctx, tournamentID)
		if err != nil {
			return err
		}
		for _, st := range stages {
			stageItems, err := r.ListStageItems(ctx, st.ID)
			if err != nil {
				return err
			}
			items = append(items, stageItems...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load tournament %s: %w", tournamentID, err)
	}

	results := make([]StageItemRanking, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			entries, err := c.Recalculate(gctx, item.ID)
			if err != nil {
				return err
			}
			results[i] = StageItemRanking{StageItemID: item.ID, Name: item.Name, Ranking: entries}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
