package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bracket-app/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends(t *testing.T) []backend {
	t.Helper()
	out := []backend{
		{name: "memory", open: func(t *testing.T) Store { return NewMemoryStore() }},
		{name: "sqlite", open: func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bracket.db"), SQLiteOptions{})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		out = append(out, backend{name: "postgres", open: func(t *testing.T) Store {
			s, err := NewPostgresStore(dsn, PostgresOptions{})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}})
	}
	return out
}

type fixture struct {
	tournament model.Tournament
	stage      model.Stage
	item       model.StageItem
}

func seedFixture(t *testing.T, s Store) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		var err error
		if f.tournament, err = tx.CreateTournament(ctx, model.Tournament{ID: NewID(), ClubID: "club-1", Name: "Cup"}); err != nil {
			return err
		}
		if f.stage, err = tx.CreateStage(ctx, model.Stage{TournamentID: f.tournament.ID, Name: "Groups", Position: 1}); err != nil {
			return err
		}
		f.item, err = tx.CreateStageItem(ctx, model.StageItem{
			StageID: f.stage.ID,
			Name:    "Swiss",
			Type:    model.StageItemSwiss,
			TeamIDs: []string{"a", "b"},
			Rules:   &model.RankingRules{WinPoints: 3, DrawPoints: 1},
		})
		return err
	}))
	return f
}

func TestStoreRoundLifecycle(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			f := seedFixture(t, s)
			created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

			var round model.Round
			require.NoError(t, s.Update(ctx, func(tx Tx) error {
				require.NoError(t, tx.LockStageItem(ctx, f.item.ID))
				var err error
				round, err = tx.CreateRound(ctx, model.Round{StageItemID: f.item.ID, Name: "Round 1", IsDraft: true, CreatedAt: created})
				return err
			}))

			require.NoError(t, s.View(ctx, func(r Reader) error {
				got, err := r.GetRound(ctx, round.ID)
				require.NoError(t, err)
				assert.Equal(t, "Round 1", got.Name)
				assert.True(t, got.IsDraft)
				assert.True(t, got.CreatedAt.Equal(created))

				item, err := r.GetStageItem(ctx, f.item.ID)
				require.NoError(t, err)
				assert.Equal(t, []string{"a", "b"}, item.TeamIDs)
				require.NotNil(t, item.Rules)
				assert.Equal(t, 3.0, item.Rules.WinPoints)

				all, err := r.ListTournamentRounds(ctx, f.tournament.ID)
				require.NoError(t, err)
				assert.Len(t, all, 1)
				return nil
			}))

			round.IsDraft = false
			round.IsActive = true
			require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.UpdateRound(ctx, round) }))

			require.NoError(t, s.View(ctx, func(r Reader) error {
				got, err := r.GetRound(ctx, round.ID)
				require.NoError(t, err)
				assert.True(t, got.Active())
				return nil
			}))
		})
	}
}

func TestStoreDuplicateRoundNameConflicts(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			f := seedFixture(t, s)

			require.NoError(t, s.Update(ctx, func(tx Tx) error {
				_, err := tx.CreateRound(ctx, model.Round{StageItemID: f.item.ID, Name: "Round 1"})
				return err
			}))
			err := s.Update(ctx, func(tx Tx) error {
				_, err := tx.CreateRound(ctx, model.Round{StageItemID: f.item.ID, Name: "Round 1"})
				return err
			})
			require.ErrorIs(t, err, ErrConflict)
		})
	}
}

func TestStoreDeleteRoundCascadesMatches(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			f := seedFixture(t, s)

			var round model.Round
			var match model.Match
			require.NoError(t, s.Update(ctx, func(tx Tx) error {
				var err error
				if round, err = tx.CreateRound(ctx, model.Round{StageItemID: f.item.ID, Name: "Round 1"}); err != nil {
					return err
				}
				match, err = tx.CreateMatch(ctx, model.Match{RoundID: round.ID, Team1ID: "a", Team2ID: "b"})
				return err
			}))

			require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.DeleteRound(ctx, round.ID) }))

			require.NoError(t, s.View(ctx, func(r Reader) error {
				_, err := r.GetRound(ctx, round.ID)
				assert.ErrorIs(t, err, ErrNotFound)
				_, err = r.GetMatch(ctx, match.ID)
				assert.ErrorIs(t, err, ErrNotFound)
				return nil
			}))

			err := s.Update(ctx, func(tx Tx) error { return tx.DeleteRound(ctx, round.ID) })
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreFailedUpdateRollsBack(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			f := seedFixture(t, s)
			boom := errors.New("boom")

			err := s.Update(ctx, func(tx Tx) error {
				if _, err := tx.CreateRound(ctx, model.Round{StageItemID: f.item.ID, Name: "Round 1"}); err != nil {
					return err
				}
				return boom
			})
			require.ErrorIs(t, err, boom)

			require.NoError(t, s.View(ctx, func(r Reader) error {
				rounds, err := r.ListRounds(ctx, f.item.ID)
				require.NoError(t, err)
				assert.Empty(t, rounds)
				return nil
			}))
		})
	}
}

func TestStoreCreateRoundUnknownStageItem(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			err := s.Update(ctx, func(tx Tx) error {
				_, err := tx.CreateRound(ctx, model.Round{StageItemID: "missing", Name: "Round 1"})
				return err
			})
			assert.ErrorIs(t, err, ErrNotFound)

			err = s.Update(ctx, func(tx Tx) error { return tx.LockStageItem(ctx, "missing") })
			assert.ErrorIs(t, err, ErrNotFound)

			err = s.Update(ctx, func(tx Tx) error { return tx.LockTournament(ctx, "missing") })
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBatchStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	f := seedFixture(t, s)

	var round model.Round
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		var err error
		round, err = tx.CreateRound(ctx, model.Round{StageItemID: f.item.ID, Name: "Round 1"})
		return err
	}))

	var b Batch
	b.DeleteRound(round.ID)
	b.DeleteMatch("missing")
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []string{"delete round " + round.ID, "delete match missing"}, b.Steps())

	err := Commit(ctx, s, &b)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "delete match missing")

	require.NoError(t, s.View(ctx, func(r Reader) error {
		_, err := r.GetRound(ctx, round.ID)
		assert.NoError(t, err, "round delete must roll back with the failed batch")
		return nil
	}))
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	res, err := SeedDemo(ctx, s)
	require.NoError(t, err)
	require.Len(t, res.StageItemIDs, 2)

	require.NoError(t, s.View(ctx, func(r Reader) error {
		u, err := r.GetUser(ctx, DemoUserID)
		require.NoError(t, err)
		assert.Equal(t, model.AccountDemo, u.AccountType)
		assert.NotEmpty(t, u.APIKeyHash)

		rounds, err := r.ListTournamentRounds(ctx, res.TournamentID)
		require.NoError(t, err)
		assert.Len(t, rounds, 3)
		return nil
	}))
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", postgresDialect().rebind("SELECT 1 WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT 1 WHERE a = ?", sqliteDialect().rebind("SELECT 1 WHERE a = ?"))
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("/tmp/x.db", 2*time.Second)
	assert.Equal(t, "file:/tmp/x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(2000)&_txlock=immediate", dsn)
}
