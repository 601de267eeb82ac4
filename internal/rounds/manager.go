// Package rounds owns the round lifecycle of a stage item: creation with
// name generation, activation and drafting, renaming, and deletion with the
// follow-up ranking refresh.
package rounds

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"bracket-app/internal/model"
	"bracket-app/internal/policy"
	"bracket-app/internal/quota"
	"bracket-app/internal/store"

	"github.com/rs/zerolog"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type QuotaChecker interface {
	CheckRequirement(existing []model.Round, user model.User, req quota.Requirement) error
}

type Ranker interface {
	Recalculate(ctx context.Context, stageItemID string) ([]model.RankingEntry, error)
}

type Manager struct {
	store  store.Store
	quota  QuotaChecker
	ranker Ranker
	clock  Clock
	logger zerolog.Logger
}

type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(s store.Store, q QuotaChecker, r Ranker, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		quota:  q,
		ranker: r,
		clock:  ClockFunc(time.Now),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RoundUpdate carries the optional fields of a round edit.
type RoundUpdate struct {
	Name    *string
	IsDraft *bool
}

type scope struct {
	tournament model.Tournament
	item       model.StageItem
	policy     policy.Policy
}

// resolveStageItem walks StageItem -> Stage -> Tournament and fails with
// ErrNotFound when the chain does not end at tournamentID.
func resolveStageItem(ctx context.Context, r store.Reader, tournamentID, stageItemID string) (scope, error) {
	item, err := r.GetStageItem(ctx, stageItemID)
	if err != nil {
		return scope{}, err
	}
	stage, err := r.GetStage(ctx, item.StageID)
	if err != nil {
		return scope{}, err
	}
	if stage.TournamentID != tournamentID {
		return scope{}, fmt.Errorf("stage item %s in tournament %s: %w", stageItemID, tournamentID, ErrNotFound)
	}
	tournament, err := r.GetTournament(ctx, tournamentID)
	if err != nil {
		return scope{}, err
	}
	p, err := policy.For(item.Type)
	if err != nil {
		return scope{}, fmt.Errorf("%w: %v", ErrUnsupportedOperation, err)
	}
	return scope{tournament: tournament, item: item, policy: p}, nil
}

// lockRound locks the round and its stage item, in that order, and resolves
// ownership.
func lockRound(ctx context.Context, tx store.Tx, tournamentID, roundID string) (model.Round, scope, error) {
	if err := tx.LockRound(ctx, roundID); err != nil {
		return model.Round{}, scope{}, err
	}
	round, err := tx.GetRound(ctx, roundID)
	if err != nil {
		return model.Round{}, scope{}, err
	}
	if err := tx.LockStageItem(ctx, round.StageItemID); err != nil {
		return model.Round{}, scope{}, err
	}
	sc, err := resolveStageItem(ctx, tx, tournamentID, round.StageItemID)
	if err != nil {
		return model.Round{}, scope{}, err
	}
	return round, sc, nil
}

func writable(t model.Tournament) error {
	if t.Archived() {
		return fmt.Errorf("tournament %s is archived: %w", t.ID, ErrConflictingState)
	}
	return nil
}

// CreateRound inserts a draft round into a stage item that supports dynamic
// rounds. Any earlier draft of the stage item is published, so the new round
// is the only draft afterwards.
func (m *Manager) CreateRound(ctx context.Context, user model.User, tournamentID, stageItemID string, name *string) (model.Round, error) {
	var created model.Round
	err := m.store.Update(ctx, func(tx store.Tx) error {
		// The quota counts rounds across the tournament, so creates in
		// different stage items serialize on the tournament row.
		if err := tx.LockTournament(ctx, tournamentID); err != nil {
			return err
		}
		if err := tx.LockStageItem(ctx, stageItemID); err != nil {
			return err
		}
		sc, err := resolveStageItem(ctx, tx, tournamentID, stageItemID)
		if err != nil {
			return err
		}
		if err := writable(sc.tournament); err != nil {
			return err
		}

		existing, err := tx.ListTournamentRounds(ctx, tournamentID)
		if err != nil {
			return err
		}
		if err := m.quota.CheckRequirement(existing, user, quota.MaxRounds); err != nil {
			return err
		}
		if !sc.policy.SupportsDynamicRounds {
			return fmt.Errorf("stage type %s doesn't support manual creation of rounds: %w", sc.item.Type, ErrUnsupportedOperation)
		}

		siblings, err := tx.ListRounds(ctx, stageItemID)
		if err != nil {
			return err
		}
		roundName, err := chooseName(siblings, name)
		if err != nil {
			return err
		}

		created = model.Round{
			ID:          store.NewID(),
			StageItemID: stageItemID,
			Name:        roundName,
			IsDraft:     true,
			CreatedAt:   m.clock.Now(),
		}
		set := newRoundSet(siblings)
		set.publishDraftsExcept(created.ID, sc.policy.Activation)

		var b store.Batch
		b.CreateRound(created)
		set.plan(&b)
		return b.Apply(ctx, tx)
	})
	if err != nil {
		return model.Round{}, err
	}
	m.logger.Debug().
		Str("tournament_id", tournamentID).
		Str("stage_item_id", stageItemID).
		Str("round_id", created.ID).
		Str("name", created.Name).
		Msg("round created")
	return created, nil
}

// SetActiveOrDraft moves a round to Active (isDraft false) or Draft (isDraft
// true) under the activation mode of its stage item type.
func (m *Manager) SetActiveOrDraft(ctx context.Context, tournamentID, roundID string, isDraft bool) error {
	return m.store.Update(ctx, func(tx store.Tx) error {
		round, sc, err := lockRound(ctx, tx, tournamentID, roundID)
		if err != nil {
			return err
		}
		if err := writable(sc.tournament); err != nil {
			return err
		}
		siblings, err := tx.ListRounds(ctx, round.StageItemID)
		if err != nil {
			return err
		}
		set := newRoundSet(siblings)
		if err := set.transition(roundID, isDraft, sc.policy.Activation); err != nil {
			return err
		}
		var b store.Batch
		set.plan(&b)
		m.logger.Debug().
			Str("round_id", roundID).
			Bool("is_draft", isDraft).
			Stringer("activation", sc.policy.Activation).
			Int("changes", b.Len()).
			Msg("round state change")
		return b.Apply(ctx, tx)
	})
}

// UpdateRound renames a round and/or changes its draft flag in one
// transaction.
func (m *Manager) UpdateRound(ctx context.Context, tournamentID, roundID string, upd RoundUpdate) (model.Round, error) {
	var updated model.Round
	err := m.store.Update(ctx, func(tx store.Tx) error {
		round, sc, err := lockRound(ctx, tx, tournamentID, roundID)
		if err != nil {
			return err
		}
		if err := writable(sc.tournament); err != nil {
			return err
		}
		siblings, err := tx.ListRounds(ctx, round.StageItemID)
		if err != nil {
			return err
		}
		set := newRoundSet(siblings)

		if upd.Name != nil {
			newName := strings.TrimSpace(*upd.Name)
			if newName == "" {
				return fmt.Errorf("round name is empty: %w", ErrInvalidArgument)
			}
			if newName != round.Name {
				if nameTaken(siblings, newName, roundID) {
					return fmt.Errorf("round name %q already used: %w", newName, ErrConflictingState)
				}
				set.rename(roundID, newName)
			}
		}
		if upd.IsDraft != nil && *upd.IsDraft != round.IsDraft {
			if err := set.transition(roundID, *upd.IsDraft, sc.policy.Activation); err != nil {
				return err
			}
		}

		var b store.Batch
		set.plan(&b)
		if err := b.Apply(ctx, tx); err != nil {
			return err
		}
		updated, err = tx.GetRound(ctx, roundID)
		return err
	})
	if err != nil {
		return model.Round{}, err
	}
	return updated, nil
}

// CreateMatch adds a pending match to a round. An empty team id is a bye.
func (m *Manager) CreateMatch(ctx context.Context, tournamentID, roundID, team1ID, team2ID string) (model.Match, error) {
	team1ID, team2ID = strings.TrimSpace(team1ID), strings.TrimSpace(team2ID)
	var created model.Match
	err := m.store.Update(ctx, func(tx store.Tx) error {
		_, sc, err := lockRound(ctx, tx, tournamentID, roundID)
		if err != nil {
			return err
		}
		if err := writable(sc.tournament); err != nil {
			return err
		}
		if team1ID == "" && team2ID == "" {
			return fmt.Errorf("match needs at least one team: %w", ErrInvalidArgument)
		}
		if team1ID == team2ID {
			return fmt.Errorf("team %s cannot play itself: %w", team1ID, ErrInvalidArgument)
		}
		for _, id := range []string{team1ID, team2ID} {
			if id != "" && !sc.item.HasTeam(id) {
				return fmt.Errorf("team %s is not part of stage item %s: %w", id, sc.item.ID, ErrInvalidArgument)
			}
		}
		created, err = tx.CreateMatch(ctx, model.Match{
			ID:        store.NewID(),
			RoundID:   roundID,
			Team1ID:   team1ID,
			Team2ID:   team2ID,
			Status:    model.MatchPending,
			CreatedAt: m.clock.Now(),
		})
		return err
	})
	if err != nil {
		return model.Match{}, err
	}
	return created, nil
}

func chooseName(siblings []model.Round, requested *string) (string, error) {
	if requested != nil {
		if name := strings.TrimSpace(*requested); name != "" {
			if nameTaken(siblings, name, "") {
				return "", fmt.Errorf("round name %q already used: %w", name, ErrConflictingState)
			}
			return name, nil
		}
	}
	return nextRoundName(siblings), nil
}

// nextRoundName returns "Round N" with N one above the highest existing
// "Round N". Gaps are reused only once N cannot grow any further.
func nextRoundName(siblings []model.Round) string {
	highest := 0
	for _, r := range siblings {
		if n, ok := roundNumber(r.Name); ok && n > highest {
			highest = n
		}
	}
	if highest < math.MaxInt {
		return "Round " + strconv.Itoa(highest+1)
	}
	for n := 1; ; n++ {
		if name := "Round " + strconv.Itoa(n); !nameTaken(siblings, name, "") {
			return name
		}
	}
}

func roundNumber(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "Round ")
	if !ok || rest == "" {
		return 0, false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func nameTaken(siblings []model.Round, name, exceptID string) bool {
	for _, r := range siblings {
		if r.ID != exceptID && r.Name == name {
			return true
		}
	}
	return false
}
