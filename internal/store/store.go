package store

import (
	"context"
	"errors"
	"fmt"

	"bracket-app/internal/model"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrTransactionFailed = errors.New("transaction failed")
)

type Reader interface {
	GetUser(ctx context.Context, id string) (model.User, error)

	GetTournament(ctx context.Context, id string) (model.Tournament, error)
	ListStages(ctx context.Context, tournamentID string) ([]model.Stage, error)
	GetStage(ctx context.Context, id string) (model.Stage, error)
	ListStageItems(ctx context.Context, stageID string) ([]model.StageItem, error)
	GetStageItem(ctx context.Context, id string) (model.StageItem, error)
	ListTeams(ctx context.Context, tournamentID string) ([]model.Team, error)

	ListRounds(ctx context.Context, stageItemID string) ([]model.Round, error)
	ListTournamentRounds(ctx context.Context, tournamentID string) ([]model.Round, error)
	GetRound(ctx context.Context, id string) (model.Round, error)

	ListMatches(ctx context.Context, roundID string) ([]model.Match, error)
	GetMatch(ctx context.Context, id string) (model.Match, error)
}

type Tx interface {
	Reader

	// LockTournament, LockStageItem and LockRound hold the row until the
	// transaction ends. They return ErrNotFound once the row is gone.
	LockTournament(ctx context.Context, id string) error
	LockStageItem(ctx context.Context, id string) error
	LockRound(ctx context.Context, id string) error

	CreateUser(ctx context.Context, user model.User) (model.User, error)
	CreateTournament(ctx context.Context, tournament model.Tournament) (model.Tournament, error)
	CreateStage(ctx context.Context, stage model.Stage) (model.Stage, error)
	CreateStageItem(ctx context.Context, item model.StageItem) (model.StageItem, error)
	CreateTeam(ctx context.Context, team model.Team) (model.Team, error)

	CreateRound(ctx context.Context, round model.Round) (model.Round, error)
	UpdateRound(ctx context.Context, round model.Round) error
	DeleteRound(ctx context.Context, id string) error

	CreateMatch(ctx context.Context, match model.Match) (model.Match, error)
	UpdateMatch(ctx context.Context, match model.Match) error
	DeleteMatch(ctx context.Context, id string) error
}

// Store runs units of work. View gets a consistent read snapshot; Update runs
// fn in a single transaction that is committed only when fn returns nil.
type Store interface {
	View(ctx context.Context, fn func(r Reader) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// NewID returns a time ordered identifier, so ordering by id follows
// creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Batch is an ordered list of planned mutations applied inside one
// transaction.
type Batch struct {
	steps []step
}

type step struct {
	desc  string
	apply func(ctx context.Context, tx Tx) error
}

func (b *Batch) Add(desc string, fn func(ctx context.Context, tx Tx) error) {
	b.steps = append(b.steps, step{desc: desc, apply: fn})
}

func (b *Batch) CreateRound(round model.Round) {
	b.Add("create round "+round.ID, func(ctx context.Context, tx Tx) error {
		_, err := tx.CreateRound(ctx, round)
		return err
	})
}

func (b *Batch) UpdateRound(round model.Round) {
	b.Add("update round "+round.ID, func(ctx context.Context, tx Tx) error {
		return tx.UpdateRound(ctx, round)
	})
}

func (b *Batch) DeleteRound(id string) {
	b.Add("delete round "+id, func(ctx context.Context, tx Tx) error {
		return tx.DeleteRound(ctx, id)
	})
}

func (b *Batch) DeleteMatch(id string) {
	b.Add("delete match "+id, func(ctx context.Context, tx Tx) error {
		return tx.DeleteMatch(ctx, id)
	})
}

func (b *Batch) UpdateMatch(match model.Match) {
	b.Add("update match "+match.ID, func(ctx context.Context, tx Tx) error {
		return tx.UpdateMatch(ctx, match)
	})
}

func (b *Batch) Len() int {
	return len(b.steps)
}

func (b *Batch) Steps() []string {
	out := make([]string, 0, len(b.steps))
	for _, s := range b.steps {
		out = append(out, s.desc)
	}
	return out
}

// Apply runs the planned steps in order and stops at the first failure.
func (b *Batch) Apply(ctx context.Context, tx Tx) error {
	for _, s := range b.steps {
		if err := s.apply(ctx, tx); err != nil {
			return fmt.Errorf("%s: %w", s.desc, err)
		}
	}
	return nil
}

// Commit applies b as its own transaction.
func Commit(ctx context.Context, s Store, b *Batch) error {
	return s.Update(ctx, func(tx Tx) error {
		return b.Apply(ctx, tx)
	})
}
