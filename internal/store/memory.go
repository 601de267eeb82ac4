package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bracket-app/internal/model"
)

// MemoryStore keeps everything in maps. Update works on a copy of the state
// and swaps it in only when the unit of work succeeds, so a failed
// transaction leaves nothing behind.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	users       map[string]model.User
	tournaments map[string]model.Tournament
	stages      map[string]model.Stage
	stageItems  map[string]model.StageItem
	teams       map[string]model.Team
	rounds      map[string]model.Round
	matches     map[string]model.Match
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		users:       make(map[string]model.User),
		tournaments: make(map[string]model.Tournament),
		stages:      make(map[string]model.Stage),
		stageItems:  make(map[string]model.StageItem),
		teams:       make(map[string]model.Team),
		rounds:      make(map[string]model.Round),
		matches:     make(map[string]model.Match),
	}}
}

func (s *MemoryStore) View(ctx context.Context, fn func(r Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{state: s.state})
}

func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if err := fn(&memTx{state: next}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	s.state = next
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (m *memState) clone() *memState {
	return &memState{
		users:       cloneMap(m.users),
		tournaments: cloneMap(m.tournaments),
		stages:      cloneMap(m.stages),
		stageItems:  cloneMap(m.stageItems),
		teams:       cloneMap(m.teams),
		rounds:      cloneMap(m.rounds),
		matches:     cloneMap(m.matches),
	}
}

func cloneMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

type memTx struct {
	state *memState
}

func (t *memTx) GetUser(_ context.Context, id string) (model.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	u.ClubIDs = append([]string(nil), u.ClubIDs...)
	return u, nil
}

func (t *memTx) GetTournament(_ context.Context, id string) (model.Tournament, error) {
	tournament, ok := t.state.tournaments[id]
	if !ok {
		return model.Tournament{}, fmt.Errorf("tournament %s: %w", id, ErrNotFound)
	}
	return tournament, nil
}

func (t *memTx) ListStages(_ context.Context, tournamentID string) ([]model.Stage, error) {
	stages := []model.Stage{}
	for _, st := range t.state.stages {
		if st.TournamentID == tournamentID {
			stages = append(stages, st)
		}
	}
	sort.Slice(stages, func(i, j int) bool {
		if stages[i].Position == stages[j].Position {
			return stages[i].ID < stages[j].ID
		}
		return stages[i].Position < stages[j].Position
	})
	return stages, nil
}

func (t *memTx) GetStage(_ context.Context, id string) (model.Stage, error) {
	st, ok := t.state.stages[id]
	if !ok {
		return model.Stage{}, fmt.Errorf("stage %s: %w", id, ErrNotFound)
	}
	return st, nil
}

func (t *memTx) ListStageItems(_ context.Context, stageID string) ([]model.StageItem, error) {
	items := []model.StageItem{}
	for _, item := range t.state.stageItems {
		if item.StageID == stageID {
			items = append(items, copyStageItem(item))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (t *memTx) GetStageItem(_ context.Context, id string) (model.StageItem, error) {
	item, ok := t.state.stageItems[id]
	if !ok {
		return model.StageItem{}, fmt.Errorf("stage item %s: %w", id, ErrNotFound)
	}
	return copyStageItem(item), nil
}

func (t *memTx) ListTeams(_ context.Context, tournamentID string) ([]model.Team, error) {
	teams := []model.Team{}
	for _, team := range t.state.teams {
		if team.TournamentID == tournamentID {
			teams = append(teams, team)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

func (t *memTx) ListRounds(_ context.Context, stageItemID string) ([]model.Round, error) {
	rounds := []model.Round{}
	for _, r := range t.state.rounds {
		if r.StageItemID == stageItemID {
			rounds = append(rounds, r)
		}
	}
	sortRounds(rounds)
	return rounds, nil
}

func (t *memTx) ListTournamentRounds(_ context.Context, tournamentID string) ([]model.Round, error) {
	rounds := []model.Round{}
	for _, r := range t.state.rounds {
		item, ok := t.state.stageItems[r.StageItemID]
		if !ok {
			continue
		}
		st, ok := t.state.stages[item.StageID]
		if !ok || st.TournamentID != tournamentID {
			continue
		}
		rounds = append(rounds, r)
	}
	sortRounds(rounds)
	return rounds, nil
}

func (t *memTx) GetRound(_ context.Context, id string) (model.Round, error) {
	r, ok := t.state.rounds[id]
	if !ok {
		return model.Round{}, fmt.Errorf("round %s: %w", id, ErrNotFound)
	}
	return r, nil
}

func (t *memTx) ListMatches(_ context.Context, roundID string) ([]model.Match, error) {
	matches := []model.Match{}
	for _, m := range t.state.matches {
		if m.RoundID == roundID {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches, nil
}

func (t *memTx) GetMatch(_ context.Context, id string) (model.Match, error) {
	m, ok := t.state.matches[id]
	if !ok {
		return model.Match{}, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	return m, nil
}

// The memory store serializes writers with its mutex, so locking only has to
// confirm the row still exists.
func (t *memTx) LockTournament(_ context.Context, id string) error {
	if _, ok := t.state.tournaments[id]; !ok {
		return fmt.Errorf("tournament %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *memTx) LockStageItem(_ context.Context, id string) error {
	if _, ok := t.state.stageItems[id]; !ok {
		return fmt.Errorf("stage item %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *memTx) LockRound(_ context.Context, id string) error {
	if _, ok := t.state.rounds[id]; !ok {
		return fmt.Errorf("round %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *memTx) CreateUser(_ context.Context, user model.User) (model.User, error) {
	if user.ID == "" {
		user.ID = NewID()
	}
	if _, exists := t.state.users[user.ID]; exists {
		return model.User{}, fmt.Errorf("user %s: %w", user.ID, ErrConflict)
	}
	if user.AccountType == "" {
		user.AccountType = model.AccountRegular
	}
	user.ClubIDs = append([]string(nil), user.ClubIDs...)
	t.state.users[user.ID] = user
	return user, nil
}

func (t *memTx) CreateTournament(_ context.Context, tournament model.Tournament) (model.Tournament, error) {
	if tournament.ID == "" {
		tournament.ID = NewID()
	}
	if tournament.Status == "" {
		tournament.Status = model.TournamentOpen
	}
	if tournament.CreatedAt.IsZero() {
		tournament.CreatedAt = time.Now()
	}
	t.state.tournaments[tournament.ID] = tournament
	return tournament, nil
}

func (t *memTx) CreateStage(_ context.Context, stage model.Stage) (model.Stage, error) {
	if _, ok := t.state.tournaments[stage.TournamentID]; !ok {
		return model.Stage{}, fmt.Errorf("tournament %s: %w", stage.TournamentID, ErrNotFound)
	}
	if stage.ID == "" {
		stage.ID = NewID()
	}
	if stage.CreatedAt.IsZero() {
		stage.CreatedAt = time.Now()
	}
	t.state.stages[stage.ID] = stage
	return stage, nil
}

func (t *memTx) CreateStageItem(_ context.Context, item model.StageItem) (model.StageItem, error) {
	if _, ok := t.state.stages[item.StageID]; !ok {
		return model.StageItem{}, fmt.Errorf("stage %s: %w", item.StageID, ErrNotFound)
	}
	if item.ID == "" {
		item.ID = NewID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item = copyStageItem(item)
	t.state.stageItems[item.ID] = item
	return copyStageItem(item), nil
}

func (t *memTx) CreateTeam(_ context.Context, team model.Team) (model.Team, error) {
	if _, ok := t.state.tournaments[team.TournamentID]; !ok {
		return model.Team{}, fmt.Errorf("tournament %s: %w", team.TournamentID, ErrNotFound)
	}
	if team.ID == "" {
		team.ID = NewID()
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now()
	}
	t.state.teams[team.ID] = team
	return team, nil
}

func (t *memTx) CreateRound(_ context.Context, round model.Round) (model.Round, error) {
	if _, ok := t.state.stageItems[round.StageItemID]; !ok {
		return model.Round{}, fmt.Errorf("stage item %s: %w", round.StageItemID, ErrNotFound)
	}
	if round.ID == "" {
		round.ID = NewID()
	}
	if round.CreatedAt.IsZero() {
		round.CreatedAt = time.Now()
	}
	if t.roundNameTaken(round) {
		return model.Round{}, fmt.Errorf("round name %q: %w", round.Name, ErrConflict)
	}
	t.state.rounds[round.ID] = round
	return round, nil
}

func (t *memTx) UpdateRound(_ context.Context, round model.Round) error {
	existing, ok := t.state.rounds[round.ID]
	if !ok {
		return fmt.Errorf("round %s: %w", round.ID, ErrNotFound)
	}
	round.StageItemID = existing.StageItemID
	round.CreatedAt = existing.CreatedAt
	if t.roundNameTaken(round) {
		return fmt.Errorf("round name %q: %w", round.Name, ErrConflict)
	}
	t.state.rounds[round.ID] = round
	return nil
}

// DeleteRound cascades to the round's matches like the SQL schemas do.
func (t *memTx) DeleteRound(_ context.Context, id string) error {
	if _, ok := t.state.rounds[id]; !ok {
		return fmt.Errorf("round %s: %w", id, ErrNotFound)
	}
	for matchID, m := range t.state.matches {
		if m.RoundID == id {
			delete(t.state.matches, matchID)
		}
	}
	delete(t.state.rounds, id)
	return nil
}

func (t *memTx) CreateMatch(_ context.Context, match model.Match) (model.Match, error) {
	if _, ok := t.state.rounds[match.RoundID]; !ok {
		return model.Match{}, fmt.Errorf("round %s: %w", match.RoundID, ErrNotFound)
	}
	if match.ID == "" {
		match.ID = NewID()
	}
	if match.Status == "" {
		match.Status = model.MatchPending
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now()
	}
	t.state.matches[match.ID] = match
	return match, nil
}

func (t *memTx) UpdateMatch(_ context.Context, match model.Match) error {
	existing, ok := t.state.matches[match.ID]
	if !ok {
		return fmt.Errorf("match %s: %w", match.ID, ErrNotFound)
	}
	match.RoundID = existing.RoundID
	match.CreatedAt = existing.CreatedAt
	t.state.matches[match.ID] = match
	return nil
}

func (t *memTx) DeleteMatch(_ context.Context, id string) error {
	if _, ok := t.state.matches[id]; !ok {
		return fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	delete(t.state.matches, id)
	return nil
}

func (t *memTx) roundNameTaken(round model.Round) bool {
	for _, r := range t.state.rounds {
		if r.ID != round.ID && r.StageItemID == round.StageItemID && r.Name == round.Name {
			return true
		}
	}
	return false
}

func sortRounds(rounds []model.Round) {
	sort.Slice(rounds, func(i, j int) bool {
		if rounds[i].CreatedAt.Equal(rounds[j].CreatedAt) {
			return rounds[i].ID < rounds[j].ID
		}
		return rounds[i].CreatedAt.Before(rounds[j].CreatedAt)
	})
}

func copyStageItem(item model.StageItem) model.StageItem {
	item.TeamIDs = append([]string(nil), item.TeamIDs...)
	if item.Rules != nil {
		rules := *item.Rules
		item.Rules = &rules
	}
	return item
}
