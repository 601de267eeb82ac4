package rounds

import (
	"fmt"

	"bracket-app/internal/model"
	"bracket-app/internal/policy"
	"bracket-app/internal/store"
)

// roundSet is a working copy of the rounds of one stage item. Transitions are
// applied to the copy and turned into store updates by plan.
type roundSet struct {
	rounds  []model.Round
	changed map[string]bool
}

func newRoundSet(rounds []model.Round) *roundSet {
	return &roundSet{
		rounds:  append([]model.Round(nil), rounds...),
		changed: map[string]bool{},
	}
}

func (s *roundSet) find(id string) *model.Round {
	for i := range s.rounds {
		if s.rounds[i].ID == id {
			return &s.rounds[i]
		}
	}
	return nil
}

func (s *roundSet) set(r *model.Round, isDraft, isActive bool) {
	if r.IsDraft == isDraft && r.IsActive == isActive {
		return
	}
	r.IsDraft, r.IsActive = isDraft, isActive
	s.changed[r.ID] = true
}

func (s *roundSet) rename(id, name string) {
	if r := s.find(id); r != nil && r.Name != name {
		r.Name = name
		s.changed[id] = true
	}
}

// transition moves round id to Draft or Active.
func (s *roundSet) transition(id string, isDraft bool, mode policy.ActivationMode) error {
	r := s.find(id)
	if r == nil {
		return fmt.Errorf("round %s: %w", id, ErrNotFound)
	}
	if isDraft {
		if !r.IsDraft {
			s.set(r, true, false)
		}
		s.publishDraftsExcept(id, mode)
		return nil
	}
	if r.Active() {
		if mode == policy.SingleActive {
			return fmt.Errorf("round %s is already active: %w", id, ErrConflictingState)
		}
		return nil
	}
	s.activate(r, mode)
	return nil
}

func (s *roundSet) activate(r *model.Round, mode policy.ActivationMode) {
	s.set(r, false, true)
	if mode != policy.SingleActive {
		return
	}
	for i := range s.rounds {
		other := &s.rounds[i]
		if other.ID != r.ID && other.Active() {
			s.set(other, false, false)
		}
	}
}

// publishDraftsExcept activates every draft other than keepID, leaving at most
// one draft in the stage item.
func (s *roundSet) publishDraftsExcept(keepID string, mode policy.ActivationMode) {
	for i := range s.rounds {
		r := &s.rounds[i]
		if r.ID != keepID && r.IsDraft {
			s.activate(r, mode)
		}
	}
}

// plan appends an update for every changed round in stage item order.
func (s *roundSet) plan(b *store.Batch) {
	for _, r := range s.rounds {
		if s.changed[r.ID] {
			b.UpdateRound(r)
		}
	}
}
