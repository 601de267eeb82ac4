// Package policy holds the per stage item type rules consulted by the round
// lifecycle and the ranking calculator.
package policy

import (
	"errors"
	"fmt"

	"bracket-app/internal/model"
)

type ActivationMode int

const (
	// SingleActive allows one active round per stage item.
	SingleActive ActivationMode = iota + 1
	// MultiActive allows any number of simultaneously active rounds.
	MultiActive
)

func (m ActivationMode) String() string {
	switch m {
	case SingleActive:
		return "single-active"
	case MultiActive:
		return "multi-active"
	default:
		return "unknown"
	}
}

type ScoringRule int

const (
	WinCount ScoringRule = iota + 1
	PointsTable
)

func (r ScoringRule) String() string {
	switch r {
	case WinCount:
		return "win-count"
	case PointsTable:
		return "points-table"
	default:
		return "unknown"
	}
}

type Policy struct {
	SupportsDynamicRounds bool
	Activation            ActivationMode
	Scoring               ScoringRule
}

var ErrUnknownStageItemType = errors.New("unknown stage item type")

var table = map[model.StageItemType]Policy{
	model.StageItemSingleElimination: {SupportsDynamicRounds: false, Activation: SingleActive, Scoring: WinCount},
	model.StageItemDoubleElimination: {SupportsDynamicRounds: false, Activation: SingleActive, Scoring: WinCount},
	model.StageItemRoundRobin:        {SupportsDynamicRounds: false, Activation: MultiActive, Scoring: PointsTable},
	model.StageItemSwiss:             {SupportsDynamicRounds: true, Activation: SingleActive, Scoring: PointsTable},
}

func For(t model.StageItemType) (Policy, error) {
	p, ok := table[t]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownStageItemType, string(t))
	}
	return p, nil
}

// Known reports whether t has a row in the policy table.
func Known(t model.StageItemType) bool {
	_, ok := table[t]
	return ok
}

// DefaultRules mirrors the point values a fresh ranking starts with.
func DefaultRules() model.RankingRules {
	return model.RankingRules{WinPoints: 1, DrawPoints: 0.5, LossPoints: 0}
}
