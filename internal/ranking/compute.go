// Package ranking derives stage item standings from completed match results.
// Nothing here writes to the store; every call recomputes from scratch.
package ranking

import (
	"sort"

	"bracket-app/internal/model"
	"bracket-app/internal/policy"
)

const (
	DecidedByPoints            = "points"
	DecidedByHeadToHead        = "head_to_head"
	DecidedByScoreDifferential = "score_differential"
	DecidedBySeed              = "seed"
)

type standing struct {
	entry model.RankingEntry
	seed  int
	tied  int
	// h2h counts wins against each opponent.
	h2h map[string]int
	met map[string]bool
}

// Compute folds the completed matches of rounds into an ordered ranking for
// item. Matches of rounds not listed are ignored.
func Compute(item model.StageItem, teams []model.Team, rounds []model.Round, matches []model.Match) ([]model.RankingEntry, error) {
	p, err := policy.For(item.Type)
	if err != nil {
		return nil, err
	}
	rules := policy.DefaultRules()
	if item.Rules != nil {
		rules = *item.Rules
	}

	names := make(map[string]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	inItem := make(map[string]bool, len(rounds))
	for _, r := range rounds {
		inItem[r.ID] = true
	}

	index := make(map[string]*standing)
	order := []*standing{}
	get := func(teamID string) *standing {
		if s, ok := index[teamID]; ok {
			return s
		}
		s := &standing{
			entry: model.RankingEntry{TeamID: teamID, TeamName: names[teamID]},
			seed:  len(order),
			h2h:   map[string]int{},
			met:   map[string]bool{},
		}
		index[teamID] = s
		order = append(order, s)
		return s
	}
	for _, id := range item.TeamIDs {
		get(id)
	}

	for _, m := range matches {
		if !inItem[m.RoundID] || !m.Completed() || m.IsBye() || m.Team1ID == m.Team2ID {
			continue
		}
		a, b := get(m.Team1ID), get(m.Team2ID)
		a.record(m.Team1Score, m.Team2Score, b.entry.TeamID)
		b.record(m.Team2Score, m.Team1Score, a.entry.TeamID)
	}

	for _, s := range order {
		s.entry.ScoreDifferential = s.entry.ScoreFor - s.entry.ScoreAgainst
		s.entry.Points = points(s.entry, p.Scoring, rules)
	}

	ranked := rank(order)
	out := make([]model.RankingEntry, len(ranked))
	for i, s := range ranked {
		s.entry.Position = i + 1
		if i+1 < len(ranked) {
			s.entry.DecidedBy = decidedBy(s, ranked[i+1])
		}
		out[i] = s.entry
	}
	return out, nil
}

func (s *standing) record(scored, conceded int, opponent string) {
	s.entry.Played++
	s.entry.ScoreFor += scored
	s.entry.ScoreAgainst += conceded
	s.met[opponent] = true
	switch {
	case scored > conceded:
		s.entry.Wins++
		s.h2h[opponent]++
	case scored < conceded:
		s.entry.Losses++
	default:
		s.entry.Draws++
	}
}

func points(e model.RankingEntry, scoring policy.ScoringRule, rules model.RankingRules) float64 {
	if scoring == policy.WinCount {
		return float64(e.Wins)
	}
	pts := rules.WinPoints*float64(e.Wins) + rules.DrawPoints*float64(e.Draws) + rules.LossPoints*float64(e.Losses)
	if rules.AddScorePoints {
		pts += float64(e.ScoreFor)
	}
	return pts
}

// rank groups by points, then breaks each tie group in turn.
func rank(order []*standing) []*standing {
	sorted := append([]*standing(nil), order...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].entry.Points > sorted[j].entry.Points
	})

	out := make([]*standing, 0, len(sorted))
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sorted[end].entry.Points == sorted[start].entry.Points {
			end++
		}
		for _, s := range sorted[start:end] {
			s.tied = end - start
		}
		out = append(out, breakTie(sorted[start:end])...)
		start = end
	}
	return out
}

func breakTie(group []*standing) []*standing {
	if len(group) == 2 {
		if winner, loser, ok := headToHead(group[0], group[1]); ok {
			return []*standing{winner, loser}
		}
	}
	group = append([]*standing(nil), group...)
	sort.SliceStable(group, func(i, j int) bool {
		if group[i].entry.ScoreDifferential != group[j].entry.ScoreDifferential {
			return group[i].entry.ScoreDifferential > group[j].entry.ScoreDifferential
		}
		return group[i].seed < group[j].seed
	})
	return group
}

// headToHead reports a winner when a and b met and won a different number of
// their mutual matches.
func headToHead(a, b *standing) (winner, loser *standing, ok bool) {
	if !a.met[b.entry.TeamID] {
		return nil, nil, false
	}
	aw, bw := a.h2h[b.entry.TeamID], b.h2h[a.entry.TeamID]
	switch {
	case aw > bw:
		return a, b, true
	case bw > aw:
		return b, a, true
	}
	return nil, nil, false
}

func decidedBy(s, next *standing) string {
	switch {
	case s.entry.Points != next.entry.Points:
		return DecidedByPoints
	case s.tied == 2 && s.met[next.entry.TeamID] && s.h2h[next.entry.TeamID] != next.h2h[s.entry.TeamID]:
		return DecidedByHeadToHead
	case s.entry.ScoreDifferential != next.entry.ScoreDifferential:
		return DecidedByScoreDifferential
	default:
		return DecidedBySeed
	}
}
