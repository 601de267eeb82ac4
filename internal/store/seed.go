package store

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"bracket-app/internal/model"

	"golang.org/x/crypto/bcrypt"
)

// Demo credentials written by SeedDemo.
const (
	DemoUserID       = "demo-organizer"
	DemoAPIKey       = "demo-key"
	RegularUserID    = "club-organizer"
	RegularAPIKey    = "club-key"
	demoClubID       = "club-demo"
	demoTournamentID = "tournament-demo"
)

type SeedResult struct {
	TournamentID string
	StageItemIDs []string
}

func HashAPIKey(key string) (string, error) {
	if key == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hash), nil
}

// SeedDemo fills an empty store with one club tournament: a Swiss group with
// two played rounds and a round robin group with one active round.
func SeedDemo(ctx context.Context, s Store) (SeedResult, error) {
	rng := rand.New(rand.NewSource(42))
	demoHash, err := HashAPIKey(DemoAPIKey)
	if err != nil {
		return SeedResult{}, err
	}
	regularHash, err := HashAPIKey(RegularAPIKey)
	if err != nil {
		return SeedResult{}, err
	}

	var res SeedResult
	err = s.Update(ctx, func(tx Tx) error {
		users := []model.User{
			{ID: DemoUserID, Name: "Demo Organizer", AccountType: model.AccountDemo, ClubIDs: []string{demoClubID}, APIKeyHash: demoHash},
			{ID: RegularUserID, Name: "Club Organizer", AccountType: model.AccountRegular, ClubIDs: []string{demoClubID}, APIKeyHash: regularHash},
		}
		for _, u := range users {
			if _, err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		}

		tournament, err := tx.CreateTournament(ctx, model.Tournament{
			ID:              demoTournamentID,
			ClubID:          demoClubID,
			Name:            "Autumn Open",
			Status:          model.TournamentOpen,
			DurationMinutes: 10,
			MarginMinutes:   5,
		})
		if err != nil {
			return err
		}
		res.TournamentID = tournament.ID

		teamNames := []string{"Falcons", "Otters", "Comets", "Pioneers", "Lynx", "Harriers", "Badgers", "Rooks"}
		teamIDs := make([]string, 0, len(teamNames))
		for _, name := range teamNames {
			team, err := tx.CreateTeam(ctx, model.Team{ID: NewID(), TournamentID: tournament.ID, Name: name})
			if err != nil {
				return err
			}
			teamIDs = append(teamIDs, team.ID)
		}

		stage, err := tx.CreateStage(ctx, model.Stage{TournamentID: tournament.ID, Name: "Group stage", Position: 1})
		if err != nil {
			return err
		}

		swiss, err := tx.CreateStageItem(ctx, model.StageItem{
			StageID: stage.ID,
			Name:    "Swiss",
			Type:    model.StageItemSwiss,
			TeamIDs: teamIDs,
		})
		if err != nil {
			return err
		}
		roundRobin, err := tx.CreateStageItem(ctx, model.StageItem{
			StageID: stage.ID,
			Name:    "Round robin",
			Type:    model.StageItemRoundRobin,
			TeamIDs: teamIDs[:4],
			Rules:   &model.RankingRules{WinPoints: 3, DrawPoints: 1, LossPoints: 0},
		})
		if err != nil {
			return err
		}
		res.StageItemIDs = []string{swiss.ID, roundRobin.ID}

		base := time.Now().Add(-2 * time.Hour)
		for i := 0; i < 2; i++ {
			round, err := tx.CreateRound(ctx, model.Round{
				StageItemID: swiss.ID,
				Name:        fmt.Sprintf("Round %d", i+1),
				IsActive:    i == 1,
				CreatedAt:   base.Add(time.Duration(i) * time.Hour),
			})
			if err != nil {
				return err
			}
			order := rng.Perm(len(teamIDs))
			for p := 0; p+1 < len(order); p += 2 {
				if err := seedMatch(ctx, tx, rng, round.ID, teamIDs[order[p]], teamIDs[order[p+1]]); err != nil {
					return err
				}
			}
		}

		rrRound, err := tx.CreateRound(ctx, model.Round{StageItemID: roundRobin.ID, Name: "Round 1", IsActive: true, CreatedAt: base})
		if err != nil {
			return err
		}
		for p := 0; p+1 < 4; p += 2 {
			if err := seedMatch(ctx, tx, rng, rrRound.ID, teamIDs[p], teamIDs[p+1]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return res, nil
}

func seedMatch(ctx context.Context, tx Tx, rng *rand.Rand, roundID, team1, team2 string) error {
	_, err := tx.CreateMatch(ctx, model.Match{
		RoundID:    roundID,
		Team1ID:    team1,
		Team2ID:    team2,
		Team1Score: rng.Intn(4),
		Team2Score: rng.Intn(4),
		Status:     model.MatchCompleted,
	})
	return err
}
