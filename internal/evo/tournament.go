package evo

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"selfplay/internal/nn"
)

const (
	winScore  = 1.0
	drawScore = 0.5
)

// Tournament computes one member's fitness for a generation. Implementations
// only read arena and play on clones.
type Tournament interface {
	Name() string
	Score(ctx context.Context, rng *rand.Rand, ref Referee, arena []*nn.Network, idx, games int) (float64, error)
}

// AllVsAll plays games against every other member.
type AllVsAll struct{}

func (AllVsAll) Name() string {
	return "all-vs-all"
}

func (AllVsAll) Score(ctx context.Context, rng *rand.Rand, ref Referee, arena []*nn.Network, idx, games int) (float64, error) {
	subject := Player{Index: idx, Net: arena[idx].Clone()}
	total := 0.0
	for j := range arena {
		if j == idx {
			continue
		}
		score, err := playSeries(ctx, rng, ref, subject, Player{Index: j, Net: arena[j].Clone()}, games)
		if err != nil {
			return 0, err
		}
		total += score
	}
	return total, nil
}

// RandomOpponent plays every game against one distinct member drawn at
// random.
type RandomOpponent struct{}

func (RandomOpponent) Name() string {
	return "random-opponent"
}

func (RandomOpponent) Score(ctx context.Context, rng *rand.Rand, ref Referee, arena []*nn.Network, idx, games int) (float64, error) {
	if len(arena) < 2 {
		return 0, fmt.Errorf("random opponent tournament needs at least 2 members, got %d", len(arena))
	}
	opp := rng.Intn(len(arena) - 1)
	if opp >= idx {
		opp++
	}
	return playSeries(
		ctx, rng, ref,
		Player{Index: idx, Net: arena[idx].Clone()},
		Player{Index: opp, Net: arena[opp].Clone()},
		games,
	)
}

// playSeries scores subject over games games against opponent. A coin flip
// per game decides who moves first; the result is read from subject's seat.
func playSeries(ctx context.Context, rng *rand.Rand, ref Referee, subject, opponent Player, games int) (float64, error) {
	score := 0.0
	for g := 0; g < games; g++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		subjectFirst := rng.Intn(2) == 0
		var (
			outcome Outcome
			err     error
		)
		if subjectFirst {
			outcome, err = ref.Play(ctx, rng, subject, opponent)
		} else {
			outcome, err = ref.Play(ctx, rng, opponent, subject)
		}
		if err != nil {
			return 0, fmt.Errorf("game %d between %d and %d: %w", g, subject.Index, opponent.Index, err)
		}
		switch {
		case outcome == Draw:
			score += drawScore
		case (outcome == FirstWins) == subjectFirst:
			score += winScore
		}
	}
	return score, nil
}

// TournamentFromName resolves a tournament policy by name.
func TournamentFromName(name string) (Tournament, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "all-vs-all", "all_vs_all":
		return AllVsAll{}, nil
	case "random-opponent", "random_opponent", "random":
		return RandomOpponent{}, nil
	default:
		return nil, fmt.Errorf("unsupported tournament: %s", name)
	}
}
