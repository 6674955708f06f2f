package evo

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"selfplay/internal/nn"
)

func arenaOf(t *testing.T, n int) []*nn.Network {
	t.Helper()
	arena := make([]*nn.Network, n)
	for i := range arena {
		arena[i] = randomNetwork(t, int64(i+1), []int{9, 4, 9})
	}
	return arena
}

func TestAllVsAllScoresFromSubjectSeat(t *testing.T) {
	arena := arenaOf(t, 3)
	rng := rand.New(rand.NewSource(11))
	ref := indexZeroWins{}

	cases := []struct {
		idx  int
		want float64
	}{
		{idx: 0, want: 8}, // wins every game against both opponents
		{idx: 1, want: 2}, // loses to 0, draws four games with 2
		{idx: 2, want: 2},
	}
	for _, tc := range cases {
		got, err := AllVsAll{}.Score(context.Background(), rng, ref, arena, tc.idx, 4)
		if err != nil {
			t.Fatalf("score %d: %v", tc.idx, err)
		}
		if got != tc.want {
			t.Fatalf("score %d: got=%f want=%f", tc.idx, got, tc.want)
		}
	}
}

func TestAllVsAllSingleMemberScoresZero(t *testing.T) {
	got, err := AllVsAll{}.Score(context.Background(), rand.New(rand.NewSource(1)), indexZeroWins{}, arenaOf(t, 1), 0, 3)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected zero, got %f", got)
	}
}

type seatRecorder struct {
	subject   int
	opponents map[int]int
}

func (r *seatRecorder) Play(_ context.Context, _ *rand.Rand, first, second Player) (Outcome, error) {
	opp := first.Index
	if opp == r.subject {
		opp = second.Index
	}
	r.opponents[opp]++
	return Draw, nil
}

func TestRandomOpponentNeverPicksSubject(t *testing.T) {
	arena := arenaOf(t, 4)
	rng := rand.New(rand.NewSource(5))
	for trial := 0; trial < 50; trial++ {
		rec := &seatRecorder{subject: 2, opponents: map[int]int{}}
		score, err := RandomOpponent{}.Score(context.Background(), rng, rec, arena, 2, 3)
		if err != nil {
			t.Fatalf("score: %v", err)
		}
		if score != 1.5 {
			t.Fatalf("expected three draws, got %f", score)
		}
		if len(rec.opponents) != 1 {
			t.Fatalf("expected one opponent per series, got %v", rec.opponents)
		}
		if _, ok := rec.opponents[2]; ok {
			t.Fatal("subject played itself")
		}
	}
}

func TestRandomOpponentRequiresTwoMembers(t *testing.T) {
	if _, err := (RandomOpponent{}).Score(context.Background(), rand.New(rand.NewSource(1)), indexZeroWins{}, arenaOf(t, 1), 0, 1); err == nil {
		t.Fatal("expected error for single-member arena")
	}
}

func TestTournamentPropagatesRefereeError(t *testing.T) {
	_, err := AllVsAll{}.Score(context.Background(), rand.New(rand.NewSource(1)), failingReferee{}, arenaOf(t, 2), 0, 1)
	if !errors.Is(err, errRefereeBroken) {
		t.Fatalf("expected referee error, got %v", err)
	}
}

func TestTournamentFromName(t *testing.T) {
	for _, name := range []string{"", "all-vs-all", "ALL_VS_ALL"} {
		tour, err := TournamentFromName(name)
		if err != nil || tour.Name() != "all-vs-all" {
			t.Fatalf("resolve %q: %v %v", name, tour, err)
		}
	}
	tour, err := TournamentFromName("random")
	if err != nil || tour.Name() != "random-opponent" {
		t.Fatalf("resolve random: %v %v", tour, err)
	}
	if _, err := TournamentFromName("swiss"); err == nil {
		t.Fatal("expected unsupported tournament error")
	}
}
