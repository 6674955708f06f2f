package evo

import (
	"math/rand"
	"testing"
)

func TestRankDescendingAndStable(t *testing.T) {
	ranked := Rank([]float64{1, 3, 2, 3, 0})
	wantIdx := []int{1, 3, 2, 0, 4}
	for i, r := range ranked {
		if r.Index != wantIdx[i] {
			t.Fatalf("rank order: got=%v want indexes %v", ranked, wantIdx)
		}
	}
}

func TestEliteSelectorStaysInEliteSet(t *testing.T) {
	ranked := Rank([]float64{5, 4, 3, 2, 1})
	rng := rand.New(rand.NewSource(3))
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		parent, err := EliteSelector{}.PickParent(rng, ranked, 2)
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		if parent.Index > 1 {
			t.Fatalf("picked non-elite %d", parent.Index)
		}
		seen[parent.Index] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected both elites to be picked, saw %v", seen)
	}
}

func TestSelectorsRejectBadInput(t *testing.T) {
	ranked := Rank([]float64{1, 2})
	for _, sel := range []Selector{EliteSelector{}, TournamentSelector{}} {
		if _, err := sel.PickParent(nil, ranked, 1); err == nil {
			t.Fatalf("%s: expected nil rng error", sel.Name())
		}
		if _, err := sel.PickParent(rand.New(rand.NewSource(1)), ranked, 0); err == nil {
			t.Fatalf("%s: expected zero elite error", sel.Name())
		}
		if _, err := sel.PickParent(rand.New(rand.NewSource(1)), ranked, 3); err == nil {
			t.Fatalf("%s: expected oversized elite error", sel.Name())
		}
	}
}

func TestTournamentSelectorStaysInPool(t *testing.T) {
	ranked := Rank([]float64{9, 8, 7, 6, 5, 4, 3, 2})
	rng := rand.New(rand.NewSource(9))
	sel := TournamentSelector{PoolSize: 4, TournamentSize: 2}
	for i := 0; i < 200; i++ {
		parent, err := sel.PickParent(rng, ranked, 2)
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		if parent.Index >= 4 {
			t.Fatalf("picked outside pool: %d", parent.Index)
		}
	}
}

func TestSelectorFromName(t *testing.T) {
	sel, err := SelectorFromName("")
	if err != nil || sel.Name() != "elite" {
		t.Fatalf("default selector: %v %v", sel, err)
	}
	sel, err = SelectorFromName(" Tournament ")
	if err != nil || sel.Name() != "tournament" {
		t.Fatalf("tournament selector: %v %v", sel, err)
	}
	if _, err := SelectorFromName("roulette"); err == nil {
		t.Fatal("expected unsupported selection error")
	}
}
