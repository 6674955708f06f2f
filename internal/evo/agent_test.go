package evo

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"selfplay/internal/game"
)

func TestEncodeBoardIsRelativeToOwnSymbol(t *testing.T) {
	b := game.NewClassicBoard()
	b.Apply(0, 0, game.X)
	b.Apply(1, 1, game.O)

	got := EncodeBoard(b, game.X)
	want := []float64{1, 0, 0, 0, -1, 0, 0, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("encode as X: got=%v want=%v", got, want)
		}
	}

	got = EncodeBoard(b, game.O)
	if got[0] != -1 || got[4] != 1 {
		t.Fatalf("encode as O: got=%v", got)
	}
}

func TestPickMoveChoosesHighestEmptyScore(t *testing.T) {
	b := game.NewClassicBoard()
	b.Apply(1, 1, game.X)
	// cell 4 scores highest but is occupied, cell 7 is the best empty cell
	net := biasNetwork(t, 9, []float64{0.1, 0.2, 0.3, 0.4, 9, 0.5, 0.6, 0.8, 0.7})

	row, col, err := PickMove(net, b, game.O, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("pick move: %v", err)
	}
	if row != 2 || col != 1 {
		t.Fatalf("unexpected move: (%d,%d)", row, col)
	}
}

func TestPickMoveFallsBackWhenScoresAreNotFinite(t *testing.T) {
	nan := math.NaN()
	net := biasNetwork(t, 9, []float64{nan, nan, nan, nan, nan, nan, nan, nan, nan})
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 20; i++ {
		b := game.NewClassicBoard()
		b.Apply(0, 0, game.X)
		b.Apply(2, 2, game.O)
		row, col, err := PickMove(net, b, game.X, rng)
		if err != nil {
			t.Fatalf("pick move: %v", err)
		}
		if b.Cell(row, col) != game.Empty {
			t.Fatalf("fallback picked occupied cell (%d,%d)", row, col)
		}
	}
}

func TestPickMoveNoEmptyCells(t *testing.T) {
	b := game.NewClassicBoard()
	order := []game.Symbol{game.X, game.O, game.X, game.X, game.O, game.O, game.O, game.X, game.X}
	for i, s := range order {
		b.Apply(i/3, i%3, s)
	}
	net := biasNetwork(t, 9, make([]float64, 9))
	if _, _, err := PickMove(net, b, game.X, rand.New(rand.NewSource(1))); !errors.Is(err, ErrNoMoves) {
		t.Fatalf("expected ErrNoMoves, got %v", err)
	}
}

func TestPickMoveRejectsWrongOutputSize(t *testing.T) {
	net := biasNetwork(t, 9, make([]float64, 4))
	if _, _, err := PickMove(net, game.NewClassicBoard(), game.X, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected output size error")
	}
}
