package game

import (
	"errors"
	"strings"
	"testing"
)

func TestApplyRejectsOccupiedAndOutOfRange(t *testing.T) {
	b := NewLargeBoard()
	if !b.Apply(0, 0, X) {
		t.Fatal("expected first move to succeed")
	}
	if b.Apply(0, 0, O) {
		t.Fatal("expected occupied cell to be rejected")
	}
	for _, rc := range [][2]int{{-1, 0}, {0, 5}, {5, 5}} {
		if b.Apply(rc[0], rc[1], X) {
			t.Fatalf("expected out of range move %v to be rejected", rc)
		}
		if b.Apply(rc[0], rc[1], Empty) {
			t.Fatalf("expected out of range clear %v to be rejected", rc)
		}
	}
	if b.Cell(0, 0) != X || b.Cell(9, 9) != Empty {
		t.Fatal("unexpected cell contents")
	}
}

func TestApplyEmptyClearsCell(t *testing.T) {
	b := NewLargeBoard().(*LargeBoard)
	b.Apply(1, 1, O)
	if !b.Apply(1, 1, Empty) {
		t.Fatal("expected clear to succeed")
	}
	if b.Cell(1, 1) != Empty || b.moves != 0 {
		t.Fatalf("expected cleared cell, moves=%d", b.moves)
	}
	if !b.Apply(1, 1, Empty) || b.moves != 0 {
		t.Fatal("clearing an empty cell must not change the move count")
	}
}

func TestLargeBoardEndsAfterTwentyFourMoves(t *testing.T) {
	b := NewLargeBoard()
	s := X
	moves := 0
	for r := 0; r < 5 && !b.IsOver(); r++ {
		for c := 0; c < 5 && !b.IsOver(); c++ {
			if !b.Apply(r, c, s) {
				t.Fatalf("move %d rejected", moves)
			}
			moves++
			s = s.Opponent()
		}
	}
	if moves != 24 || !b.IsOver() {
		t.Fatalf("expected game over after 24 moves, got %d", moves)
	}
	if len(EmptyCells(b)) != 1 {
		t.Fatalf("expected one empty cell, got %d", len(EmptyCells(b)))
	}
}

func TestLargeBoardWinCountCountsEveryRun(t *testing.T) {
	b := NewLargeBoard()
	// A full row of five holds three overlapping runs.
	for c := 0; c < 5; c++ {
		b.Apply(0, c, X)
	}
	if got := b.WinCount(X); got != 3 {
		t.Fatalf("row of five: got %d runs want 3", got)
	}

	b = NewLargeBoard()
	b.Apply(0, 4, O)
	b.Apply(1, 3, O)
	b.Apply(2, 2, O)
	b.Apply(0, 0, O)
	b.Apply(1, 1, O)
	if got := b.WinCount(O); got != 2 {
		t.Fatalf("two diagonals: got %d want 2", got)
	}
	b.Apply(2, 0, O)
	b.Apply(1, 0, O)
	if got := b.WinCount(O); got != 3 {
		t.Fatalf("diagonals plus column: got %d want 3", got)
	}
	if b.WinCount(X) != 0 || b.WinCount(Empty) != 0 {
		t.Fatal("expected no runs for other symbols")
	}
}

func TestClassicBoardEndsOnLine(t *testing.T) {
	b := NewClassicBoard()
	b.Apply(0, 0, X)
	b.Apply(1, 0, O)
	b.Apply(0, 1, X)
	if b.IsOver() {
		t.Fatal("game should still be running")
	}
	b.Apply(1, 1, O)
	b.Apply(0, 2, X)
	if !b.IsOver() || b.WinCount(X) != 1 || b.WinCount(O) != 0 {
		t.Fatalf("expected X line win, over=%t x=%d o=%d", b.IsOver(), b.WinCount(X), b.WinCount(O))
	}
}

func TestRenderAndRegistry(t *testing.T) {
	b := NewClassicBoard()
	b.Apply(1, 1, X)
	b.Apply(0, 2, O)
	want := ". . O\n. X .\n. . .\n"
	if got := Render(b); got != want {
		t.Fatalf("render:\n%s\nwant:\n%s", got, want)
	}

	if names := strings.Join(Names(), ","); names != "classic,large" {
		t.Fatalf("unexpected names: %s", names)
	}
	f, err := Lookup("Large")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if Cells(f) != 25 {
		t.Fatalf("unexpected cell count: %d", Cells(f))
	}
	if _, err := Lookup("go"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}
