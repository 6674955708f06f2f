package evo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"selfplay/internal/game"
	"selfplay/internal/nn"
)

var ErrNoMoves = errors.New("no empty cell to play")

// EncodeBoard flattens the board row-major from own's point of view: +1 for
// own cells, -1 for the opponent and 0 for empty cells.
func EncodeBoard(b game.Board, own game.Symbol) []float64 {
	rows, cols := b.Rows(), b.Cols()
	out := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			switch b.Cell(r, c) {
			case game.Empty:
			case own:
				out[r*cols+c] = 1
			default:
				out[r*cols+c] = -1
			}
		}
	}
	return out
}

// PickMove asks net for the empty cell with the highest finite score. When
// no empty cell scores finitely it falls back to a uniformly random empty
// cell.
func PickMove(net *nn.Network, b game.Board, own game.Symbol, rng *rand.Rand) (int, int, error) {
	empty := game.EmptyCells(b)
	if len(empty) == 0 {
		return 0, 0, ErrNoMoves
	}
	scores, err := net.PredictSlice(EncodeBoard(b, own))
	if err != nil {
		return 0, 0, err
	}
	if len(scores) != b.Rows()*b.Cols() {
		return 0, 0, fmt.Errorf("network emits %d scores for a %dx%d board", len(scores), b.Rows(), b.Cols())
	}

	best := -1
	bestScore := math.Inf(-1)
	for i, cell := range empty {
		v := scores[cell[0]*b.Cols()+cell[1]]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if best < 0 || v > bestScore {
			best, bestScore = i, v
		}
	}
	if best < 0 {
		best = rng.Intn(len(empty))
	}
	return empty[best][0], empty[best][1], nil
}
