// Package game defines the board contract the evolutionary trainer plays
// through, plus the built-in tic-tac-toe variants.
package game

import (
	"strings"
)

// Symbol is the content of one board cell.
type Symbol uint8

const (
	Empty Symbol = iota
	X
	O
)

func (s Symbol) String() string {
	switch s {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return "."
	}
}

// Opponent returns the other player's symbol. Empty maps to Empty.
func (s Symbol) Opponent() Symbol {
	switch s {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

// Board is the rules engine for one game in progress.
type Board interface {
	Rows() int
	Cols() int
	Cell(row, col int) Symbol
	// Apply places s at (row, col). It returns false when the cell is
	// occupied or out of range. Applying Empty clears the cell.
	Apply(row, col int, s Symbol) bool
	IsOver() bool
	// WinCount scores s at the end of a game; the higher count wins and equal
	// counts are a draw.
	WinCount(s Symbol) int
}

// Factory returns a fresh board.
type Factory func() Board

// Render draws the board one row per line.
func Render(b Board) string {
	var sb strings.Builder
	for r := 0; r < b.Rows(); r++ {
		for c := 0; c < b.Cols(); c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(b.Cell(r, c).String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// EmptyCells lists (row, col) pairs of empty cells in row-major order.
func EmptyCells(b Board) [][2]int {
	cells := make([][2]int, 0, b.Rows()*b.Cols())
	for r := 0; r < b.Rows(); r++ {
		for c := 0; c < b.Cols(); c++ {
			if b.Cell(r, c) == Empty {
				cells = append(cells, [2]int{r, c})
			}
		}
	}
	return cells
}

// grid is the shared cell storage for the built-in boards.
type grid struct {
	rows, cols int
	cells      []Symbol
	moves      int
}

func newGrid(rows, cols int) grid {
	return grid{rows: rows, cols: cols, cells: make([]Symbol, rows*cols)}
}

func (g *grid) Rows() int { return g.rows }

func (g *grid) Cols() int { return g.cols }

func (g *grid) inBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

func (g *grid) Cell(row, col int) Symbol {
	if !g.inBounds(row, col) {
		return Empty
	}
	return g.cells[row*g.cols+col]
}

func (g *grid) Apply(row, col int, s Symbol) bool {
	if !g.inBounds(row, col) {
		return false
	}
	idx := row*g.cols + col
	if s == Empty {
		if g.cells[idx] != Empty {
			g.cells[idx] = Empty
			g.moves--
		}
		return true
	}
	if s != X && s != O {
		return false
	}
	if g.cells[idx] != Empty {
		return false
	}
	g.cells[idx] = s
	g.moves++
	return true
}

// runs counts every horizontal, vertical and diagonal line of length n owned
// entirely by s.
func (g *grid) runs(s Symbol, n int) int {
	if s == Empty {
		return 0
	}
	directions := [][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	count := 0
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			for _, d := range directions {
				endR, endC := r+d[0]*(n-1), c+d[1]*(n-1)
				if !g.inBounds(endR, endC) {
					continue
				}
				owned := true
				for k := 0; k < n; k++ {
					if g.cells[(r+d[0]*k)*g.cols+c+d[1]*k] != s {
						owned = false
						break
					}
				}
				if owned {
					count++
				}
			}
		}
	}
	return count
}
