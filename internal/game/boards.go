package game

// LargeBoard is 5×5 tic-tac-toe. The game ends after 24 moves, leaving one
// cell empty, and each player scores one point per line of three.
type LargeBoard struct {
	grid
}

const (
	largeSize     = 5
	largeMaxMoves = 24
	largeRunLen   = 3
)

func NewLargeBoard() Board {
	return &LargeBoard{grid: newGrid(largeSize, largeSize)}
}

func (b *LargeBoard) IsOver() bool {
	return b.moves >= largeMaxMoves
}

func (b *LargeBoard) WinCount(s Symbol) int {
	return b.runs(s, largeRunLen)
}

// ClassicBoard is 3×3 tic-tac-toe, over on the first line of three or a
// full board.
type ClassicBoard struct {
	grid
}

func NewClassicBoard() Board {
	return &ClassicBoard{grid: newGrid(3, 3)}
}

func (b *ClassicBoard) IsOver() bool {
	return b.moves >= 9 || b.runs(X, 3) > 0 || b.runs(O, 3) > 0
}

func (b *ClassicBoard) WinCount(s Symbol) int {
	return b.runs(s, 3)
}
