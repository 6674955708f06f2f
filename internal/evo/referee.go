package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"selfplay/internal/game"
	"selfplay/internal/nn"
)

// Outcome is the result of one game from the first mover's seat.
type Outcome int8

const (
	Draw Outcome = iota
	FirstWins
	SecondWins
)

func (o Outcome) String() string {
	switch o {
	case FirstWins:
		return "first"
	case SecondWins:
		return "second"
	default:
		return "draw"
	}
}

// Player is one seat at a game: the arena index it was drawn from and the
// network copy it plays with. A nil Net moves uniformly at random.
type Player struct {
	Index int
	Net   *nn.Network
}

// Referee plays one complete game. The first player moves first.
type Referee interface {
	Play(ctx context.Context, rng *rand.Rand, first, second Player) (Outcome, error)
}

// BoardReferee plays networks against each other on boards from NewBoard.
// The first player is X.
type BoardReferee struct {
	NewBoard game.Factory
}

func (r BoardReferee) Play(ctx context.Context, rng *rand.Rand, first, second Player) (Outcome, error) {
	if r.NewBoard == nil {
		return Draw, fmt.Errorf("board factory is required")
	}
	if err := ctx.Err(); err != nil {
		return Draw, err
	}
	board := r.NewBoard()
	seats := [2]struct {
		net *nn.Network
		sym game.Symbol
	}{
		{net: first.Net, sym: game.X},
		{net: second.Net, sym: game.O},
	}

	turn := 0
	for !board.IsOver() {
		seat := seats[turn]
		row, col, err := pickSeatMove(seat.net, board, seat.sym, rng)
		if errors.Is(err, ErrNoMoves) {
			break
		}
		if err != nil {
			return Draw, fmt.Errorf("player %d: %w", turn, err)
		}
		if !board.Apply(row, col, seat.sym) {
			return Draw, fmt.Errorf("player %d: board rejected move (%d,%d)", turn, row, col)
		}
		turn ^= 1
	}

	xScore, oScore := board.WinCount(game.X), board.WinCount(game.O)
	switch {
	case xScore > oScore:
		return FirstWins, nil
	case oScore > xScore:
		return SecondWins, nil
	default:
		return Draw, nil
	}
}

func pickSeatMove(net *nn.Network, b game.Board, own game.Symbol, rng *rand.Rand) (int, int, error) {
	if net != nil {
		return PickMove(net, b, own, rng)
	}
	empty := game.EmptyCells(b)
	if len(empty) == 0 {
		return 0, 0, ErrNoMoves
	}
	cell := empty[rng.Intn(len(empty))]
	return cell[0], cell[1], nil
}
