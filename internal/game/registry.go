package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrGameNotFound = errors.New("game not found")

var builtins = map[string]Factory{
	"large":   NewLargeBoard,
	"classic": NewClassicBoard,
}

// Lookup returns the factory for a built-in game.
func Lookup(name string) (Factory, error) {
	f, ok := builtins[strings.TrimSpace(strings.ToLower(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, name)
	}
	return f, nil
}

// Names lists built-in games in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cells reports the number of cells of a factory's board, which is both the
// input and output width a player network needs.
func Cells(f Factory) int {
	b := f()
	return b.Rows() * b.Cols()
}
