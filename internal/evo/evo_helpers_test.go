package evo

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"selfplay/internal/matrix"
	"selfplay/internal/nn"
)

// indexZeroWins lets arena member 0 win every game it plays, whichever seat
// it sits in. Every other pairing is a draw.
type indexZeroWins struct{}

func (indexZeroWins) Play(_ context.Context, _ *rand.Rand, first, second Player) (Outcome, error) {
	switch {
	case first.Index == 0:
		return FirstWins, nil
	case second.Index == 0:
		return SecondWins, nil
	default:
		return Draw, nil
	}
}

type failingReferee struct{}

var errRefereeBroken = errors.New("referee broken")

func (failingReferee) Play(context.Context, *rand.Rand, Player, Player) (Outcome, error) {
	return Draw, errRefereeBroken
}

// biasNetwork builds a single-layer identity network with zero weights, so
// its output is exactly biases.
func biasNetwork(t *testing.T, inputs int, biases []float64) *nn.Network {
	t.Helper()
	w, err := matrix.New(len(biases), inputs)
	if err != nil {
		t.Fatalf("weights: %v", err)
	}
	b, err := matrix.Column(biases)
	if err != nil {
		t.Fatalf("biases: %v", err)
	}
	layer, err := nn.NewLayerFromParams(w, b, nn.Identity)
	if err != nil {
		t.Fatalf("layer: %v", err)
	}
	net, err := nn.FromLayers(layer)
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	return net
}

func randomNetwork(t *testing.T, seed int64, sizes []int) *nn.Network {
	t.Helper()
	net, err := nn.New(rand.New(rand.NewSource(seed)), sizes, nn.Sigmoid)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	return net
}

func flatParams(net *nn.Network) []float64 {
	var out []float64
	for _, layer := range net.Layers() {
		out = append(out, layer.Weights().Data()...)
		out = append(out, layer.Biases().Data()...)
	}
	return out
}

func sameParams(a, b *nn.Network) bool {
	pa, pb := flatParams(a), flatParams(b)
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if pa[i] != pb[i] {
			return false
		}
	}
	return true
}
