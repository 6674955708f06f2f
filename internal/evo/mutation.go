package evo

import (
	"fmt"
	"math/rand"

	"selfplay/internal/nn"
)

const (
	DefaultMutationStart = 0.2
	DefaultMutationFloor = 0.01
)

// MutationSchedule decays the mutation rate linearly from Start toward Floor
// over a run.
type MutationSchedule struct {
	Start float64
	Floor float64
}

func DefaultMutationSchedule() MutationSchedule {
	return MutationSchedule{Start: DefaultMutationStart, Floor: DefaultMutationFloor}
}

func (s MutationSchedule) validate() error {
	if s.Start < 0 || s.Floor < 0 {
		return fmt.Errorf("mutation rates must be >= 0")
	}
	return nil
}

// Rate returns Start - (Start-Floor)*generation/total.
func (s MutationSchedule) Rate(generation, total int) float64 {
	if total <= 0 {
		return s.Start
	}
	return s.Start - (s.Start-s.Floor)*(float64(generation)/float64(total))
}

// Mutate adds rate·U(-1, 1) to every weight and bias of net in place.
func Mutate(net *nn.Network, rate float64, rng *rand.Rand) {
	for _, layer := range net.Layers() {
		perturb(layer.Weights().Data(), rate, rng)
		perturb(layer.Biases().Data(), rate, rng)
	}
}

func perturb(values []float64, rate float64, rng *rand.Rand) {
	for i := range values {
		values[i] += (rng.Float64()*2 - 1) * rate
	}
}
