package nn

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrActivationNotFound = errors.New("activation not found")

// Activation is the closed set of element-wise transfer functions a layer can
// use. The zero value is Identity.
type Activation uint8

const (
	Identity Activation = iota
	Sigmoid
	Tanh
	ReLU
)

type activationSpec struct {
	name       string
	fn         func(x float64) float64
	derivative func(x float64) float64
}

var activationTable = [...]activationSpec{
	Identity: {
		name:       "identity",
		fn:         func(x float64) float64 { return x },
		derivative: func(float64) float64 { return 1 },
	},
	Sigmoid: {
		name: "sigmoid",
		fn:   sigmoid,
		derivative: func(x float64) float64 {
			s := sigmoid(x)
			return s * (1 - s)
		},
	},
	Tanh: {
		name: "tanh",
		fn:   math.Tanh,
		derivative: func(x float64) float64 {
			y := math.Tanh(x)
			return 1 - (y * y)
		},
	},
	ReLU: {
		name: "relu",
		fn: func(x float64) float64 {
			if x < 0 {
				return 0
			}
			return x
		},
		derivative: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	},
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// ParseActivation resolves a case-insensitive activation name.
func ParseActivation(name string) (Activation, error) {
	normalized := strings.TrimSpace(strings.ToLower(name))
	for i, spec := range activationTable {
		if spec.name == normalized {
			return Activation(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrActivationNotFound, name)
}

// ListActivations returns the supported names in declaration order.
func ListActivations() []string {
	names := make([]string, 0, len(activationTable))
	for _, spec := range activationTable {
		names = append(names, spec.name)
	}
	return names
}

func (a Activation) Valid() bool {
	return int(a) < len(activationTable)
}

func (a Activation) String() string {
	if !a.Valid() {
		return fmt.Sprintf("activation(%d)", uint8(a))
	}
	return activationTable[a].name
}

// Apply evaluates the activation at x.
func (a Activation) Apply(x float64) float64 {
	return activationTable[a].fn(x)
}

// Derivative evaluates the activation's derivative at the pre-activation x.
func (a Activation) Derivative(x float64) float64 {
	return activationTable[a].derivative(x)
}
