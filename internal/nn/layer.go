package nn

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"selfplay/internal/matrix"
)

var (
	ErrIO       = errors.New("network io failure")
	ErrOrdering = errors.New("backward called without a preceding forward")
)

// Layer is one fully-connected transformation. Forward caches the activation
// trace consumed by the next Backward, so a Layer must not be shared between
// concurrent callers; give each goroutine its own Clone.
type Layer struct {
	w   matrix.Matrix
	b   matrix.Matrix
	act Activation

	lastInput matrix.Matrix
	z         matrix.Matrix
	a         matrix.Matrix
	primed    bool
}

// NewLayer creates a layer mapping inputs values to neurons outputs with
// weights and biases drawn uniformly from [-1, 1).
func NewLayer(rng *rand.Rand, inputs, neurons int, act Activation) (*Layer, error) {
	if !act.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrActivationNotFound, act)
	}
	w, err := matrix.Random(rng, neurons, inputs, -1, 1)
	if err != nil {
		return nil, fmt.Errorf("layer weights: %w", err)
	}
	b, err := matrix.Random(rng, neurons, 1, -1, 1)
	if err != nil {
		return nil, fmt.Errorf("layer biases: %w", err)
	}
	return &Layer{w: w, b: b, act: act}, nil
}

// NewLayerFromParams builds a layer around copies of explicit parameters.
func NewLayerFromParams(w, b matrix.Matrix, act Activation) (*Layer, error) {
	if !act.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrActivationNotFound, act)
	}
	if w.Rows() == 0 || w.Cols() == 0 {
		return nil, fmt.Errorf("%w: empty weight matrix", matrix.ErrDimension)
	}
	if b.Rows() != w.Rows() || b.Cols() != 1 {
		return nil, fmt.Errorf("%w: bias %dx%d for weights %dx%d", matrix.ErrDimension, b.Rows(), b.Cols(), w.Rows(), w.Cols())
	}
	return &Layer{w: w.Clone(), b: b.Clone(), act: act}, nil
}

func (l *Layer) InputSize() int { return l.w.Cols() }

func (l *Layer) Neurons() int { return l.w.Rows() }

func (l *Layer) Activation() Activation { return l.act }

// Weights returns the live weight matrix. Writes through its Data buffer
// change the layer.
func (l *Layer) Weights() matrix.Matrix { return l.w }

// Biases returns the live bias column.
func (l *Layer) Biases() matrix.Matrix { return l.b }

// Output returns a copy of the activation cached by the last Forward.
func (l *Layer) Output() (matrix.Matrix, bool) {
	if !l.primed {
		return matrix.Matrix{}, false
	}
	return l.a.Clone(), true
}

// Forward computes act(W·input + B) and caches the trace for Backward.
func (l *Layer) Forward(input matrix.Matrix) (matrix.Matrix, error) {
	if input.Rows() != l.InputSize() || input.Cols() != 1 {
		return matrix.Matrix{}, fmt.Errorf("%w: layer expects %dx1 input, got %dx%d", matrix.ErrDimension, l.InputSize(), input.Rows(), input.Cols())
	}
	wx, err := l.w.Mul(input)
	if err != nil {
		return matrix.Matrix{}, err
	}
	z, err := wx.Add(l.b)
	if err != nil {
		return matrix.Matrix{}, err
	}
	a := z.Clone()
	a.Apply(l.act.Apply)

	l.lastInput = input.Clone()
	l.z = z
	l.a = a
	l.primed = true
	return a.Clone(), nil
}

// Backward consumes the cached trace, applies one gradient step and returns
// the gradient with respect to the layer input. The returned gradient uses
// the weights as they were before this step.
func (l *Layer) Backward(dA matrix.Matrix, learningRate float64) (matrix.Matrix, error) {
	if !l.primed {
		return matrix.Matrix{}, ErrOrdering
	}
	dZ := l.z.Clone()
	dZ.Apply(l.act.Derivative)
	if err := dZ.Hadamard(dA); err != nil {
		return matrix.Matrix{}, err
	}
	dW, err := dZ.Mul(l.lastInput.T())
	if err != nil {
		return matrix.Matrix{}, err
	}
	dX, err := l.w.T().Mul(dZ)
	if err != nil {
		return matrix.Matrix{}, err
	}

	if learningRate != 0 {
		floats.AddScaled(l.w.Data(), -learningRate, dW.Data())
		floats.AddScaled(l.b.Data(), -learningRate, dZ.Data())
	}
	l.primed = false
	return dX, nil
}

// Clone deep-copies parameters. The copy starts with an empty trace.
func (l *Layer) Clone() *Layer {
	return &Layer{w: l.w.Clone(), b: l.b.Clone(), act: l.act}
}

// Save writes W then B as little-endian float64 values with no header.
func (l *Layer) Save(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, l.w.Data()); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, l.b.Data())
}

// Load reads parameters written by Save. The layer is unchanged on error.
func (l *Layer) Load(r io.Reader) error {
	w := make([]float64, len(l.w.Data()))
	b := make([]float64, len(l.b.Data()))
	if err := binary.Read(r, binary.LittleEndian, w); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, b); err != nil {
		return err
	}
	copy(l.w.Data(), w)
	copy(l.b.Data(), b)
	l.primed = false
	return nil
}
