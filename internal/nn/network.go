package nn

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"

	"selfplay/internal/matrix"
)

// Network is an ordered stack of fully-connected layers sharing one
// activation. Like Layer it holds forward traces and is not safe for
// concurrent use.
type Network struct {
	layers []*Layer
	act    Activation
}

// New builds a randomly initialized network from layer widths, input first.
func New(rng *rand.Rand, sizes []int, act Activation) (*Network, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("network needs at least two layer sizes, got %d", len(sizes))
	}
	for i, size := range sizes {
		if size <= 0 {
			return nil, fmt.Errorf("layer size must be > 0 at index %d", i)
		}
	}
	layers := make([]*Layer, 0, len(sizes)-1)
	for i := 1; i < len(sizes); i++ {
		layer, err := NewLayer(rng, sizes[i-1], sizes[i], act)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i-1, err)
		}
		layers = append(layers, layer)
	}
	return &Network{layers: layers, act: act}, nil
}

// FromLayers assembles a network from existing layers. Adjacent widths must
// chain and all layers must share one activation.
func FromLayers(layers ...*Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("network needs at least one layer")
	}
	act := layers[0].Activation()
	for i := 1; i < len(layers); i++ {
		if layers[i-1].Neurons() != layers[i].InputSize() {
			return nil, fmt.Errorf("%w: layer %d outputs %d, layer %d expects %d", matrix.ErrDimension, i-1, layers[i-1].Neurons(), i, layers[i].InputSize())
		}
		if layers[i].Activation() != act {
			return nil, fmt.Errorf("layer %d activation %s differs from %s", i, layers[i].Activation(), act)
		}
	}
	return &Network{layers: append([]*Layer(nil), layers...), act: act}, nil
}

func (n *Network) Activation() Activation { return n.act }

func (n *Network) Layers() []*Layer { return n.layers }

// Sizes returns the layer widths, input first.
func (n *Network) Sizes() []int {
	sizes := make([]int, 0, len(n.layers)+1)
	sizes = append(sizes, n.layers[0].InputSize())
	for _, layer := range n.layers {
		sizes = append(sizes, layer.Neurons())
	}
	return sizes
}

func (n *Network) InputSize() int { return n.layers[0].InputSize() }

func (n *Network) OutputSize() int { return n.layers[len(n.layers)-1].Neurons() }

func (n *Network) ParameterCount() int {
	total := 0
	for _, layer := range n.layers {
		total += len(layer.w.Data()) + len(layer.b.Data())
	}
	return total
}

// Forward pipes input through every layer and returns the last activation.
func (n *Network) Forward(input matrix.Matrix) (matrix.Matrix, error) {
	out := input
	for i, layer := range n.layers {
		next, err := layer.Forward(out)
		if err != nil {
			return matrix.Matrix{}, fmt.Errorf("layer %d: %w", i, err)
		}
		out = next
	}
	return out, nil
}

// Predict runs inference only.
func (n *Network) Predict(input matrix.Matrix) (matrix.Matrix, error) {
	return n.Forward(input)
}

// PredictSlice is Predict over plain slices.
func (n *Network) PredictSlice(input []float64) ([]float64, error) {
	in, err := matrix.Column(input)
	if err != nil {
		return nil, err
	}
	out, err := n.Forward(in)
	if err != nil {
		return nil, err
	}
	return out.Data(), nil
}

// Backward propagates the squared-error gradient output-expected from the
// last layer to the first, updating every layer on the way.
func (n *Network) Backward(expected matrix.Matrix, learningRate float64) error {
	last := n.layers[len(n.layers)-1]
	if !last.primed {
		return ErrOrdering
	}
	grad, err := last.a.Sub(expected)
	if err != nil {
		return err
	}
	for i := len(n.layers) - 1; i >= 0; i-- {
		grad, err = n.layers[i].Backward(grad, learningRate)
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return nil
}

// Train performs one online gradient step on a single sample.
func (n *Network) Train(input, expected matrix.Matrix, learningRate float64) error {
	if _, err := n.Forward(input); err != nil {
		return err
	}
	return n.Backward(expected, learningRate)
}

func (n *Network) Clone() *Network {
	layers := make([]*Layer, len(n.layers))
	for i, layer := range n.layers {
		layers[i] = layer.Clone()
	}
	return &Network{layers: layers, act: n.act}
}

// Encode writes every layer in order using the raw parameter format.
func (n *Network) Encode(w io.Writer) error {
	for i, layer := range n.layers {
		if err := layer.Save(w); err != nil {
			return fmt.Errorf("%w: layer %d: %w", ErrIO, i, err)
		}
	}
	return nil
}

// Decode reads parameters written by Encode into a network of the same
// architecture. The stream carries no shape information, so a mismatched
// architecture is only detected when the stream runs short. The network is
// unchanged on error.
func (n *Network) Decode(r io.Reader) error {
	staged := n.Clone()
	for i, layer := range staged.layers {
		if err := layer.Load(r); err != nil {
			return fmt.Errorf("%w: layer %d: %w", ErrIO, i, err)
		}
	}
	n.layers = staged.layers
	return nil
}

func (n *Network) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	bw := bufio.NewWriter(f)
	if err := n.Encode(bw); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func (n *Network) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()
	return n.Decode(bufio.NewReader(f))
}

// LoadFile constructs a network with the given architecture and fills it
// from path.
func LoadFile(path string, sizes []int, act Activation) (*Network, error) {
	n, err := New(nil, sizes, act)
	if err != nil {
		return nil, err
	}
	if err := n.Load(path); err != nil {
		return nil, err
	}
	return n, nil
}
