// Package training runs supervised mean-squared-error training of a network
// over externally supplied samples.
package training

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/floats"

	"selfplay/internal/matrix"
	"selfplay/internal/nn"
)

var ErrSizeMismatch = errors.New("size mismatch")

type Trainer struct {
	net *nn.Network

	// Report receives per-epoch progress lines when training verbosely.
	// Nil means stdout.
	Report io.Writer
}

func NewTrainer(net *nn.Network) *Trainer {
	return &Trainer{net: net}
}

func (t *Trainer) Network() *nn.Network { return t.net }

// TrainEpoch makes one online gradient pass over every (input, target) pair.
func (t *Trainer) TrainEpoch(inputs, targets []matrix.Matrix, learningRate float64) error {
	if len(inputs) != len(targets) {
		return fmt.Errorf("%w: %d inputs, %d targets", ErrSizeMismatch, len(inputs), len(targets))
	}
	for i := range inputs {
		if _, err := t.net.Forward(inputs[i]); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		if err := t.net.Backward(targets[i], learningRate); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return nil
}

// Train runs epochs passes. When verbose it measures the dataset error after
// every epoch, writes "Epoch e/E - MSE: x" to Report and returns the series.
func (t *Trainer) Train(inputs, targets []matrix.Matrix, learningRate float64, epochs int, verbose bool) ([]float64, error) {
	if epochs < 0 {
		return nil, fmt.Errorf("epochs must be >= 0")
	}
	var history []float64
	if verbose {
		history = make([]float64, 0, epochs)
	}
	out := t.Report
	if out == nil {
		out = os.Stdout
	}
	for e := 0; e < epochs; e++ {
		if err := t.TrainEpoch(inputs, targets, learningRate); err != nil {
			return history, fmt.Errorf("epoch %d: %w", e+1, err)
		}
		if !verbose {
			continue
		}
		mse, err := DatasetError(t.net, inputs, targets)
		if err != nil {
			return history, fmt.Errorf("epoch %d: %w", e+1, err)
		}
		history = append(history, mse)
		fmt.Fprintf(out, "Epoch %d/%d - MSE: %g\n", e+1, epochs, mse)
	}
	return history, nil
}

// DatasetError is the mean of per-sample MeanSquaredError. Only forward
// passes are made; parameters are not touched.
func DatasetError(net *nn.Network, inputs, targets []matrix.Matrix) (float64, error) {
	if len(inputs) != len(targets) {
		return 0, fmt.Errorf("%w: %d inputs, %d targets", ErrSizeMismatch, len(inputs), len(targets))
	}
	if len(inputs) == 0 {
		return 0, nil
	}
	total := 0.0
	for i := range inputs {
		pred, err := net.Predict(inputs[i])
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		mse, err := MeanSquaredError(pred, targets[i])
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		total += mse
	}
	return total / float64(len(inputs)), nil
}

// MeanSquaredError averages squared element-wise differences.
func MeanSquaredError(predicted, target matrix.Matrix) (float64, error) {
	pr, pc := predicted.Dims()
	tr, tc := target.Dims()
	if pr != tr || pc != tc || pr == 0 || pc == 0 {
		return 0, fmt.Errorf("%w: predicted %dx%d, target %dx%d", ErrSizeMismatch, pr, pc, tr, tc)
	}
	diff := make([]float64, pr*pc)
	floats.SubTo(diff, predicted.Data(), target.Data())
	return floats.Dot(diff, diff) / float64(len(diff)), nil
}
