// Package matrix provides the dense row-major float64 matrix used by the
// network engine. Arithmetic is delegated to gonum; shape checks happen here
// so every mismatch surfaces as ErrDimension instead of a gonum panic.
package matrix

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrDimension = errors.New("matrix dimension mismatch")
	ErrIndex     = errors.New("matrix index out of range")
)

// Matrix is a rows×cols grid stored row-major. Copies of a Matrix share the
// backing buffer; use Clone for an independent value.
type Matrix struct {
	rows int
	cols int
	data []float64
}

// New returns a zero-filled matrix.
func New(rows, cols int) (Matrix, error) {
	return Fill(rows, cols, 0)
}

// Ones returns a matrix with every element set to 1.
func Ones(rows, cols int) (Matrix, error) {
	return Fill(rows, cols, 1)
}

// Fill returns a matrix with every element set to v.
func Fill(rows, cols int, v float64) (Matrix, error) {
	if err := checkShape(rows, cols); err != nil {
		return Matrix{}, err
	}
	m := zeros(rows, cols)
	if v != 0 {
		for i := range m.data {
			m.data[i] = v
		}
	}
	return m, nil
}

// FromSlice copies values into a new rows×cols matrix.
func FromSlice(rows, cols int, values []float64) (Matrix, error) {
	if err := checkShape(rows, cols); err != nil {
		return Matrix{}, err
	}
	if len(values) != rows*cols {
		return Matrix{}, fmt.Errorf("%w: %d values for %dx%d", ErrDimension, len(values), rows, cols)
	}
	m := zeros(rows, cols)
	copy(m.data, values)
	return m, nil
}

// Column builds an n×1 column vector.
func Column(values []float64) (Matrix, error) {
	return FromSlice(len(values), 1, values)
}

// Random fills a new matrix with uniform samples from [min, max).
func Random(rng *rand.Rand, rows, cols int, min, max float64) (Matrix, error) {
	if err := checkShape(rows, cols); err != nil {
		return Matrix{}, err
	}
	if max < min {
		return Matrix{}, fmt.Errorf("random range is inverted: min=%f max=%f", min, max)
	}
	rng = ensureRNG(rng)
	m := zeros(rows, cols)
	span := max - min
	for i := range m.data {
		m.data[i] = min + rng.Float64()*span
	}
	return m, nil
}

func (m Matrix) Rows() int { return m.rows }

func (m Matrix) Cols() int { return m.cols }

func (m Matrix) Dims() (int, int) { return m.rows, m.cols }

// Data exposes the row-major backing buffer for bulk serialization.
func (m Matrix) Data() []float64 { return m.data }

func (m Matrix) At(r, c int) (float64, error) {
	if err := m.checkIndex(r, c); err != nil {
		return 0, err
	}
	return m.data[r*m.cols+c], nil
}

func (m Matrix) Set(r, c int, v float64) error {
	if err := m.checkIndex(r, c); err != nil {
		return err
	}
	m.data[r*m.cols+c] = v
	return nil
}

// Apply replaces every element x with f(x).
func (m Matrix) Apply(f func(float64) float64) {
	for i, v := range m.data {
		m.data[i] = f(v)
	}
}

// Hadamard multiplies m element-wise by other in place.
func (m Matrix) Hadamard(other Matrix) error {
	if err := m.sameShape(other, "hadamard"); err != nil {
		return err
	}
	floats.Mul(m.data, other.data)
	return nil
}

// T returns the transpose.
func (m Matrix) T() Matrix {
	if m.empty() {
		return Matrix{}
	}
	out := zeros(m.cols, m.rows)
	out.dense().Copy(m.dense().T())
	return out
}

func (m Matrix) Add(other Matrix) (Matrix, error) {
	if err := m.sameShape(other, "add"); err != nil {
		return Matrix{}, err
	}
	out := zeros(m.rows, m.cols)
	floats.AddTo(out.data, m.data, other.data)
	return out, nil
}

func (m Matrix) Sub(other Matrix) (Matrix, error) {
	if err := m.sameShape(other, "sub"); err != nil {
		return Matrix{}, err
	}
	out := zeros(m.rows, m.cols)
	floats.SubTo(out.data, m.data, other.data)
	return out, nil
}

// Mul is the standard matrix product m·other.
func (m Matrix) Mul(other Matrix) (Matrix, error) {
	if m.empty() || other.empty() || m.cols != other.rows {
		return Matrix{}, fmt.Errorf("%w: mul %dx%d by %dx%d", ErrDimension, m.rows, m.cols, other.rows, other.cols)
	}
	out := zeros(m.rows, other.cols)
	out.dense().Mul(m.dense(), other.dense())
	return out, nil
}

func (m Matrix) Scale(c float64) Matrix {
	if m.empty() {
		return Matrix{}
	}
	out := zeros(m.rows, m.cols)
	floats.ScaleTo(out.data, c, m.data)
	return out
}

func (m Matrix) Clone() Matrix {
	if m.empty() {
		return Matrix{}
	}
	out := zeros(m.rows, m.cols)
	copy(out.data, m.data)
	return out
}

// Equal reports exact element-wise equality of two same-shaped matrices.
func (m Matrix) Equal(other Matrix) bool {
	if m.rows != other.rows || m.cols != other.cols {
		return false
	}
	return floats.Equal(m.data, other.data)
}

func (m Matrix) String() string {
	if m.empty() {
		return "[]"
	}
	return fmt.Sprintf("%dx%d\n%v", m.rows, m.cols, mat.Formatted(m.dense(), mat.Squeeze()))
}

func (m Matrix) dense() *mat.Dense {
	return mat.NewDense(m.rows, m.cols, m.data)
}

func (m Matrix) empty() bool {
	return m.rows == 0 || m.cols == 0
}

func (m Matrix) checkIndex(r, c int) error {
	if r < 0 || r >= m.rows || c < 0 || c >= m.cols {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrIndex, r, c, m.rows, m.cols)
	}
	return nil
}

func (m Matrix) sameShape(other Matrix, op string) error {
	if m.empty() || m.rows != other.rows || m.cols != other.cols {
		return fmt.Errorf("%w: %s %dx%d with %dx%d", ErrDimension, op, m.rows, m.cols, other.rows, other.cols)
	}
	return nil
}

func checkShape(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: %dx%d must be positive", ErrDimension, rows, cols)
	}
	return nil
}

func zeros(rows, cols int) Matrix {
	return Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
