package training

import (
	"fmt"
	"sort"
	"strings"

	"selfplay/internal/matrix"
)

// SampleProvider supplies labeled column-vector samples for a named mode.
type SampleProvider interface {
	Name() string
	Samples(mode string) (inputs, targets []matrix.Matrix, err error)
}

// XORSamples serves the four boolean XOR cases. Modes reorder and repeat
// them so validation and test passes do not replay training order.
type XORSamples struct{}

func (XORSamples) Name() string {
	return "xor"
}

type labeledCase struct {
	in   []float64
	want []float64
}

func (XORSamples) Samples(mode string) ([]matrix.Matrix, []matrix.Matrix, error) {
	base := []labeledCase{
		{in: []float64{0, 0}, want: []float64{0}},
		{in: []float64{0, 1}, want: []float64{1}},
		{in: []float64{1, 0}, want: []float64{1}},
		{in: []float64{1, 1}, want: []float64{0}},
	}

	var cases []labeledCase
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "gt":
		cases = base
	case "validation":
		cases = []labeledCase{base[1], base[2], base[0], base[3], base[1], base[2]}
	case "test", "benchmark":
		cases = []labeledCase{base[3], base[2], base[1], base[0], base[3], base[0], base[2], base[1]}
	default:
		return nil, nil, fmt.Errorf("unsupported xor mode: %s", mode)
	}
	return toColumns(cases)
}

func toColumns(cases []labeledCase) ([]matrix.Matrix, []matrix.Matrix, error) {
	inputs := make([]matrix.Matrix, 0, len(cases))
	targets := make([]matrix.Matrix, 0, len(cases))
	for _, c := range cases {
		in, err := matrix.Column(c.in)
		if err != nil {
			return nil, nil, err
		}
		want, err := matrix.Column(c.want)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, in)
		targets = append(targets, want)
	}
	return inputs, targets, nil
}

var providers = map[string]SampleProvider{
	"xor": XORSamples{},
}

// LookupProvider returns a built-in provider by name.
func LookupProvider(name string) (SampleProvider, error) {
	p, ok := providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown sample provider: %s", name)
	}
	return p, nil
}

func ProviderNames() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
