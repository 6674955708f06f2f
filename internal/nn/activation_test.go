package nn

import (
	"errors"
	"math"
	"testing"
)

func TestParseActivation(t *testing.T) {
	for _, name := range ListActivations() {
		act, err := ParseActivation(name)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		if act.String() != name {
			t.Fatalf("round trip mismatch: %s != %s", act, name)
		}
	}
	if act, err := ParseActivation(" Sigmoid "); err != nil || act != Sigmoid {
		t.Fatalf("expected case-insensitive parse, got %v %v", act, err)
	}
	if _, err := ParseActivation("softmax"); !errors.Is(err, ErrActivationNotFound) {
		t.Fatalf("expected ErrActivationNotFound, got %v", err)
	}
	if Activation(42).Valid() {
		t.Fatal("expected out-of-table activation to be invalid")
	}
}

func TestActivationValues(t *testing.T) {
	tests := []struct {
		act  Activation
		x    float64
		want float64
	}{
		{Identity, -2.5, -2.5},
		{Sigmoid, 0, 0.5},
		{Tanh, 0, 0},
		{ReLU, -1, 0},
		{ReLU, 2, 2},
	}
	for _, tc := range tests {
		if got := tc.act.Apply(tc.x); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("%s(%f)=%f want %f", tc.act, tc.x, got, tc.want)
		}
	}
}

func TestDerivativeMatchesFiniteDifference(t *testing.T) {
	const h = 1e-6
	for _, act := range []Activation{Identity, Sigmoid, Tanh, ReLU} {
		for _, x := range []float64{-1.3, -0.2, 0.4, 2.1} {
			numeric := (act.Apply(x+h) - act.Apply(x-h)) / (2 * h)
			if got := act.Derivative(x); math.Abs(got-numeric) > 1e-5 {
				t.Fatalf("%s'(%f)=%f numeric=%f", act, x, got, numeric)
			}
		}
	}
}
