package evo

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"selfplay/internal/nn"
)

// Checkpoint is handed to a Checkpointer after a generation has been bred.
// Best is slot 0 of the new arena, the top elite of the generation just
// evaluated. Population is the full new arena. Receivers must not mutate
// either.
type Checkpoint struct {
	Generation     int
	NextGeneration int
	BestFitness    float64
	Best           *nn.Network
	Population     []*nn.Network
	Final          bool
}

type Checkpointer interface {
	Checkpoint(ctx context.Context, cp Checkpoint) error
}

// CheckpointerFunc adapts a function to Checkpointer.
type CheckpointerFunc func(ctx context.Context, cp Checkpoint) error

func (f CheckpointerFunc) Checkpoint(ctx context.Context, cp Checkpoint) error {
	return f(ctx, cp)
}

// MultiCheckpointer fans a checkpoint out in order and stops at the first
// error.
type MultiCheckpointer []Checkpointer

func (m MultiCheckpointer) Checkpoint(ctx context.Context, cp Checkpoint) error {
	for _, c := range m {
		if c == nil {
			continue
		}
		if err := c.Checkpoint(ctx, cp); err != nil {
			return err
		}
	}
	return nil
}

// FileCheckpointer writes the best network to Path in the network file
// format. The file is replaced atomically so readers never see a partial
// snapshot.
type FileCheckpointer struct {
	Path string
}

func (c FileCheckpointer) Checkpoint(_ context.Context, cp Checkpoint) error {
	if c.Path == "" {
		return fmt.Errorf("checkpoint path is required")
	}
	if cp.Best == nil {
		return fmt.Errorf("checkpoint has no best network")
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.Path), filepath.Base(c.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", nn.ErrIO, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	bw := bufio.NewWriter(tmp)
	if err := cp.Best.Encode(bw); err != nil {
		cleanup()
		return err
	}
	if err := bw.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", nn.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", nn.ErrIO, err)
	}
	if err := os.Rename(tmpName, c.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", nn.ErrIO, err)
	}
	return nil
}
