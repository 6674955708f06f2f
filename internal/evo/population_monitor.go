package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/floats"

	"selfplay/internal/nn"
)

const (
	DefaultCheckpointEvery = 100
	fallbackWorkers        = 4
)

// GenerationReport summarizes one evaluated generation.
type GenerationReport struct {
	Generation   int           `json:"generation"`
	BestIndex    int           `json:"best_index"`
	BestFitness  float64       `json:"best_fitness"`
	MeanFitness  float64       `json:"mean_fitness"`
	MinFitness   float64       `json:"min_fitness"`
	MutationRate float64       `json:"mutation_rate"`
	Elapsed      time.Duration `json:"elapsed"`
}

type RunResult struct {
	BestByGeneration []float64
	Reports          []GenerationReport
	// Population is the arena produced by the last breeding step. Its members
	// have not been evaluated yet.
	Population []*nn.Network
	// NextGeneration is the absolute index the next run should start from.
	NextGeneration int
}

// Best returns the top elite of the last generation.
func (r RunResult) Best() *nn.Network {
	if len(r.Population) == 0 {
		return nil
	}
	return r.Population[0]
}

type MonitorConfig struct {
	// Generations is the number of generations this run executes.
	Generations int
	// StartGeneration offsets generation numbering when resuming. The
	// mutation schedule spans StartGeneration+Generations.
	StartGeneration    int
	PopulationSize     int
	GamesPerGeneration int
	EliteCount         int
	Workers            int
	Architecture       []int
	Activation         nn.Activation
	Tournament         Tournament
	Referee            Referee
	Selector           Selector
	Mutation           MutationSchedule
	// CheckpointEvery triggers a checkpoint when generation%CheckpointEvery
	// is zero. The final generation is always checkpointed.
	CheckpointEvery int
	Checkpointer    Checkpointer
	Observer        func(GenerationReport)
	Seed            int64
}

// PopulationMonitor runs the generational self-play loop.
type PopulationMonitor struct {
	cfg MonitorConfig
	rng *rand.Rand
}

// DefaultWorkers reports the logical core count, or 4 when it cannot be
// detected.
func DefaultWorkers() int {
	if cores := cpuid.CPU.LogicalCores; cores > 0 {
		return cores
	}
	return fallbackWorkers
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Referee == nil {
		return nil, fmt.Errorf("referee is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.EliteCount <= 0 || cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [1, population size]")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.StartGeneration < 0 {
		return nil, fmt.Errorf("start generation must be >= 0")
	}
	if cfg.GamesPerGeneration <= 0 {
		return nil, fmt.Errorf("games per generation must be > 0")
	}
	if len(cfg.Architecture) < 2 {
		return nil, fmt.Errorf("architecture needs at least two layer sizes")
	}
	if !cfg.Activation.Valid() {
		return nil, fmt.Errorf("%w: %s", nn.ErrActivationNotFound, cfg.Activation)
	}
	if cfg.Mutation == (MutationSchedule{}) {
		cfg.Mutation = DefaultMutationSchedule()
	}
	if err := cfg.Mutation.validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.Tournament == nil {
		cfg.Tournament = AllVsAll{}
	}
	if cfg.Selector == nil {
		cfg.Selector = EliteSelector{}
	}
	if cfg.CheckpointEvery < 0 {
		return nil, fmt.Errorf("checkpoint interval must be >= 0")
	}

	return &PopulationMonitor{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Config returns the effective configuration after defaults.
func (m *PopulationMonitor) Config() MonitorConfig {
	return m.cfg
}

// InitialPopulation creates PopulationSize randomly initialized networks.
func (m *PopulationMonitor) InitialPopulation() ([]*nn.Network, error) {
	population := make([]*nn.Network, 0, m.cfg.PopulationSize)
	for i := 0; i < m.cfg.PopulationSize; i++ {
		net, err := nn.New(m.rng, m.cfg.Architecture, m.cfg.Activation)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		population = append(population, net)
	}
	return population, nil
}

// Run evolves initial for the configured number of generations. initial is
// not modified; each generation's arena is replaced wholesale by the next.
func (m *PopulationMonitor) Run(ctx context.Context, initial []*nn.Network) (RunResult, error) {
	if len(initial) != m.cfg.PopulationSize {
		return RunResult{}, fmt.Errorf("initial population mismatch: got=%d want=%d", len(initial), m.cfg.PopulationSize)
	}
	for i, net := range initial {
		if err := m.checkArchitecture(net); err != nil {
			return RunResult{}, fmt.Errorf("initial member %d: %w", i, err)
		}
	}

	arena := append([]*nn.Network(nil), initial...)
	bestHistory := make([]float64, 0, m.cfg.Generations)
	reports := make([]GenerationReport, 0, m.cfg.Generations)
	first := m.cfg.StartGeneration
	last := first + m.cfg.Generations - 1
	total := first + m.cfg.Generations

	for gen := first; gen <= last; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		started := time.Now()

		scores, err := m.evaluatePopulation(ctx, arena, gen)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen, err)
		}
		ranked := Rank(scores)
		rate := m.cfg.Mutation.Rate(gen, total)

		next, err := m.nextGeneration(arena, ranked, rate)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen, err)
		}
		arena = next

		report := summarizeGeneration(scores, ranked, gen, rate, time.Since(started))
		bestHistory = append(bestHistory, report.BestFitness)
		reports = append(reports, report)
		if m.cfg.Observer != nil {
			m.cfg.Observer(report)
		}

		if m.cfg.Checkpointer != nil && m.shouldCheckpoint(gen, last) {
			cp := Checkpoint{
				Generation:     gen,
				NextGeneration: gen + 1,
				BestFitness:    report.BestFitness,
				Best:           arena[0],
				Population:     arena,
				Final:          gen == last,
			}
			if err := m.cfg.Checkpointer.Checkpoint(ctx, cp); err != nil {
				return RunResult{}, fmt.Errorf("checkpoint generation %d: %w", gen, err)
			}
		}
	}

	return RunResult{
		BestByGeneration: bestHistory,
		Reports:          reports,
		Population:       arena,
		NextGeneration:   last + 1,
	}, nil
}

func (m *PopulationMonitor) shouldCheckpoint(gen, last int) bool {
	if gen == last {
		return true
	}
	return m.cfg.CheckpointEvery > 0 && gen%m.cfg.CheckpointEvery == 0
}

func (m *PopulationMonitor) checkArchitecture(net *nn.Network) error {
	if net == nil {
		return fmt.Errorf("network is nil")
	}
	sizes := net.Sizes()
	if len(sizes) != len(m.cfg.Architecture) {
		return fmt.Errorf("architecture mismatch: got=%v want=%v", sizes, m.cfg.Architecture)
	}
	for i := range sizes {
		if sizes[i] != m.cfg.Architecture[i] {
			return fmt.Errorf("architecture mismatch: got=%v want=%v", sizes, m.cfg.Architecture)
		}
	}
	return nil
}

// evaluatePopulation splits arena into contiguous chunks, one per worker.
// Workers play on clones and own their random source; only the score
// assignment is serialized. The first failure cancels the remaining workers.
func (m *PopulationMonitor) evaluatePopulation(ctx context.Context, arena []*nn.Network, generation int) ([]float64, error) {
	n := len(arena)
	workerCount := m.cfg.Workers
	if workerCount > n {
		workerCount = n
	}
	chunk := (n + workerCount - 1) / workerCount

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scores := make([]float64, n)
	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	for w := 0; w < workerCount; w++ {
		start := w * chunk
		if start >= n {
			break
		}
		end := min(start+chunk, n)

		wg.Add(1)
		go func(worker, start, end int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(workerSeed(m.cfg.Seed, generation, worker)))
			for i := start; i < end; i++ {
				score, err := m.cfg.Tournament.Score(ctx, rng, m.cfg.Referee, arena, i, m.cfg.GamesPerGeneration)

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("member %d: %w", i, err)
						cancel()
					}
					mu.Unlock()
					return
				}
				scores[i] = score
				mu.Unlock()
			}
		}(w, start, end)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return scores, nil
}

// nextGeneration clones the elites unmutated into a new arena, then fills it
// with mutated clones of parents chosen by the selector.
func (m *PopulationMonitor) nextGeneration(arena []*nn.Network, ranked []Ranked, rate float64) ([]*nn.Network, error) {
	next := make([]*nn.Network, 0, m.cfg.PopulationSize)
	for i := 0; i < m.cfg.EliteCount; i++ {
		next = append(next, arena[ranked[i].Index].Clone())
	}
	for len(next) < m.cfg.PopulationSize {
		parent, err := m.cfg.Selector.PickParent(m.rng, ranked, m.cfg.EliteCount)
		if err != nil {
			return nil, fmt.Errorf("pick parent: %w", err)
		}
		child := arena[parent.Index].Clone()
		Mutate(child, rate, m.rng)
		next = append(next, child)
	}
	return next, nil
}

func summarizeGeneration(scores []float64, ranked []Ranked, generation int, rate float64, elapsed time.Duration) GenerationReport {
	return GenerationReport{
		Generation:   generation,
		BestIndex:    ranked[0].Index,
		BestFitness:  ranked[0].Fitness,
		MeanFitness:  floats.Sum(scores) / float64(len(scores)),
		MinFitness:   floats.Min(scores),
		MutationRate: rate,
		Elapsed:      elapsed,
	}
}

func workerSeed(base int64, generation, worker int) int64 {
	return base + int64(generation+1)*1_000_003 + int64(worker)*1000
}
