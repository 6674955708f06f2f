package platform

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"selfplay/internal/evo"
	"selfplay/internal/game"
	"selfplay/internal/model"
	"selfplay/internal/nn"
	"selfplay/internal/storage"
)

type Config struct {
	Store storage.Store
	// Games registered at Init in addition to the built-in boards.
	Games map[string]game.Factory
}

type EvolutionConfig struct {
	RunID string
	Game  string
	// HiddenLayers sits between the board-sized input and output layers.
	HiddenLayers       []int
	Activation         nn.Activation
	PopulationSize     int
	Generations        int
	GamesPerGeneration int
	EliteCount         int
	Workers            int
	Seed               int64
	Tournament         evo.Tournament
	Selector           evo.Selector
	Mutation           evo.MutationSchedule
	CheckpointEvery    int
	CheckpointPath     string
	// Continue resumes RunID from its stored population snapshot.
	Continue bool
	Observer func(evo.GenerationReport)
}

type EvolutionResult struct {
	Run                   model.RunRecord
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	BestFinalFitness      float64
	Best                  *nn.Network
	StartGeneration       int
	NextGeneration        int
}

// Polis owns the store and the game registry and runs evolutions against
// them.
type Polis struct {
	store storage.Store

	mu      sync.RWMutex
	games   map[string]game.Factory
	started bool

	config Config
	now    func() time.Time
}

func NewPolis(cfg Config) *Polis {
	return &Polis{
		store:  cfg.Store,
		games:  make(map[string]game.Factory),
		config: cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}

	games := make(map[string]game.Factory)
	for _, name := range game.Names() {
		f, err := game.Lookup(name)
		if err != nil {
			return err
		}
		games[name] = f
	}
	for name, f := range p.config.Games {
		if name == "" {
			return fmt.Errorf("game name is required")
		}
		if f == nil {
			return fmt.Errorf("game factory is nil: %s", name)
		}
		games[name] = f
	}
	p.games = games
	p.started = true
	return nil
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) Store() storage.Store {
	return p.store
}

func (p *Polis) RegisterGame(name string, f game.Factory) error {
	if name == "" {
		return fmt.Errorf("game name is required")
	}
	if f == nil {
		return fmt.Errorf("game factory is nil: %s", name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.games[name] = f
	return nil
}

func (p *Polis) GetGame(name string) (game.Factory, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.games[name]
	return f, ok
}

func (p *Polis) RegisteredGames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.games))
	for name := range p.games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunEvolution trains a population on cfg.Game and persists the run record,
// fitness history, generation diagnostics and a resumable population
// snapshot. Snapshots are also written at every checkpoint, so an
// interrupted run can be continued from its last checkpoint.
func (p *Polis) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.Game == "" {
		return EvolutionResult{}, fmt.Errorf("game name is required")
	}

	p.mu.RLock()
	factory, ok := p.games[cfg.Game]
	started := p.started
	p.mu.RUnlock()

	if !started {
		return EvolutionResult{}, fmt.Errorf("polis is not initialized")
	}
	if !ok {
		return EvolutionResult{}, fmt.Errorf("%w: %s", game.ErrGameNotFound, cfg.Game)
	}

	runID := cfg.RunID
	if runID == "" {
		if cfg.Continue {
			return EvolutionResult{}, fmt.Errorf("run id is required to continue a run")
		}
		runID = fmt.Sprintf("evo:%s:%d", cfg.Game, cfg.Seed)
	}

	cells := game.Cells(factory)
	architecture := append(append([]int{cells}, cfg.HiddenLayers...), cells)

	var (
		initial   []*nn.Network
		startGen  int
		createdAt = p.now()
	)
	if cfg.Continue {
		snapshot, found, err := p.store.GetPopulation(ctx, runID)
		if err != nil {
			return EvolutionResult{}, err
		}
		if !found {
			return EvolutionResult{}, fmt.Errorf("population snapshot not found: %s", runID)
		}
		if !sameSizes(snapshot.Architecture, architecture) || snapshot.Activation != cfg.Activation.String() {
			return EvolutionResult{}, fmt.Errorf(
				"population snapshot %s was trained with %v/%s, not %v/%s",
				runID, snapshot.Architecture, snapshot.Activation, architecture, cfg.Activation,
			)
		}
		if len(snapshot.Members) != cfg.PopulationSize {
			return EvolutionResult{}, fmt.Errorf("initial population mismatch: got=%d want=%d", len(snapshot.Members), cfg.PopulationSize)
		}
		initial, err = decodeMembers(snapshot.Members, architecture, cfg.Activation)
		if err != nil {
			return EvolutionResult{}, fmt.Errorf("population snapshot %s: %w", runID, err)
		}
		startGen = snapshot.NextGeneration
		if existing, found, err := p.store.GetRun(ctx, runID); err != nil {
			return EvolutionResult{}, err
		} else if found {
			createdAt = existing.CreatedAt
		}
	}

	checkpointers := evo.MultiCheckpointer{p.snapshotCheckpointer(runID, architecture, cfg.Activation)}
	if cfg.CheckpointPath != "" {
		checkpointers = append(checkpointers, evo.FileCheckpointer{Path: cfg.CheckpointPath})
	}

	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Generations:        cfg.Generations,
		StartGeneration:    startGen,
		PopulationSize:     cfg.PopulationSize,
		GamesPerGeneration: cfg.GamesPerGeneration,
		EliteCount:         cfg.EliteCount,
		Workers:            cfg.Workers,
		Architecture:       architecture,
		Activation:         cfg.Activation,
		Tournament:         cfg.Tournament,
		Referee:            evo.BoardReferee{NewBoard: factory},
		Selector:           cfg.Selector,
		Mutation:           cfg.Mutation,
		CheckpointEvery:    cfg.CheckpointEvery,
		Checkpointer:       checkpointers,
		Observer:           cfg.Observer,
		Seed:               cfg.Seed,
	})
	if err != nil {
		return EvolutionResult{}, err
	}
	effective := monitor.Config()

	if initial == nil {
		initial, err = monitor.InitialPopulation()
		if err != nil {
			return EvolutionResult{}, err
		}
	}

	result, err := monitor.Run(ctx, initial)
	if err != nil {
		return EvolutionResult{}, err
	}

	history := result.BestByGeneration
	diagnostics := toModelDiagnostics(result.Reports)
	if cfg.Continue {
		history, diagnostics, err = p.mergeExistingRunHistory(ctx, runID, startGen, history, diagnostics)
		if err != nil {
			return EvolutionResult{}, err
		}
	}

	bestFinal := 0.0
	if n := len(result.BestByGeneration); n > 0 {
		bestFinal = result.BestByGeneration[n-1]
	}
	record := model.RunRecord{
		VersionedRecord:    storage.CurrentVersion(),
		ID:                 runID,
		Game:               cfg.Game,
		Architecture:       architecture,
		Activation:         cfg.Activation.String(),
		PopulationSize:     cfg.PopulationSize,
		EliteCount:         cfg.EliteCount,
		GamesPerGeneration: cfg.GamesPerGeneration,
		Tournament:         effective.Tournament.Name(),
		Selection:          effective.Selector.Name(),
		MutationStart:      effective.Mutation.Start,
		MutationFloor:      effective.Mutation.Floor,
		Seed:               cfg.Seed,
		Generations:        result.NextGeneration,
		BestFitness:        bestFinal,
		CheckpointPath:     cfg.CheckpointPath,
		CreatedAt:          createdAt,
		UpdatedAt:          p.now(),
	}
	if err := p.store.SaveRun(ctx, record); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveFitnessHistory(ctx, runID, history); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveGenerationDiagnostics(ctx, runID, diagnostics); err != nil {
		return EvolutionResult{}, err
	}

	return EvolutionResult{
		Run:                   record,
		BestByGeneration:      history,
		GenerationDiagnostics: diagnostics,
		BestFinalFitness:      bestFinal,
		Best:                  result.Best(),
		StartGeneration:       startGen,
		NextGeneration:        result.NextGeneration,
	}, nil
}

func (p *Polis) snapshotCheckpointer(runID string, architecture []int, act nn.Activation) evo.Checkpointer {
	return evo.CheckpointerFunc(func(ctx context.Context, cp evo.Checkpoint) error {
		members, err := encodeMembers(cp.Population)
		if err != nil {
			return err
		}
		return p.store.SavePopulation(ctx, model.PopulationSnapshot{
			VersionedRecord: storage.CurrentVersion(),
			RunID:           runID,
			Architecture:    append([]int(nil), architecture...),
			Activation:      act.String(),
			NextGeneration:  cp.NextGeneration,
			Members:         members,
		})
	})
}

// mergeExistingRunHistory prepends the stored history of generations before
// startGen. Entries recorded past the snapshot, by a run that went on after
// its last checkpoint, are replaced by the resumed ones.
func (p *Polis) mergeExistingRunHistory(
	ctx context.Context,
	runID string,
	startGen int,
	history []float64,
	diagnostics []model.GenerationDiagnostics,
) ([]float64, []model.GenerationDiagnostics, error) {
	if prior, ok, err := p.store.GetFitnessHistory(ctx, runID); err != nil {
		return nil, nil, err
	} else if ok {
		prior = prior[:min(len(prior), startGen)]
		history = append(append([]float64{}, prior...), history...)
	}
	if prior, ok, err := p.store.GetGenerationDiagnostics(ctx, runID); err != nil {
		return nil, nil, err
	} else if ok {
		merged := make([]model.GenerationDiagnostics, 0, len(prior)+len(diagnostics))
		for _, d := range prior {
			if d.Generation < startGen {
				merged = append(merged, d)
			}
		}
		diagnostics = append(merged, diagnostics...)
	}
	return history, diagnostics, nil
}

func toModelDiagnostics(reports []evo.GenerationReport) []model.GenerationDiagnostics {
	out := make([]model.GenerationDiagnostics, 0, len(reports))
	for _, r := range reports {
		out = append(out, model.GenerationDiagnostics{
			Generation:   r.Generation,
			BestFitness:  r.BestFitness,
			MeanFitness:  r.MeanFitness,
			MinFitness:   r.MinFitness,
			MutationRate: r.MutationRate,
			ElapsedMS:    r.Elapsed.Milliseconds(),
		})
	}
	return out
}

func encodeMembers(population []*nn.Network) ([][]byte, error) {
	members := make([][]byte, 0, len(population))
	for i, net := range population {
		var buf bytes.Buffer
		if err := net.Encode(&buf); err != nil {
			return nil, fmt.Errorf("encode member %d: %w", i, err)
		}
		members = append(members, buf.Bytes())
	}
	return members, nil
}

func decodeMembers(members [][]byte, architecture []int, act nn.Activation) ([]*nn.Network, error) {
	// weights are overwritten by Decode, the source only fills the shells
	rng := rand.New(rand.NewSource(0))
	out := make([]*nn.Network, 0, len(members))
	for i, raw := range members {
		net, err := nn.New(rng, architecture, act)
		if err != nil {
			return nil, err
		}
		r := bytes.NewReader(raw)
		if err := net.Decode(r); err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		if r.Len() != 0 {
			return nil, fmt.Errorf("%w: member %d has %d trailing bytes", nn.ErrIO, i, r.Len())
		}
		out = append(out, net)
	}
	return out, nil
}

func sameSizes(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
