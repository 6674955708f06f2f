package selfplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"selfplay/internal/evo"
	"selfplay/internal/game"
	"selfplay/internal/model"
	"selfplay/internal/nn"
	"selfplay/internal/platform"
	"selfplay/internal/storage"
	"selfplay/internal/training"
)

const (
	defaultGame               = "large"
	defaultPopulation         = 20
	defaultGenerations        = 100
	defaultGamesPerGeneration = 2
	defaultEliteCount         = 4
	defaultActivation         = "sigmoid"
	defaultRunsLimit          = 20
	defaultEvaluateGames      = 100
	defaultFitEpochs          = 5000
	defaultFitLearningRate    = 0.5
)

var defaultHiddenLayers = []int{64}

type GenerationReport = evo.GenerationReport

type Options struct {
	StoreKind string
	DBPath    string
}

type Client struct {
	store storage.Store
	polis *platform.Polis
}

type RunRequest struct {
	RunID              string
	Game               string
	HiddenLayers       []int
	Activation         string
	Population         int
	Generations        int
	GamesPerGeneration int
	EliteCount         int
	Workers            int
	Seed               int64
	Tournament         string
	Selection          string
	MutationStart      float64
	MutationFloor      float64
	CheckpointEvery    int
	CheckpointPath     string
	Continue           bool
	Observer           func(GenerationReport)
}

type RunSummary struct {
	RunID            string
	Game             string
	Architecture     []int
	BestByGeneration []float64
	FinalBestFitness float64
	StartGeneration  int
	NextGeneration   int
	CheckpointPath   string
}

type RunsRequest struct {
	Limit int
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type FitRequest struct {
	Provider     string
	Mode         string
	HiddenLayers []int
	Activation   string
	LearningRate float64
	Epochs       int
	Seed         int64
	OutPath      string
	// Report receives per-epoch progress. Nil disables progress output.
	Report io.Writer
}

type FitSummary struct {
	Provider     string
	Architecture []int
	InitialMSE   float64
	FinalMSE     float64
	Epochs       int
	OutPath      string
}

type EvaluateRequest struct {
	Game           string
	CheckpointPath string
	HiddenLayers   []int
	Activation     string
	Games          int
	Seed           int64
}

type EvaluateSummary struct {
	Games  int
	Wins   int
	Losses int
	Draws  int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = storage.DefaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePolis(ctx)
	return err
}

// Games lists the registered game names.
func (c *Client) Games(ctx context.Context) ([]string, error) {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return nil, err
	}
	return p.RegisteredGames(), nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Game == "" {
		req.Game = defaultGame
	}
	if req.HiddenLayers == nil {
		req.HiddenLayers = append([]int(nil), defaultHiddenLayers...)
	}
	if req.Activation == "" {
		req.Activation = defaultActivation
	}
	if req.Population <= 0 {
		req.Population = defaultPopulation
	}
	if req.Generations <= 0 {
		req.Generations = defaultGenerations
	}
	if req.GamesPerGeneration <= 0 {
		req.GamesPerGeneration = defaultGamesPerGeneration
	}
	if req.EliteCount <= 0 {
		req.EliteCount = min(defaultEliteCount, req.Population)
	}
	if req.CheckpointEvery == 0 {
		req.CheckpointEvery = evo.DefaultCheckpointEvery
	}

	act, err := nn.ParseActivation(req.Activation)
	if err != nil {
		return RunSummary{}, err
	}
	tournament, err := evo.TournamentFromName(req.Tournament)
	if err != nil {
		return RunSummary{}, err
	}
	selector, err := evo.SelectorFromName(req.Selection)
	if err != nil {
		return RunSummary{}, err
	}
	mutation := evo.MutationSchedule{Start: req.MutationStart, Floor: req.MutationFloor}
	if mutation == (evo.MutationSchedule{}) {
		mutation = evo.DefaultMutationSchedule()
	}

	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	result, err := p.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:              req.RunID,
		Game:               req.Game,
		HiddenLayers:       req.HiddenLayers,
		Activation:         act,
		PopulationSize:     req.Population,
		Generations:        req.Generations,
		GamesPerGeneration: req.GamesPerGeneration,
		EliteCount:         req.EliteCount,
		Workers:            req.Workers,
		Seed:               req.Seed,
		Tournament:         tournament,
		Selector:           selector,
		Mutation:           mutation,
		CheckpointEvery:    req.CheckpointEvery,
		CheckpointPath:     req.CheckpointPath,
		Continue:           req.Continue,
		Observer:           req.Observer,
	})
	if err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:            result.Run.ID,
		Game:             result.Run.Game,
		Architecture:     append([]int(nil), result.Run.Architecture...),
		BestByGeneration: result.BestByGeneration,
		FinalBestFitness: result.BestFinalFitness,
		StartGeneration:  result.StartGeneration,
		NextGeneration:   result.NextGeneration,
		CheckpointPath:   result.Run.CheckpointPath,
	}, nil
}

// Runs lists recorded runs newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, req.Limit, "fitness history")
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, req.Limit, "diagnostics")
	if err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	return diagnostics, nil
}

// Fit trains one network on a labeled sample provider with backpropagation.
func (c *Client) Fit(_ context.Context, req FitRequest) (FitSummary, error) {
	if req.Provider == "" {
		req.Provider = "xor"
	}
	if req.HiddenLayers == nil {
		req.HiddenLayers = []int{4}
	}
	if req.Activation == "" {
		req.Activation = defaultActivation
	}
	if req.LearningRate == 0 {
		req.LearningRate = defaultFitLearningRate
	}
	if req.Epochs <= 0 {
		req.Epochs = defaultFitEpochs
	}

	provider, err := training.LookupProvider(req.Provider)
	if err != nil {
		return FitSummary{}, err
	}
	act, err := nn.ParseActivation(req.Activation)
	if err != nil {
		return FitSummary{}, err
	}
	inputs, targets, err := provider.Samples(req.Mode)
	if err != nil {
		return FitSummary{}, err
	}
	if len(inputs) == 0 {
		return FitSummary{}, fmt.Errorf("sample provider %s returned no samples", provider.Name())
	}

	sizes := append(append([]int{inputs[0].Rows()}, req.HiddenLayers...), targets[0].Rows())
	net, err := nn.New(rand.New(rand.NewSource(req.Seed)), sizes, act)
	if err != nil {
		return FitSummary{}, err
	}
	initial, err := training.DatasetError(net, inputs, targets)
	if err != nil {
		return FitSummary{}, err
	}

	trainer := training.NewTrainer(net)
	trainer.Report = req.Report
	if _, err := trainer.Train(inputs, targets, req.LearningRate, req.Epochs, req.Report != nil); err != nil {
		return FitSummary{}, err
	}
	final, err := training.DatasetError(net, inputs, targets)
	if err != nil {
		return FitSummary{}, err
	}
	if req.OutPath != "" {
		if err := net.Save(req.OutPath); err != nil {
			return FitSummary{}, err
		}
	}

	return FitSummary{
		Provider:     provider.Name(),
		Architecture: sizes,
		InitialMSE:   initial,
		FinalMSE:     final,
		Epochs:       req.Epochs,
		OutPath:      req.OutPath,
	}, nil
}

// Evaluate loads a checkpointed network and plays it against a uniformly
// random mover, alternating who moves first.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateSummary, error) {
	if req.CheckpointPath == "" {
		return EvaluateSummary{}, errors.New("checkpoint path is required")
	}
	if req.Game == "" {
		req.Game = defaultGame
	}
	if req.HiddenLayers == nil {
		req.HiddenLayers = append([]int(nil), defaultHiddenLayers...)
	}
	if req.Activation == "" {
		req.Activation = defaultActivation
	}
	if req.Games <= 0 {
		req.Games = defaultEvaluateGames
	}

	p, err := c.ensurePolis(ctx)
	if err != nil {
		return EvaluateSummary{}, err
	}
	factory, ok := p.GetGame(req.Game)
	if !ok {
		return EvaluateSummary{}, fmt.Errorf("%w: %s", game.ErrGameNotFound, req.Game)
	}
	act, err := nn.ParseActivation(req.Activation)
	if err != nil {
		return EvaluateSummary{}, err
	}
	cells := game.Cells(factory)
	sizes := append(append([]int{cells}, req.HiddenLayers...), cells)
	net, err := nn.LoadFile(req.CheckpointPath, sizes, act)
	if err != nil {
		return EvaluateSummary{}, err
	}

	ref := evo.BoardReferee{NewBoard: factory}
	rng := rand.New(rand.NewSource(req.Seed))
	agent := evo.Player{Index: 0, Net: net}
	random := evo.Player{Index: 1}

	summary := EvaluateSummary{Games: req.Games}
	for g := 0; g < req.Games; g++ {
		agentFirst := g%2 == 0
		first, second := agent, random
		if !agentFirst {
			first, second = random, agent
		}
		outcome, err := ref.Play(ctx, rng, first, second)
		if err != nil {
			return EvaluateSummary{}, fmt.Errorf("game %d: %w", g, err)
		}
		switch {
		case outcome == evo.Draw:
			summary.Draws++
		case (outcome == evo.FirstWins) == agentFirst:
			summary.Wins++
		default:
			summary.Losses++
		}
	}
	return summary, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool, limit int, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return "", err
	}
	if latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", errors.New("no runs available")
		}
		runID = runs[0].ID
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	if c.polis != nil {
		return c.polis, nil
	}
	p := platform.NewPolis(platform.Config{Store: c.store})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.polis = p
	return c.polis, nil
}
