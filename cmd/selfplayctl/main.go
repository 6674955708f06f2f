package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/ncruces/go-strftime"

	"selfplay/internal/evo"
	"selfplay/internal/game"
	"selfplay/internal/nn"
	"selfplay/internal/stats"
	"selfplay/internal/storage"
	"selfplay/internal/training"
	"selfplay/pkg/selfplay"
)

const (
	defaultCheckpointPath = "best_network.bin"
	defaultOutputDir      = "selfplay-runs"
	timestampLayout       = "%Y-%m-%d %H:%M:%S"
)

var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "fit":
		return runFit(ctx, args[1:])
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "games":
		return runGames(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (default: random uuid)")
	continueRun := fs.String("continue-run", "", "resume the stored population snapshot of this run id")
	gameName := fs.String("game", "large", "game: "+strings.Join(game.Names(), "|"))
	hidden := fs.String("hidden", "64", "comma separated hidden layer widths")
	activation := fs.String("activation", "sigmoid", "activation: "+strings.Join(nn.ListActivations(), "|"))
	population := fs.Int("pop", 20, "population size")
	generations := fs.Int("gens", 100, "generation count")
	games := fs.Int("games", 2, "games per pairing per generation")
	elite := fs.Int("elite", 4, "elite count carried over unmutated")
	workers := fs.Int("workers", 0, "worker count (0 uses logical cores)")
	seed := fs.Int64("seed", 0, "rng seed (0 picks a time-based seed)")
	tournamentName := fs.String("tournament", "all-vs-all", "tournament: all-vs-all|random-opponent")
	selectionName := fs.String("selection", "elite", "parent selection: elite|tournament")
	mutationStart := fs.Float64("mutation-start", evo.DefaultMutationStart, "mutation rate at generation 0")
	mutationFloor := fs.Float64("mutation-floor", evo.DefaultMutationFloor, "mutation rate approached at the last generation")
	checkpointEvery := fs.Int("checkpoint-every", evo.DefaultCheckpointEvery, "checkpoint cadence in generations (the last generation is always checkpointed)")
	checkpointPath := fs.String("checkpoint", defaultCheckpointPath, "best network output path")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", storage.DefaultDBPath, "sqlite database path")
	quiet := fs.Bool("quiet", false, "suppress per-generation progress")
	outputDir := fs.String("output-dir", defaultOutputDir, "run artifact directory (empty disables artifacts)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})
	if setFlags["run-id"] && setFlags["continue-run"] && *runID != *continueRun {
		return errors.New("use either --run-id or --continue-run, not both")
	}

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		if *population <= 0 || *generations <= 0 || *games <= 0 {
			return errors.New("pop, gens and games must be > 0")
		}
		hiddenLayers, err := parseSizes(*hidden)
		if err != nil {
			return err
		}
		req = selfplay.RunRequest{
			RunID:              *runID,
			Game:               *gameName,
			HiddenLayers:       hiddenLayers,
			Activation:         *activation,
			Population:         *population,
			Generations:        *generations,
			GamesPerGeneration: *games,
			EliteCount:         *elite,
			Workers:            *workers,
			Seed:               *seed,
			Tournament:         *tournamentName,
			Selection:          *selectionName,
			MutationStart:      *mutationStart,
			MutationFloor:      *mutationFloor,
			CheckpointEvery:    *checkpointEvery,
			CheckpointPath:     *checkpointPath,
		}
		if *continueRun != "" {
			req.RunID = *continueRun
			req.Continue = true
		}
	} else {
		err := overrideFromFlags(&req, setFlags, map[string]any{
			"run-id":           *runID,
			"continue-run":     *continueRun,
			"game":             *gameName,
			"hidden":           *hidden,
			"activation":       *activation,
			"pop":              *population,
			"gens":             *generations,
			"games":            *games,
			"elite":            *elite,
			"workers":          *workers,
			"seed":             *seed,
			"tournament":       *tournamentName,
			"selection":        *selectionName,
			"mutation-start":   *mutationStart,
			"mutation-floor":   *mutationFloor,
			"checkpoint-every": *checkpointEvery,
			"checkpoint":       *checkpointPath,
		})
		if err != nil {
			return err
		}
	}
	if req.Continue && req.RunID == "" {
		return errors.New("continue requires a run id")
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	client, err := selfplay.New(selfplay.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	fmt.Fprintf(stdout, "starting run run_id=%s game=%s pop=%d gens=%d games_per_generation=%s seed=%d continue=%t\n",
		req.RunID, req.Game, req.Population, req.Generations,
		humanize.Comma(gamesPerGeneration(req)), req.Seed, req.Continue,
	)
	var progress *progressPrinter
	if !*quiet {
		progress = newProgressPrinter(stdout, isInteractive())
		req.Observer = progress.Report
	}

	summary, err := client.Run(ctx, req)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "run completed run_id=%s game=%s architecture=%s generations=%d..%d\n",
		summary.RunID, summary.Game, formatSizes(summary.Architecture), summary.StartGeneration, summary.NextGeneration-1)
	fmt.Fprintf(stdout, "final_best_fitness=%.6f\n", summary.FinalBestFitness)
	if summary.CheckpointPath != "" {
		if info, err := os.Stat(summary.CheckpointPath); err == nil {
			fmt.Fprintf(stdout, "checkpoint=%s size=%s\n", summary.CheckpointPath, humanize.Bytes(uint64(info.Size())))
		}
	}
	if *outputDir == "" {
		return nil
	}
	runDir, err := writeRunArtifacts(ctx, client, *outputDir, req, summary)
	if err != nil {
		return fmt.Errorf("write run artifacts: %w", err)
	}
	fmt.Fprintf(stdout, "artifacts=%s\n", runDir)
	return nil
}

func writeRunArtifacts(ctx context.Context, client *selfplay.Client, outputDir string, req selfplay.RunRequest, summary selfplay.RunSummary) (string, error) {
	diagnostics, err := client.Diagnostics(ctx, selfplay.DiagnosticsRequest{RunID: summary.RunID})
	if err != nil {
		return "", err
	}
	runDir, err := stats.WriteRunArtifacts(outputDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:              summary.RunID,
			Continued:          req.Continue,
			StartGeneration:    summary.StartGeneration,
			Game:               summary.Game,
			Architecture:       summary.Architecture,
			Activation:         req.Activation,
			PopulationSize:     req.Population,
			Generations:        summary.NextGeneration,
			GamesPerGeneration: req.GamesPerGeneration,
			EliteCount:         req.EliteCount,
			Workers:            req.Workers,
			Seed:               req.Seed,
			Tournament:         req.Tournament,
			Selection:          req.Selection,
			MutationStart:      req.MutationStart,
			MutationFloor:      req.MutationFloor,
			CheckpointEvery:    req.CheckpointEvery,
			CheckpointPath:     summary.CheckpointPath,
		},
		BestByGeneration:      summary.BestByGeneration,
		GenerationDiagnostics: diagnostics,
		FinalBestFitness:      summary.FinalBestFitness,
	})
	if err != nil {
		return "", err
	}
	err = stats.AppendRunIndex(outputDir, stats.RunIndexEntry{
		RunID:            summary.RunID,
		Game:             summary.Game,
		PopulationSize:   req.Population,
		Generations:      summary.NextGeneration,
		Seed:             req.Seed,
		FinalBestFitness: summary.FinalBestFitness,
		CreatedAtUTC:     time.Now().UTC().Format(stats.IndexTimeLayout),
	})
	if err != nil {
		return "", err
	}
	return runDir, nil
}

func runFit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fit", flag.ContinueOnError)
	provider := fs.String("provider", "xor", "sample provider: "+strings.Join(training.ProviderNames(), "|"))
	mode := fs.String("mode", "gt", "sample mode: gt|validation|test")
	hidden := fs.String("hidden", "4", "comma separated hidden layer widths")
	activation := fs.String("activation", "sigmoid", "activation: "+strings.Join(nn.ListActivations(), "|"))
	learningRate := fs.Float64("lr", 0.5, "learning rate")
	epochs := fs.Int("epochs", 5000, "training epochs")
	seed := fs.Int64("seed", 1, "rng seed")
	outPath := fs.String("out", "", "optional network output path")
	verbose := fs.Bool("verbose", false, "print MSE after every epoch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	hiddenLayers, err := parseSizes(*hidden)
	if err != nil {
		return err
	}

	client, err := selfplay.New(selfplay.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := selfplay.FitRequest{
		Provider:     *provider,
		Mode:         *mode,
		HiddenLayers: hiddenLayers,
		Activation:   *activation,
		LearningRate: *learningRate,
		Epochs:       *epochs,
		Seed:         *seed,
		OutPath:      *outPath,
	}
	if *verbose {
		req.Report = stdout
	}
	summary, err := client.Fit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "fit completed provider=%s architecture=%s epochs=%s initial_mse=%.6f final_mse=%.6f\n",
		summary.Provider, formatSizes(summary.Architecture), humanize.Comma(int64(summary.Epochs)), summary.InitialMSE, summary.FinalMSE)
	if summary.OutPath != "" {
		fmt.Fprintf(stdout, "network=%s\n", summary.OutPath)
	}
	return nil
}

func runEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	checkpointPath := fs.String("checkpoint", defaultCheckpointPath, "network file to evaluate")
	gameName := fs.String("game", "large", "game: "+strings.Join(game.Names(), "|"))
	hidden := fs.String("hidden", "64", "comma separated hidden layer widths")
	activation := fs.String("activation", "sigmoid", "activation: "+strings.Join(nn.ListActivations(), "|"))
	games := fs.Int("games", 100, "games against a random mover")
	seed := fs.Int64("seed", 1, "rng seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	hiddenLayers, err := parseSizes(*hidden)
	if err != nil {
		return err
	}

	client, err := selfplay.New(selfplay.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Evaluate(ctx, selfplay.EvaluateRequest{
		Game:           *gameName,
		CheckpointPath: *checkpointPath,
		HiddenLayers:   hiddenLayers,
		Activation:     *activation,
		Games:          *games,
		Seed:           *seed,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "evaluated checkpoint=%s game=%s games=%s wins=%d losses=%d draws=%d win_rate=%.3f\n",
		*checkpointPath, *gameName, humanize.Comma(int64(summary.Games)),
		summary.Wins, summary.Losses, summary.Draws, float64(summary.Wins)/float64(summary.Games))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", storage.DefaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := selfplay.New(selfplay.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, selfplay.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s created_at=%q updated=%q game=%s architecture=%s seed=%d pop=%d gens=%d best_fitness=%.6f\n",
			r.ID,
			strftime.Format(timestampLayout, r.CreatedAt),
			humanize.Time(r.UpdatedAt),
			r.Game,
			formatSizes(r.Architecture),
			r.Seed,
			r.PopulationSize,
			r.Generations,
			r.BestFitness,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", storage.DefaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("fitness requires --run-id or --latest")
	}

	client, err := selfplay.New(selfplay.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, selfplay.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  max(*limit, 0),
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintln(stdout, "no fitness history")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for i, best := range history {
		fmt.Fprintf(stdout, "generation=%d best_fitness=%.6f\n", i, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", storage.DefaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("diagnostics requires --run-id or --latest")
	}

	client, err := selfplay.New(selfplay.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, selfplay.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  max(*limit, 0),
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Fprintln(stdout, "no diagnostics")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diagnostics)
	}

	for _, d := range diagnostics {
		fmt.Fprintf(stdout, "generation=%d best_fitness=%.6f mean_fitness=%.6f min_fitness=%.6f mutation_rate=%.6f elapsed_ms=%d\n",
			d.Generation, d.BestFitness, d.MeanFitness, d.MinFitness, d.MutationRate, d.ElapsedMS)
	}
	return nil
}

func runGames(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("games", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := selfplay.New(selfplay.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	names, err := client.Games(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		f, err := game.Lookup(name)
		if err != nil {
			return err
		}
		b := f()
		fmt.Fprintf(stdout, "game=%s board=%dx%d network_io=%d\n", name, b.Rows(), b.Cols(), game.Cells(f))
	}
	return nil
}

func runExport(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recently indexed run")
	outputDir := fs.String("output-dir", defaultOutputDir, "run artifact directory")
	outDir := fs.String("out", "exports", "export destination directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	id := *runID
	if *latest {
		index, err := stats.ListRunIndex(*outputDir)
		if err != nil {
			return err
		}
		if len(index) == 0 {
			return fmt.Errorf("no runs indexed in %s", *outputDir)
		}
		id = index[0].RunID
	}
	cfg, ok, err := stats.ReadRunConfig(*outputDir, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run artifacts not found: %s", id)
	}
	dst, err := stats.ExportRunArtifacts(*outputDir, id, *outDir)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("exported run_id=%s game=%s architecture=%s generations=%d to=%s",
		cfg.RunID, cfg.Game, formatSizes(cfg.Architecture), cfg.Generations, dst)
	if summary, ok, err := stats.ReadFitnessSummary(*outputDir, id); err == nil && ok {
		line += fmt.Sprintf(" final_best=%.6f improvement=%.6f", summary.FinalBest, summary.Improvement)
	}
	fmt.Fprintln(stdout, line)
	return nil
}

// progressPrinter renders generation reports. On a terminal it redraws one
// status line; otherwise it appends one line per generation.
type progressPrinter struct {
	w           io.Writer
	interactive bool
	drawn       bool
}

func newProgressPrinter(w io.Writer, interactive bool) *progressPrinter {
	return &progressPrinter{w: w, interactive: interactive}
}

func (p *progressPrinter) Report(r selfplay.GenerationReport) {
	elapsed := r.Elapsed.Round(time.Millisecond)
	if p.interactive {
		fmt.Fprintf(p.w, "\r\033[Kgeneration %d best=%.3f mean=%.3f min=%.3f rate=%.4f (%s)",
			r.Generation, r.BestFitness, r.MeanFitness, r.MinFitness, r.MutationRate, elapsed)
		p.drawn = true
		return
	}
	fmt.Fprintf(p.w, "generation=%d best_fitness=%.6f mean_fitness=%.6f min_fitness=%.6f mutation_rate=%.6f elapsed=%s\n",
		r.Generation, r.BestFitness, r.MeanFitness, r.MinFitness, r.MutationRate, elapsed)
}

func (p *progressPrinter) Finish() {
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

func isInteractive() bool {
	if stdout != io.Writer(os.Stdout) {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// gamesPerGeneration estimates the games one generation plays.
func gamesPerGeneration(req selfplay.RunRequest) int64 {
	pop, games := int64(req.Population), int64(req.GamesPerGeneration)
	if strings.HasPrefix(strings.ToLower(req.Tournament), "random") {
		return pop * games
	}
	return pop * (pop - 1) * games
}

func formatSizes(sizes []int) string {
	parts := make([]string, len(sizes))
	for i, s := range sizes {
		parts[i] = fmt.Sprint(s)
	}
	return strings.Join(parts, "-")
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: selfplayctl <run|fit|evaluate|runs|fitness|diagnostics|games|export> [flags]", msg)
}
