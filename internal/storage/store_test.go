package storage

import (
	"context"
	"testing"
	"time"

	"selfplay/internal/model"
)

func testRun(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord:    CurrentVersion(),
		ID:                 id,
		Game:               "large",
		Architecture:       []int{25, 16, 25},
		Activation:         "sigmoid",
		PopulationSize:     8,
		EliteCount:         2,
		GamesPerGeneration: 3,
		Tournament:         "all-vs-all",
		Selection:          "elite",
		MutationStart:      0.2,
		MutationFloor:      0.01,
		Seed:               7,
		Generations:        5,
		BestFitness:        12.5,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

// exerciseStore runs the shared contract every backend must satisfy. store
// must already be initialized.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := testRun("run-a", base)
	newer := testRun("run-b", base.Add(time.Hour))
	for _, run := range []model.RunRecord{older, newer} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	loaded, ok, err := store.GetRun(ctx, "run-a")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected run-a")
	}
	if loaded.Game != "large" || len(loaded.Architecture) != 3 || loaded.Architecture[1] != 16 {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}
	if !loaded.CreatedAt.Equal(base) {
		t.Fatalf("created at mismatch: %s", loaded.CreatedAt)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}

	updated := older
	updated.Generations = 9
	if err := store.SaveRun(ctx, updated); err != nil {
		t.Fatalf("update run: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-b" || runs[1].ID != "run-a" {
		t.Fatalf("unexpected run order: %+v", runs)
	}
	if runs[1].Generations != 9 {
		t.Fatalf("expected updated run, got %+v", runs[1])
	}

	history := []float64{1, 2.5, 3}
	if err := store.SaveFitnessHistory(ctx, "run-a", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history[0] = 99
	gotHistory, ok, err := store.GetFitnessHistory(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if len(gotHistory) != 3 || gotHistory[0] != 1 || gotHistory[1] != 2.5 {
		t.Fatalf("unexpected history: %v", gotHistory)
	}
	if _, ok, err := store.GetFitnessHistory(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing history, ok=%t err=%v", ok, err)
	}

	diagnostics := []model.GenerationDiagnostics{
		{Generation: 0, BestFitness: 3, MeanFitness: 1.5, MinFitness: 0, MutationRate: 0.2, ElapsedMS: 12},
		{Generation: 1, BestFitness: 4, MeanFitness: 2, MinFitness: 1, MutationRate: 0.1, ElapsedMS: 10},
	}
	if err := store.SaveGenerationDiagnostics(ctx, "run-a", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	gotDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get diagnostics: ok=%t err=%v", ok, err)
	}
	if len(gotDiagnostics) != 2 || gotDiagnostics[1] != diagnostics[1] {
		t.Fatalf("unexpected diagnostics: %+v", gotDiagnostics)
	}

	snapshot := model.PopulationSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-a",
		Architecture:    []int{2, 2},
		Activation:      "tanh",
		NextGeneration:  4,
		Members:         [][]byte{{1, 2, 3}, {4, 5}},
	}
	if err := store.SavePopulation(ctx, snapshot); err != nil {
		t.Fatalf("save population: %v", err)
	}
	snapshot.Members[0][0] = 42
	gotSnapshot, ok, err := store.GetPopulation(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get population: ok=%t err=%v", ok, err)
	}
	if gotSnapshot.NextGeneration != 4 || len(gotSnapshot.Members) != 2 || gotSnapshot.Members[0][0] != 1 {
		t.Fatalf("unexpected snapshot: %+v", gotSnapshot)
	}
	if _, ok, err := store.GetPopulation(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing population, ok=%t err=%v", ok, err)
	}
}
