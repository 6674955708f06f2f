package stats

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"selfplay/internal/model"
)

func testArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:              runID,
			Game:               "classic",
			Architecture:       []int{9, 6, 9},
			Activation:         "sigmoid",
			PopulationSize:     4,
			Generations:        3,
			GamesPerGeneration: 1,
			EliteCount:         2,
			Seed:               1,
		},
		BestByGeneration: []float64{2, 4, 6},
		GenerationDiagnostics: []model.GenerationDiagnostics{
			{Generation: 0, BestFitness: 2},
			{Generation: 1, BestFitness: 4},
			{Generation: 2, BestFitness: 6},
		},
		FinalBestFitness: 6,
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runDir, err := WriteRunArtifacts(baseDir, testArtifacts("run-123"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	files := []string{configFile, fitnessHistoryFile, diagnosticsFile, summaryFile, seriesFile}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(outDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read exported config: ok=%t err=%v", ok, err)
	}
	if cfg.Game != "classic" || len(cfg.Architecture) != 3 || cfg.Architecture[1] != 6 {
		t.Fatalf("unexpected exported config: %+v", cfg)
	}

	series, ok, err := ReadFitnessSeries(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%t err=%v", ok, err)
	}
	if len(series) != 3 || series[2] != 6 {
		t.Fatalf("unexpected series: %v", series)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); !errors.Is(err, ErrRunIDRequired) {
		t.Fatalf("expected ErrRunIDRequired, got %v", err)
	}
	if err := AppendRunIndex(t.TempDir(), RunIndexEntry{}); !errors.Is(err, ErrRunIDRequired) {
		t.Fatalf("expected ErrRunIDRequired, got %v", err)
	}
	if _, err := ExportRunArtifacts(t.TempDir(), "missing", t.TempDir()); err == nil {
		t.Fatal("expected missing run directory error")
	}
}

func TestReadMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	if _, ok, err := ReadRunConfig(dir, "nope"); ok || err != nil {
		t.Fatalf("expected missing config, got ok=%t err=%v", ok, err)
	}
	if _, ok, err := ReadFitnessSeries(dir, "nope"); ok || err != nil {
		t.Fatalf("expected missing series, got ok=%t err=%v", ok, err)
	}
	if _, ok, err := ReadFitnessSummary(dir, "nope"); ok || err != nil {
		t.Fatalf("expected missing summary, got ok=%t err=%v", ok, err)
	}
}

func TestRunIndexOrderingAndReplace(t *testing.T) {
	dir := t.TempDir()
	entries := []RunIndexEntry{
		{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00.000000000Z"},
		{RunID: "b", CreatedAtUTC: "2026-01-03T00:00:00.000000000Z"},
		{RunID: "c", CreatedAtUTC: "2026-01-03T00:00:00.000000000Z"},
		{RunID: "d", CreatedAtUTC: "2026-01-02T00:00:00.000000000Z"},
	}
	for _, e := range entries {
		if err := AppendRunIndex(dir, e); err != nil {
			t.Fatalf("append %s: %v", e.RunID, err)
		}
	}

	index, err := ListRunIndex(dir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	got := make([]string, len(index))
	for i, e := range index {
		got[i] = e.RunID
	}
	want := []string{"c", "b", "d", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected index order: got=%v want=%v", got, want)
		}
	}

	if err := AppendRunIndex(dir, RunIndexEntry{RunID: "a", FinalBestFitness: 9, CreatedAtUTC: "2026-01-04T00:00:00.000000000Z"}); err != nil {
		t.Fatalf("replace a: %v", err)
	}
	index, err = ListRunIndex(dir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 4 || index[0].RunID != "a" || index[0].FinalBestFitness != 9 {
		t.Fatalf("expected replaced entry first, got %+v", index)
	}
}

func TestSummarizeFitness(t *testing.T) {
	s := SummarizeFitness("r", []float64{2, 4, 6})
	if s.InitialBest != 2 || s.FinalBest != 6 || s.BestMax != 6 || s.BestMin != 2 || s.Improvement != 4 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.BestMean != 4 || math.Abs(s.BestStd-2) > 1e-12 {
		t.Fatalf("unexpected mean/std: %+v", s)
	}
	if empty := SummarizeFitness("r", nil); empty.Generations != 0 || empty.BestMax != 0 {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
	if single := SummarizeFitness("r", []float64{3}); single.BestMean != 3 || single.BestStd != 0 {
		t.Fatalf("unexpected single summary: %+v", single)
	}
}
