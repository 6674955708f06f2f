package storage

import (
	"errors"
	"testing"
	"time"

	"selfplay/internal/model"
)

func TestDecodeRunRejectsVersionMismatch(t *testing.T) {
	run := testRun("r1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	run.SchemaVersion = CurrentSchemaVersion + 1
	payload, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(payload); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestDecodePopulationKeepsMemberBytes(t *testing.T) {
	snapshot := model.PopulationSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           "r1",
		Architecture:    []int{9, 9},
		Activation:      "relu",
		NextGeneration:  2,
		Members:         [][]byte{{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}},
	}
	payload, err := EncodePopulation(snapshot)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodePopulation(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Members) != 1 || len(decoded.Members[0]) != 8 || decoded.Members[0][7] != 0x3f {
		t.Fatalf("member bytes changed: %v", decoded.Members)
	}

	snapshot.CodecVersion = 0
	payload, err = EncodePopulation(snapshot)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodePopulation(payload); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeRun([]byte("{")); err == nil {
		t.Fatal("expected run decode error")
	}
	if _, err := DecodeFitnessHistory([]byte("[1,")); err == nil {
		t.Fatal("expected history decode error")
	}
	if _, err := DecodeGenerationDiagnostics([]byte("nope")); err == nil {
		t.Fatal("expected diagnostics decode error")
	}
}
