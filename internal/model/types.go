package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one evolutionary run and the configuration it used.
type RunRecord struct {
	VersionedRecord
	ID                 string    `json:"id"`
	Game               string    `json:"game"`
	Architecture       []int     `json:"architecture"`
	Activation         string    `json:"activation"`
	PopulationSize     int       `json:"population_size"`
	EliteCount         int       `json:"elite_count"`
	GamesPerGeneration int       `json:"games_per_generation"`
	Tournament         string    `json:"tournament"`
	Selection          string    `json:"selection"`
	MutationStart      float64   `json:"mutation_start"`
	MutationFloor      float64   `json:"mutation_floor"`
	Seed               int64     `json:"seed"`
	Generations        int       `json:"generations"`
	BestFitness        float64   `json:"best_fitness"`
	CheckpointPath     string    `json:"checkpoint_path,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PopulationSnapshot is an arena ready to resume from. Members hold networks
// in the raw network file format.
type PopulationSnapshot struct {
	VersionedRecord
	RunID          string   `json:"run_id"`
	Architecture   []int    `json:"architecture"`
	Activation     string   `json:"activation"`
	NextGeneration int      `json:"next_generation"`
	Members        [][]byte `json:"members"`
}

type GenerationDiagnostics struct {
	Generation   int     `json:"generation"`
	BestFitness  float64 `json:"best_fitness"`
	MeanFitness  float64 `json:"mean_fitness"`
	MinFitness   float64 `json:"min_fitness"`
	MutationRate float64 `json:"mutation_rate"`
	ElapsedMS    int64   `json:"elapsed_ms"`
}
