package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"selfplay/pkg/selfplay"
)

func loadRunRequestFromConfig(path string) (selfplay.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return selfplay.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return selfplay.RunRequest{}, err
	}

	var req selfplay.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["game"]); ok {
		req.Game = v
	}
	if v, present := raw["hidden_layers"]; present {
		sizes, ok := asIntSlice(v)
		if !ok {
			return selfplay.RunRequest{}, fmt.Errorf("hidden_layers must be an array of integers")
		}
		req.HiddenLayers = sizes
	}
	if v, ok := asString(raw["activation"]); ok {
		req.Activation = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt(raw["games_per_generation"]); ok {
		req.GamesPerGeneration = v
	}
	if v, ok := asInt(raw["elite_count"]); ok {
		req.EliteCount = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asString(raw["tournament"]); ok {
		req.Tournament = v
	}
	if v, ok := asString(raw["selection"]); ok {
		req.Selection = v
	}
	if v, ok := asFloat64(raw["mutation_start"]); ok {
		req.MutationStart = v
	}
	if v, ok := asFloat64(raw["mutation_floor"]); ok {
		req.MutationFloor = v
	}
	if v, ok := asInt(raw["checkpoint_every"]); ok {
		req.CheckpointEvery = v
	}
	if v, ok := asString(raw["checkpoint_path"]); ok {
		req.CheckpointPath = v
	}
	if v, ok := asBool(raw["continue"]); ok {
		req.Continue = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func asIntSlice(v any) ([]int, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := asInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// parseSizes reads a comma separated list of layer widths. An empty string
// means no hidden layers.
func parseSizes(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid layer size %q", part)
		}
		if n <= 0 {
			return nil, fmt.Errorf("layer size must be > 0, got %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}

func overrideFromFlags(req *selfplay.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "game":
			req.Game = v.(string)
		case "hidden":
			sizes, err := parseSizes(v.(string))
			if err != nil {
				return err
			}
			req.HiddenLayers = sizes
		case "activation":
			req.Activation = v.(string)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "games":
			req.GamesPerGeneration = v.(int)
		case "elite":
			req.EliteCount = v.(int)
		case "workers":
			req.Workers = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "tournament":
			req.Tournament = v.(string)
		case "selection":
			req.Selection = v.(string)
		case "mutation-start":
			req.MutationStart = v.(float64)
		case "mutation-floor":
			req.MutationFloor = v.(float64)
		case "checkpoint-every":
			req.CheckpointEvery = v.(int)
		case "checkpoint":
			req.CheckpointPath = v.(string)
		case "continue-run":
			runID := v.(string)
			if runID != "" {
				req.RunID = runID
				req.Continue = true
			}
		}
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (selfplay.RunRequest, error) {
	if configPath == "" {
		return selfplay.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return selfplay.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
