// Package profile defines the Primus engine profile: an optional YAML
// document that tunes recall scoring, autonomy pacing, and summarisation
// without recompiling. Every field has a built-in default (see Default), so a
// profile only needs to name the knobs it changes.
//
// Example:
//
//	apiVersion: primus/v1
//	agent:
//	  name: Primus
//	selector:
//	  k: 5
//	  threshold: 0.1
//	  halfLife: 24h
//	autonomy:
//	  interval: 1m
//	  cooldown: 30s
//	  planner: advanced
package profile

import "time"

// SpecVersion is the only accepted apiVersion.
const SpecVersion = "primus/v1"

// Planner names accepted in autonomy.planner.
const (
	PlannerSimple   = "simple"
	PlannerAdvanced = "advanced"
)

// Profile is the top-level document.
type Profile struct {
	APIVersion string   `yaml:"apiVersion"`
	Agent      Agent    `yaml:"agent"`
	Selector   Selector `yaml:"selector"`
	Autonomy   Autonomy `yaml:"autonomy"`
	Summary    Summary  `yaml:"summary"`
	LLM        LLM      `yaml:"llm"`
}

// Agent holds identity defaults. A stored "primus_name" belief overrides Name.
type Agent struct {
	Name string `yaml:"name"`
}

// Selector tunes the memory selector.
type Selector struct {
	K         int           `yaml:"k"`
	Threshold float64       `yaml:"threshold"`
	HalfLife  time.Duration `yaml:"halfLife"`
	// Candidates is how many recent turns are fetched as recall candidates.
	Candidates int                `yaml:"candidates"`
	Weights    Weights            `yaml:"weights"`
	Roles      map[string]float64 `yaml:"roles"`
	Debug      bool               `yaml:"debug"`
}

// Weights are the linear coefficients of the recall score.
type Weights struct {
	Similarity float64 `yaml:"similarity"`
	Jaccard    float64 `yaml:"jaccard"`
	Recency    float64 `yaml:"recency"`
	Role       float64 `yaml:"role"`
	Length     float64 `yaml:"length"`
}

// Autonomy paces the proactive check-in loop.
type Autonomy struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	Cooldown      time.Duration `yaml:"cooldown"`
	IdleThreshold time.Duration `yaml:"idleThreshold"`
	InitialBudget int           `yaml:"initialBudget"`
	Planner       string        `yaml:"planner"`
}

// Summary configures rolling and nightly summarisation.
type Summary struct {
	Threshold     int `yaml:"threshold"`
	Window        int `yaml:"window"`
	MaxChars      int `yaml:"maxChars"`
	SleepMinTurns int `yaml:"sleepMinTurns"`
}

// LLM holds per-call generation limits.
type LLM struct {
	MaxTokens int `yaml:"maxTokens"`
	// RequestsPerMinute throttles outgoing chat calls; 0 disables throttling.
	RequestsPerMinute int `yaml:"requestsPerMinute"`
}

// Default returns the built-in profile.
func Default() *Profile {
	return &Profile{
		APIVersion: SpecVersion,
		Agent:      Agent{Name: "Primus"},
		Selector: Selector{
			K:          5,
			Threshold:  0.1,
			HalfLife:   24 * time.Hour,
			Candidates: 200,
			Weights: Weights{
				Similarity: 0.55,
				Jaccard:    0.15,
				Recency:    0.18,
				Role:       0.08,
				Length:     0.04,
			},
			Roles: map[string]float64{
				"SUMMARY": 1.0,
				"META":    0.7,
				"USER":    0.5,
				"AI":      0.4,
			},
		},
		Autonomy: Autonomy{
			Enabled:       true,
			Interval:      time.Minute,
			Cooldown:      30 * time.Second,
			IdleThreshold: 5 * time.Minute,
			InitialBudget: 10,
			Planner:       PlannerAdvanced,
		},
		Summary: Summary{
			Threshold:     15,
			Window:        80,
			MaxChars:      280,
			SleepMinTurns: 20,
		},
		LLM: LLM{
			MaxTokens:         80,
			RequestsPerMinute: 20,
		},
	}
}
