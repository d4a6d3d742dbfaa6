// Package persona owns the agent's slow-moving disposition: energy, warmth,
// and empathy, each in [0,1]. The Engine is the only writer; every other
// component reads a snapshot through Current.
package persona

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bdobrica/Primus/internal/primus/emotion"
	"github.com/bdobrica/Primus/internal/primus/learn"
)

// Nudge sizes applied by AnalyzeAndUpdate.
const (
	PositiveWarmth = 0.005
	NegativeWarmth = -0.01
	LikeWarmth     = 0.01
	LikeEmpathy    = 0.005
)

// Disposition is the persistent personality tendency.
type Disposition struct {
	Energy  float64
	Warmth  float64
	Empathy float64
}

// DefaultDisposition is the neutral starting point.
func DefaultDisposition() Disposition {
	return Disposition{Energy: 0.5, Warmth: 0.5, Empathy: 0.5}
}

// Clamped returns d with every component forced into [0,1].
func (d Disposition) Clamped() Disposition {
	return Disposition{Energy: clamp01(d.Energy), Warmth: clamp01(d.Warmth), Empathy: clamp01(d.Empathy)}
}

// Repository persists the single disposition record.
type Repository interface {
	// GetPersonality returns nil, nil when nothing has been stored yet.
	GetPersonality(ctx context.Context) (*Disposition, error)
	SavePersonality(ctx context.Context, d Disposition) error
}

// Engine holds the live disposition and nudges it after each exchange.
// Updates are serialised so a proactive message and a user reply racing each
// other cannot lose a nudge.
type Engine struct {
	repo    Repository
	emotion *emotion.Engine
	logger  *slog.Logger

	mu    sync.Mutex
	state Disposition
}

// NewEngine creates an Engine starting from DefaultDisposition. If emo is
// nil the default keyword lists are used; if logger is nil, the default slog
// logger is used.
func NewEngine(repo Repository, emo *emotion.Engine, logger *slog.Logger) *Engine {
	if emo == nil {
		emo = emotion.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{repo: repo, emotion: emo, logger: logger, state: DefaultDisposition()}
}

// Load replaces the live disposition with the stored one. When nothing is
// stored yet the current value is persisted instead.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	saved, err := e.repo.GetPersonality(ctx)
	if err != nil {
		return fmt.Errorf("persona: load: %w", err)
	}
	if saved == nil {
		if err := e.repo.SavePersonality(ctx, e.state); err != nil {
			return fmt.Errorf("persona: save default: %w", err)
		}
	} else {
		e.state = saved.Clamped()
	}
	e.logger.Info("persona loaded",
		"energy", e.state.Energy,
		"warmth", e.state.Warmth,
		"empathy", e.state.Empathy,
		"stored", saved != nil,
	)
	return nil
}

// Save persists the live disposition. Callers decide when; AnalyzeAndUpdate
// never saves on its own.
func (e *Engine) Save(ctx context.Context) error {
	d := e.Current()
	if err := e.repo.SavePersonality(ctx, d); err != nil {
		return fmt.Errorf("persona: save: %w", err)
	}
	e.logger.Info("persona saved", "energy", d.Energy, "warmth", d.Warmth, "empathy", d.Empathy)
	return nil
}

// Current returns a snapshot of the live disposition.
func (e *Engine) Current() Disposition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// AnalyzeAndUpdate nudges the disposition after one exchange and returns the
// emotion reading of the exchange:
//
//   - any positive keyword in input or reply: warmth +0.005
//   - any negative keyword: warmth -0.01
//   - a stated preference in the report: warmth +0.01, empathy +0.005
//
// Every step is clamped to [0,1].
func (e *Engine) AnalyzeAndUpdate(input, reply string, report learn.Report) emotion.State {
	pos, neg := e.emotion.Hits(input, reply)

	e.mu.Lock()
	before := e.state
	d := before
	if pos > 0 {
		d.Warmth = step(d.Warmth, PositiveWarmth)
	}
	if neg > 0 {
		d.Warmth = step(d.Warmth, NegativeWarmth)
	}
	if report.HasLike() {
		d.Warmth = step(d.Warmth, LikeWarmth)
		d.Empathy = step(d.Empathy, LikeEmpathy)
	}
	e.state = d
	e.mu.Unlock()

	if d != before {
		e.logger.Debug("persona updated", "warmth", d.Warmth, "empathy", d.Empathy, "pos", pos, "neg", neg)
	}
	return e.emotion.Appraise(input+"\n"+reply, report)
}

func step(cur, delta float64) float64 {
	return clamp01(cur + delta)
}

func clamp01(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
