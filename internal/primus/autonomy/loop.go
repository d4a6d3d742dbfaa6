package autonomy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bdobrica/Primus/common/trace"
)

// Loop defaults.
const (
	DefaultInterval    = time.Minute
	DefaultCooldown    = 30 * time.Second
	defaultEventBuffer = 8
)

// Clock is time.Now and time.After, swappable in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// LoopConfig tunes a Loop. Zero values select the defaults.
type LoopConfig struct {
	Interval    time.Duration
	Cooldown    time.Duration
	Clock       Clock
	Logger      *slog.Logger
	EventBuffer int
}

// Event is published for every tick that reached the planner.
type Event struct {
	TraceID string
	Plan    Plan
	Result  ExecResult
	Reward  Reward
	At      time.Time
}

// TickResult describes one tick. Skip is empty when the planner was asked.
type TickResult struct {
	Skip   string
	Plan   Plan
	Result ExecResult
	Reward Reward
}

// Skip reasons.
const (
	SkipNoConsent = "consent=off"
	SkipNoBudget  = "budget exhausted"
	SkipCooldown  = "cooldown"
)

// Skipped reports whether the tick stopped before planning.
func (r TickResult) Skipped() bool { return r.Skip != "" }

// Loop runs the autonomy state machine on a fixed interval.
type Loop struct {
	consent ConsentGate
	budget  Budget
	planner Planner
	critic  Critic

	interval time.Duration
	cooldown time.Duration
	clock    Clock
	logger   *slog.Logger
	events   chan Event

	tickMu      sync.Mutex
	lastFiredAt time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop wires a loop. Nothing runs until Start or Run.
func NewLoop(consent ConsentGate, budget Budget, planner Planner, critic Critic, cfg LoopConfig) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	return &Loop{
		consent:  consent,
		budget:   budget,
		planner:  planner,
		critic:   critic,
		interval: cfg.Interval,
		cooldown: cfg.Cooldown,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		events:   make(chan Event, cfg.EventBuffer),
	}
}

// Events returns the channel decisions are published on. It is never closed.
// When the consumer falls behind, events are dropped.
func (l *Loop) Events() <-chan Event { return l.events }

// Tick runs one evaluation: consent, budget, cooldown, plan, execute,
// consume, record cooldown, critic, publish. A gate that says no yields a
// skipped result and a nil error.
func (l *Loop) Tick(ctx context.Context) (TickResult, error) {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	ctx, traceID := trace.Ensure(ctx)
	log := l.logger.With("trace_id", traceID)

	allowed, err := l.consent.IsAllowed(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("autonomy: consent: %w", err)
	}
	if !allowed {
		log.Debug("autonomy: skip", "reason", SkipNoConsent)
		return TickResult{Skip: SkipNoConsent}, nil
	}

	ok, err := l.budget.Check(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("autonomy: budget: %w", err)
	}
	if !ok {
		log.Debug("autonomy: skip", "reason", SkipNoBudget)
		return TickResult{Skip: SkipNoBudget}, nil
	}

	now := l.clock.Now()
	if !l.lastFiredAt.IsZero() && now.Sub(l.lastFiredAt) < l.cooldown {
		log.Debug("autonomy: skip", "reason", SkipCooldown)
		return TickResult{Skip: SkipCooldown}, nil
	}

	plan, err := l.planner.Next(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("autonomy: plan: %w", err)
	}
	log.Info("autonomy: planned", "action", plan.Action, "cost", plan.Cost, "reason", plan.Reason)

	res := execute(plan)
	if err := l.budget.Consume(ctx, plan.Cost); err != nil {
		return TickResult{}, fmt.Errorf("autonomy: consume: %w", err)
	}
	l.lastFiredAt = now

	reward := l.critic.Log(AutoTriggered(plan, res))
	log.Info("autonomy: critic", "reward", reward.Value, "detail", reward.Detail)

	ev := Event{TraceID: traceID, Plan: plan, Result: res, Reward: reward, At: now}
	select {
	case l.events <- ev:
	default:
		log.Warn("autonomy: event dropped, consumer is slow", "action", plan.Action)
	}
	return TickResult{Plan: plan, Result: res, Reward: reward}, nil
}

// Run ticks immediately and then once per interval until ctx is cancelled.
// Tick errors and panics are logged and the loop carries on.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("autonomy: loop started", "interval", l.interval, "cooldown", l.cooldown)
	defer l.logger.Info("autonomy: loop stopped")
	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.safeTick(ctx); err != nil && ctx.Err() == nil {
			l.logger.Warn("autonomy: tick failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-l.clock.After(l.interval):
		}
	}
}

// safeTick runs Tick and turns a panic in a collaborator into an error.
func (l *Loop) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("autonomy: tick panicked: %v", r)
		}
	}()
	_, err = l.Tick(ctx)
	return err
}

// Start runs the loop in a goroutine. Calling Start on a running loop does
// nothing.
func (l *Loop) Start(ctx context.Context) {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel, l.done = cancel, done
	go func() {
		defer close(done)
		l.Run(ctx)
	}()
}

// Stop cancels the loop and waits for its goroutine to exit. Safe to call
// multiple times or on a loop that was never started.
func (l *Loop) Stop() {
	l.runMu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether Start has been called without a matching Stop.
func (l *Loop) Running() bool {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.cancel != nil
}
