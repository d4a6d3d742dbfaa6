// Package app wires the Primus engine together: storage, persona, recall,
// the model client, the agent, and the background autonomy and sleep loops.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bdobrica/Primus/common/spec/profile"
	"github.com/bdobrica/Primus/internal/primus/agent"
	"github.com/bdobrica/Primus/internal/primus/autonomy"
	"github.com/bdobrica/Primus/internal/primus/config"
	"github.com/bdobrica/Primus/internal/primus/emotion"
	"github.com/bdobrica/Primus/internal/primus/llm"
	"github.com/bdobrica/Primus/internal/primus/memory"
	"github.com/bdobrica/Primus/internal/primus/persona"
	"github.com/bdobrica/Primus/internal/primus/store"
)

// DefaultSessionTitle names the session created on first start.
const DefaultSessionTitle = "default"

const messageBuffer = 8

// Message is a proactive message produced by the autonomy loop.
type Message struct {
	SessionID int64
	Text      string
	Action    autonomy.Action
	Reason    string
	TraceID   string
	At        time.Time
}

// Snapshot is the runtime state reported on /status.
type Snapshot struct {
	SessionID       int64
	TurnCount       int
	Consent         bool
	BudgetRemaining int
	Breaker         string
	AutonomyEnabled bool
}

// App is the Primus application.
type App struct {
	cfg    *Config
	logger *slog.Logger

	store    *store.Store
	settings config.Store
	budget   *autonomy.KVBudget
	consent  *autonomy.KVConsent
	critic   autonomy.SimpleCritic
	loop     *autonomy.Loop
	sleep    *memory.SleepConsolidator
	agent    *agent.SelfAgent
	client   *llm.Client
	digest   memory.LightSummarizer
	health   *HealthServer
	messages chan Message

	mu        sync.RWMutex
	sessionID int64
}

// New opens the database and builds every component. Nothing runs until Run.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	if cfg.Profile == nil {
		cfg.Profile = profile.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := cfg.Profile

	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		store:    db,
		settings: config.New(db),
		critic:   autonomy.NewSimpleCritic(),
		digest:   memory.LightSummarizer{MaxChars: p.Summary.MaxChars},
		messages: make(chan Message, messageBuffer),
	}
	if err := a.build(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	p := a.cfg.Profile

	a.budget = autonomy.NewKVBudget(a.settings, config.ErrNotFound, p.Autonomy.InitialBudget)
	a.consent = autonomy.NewKVConsent(a.settings, config.ErrNotFound)

	emo := emotion.Default()
	pers := persona.NewEngine(a.store, emo, a.logger)

	var chat llm.Chatter = llm.Offline{}
	if a.cfg.LLM.APIKey != "" {
		llmCfg := a.cfg.LLM
		llmCfg.Logger = a.logger
		a.client = llm.New(llmCfg)
		chat = a.client
		a.logger.Info("llm configured", "model", a.client.Model())
	} else {
		a.logger.Warn("llm api key not set, replies use the local fallback")
	}

	selector := &memory.Selector{
		Weights: memory.Weights{
			Similarity: p.Selector.Weights.Similarity,
			Jaccard:    p.Selector.Weights.Jaccard,
			Recency:    p.Selector.Weights.Recency,
			Role:       p.Selector.Weights.Role,
			Length:     p.Selector.Weights.Length,
			HalfLife:   p.Selector.HalfLife,
		},
		RoleWeight: roleWeigher(p.Selector.Roles),
	}
	if p.Selector.Debug {
		selector.Logger = a.logger
	}

	goals := autonomy.NewGoalEngine(a.store, a.store, a.logger)
	ag, err := agent.New(agent.Config{
		AgentName:  p.Agent.Name,
		K:          p.Selector.K,
		Threshold:  p.Selector.Threshold,
		Candidates: p.Selector.Candidates,
		MaxTokens:  p.LLM.MaxTokens,
	}, agent.Deps{
		Store:      a.store,
		Persona:    pers,
		LLM:        chat,
		Emotion:    emo,
		Selector:   selector,
		Summarizer: memory.NewAutoSummarizer(a.store, p.Summary.Threshold, p.Summary.Window, a.logger),
		Goals:      goals,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.agent = ag
	if err := ag.LoadPersona(ctx); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	var planner autonomy.Planner
	switch p.Autonomy.Planner {
	case profile.PlannerSimple:
		planner = autonomy.SimplePlanner{Budget: a.budget}
	default:
		planner = autonomy.NewAdvancedPlanner(a.store, a.store, p.Autonomy.IdleThreshold)
	}
	a.loop = autonomy.NewLoop(a.consent, a.budget, planner, a.critic, autonomy.LoopConfig{
		Interval: p.Autonomy.Interval,
		Cooldown: p.Autonomy.Cooldown,
		Logger:   a.logger,
	})
	a.sleep = memory.NewSleepConsolidator(a.store, p.Summary.SleepMinTurns, a.logger)

	sess, err := a.store.EnsureSession(ctx, DefaultSessionTitle)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.sessionID = sess.ID

	if a.cfg.HTTPAddr != "" {
		a.health = NewHealthServer(a.cfg.HTTPAddr, a)
	}
	return nil
}

// roleWeigher converts the profile's role table. Keys are parsed with
// memory.ParseRole, so "assistant" and "ai" both name the AI role.
func roleWeigher(table map[string]float64) memory.RoleWeigher {
	if len(table) == 0 {
		return memory.DefaultRoleWeigher
	}
	roles := make(map[memory.Role]float64, len(table))
	for name, w := range table {
		roles[memory.ParseRole(name)] = w
	}
	return memory.RoleWeights(roles)
}

// Run starts the background loops and blocks until ctx is cancelled. The
// disposition is saved before returning.
func (a *App) Run(ctx context.Context) error {
	if a.health != nil {
		if err := a.health.Start(ctx); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Profile.Autonomy.Enabled {
		g.Go(func() error {
			a.loop.Run(gctx)
			return nil
		})
		g.Go(func() error {
			return a.consumeEvents(gctx)
		})
	} else {
		a.logger.Info("autonomy loop disabled")
	}
	g.Go(func() error {
		a.sleep.Run(gctx, a.cfg.SleepInterval)
		return nil
	})

	a.logger.Info("primus running",
		"session_id", a.SessionID(),
		"planner", a.cfg.Profile.Autonomy.Planner,
		"interval", a.cfg.Profile.Autonomy.Interval,
	)
	err := g.Wait()

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := a.agent.SavePersona(saveCtx); serr != nil {
		a.logger.Warn("save persona on shutdown failed", "err", serr)
	}
	return err
}

func (a *App) consumeEvents(ctx context.Context) error {
	events := a.loop.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			a.handleEvent(ctx, ev)
		}
	}
}

// handleEvent turns a loop event into a proactive message and hands it to
// Messages. Messages nobody reads are dropped once the buffer is full.
func (a *App) handleEvent(ctx context.Context, ev autonomy.Event) {
	sessionID := a.SessionID()
	text, ok, err := a.agent.Proactive(ctx, sessionID, ev)
	if err != nil {
		a.logger.Warn("proactive message failed", "trace_id", ev.TraceID, "err", err)
		return
	}
	if !ok {
		return
	}
	msg := Message{
		SessionID: sessionID,
		Text:      text,
		Action:    ev.Plan.Action,
		Reason:    ev.Plan.Reason,
		TraceID:   ev.TraceID,
		At:        ev.At,
	}
	select {
	case a.messages <- msg:
	default:
		a.logger.Warn("proactive message dropped, reader is not keeping up", "trace_id", ev.TraceID)
	}
}

// DeliverPending handles loop events that are already queued without
// waiting for new ones. It returns how many were handled.
func (a *App) DeliverPending(ctx context.Context) int {
	events := a.loop.Events()
	n := 0
	for {
		select {
		case ev := <-events:
			a.handleEvent(ctx, ev)
			n++
		default:
			return n
		}
	}
}

// Messages delivers proactive messages. The channel is never closed.
func (a *App) Messages() <-chan Message { return a.messages }

// Close saves the disposition and closes the database.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.agent.SavePersona(ctx); err != nil {
		a.logger.Warn("save persona failed", "err", err)
	}
	if a.health != nil {
		a.health.Stop()
	}
	return a.store.Close()
}

// SessionID returns the active session.
func (a *App) SessionID() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

// NewSession starts a fresh conversation and makes it active.
func (a *App) NewSession(ctx context.Context, title string) (int64, error) {
	if strings.TrimSpace(title) == "" {
		title = time.Now().Format(time.DateTime)
	}
	sess, err := a.store.CreateSession(ctx, title)
	if err != nil {
		return 0, fmt.Errorf("app: new session: %w", err)
	}
	a.mu.Lock()
	a.sessionID = sess.ID
	a.mu.Unlock()
	a.logger.Info("session started", "session_id", sess.ID, "title", title)
	return sess.ID, nil
}

// Respond answers one user turn in the active session.
func (a *App) Respond(ctx context.Context, text string) (agent.FinalOutput, error) {
	return a.agent.Respond(ctx, agent.UserInput{SessionID: a.SessionID(), Text: text})
}

// Digest returns a short summary of the active session's recent turns.
func (a *App) Digest(ctx context.Context) (string, error) {
	turns, err := a.store.ListRecentTurns(ctx, a.SessionID(), a.cfg.Profile.Summary.Window)
	if err != nil {
		return "", fmt.Errorf("app: digest: %w", err)
	}
	return a.digest.Summarize(turns), nil
}

// SetConsent records whether the agent may speak unprompted.
func (a *App) SetConsent(ctx context.Context, allowed bool) error {
	if err := a.consent.Set(ctx, allowed); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.logger.Info("autonomy consent changed", "allowed", allowed)
	return nil
}

// ResetBudget sets the remaining autonomy budget to n.
func (a *App) ResetBudget(ctx context.Context, n int) error {
	if err := a.budget.Reset(ctx, n); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.logger.Info("autonomy budget reset", "remaining", n)
	return nil
}

// Feedback scores a thumbs up or down on the last reply.
func (a *App) Feedback(up bool) autonomy.Reward {
	r := a.critic.Log(autonomy.Thumb(up))
	a.logger.Info("feedback", "up", up, "reward", r.Value)
	return r
}

// Tick runs one autonomy check immediately, regardless of whether the
// background loop is enabled.
func (a *App) Tick(ctx context.Context) (autonomy.TickResult, error) {
	return a.loop.Tick(ctx)
}

// Snapshot reports the runtime state. Individual lookups that fail leave
// their field at its zero value.
func (a *App) Snapshot(ctx context.Context) Snapshot {
	s := Snapshot{
		SessionID:       a.SessionID(),
		Breaker:         "offline",
		AutonomyEnabled: a.cfg.Profile.Autonomy.Enabled,
	}
	if n, err := a.store.TurnCount(ctx); err == nil {
		s.TurnCount = n
	}
	if ok, err := a.consent.IsAllowed(ctx); err == nil {
		s.Consent = ok
	}
	if n, err := a.budget.Remaining(ctx); err == nil {
		s.BudgetRemaining = n
	}
	if a.client != nil {
		s.Breaker = a.client.BreakerState()
	}
	return s
}
