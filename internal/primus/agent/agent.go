// Package agent runs one Primus turn end to end: it learns from the user's
// text, classifies it, recalls relevant memories, asks the model for a reply
// or composes one locally, updates the disposition, and persists the
// exchange. It also turns autonomy decisions into proactive messages.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bdobrica/Primus/common/trace"
	"github.com/bdobrica/Primus/internal/primus/autonomy"
	"github.com/bdobrica/Primus/internal/primus/dialogue"
	"github.com/bdobrica/Primus/internal/primus/emotion"
	"github.com/bdobrica/Primus/internal/primus/learn"
	"github.com/bdobrica/Primus/internal/primus/llm"
	"github.com/bdobrica/Primus/internal/primus/memory"
	"github.com/bdobrica/Primus/internal/primus/observability"
	"github.com/bdobrica/Primus/internal/primus/persona"
	"github.com/bdobrica/Primus/internal/primus/reason"
	"github.com/bdobrica/Primus/internal/primus/respond"
)

// NameBeliefKey is the belief that overrides the agent's name.
const NameBeliefKey = "primus_name"

// Store is the persistence the agent needs.
type Store interface {
	memory.Repository
	autonomy.BeliefSource
	autonomy.GoalRepository
	UpsertBelief(ctx context.Context, key, value string) error
	UpdateGoalStatus(ctx context.Context, id int64, status autonomy.GoalStatus) error
}

// Config tunes recall and generation. Zero values select defaults.
type Config struct {
	AgentName string
	// K and Threshold are passed to the memory selector.
	K         int
	Threshold float64
	// Candidates is how many recent turns are scored for recall.
	Candidates int
	// HistoryWindow is how many turns of the session are shown to the model
	// when the caller supplies no history.
	HistoryWindow int
	MaxTokens     int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.AgentName) == "" {
		c.AgentName = dialogue.DefaultAgentName
	}
	if c.K <= 0 {
		c.K = 5
	}
	if c.Threshold <= 0 {
		c.Threshold = 0.1
	}
	if c.Candidates <= 0 {
		c.Candidates = 200
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 20
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 80
	}
	return c
}

// Deps are the collaborators of a SelfAgent. Store, Persona, and LLM are
// required; the rest default to stock implementations or are skipped.
type Deps struct {
	Store    Store
	Persona  *persona.Engine
	LLM      llm.Chatter
	Emotion  *emotion.Engine
	Selector *memory.Selector
	// Summarizer, when set, runs after every persisted exchange.
	Summarizer *memory.AutoSummarizer
	// Goals, when set, runs whenever a turn teaches a new preference.
	Goals  *autonomy.GoalEngine
	Logger *slog.Logger
}

// UserInput is one user turn.
type UserInput struct {
	// SessionID is the conversation the turn belongs to. Zero means the
	// turn is not persisted and no history is loaded.
	SessionID int64
	Text      string
	// History, when non-nil, replaces the stored history. It must end with
	// the current user turn.
	History []memory.Turn
}

// FinalOutput is the result of one turn.
type FinalOutput struct {
	Text              string
	SelectedMemoryIDs []int64
	// Disposition is the state after this turn's update.
	Disposition persona.Disposition
	// Emotion is the appraisal of the user's text.
	Emotion  emotion.State
	Intent   reason.Intent
	Strategy dialogue.Strategy
	TraceID  string
}

// SelfAgent answers user turns. Turns of the same session are processed one
// at a time; different sessions run concurrently.
type SelfAgent struct {
	cfg        Config
	store      Store
	persona    *persona.Engine
	chat       llm.Chatter
	emotion    *emotion.Engine
	selector   *memory.Selector
	summarizer *memory.AutoSummarizer
	goals      *autonomy.GoalEngine
	reasoner   *reason.Reasoner
	responder  respond.Engine
	logger     *slog.Logger

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// New creates a SelfAgent.
func New(cfg Config, deps Deps) (*SelfAgent, error) {
	if deps.Store == nil || deps.Persona == nil || deps.LLM == nil {
		return nil, errors.New("agent: store, persona and llm are required")
	}
	if deps.Emotion == nil {
		deps.Emotion = emotion.Default()
	}
	if deps.Selector == nil {
		deps.Selector = memory.NewSelector()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &SelfAgent{
		cfg:        cfg.withDefaults(),
		store:      deps.Store,
		persona:    deps.Persona,
		chat:       deps.LLM,
		emotion:    deps.Emotion,
		selector:   deps.Selector,
		summarizer: deps.Summarizer,
		goals:      deps.Goals,
		reasoner:   &reason.Reasoner{Logger: deps.Logger},
		logger:     deps.Logger,
		locks:      make(map[int64]*sync.Mutex),
	}, nil
}

// LoadPersona restores the stored disposition.
func (a *SelfAgent) LoadPersona(ctx context.Context) error { return a.persona.Load(ctx) }

// SavePersona persists the live disposition.
func (a *SelfAgent) SavePersona(ctx context.Context) error { return a.persona.Save(ctx) }

// Respond processes one user turn. Storage and model failures degrade the
// reply rather than fail it; an error is returned only when ctx is already
// done.
func (a *SelfAgent) Respond(ctx context.Context, in UserInput) (FinalOutput, error) {
	if err := ctx.Err(); err != nil {
		return FinalOutput{}, fmt.Errorf("agent: respond: %w", err)
	}
	ctx, traceID := trace.Ensure(ctx)
	log := observability.WithTrace(ctx, a.logger)

	unlock := a.lockSession(in.SessionID)
	defer unlock()

	text := in.Text
	report := learn.Observe(text)
	emo := a.emotion.Appraise(text, report)
	res := a.reasoner.Reason(text)
	log.Info("agent: turn classified", "session_id", in.SessionID, "intent", res.Intent, "mood", emo.Mood, "noted", len(report.Noted))

	userTurnID := a.persist(ctx, log, in.SessionID, memory.RoleUser, text)
	a.remember(ctx, log, report)

	out := FinalOutput{Emotion: emo, Intent: res.Intent, TraceID: traceID}

	if res.Intent == reason.IntentDialogForward {
		history := in.History
		if history == nil {
			history = withCurrentTurn(a.history(ctx, log, in.SessionID), userTurnID, in.SessionID, text)
		}
		recalled := a.recall(ctx, log, text, history, userTurnID)

		out.Strategy = dialogue.DetermineStrategy(history)
		prompt := dialogue.ComposePrompt(dialogue.PromptInput{
			Text:        text,
			History:     history,
			Recalled:    recalled,
			Disposition: a.persona.Current(),
			Emotion:     emo,
			Strategy:    out.Strategy,
			AgentName:   a.agentName(ctx, log),
		})

		reply, err := a.chat.ChatOnce(ctx, prompt, a.cfg.MaxTokens)
		if err != nil || strings.TrimSpace(reply) == "" {
			log.Warn("agent: no model reply, using fallback", "err", err)
			reply = dialogue.NoReplyFallback
		}
		exchange := a.persona.AnalyzeAndUpdate(text, reply, report)
		log.Debug("agent: exchange appraised", "mood", exchange.Mood, "arousal", exchange.Arousal, "strategy", out.Strategy)

		out.Text = reply
		out.SelectedMemoryIDs = memory.IDs(recalled)
	} else {
		out.Text = a.responder.Compose(res, emo)
	}
	out.Disposition = a.persona.Current()

	a.persist(ctx, log, in.SessionID, memory.RoleAI, out.Text)
	if a.summarizer != nil && in.SessionID != 0 {
		if _, err := a.summarizer.SummarizeIfNeeded(ctx, in.SessionID); err != nil {
			log.Warn("agent: summarize failed", "err", err)
		}
	}
	return out, nil
}

// Proactive turns an autonomy event into a message for sessionID and stores
// it. It reports false for events that call for no message. A goal pursued
// by the event is marked done once the message is stored.
func (a *SelfAgent) Proactive(ctx context.Context, sessionID int64, ev autonomy.Event) (string, bool, error) {
	var fixed string
	switch ev.Plan.Action {
	case autonomy.ActionRemind:
		fixed = dialogue.RemindLine
	case autonomy.ActionAskClarify:
		fixed = dialogue.AskClarifyLine
	default:
		return "", false, nil
	}

	if ev.TraceID != "" {
		ctx = trace.WithTraceID(ctx, ev.TraceID)
	}
	ctx, _ = trace.Ensure(ctx)
	log := observability.WithTrace(ctx, a.logger)

	unlock := a.lockSession(sessionID)
	defer unlock()

	text := fixed
	if strings.TrimSpace(ev.Plan.Seed) != "" {
		prompt := dialogue.ComposeProactivePrompt(dialogue.ProactiveInput{
			Seed:        ev.Plan.Seed,
			History:     a.history(ctx, log, sessionID),
			Disposition: a.persona.Current(),
			AgentName:   a.agentName(ctx, log),
		})
		reply, err := a.chat.ChatOnce(ctx, prompt, a.cfg.MaxTokens)
		if err == nil && strings.TrimSpace(reply) != "" {
			text = reply
		} else {
			log.Warn("agent: no model reply for proactive message, using fixed line", "err", err)
		}
	}

	if sessionID != 0 {
		if _, err := a.store.InsertTurn(ctx, memory.Turn{SessionID: sessionID, Role: memory.RoleAI, Content: text}); err != nil {
			return "", false, fmt.Errorf("agent: store proactive message: %w", err)
		}
	}
	if ev.Plan.GoalID != 0 {
		if err := a.store.UpdateGoalStatus(ctx, ev.Plan.GoalID, autonomy.GoalDone); err != nil {
			log.Warn("agent: mark goal done failed", "goal_id", ev.Plan.GoalID, "err", err)
		} else {
			log.Info("agent: goal done", "goal_id", ev.Plan.GoalID)
		}
	}
	log.Info("agent: proactive message", "session_id", sessionID, "action", ev.Plan.Action, "reason", ev.Plan.Reason)
	return text, true, nil
}

func (a *SelfAgent) lockSession(id int64) func() {
	a.locksMu.Lock()
	mu, ok := a.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		a.locks[id] = mu
	}
	a.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// persist stores a turn and returns its ID, or 0 when nothing was stored.
func (a *SelfAgent) persist(ctx context.Context, log *slog.Logger, sessionID int64, role memory.Role, text string) int64 {
	if sessionID == 0 || strings.TrimSpace(text) == "" {
		return 0
	}
	id, err := a.store.InsertTurn(ctx, memory.Turn{SessionID: sessionID, Role: role, Content: text})
	if err != nil {
		log.Warn("agent: store turn failed", "role", role, "err", err)
		return 0
	}
	return id
}

// remember stores the report's facts and lets the goal engine react to new
// preferences.
func (a *SelfAgent) remember(ctx context.Context, log *slog.Logger, report learn.Report) {
	facts := report.Facts()
	for _, f := range facts {
		if err := a.store.UpsertBelief(ctx, f.Key, f.Value); err != nil {
			log.Warn("agent: store belief failed", "key", f.Key, "err", err)
			continue
		}
		log.Info("agent: belief learned", "key", f.Key)
	}
	if a.goals == nil || !report.HasLike() {
		return
	}
	if _, err := a.goals.Evaluate(ctx); err != nil {
		log.Warn("agent: goal evaluation failed", "err", err)
	}
}

func (a *SelfAgent) history(ctx context.Context, log *slog.Logger, sessionID int64) []memory.Turn {
	if sessionID == 0 {
		return nil
	}
	turns, err := a.store.ListRecentTurns(ctx, sessionID, a.cfg.HistoryWindow)
	if err != nil {
		log.Warn("agent: load history failed", "err", err)
		return nil
	}
	return turns
}

// withCurrentTurn makes stored history end with the current user turn, as
// the prompt composer expects. When the turn could not be stored it is
// appended so no earlier turn takes its place.
func withCurrentTurn(history []memory.Turn, currentID, sessionID int64, text string) []memory.Turn {
	if n := len(history); currentID != 0 && n > 0 && history[n-1].ID == currentID {
		return history
	}
	return append(history, memory.Turn{SessionID: sessionID, Role: memory.RoleUser, Content: text})
}

// recall scores recent turns from every session against text. Turns already
// shown as history, and the current turn, are not candidates.
func (a *SelfAgent) recall(ctx context.Context, log *slog.Logger, text string, history []memory.Turn, currentID int64) []memory.ScoredCandidate {
	turns, err := a.store.ListRecentTurns(ctx, 0, a.cfg.Candidates)
	if err != nil {
		log.Warn("agent: load recall candidates failed", "err", err)
		return nil
	}
	shown := make(map[int64]bool, len(history)+1)
	for _, t := range history {
		if t.ID != 0 {
			shown[t.ID] = true
		}
	}
	if currentID != 0 {
		shown[currentID] = true
	}
	candidates := turns[:0:0]
	for _, t := range turns {
		if !shown[t.ID] {
			candidates = append(candidates, t)
		}
	}
	return a.selector.Select(text, candidates, a.cfg.K, a.cfg.Threshold)
}

// agentName returns the taught name, or the configured one.
func (a *SelfAgent) agentName(ctx context.Context, log *slog.Logger) string {
	beliefs, err := a.store.ListBeliefs(ctx)
	if err != nil {
		log.Warn("agent: load beliefs failed", "err", err)
		return a.cfg.AgentName
	}
	for _, b := range beliefs {
		if b.Key == NameBeliefKey && strings.TrimSpace(b.Value) != "" {
			return b.Value
		}
	}
	return a.cfg.AgentName
}
