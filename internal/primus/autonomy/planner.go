package autonomy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bdobrica/Primus/internal/primus/memory"
)

// DefaultIdleThreshold is how long the user may stay silent after an agent
// reply before the agent checks in.
const DefaultIdleThreshold = 5 * time.Minute

// TurnSource returns the newest stored turn, or nil when there is none.
type TurnSource interface {
	LatestTurn(ctx context.Context) (*memory.Turn, error)
}

// AdvancedPlanner pursues open goals first and otherwise re-engages a user
// who has gone quiet after the agent's last reply.
type AdvancedPlanner struct {
	goals         GoalRepository
	turns         TurnSource
	idleThreshold time.Duration
	now           func() time.Time
}

// NewAdvancedPlanner creates a planner. A non-positive idleThreshold means
// DefaultIdleThreshold.
func NewAdvancedPlanner(goals GoalRepository, turns TurnSource, idleThreshold time.Duration) *AdvancedPlanner {
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}
	return &AdvancedPlanner{goals: goals, turns: turns, idleThreshold: idleThreshold, now: time.Now}
}

// Next picks the highest-priority TODO goal (REMIND). Without one it returns
// ASK_CLARIFY when the newest turn is the agent's and older than the idle
// threshold, and NOOP otherwise.
func (p *AdvancedPlanner) Next(ctx context.Context) (Plan, error) {
	goals, err := p.goals.ListGoals(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("advanced planner: list goals: %w", err)
	}
	if g, ok := topGoal(goals); ok {
		return Plan{
			Action: ActionRemind,
			Cost:   1,
			Reason: fmt.Sprintf("Executing goal #%d: %s", g.ID, g.Title),
			Seed:   goalSeed(g),
			GoalID: g.ID,
		}, nil
	}

	last, err := p.turns.LatestTurn(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("advanced planner: latest turn: %w", err)
	}
	if last == nil {
		return Plan{Action: ActionNoop, Reason: "no history"}, nil
	}

	if last.Role == memory.RoleAI && p.now().Sub(last.CreatedAt) > p.idleThreshold {
		return Plan{
			Action: ActionAskClarify,
			Cost:   1,
			Reason: fmt.Sprintf("User has been idle for %d minutes. Re-engaging.", int(p.idleThreshold.Minutes())),
			Seed:   "ユーザーからしばらく返事がありません。前の話題を踏まえて、短く気軽に問いかけてみよう。",
		}, nil
	}
	return Plan{Action: ActionNoop, Reason: "user is active"}, nil
}

// topGoal returns the TODO goal with the highest priority. Among equal
// priorities the oldest (lowest ID) wins.
func topGoal(goals []Goal) (Goal, bool) {
	var best Goal
	found := false
	for _, g := range goals {
		if g.Status != GoalTodo {
			continue
		}
		if !found || g.Priority > best.Priority || (g.Priority == best.Priority && g.ID < best.ID) {
			best, found = g, true
		}
	}
	return best, found
}

// goalSeed phrases a goal as an instruction for the proactive message.
func goalSeed(g Goal) string {
	if strings.Contains(g.Title, "面白い話題") {
		topic := g.Title
		if _, after, ok := strings.Cut(topic, "「"); ok {
			topic, _, _ = strings.Cut(after, "」")
		}
		return "ユーザーが好きな" + topic + "に関する、何か面白い豆知識や最近のニュースを披露して、会話を盛り上げよう。"
	}
	return "「" + g.Title + "」という目標を達成するために、何かユーザーに働きかけてみよう。"
}
