package autonomy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bdobrica/Primus/internal/primus/learn"
)

// GoalStatus is the lifecycle of a goal.
type GoalStatus string

const (
	GoalTodo       GoalStatus = "TODO"
	GoalInProgress GoalStatus = "IN_PROGRESS"
	GoalDone       GoalStatus = "DONE"
)

// Goal is something the agent intends to bring up on its own.
type Goal struct {
	ID        int64
	Title     string
	Priority  int
	Status    GoalStatus
	DueAt     *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Belief is a learned fact about the user or the agent.
type Belief struct {
	ID        int64
	Key       string
	Value     string
	UpdatedAt time.Time
}

// GoalRepository reads and creates goals.
type GoalRepository interface {
	ListGoals(ctx context.Context) ([]Goal, error)
	InsertGoal(ctx context.Context, g Goal) (int64, error)
}

// BeliefSource lists learned beliefs.
type BeliefSource interface {
	ListBeliefs(ctx context.Context) ([]Belief, error)
}

// likeGoalPriority is the priority of goals derived from stated likes.
const likeGoalPriority = 5

// LikeGoalTitle is the goal created for a topic the user likes.
func LikeGoalTitle(topic string) string {
	return "ユーザーの好きな「" + topic + "」に関する面白い話題を提供する"
}

// GoalEngine turns beliefs into goals.
type GoalEngine struct {
	beliefs BeliefSource
	goals   GoalRepository
	logger  *slog.Logger
}

// NewGoalEngine creates a GoalEngine. If logger is nil, the default slog
// logger is used.
func NewGoalEngine(beliefs BeliefSource, goals GoalRepository, logger *slog.Logger) *GoalEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoalEngine{beliefs: beliefs, goals: goals, logger: logger}
}

// Evaluate creates a TODO goal for every liked topic that no existing goal
// mentions yet, and returns the goals it created.
func (e *GoalEngine) Evaluate(ctx context.Context) ([]Goal, error) {
	beliefs, err := e.beliefs.ListBeliefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("goal engine: list beliefs: %w", err)
	}
	existing, err := e.goals.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("goal engine: list goals: %w", err)
	}

	var created []Goal
	for _, b := range beliefs {
		topic := strings.TrimSpace(b.Value)
		if !strings.HasPrefix(b.Key, learn.LikeTag) || topic == "" {
			continue
		}
		if mentioned(existing, topic) || mentioned(created, topic) {
			continue
		}

		g := Goal{Title: LikeGoalTitle(topic), Priority: likeGoalPriority, Status: GoalTodo}
		id, err := e.goals.InsertGoal(ctx, g)
		if err != nil {
			return created, fmt.Errorf("goal engine: insert goal: %w", err)
		}
		g.ID = id
		created = append(created, g)
		e.logger.Info("goal created", "goal_id", id, "topic", topic)
	}
	return created, nil
}

func mentioned(goals []Goal, topic string) bool {
	for _, g := range goals {
		if strings.Contains(g.Title, topic) {
			return true
		}
	}
	return false
}
