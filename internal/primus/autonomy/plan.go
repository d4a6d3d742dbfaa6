// Package autonomy lets the agent speak first. A Loop wakes on a fixed
// interval, checks consent, budget, and cooldown, asks a Planner what to do,
// records the outcome with a Critic, and publishes the decision on a channel
// for the conversation side to act on.
package autonomy

import (
	"context"
	"fmt"
)

// Action is what a plan proposes.
type Action string

const (
	ActionNoop       Action = "NOOP"
	ActionRemind     Action = "REMIND"
	ActionAskClarify Action = "ASK_CLARIFY"
)

// Plan is a planner decision. Cost is charged against the budget when the
// plan executes; NOOP plans cost nothing.
type Plan struct {
	Action Action
	Cost   int
	Reason string
	// Seed is an optional instruction for composing the proactive message.
	Seed string
	// GoalID is set when the plan pursues a stored goal.
	GoalID int64
}

// ExecResult is the outcome of executing a plan.
type ExecResult struct {
	Done bool
	What string
}

// Done reports an executed action.
func Done(what string) ExecResult { return ExecResult{Done: true, What: what} }

// Skipped reports a plan that did nothing.
func Skipped(reason string) ExecResult { return ExecResult{What: reason} }

func (r ExecResult) String() string {
	if r.Done {
		return fmt.Sprintf("Done(what=%s)", r.What)
	}
	return fmt.Sprintf("Skipped(reason=%s)", r.What)
}

// execute maps a plan onto its local effect. Composing and sending the
// actual message happens downstream of the event channel.
func execute(p Plan) ExecResult {
	switch p.Action {
	case ActionRemind:
		return Done("remind")
	case ActionAskClarify:
		return Done("ask")
	default:
		return Skipped("noop")
	}
}

// Planner decides the next autonomous action.
type Planner interface {
	Next(ctx context.Context) (Plan, error)
}

// SimplePlanner suggests something every time the budget allows it.
type SimplePlanner struct {
	Budget Budget
}

// Next returns REMIND while budget remains, NOOP otherwise.
func (p SimplePlanner) Next(ctx context.Context) (Plan, error) {
	ok, err := p.Budget.Check(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("simple planner: %w", err)
	}
	if !ok {
		return Plan{Action: ActionNoop, Reason: "no budget"}, nil
	}
	return Plan{Action: ActionRemind, Cost: 1, Reason: "periodic suggestion"}, nil
}
