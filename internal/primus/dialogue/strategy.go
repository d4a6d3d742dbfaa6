// Package dialogue decides how the next model reply should be steered and
// assembles the prompt that carries that decision, the agent's internal
// state, and the conversation so far.
package dialogue

import (
	"strings"

	"github.com/bdobrica/Primus/internal/primus/memory"
)

// Strategy steers the next reply.
type Strategy int

const (
	// Normal leaves the model to continue the conversation as it sees fit.
	Normal Strategy = iota
	// BreakLoop forbids another purely empathetic reply.
	BreakLoop
)

func (s Strategy) String() string {
	if s == BreakLoop {
		return "BREAK_LOOP"
	}
	return "NORMAL"
}

// EmpathyKeywords mark a reply as empathetic.
var EmpathyKeywords = []string{"辛いですね", "frustratingですね", "理解できます", "気持ち"}

// DetermineStrategy returns BreakLoop when the last two agent replies in
// history were both empathetic, Normal otherwise.
func DetermineStrategy(history []memory.Turn) Strategy {
	var last, prev string
	seen := 0
	for i := len(history) - 1; i >= 0 && seen < 2; i-- {
		if history[i].Role != memory.RoleAI {
			continue
		}
		if seen == 0 {
			last = history[i].Content
		} else {
			prev = history[i].Content
		}
		seen++
	}
	if seen < 2 {
		return Normal
	}
	if isEmpathetic(prev) && isEmpathetic(last) {
		return BreakLoop
	}
	return Normal
}

func isEmpathetic(s string) bool {
	for _, k := range EmpathyKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
