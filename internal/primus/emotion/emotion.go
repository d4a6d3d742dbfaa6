// Package emotion derives a transient mood/arousal reading from the text of a
// turn. The same keyword lists drive both the per-turn appraisal here and the
// slow disposition drift in the persona package.
package emotion

import (
	"strings"

	"github.com/bdobrica/Primus/internal/primus/learn"
)

// State is a momentary affect reading. Mood is in [-1,1], Arousal in [0,1].
type State struct {
	Mood    float64
	Arousal float64
}

// Neutral is the zero reading.
var Neutral = State{}

var (
	// DefaultPositive are the keywords that lift mood.
	DefaultPositive = []string{"ありがとう", "助かる", "最高", "嬉しい", "good", "great", "nice"}
	// DefaultNegative are the keywords that lower mood.
	DefaultNegative = []string{"無理", "最悪", "ダメ", "エラー", "失敗", "困った", "怒"}
)

const (
	moodSpan    = 3
	arousalSpan = 6
)

// Engine scores text against positive and negative keyword lists. It holds
// no mutable state and is safe for concurrent use.
type Engine struct {
	positive []string
	negative []string
}

// NewEngine returns an Engine with the given keyword lists. Nil lists fall
// back to DefaultPositive and DefaultNegative.
func NewEngine(positive, negative []string) *Engine {
	if positive == nil {
		positive = DefaultPositive
	}
	if negative == nil {
		negative = DefaultNegative
	}
	return &Engine{positive: lowerAll(positive), negative: lowerAll(negative)}
}

// Default returns an Engine using the default keyword lists.
func Default() *Engine {
	return NewEngine(nil, nil)
}

// Appraise reads mood and arousal from text. Mood is the number of distinct
// positive keywords present minus negative ones, clamped to ±3 and scaled to
// ±1. Arousal is the count of '!', '！', '?', '？', capped at 6 and scaled to
// [0,1]. The report is accepted for future use and does not affect the result.
func (e *Engine) Appraise(text string, _ learn.Report) State {
	t := strings.TrimSpace(text)
	pos, neg := e.Hits(t)

	marks := 0
	for _, r := range t {
		switch r {
		case '!', '！', '?', '？':
			marks++
		}
	}

	return State{
		Mood:    float64(clampInt(pos-neg, -moodSpan, moodSpan)) / moodSpan,
		Arousal: float64(clampInt(marks, 0, arousalSpan)) / arousalSpan,
	}
}

// Hits counts the distinct positive and negative keywords occurring in any
// of texts. Matching is case-insensitive substring search.
func (e *Engine) Hits(texts ...string) (pos, neg int) {
	lowered := make([]string, len(texts))
	for i, t := range texts {
		lowered[i] = strings.ToLower(t)
	}
	return countAny(lowered, e.positive), countAny(lowered, e.negative)
}

func countAny(texts, keywords []string) int {
	n := 0
	for _, k := range keywords {
		for _, t := range texts {
			if strings.Contains(t, k) {
				n++
				break
			}
		}
	}
	return n
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
