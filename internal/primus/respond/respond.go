// Package respond turns a reasoning result into a local reply for the
// intents that are not forwarded to the language model.
package respond

import (
	"strings"

	"github.com/bdobrica/Primus/internal/primus/emotion"
	"github.com/bdobrica/Primus/internal/primus/reason"
)

// Fixed replies.
const (
	NotFoundReply     = "Wikipediaに該当する要約が見つかりませんでした。検索語を少し変えて再試行してください。"
	SearchingReply    = "外部知識を探索します。"
	BuildReplyPrefix  = "ビルド問題ですね。次の順で進めます："
	GoalQuestionReply = "この件で到達したい具体的なゴールを一文で教えてください。"
	ContinueReply     = "続けます。次にどう進めますか？"
)

// LowMoodThreshold is the mood below which no clarification is offered.
const LowMoodThreshold = -0.6

// ClarificationPolicy picks at most one follow-up action for a dialogue turn.
type ClarificationPolicy struct{}

// DecideOne returns the first suggested next action, or false when the user
// seems upset or nothing was suggested.
func (ClarificationPolicy) DecideOne(res reason.Result, emo emotion.State) (string, bool) {
	if emo.Mood < LowMoodThreshold || len(res.NextActions) == 0 {
		return "", false
	}
	return res.NextActions[0], true
}

// Engine composes replies. The zero value is ready to use.
type Engine struct {
	Policy ClarificationPolicy
}

// Compose maps a result to reply text. It never calls out and never fails.
func (e Engine) Compose(res reason.Result, emo emotion.State) string {
	switch res.Intent {
	case reason.IntentAnswerWithWeb:
		if s := res.Slots[reason.SlotSummary]; strings.TrimSpace(s) != "" {
			return s
		}
		return NotFoundReply
	case reason.IntentWebSearch:
		return SearchingReply
	case reason.IntentFixBuild:
		return BuildReplyPrefix + strings.Join(res.Plan, " → ") + "。"
	case reason.IntentDialogForward:
		if action, ok := e.Policy.DecideOne(res, emo); ok {
			return action
		}
		return GoalQuestionReply
	default:
		if strings.TrimSpace(res.Summary) != "" {
			return res.Summary
		}
		return ContinueReply
	}
}
