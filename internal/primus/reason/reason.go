// Package reason classifies a user turn into an intent with an ordered list
// of pattern rules. The first rule that matches wins, which keeps every
// decision deterministic and easy to explain from the input alone.
package reason

import (
	"log/slog"
	"regexp"
	"strings"
)

// Intent is the classification of one turn.
type Intent string

const (
	IntentNoop          Intent = "noop"
	IntentWebSearch     Intent = "web_search"
	IntentFixBuild      Intent = "fix_build"
	IntentDialogForward Intent = "dialog_forward"
	// IntentAnswerWithWeb is produced once a search has returned a summary;
	// the reasoner itself never emits it.
	IntentAnswerWithWeb Intent = "answer_with_web"
)

// Slot keys.
const (
	SlotQuery   = "query"
	SlotLang    = "lang"
	SlotSummary = "summary"
)

// Summaries attached by the search rules.
const (
	SummaryEmpty          = "empty input"
	SummaryExplicitSearch = "明示検索"
	SummaryImplicitSearch = "暗黙的な知識検索"
)

// summaryLimit is the rune length of the summary echoed back for build and
// dialogue intents.
const summaryLimit = 200

// BuildPlan is the fixed troubleshooting plan for fix_build.
var BuildPlan = []string{"エラーブロックを抽出", "plugins/versionsの突合", "Sync→Rebuild"}

// Result is the outcome of Reason.
type Result struct {
	Intent      Intent
	Summary     string
	Slots       map[string]string
	Plan        []string
	NextActions []string
}

// rule is one entry of the ordered rule list.
type rule struct {
	name  string
	match func(text string) (Result, bool)
}

var (
	explicitSearch = regexp.MustCompile(`^(調べて|検索|search)\s*[:：]?\s*(.+)$`)
	implicitJa     = regexp.MustCompile(`(.+?)\s*(とは|について教えて)`)
	implicitEn     = regexp.MustCompile(`(?i)^(?:what is|what's|who is|who's)\s+(.+?)\s*[?？]$`)
	buildTerms     = regexp.MustCompile(`(?i)\b(agp|gradle|android|ksp|compose|room|unresolved|cannot)\b`)
	japaneseScript = regexp.MustCompile(`\p{Han}|\p{Hiragana}|\p{Katakana}`)
)

var rules = []rule{
	{
		name: "explicit_search",
		match: func(text string) (Result, bool) {
			m := explicitSearch.FindStringSubmatch(text)
			if m == nil {
				return Result{}, false
			}
			return search(text, m[2], SummaryExplicitSearch)
		},
	},
	{
		name: "implicit_search",
		match: func(text string) (Result, bool) {
			if !strings.HasSuffix(text, "?") && !strings.HasSuffix(text, "？") {
				return Result{}, false
			}
			if m := implicitJa.FindStringSubmatch(text); m != nil {
				if r, ok := search(text, m[1], SummaryImplicitSearch); ok {
					return r, true
				}
			}
			if m := implicitEn.FindStringSubmatch(text); m != nil {
				return search(text, m[1], SummaryImplicitSearch)
			}
			return Result{}, false
		},
	},
	{
		name: "fix_build",
		match: func(text string) (Result, bool) {
			if !buildTerms.MatchString(text) {
				return Result{}, false
			}
			return Result{
				Intent:  IntentFixBuild,
				Summary: truncate(text, summaryLimit),
				Plan:    append([]string(nil), BuildPlan...),
			}, true
		},
	},
}

// Reasoner applies the rule list. The zero value is ready to use.
type Reasoner struct {
	// Logger, when set, receives the name of the rule that fired.
	Logger *slog.Logger
}

// Reason classifies text. It never fails: blank text is noop, anything no
// rule claims is dialog_forward.
func (r *Reasoner) Reason(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Intent: IntentNoop, Summary: SummaryEmpty}
	}

	for _, ru := range rules {
		if res, ok := ru.match(text); ok {
			r.log(ru.name, res.Intent)
			return res
		}
	}

	r.log("default", IntentDialogForward)
	return Result{Intent: IntentDialogForward, Summary: truncate(text, summaryLimit)}
}

func (r *Reasoner) log(rule string, intent Intent) {
	if r.Logger != nil {
		r.Logger.Debug("reason: rule matched", "rule", rule, "intent", intent)
	}
}

// Lang returns "ja" when text contains any Han, Hiragana, or Katakana rune,
// "en" otherwise.
func Lang(text string) string {
	if japaneseScript.MatchString(text) {
		return "ja"
	}
	return "en"
}

func search(text, query, summary string) (Result, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, false
	}
	return Result{
		Intent:  IntentWebSearch,
		Summary: summary,
		Slots:   map[string]string{SlotQuery: query, SlotLang: Lang(text)},
	}, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
