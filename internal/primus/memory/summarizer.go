package memory

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Condense limits.
const (
	condenseMinLine  = 6
	condenseMaxLine  = 160
	condenseMaxLines = 20
	condenseMaxChars = 600
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Condense builds an extractive digest of a newline-separated transcript
// without echoing it wholesale: starting from the last line it keeps up to 20
// distinct lines of 6 to 160 runes, joins them with " / ", and truncates the
// result to 600 runes followed by "…". Blank input yields "".
func Condense(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	lines := strings.Split(text, "\n")

	seen := make(map[string]struct{})
	var kept []string
	for i := len(lines) - 1; i >= 0 && len(kept) < condenseMaxLines; i-- {
		l := whitespaceRun.ReplaceAllString(strings.TrimSpace(lines[i]), " ")
		n := utf8.RuneCountInString(l)
		if n < condenseMinLine || n > condenseMaxLine {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		kept = append(kept, l)
	}

	out := strings.Join(kept, " / ")
	if utf8.RuneCountInString(out) > condenseMaxChars {
		out = string([]rune(out)[:condenseMaxChars]) + "…"
	}
	return out
}

// LightSummarizer renders the newest turns verbatim, one "ROLE: content" line
// each, as long as they fit in MaxChars.
type LightSummarizer struct {
	MaxChars int
}

// Summarize returns "[SUM]" followed by the newest turns that fit, in
// chronological order. An empty input yields "[SUM] (empty)".
func (s LightSummarizer) Summarize(turns []Turn) string {
	if len(turns) == 0 {
		return "[SUM] (empty)"
	}
	maxChars := s.MaxChars
	if maxChars <= 0 {
		maxChars = 280
	}

	var pieces []string
	used := 0
	for i := len(turns) - 1; i >= 0; i-- {
		piece := fmt.Sprintf("%s: %s\n", turns[i].Role, turns[i].Content)
		n := utf8.RuneCountInString(piece)
		if used+n > maxChars {
			break
		}
		used += n
		pieces = append(pieces, piece)
	}

	var b strings.Builder
	b.WriteString("[SUM]\n")
	for i := len(pieces) - 1; i >= 0; i-- {
		b.WriteString(pieces[i])
	}
	return strings.TrimRight(b.String(), " \t\n")
}

// AutoSummarizer appends a SUMMARY turn to a session once enough new turns
// have accumulated since the previous summary.
type AutoSummarizer struct {
	repo      Repository
	threshold int
	window    int
	logger    *slog.Logger
	now       func() time.Time
}

// NewAutoSummarizer creates an AutoSummarizer that looks at the last window
// turns and summarises once threshold turns have arrived since the last
// SUMMARY. Zero values default to 15 and 80. If logger is nil, the default
// slog logger is used.
func NewAutoSummarizer(repo Repository, threshold, window int, logger *slog.Logger) *AutoSummarizer {
	if threshold <= 0 {
		threshold = 15
	}
	if window < threshold {
		window = max(80, threshold)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoSummarizer{repo: repo, threshold: threshold, window: window, logger: logger, now: time.Now}
}

// SummarizeIfNeeded writes a SUMMARY turn for sessionID when due. It reports
// whether a summary was written.
func (a *AutoSummarizer) SummarizeIfNeeded(ctx context.Context, sessionID int64) (bool, error) {
	if sessionID <= 0 {
		return false, nil
	}
	turns, err := a.repo.ListRecentTurns(ctx, sessionID, a.window)
	if err != nil {
		return false, fmt.Errorf("auto summarizer: list turns: %w", err)
	}

	fresh := turnsSinceSummary(turns)
	if len(fresh) < a.threshold {
		return false, nil
	}

	summary := Condense(joinContents(fresh))
	if summary == "" {
		return false, nil
	}

	now := a.now()
	if _, err := a.repo.InsertTurn(ctx, Turn{
		SessionID: sessionID,
		Role:      RoleSummary,
		Content:   summary,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return false, fmt.Errorf("auto summarizer: insert summary: %w", err)
	}

	a.logger.Info("session summarized",
		"session_id", sessionID,
		"turns", len(fresh),
		"summary_len", utf8.RuneCountInString(summary),
	)
	return true, nil
}

// turnsSinceSummary returns the USER and AI turns after the last SUMMARY.
func turnsSinceSummary(turns []Turn) []Turn {
	start := 0
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleSummary {
			start = i + 1
			break
		}
	}
	var out []Turn
	for _, t := range turns[start:] {
		if t.Role == RoleUser || t.Role == RoleAI {
			out = append(out, t)
		}
	}
	return out
}

func joinContents(turns []Turn) string {
	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = t.Content
	}
	return strings.Join(parts, "\n")
}
