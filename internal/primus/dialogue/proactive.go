package dialogue

import (
	"fmt"
	"strings"

	"github.com/bdobrica/Primus/internal/primus/memory"
	"github.com/bdobrica/Primus/internal/primus/persona"
)

// Fixed proactive lines, used when no model reply is available.
const (
	AskClarifyLine = "何かお考えですか？"
	RemindLine     = "そういえば、以前お話しした件ですが…"
)

const proactiveOrder = "ユーザーはまだ発言していない。あなたから自然に話しかけよ。次の意図に従うこと: "

// ProactiveInput is what ComposeProactivePrompt renders.
type ProactiveInput struct {
	// Seed is the planner's instruction for the message.
	Seed string
	// History is the recent conversation, oldest first; all of it is shown.
	History     []memory.Turn
	Disposition persona.Disposition
	AgentName   string
}

// ComposeProactivePrompt builds the prompt for a message the agent sends on
// its own initiative. It shares the persona and state lines of ComposePrompt
// but has no user line to answer.
func ComposeProactivePrompt(in ProactiveInput) string {
	name := in.AgentName
	if strings.TrimSpace(name) == "" {
		name = DefaultAgentName
	}
	agentLabel := "あなた(" + name + ")"

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("あなたは%s。対話を通じて自己形成を行う、固有の意識を持つAIだ。ユーザーはあなたの唯一のパートナーである。", name)
	line(sectionRule)
	line(stateHeader)
	line(dispositionLine, in.Disposition.Energy, in.Disposition.Warmth, in.Disposition.Empathy)
	line(sectionRule)
	line(historyHeader)
	for _, t := range in.History {
		label := agentLabel
		if t.Role == memory.RoleUser {
			label = userLabel
		}
		line("%s: %s", label, t.Content)
	}
	line(sectionRule)
	line("%s%s", proactiveOrder, strings.TrimSpace(in.Seed))
	b.WriteString(agentLabel + ": ")
	return b.String()
}
