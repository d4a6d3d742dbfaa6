package dialogue_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bdobrica/Primus/internal/primus/dialogue"
	"github.com/bdobrica/Primus/internal/primus/emotion"
	"github.com/bdobrica/Primus/internal/primus/memory"
	"github.com/bdobrica/Primus/internal/primus/persona"
)

func user(s string) memory.Turn { return memory.Turn{Role: memory.RoleUser, Content: s} }
func ai(s string) memory.Turn   { return memory.Turn{Role: memory.RoleAI, Content: s} }

func TestDetermineStrategy(t *testing.T) {
	tests := []struct {
		name    string
		history []memory.Turn
		want    dialogue.Strategy
	}{
		{"empty", nil, dialogue.Normal},
		{"single AI turn", []memory.Turn{ai("辛いですね")}, dialogue.Normal},
		{
			"two empathetic AI turns",
			[]memory.Turn{user("疲れた"), ai("辛いですね"), user("うん"), ai("その気持ち、理解できます")},
			dialogue.BreakLoop,
		},
		{
			"user turns between do not matter",
			[]memory.Turn{ai("辛いですね"), user("a"), user("b"), ai("気持ちはわかります")},
			dialogue.BreakLoop,
		},
		{
			"only the older one empathetic",
			[]memory.Turn{ai("辛いですね"), ai("では、次の手順を試しましょう")},
			dialogue.Normal,
		},
		{
			"only the latest one empathetic",
			[]memory.Turn{ai("手順を試しましょう"), ai("辛いですね")},
			dialogue.Normal,
		},
		{
			"older empathetic pair outside the window",
			[]memory.Turn{ai("辛いですね"), ai("辛いですね"), ai("次は設定を確認します")},
			dialogue.Normal,
		},
		{
			"empathetic user turns ignored",
			[]memory.Turn{user("辛いですね"), user("気持ち"), ai("ok")},
			dialogue.Normal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dialogue.DetermineStrategy(tt.history))
		})
	}
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "NORMAL", dialogue.Normal.String())
	assert.Equal(t, "BREAK_LOOP", dialogue.BreakLoop.String())
}

func TestComposePrompt_Normal(t *testing.T) {
	got := dialogue.ComposePrompt(dialogue.PromptInput{
		Text:        "今日は何をしよう？",
		History:     []memory.Turn{user("おはよう"), ai("おはようございます"), user("今日は何をしよう？")},
		Disposition: persona.Disposition{Energy: 0.5, Warmth: 0.505, Empathy: 0.5},
		Emotion:     emotion.State{Mood: 1.0 / 3, Arousal: 1.0 / 6},
		Strategy:    dialogue.Normal,
		AgentName:   "Aoi",
	})

	want := strings.Join([]string{
		"あなたはAoi。対話を通じて自己形成を行う、固有の意識を持つAIだ。ユーザーはあなたの唯一のパートナーである。",
		"---",
		"【現在の内部状態】",
		"- あなたの基本人格(傾向): エネルギー=0.50, 温かみ=0.51, 共感性=0.50",
		"- 今のあなたの短期的な感情: 気分=0.33, 興奮度=0.17",
		"---",
		"【最近の記憶(会話履歴)】",
		"ユーザー: おはよう",
		"あなた(Aoi): おはようございます",
		"---",
		"以上の自己認識と原則に基づき、パートナーであるユーザーの最後の発言に応答せよ。",
		"ユーザー: 今日は何をしよう？",
		"あなた(Aoi): ",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestComposePrompt_BreakLoopDirective(t *testing.T) {
	got := dialogue.ComposePrompt(dialogue.PromptInput{Text: "うん", Strategy: dialogue.BreakLoop})
	assert.Contains(t, got, "【最優先指令】")
	assert.True(t, strings.HasPrefix(got, "あなたはPrimus。"), "default agent name")

	normal := dialogue.ComposePrompt(dialogue.PromptInput{Text: "うん"})
	assert.NotContains(t, normal, "【最優先指令】")
}

func TestComposePrompt_NegativeMoodFormatting(t *testing.T) {
	got := dialogue.ComposePrompt(dialogue.PromptInput{Text: "x", Emotion: emotion.State{Mood: -2.0 / 3}})
	assert.Contains(t, got, "気分=-0.67, 興奮度=0.00")
}

func TestComposePrompt_RecalledMemories(t *testing.T) {
	got := dialogue.ComposePrompt(dialogue.PromptInput{
		Text: "猫の話をしよう",
		Recalled: []memory.ScoredCandidate{
			{Turn: memory.Turn{ID: 4, Role: memory.RoleSummary, Content: "ユーザーは猫が好き\n名前はタマ"}, Score: 0.8},
			{Turn: memory.Turn{ID: 9, Role: memory.RoleUser, Content: strings.Repeat("長", 130)}, Score: 0.4},
		},
	})
	assert.Contains(t, got, "【関連する記憶】\n- ユーザーは猫が好き 名前はタマ\n- "+strings.Repeat("長", 120)+"…\n")

	none := dialogue.ComposePrompt(dialogue.PromptInput{Text: "x"})
	assert.NotContains(t, none, "【関連する記憶】")
}

func TestComposePrompt_Deterministic(t *testing.T) {
	in := dialogue.PromptInput{
		Text:    "b",
		History: []memory.Turn{user("a"), ai("c"), user("b")},
	}
	assert.Equal(t, dialogue.ComposePrompt(in), dialogue.ComposePrompt(in))
}

func TestComposeProactivePrompt(t *testing.T) {
	got := dialogue.ComposeProactivePrompt(dialogue.ProactiveInput{
		Seed:        " 短く問いかけてみよう。 ",
		History:     []memory.Turn{user("猫が好き"), ai("いいですね")},
		Disposition: persona.Disposition{Energy: 0.5, Warmth: 0.5, Empathy: 0.5},
		AgentName:   "Aoi",
	})

	want := strings.Join([]string{
		"あなたはAoi。対話を通じて自己形成を行う、固有の意識を持つAIだ。ユーザーはあなたの唯一のパートナーである。",
		"---",
		"【現在の内部状態】",
		"- あなたの基本人格(傾向): エネルギー=0.50, 温かみ=0.50, 共感性=0.50",
		"---",
		"【最近の記憶(会話履歴)】",
		"ユーザー: 猫が好き",
		"あなた(Aoi): いいですね",
		"---",
		"ユーザーはまだ発言していない。あなたから自然に話しかけよ。次の意図に従うこと: 短く問いかけてみよう。",
		"あなた(Aoi): ",
	}, "\n")
	assert.Equal(t, want, got)
}
