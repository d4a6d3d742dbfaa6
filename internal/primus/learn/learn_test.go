package learn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bdobrica/Primus/internal/primus/learn"
)

func TestObserve(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"nothing to learn", "今日は晴れ", nil},
		{"like", "好き: 猫と散歩", []string{"user_like=猫と散歩"}},
		{"preference with full-width colon", "好み：辛いカレー", []string{"user_like=辛いカレー"}},
		{"empty like dropped", "好きは   ", nil},
		{"my X is Y", "私の猫の名前はタマです", []string{"belief:user_猫の名前=タマ"}},
		{"key spaces become underscores", "私の 好きな 色 は青だよ", []string{"belief:user_好きな_色=青"}},
		{"location", "東京に住んでいます", []string{"belief:user_location=東京"}},
		{
			"several rules in one text",
			"私の名前は太郎です\n好き: ラーメン",
			[]string{"user_like=ラーメン", "belief:user_名前=太郎"},
		},
		{"english like", "I really like jazz piano.", []string{"user_like=jazz piano"}},
		{"english my", "My dog name is Pochi", []string{"belief:user_dog_name=Pochi"}},
		{"english location", "I live in Osaka, near the river", []string{"belief:user_location=Osaka"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := learn.Observe(tt.text)
			assert.Equal(t, tt.want, got.Noted)
		})
	}
}

func TestObserve_MultipleHitsOfOneRule(t *testing.T) {
	got := learn.Observe("好き: 猫\n好み: 犬")
	assert.Equal(t, []string{"user_like=猫", "user_like=犬"}, got.Noted)
}

func TestReport_HasLike(t *testing.T) {
	assert.True(t, learn.Report{Noted: []string{"user_like=猫"}}.HasLike())
	assert.True(t, learn.Report{Noted: []string{"like=猫"}}.HasLike())
	assert.False(t, learn.Report{Noted: []string{"belief:user_location=東京"}}.HasLike())
	assert.False(t, learn.Report{}.HasLike())
}

func TestReport_Facts(t *testing.T) {
	r := learn.Report{Noted: []string{
		"user_like=jazz piano",
		"belief:user_location=東京",
		"belief:user_name=",
		"garbage",
	}}
	assert.Equal(t, []learn.Fact{
		{Key: "user_like_jazz_piano", Value: "jazz piano"},
		{Key: "user_location", Value: "東京"},
	}, r.Facts())
}
