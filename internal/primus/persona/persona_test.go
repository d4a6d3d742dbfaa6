package persona_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdobrica/Primus/internal/primus/learn"
	"github.com/bdobrica/Primus/internal/primus/persona"
)

type fakeRepo struct {
	mu     sync.Mutex
	stored *persona.Disposition
	saves  int
	getErr error
}

func (r *fakeRepo) GetPersonality(context.Context) (*persona.Disposition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.stored == nil {
		return nil, nil
	}
	d := *r.stored
	return &d, nil
}

func (r *fakeRepo) SavePersonality(_ context.Context, d persona.Disposition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = &d
	r.saves++
	return nil
}

func TestLoad_PersistsDefaultWhenEmpty(t *testing.T) {
	repo := &fakeRepo{}
	e := persona.NewEngine(repo, nil, nil)

	require.NoError(t, e.Load(context.Background()))
	require.NotNil(t, repo.stored)
	assert.Equal(t, persona.DefaultDisposition(), *repo.stored)
	assert.Equal(t, 1, repo.saves)
}

func TestLoad_UsesStoredValue(t *testing.T) {
	repo := &fakeRepo{stored: &persona.Disposition{Energy: 0.2, Warmth: 0.9, Empathy: 0.4}}
	e := persona.NewEngine(repo, nil, nil)

	require.NoError(t, e.Load(context.Background()))
	assert.Equal(t, persona.Disposition{Energy: 0.2, Warmth: 0.9, Empathy: 0.4}, e.Current())
	assert.Zero(t, repo.saves)
}

func TestLoad_Error(t *testing.T) {
	e := persona.NewEngine(&fakeRepo{getErr: errors.New("locked")}, nil, nil)
	err := e.Load(context.Background())
	assert.ErrorContains(t, err, "locked")
	assert.Equal(t, persona.DefaultDisposition(), e.Current())
}

func TestAnalyzeAndUpdate_PositiveKeyword(t *testing.T) {
	e := persona.NewEngine(&fakeRepo{}, nil, nil)
	before := e.Current().Warmth

	e.AnalyzeAndUpdate("ありがとう", "どういたしまして", learn.Report{})

	assert.InDelta(t, before+0.005, e.Current().Warmth, 1e-12)
	assert.Equal(t, 0.5, e.Current().Empathy)
}

func TestAnalyzeAndUpdate_Nudges(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		reply       string
		report      learn.Report
		wantWarmth  float64
		wantEmpathy float64
	}{
		{"nothing", "hello", "hi", learn.Report{}, 0.5, 0.5},
		{"negative in reply", "build?", "エラーです", learn.Report{}, 0.49, 0.5},
		{"both", "good", "最悪", learn.Report{}, 0.495, 0.5},
		{"like", "好き: 猫", "", learn.Report{Noted: []string{"user_like=猫"}}, 0.51, 0.505},
		{"bare like tag", "", "", learn.Report{Noted: []string{"like=猫"}}, 0.51, 0.505},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := persona.NewEngine(&fakeRepo{}, nil, nil)
			e.AnalyzeAndUpdate(tt.input, tt.reply, tt.report)
			assert.InDelta(t, tt.wantWarmth, e.Current().Warmth, 1e-12)
			assert.InDelta(t, tt.wantEmpathy, e.Current().Empathy, 1e-12)
			assert.Equal(t, 0.5, e.Current().Energy)
		})
	}
}

func TestAnalyzeAndUpdate_StaysInRange(t *testing.T) {
	e := persona.NewEngine(&fakeRepo{}, nil, nil)
	like := learn.Report{Noted: []string{"user_like=猫"}}
	for i := range 500 {
		if i%3 == 0 {
			e.AnalyzeAndUpdate("最悪 ダメ", "", learn.Report{})
		} else {
			e.AnalyzeAndUpdate("ありがとう", "", like)
		}
		d := e.Current()
		for _, v := range []float64{d.Energy, d.Warmth, d.Empathy} {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
		}
	}
	assert.Equal(t, 1.0, e.Current().Empathy)

	for range 500 {
		e.AnalyzeAndUpdate("最悪", "", learn.Report{})
	}
	assert.Equal(t, 0.0, e.Current().Warmth)
}

func TestAnalyzeAndUpdate_DoesNotSave(t *testing.T) {
	repo := &fakeRepo{}
	e := persona.NewEngine(repo, nil, nil)
	e.AnalyzeAndUpdate("ありがとう", "", learn.Report{})
	assert.Zero(t, repo.saves)

	require.NoError(t, e.Save(context.Background()))
	assert.Equal(t, 1, repo.saves)
	assert.InDelta(t, 0.505, repo.stored.Warmth, 1e-12)
}

func TestAnalyzeAndUpdate_ConcurrentUpdatesNotLost(t *testing.T) {
	e := persona.NewEngine(&fakeRepo{}, nil, nil)
	var wg sync.WaitGroup
	for range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.AnalyzeAndUpdate("ありがとう", "", learn.Report{})
		}()
	}
	wg.Wait()
	assert.InDelta(t, 0.5+40*0.005, e.Current().Warmth, 1e-9)
}

func TestAnalyzeAndUpdate_ReturnsEmotion(t *testing.T) {
	e := persona.NewEngine(&fakeRepo{}, nil, nil)
	s := e.AnalyzeAndUpdate("ありがとう!", "", learn.Report{})
	assert.Greater(t, s.Mood, 0.0)
	assert.Greater(t, s.Arousal, 0.0)
}
