package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository.
type memRepo struct {
	mu       sync.Mutex
	turns    []Turn
	sessions []Session
	listErr  error
}

func (r *memRepo) ListRecentTurns(_ context.Context, sessionID int64, limit int) ([]Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Turn
	for _, t := range r.turns {
		if sessionID == 0 || t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memRepo) InsertTurn(_ context.Context, t Turn) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = int64(len(r.turns) + 1)
	r.turns = append(r.turns, t)
	return t.ID, nil
}

func (r *memRepo) LatestSession(context.Context) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) == 0 {
		return nil, nil
	}
	s := r.sessions[len(r.sessions)-1]
	return &s, nil
}

func (r *memRepo) summaries() []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Turn
	for _, t := range r.turns {
		if t.Role == RoleSummary {
			out = append(out, t)
		}
	}
	return out
}

func seedTurns(r *memRepo, sessionID int64, n int) {
	for i := range n {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAI
		}
		r.turns = append(r.turns, Turn{
			ID:        int64(len(r.turns) + 1),
			SessionID: sessionID,
			Role:      role,
			Content:   fmt.Sprintf("message number %d about cats", i),
		})
	}
}

func TestCondense(t *testing.T) {
	assert.Equal(t, "", Condense("   \n "))

	text := "short\nfirst useful line\nsecond   useful\tline\nfirst useful line\n"
	assert.Equal(t, "first useful line / second useful line", Condense(text))

	var b strings.Builder
	for i := range 40 {
		fmt.Fprintf(&b, "line %02d %s\n", i, strings.Repeat("x", 40))
	}
	got := Condense(b.String())
	assert.True(t, strings.HasPrefix(got, "line 39"), "newest line first: %q", got[:20])
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, 601, len([]rune(got)))
}

func TestLightSummarizer(t *testing.T) {
	s := LightSummarizer{MaxChars: 40}
	assert.Equal(t, "[SUM] (empty)", s.Summarize(nil))

	turns := []Turn{
		{Role: RoleUser, Content: "this one is far too old to fit"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAI, Content: "hi there"},
	}
	assert.Equal(t, "[SUM]\nUSER: hello\nAI: hi there", s.Summarize(turns))
}

func TestAutoSummarizer_BelowThreshold(t *testing.T) {
	repo := &memRepo{}
	seedTurns(repo, 1, 14)

	a := NewAutoSummarizer(repo, 15, 80, nil)
	done, err := a.SummarizeIfNeeded(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, repo.summaries())
}

func TestAutoSummarizer_WritesOnceUntilMoreTurns(t *testing.T) {
	repo := &memRepo{}
	seedTurns(repo, 1, 15)
	seedTurns(repo, 2, 30)

	a := NewAutoSummarizer(repo, 15, 80, nil)
	a.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	done, err := a.SummarizeIfNeeded(ctx, 1)
	require.NoError(t, err)
	require.True(t, done)

	sums := repo.summaries()
	require.Len(t, sums, 1)
	assert.Equal(t, int64(1), sums[0].SessionID)
	assert.Equal(t, fixedNow, sums[0].CreatedAt)
	assert.Contains(t, sums[0].Content, "message number 14 about cats")

	done, err = a.SummarizeIfNeeded(ctx, 1)
	require.NoError(t, err)
	assert.False(t, done, "no new turns since the last summary")

	seedTurns(repo, 1, 15)
	done, err = a.SummarizeIfNeeded(ctx, 1)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestAutoSummarizer_InvalidSessionAndErrors(t *testing.T) {
	repo := &memRepo{listErr: errors.New("disk gone")}
	a := NewAutoSummarizer(repo, 0, 0, nil)

	done, err := a.SummarizeIfNeeded(context.Background(), 0)
	assert.NoError(t, err)
	assert.False(t, done)

	_, err = a.SummarizeIfNeeded(context.Background(), 1)
	assert.ErrorContains(t, err, "disk gone")
}

func TestSleepConsolidator_OncePerDay(t *testing.T) {
	repo := &memRepo{sessions: []Session{{ID: 7}}}
	seedTurns(repo, 7, 25)

	s := NewSleepConsolidator(repo, 20, nil)
	day := fixedNow
	s.now = func() time.Time { return day }
	ctx := context.Background()

	done, err := s.TryConsolidate(ctx)
	require.NoError(t, err)
	require.True(t, done)
	require.Len(t, repo.summaries(), 1)
	assert.Equal(t, int64(7), repo.summaries()[0].SessionID)

	done, err = s.TryConsolidate(ctx)
	require.NoError(t, err)
	assert.False(t, done, "second pass on the same day")

	day = fixedNow.Add(24 * time.Hour)
	done, err = s.TryConsolidate(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestSleepConsolidator_TooFewTurnsMarksDay(t *testing.T) {
	repo := &memRepo{sessions: []Session{{ID: 1}}}
	seedTurns(repo, 1, 5)

	s := NewSleepConsolidator(repo, 20, nil)
	s.now = func() time.Time { return fixedNow }

	done, err := s.TryConsolidate(context.Background())
	require.NoError(t, err)
	assert.False(t, done)

	seedTurns(repo, 1, 30)
	done, err = s.TryConsolidate(context.Background())
	require.NoError(t, err)
	assert.False(t, done, "day already marked")
}

func TestSleepConsolidator_NoSession(t *testing.T) {
	repo := &memRepo{}
	seedTurns(repo, 1, 25)

	s := NewSleepConsolidator(repo, 20, nil)
	done, err := s.TryConsolidate(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
}

func TestSleepConsolidator_StopEndsRun(t *testing.T) {
	s := NewSleepConsolidator(&memRepo{}, 20, nil)
	done := make(chan struct{})
	go func() {
		s.Run(context.Background(), time.Hour)
		close(done)
	}()

	// Stop may race with Run creating its channel; retry until Run returns.
	deadline := time.After(2 * time.Second)
	for {
		s.Stop()
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("Run did not return after Stop")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
