package autonomy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// After never fires; loops under test only stop through cancellation.
func (c *fakeClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

type consentFunc func() (bool, error)

func (f consentFunc) IsAllowed(context.Context) (bool, error) { return f() }

type countingPlanner struct {
	plan  Plan
	err   error
	panic string
	calls atomic.Int32
}

func (p *countingPlanner) Next(context.Context) (Plan, error) {
	p.calls.Add(1)
	if p.panic != "" {
		panic(p.panic)
	}
	return p.plan, p.err
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type loopFixture struct {
	kv      *memKV
	budget  *KVBudget
	planner *countingPlanner
	clock   *fakeClock
	allowed atomic.Bool
	loop    *Loop
}

func newLoopFixture(t *testing.T, plan Plan, buffer int) *loopFixture {
	t.Helper()
	f := &loopFixture{
		kv:      newMemKV(),
		planner: &countingPlanner{plan: plan},
		clock:   &fakeClock{now: now},
	}
	f.allowed.Store(true)
	f.budget = NewKVBudget(f.kv, errNotFound, 3)
	consent := consentFunc(func() (bool, error) { return f.allowed.Load(), nil })
	f.loop = NewLoop(consent, f.budget, f.planner, NewSimpleCritic(), LoopConfig{
		Cooldown:    30 * time.Second,
		Clock:       f.clock,
		Logger:      quietLogger(),
		EventBuffer: buffer,
	})
	return f
}

var remind = Plan{Action: ActionRemind, Cost: 1, Reason: "periodic suggestion"}

func TestTick_ConsentOffDoesNothing(t *testing.T) {
	f := newLoopFixture(t, remind, 1)
	f.allowed.Store(false)

	res, err := f.loop.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipNoConsent, res.Skip)
	assert.Zero(t, f.planner.calls.Load(), "planner must not be asked")
	_, written := f.kv.data[BudgetKey]
	assert.False(t, written, "budget must not be touched")
	assert.Empty(t, f.loop.Events())
}

func TestTick_FiresConsumesAndPublishes(t *testing.T) {
	f := newLoopFixture(t, remind, 1)

	res, err := f.loop.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped())
	assert.Equal(t, Done("remind"), res.Result)
	assert.Equal(t, "exec=Done(what=remind)", res.Reward.Detail)

	left, err := f.budget.Remaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	select {
	case ev := <-f.loop.Events():
		assert.Equal(t, ActionRemind, ev.Plan.Action)
		assert.NotEmpty(t, ev.TraceID)
		assert.Equal(t, now, ev.At)
	default:
		t.Fatal("expected an event")
	}
}

func TestTick_Cooldown(t *testing.T) {
	f := newLoopFixture(t, remind, 4)
	ctx := context.Background()

	_, err := f.loop.Tick(ctx)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	res, err := f.loop.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, SkipCooldown, res.Skip)

	f.clock.Advance(25 * time.Second)
	res, err = f.loop.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, res.Skipped())
	assert.EqualValues(t, 2, f.planner.calls.Load())
}

func TestTick_BudgetExhausted(t *testing.T) {
	f := newLoopFixture(t, remind, 8)
	ctx := context.Background()
	require.NoError(t, f.budget.Reset(ctx, 0))

	res, err := f.loop.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, SkipNoBudget, res.Skip)
	assert.Zero(t, f.planner.calls.Load())
}

func TestTick_NoopCostsNothing(t *testing.T) {
	f := newLoopFixture(t, Plan{Action: ActionNoop, Reason: "user is active"}, 1)
	ctx := context.Background()

	res, err := f.loop.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Skipped("noop"), res.Result)
	left, err := f.budget.Remaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, left)
}

func TestTick_PlannerErrorIsReturned(t *testing.T) {
	f := newLoopFixture(t, remind, 1)
	boom := errors.New("boom")
	f.planner.err = boom

	_, err := f.loop.Tick(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.loop.Events())
}

func TestTick_DropsEventsWhenConsumerIsSlow(t *testing.T) {
	f := newLoopFixture(t, remind, 1)
	ctx := context.Background()

	_, err := f.loop.Tick(ctx)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.loop.Tick(ctx)
	require.NoError(t, err, "a full channel must not fail the tick")
	assert.Len(t, f.loop.Events(), 1)
}

func TestLoop_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newLoopFixture(t, remind, 4)
	ctx := context.Background()

	f.loop.Start(ctx)
	f.loop.Start(ctx)
	assert.True(t, f.loop.Running())

	require.Eventually(t, func() bool { return f.planner.calls.Load() == 1 },
		time.Second, 5*time.Millisecond, "first tick runs immediately")

	f.loop.Stop()
	f.loop.Stop()
	assert.False(t, f.loop.Running())
	assert.EqualValues(t, 1, f.planner.calls.Load(), "no tick after Stop")
}

func TestLoop_RunSurvivesTickErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newLoopFixture(t, remind, 1)
	f.planner.err = errors.New("planner down")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.loop.Run(ctx)
	}()

	require.Eventually(t, func() bool { return f.planner.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_RunSurvivesPanickingPlanner(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newLoopFixture(t, remind, 1)
	f.planner.panic = "nil map write"
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.loop.Run(ctx)
	}()

	require.Eventually(t, func() bool { return f.planner.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after a panicking tick")
	}

	f.planner.panic = ""
	res, err := f.loop.Tick(context.Background())
	require.NoError(t, err, "tick lock must be released after a panic")
	assert.Equal(t, ActionRemind, res.Plan.Action)
}
