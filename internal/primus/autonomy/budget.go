package autonomy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// Settings keys in the key/value store.
const (
	BudgetKey  = "autonomy.budget"
	ConsentKey = "autonomy.consent"
)

// DefaultBudget is the allowance before anything has been consumed.
const DefaultBudget = 10

// KV is the key/value store the budget and consent gate persist to. Get must
// return an error matching NotFound for absent keys.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Budget limits how many autonomous actions may run.
type Budget interface {
	// Check reports whether any allowance is left.
	Check(ctx context.Context) (bool, error)
	// Consume subtracts cost. Non-positive costs are ignored.
	Consume(ctx context.Context, cost int) error
}

// KVBudget is a Budget persisted as an integer under BudgetKey. It is the
// only writer of that key.
type KVBudget struct {
	kv       KV
	notFound error
	initial  int

	mu sync.Mutex
}

// NewKVBudget creates a budget over kv. notFound is the error kv returns for
// a missing key; initial is the allowance assumed until the first write.
func NewKVBudget(kv KV, notFound error, initial int) *KVBudget {
	return &KVBudget{kv: kv, notFound: notFound, initial: initial}
}

// Check implements Budget.
func (b *KVBudget) Check(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.load(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Consume implements Budget.
func (b *KVBudget) Consume(ctx context.Context, cost int) error {
	if cost <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.load(ctx)
	if err != nil {
		return err
	}
	if err := b.kv.Set(ctx, BudgetKey, strconv.Itoa(n-cost)); err != nil {
		return fmt.Errorf("budget: save: %w", err)
	}
	return nil
}

// Remaining returns the current allowance.
func (b *KVBudget) Remaining(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx)
}

// Reset sets the allowance to n.
func (b *KVBudget) Reset(ctx context.Context, n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.kv.Set(ctx, BudgetKey, strconv.Itoa(n)); err != nil {
		return fmt.Errorf("budget: reset: %w", err)
	}
	return nil
}

func (b *KVBudget) load(ctx context.Context) (int, error) {
	v, err := b.kv.Get(ctx, BudgetKey)
	if errors.Is(err, b.notFound) {
		return b.initial, nil
	}
	if err != nil {
		return 0, fmt.Errorf("budget: load: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("budget: corrupt value %q: %w", v, err)
	}
	return n, nil
}

// ConsentGate reports whether the user allows autonomous messages.
type ConsentGate interface {
	IsAllowed(ctx context.Context) (bool, error)
}

// KVConsent is a ConsentGate persisted as a boolean under ConsentKey.
// Consent is off until granted.
type KVConsent struct {
	kv       KV
	notFound error
}

// NewKVConsent creates a consent gate over kv.
func NewKVConsent(kv KV, notFound error) *KVConsent {
	return &KVConsent{kv: kv, notFound: notFound}
}

// IsAllowed implements ConsentGate.
func (c *KVConsent) IsAllowed(ctx context.Context) (bool, error) {
	v, err := c.kv.Get(ctx, ConsentKey)
	if errors.Is(err, c.notFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consent: load: %w", err)
	}
	allowed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("consent: corrupt value %q: %w", v, err)
	}
	return allowed, nil
}

// Set grants or revokes consent.
func (c *KVConsent) Set(ctx context.Context, allowed bool) error {
	if err := c.kv.Set(ctx, ConsentKey, strconv.FormatBool(allowed)); err != nil {
		return fmt.Errorf("consent: save: %w", err)
	}
	return nil
}
