// Package session tracks who is signed in on a device and which cart
// partition is active for them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"veggiemarket/internal/cart"
	"veggiemarket/internal/models"
	"veggiemarket/internal/storage"
)

// IdentityKey is where the signed-in identity is persisted in device storage.
const IdentityKey = "user"

// Gate is the identity state of one device. It owns the device's cart engine
// and swaps its partition whenever the identity changes.
type Gate struct {
	mu       sync.Mutex
	verifier CredentialVerifier
	store    storage.KeyValue
	cart     *cart.Engine
	current  *models.Identity
	latency  time.Duration
}

// Option configures a Gate.
type Option func(*Gate)

// WithLatency delays every auth call by d, honouring context cancellation.
func WithLatency(d time.Duration) Option {
	return func(g *Gate) { g.latency = d }
}

// NewGate restores the persisted identity from store, if any, and opens the
// matching cart partition.
func NewGate(ctx context.Context, verifier CredentialVerifier, store storage.KeyValue, opts ...Option) (*Gate, error) {
	g := &Gate{verifier: verifier, store: store}
	for _, opt := range opts {
		opt(g)
	}

	raw, err := store.Get(ctx, IdentityKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to restore session: %w", err)
	default:
		var id models.Identity
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		g.current = &id
	}

	engine, err := cart.Open(ctx, store, cart.PartitionKey(g.userID()))
	if err != nil {
		return nil, err
	}
	g.cart = engine
	return g, nil
}

func (g *Gate) userID() string {
	if g.current == nil {
		return ""
	}
	return g.current.ID
}

// Current returns the signed-in identity.
func (g *Gate) Current() (models.Identity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return models.Identity{}, false
	}
	return *g.current, true
}

// Cart returns the device's cart engine.
func (g *Gate) Cart() *cart.Engine {
	return g.cart
}

// Login verifies the credentials and makes the identity active. On failure
// the gate keeps its current identity and cart partition.
func (g *Gate) Login(ctx context.Context, email, password string) (models.Identity, error) {
	if err := g.wait(ctx); err != nil {
		return models.Identity{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := g.verifier.Verify(ctx, email, password)
	if err != nil {
		return models.Identity{}, err
	}
	if err := g.activate(ctx, id); err != nil {
		return models.Identity{}, err
	}
	return id, nil
}

// Register creates a non-admin identity and makes it active.
func (g *Gate) Register(ctx context.Context, email, password, name string) (models.Identity, error) {
	if err := g.wait(ctx); err != nil {
		return models.Identity{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := g.verifier.Register(ctx, email, password, name)
	if err != nil {
		return models.Identity{}, err
	}
	if err := g.activate(ctx, id); err != nil {
		return models.Identity{}, err
	}
	return id, nil
}

// Logout clears the identity and purges both its cart and the guest cart.
func (g *Gate) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	keys := []string{IdentityKey, cart.GuestPartition}
	if g.current != nil {
		keys = append(keys, cart.PartitionKey(g.current.ID))
	}
	for _, k := range keys {
		if err := g.store.Delete(ctx, k); err != nil {
			return fmt.Errorf("failed to purge %s: %w", k, err)
		}
	}
	g.current = nil
	return g.cart.SwitchPartition(ctx, cart.GuestPartition)
}

func (g *Gate) activate(ctx context.Context, id models.Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	previous := g.cart.Key()
	if err := g.cart.SwitchPartition(ctx, cart.PartitionKey(id.ID)); err != nil {
		return err
	}
	if err := g.store.Set(ctx, IdentityKey, raw); err != nil {
		if backErr := g.cart.SwitchPartition(ctx, previous); backErr != nil {
			err = errors.Join(err, backErr)
		}
		return fmt.Errorf("failed to persist session: %w", err)
	}
	g.current = &id
	return nil
}

func (g *Gate) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
