package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"veggiemarket/internal/models"
	"veggiemarket/internal/realtime"
	"veggiemarket/internal/storage"
)

// Manager hands out one Gate per device, creating it on first use. Gates left
// idle are dropped by Cleanup and restored from storage when the device
// returns.
type Manager struct {
	mu       sync.RWMutex
	gates    map[string]*entry
	verifier CredentialVerifier
	store    storage.KeyValue
	opts     []Option
	now      func() time.Time
}

type entry struct {
	gate     *Gate
	lastSeen atomic.Int64 // unix nanos
}

// NewManager creates a Manager whose gates share verifier and keep their
// data in store, scoped by device id.
func NewManager(verifier CredentialVerifier, store storage.KeyValue, opts ...Option) *Manager {
	return &Manager{
		gates:    make(map[string]*entry),
		verifier: verifier,
		store:    store,
		opts:     opts,
		now:      time.Now,
	}
}

// Gate returns the device's gate, restoring it from storage if needed.
func (m *Manager) Gate(ctx context.Context, deviceID string) (*Gate, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is empty")
	}

	m.mu.RLock()
	e, ok := m.gates[deviceID]
	m.mu.RUnlock()
	if ok {
		e.lastSeen.Store(m.now().UnixNano())
		return e.gate, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.gates[deviceID]; ok {
		e.lastSeen.Store(m.now().UnixNano())
		return e.gate, nil
	}
	g, err := m.Detached(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	e = &entry{gate: g}
	e.lastSeen.Store(m.now().UnixNano())
	m.gates[deviceID] = e
	return g, nil
}

// Detached builds a gate for deviceID without keeping it. Its state still
// lives in storage, so a later Gate call for the same device picks it up.
// Product changes are not pushed into detached gates.
func (m *Manager) Detached(ctx context.Context, deviceID string) (*Gate, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is empty")
	}
	return NewGate(ctx, m.verifier, storage.Scope(m.store, deviceID), m.opts...)
}

// Logout signs the device out and tears its gate down.
func (m *Manager) Logout(ctx context.Context, deviceID string) error {
	m.mu.RLock()
	e, ok := m.gates[deviceID]
	m.mu.RUnlock()

	var g *Gate
	if ok {
		g = e.gate
	} else {
		var err error
		if g, err = m.Detached(ctx, deviceID); err != nil {
			return err
		}
	}
	if err := g.Logout(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.gates, deviceID)
	m.mu.Unlock()
	return nil
}

// Cleanup drops gates unused for at least maxIdle and returns how many remain.
func (m *Manager) Cleanup(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle).UnixNano()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.gates {
		if e.lastSeen.Load() <= cutoff {
			delete(m.gates, id)
		}
	}
	return len(m.gates)
}

// Len returns the number of live gates.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.gates)
}

// HandleProductChange pushes a product update or delete into every live
// cart that holds the product.
func (m *Manager) HandleProductChange(ctx context.Context, ch realtime.Change) error {
	if ch.Table != realtime.TableProducts || ch.Op == realtime.OpInsert {
		return nil
	}
	var updated models.Product
	if ch.Op == realtime.OpUpdate {
		if err := json.Unmarshal(ch.Record, &updated); err != nil {
			return fmt.Errorf("failed to decode product %s: %w", ch.ID, err)
		}
	}

	m.mu.RLock()
	gates := make([]*Gate, 0, len(m.gates))
	for _, e := range m.gates {
		gates = append(gates, e.gate)
	}
	m.mu.RUnlock()

	refresh := func(current models.Product) (models.Product, bool) {
		switch {
		case current.ID != ch.ID:
			return current, true
		case ch.Op == realtime.OpDelete:
			return models.Product{}, false
		default:
			return updated, true
		}
	}
	var firstErr error
	for _, g := range gates {
		if err := g.Cart().RefreshProducts(ctx, refresh); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
