package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"veggiemarket/internal/cart"
	"veggiemarket/internal/models"
	"veggiemarket/internal/realtime"
	"veggiemarket/internal/session"
	"veggiemarket/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGate(t *testing.T, store storage.KeyValue) *session.Gate {
	t.Helper()
	g, err := session.NewGate(context.Background(), session.NewStaticVerifier(session.DemoAccounts()...), store)
	require.NoError(t, err)
	return g
}

func item(id string) models.Product {
	return models.Product{ID: id, Name: id, Price: decimal.NewFromInt(10)}
}

func TestGate_LoginAdmin(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, storage.NewMemory())

	id, err := g.Login(ctx, "ADMIN@veggiemarket.com", "admin123")
	require.NoError(t, err)
	assert.True(t, id.IsAdmin)
	assert.Equal(t, "admin@veggiemarket.com", id.Email)

	cur, ok := g.Current()
	require.True(t, ok)
	assert.Equal(t, id, cur)
	assert.Equal(t, "cart_1", g.Cart().Key())
}

func TestGate_LoginWrongPassword(t *testing.T) {
	g := newGate(t, storage.NewMemory())

	_, err := g.Login(context.Background(), "admin@veggiemarket.com", "Admin123")
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)

	_, ok := g.Current()
	assert.False(t, ok)
	assert.Equal(t, cart.GuestPartition, g.Cart().Key())
}

func TestGate_Register(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, storage.NewMemory())

	_, err := g.Register(ctx, "User@VeggieMarket.com", "secret1", "Dup")
	assert.ErrorIs(t, err, session.ErrEmailTaken)

	id, err := g.Register(ctx, "new@example.com", "secret1", "New Person")
	require.NoError(t, err)
	assert.False(t, id.IsAdmin)
	assert.NotEmpty(t, id.ID)

	cur, ok := g.Current()
	require.True(t, ok)
	assert.Equal(t, "New Person", cur.Name)

	// the new account can sign in again
	require.NoError(t, g.Logout(ctx))
	_, err = g.Login(ctx, "NEW@example.com", "secret1")
	assert.NoError(t, err)
}

func TestGate_GuestCartNotVisibleToUser(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, storage.NewMemory())

	require.NoError(t, g.Cart().Add(ctx, item("x"), 1))

	_, err := g.Login(ctx, "user@veggiemarket.com", "user123")
	require.NoError(t, err)
	assert.Empty(t, g.Cart().Items())

	require.NoError(t, g.Cart().Add(ctx, item("y"), 2))
	items := g.Cart().Items()
	require.Len(t, items, 1)
	assert.Equal(t, "y", items[0].Product.ID)
}

func TestGate_LogoutPurgesCarts(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	g := newGate(t, mem)

	require.NoError(t, g.Cart().Add(ctx, item("guest-item"), 1))
	_, err := g.Login(ctx, "user@veggiemarket.com", "user123")
	require.NoError(t, err)
	require.NoError(t, g.Cart().Add(ctx, item("user-item"), 1))

	require.NoError(t, g.Logout(ctx))

	_, ok := g.Current()
	assert.False(t, ok)
	assert.Equal(t, cart.GuestPartition, g.Cart().Key())
	assert.Empty(t, g.Cart().Items())
	assert.Equal(t, 0, mem.Len())
}

func TestGate_RestoresSession(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	g := newGate(t, mem)

	_, err := g.Login(ctx, "user@veggiemarket.com", "user123")
	require.NoError(t, err)
	require.NoError(t, g.Cart().Add(ctx, item("kept"), 3))

	reloaded := newGate(t, mem)
	cur, ok := reloaded.Current()
	require.True(t, ok)
	assert.Equal(t, "2", cur.ID)
	assert.Equal(t, 3, reloaded.Cart().TotalItems())
}

func TestGate_LatencyHonoursContext(t *testing.T) {
	g, err := session.NewGate(context.Background(), session.NewStaticVerifier(session.DemoAccounts()...),
		storage.NewMemory(), session.WithLatency(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Login(ctx, "admin@veggiemarket.com", "admin123")
	assert.ErrorIs(t, err, context.Canceled)

	_, ok := g.Current()
	assert.False(t, ok)
}

// failingSets fails writes to key once err is set.
type failingSets struct {
	storage.KeyValue
	key string
	err error
}

func (f *failingSets) Set(ctx context.Context, key string, value []byte) error {
	if key == f.key && f.err != nil {
		return f.err
	}
	return f.KeyValue.Set(ctx, key, value)
}

func TestGate_FailedLoginKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	store := &failingSets{KeyValue: storage.NewMemory(), key: session.IdentityKey}
	g := newGate(t, store)

	_, err := g.Login(ctx, "user@veggiemarket.com", "user123")
	require.NoError(t, err)
	require.NoError(t, g.Cart().Add(ctx, item("p1"), 1))

	store.err = errors.New("disk full")
	_, err = g.Login(ctx, "admin@veggiemarket.com", "admin123")
	assert.ErrorIs(t, err, store.err)

	id, ok := g.Current()
	require.True(t, ok)
	assert.Equal(t, "user@veggiemarket.com", id.Email)
	assert.Equal(t, cart.PartitionKey(id.ID), g.Cart().Key())
	assert.Equal(t, 1, g.Cart().TotalItems())

	// a restart restores the same identity
	restored := newGate(t, store)
	again, ok := restored.Current()
	require.True(t, ok)
	assert.Equal(t, id.ID, again.ID)
}

func TestGate_FailedFirstLoginStaysGuest(t *testing.T) {
	ctx := context.Background()
	store := &failingSets{KeyValue: storage.NewMemory(), key: session.IdentityKey, err: errors.New("disk full")}
	g := newGate(t, store)
	require.NoError(t, g.Cart().Add(ctx, item("p1"), 2))

	_, err := g.Login(ctx, "user@veggiemarket.com", "user123")
	assert.Error(t, err)

	_, ok := g.Current()
	assert.False(t, ok)
	assert.Equal(t, cart.GuestPartition, g.Cart().Key())
	assert.Equal(t, 2, g.Cart().TotalItems())
}

func TestManager_GatesPerDevice(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(session.NewStaticVerifier(session.DemoAccounts()...), storage.NewMemory())

	a, err := m.Gate(ctx, "device-a")
	require.NoError(t, err)
	b, err := m.Gate(ctx, "device-b")
	require.NoError(t, err)
	again, err := m.Gate(ctx, "device-a")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)

	require.NoError(t, a.Cart().Add(ctx, item("p"), 1))
	assert.Empty(t, b.Cart().Items())

	_, err = m.Gate(ctx, "")
	assert.Error(t, err)
}

func TestManager_LogoutTearsDownGate(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(session.NewStaticVerifier(session.DemoAccounts()...), storage.NewMemory())

	g, err := m.Gate(ctx, "device-a")
	require.NoError(t, err)
	_, err = g.Login(ctx, "user@veggiemarket.com", "user123")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, "device-a"))
	assert.Equal(t, 0, m.Len())

	fresh, err := m.Gate(ctx, "device-a")
	require.NoError(t, err)
	assert.NotSame(t, g, fresh)
	_, ok := fresh.Current()
	assert.False(t, ok)
}

func TestManager_CleanupDropsIdleGates(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(session.NewStaticVerifier(session.DemoAccounts()...), storage.NewMemory())

	g, err := m.Gate(ctx, "device-a")
	require.NoError(t, err)
	_, err = g.Login(ctx, "user@veggiemarket.com", "user123")
	require.NoError(t, err)
	require.NoError(t, g.Cart().Add(ctx, item("p1"), 2))

	assert.Equal(t, 1, m.Cleanup(time.Hour))
	assert.Equal(t, 0, m.Cleanup(0))
	assert.Equal(t, 0, m.Len())

	// the device comes back to the same identity and cart
	restored, err := m.Gate(ctx, "device-a")
	require.NoError(t, err)
	assert.NotSame(t, g, restored)
	id, ok := restored.Current()
	require.True(t, ok)
	assert.Equal(t, "user@veggiemarket.com", id.Email)
	assert.Equal(t, 2, restored.Cart().TotalItems())
}

func TestManager_DetachedGatesAreNotKept(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(session.NewStaticVerifier(session.DemoAccounts()...), storage.NewMemory())

	for range 5 {
		g, err := m.Detached(ctx, "minted-device")
		require.NoError(t, err)
		require.NoError(t, g.Cart().Add(ctx, item("p1"), 1))
	}
	assert.Equal(t, 0, m.Len())

	// storage still carries the state to a kept gate
	g, err := m.Gate(ctx, "minted-device")
	require.NoError(t, err)
	assert.Equal(t, 5, g.Cart().TotalItems())

	require.NoError(t, m.Logout(ctx, "other-device"))
	assert.Equal(t, 1, m.Len())
}

func TestManager_HandleProductChange(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(session.NewStaticVerifier(), storage.NewMemory())
	g, err := m.Gate(ctx, "device-a")
	require.NoError(t, err)

	require.NoError(t, g.Cart().Add(ctx, item("p1"), 2))
	require.NoError(t, g.Cart().Add(ctx, item("p2"), 1))

	repriced := item("p1")
	repriced.Price = decimal.NewFromInt(15)
	upd, err := realtime.NewChange(realtime.TableProducts, realtime.OpUpdate, "p1", repriced)
	require.NoError(t, err)
	require.NoError(t, m.HandleProductChange(ctx, upd))
	assert.True(t, decimal.NewFromInt(40).Equal(g.Cart().Subtotal()))

	del, err := realtime.NewChange(realtime.TableProducts, realtime.OpDelete, "p2", nil)
	require.NoError(t, err)
	require.NoError(t, m.HandleProductChange(ctx, del))

	items := g.Cart().Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].Product.ID)
}
