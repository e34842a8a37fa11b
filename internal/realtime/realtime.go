// Package realtime carries table change events between the repositories
// that write rows and the caches that mirror them.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

const (
	TableProducts = "products"
	TableOrders   = "orders"
	TableProfiles = "profiles"
)

// Change describes one row change. Record holds the row after the change and
// is empty for deletes.
type Change struct {
	Table  string          `json:"table"`
	Op     Op              `json:"op"`
	ID     string          `json:"id"`
	Record json.RawMessage `json:"record,omitempty"`
	At     time.Time       `json:"at"`
}

// NewChange builds a Change, encoding record when it is not nil.
func NewChange(table string, op Op, id string, record any) (Change, error) {
	c := Change{Table: table, Op: op, ID: id, At: time.Now().UTC()}
	if record != nil && op != OpDelete {
		raw, err := json.Marshal(record)
		if err != nil {
			return Change{}, fmt.Errorf("failed to encode %s record %s: %w", table, id, err)
		}
		c.Record = raw
	}
	return c, nil
}

// Handler reacts to a change. Errors are logged by the broker and do not stop
// delivery to other handlers.
type Handler func(ctx context.Context, c Change) error

// Broker publishes changes and fans them out to subscribers of the table.
type Broker interface {
	Publish(ctx context.Context, c Change) error
	Subscribe(table string, h Handler)
	Close() error
}

// ErrorFunc receives handler failures.
type ErrorFunc func(c Change, err error)

// subscribers is the table → handlers registry shared by both brokers.
type subscribers struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	onError  ErrorFunc
}

func (s *subscribers) add(table string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[string][]Handler)
	}
	s.handlers[table] = append(s.handlers[table], h)
}

func (s *subscribers) dispatch(ctx context.Context, c Change) {
	s.mu.RLock()
	hs := append([]Handler(nil), s.handlers[c.Table]...)
	s.mu.RUnlock()

	for _, h := range hs {
		if err := h(ctx, c); err != nil && s.onError != nil {
			s.onError(c, err)
		}
	}
}
