// Package storage holds the per-device key/value store that carts and the
// persisted session identity live in.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// KeyValue is a durable string-keyed blob store.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type scoped struct {
	kv     KeyValue
	prefix string
}

// Scope returns a view of kv whose keys are namespaced under namespace, so
// one backing store can hold the data of many devices.
func Scope(kv KeyValue, namespace string) KeyValue {
	return &scoped{kv: kv, prefix: "device:" + namespace + ":"}
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.kv.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.kv.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, s.prefix+key)
}
