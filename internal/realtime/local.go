package realtime

import "context"

// LocalBroker delivers changes synchronously inside the process, in publish
// order.
type LocalBroker struct {
	subs subscribers
}

// NewLocalBroker creates a LocalBroker. onError may be nil.
func NewLocalBroker(onError ErrorFunc) *LocalBroker {
	return &LocalBroker{subs: subscribers{onError: onError}}
}

func (b *LocalBroker) Publish(ctx context.Context, c Change) error {
	b.subs.dispatch(ctx, c)
	return nil
}

func (b *LocalBroker) Subscribe(table string, h Handler) {
	b.subs.add(table, h)
}

func (b *LocalBroker) Close() error { return nil }
