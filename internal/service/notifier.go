package service

import "context"

// Notifier delivers short operator messages. Delivery failures never fail the caller.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) error { return nil }

// NopNotifier discards every message.
func NopNotifier() Notifier { return nopNotifier{} }
