package pubsub

import "context"

// Broadcaster fan-outs request events to whoever listens (dashboards, alerting)
type Broadcaster interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Health(ctx context.Context) error
}

// Noop used when no broker is configured
type Noop struct{}

func (Noop) Publish(context.Context, string, interface{}) error { return nil }

func (Noop) Health(context.Context) error { return nil }
