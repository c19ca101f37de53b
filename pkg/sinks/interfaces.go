package sinks

import "context"

// Sink delivers calculation result events to a downstream system (HTTP, SQS, etc).
type Sink interface {
	ID() string
	Type() string
	Send(ctx context.Context, evt Event) error
}
