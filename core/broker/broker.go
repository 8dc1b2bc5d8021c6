package broker

import (
	"context"
	"github.com/balizero/agentcore/core/message"
	"io"
)

type Producer interface {
	Produce(ctx context.Context, msgs ...*message.Msg) error
}
type Consumer interface {
	Consume(ctx context.Context) (*message.Msg, message.ID, error)
	Ack(ctx context.Context, id message.ID) error
	// Nack signals failed processing so the backend can redeliver or
	// route to a dead-letter destination; backends without native nack
	// support (e.g. offset-committing consumer groups) may treat it as
	// a no-op, documented at the call site.
	Nack(ctx context.Context, id message.ID) error
}

type Broker interface {
	Producer
	Consumer
	io.Closer
}
