// Package queue is the hand-off point between request handlers and
// background workers. Delivery is at-least-once: a message is acknowledged
// only after its handler returned.
package queue

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("queue: closed")

type Message struct {
	ID   string
	Body []byte
}

type Handler func(ctx context.Context, msg Message) error

type Producer interface {
	Enqueue(ctx context.Context, body []byte) (string, error)
}

type Consumer interface {
	// Consume blocks, calling h for each message until ctx is done.
	Consume(ctx context.Context, h Handler) error
}

type Queue interface {
	Producer
	Consumer
	Close() error
}
