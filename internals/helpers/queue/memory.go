package queue

import (
	"context"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
)

// Memory is an in-process queue for local runs and tests. Messages are lost on restart.
type Memory struct {
	ch     chan Message
	seq    atomic.Int64
	once   sync.Once
	closed chan struct{}
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 256
	}
	return &Memory{ch: make(chan Message, capacity), closed: make(chan struct{})}
}

func (m *Memory) Enqueue(ctx context.Context, body []byte) (string, error) {
	id := strconv.FormatInt(m.seq.Add(1), 10)
	select {
	case <-m.closed:
		return "", ErrClosed
	default:
	}
	select {
	case m.ch <- Message{ID: id, Body: append([]byte(nil), body...)}:
		return id, nil
	case <-m.closed:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Memory) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return ErrClosed
		case msg := <-m.ch:
			if err := h(ctx, msg); err != nil {
				log.Printf("[QUEUE] memory message %s: %v", msg.ID, err)
			}
		}
	}
}

// Len reports messages waiting to be consumed.
func (m *Memory) Len() int { return len(m.ch) }

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}
