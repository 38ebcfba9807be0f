package control

import (
	"context"
	"errors"
)

// DefaultQueueSize bounds the number of commands waiting for the next tick.
const DefaultQueueSize = 256

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("control queue closed")

// Sender accepts commands for delivery to the host loop.
type Sender interface {
	Send(ctx context.Context, cmd Command) error
}

// Queue is a bounded FIFO of commands. Any goroutine may Send; only the host
// loop drains.
type Queue struct {
	ch   chan Command
	done chan struct{}
}

func NewQueue(size int) *Queue {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &Queue{
		ch:   make(chan Command, size),
		done: make(chan struct{}),
	}
}

// Send enqueues cmd, blocking while the queue is full until ctx is done.
func (q *Queue) Send(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- cmd:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues cmd without blocking and reports whether it was accepted.
func (q *Queue) TrySend(cmd Command) bool {
	if cmd.Validate() != nil {
		return false
	}
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.ch <- cmd:
		return true
	default:
		return false
	}
}

// Drain appends every queued command to dst in arrival order and returns it.
// It never blocks.
func (q *Queue) Drain(dst []Command) []Command {
	for {
		select {
		case cmd := <-q.ch:
			dst = append(dst, cmd)
		default:
			return dst
		}
	}
}

// Len returns the number of queued commands.
func (q *Queue) Len() int { return len(q.ch) }

// Close stops further sends. Commands already queued can still be drained.
func (q *Queue) Close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}
