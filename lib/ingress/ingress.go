// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingress provides the bounded queue between observer calls
// and the batch scheduler.
//
// Any number of goroutines may call [Queue.TrySend] concurrently; it
// never blocks. Exactly one consumer reads [Queue.Events] and watches
// [Queue.Done] for the shutdown signal. The data channel itself is
// never closed, so a producer racing with Close gets ErrClosed rather
// than a send-on-closed-channel panic.
package ingress

import (
	"errors"
	"sync"

	"github.com/gossipwatch/gossipwatch/lib/event"
)

// DefaultCapacity is the queue size used when none is configured.
const DefaultCapacity = 10000

var (
	// ErrFull is returned by TrySend when the queue holds Cap events.
	ErrFull = errors.New("ingress: queue full")

	// ErrClosed is returned by TrySend after Close.
	ErrClosed = errors.New("ingress: queue closed")
)

// Queue is a bounded multi-producer, single-consumer FIFO of events.
type Queue struct {
	events chan event.Event
	done   chan struct{}
	once   sync.Once
}

// New returns a queue holding at most capacity events. A capacity
// below one selects DefaultCapacity.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Queue{
		events: make(chan event.Event, capacity),
		done:   make(chan struct{}),
	}
}

// TrySend enqueues record without blocking. It returns ErrFull when
// the queue is at capacity and ErrClosed once Close has been called.
func (q *Queue) TrySend(record event.Event) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.events <- record:
		return nil
	default:
		return ErrFull
	}
}

// Events returns the receive side for the single consumer.
func (q *Queue) Events() <-chan event.Event {
	return q.events
}

// Done is closed by Close. The consumer stops when it observes Done.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Close signals shutdown. Safe to call more than once and from any
// goroutine. Events still buffered are left for the consumer to
// discard.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.events)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.events)
}
