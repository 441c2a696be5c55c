// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{
		current: initial,
	}
	clock.waitersChanged = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for testing. Time advances only
// when Advance is called. Timers and sleeps block until the clock is
// advanced past their deadline.
type FakeClock struct {
	mu             sync.Mutex
	current        time.Time
	waiters        []*fakeWaiter
	waitersChanged *sync.Cond
}

// fakeWaiter is a pending After, NewTimer, or Sleep registration.
type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time

	// fired is set once the waiter has delivered its value.
	fired bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives after duration d elapses. If
// d <= 0, the channel receives immediately without registering a
// waiter.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	waiter := &fakeWaiter{channel: channel}
	c.armLocked(waiter, d)
	return channel
}

// NewTimer returns a Timer that fires when the clock advances past
// now + d.
func (c *FakeClock) NewTimer(d time.Duration) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	waiter := &fakeWaiter{channel: channel}
	c.armLocked(waiter, d)

	return &Timer{
		C: channel,
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := c.removeLocked(waiter)
			drain(channel)
			return wasActive
		},
		resetFunc: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := c.removeLocked(waiter)
			drain(channel)
			c.armLocked(waiter, d)
			return wasActive
		},
	}
}

// Sleep pauses the calling goroutine until the clock advances past
// the deadline. If d <= 0, returns immediately.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline falls within the new time, in deadline order. Sends are
// non-blocking and happen under the clock's lock, so a concurrent
// Stop or Reset either removes the waiter before it fires or drains
// the value it delivered.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)

	var due, remaining []*fakeWaiter
	for _, waiter := range c.waiters {
		if waiter.deadline.After(c.current) {
			remaining = append(remaining, waiter)
		} else {
			due = append(due, waiter)
		}
	}
	c.waiters = remaining

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, waiter := range due {
		waiter.fired = true
		select {
		case waiter.channel <- c.current:
		default:
		}
	}
	if len(due) > 0 {
		c.waitersChanged.Broadcast()
	}
}

// WaitForTimers blocks until at least n waiters are pending
// (registered but not yet fired or stopped).
//
// Example:
//
//	go func() { fakeClock.Sleep(5 * time.Second) }()
//	fakeClock.WaitForTimers(1)         // blocks until Sleep registers
//	fakeClock.Advance(5 * time.Second) // deterministically fires
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.waitersChanged.Wait()
	}
}

// PendingCount returns the number of pending waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// armLocked schedules waiter to fire at now + d, or fires it
// immediately when d <= 0. Must be called with c.mu held.
func (c *FakeClock) armLocked(waiter *fakeWaiter, d time.Duration) {
	waiter.fired = false
	if d <= 0 {
		waiter.fired = true
		waiter.channel <- c.current
		return
	}
	waiter.deadline = c.current.Add(d)
	c.waiters = append(c.waiters, waiter)
	c.waitersChanged.Broadcast()
}

// removeLocked drops waiter from the pending list and reports whether
// it was pending. Must be called with c.mu held.
func (c *FakeClock) removeLocked(target *fakeWaiter) bool {
	for i, waiter := range c.waiters {
		if waiter == target {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			c.waitersChanged.Broadcast()
			return true
		}
	}
	return false
}

// drain discards an undelivered value so the next receive observes
// only the current arming.
func drain(channel chan time.Time) {
	select {
	case <-channel:
	default:
	}
}
