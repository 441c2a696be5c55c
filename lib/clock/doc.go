// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock instead of calling time.Now,
// time.After, time.NewTimer, or time.Sleep directly. In production,
// Real() provides the standard library behavior. In tests, Fake()
// provides a deterministic clock that advances only when Advance is
// called.
//
// # Wiring Pattern
//
// Add a Clock field to structs that use time:
//
//	type Scheduler struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	s := &Scheduler{clock: c}
//	// ... start goroutines ...
//	c.WaitForTimers(1)             // wait for the goroutine to arm a timer
//	c.Advance(100 * time.Millisecond) // fire it deterministically
//
// # FakeClock Synchronization
//
// When a goroutine calls After, NewTimer, Timer.Reset, or Sleep on a
// FakeClock, it registers a pending waiter. WaitForTimers blocks until
// a given number of waiters are pending, which removes the race
// between timer registration and time advancement. Timer.Stop and
// Timer.Reset remove the waiter and discard any undelivered value, so
// a loop that stops and re-arms its timer every iteration never sees a
// stale fire and never leaves duplicate waiters behind.
package clock
