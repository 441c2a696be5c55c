// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds channel helpers shared by Gossipwatch tests.
//
// Pipeline tests drive time with clock.FakeClock and synchronize on
// channels their fakes signal. [RequireReceive] and [RequireClosed]
// put a wall-clock bound on those waits so a broken pipeline fails the
// test instead of hanging it; they are the only real timers the tests
// use. [RequireNoReceive] asserts that nothing has been signalled.
//
// Helpers call t.Fatalf on failure.
package testutil
