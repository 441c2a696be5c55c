// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfterFiresOnAdvance(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(3 * time.Second)

	clock.Advance(2 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	clock.Advance(1 * time.Second)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at its deadline")
	}
	if pending := clock.PendingCount(); pending != 0 {
		t.Fatalf("PendingCount = %d after firing, want 0", pending)
	}
}

func TestFakeClockAfterNonPositiveDuration(t *testing.T) {
	clock := Fake(epoch)
	for _, duration := range []time.Duration{0, -time.Second} {
		select {
		case <-clock.After(duration):
		default:
			t.Fatalf("After(%v) should fire immediately", duration)
		}
	}
	if pending := clock.PendingCount(); pending != 0 {
		t.Fatalf("PendingCount = %d, want 0", pending)
	}
}

func TestFakeTimerStop(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.NewTimer(time.Second)

	if !timer.Stop() {
		t.Fatal("Stop on an armed timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}

	clock.Advance(2 * time.Second)
	select {
	case <-timer.C:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFakeTimerStopDiscardsUndeliveredFire(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.NewTimer(time.Second)

	clock.Advance(time.Second)
	if timer.Stop() {
		t.Fatal("Stop after firing returned true")
	}
	select {
	case <-timer.C:
		t.Fatal("stale fire observed after Stop")
	default:
	}
}

func TestFakeTimerResetDoesNotDuplicateWaiters(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.NewTimer(time.Second)

	for i := 0; i < 5; i++ {
		timer.Stop()
		timer.Reset(100 * time.Millisecond)
	}
	if pending := clock.PendingCount(); pending != 1 {
		t.Fatalf("PendingCount = %d after repeated Reset, want 1", pending)
	}

	clock.Advance(100 * time.Millisecond)
	select {
	case fired := <-timer.C:
		if want := epoch.Add(100 * time.Millisecond); !fired.Equal(want) {
			t.Fatalf("fired at %v, want %v", fired, want)
		}
	default:
		t.Fatal("reset timer did not fire")
	}
}

func TestFakeTimerResetMovesDeadline(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.NewTimer(time.Second)

	clock.Advance(900 * time.Millisecond)
	if !timer.Reset(time.Second) {
		t.Fatal("Reset on an armed timer returned false")
	}

	// The original deadline passes without a fire.
	clock.Advance(200 * time.Millisecond)
	select {
	case <-timer.C:
		t.Fatal("timer fired at its old deadline")
	default:
	}

	clock.Advance(800 * time.Millisecond)
	select {
	case <-timer.C:
	default:
		t.Fatal("timer did not fire at its new deadline")
	}
}

func TestFakeClockFiresInDeadlineOrder(t *testing.T) {
	clock := Fake(epoch)
	late := clock.NewTimer(3 * time.Second)
	early := clock.NewTimer(time.Second)

	clock.Advance(5 * time.Second)

	// Both fire with the post-advance time; each receives exactly one value.
	for name, timer := range map[string]*Timer{"early": early, "late": late} {
		select {
		case <-timer.C:
		default:
			t.Fatalf("%s timer did not fire", name)
		}
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})

	go func() {
		clock.Sleep(5 * time.Second)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(5 * time.Second)
	<-done
}

func TestRealClockTimer(t *testing.T) {
	clock := Real()
	timer := clock.NewTimer(time.Millisecond)
	select {
	case <-timer.C:
	case <-time.After(5 * time.Second):
		t.Fatal("real timer did not fire")
	}
	if clock.Now().IsZero() {
		t.Fatal("Real().Now() returned the zero time")
	}
}
