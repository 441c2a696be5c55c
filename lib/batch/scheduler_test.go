// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gossipwatch/gossipwatch/lib/bridge"
	"github.com/gossipwatch/gossipwatch/lib/clock"
	"github.com/gossipwatch/gossipwatch/lib/event"
	"github.com/gossipwatch/gossipwatch/lib/ingress"
	"github.com/gossipwatch/gossipwatch/lib/metrics"
	"github.com/gossipwatch/gossipwatch/lib/testutil"
)

var epoch = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

const waitTimeout = 5 * time.Second

// fakeSender records batches. The called channel signals after every
// SendBatch so tests can synchronize without polling.
type fakeSender struct {
	mu       sync.Mutex
	batches  [][]event.Event
	errorSeq []error
	called   chan struct{}
}

func newFakeSender(errorSeq ...error) *fakeSender {
	return &fakeSender{errorSeq: errorSeq, called: make(chan struct{}, 64)}
}

func (f *fakeSender) SendBatch(_ context.Context, events []event.Event) error {
	f.mu.Lock()
	f.batches = append(f.batches, events)
	var err error
	if index := len(f.batches) - 1; index < len(f.errorSeq) {
		err = f.errorSeq[index]
	}
	f.mu.Unlock()
	f.called <- struct{}{}
	return err
}

func (f *fakeSender) sent() [][]event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]event.Event(nil), f.batches...)
}

type harness struct {
	t         *testing.T
	clock     *clock.FakeClock
	queue     *ingress.Queue
	sender    *fakeSender
	metrics   *metrics.Metrics
	ready     atomic.Bool
	iterated  chan struct{}
	finished  chan struct{}
	scheduler *Scheduler
}

// start runs a scheduler on a fake clock. Every loop iteration is
// signalled on h.iterated, buffered to iterations.
func start(t *testing.T, capacity, maxBatchSize, iterations int, sender *fakeSender) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		clock:    clock.Fake(epoch),
		queue:    ingress.New(capacity),
		sender:   sender,
		metrics:  metrics.NewUnregistered(),
		iterated: make(chan struct{}, iterations),
		finished: make(chan struct{}),
	}
	h.ready.Store(true)
	h.scheduler = New(Config{
		Queue:        h.queue,
		Sender:       sender,
		Ready:        h.ready.Load,
		Clock:        h.clock,
		Metrics:      h.metrics,
		MaxBatchSize: maxBatchSize,
	})
	h.scheduler.afterIteration = func() { h.iterated <- struct{}{} }

	go func() {
		h.scheduler.Run(context.Background())
		close(h.finished)
	}()
	t.Cleanup(func() {
		h.queue.Close()
		testutil.RequireClosed(t, h.finished, waitTimeout, "scheduler exit")
	})
	h.clock.WaitForTimers(1)
	return h
}

// send enqueues count attestations with increasing slots starting at
// first, then waits for the scheduler to consume each one.
func (h *harness) send(t *testing.T, first, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		slot := uint64(first + i)
		record := event.NewAttestation(event.Metadata{Slot: slot, Epoch: slot / 32}, event.Attestation{AggregationBits: "0x"})
		if err := h.queue.TrySend(record); err != nil {
			t.Fatalf("TrySend %d: %v", i, err)
		}
	}
	h.waitIterations(count)
}

func (h *harness) waitIterations(count int) {
	for i := 0; i < count; i++ {
		testutil.RequireReceive(h.t, h.iterated, waitTimeout, "scheduler iteration %d", i)
	}
}

// advance moves the clock and waits for the timer iteration it causes.
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	testutil.RequireReceive(h.t, h.iterated, waitTimeout, "iteration after advancing %v", d)
}

// waitSend waits for the next SendBatch call.
func (h *harness) waitSend() {
	h.t.Helper()
	testutil.RequireReceive(h.t, h.sender.called, waitTimeout, "batch send")
}

func (h *harness) requireNoSend(t *testing.T) {
	t.Helper()
	testutil.RequireNoReceive(t, h.sender.called, "unexpected batch send")
}

func slotsOf(events []event.Event) []uint64 {
	slots := make([]uint64, len(events))
	for i, record := range events {
		slots[i] = record.Meta().Slot
	}
	return slots
}

func TestTimeTriggerFlushesAfterInterval(t *testing.T) {
	h := start(t, 100, 0, 16, newFakeSender())
	h.send(t, 0, 3)

	// The busy poll fires at 900ms, before the flush interval has
	// elapsed since the scheduler started.
	h.advance(900 * time.Millisecond)
	h.requireNoSend(t)

	h.advance(100 * time.Millisecond)
	h.waitSend()
	batches := h.sender.sent()
	if len(batches) != 1 {
		t.Fatalf("sent %d batches, want 1", len(batches))
	}
	for i, slot := range slotsOf(batches[0]) {
		if slot != uint64(i) {
			t.Fatalf("batch slots = %v, want arrival order", slotsOf(batches[0]))
		}
	}
	if got := promtestutil.ToFloat64(h.metrics.BatchesSent.WithLabelValues(metrics.TriggerTimer)); got != 1 {
		t.Errorf("timer-triggered batches = %v, want 1", got)
	}
	if got := promtestutil.ToFloat64(h.metrics.EventsSent.WithLabelValues("attestation")); got != 3 {
		t.Errorf("events sent = %v, want 3", got)
	}
}

func TestSizeTriggerSendsFullBatchWithoutTimer(t *testing.T) {
	h := start(t, ingress.DefaultCapacity, 0, DefaultMaxBatchSize, newFakeSender())
	h.send(t, 0, DefaultMaxBatchSize)

	h.waitSend()
	batches := h.sender.sent()
	if len(batches) != 1 || len(batches[0]) != DefaultMaxBatchSize {
		t.Fatalf("sent %d batches, want one of %d events", len(batches), DefaultMaxBatchSize)
	}
	if got := promtestutil.ToFloat64(h.metrics.BatchesSent.WithLabelValues(metrics.TriggerSize)); got != 1 {
		t.Errorf("size-triggered batches = %v, want 1", got)
	}
	if now := h.clock.Now(); !now.Equal(epoch) {
		t.Errorf("clock moved to %v; the flush should not depend on time", now)
	}
}

func TestOverflowSplitsIntoThresholdChunks(t *testing.T) {
	const threshold = 100
	h := start(t, 1000, threshold, 300, newFakeSender())
	h.send(t, 0, 2*threshold+37)

	h.waitSend()
	h.waitSend()
	h.requireNoSend(t)

	h.advance(time.Second)
	h.waitSend()

	batches := h.sender.sent()
	if len(batches) != 3 {
		t.Fatalf("sent %d batches, want 3", len(batches))
	}
	want := []int{threshold, threshold, 37}
	next := uint64(0)
	for i, batch := range batches {
		if len(batch) != want[i] {
			t.Errorf("batch %d holds %d events, want %d", i, len(batch), want[i])
		}
		for _, slot := range slotsOf(batch) {
			if slot != next {
				t.Fatalf("batch %d: slot %d out of order, want %d", i, slot, next)
			}
			next++
		}
	}
}

func TestEmptyTimerDoesNotSend(t *testing.T) {
	h := start(t, 10, 0, 4, newFakeSender())
	h.advance(time.Second)
	h.advance(time.Second)
	h.requireNoSend(t)
}

func TestNotReadyHoldsBatch(t *testing.T) {
	h := start(t, 10, 0, 8, newFakeSender())
	h.ready.Store(false)
	h.send(t, 0, 1)

	h.advance(2 * time.Second)
	h.requireNoSend(t)

	h.ready.Store(true)
	h.advance(100 * time.Millisecond)
	h.waitSend()
	if batches := h.sender.sent(); len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("sent %v, want one batch of one event", batches)
	}
}

func TestSteadyStreamDoesNotStarveTimeTrigger(t *testing.T) {
	h := start(t, 100, 0, 64, newFakeSender())

	// One event every 50ms keeps the busy poll from ever expiring.
	for i := 0; i <= 20; i++ {
		h.send(t, i, 1)
		if i < 20 {
			h.requireNoSend(t)
			h.clock.Advance(50 * time.Millisecond)
		}
	}

	h.waitSend()
	batches := h.sender.sent()
	if len(batches) != 1 || len(batches[0]) != 21 {
		t.Fatalf("sent %d batches, want one of 21 events", len(batches))
	}
}

func TestFailedSendDoesNotBlockNextBatch(t *testing.T) {
	failure := &bridge.SendError{Kind: bridge.SendTransmissionFailed}
	h := start(t, 10, 2, 8, newFakeSender(failure))

	h.send(t, 0, 2)
	h.waitSend()
	h.send(t, 2, 2)
	h.waitSend()

	batches := h.sender.sent()
	if len(batches) != 2 {
		t.Fatalf("sent %d batches, want 2", len(batches))
	}
	if got := slotsOf(batches[1]); got[0] != 2 || got[1] != 3 {
		t.Errorf("second batch slots = %v, want [2 3]", got)
	}
	if got := promtestutil.ToFloat64(h.metrics.BatchFailures.WithLabelValues("transmission_failed")); got != 1 {
		t.Errorf("batch failures = %v, want 1", got)
	}
	if got := promtestutil.ToFloat64(h.metrics.BatchesSent.WithLabelValues(metrics.TriggerSize)); got != 1 {
		t.Errorf("successful batches = %v, want 1", got)
	}
}

func TestCloseDiscardsPartialBatch(t *testing.T) {
	h := start(t, 10, 0, 4, newFakeSender())
	h.send(t, 0, 2)

	h.queue.Close()
	testutil.RequireClosed(t, h.finished, waitTimeout, "scheduler exit")

	h.requireNoSend(t)
	dropped := h.metrics.EventsDropped.WithLabelValues("attestation", metrics.ReasonShutdown)
	if got := promtestutil.ToFloat64(dropped); got != 2 {
		t.Fatalf("shutdown drops = %v, want 2", got)
	}
}
