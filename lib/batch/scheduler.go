// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package batch drains the ingress queue into batches and hands them
// to the delivery bridge.
//
// A Scheduler runs on one goroutine. It waits for the next event with
// an adaptive poll: IdlePoll while the batch is empty, BusyPoll once it
// holds an event. A batch is flushed when it reaches MaxBatchSize, or
// when a poll expires at least FlushInterval after the previous flush
// and the bridge is ready. A batch that has just received its first
// event gets one BusyPoll to fill before the time trigger applies.
//
// Delivery is at most once: a failed send is logged and counted, and
// the batch is discarded.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gossipwatch/gossipwatch/lib/bridge"
	"github.com/gossipwatch/gossipwatch/lib/clock"
	"github.com/gossipwatch/gossipwatch/lib/event"
	"github.com/gossipwatch/gossipwatch/lib/ingress"
	"github.com/gossipwatch/gossipwatch/lib/logging"
	"github.com/gossipwatch/gossipwatch/lib/metrics"
)

// Defaults for the Config knobs.
const (
	DefaultMaxBatchSize  = 10000
	DefaultFlushInterval = time.Second
	DefaultIdlePoll      = time.Second
	DefaultBusyPoll      = 100 * time.Millisecond
)

// Sender transmits a batch. *bridge.Bridge implements it.
type Sender interface {
	SendBatch(ctx context.Context, events []event.Event) error
}

// Config configures a Scheduler. Queue, Sender, and Ready are
// required; zero knobs select the defaults.
type Config struct {
	Queue  *ingress.Queue
	Sender Sender

	// Ready gates the time trigger. The size trigger does not consult
	// it; the sender rejects batches it cannot deliver.
	Ready func() bool

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	MaxBatchSize  int
	FlushInterval time.Duration
	IdlePoll      time.Duration
	BusyPoll      time.Duration
}

// Scheduler accumulates events and flushes batches.
type Scheduler struct {
	queue   *ingress.Queue
	sender  Sender
	ready   func() bool
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	maxBatchSize  int
	flushInterval time.Duration
	idlePoll      time.Duration
	busyPoll      time.Duration

	batch     []event.Event
	lastFlush time.Time

	// afterIteration, when set, runs at the end of every loop
	// iteration. Tests use it to step the loop deterministically.
	afterIteration func()
}

// New returns a Scheduler. Call Run on the goroutine that will own it.
func New(config Config) *Scheduler {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = logging.Discard()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NewUnregistered()
	}
	if config.Ready == nil {
		config.Ready = func() bool { return true }
	}
	scheduler := &Scheduler{
		queue:         config.Queue,
		sender:        config.Sender,
		ready:         config.Ready,
		clock:         config.Clock,
		logger:        config.Logger,
		metrics:       config.Metrics,
		maxBatchSize:  config.MaxBatchSize,
		flushInterval: config.FlushInterval,
		idlePoll:      config.IdlePoll,
		busyPoll:      config.BusyPoll,
	}
	if scheduler.maxBatchSize <= 0 {
		scheduler.maxBatchSize = DefaultMaxBatchSize
	}
	if scheduler.flushInterval <= 0 {
		scheduler.flushInterval = DefaultFlushInterval
	}
	if scheduler.idlePoll <= 0 {
		scheduler.idlePoll = DefaultIdlePoll
	}
	if scheduler.busyPoll <= 0 {
		scheduler.busyPoll = DefaultBusyPoll
	}
	return scheduler
}

// Run processes the queue until it is closed. Any partial batch left
// at closure is discarded. ctx is passed to every send; cancelling it
// aborts in-flight sends but does not stop the loop.
func (s *Scheduler) Run(ctx context.Context) {
	s.lastFlush = s.clock.Now()
	s.batch = make([]event.Event, 0, min(s.maxBatchSize, 1024))

	timer := s.clock.NewTimer(s.idlePoll)
	defer timer.Stop()

	for {
		select {
		case record := <-s.queue.Events():
			timer.Stop()
			s.batch = append(s.batch, record)
			switch {
			case len(s.batch) >= s.maxBatchSize:
				s.flush(ctx, metrics.TriggerSize)
			case len(s.batch) == 1:
				// Fresh batch: give it one busy poll before the
				// time trigger is considered.
			default:
				s.flushIfDue(ctx)
			}

		case <-timer.C:
			s.flushIfDue(ctx)

		case <-s.queue.Done():
			s.discard()
			return
		}

		timer.Reset(s.pollInterval())
		if s.afterIteration != nil {
			s.afterIteration()
		}
	}
}

func (s *Scheduler) pollInterval() time.Duration {
	if len(s.batch) == 0 {
		return s.idlePoll
	}
	return s.busyPoll
}

// flushIfDue applies the time trigger.
func (s *Scheduler) flushIfDue(ctx context.Context) {
	if len(s.batch) == 0 || !s.ready() {
		return
	}
	if s.clock.Now().Sub(s.lastFlush) < s.flushInterval {
		return
	}
	s.flush(ctx, metrics.TriggerTimer)
}

// flush sends the current batch and starts a new one whatever the
// outcome.
func (s *Scheduler) flush(ctx context.Context, trigger string) {
	batch := s.batch
	s.batch = make([]event.Event, 0, cap(batch))
	s.lastFlush = s.clock.Now()

	s.metrics.QueueDepth.Set(float64(s.queue.Len()))
	s.metrics.BatchSize.Observe(float64(len(batch)))

	started := s.clock.Now()
	err := s.sender.SendBatch(ctx, batch)
	s.metrics.SendDuration.Observe(s.clock.Now().Sub(started).Seconds())
	if err != nil {
		s.metrics.BatchFailures.WithLabelValues(failureKind(err)).Inc()
		s.logger.Warn("batch send failed, discarding batch",
			"trigger", trigger,
			"batch_size", len(batch),
			"error", err,
		)
		return
	}

	s.metrics.BatchesSent.WithLabelValues(trigger).Inc()
	for kind, count := range event.CountByKind(batch) {
		s.metrics.EventsSent.WithLabelValues(kind.Label()).Add(float64(count))
	}
	s.logger.Debug("batch sent", "trigger", trigger, "batch_size", len(batch))
}

// discard drops the partial batch, and anything still buffered in the
// queue, at shutdown.
func (s *Scheduler) discard() {
	for drained := false; !drained; {
		select {
		case record := <-s.queue.Events():
			s.batch = append(s.batch, record)
		default:
			drained = true
		}
	}
	if len(s.batch) == 0 {
		return
	}
	for kind, count := range event.CountByKind(s.batch) {
		s.metrics.EventsDropped.WithLabelValues(kind.Label(), metrics.ReasonShutdown).Add(float64(count))
	}
	s.logger.Info("discarding unsent batch at shutdown", "batch_size", len(s.batch))
	s.batch = nil
}

// failureKind labels a send error for BatchFailures.
func failureKind(err error) string {
	var sendError *bridge.SendError
	if errors.As(err, &sendError) {
		return sendError.Kind.String()
	}
	return "other"
}
