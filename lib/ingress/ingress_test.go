// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package ingress

import (
	"errors"
	"sync"
	"testing"

	"github.com/gossipwatch/gossipwatch/lib/event"
)

func block(slot uint64) event.Event {
	return event.NewBeaconBlock(event.Metadata{Slot: slot}, "0x00", 0)
}

func TestTrySendFIFO(t *testing.T) {
	queue := New(8)
	for slot := uint64(0); slot < 5; slot++ {
		if err := queue.TrySend(block(slot)); err != nil {
			t.Fatalf("TrySend(%d): %v", slot, err)
		}
	}
	if queue.Len() != 5 {
		t.Fatalf("Len = %d, want 5", queue.Len())
	}
	for want := uint64(0); want < 5; want++ {
		got := (<-queue.Events()).Meta().Slot
		if got != want {
			t.Fatalf("received slot %d, want %d", got, want)
		}
	}
}

func TestTrySendFullFailsFast(t *testing.T) {
	queue := New(2)
	for i := 0; i < 2; i++ {
		if err := queue.TrySend(block(uint64(i))); err != nil {
			t.Fatalf("TrySend: %v", err)
		}
	}
	if err := queue.TrySend(block(2)); !errors.Is(err, ErrFull) {
		t.Fatalf("TrySend on full queue = %v, want ErrFull", err)
	}
	if queue.Len() != 2 {
		t.Fatalf("Len = %d after rejected send, want 2", queue.Len())
	}
}

func TestTrySendAfterClose(t *testing.T) {
	queue := New(4)
	queue.Close()
	queue.Close()

	if err := queue.TrySend(block(1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("TrySend after Close = %v, want ErrClosed", err)
	}
	select {
	case <-queue.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestDefaultCapacity(t *testing.T) {
	if got := New(0).Cap(); got != DefaultCapacity {
		t.Fatalf("Cap = %d, want %d", got, DefaultCapacity)
	}
}

func TestConcurrentProducersRaceClose(t *testing.T) {
	queue := New(DefaultCapacity)
	const producers = 16
	const perProducer = 1000

	var producersDone, closerDone sync.WaitGroup
	var mu sync.Mutex
	counts := map[error]int{}

	start := make(chan struct{})
	for p := 0; p < producers; p++ {
		producersDone.Add(1)
		go func() {
			defer producersDone.Done()
			<-start
			for i := 0; i < perProducer; i++ {
				err := queue.TrySend(block(uint64(i)))
				mu.Lock()
				counts[err]++
				mu.Unlock()
			}
		}()
	}
	closerDone.Add(1)
	go func() {
		defer closerDone.Done()
		<-start
		queue.Close()
	}()

	close(start)
	producersDone.Wait()
	closerDone.Wait()

	total := counts[nil] + counts[ErrFull] + counts[ErrClosed]
	if total != producers*perProducer {
		t.Fatalf("outcomes %v do not account for %d sends", counts, producers*perProducer)
	}
	if counts[nil] != queue.Len() {
		t.Fatalf("accepted %d but queue holds %d", counts[nil], queue.Len())
	}
}
