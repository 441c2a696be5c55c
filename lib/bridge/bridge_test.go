// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gossipwatch/gossipwatch/lib/codec"
	"github.com/gossipwatch/gossipwatch/lib/config"
	"github.com/gossipwatch/gossipwatch/lib/event"
	"github.com/gossipwatch/gossipwatch/lib/sink"
)

// fakeSink records calls and returns configured errors.
type fakeSink struct {
	mu        sync.Mutex
	initErr   error
	sendErr   error
	inits     [][]byte
	payloads  [][]byte
	shutdowns int
}

func (f *fakeSink) Init(_ context.Context, document []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits = append(f.inits, document)
	return f.initErr
}

func (f *fakeSink) SendEventBatch(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.sendErr
}

func (f *fakeSink) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
}

func testRuntime() config.RuntimeConfig {
	return config.Default().Runtime(config.Network{
		GenesisTime:    1606824023,
		Name:           "mainnet",
		ID:             1,
		SlotsPerEpoch:  32,
		SecondsPerSlot: 12,
	}, config.ClientInfo{Name: "lighthouse", Version: "v7.0.0"}, "debug")
}

func testEvents() []event.Event {
	meta := event.Metadata{PeerID: "peer", Slot: 65, Epoch: 2}
	return []event.Event{
		event.NewBeaconBlock(meta, "0xaa", 3),
		event.NewBlobSidecar(meta, event.BlockSummary{BlockRoot: "0xaa"}, 1),
	}
}

func initialized(t *testing.T, fake *fakeSink) *Bridge {
	t.Helper()
	bridge := New(fake, Options{})
	if err := bridge.Initialize(context.Background(), testRuntime()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return bridge
}

func TestInitializeSetsReady(t *testing.T) {
	fake := &fakeSink{}
	bridge := New(fake, Options{})
	if bridge.Ready() {
		t.Fatal("bridge ready before Initialize")
	}
	if err := bridge.Initialize(context.Background(), testRuntime()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !bridge.Ready() {
		t.Fatal("bridge not ready after Initialize")
	}

	parsed, err := config.ParseRuntime(fake.inits[0])
	if err != nil {
		t.Fatalf("sink received unparseable config: %v", err)
	}
	if parsed.LogLevel != "debug" || parsed.Processor.Ethereum.Network.Name != "mainnet" {
		t.Errorf("sink config = %+v", parsed)
	}
}

func TestInitializeOnlyOnce(t *testing.T) {
	fake := &fakeSink{}
	bridge := initialized(t, fake)
	if err := bridge.Initialize(context.Background(), testRuntime()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Initialize: err = %v, want ErrAlreadyInitialized", err)
	}
	if len(fake.inits) != 1 {
		t.Fatalf("sink initialized %d times, want 1", len(fake.inits))
	}
}

func TestInitializeMissingNetworkNeverReachesSink(t *testing.T) {
	fake := &fakeSink{}
	bridge := New(fake, Options{})
	runtime := config.Default().Runtime(config.Network{}, config.ClientInfo{Name: "teku"}, "info")

	err := bridge.Initialize(context.Background(), runtime)
	var initError *InitError
	if !errors.As(err, &initError) || initError.Kind != InitMissingNetworkInfo {
		t.Fatalf("err = %v, want InitMissingNetworkInfo", err)
	}
	if !errors.Is(err, ErrMissingNetworkInfo) {
		t.Error("errors.Is(err, ErrMissingNetworkInfo) = false")
	}
	if len(fake.inits) != 0 {
		t.Error("sink contacted despite missing network info")
	}
	if bridge.Ready() {
		t.Error("bridge ready after failed Initialize")
	}
}

func TestInitializeMapsSinkStatus(t *testing.T) {
	tests := []struct {
		status sink.Status
		want   InitKind
	}{
		{sink.StatusInitParse, InitParseFailed},
		{sink.StatusInitConstruct, InitSinkConstructionFailed},
		{sink.StatusInitStart, InitSinkStartFailed},
		{sink.StatusInitNetwork, InitMissingNetworkInfo},
		{sink.Status(-99), InitSinkStartFailed},
	}
	for _, test := range tests {
		fake := &fakeSink{initErr: sink.Errorf(test.status, "failed")}
		err := New(fake, Options{}).Initialize(context.Background(), testRuntime())
		var initError *InitError
		if !errors.As(err, &initError) {
			t.Fatalf("status %d: err = %v, want *InitError", test.status, err)
		}
		if initError.Kind != test.want {
			t.Errorf("status %d: kind = %v, want %v", test.status, initError.Kind, test.want)
		}
	}

	// An error without a status is a start failure.
	fake := &fakeSink{initErr: errors.New("exploded")}
	err := New(fake, Options{}).Initialize(context.Background(), testRuntime())
	if !errors.Is(err, ErrSinkStartFailed) {
		t.Errorf("plain init error: err = %v, want ErrSinkStartFailed", err)
	}
}

func TestSendBatchEncodesJSONArray(t *testing.T) {
	fake := &fakeSink{}
	bridge := initialized(t, fake)
	if err := bridge.SendBatch(context.Background(), testEvents()); err != nil {
		t.Fatalf("SendBatch: %v", err)
	}
	if len(fake.payloads) != 1 {
		t.Fatalf("sink received %d payloads, want 1", len(fake.payloads))
	}
	decoded, err := event.DecodeBatch(codec.FormatJSON, fake.payloads[0])
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Kind() != event.KindBeaconBlock || decoded[1].Kind() != event.KindBlobSidecar {
		t.Fatalf("decoded = %v", decoded)
	}
	if !strings.HasPrefix(string(fake.payloads[0]), "[") {
		t.Errorf("payload is not a JSON array: %.40s", fake.payloads[0])
	}
}

func TestSendBatchEmptyIsNoop(t *testing.T) {
	fake := &fakeSink{}
	bridge := initialized(t, fake)
	if err := bridge.SendBatch(context.Background(), nil); err != nil {
		t.Fatalf("SendBatch(nil): %v", err)
	}
	if len(fake.payloads) != 0 {
		t.Fatal("empty batch reached the sink")
	}
}

func TestSendBatchBeforeInitialize(t *testing.T) {
	fake := &fakeSink{}
	bridge := New(fake, Options{})
	err := bridge.SendBatch(context.Background(), testEvents())
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("err = %v, want ErrNotInitialized", err)
	}
	if len(fake.payloads) != 0 {
		t.Fatal("sink contacted before Initialize")
	}
}

func TestSendBatchMapsSinkStatus(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{sink.Errorf(sink.StatusSendNotInitialized, "no"), ErrNotInitialized},
		{sink.Errorf(sink.StatusSendParse, "bad json"), ErrSerializationFailed},
		{sink.Errorf(sink.StatusSendFailed, "reset"), ErrTransmissionFailed},
		{sink.Errorf(sink.StatusSendRejected, "403"), ErrSinkRejected},
		{errors.New("unclassified"), ErrTransmissionFailed},
	}
	for _, test := range tests {
		fake := &fakeSink{sendErr: test.err}
		bridge := initialized(t, fake)
		err := bridge.SendBatch(context.Background(), testEvents())
		if !errors.Is(err, test.sentinel) {
			t.Errorf("sink error %v: got %v, want %v", test.err, err, test.sentinel)
		}
		if !errors.Is(err, test.err) {
			t.Errorf("sink error %v not reachable through Unwrap", test.err)
		}
	}
}

func TestFailedSendDoesNotAffectNext(t *testing.T) {
	fake := &fakeSink{sendErr: sink.Errorf(sink.StatusSendFailed, "reset")}
	bridge := initialized(t, fake)
	if err := bridge.SendBatch(context.Background(), testEvents()); err == nil {
		t.Fatal("first send succeeded despite sink failure")
	}
	fake.mu.Lock()
	fake.sendErr = nil
	fake.mu.Unlock()
	if err := bridge.SendBatch(context.Background(), testEvents()); err != nil {
		t.Fatalf("second send: %v", err)
	}
	if !bridge.Ready() {
		t.Fatal("bridge lost readiness after a failed send")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	fake := &fakeSink{}
	bridge := initialized(t, fake)
	bridge.Shutdown()
	bridge.Shutdown()

	if fake.shutdowns != 1 {
		t.Fatalf("sink shut down %d times, want 1", fake.shutdowns)
	}
	if bridge.Ready() {
		t.Fatal("bridge ready after Shutdown")
	}
	if err := bridge.SendBatch(context.Background(), testEvents()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("send after Shutdown: err = %v, want ErrNotInitialized", err)
	}
}

func TestShutdownSkipsUninitializedSink(t *testing.T) {
	fake := &fakeSink{initErr: sink.Errorf(sink.StatusInitStart, "output refused")}
	bridge := New(fake, Options{})
	if err := bridge.Initialize(context.Background(), testRuntime()); err == nil {
		t.Fatal("Initialize succeeded, want start failure")
	}
	bridge.Shutdown()
	if fake.shutdowns != 0 {
		t.Fatalf("sink shut down %d times after a failed Init, want 0", fake.shutdowns)
	}

	never := &fakeSink{}
	New(never, Options{}).Shutdown()
	if never.shutdowns != 0 {
		t.Fatalf("sink shut down %d times without Init, want 0", never.shutdowns)
	}
}

func TestErrorKindsDoNotCrossMatch(t *testing.T) {
	err := &SendError{Kind: SendSinkRejected}
	if errors.Is(err, ErrTransmissionFailed) {
		t.Error("rejected error matched ErrTransmissionFailed")
	}
	if errors.Is(&InitError{Kind: InitParseFailed}, ErrSinkStartFailed) {
		t.Error("parse error matched ErrSinkStartFailed")
	}
}
