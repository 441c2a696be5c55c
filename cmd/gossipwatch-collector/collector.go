// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gossipwatch/gossipwatch/lib/clock"
	"github.com/gossipwatch/gossipwatch/lib/codec"
	"github.com/gossipwatch/gossipwatch/lib/event"
	"github.com/gossipwatch/gossipwatch/lib/output"
	"github.com/gossipwatch/gossipwatch/lib/sink"
)

// recentDigests bounds the redelivery window: a chunk whose digest is
// among the last recentDigests accepted is acknowledged and skipped.
const recentDigests = 4096

// Transport labels.
const (
	transportHTTP      = "http"
	transportWebsocket = "websocket"
)

// Record is one line of collector output.
type Record struct {
	ReceivedAtMillis int64       `json:"received_at_ms"`
	Transport        string      `json:"transport"`
	Node             string      `json:"node"`
	Client           sink.Client `json:"client"`
	Network          string      `json:"network"`
	SentAtMillis     int64       `json:"sent_at_ms"`
	Event            event.Event `json:"event"`
}

// Collector receives envelopes from Gossipwatch outputs and appends
// their events to a JSON lines stream.
type Collector struct {
	clock  clock.Clock
	logger *slog.Logger

	batches *prometheus.CounterVec
	events  *prometheus.CounterVec

	mu     sync.Mutex
	writer *bufio.Writer
	seen   map[string]struct{}
	order  []string
}

// NewCollector writes records to out. Collectors are registered on
// registerer.
func NewCollector(out io.Writer, clk clock.Clock, logger *slog.Logger, registerer prometheus.Registerer) *Collector {
	factory := promauto.With(registerer)
	return &Collector{
		clock:  clk,
		logger: logger,
		batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gossipwatch_collector_batches_total",
				Help: "Envelopes received, by transport and result",
			},
			[]string{"transport", "result"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gossipwatch_collector_events_total",
				Help: "Events written, by event type",
			},
			[]string{"event_type"},
		),
		writer: bufio.NewWriter(out),
		seen:   make(map[string]struct{}, recentDigests),
	}
}

// Register adds the collector's routes to mux.
func (c *Collector) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/batches", c.handleBatch)
	mux.HandleFunc("GET /v1/stream", c.handleStream)
}

func (c *Collector) handleBatch(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil && r.Header.Get("Content-Type") != "" {
		c.reject(w, transportHTTP, http.StatusUnsupportedMediaType, err)
		return
	}
	format, err := codec.FormatForContentType(mediaType)
	if err != nil {
		c.reject(w, transportHTTP, http.StatusUnsupportedMediaType, err)
		return
	}
	compression, err := codec.CompressionForContentEncoding(r.Header.Get("Content-Encoding"))
	if err != nil {
		c.reject(w, transportHTTP, http.StatusUnsupportedMediaType, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, codec.MaxDecompressedSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.reject(w, transportHTTP, http.StatusRequestEntityTooLarge, err)
			return
		}
		c.reject(w, transportHTTP, http.StatusBadRequest, err)
		return
	}
	payload, err := compression.Decompress(body)
	if err != nil {
		c.reject(w, transportHTTP, http.StatusBadRequest, err)
		return
	}

	digest := codec.Digest(payload)
	if claimed := r.Header.Get(output.HeaderDigest); claimed != "" && claimed != digest {
		c.reject(w, transportHTTP, http.StatusBadRequest,
			fmt.Errorf("digest mismatch: header %s, payload %s", claimed, digest))
		return
	}

	envelope, err := sink.DecodeEnvelope(format, payload)
	if err != nil {
		c.reject(w, transportHTTP, http.StatusBadRequest, err)
		return
	}
	if claimed := r.Header.Get(output.HeaderEventCount); claimed != "" {
		if count, err := strconv.Atoi(claimed); err != nil || count != len(envelope.Events) {
			c.reject(w, transportHTTP, http.StatusBadRequest,
				fmt.Errorf("event count header %q does not match %d events", claimed, len(envelope.Events)))
			return
		}
	}

	if err := c.accept(transportHTTP, digest, envelope); err != nil {
		c.reject(w, transportHTTP, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Collector) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		c.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(codec.MaxDecompressedSize)

	logger := c.logger.With("remote", r.RemoteAddr, "node", r.Header.Get("X-Node"))
	logger.Info("stream connected")
	for {
		messageType, data, err := conn.Read(r.Context())
		if err != nil {
			if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Info("stream closed")
			} else {
				logger.Warn("stream read failed", "error", err)
			}
			return
		}
		if messageType != websocket.MessageBinary {
			c.batches.WithLabelValues(transportWebsocket, "rejected").Inc()
			conn.Close(websocket.StatusUnsupportedData, "binary frames only")
			return
		}

		frame, err := codec.UnmarshalFrame(data)
		if err != nil {
			c.batches.WithLabelValues(transportWebsocket, "rejected").Inc()
			conn.Close(websocket.StatusInvalidFramePayloadData, "malformed frame")
			return
		}
		payload, err := frame.Compression.Decompress(frame.Payload)
		if err != nil {
			c.batches.WithLabelValues(transportWebsocket, "rejected").Inc()
			logger.Warn("dropping undecodable frame", "error", err)
			continue
		}
		envelope, err := sink.DecodeEnvelope(frame.Format, payload)
		if err != nil {
			c.batches.WithLabelValues(transportWebsocket, "rejected").Inc()
			logger.Warn("dropping undecodable envelope", "error", err)
			continue
		}
		if err := c.accept(transportWebsocket, codec.Digest(payload), envelope); err != nil {
			logger.Error("writing records failed", "error", err)
			conn.Close(websocket.StatusInternalError, "write failed")
			return
		}
	}
}

func (c *Collector) reject(w http.ResponseWriter, transport string, status int, err error) {
	c.batches.WithLabelValues(transport, "rejected").Inc()
	c.logger.Warn("rejecting batch", "transport", transport, "status", status, "error", err)
	http.Error(w, err.Error(), status)
}

// accept writes envelope's events unless digest was seen recently.
func (c *Collector) accept(transport, digest string, envelope *sink.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, duplicate := c.seen[digest]; duplicate {
		c.batches.WithLabelValues(transport, "duplicate").Inc()
		c.logger.Debug("skipping redelivered batch", "digest", digest, "node", envelope.Node)
		return nil
	}

	receivedAt := c.clock.Now().UnixMilli()
	for _, record := range envelope.Events {
		line, err := codec.FormatJSON.Marshal(Record{
			ReceivedAtMillis: receivedAt,
			Transport:        transport,
			Node:             envelope.Node,
			Client:           envelope.Client,
			Network:          envelope.Network.Name,
			SentAtMillis:     envelope.SentAtMillis,
			Event:            record,
		})
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		c.writer.Write(line)
		c.writer.WriteByte('\n')
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}

	c.remember(digest)
	c.batches.WithLabelValues(transport, "accepted").Inc()
	for kind, count := range event.CountByKind(envelope.Events) {
		c.events.WithLabelValues(kind.Label()).Add(float64(count))
	}
	c.logger.Debug("batch accepted",
		"transport", transport,
		"node", envelope.Node,
		"events", len(envelope.Events),
	)
	return nil
}

// remember records digest, evicting the oldest beyond recentDigests.
// Must be called with c.mu held.
func (c *Collector) remember(digest string) {
	c.seen[digest] = struct{}{}
	c.order = append(c.order, digest)
	if len(c.order) > recentDigests {
		delete(c.seen, c.order[0])
		c.order = c.order[1:]
	}
}
