// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"

	"github.com/gossipwatch/gossipwatch/lib/codec"
	"github.com/gossipwatch/gossipwatch/lib/config"
	"github.com/gossipwatch/gossipwatch/lib/version"
)

// Dial retry bounds for websocket and NATS connections.
const (
	connectAttempts    = 5
	connectMaxInterval = 5 * time.Second
)

var errNotConnected = errors.New("not connected")

// websocketOutput streams each batch as one binary frame over a
// long-lived connection. A failed write drops the connection; the next
// export redials once.
type websocketOutput struct {
	name    string
	url     string
	headers http.Header
	logger  *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func newWebsocket(name string, cfg config.OutputConfig, options Options) (Output, error) {
	target, err := endpoint(cfg.Address, "ws", "wss", cfg.TLS)
	if err != nil {
		return nil, err
	}
	switch target.Scheme {
	case "http":
		target.Scheme = "ws"
	case "https":
		target.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", target.Scheme)
	}

	headers := make(http.Header, len(cfg.Headers)+1)
	for key, value := range cfg.Headers {
		headers.Set(key, value)
	}
	headers.Set("User-Agent", version.UserAgent())
	return &websocketOutput{
		name:    name,
		url:     target.String(),
		headers: headers,
		logger:  options.Logger,
	}, nil
}

func (o *websocketOutput) Name() string { return o.name }

// Start dials with exponential backoff, giving up after a bounded
// number of attempts.
func (o *websocketOutput) Start(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = connectMaxInterval

	conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		conn, err := o.dial(ctx)
		if err != nil {
			o.logger.Debug("websocket dial failed", "url", o.url, "error", err)
		}
		return conn, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(connectAttempts))
	if err != nil {
		return fmt.Errorf("dial %s: %w", o.url, err)
	}

	o.mu.Lock()
	o.conn = conn
	o.mu.Unlock()
	o.logger.Info("websocket output connected", "url", o.url)
	return nil
}

func (o *websocketOutput) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, o.url, &websocket.DialOptions{HTTPHeader: o.headers})
	if err != nil {
		return nil, err
	}
	// The collector never sends data; CloseRead services control
	// frames in the background.
	conn.CloseRead(context.Background())
	return conn, nil
}

func (o *websocketOutput) Export(ctx context.Context, batch Batch) error {
	conn, err := o.connection(ctx)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageBinary, codec.MarshalFrame(batch.Frame())); err != nil {
		o.drop(conn)
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// connection returns the live connection, redialing once if a prior
// write dropped it.
func (o *websocketOutput) connection(ctx context.Context) (*websocket.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn != nil {
		return o.conn, nil
	}
	conn, err := o.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: redial %s: %v", errNotConnected, o.url, err)
	}
	o.conn = conn
	return conn, nil
}

func (o *websocketOutput) drop(conn *websocket.Conn) {
	o.mu.Lock()
	if o.conn == conn {
		o.conn = nil
	}
	o.mu.Unlock()
	conn.CloseNow()
}

func (o *websocketOutput) Stop(context.Context) error {
	o.mu.Lock()
	conn := o.conn
	o.conn = nil
	o.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "shutdown")
}
