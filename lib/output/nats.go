// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go"

	"github.com/gossipwatch/gossipwatch/lib/config"
	"github.com/gossipwatch/gossipwatch/lib/version"
)

// natsOutput publishes each batch to a subject. The address is
// nats://host:port/subject; tls selects tls://.
type natsOutput struct {
	name    string
	server  string
	subject string
	headers map[string]string
	logger  *slog.Logger

	mu   sync.Mutex
	conn *nats.Conn
}

func newNATS(name string, cfg config.OutputConfig, options Options) (Output, error) {
	server, subject, err := parseNATSAddress(cfg.Address, cfg.TLS)
	if err != nil {
		return nil, err
	}
	return &natsOutput{
		name:    name,
		server:  server,
		subject: subject,
		headers: cfg.Headers,
		logger:  options.Logger,
	}, nil
}

// parseNATSAddress splits an address into the server URL and the
// subject carried in its path.
func parseNATSAddress(address string, tls bool) (server, subject string, err error) {
	target, err := endpoint(address, "nats", "tls", tls)
	if err != nil {
		return "", "", err
	}
	switch target.Scheme {
	case "nats", "tls":
	default:
		return "", "", fmt.Errorf("unsupported scheme %q", target.Scheme)
	}
	subject = strings.Trim(target.Path, "/")
	if subject == "" {
		return "", "", fmt.Errorf("address %q names no subject", address)
	}
	if strings.ContainsAny(subject, " \t/") {
		return "", "", fmt.Errorf("invalid subject %q", subject)
	}
	target.Path = ""
	target.RawPath = ""
	return target.String(), subject, nil
}

func (o *natsOutput) Name() string { return o.name }

func (o *natsOutput) Start(ctx context.Context) error {
	options := []nats.Option{
		nats.Name(version.UserAgent()),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				o.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			o.logger.Info("nats reconnected")
		}),
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = connectMaxInterval
	conn, err := backoff.Retry(ctx, func() (*nats.Conn, error) {
		return nats.Connect(o.server, options...)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(connectAttempts))
	if err != nil {
		return fmt.Errorf("connect %s: %w", o.server, err)
	}

	o.mu.Lock()
	o.conn = conn
	o.mu.Unlock()
	o.logger.Info("nats output connected", "server", o.server, "subject", o.subject)
	return nil
}

func (o *natsOutput) Export(ctx context.Context, batch Batch) error {
	o.mu.Lock()
	conn := o.conn
	o.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	message := &nats.Msg{
		Subject: o.subject,
		Data:    batch.Payload,
		Header:  make(nats.Header),
	}
	for key, value := range o.headers {
		message.Header.Set(key, value)
	}
	message.Header.Set("Content-Type", batch.Format.ContentType())
	if encoding := batch.Compression.ContentEncoding(); encoding != "" {
		message.Header.Set("Content-Encoding", encoding)
	}
	message.Header.Set(HeaderDigest, batch.Digest)
	message.Header.Set(HeaderEventCount, strconv.Itoa(batch.Events))

	if err := conn.PublishMsg(message); err != nil {
		return fmt.Errorf("publishing to %s: %w", o.subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.DefaultExportTimeout)
		defer cancel()
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flushing %s: %w", o.subject, err)
	}
	return nil
}

func (o *natsOutput) Stop(context.Context) error {
	o.mu.Lock()
	conn := o.conn
	o.conn = nil
	o.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Drain()
}
