// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gossipwatch/gossipwatch/lib/config"
	"github.com/gossipwatch/gossipwatch/lib/version"
)

// Headers set on every HTTP export in addition to the configured ones.
const (
	HeaderDigest     = "X-Gossipwatch-Batch-Digest"
	HeaderEventCount = "X-Gossipwatch-Event-Count"
)

// responseDrainLimit bounds how much of a response body is read so the
// connection can be reused.
const responseDrainLimit = 64 << 10

// httpOutput POSTs each batch to a collector URL.
type httpOutput struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
	logger  *slog.Logger
}

func newHTTP(name string, cfg config.OutputConfig, options Options) (Output, error) {
	target, err := endpoint(cfg.Address, "http", "https", cfg.TLS)
	if err != nil {
		return nil, err
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", target.Scheme)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if target.Scheme == "https" {
		transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &httpOutput{
		name:    name,
		url:     target.String(),
		headers: cfg.Headers,
		client:  &http.Client{Transport: transport},
		logger:  options.Logger,
	}, nil
}

func (o *httpOutput) Name() string { return o.name }

func (o *httpOutput) Start(context.Context) error { return nil }

func (o *httpOutput) Export(ctx context.Context, batch Batch) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(batch.Payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	for key, value := range o.headers {
		request.Header.Set(key, value)
	}
	request.Header.Set("Content-Type", batch.Format.ContentType())
	if encoding := batch.Compression.ContentEncoding(); encoding != "" {
		request.Header.Set("Content-Encoding", encoding)
	}
	request.Header.Set("User-Agent", version.UserAgent())
	request.Header.Set(HeaderDigest, batch.Digest)
	request.Header.Set(HeaderEventCount, strconv.Itoa(batch.Events))

	response, err := o.client.Do(request)
	if err != nil {
		return fmt.Errorf("posting batch: %w", err)
	}
	defer response.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(response.Body, responseDrainLimit))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		o.logger.Debug("collector refused batch",
			"status", response.StatusCode,
			"digest", batch.Digest,
			"body", string(bytes.TrimSpace(body)),
		)
		return fmt.Errorf("%w: %s", ErrRejected, response.Status)
	}
	return nil
}

func (o *httpOutput) Stop(context.Context) error {
	o.client.CloseIdleConnections()
	return nil
}
