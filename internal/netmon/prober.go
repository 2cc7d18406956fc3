// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package netmon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ManuGH/tvplay/internal/clock"
	"github.com/ManuGH/tvplay/internal/platform/httpx"
)

// maxProbeBytes caps how much of the probe payload is read.
const maxProbeBytes = 64 << 10

// Prober performs one minimal round trip and reports its duration. Any error
// is treated as an unstable network.
type Prober interface {
	Probe(ctx context.Context) (time.Duration, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (time.Duration, error)

func (f ProberFunc) Probe(ctx context.Context) (time.Duration, error) { return f(ctx) }

// HTTPProber fetches a tiny payload with a cache-busting query parameter.
type HTTPProber struct {
	URL    string
	Client *http.Client
	Clock  clock.Clock
}

// NewHTTPProber returns a prober for target using a hardened client.
func NewHTTPProber(target string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{URL: target, Client: httpx.NewPlainClient(timeout), Clock: clock.Real{}}
}

func (p *HTTPProber) Probe(ctx context.Context) (time.Duration, error) {
	clk := p.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	client := p.Client
	if client == nil {
		client = httpx.NewPlainClient(0)
	}

	u, err := url.Parse(p.URL)
	if err != nil {
		return 0, fmt.Errorf("probe url: %w", err)
	}
	start := clk.Now()
	q := u.Query()
	q.Set("_", strconv.FormatInt(start.UnixNano(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("probe request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBytes)); err != nil {
		return 0, fmt.Errorf("probe body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("probe: unexpected status %d", resp.StatusCode)
	}
	return clk.Now().Sub(start), nil
}
