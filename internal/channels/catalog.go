// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/metrics"
	"github.com/ManuGH/tvplay/internal/platform/httpx"
	xnet "github.com/ManuGH/tvplay/internal/platform/net"
	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	defaultFetchTimeout  = 10 * time.Second
	defaultMaxElapsed    = 30 * time.Second
	defaultWatchDebounce = 500 * time.Millisecond
	maxDocumentBytes     = 8 << 20
	userAgent            = "tvplay-catalog/1"
)

var ErrNotLoaded = errors.New("channel catalog not loaded")

// CatalogConfig configures where the channel document comes from.
type CatalogConfig struct {
	// Location is a file path or an http(s) URL.
	Location string
	// Format overrides detection from the file extension or content type.
	Format Format
	// FetchTimeout bounds a single HTTP attempt.
	FetchTimeout time.Duration
	// MaxElapsed bounds all retry attempts of one load.
	MaxElapsed time.Duration
	// Client is used for HTTP sources; defaults to httpx.NewClient.
	Client *http.Client
}

// Catalog holds the current channel list and reloads it on demand.
type Catalog struct {
	cfg     CatalogConfig
	client  *http.Client
	current atomic.Pointer[List]
	group   singleflight.Group
	logger  zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []func(*List)

	watcher *fsnotify.Watcher
}

// NewCatalog creates a catalog. Call Load before using Current.
func NewCatalog(cfg CatalogConfig) *Catalog {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = defaultMaxElapsed
	}
	client := cfg.Client
	if client == nil {
		client = httpx.NewClient(cfg.FetchTimeout)
	}
	return &Catalog{
		cfg:    cfg,
		client: client,
		logger: log.WithComponent("channels"),
	}
}

// NewStaticCatalog wraps an already validated list.
func NewStaticCatalog(l *List) *Catalog {
	c := NewCatalog(CatalogConfig{})
	c.current.Store(l)
	return c
}

// Current returns the last successfully loaded list.
func (c *Catalog) Current() (*List, error) {
	l := c.current.Load()
	if l == nil {
		return nil, ErrNotLoaded
	}
	return l, nil
}

// OnReload registers fn to be called after every successful load.
func (c *Catalog) OnReload(fn func(*List)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Load fetches, parses and validates the document. Concurrent calls share a
// single fetch. On failure the previous list stays current.
func (c *Catalog) Load(ctx context.Context) (*List, error) {
	v, err, _ := c.group.Do("load", func() (any, error) {
		l, err := c.load(ctx)
		if err != nil {
			metrics.RecordChannelReload(0, err)
			return nil, err
		}
		metrics.RecordChannelReload(l.Len(), nil)
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*List), nil
}

func (c *Catalog) load(ctx context.Context) (*List, error) {
	if c.cfg.Location == "" {
		return nil, fmt.Errorf("channel catalog: no location configured")
	}

	data, format, err := c.read(ctx)
	if err != nil {
		c.logger.Error().Err(err).
			Str(log.FieldEvent, "channels.load_failed").
			Str(log.FieldPath, xnet.SanitizeURL(c.cfg.Location)).
			Msg("failed to read channel document")
		return nil, err
	}

	doc, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	list, err := NewList(doc)
	if err != nil {
		c.logger.Error().Err(err).
			Str(log.FieldEvent, "channels.validation_failed").
			Msg("channel document failed validation")
		return nil, fmt.Errorf("validate channel document: %w", err)
	}

	c.current.Store(list)
	c.logger.Info().
		Str(log.FieldEvent, "channels.loaded").
		Int("channels", list.Len()).
		Int("categories", len(list.Categories())).
		Msg("channel list loaded")

	c.listenersMu.RLock()
	listeners := append([]func(*List){}, c.listeners...)
	c.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(list)
	}
	return list, nil
}

func (c *Catalog) isRemote() bool {
	return xnet.IsHTTPURL(c.cfg.Location)
}

func (c *Catalog) read(ctx context.Context) ([]byte, Format, error) {
	if !c.isRemote() {
		data, err := os.ReadFile(filepath.Clean(c.cfg.Location))
		if err != nil {
			return nil, "", fmt.Errorf("read channel document: %w", err)
		}
		return data, c.format(c.cfg.Location), nil
	}

	var (
		data        []byte
		contentType string
	)
	op := func() error {
		var err error
		data, contentType, err = c.fetch(ctx)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = c.cfg.MaxElapsed
	notify := func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).
			Str(log.FieldEvent, "channels.fetch_retry").
			Str(log.FieldURL, xnet.SanitizeURL(c.cfg.Location)).
			Dur(log.FieldDelay, wait).
			Msg("channel document fetch failed, retrying")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, "", fmt.Errorf("fetch channel document: %w", err)
	}

	format := c.cfg.Format
	if format == "" {
		if ct := DetectFormat(contentType); ct == FormatYAML {
			format = ct
		} else {
			format = DetectFormat(c.cfg.Location)
		}
	}
	return data, format, nil
}

// fetch performs one HTTP attempt. Client errors are permanent.
func (c *Catalog) fetch(ctx context.Context) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Location, nil)
	if err != nil {
		return nil, "", backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, "", backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Catalog) format(name string) Format {
	if c.cfg.Format != "" {
		return c.cfg.Format
	}
	return DetectFormat(name)
}

// Watch reloads the list when the document file changes. Remote sources are
// not watched. The watcher stops when ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.cfg.Location == "" || c.isRemote() {
		c.logger.Info().
			Str(log.FieldEvent, "channels.watcher_disabled").
			Msg("channel document watcher disabled for this source")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so atomic renames are observed.
	dir := filepath.Dir(c.cfg.Location)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch channel directory: %w", err)
	}
	c.watcher = watcher

	c.logger.Info().
		Str(log.FieldEvent, "channels.watcher_started").
		Str(log.FieldPath, c.cfg.Location).
		Msg("watching channel document for changes")

	go c.watchLoop(ctx, watcher)
	return nil
}

func (c *Catalog) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	target := filepath.Clean(c.cfg.Location)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		_ = watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str(log.FieldEvent, "channels.watcher_stopped").Msg("channel watcher stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(defaultWatchDebounce, func() {
				if _, err := c.Load(ctx); err != nil {
					c.logger.Error().Err(err).
						Str(log.FieldEvent, "channels.auto_reload_failed").
						Msg("automatic channel reload failed")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error().Err(err).
				Str(log.FieldEvent, "channels.watcher_error").
				Msg("channel watcher error")
		}
	}
}
