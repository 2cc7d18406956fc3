// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package channels loads, validates and serves the channel list document.
package channels

import (
	"encoding/json"
	"sort"

	sp "github.com/ManuGH/tvplay/internal/streamprofile"
)

// Channel is an immutable channel descriptor. Construct it through a Document
// or New; the zero value has no playable URL.
type Channel struct {
	name     string
	category string
	url      string
	streams  map[sp.Protocol]string
	quality  []sp.Quality
	active   bool
}

// New builds a channel descriptor. Streams with non-concrete protocol keys are ignored.
func New(name, category, fallbackURL string, streams map[sp.Protocol]string, quality []sp.Quality, active bool) Channel {
	c := Channel{
		name:     name,
		category: category,
		url:      fallbackURL,
		streams:  make(map[sp.Protocol]string, len(streams)),
		active:   active,
	}
	for p, u := range streams {
		if p.Concrete() && u != "" {
			c.streams[p] = u
		}
	}
	c.quality = append(c.quality, quality...)
	return c
}

func (c Channel) Name() string     { return c.name }
func (c Channel) Category() string { return c.category }
func (c Channel) Active() bool     { return c.active }

// FallbackURL is used when no protocol-specific stream matches.
func (c Channel) FallbackURL() string { return c.url }

// StreamURL returns the protocol-specific URL if the channel defines one.
func (c Channel) StreamURL(p sp.Protocol) (string, bool) {
	u, ok := c.streams[p]
	return u, ok && u != ""
}

// Streams returns a copy of the protocol → URL mapping.
func (c Channel) Streams() map[sp.Protocol]string {
	out := make(map[sp.Protocol]string, len(c.streams))
	for p, u := range c.streams {
		out[p] = u
	}
	return out
}

// QualityTags returns the advertised quality tiers.
func (c Channel) QualityTags() []sp.Quality {
	out := make([]sp.Quality, len(c.quality))
	copy(out, c.quality)
	return out
}

// Playable reports whether any URL is defined at all.
func (c Channel) Playable() bool {
	return c.url != "" || len(c.streams) > 0
}

type channelJSON struct {
	Name     string            `json:"name"`
	Category string            `json:"category"`
	URL      string            `json:"url"`
	Streams  map[string]string `json:"streams,omitempty"`
	Quality  []string          `json:"quality,omitempty"`
	Active   bool              `json:"active"`
}

// MarshalJSON renders the channel in channel-list document shape.
func (c Channel) MarshalJSON() ([]byte, error) {
	out := channelJSON{
		Name:     c.name,
		Category: c.category,
		URL:      c.url,
		Active:   c.active,
	}
	if len(c.streams) > 0 {
		out.Streams = make(map[string]string, len(c.streams))
		for p, u := range c.streams {
			out.Streams[string(p)] = u
		}
	}
	for _, q := range c.quality {
		out.Quality = append(out.Quality, string(q))
	}
	sort.Strings(out.Quality)
	return json.Marshal(out)
}
