// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package channels

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"gopkg.in/yaml.v3"
)

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrEmptyDocument = errors.New("channel document is empty")

// rawChannel mirrors one record of the channel list document.
type rawChannel struct {
	Name     string            `json:"name" yaml:"name"`
	Category string            `json:"category" yaml:"category"`
	URL      string            `json:"url" yaml:"url"`
	Streams  map[string]string `json:"streams,omitempty" yaml:"streams,omitempty"`
	Quality  []string          `json:"quality,omitempty" yaml:"quality,omitempty"`
	Active   *bool             `json:"active,omitempty" yaml:"active,omitempty"`
}

type rawDocument struct {
	Channels   []rawChannel   `json:"channels" yaml:"channels"`
	Categories []string       `json:"categories,omitempty" yaml:"categories,omitempty"`
	Settings   map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Document is a parsed channel list before validation.
type Document struct {
	Channels   []Channel
	Categories []string
	Settings   map[string]any
}

// DetectFormat guesses the format from a file name or content type.
func DetectFormat(nameOrContentType string) Format {
	s := strings.ToLower(nameOrContentType)
	if strings.HasSuffix(s, ".yaml") || strings.HasSuffix(s, ".yml") || strings.Contains(s, "yaml") {
		return FormatYAML
	}
	return FormatJSON
}

// Parse decodes a channel list document. Unknown stream protocols and quality
// tags are rejected so typos surface at load time rather than during playback.
func Parse(data []byte, format Format) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, ErrEmptyDocument
	}

	var raw rawDocument
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Document{}, fmt.Errorf("parse yaml channel document: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return Document{}, fmt.Errorf("parse json channel document: %w", err)
		}
	}

	doc := Document{
		Categories: raw.Categories,
		Settings:   raw.Settings,
		Channels:   make([]Channel, 0, len(raw.Channels)),
	}
	for i, rc := range raw.Channels {
		streams := make(map[sp.Protocol]string, len(rc.Streams))
		for key, u := range rc.Streams {
			p, err := sp.ParseProtocol(key)
			if err != nil || !p.Concrete() {
				return Document{}, fmt.Errorf("channel %d (%q): unknown stream protocol %q", i, rc.Name, key)
			}
			streams[p] = strings.TrimSpace(u)
		}
		quality := make([]sp.Quality, 0, len(rc.Quality))
		for _, tag := range rc.Quality {
			q, err := sp.ParseQuality(tag)
			if err != nil || q == sp.QualityAuto {
				return Document{}, fmt.Errorf("channel %d (%q): unknown quality tag %q", i, rc.Name, tag)
			}
			quality = append(quality, q)
		}
		active := true
		if rc.Active != nil {
			active = *rc.Active
		}
		doc.Channels = append(doc.Channels, New(
			strings.TrimSpace(rc.Name),
			strings.TrimSpace(rc.Category),
			strings.TrimSpace(rc.URL),
			streams,
			quality,
			active,
		))
	}
	return doc, nil
}
