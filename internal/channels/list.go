// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package channels

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ManuGH/tvplay/internal/validate"
	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

// CategoryAll selects every channel in Filter.
const CategoryAll = "all"

var ErrChannelNotFound = errors.New("channel not found")

// List is a validated, ordered channel list. It is immutable and safe for
// concurrent readers.
type List struct {
	channels   []Channel
	index      map[string]int
	categories []string
	settings   map[string]any
}

// Key normalizes a channel name for lookups: NFC, trimmed, lower-cased.
func Key(name string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(name)))
}

// NewList validates doc and builds the lookup index.
func NewList(doc Document) (*List, error) {
	v := validate.New()
	l := &List{
		channels: make([]Channel, 0, len(doc.Channels)),
		index:    make(map[string]int, len(doc.Channels)),
		settings: doc.Settings,
	}

	for i, ch := range doc.Channels {
		field := fmt.Sprintf("channels[%d]", i)
		if ch.Name() == "" {
			v.AddError(field+".name", "name cannot be empty", ch.Name())
			continue
		}
		key := Key(ch.Name())
		if _, dup := l.index[key]; dup {
			v.AddError(field+".name", "duplicate channel name", ch.Name())
			continue
		}
		if !ch.Playable() {
			v.AddError(field, "channel defines neither url nor streams", ch.Name())
			continue
		}
		if ch.FallbackURL() != "" {
			checkStreamURL(v, field+".url", ch.FallbackURL())
		}
		for p, u := range ch.Streams() {
			checkStreamURL(v, field+".streams."+string(p), u)
		}
		l.index[key] = len(l.channels)
		l.channels = append(l.channels, ch)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	l.categories = mergeCategories(doc.Categories, l.channels)
	return l, nil
}

func checkStreamURL(v *validate.Validator, field, raw string) {
	before := len(v.Errors())
	v.StreamURL(field, raw)
	if len(v.Errors()) != before {
		return
	}
	u, _ := url.Parse(raw)
	if _, err := idna.Lookup.ToASCII(u.Hostname()); err != nil {
		v.AddError(field, fmt.Sprintf("invalid host: %v", err), raw)
	}
}

// mergeCategories keeps declared categories first, then appends categories
// only seen on channels, in first-seen order.
func mergeCategories(declared []string, chans []Channel) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(declared))
	for _, c := range declared {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	for _, ch := range chans {
		c := ch.Category()
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Len returns the number of channels.
func (l *List) Len() int { return len(l.channels) }

// All returns the channels in document order.
func (l *List) All() []Channel {
	out := make([]Channel, len(l.channels))
	copy(out, l.channels)
	return out
}

// Get looks a channel up by name (NFC and case-insensitive).
func (l *List) Get(name string) (Channel, error) {
	i, ok := l.index[Key(name)]
	if !ok {
		return Channel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	return l.channels[i], nil
}

// Filter returns channels of a category; "" or CategoryAll returns every channel.
func (l *List) Filter(category string) []Channel {
	if category == "" || category == CategoryAll {
		return l.All()
	}
	var out []Channel
	for _, ch := range l.channels {
		if ch.Category() == category {
			out = append(out, ch)
		}
	}
	return out
}

// ActiveOnly returns a list without inactive channels. Constrained devices are
// only offered active channels.
func (l *List) ActiveOnly() *List {
	out := &List{
		index:      make(map[string]int, len(l.channels)),
		categories: l.categories,
		settings:   l.settings,
	}
	for _, ch := range l.channels {
		if !ch.Active() {
			continue
		}
		out.index[Key(ch.Name())] = len(out.channels)
		out.channels = append(out.channels, ch)
	}
	return out
}

// Categories returns the category names in display order.
func (l *List) Categories() []string {
	out := make([]string, len(l.categories))
	copy(out, l.categories)
	return out
}

// Settings returns the free-form settings block of the document.
func (l *List) Settings() map[string]any { return l.settings }
