// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package streamprofile defines the delivery protocols and quality tiers shared
// by the resolver, the network monitor and the playback controller.
package streamprofile

import (
	"fmt"
	"strings"
)

// Protocol is a live delivery mechanism.
type Protocol string

const (
	ProtocolAuto Protocol = "auto"
	ProtocolHLS  Protocol = "hls"
	ProtocolDASH Protocol = "dash"
	ProtocolFLV  Protocol = "flv"
)

// Protocols lists the concrete protocols in priority order.
var Protocols = []Protocol{ProtocolHLS, ProtocolDASH, ProtocolFLV}

const (
	MIMEHLS  = "application/x-mpegURL"
	MIMEDASH = "application/dash+xml"
	MIMEFLV  = "video/x-flv"
)

// ParseProtocol normalizes s into a Protocol. An empty string means auto.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProtocolAuto, nil
	case ProtocolAuto, ProtocolHLS, ProtocolDASH, ProtocolFLV:
		return p, nil
	default:
		return "", fmt.Errorf("unknown protocol %q", s)
	}
}

// Concrete reports whether p names an actual delivery protocol (not auto).
func (p Protocol) Concrete() bool {
	switch p {
	case ProtocolHLS, ProtocolDASH, ProtocolFLV:
		return true
	}
	return false
}

// MIMEType returns the source content type announced to the media engine.
// Unknown protocols map to the HLS type, matching the player default.
func (p Protocol) MIMEType() string {
	switch p {
	case ProtocolDASH:
		return MIMEDASH
	case ProtocolFLV:
		return MIMEFLV
	default:
		return MIMEHLS
	}
}

// Next returns the successor in the fixed fallback cycle hls → dash → flv → hls.
func (p Protocol) Next() Protocol {
	switch p {
	case ProtocolHLS:
		return ProtocolDASH
	case ProtocolDASH:
		return ProtocolFLV
	default:
		return ProtocolHLS
	}
}

func (p Protocol) String() string { return string(p) }
