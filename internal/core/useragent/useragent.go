// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package useragent extracts the few client traits device detection needs.
package useragent

import (
	"regexp"
	"strconv"
	"strings"
)

// IsNativeAppleClient matches AVFoundation based players, which only speak HLS.
func IsNativeAppleClient(userAgent string) bool {
	for _, marker := range []string{"AppleCoreMedia", "CFNetwork", "VideoToolbox"} {
		if strings.Contains(userAgent, marker) {
			return true
		}
	}
	return false
}

var iosVersionRe = regexp.MustCompile(` OS (\d+)_(\d+)(?:_(\d+))?`)

// IOSVersion extracts the iOS major/minor version ("CPU iPhone OS 9_3_5 like Mac OS X").
// ok is false for non-iOS agents or when no version marker is present.
func IOSVersion(userAgent string) (major, minor int, ok bool) {
	if !strings.Contains(userAgent, "iPhone") && !strings.Contains(userAgent, "iPad") && !strings.Contains(userAgent, "iPod") {
		return 0, 0, false
	}
	m := iosVersionRe.FindStringSubmatch(userAgent)
	if m == nil {
		return 0, 0, false
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	minor, _ = strconv.Atoi(m[2])
	return major, minor, true
}
