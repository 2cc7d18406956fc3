// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Accumulates(t *testing.T) {
	v := New()
	v.URL("probe", "ftp://example.com/x", []string{"http", "https"})
	v.ListenAddr("listen", ":99999")
	v.Range("retries", 11, 0, 10)
	v.FloatRange("rate", 1.5, 0, 1)
	v.MinDuration("interval", 500*time.Millisecond, time.Second)
	v.NotEmpty("name", "   ")
	v.OneOf("backend", "etcd", []string{"memory", "sqlite"})
	v.NonNegative("max", -1)
	v.StreamURL("url", "https://cdn.example.com/")

	require.False(t, v.IsValid())
	err := v.Err()
	var ve ValidationError
	require.True(t, errors.As(err, &ve))

	var fields []string
	for _, e := range ve.Errors() {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"probe", "listen", "retries", "rate", "interval", "name", "backend", "max", "url"}, fields)
	assert.Contains(t, err.Error(), "validation failed for probe")
}

func TestValidator_Valid(t *testing.T) {
	v := New()
	v.URL("probe", "https://example.com/ping", []string{"https"})
	v.ListenAddr("listen", "127.0.0.1:8080")
	v.ListenAddr("listen", ":8080")
	v.StreamURL("url", "http://cdn.example.com/live/index.m3u8")
	v.OneOf("level", "info", LogLevels())
	assert.True(t, v.IsValid())
	assert.NoError(t, v.Err())
}

func TestValidationError_Single(t *testing.T) {
	v := New()
	v.Port("port", 0)
	assert.Equal(t, "validation failed for port: port must be between 1 and 65535, got 0", v.Err().Error())
}

func TestLogLevel(t *testing.T) {
	assert.True(t, LogLevelWarn.IsValid())
	assert.False(t, LogLevel("trace").IsValid())
}
