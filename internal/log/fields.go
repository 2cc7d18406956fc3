// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldChannel    = "channel"
	FieldProtocol   = "protocol"
	FieldQuality    = "quality"
	FieldGeneration = "generation"
	FieldRetry      = "retry"
	FieldDelay      = "delay"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldOnline = "online"
	FieldSpeed  = "speed"
	FieldRTT    = "rtt"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"
)
