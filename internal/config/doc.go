// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the daemon configuration.
//
// Precedence is ENV (TVPLAY_*) > YAML file (strict) > defaults. The Holder
// keeps the active configuration and reloads it when the file changes.
package config
