// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads sensorlink's YAML configuration.
//
// Configuration comes from a single file named by either the
// SENSORLINK_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no discovery and no search path.
//
// The file may carry development, staging and production sections
// that override base values when [Config].Environment matches. A
// production config must name a group and an API key.
//
// ${VAR} and ${VAR:-default} patterns are expanded in the socket path,
// the producer binary and the bind parameters after loading, so the
// API key can stay out of the file:
//
//	params:
//	  api_key: ${SENSORLINK_API_KEY}
//
// Key exports:
//
//   - [Config] -- producer, params, rebind, transaction and metrics sections
//   - [Default] -- a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
