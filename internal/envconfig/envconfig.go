/*
 *
 * Copyright 2024 Relay authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package envconfig contains relay settings configured by environment
// variables.
package envconfig

import (
	"os"
	"strconv"
	"strings"
)

var (
	// EnableHedging controls whether hedging-related fields of retry
	// policies ("RELAY_EXPERIMENTAL_ENABLE_HEDGING") are honored during
	// service config parsing. When disabled, those fields are ignored
	// without error.
	EnableHedging = boolFromEnv("RELAY_EXPERIMENTAL_ENABLE_HEDGING", false)

	// MaxCallAttempts is the upper bound applied to
	// retryPolicy.maxAttempts ("RELAY_EXPERIMENTAL_MAX_CALL_ATTEMPTS").
	// Configs requesting more attempts are clamped to this value.
	MaxCallAttempts = uint64FromEnv("RELAY_EXPERIMENTAL_MAX_CALL_ATTEMPTS", 5, 2, 100)
)

func boolFromEnv(envVar string, def bool) bool {
	if def {
		// The default is true; return true unless the variable is "false".
		return !strings.EqualFold(os.Getenv(envVar), "false")
	}
	// The default is false; return false unless the variable is "true".
	return strings.EqualFold(os.Getenv(envVar), "true")
}

func uint64FromEnv(envVar string, def, min, max uint64) uint64 {
	v, err := strconv.ParseUint(os.Getenv(envVar), 10, 64)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
