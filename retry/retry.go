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

// Package retry implements the "retry" service config parser. It owns the
// global retryThrottling policy and the per-method retryPolicy block,
// compatible with the fields of the same names in a gRPC service config.
package retry

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/relayrpc/relay-go/codes"
	"github.com/relayrpc/relay-go/internal/envconfig"
	internalserviceconfig "github.com/relayrpc/relay-go/internal/serviceconfig"
	"github.com/relayrpc/relay-go/relaylog"
	"github.com/relayrpc/relay-go/serviceconfig"
)

// Name is the name under which the parser registers.
const Name = "retry"

var logger = relaylog.Component("retry")

type enableHedgingKey struct{}

// EnableHedgingKey is the ParseOptions attributes key under which a parse
// opts in to hedging. Associate it with true to honor perAttemptRecvTimeout;
// when the key is absent the RELAY_EXPERIMENTAL_ENABLE_HEDGING environment
// variable decides, and without either the field is ignored.
var EnableHedgingKey = enableHedgingKey{}

// NewParser returns the retry service config parser. It must be registered
// for retryThrottling and retryPolicy to take effect.
func NewParser() serviceconfig.Parser {
	return parser{}
}

type parser struct{}

func (parser) Name() string {
	return Name
}

// ThrottlingConfig is the parsed global retryThrottling policy. Token counts
// are kept in milli-token fixed point so that fractional token ratios stay
// exact.
type ThrottlingConfig struct {
	serviceconfig.ParsedConfig

	// MaxMilliTokens is the initial and maximum size of the token bucket.
	MaxMilliTokens int
	// MilliTokenRatio is the number of milli-tokens credited back to the
	// bucket for each successful call.
	MilliTokenRatio int
}

// Policy is the parsed per-method retryPolicy.
type Policy struct {
	serviceconfig.ParsedConfig

	// MaxAttempts is the maximum number of attempts, including the original
	// attempt.
	MaxAttempts int
	// InitialBackoff, MaxBackoff and BackoffMultiplier bound the random
	// delay before the n-th retry:
	// rand(0, min(InitialBackoff*BackoffMultiplier^(n-1), MaxBackoff)).
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// PerAttemptRecvTimeout bounds the wait for a response on each attempt.
	// Populated only when hedging is enabled for the parse.
	PerAttemptRecvTimeout *time.Duration
	// RetryableStatusCodes is the set of status codes after which the call
	// may be retried.
	RetryableStatusCodes map[codes.Code]bool
}

func (parser) ParseGlobal(_ serviceconfig.ParseOptions, js json.RawMessage) (serviceconfig.ParsedConfig, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(js, &fields); err != nil {
		return nil, err
	}
	raw, ok := fields["retryThrottling"]
	if !ok {
		return nil, nil
	}
	var throttling map[string]json.RawMessage
	if err := json.Unmarshal(raw, &throttling); err != nil || throttling == nil {
		return nil, serviceconfig.NewError("field:retryThrottling error:should be of type object")
	}

	cfg := &ThrottlingConfig{}
	var errs []*serviceconfig.Error

	if raw, ok := throttling["maxTokens"]; !ok {
		errs = append(errs, serviceconfig.NewError("field:retryThrottling field:maxTokens error:Not found"))
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			errs = append(errs, serviceconfig.NewError("field:retryThrottling field:maxTokens error:should be of type number"))
		} else if v, err := strconv.Atoi(string(n)); err != nil || v <= 0 {
			errs = append(errs, serviceconfig.NewError("field:retryThrottling field:maxTokens error:should be greater than zero"))
		} else {
			cfg.MaxMilliTokens = v * 1000
		}
	}

	if raw, ok := throttling["tokenRatio"]; !ok {
		errs = append(errs, serviceconfig.NewError("field:retryThrottling field:tokenRatio error:Not found"))
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			errs = append(errs, serviceconfig.NewError("field:retryThrottling field:tokenRatio error:should be of type number"))
		} else if v, ok := parseMilliRatio(string(n)); !ok || v <= 0 {
			errs = append(errs, serviceconfig.NewError("field:retryThrottling field:tokenRatio error:Failed parsing"))
		} else {
			cfg.MilliTokenRatio = v
		}
	}

	if len(errs) > 0 {
		return nil, serviceconfig.GroupError("retryThrottling", errs...)
	}
	return cfg, nil
}

// parseMilliRatio converts a decimal number literal into fixed-point
// milli-units, honoring at most three decimal digits. It works on the text
// form so "1.001" stays exact. Signs, exponents and empty strings are
// rejected.
func parseMilliRatio(s string) (int, bool) {
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > 3 {
		frac = frac[:3]
	}
	for len(frac) < 3 {
		frac += "0"
	}
	w, err := strconv.ParseUint(whole, 10, 32)
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseUint(frac, 10, 32)
	if err != nil {
		return 0, false
	}
	return int(w)*1000 + int(f), true
}

func (parser) ParsePerMethod(opts serviceconfig.ParseOptions, js json.RawMessage) (serviceconfig.ParsedConfig, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(js, &fields); err != nil {
		return nil, err
	}
	raw, ok := fields["retryPolicy"]
	if !ok {
		return nil, nil
	}
	var rp map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rp); err != nil || rp == nil {
		return nil, serviceconfig.NewError("field:retryPolicy error:should be of type object")
	}

	policy := &Policy{RetryableStatusCodes: make(map[codes.Code]bool)}
	var errs []*serviceconfig.Error

	if raw, ok := rp["maxAttempts"]; !ok {
		errs = append(errs, serviceconfig.NewError("field:maxAttempts error:required field missing"))
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			errs = append(errs, serviceconfig.NewError("field:maxAttempts error:should be of type number"))
		} else if v, err := strconv.Atoi(string(n)); err != nil || v <= 1 {
			errs = append(errs, serviceconfig.NewError("field:maxAttempts error:should be at least 2"))
		} else {
			if max := int(envconfig.MaxCallAttempts); v > max {
				logger.Warningf("service config: clamped retryPolicy.maxAttempts at %d", max)
				v = max
			}
			policy.MaxAttempts = v
		}
	}

	policy.InitialBackoff = parseBackoff(rp, "initialBackoff", &errs)
	policy.MaxBackoff = parseBackoff(rp, "maxBackoff", &errs)

	if raw, ok := rp["backoffMultiplier"]; !ok {
		errs = append(errs, serviceconfig.NewError("field:backoffMultiplier error:required field missing"))
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			errs = append(errs, serviceconfig.NewError("field:backoffMultiplier error:should be of type number"))
		} else if v, err := strconv.ParseFloat(string(n), 64); err != nil || v <= 0 {
			errs = append(errs, serviceconfig.NewError("field:backoffMultiplier error:must be greater than 0"))
		} else {
			policy.BackoffMultiplier = v
		}
	}

	if raw, ok := rp["retryableStatusCodes"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || items == nil {
			errs = append(errs, serviceconfig.NewError("field:retryableStatusCodes error:must be of type array"))
		} else {
			for _, item := range items {
				var name string
				if err := json.Unmarshal(item, &name); err != nil {
					errs = append(errs, serviceconfig.NewError("field:retryableStatusCodes error:status codes should be of type string"))
					continue
				}
				code, ok := codes.FromString(name)
				if !ok {
					errs = append(errs, serviceconfig.NewError("field:retryableStatusCodes error:failed to parse status code"))
					continue
				}
				policy.RetryableStatusCodes[code] = true
			}
		}
	}

	if hedgingEnabled(opts) {
		if raw, ok := rp["perAttemptRecvTimeout"]; ok {
			var d internalserviceconfig.Duration
			if err := json.Unmarshal(raw, &d); err != nil {
				errs = append(errs, serviceconfig.NewError("field:perAttemptRecvTimeout error:type must be STRING of the form given by google.proto.Duration."))
			} else {
				t := time.Duration(d)
				policy.PerAttemptRecvTimeout = &t
				// A value of 0 may become legal once hedging policies can
				// name a fallback; until then it is rejected.
				if t <= 0 {
					errs = append(errs, serviceconfig.NewError("field:perAttemptRecvTimeout error:must be greater than 0"))
				}
			}
		} else if len(policy.RetryableStatusCodes) == 0 {
			// Without a per-attempt timeout the policy needs at least one
			// code to retry on.
			errs = append(errs, serviceconfig.NewError("field:retryableStatusCodes error:must be non-empty"))
		}
	} else if len(policy.RetryableStatusCodes) == 0 {
		errs = append(errs, serviceconfig.NewError("field:retryableStatusCodes error:must be non-empty"))
	}

	if len(errs) > 0 {
		return nil, serviceconfig.GroupError("retryPolicy", errs...)
	}
	return policy, nil
}

func parseBackoff(rp map[string]json.RawMessage, field string, errs *[]*serviceconfig.Error) time.Duration {
	raw, ok := rp[field]
	if !ok {
		*errs = append(*errs, serviceconfig.NewErrorf("field:%s error:does not exist", field))
		return 0
	}
	var d internalserviceconfig.Duration
	if err := json.Unmarshal(raw, &d); err != nil {
		*errs = append(*errs, serviceconfig.NewErrorf("field:%s error:type should be STRING of the form given by google.proto.Duration", field))
		return 0
	}
	if d <= 0 {
		*errs = append(*errs, serviceconfig.NewErrorf("field:%s error:must be greater than 0", field))
		return 0
	}
	return time.Duration(d)
}

func hedgingEnabled(opts serviceconfig.ParseOptions) bool {
	if enabled, ok := opts.Args.Value(EnableHedgingKey).(bool); ok {
		return enabled
	}
	return envconfig.EnableHedging
}
