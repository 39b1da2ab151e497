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

// Package messagesize implements the "message_size" service config parser,
// which reads the per-method maxRequestMessageBytes and
// maxResponseMessageBytes limits.
package messagesize

import (
	"encoding/json"
	"strconv"

	"github.com/relayrpc/relay-go/serviceconfig"
)

// Name is the name under which the parser registers.
const Name = "message_size"

// NewParser returns the message size service config parser. It has no
// global configuration; it only contributes per-method limits.
func NewParser() serviceconfig.Parser {
	return parser{}
}

type parser struct{}

func (parser) Name() string {
	return Name
}

// Config holds the per-method payload limits. A limit of -1 means the field
// was not present.
type Config struct {
	serviceconfig.ParsedConfig

	// MaxRequestSize caps the size of outgoing request payloads in bytes.
	MaxRequestSize int64
	// MaxResponseSize caps the size of incoming response payloads in bytes.
	MaxResponseSize int64
}

func (parser) ParsePerMethod(_ serviceconfig.ParseOptions, js json.RawMessage) (serviceconfig.ParsedConfig, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(js, &fields); err != nil {
		return nil, err
	}
	rawReq, okReq := fields["maxRequestMessageBytes"]
	rawResp, okResp := fields["maxResponseMessageBytes"]
	if !okReq && !okResp {
		return nil, nil
	}

	cfg := &Config{MaxRequestSize: -1, MaxResponseSize: -1}
	var errs []*serviceconfig.Error
	if okReq {
		cfg.MaxRequestSize = parseLimit(rawReq, "maxRequestMessageBytes", &errs)
	}
	if okResp {
		cfg.MaxResponseSize = parseLimit(rawResp, "maxResponseMessageBytes", &errs)
	}
	if len(errs) > 0 {
		return nil, serviceconfig.GroupError("Message size parser", errs...)
	}
	return cfg, nil
}

// parseLimit accepts the limit either as a JSON number or, in the style of
// proto-JSON int64 values, as a decimal string.
func parseLimit(raw json.RawMessage, field string, errs *[]*serviceconfig.Error) int64 {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			*errs = append(*errs, serviceconfig.NewErrorf("field:%s error:should be of type number", field))
			return -1
		}
		n = json.Number(s)
	}
	v, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil || v < 0 {
		*errs = append(*errs, serviceconfig.NewErrorf("field:%s error:should be non-negative", field))
		return -1
	}
	return v
}
