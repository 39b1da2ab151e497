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

// Package serviceconfig implements parsing and validation of service config
// documents.
//
// A service config is a JSON object carrying per-channel and per-method
// policy for an RPC client: which load-balancing policy to use, whether and
// how calls may be retried, how large messages may be, and so on. The
// document format is extensible: independent feature packages register a
// Parser for the fields they own, and the engine walks one document applying
// every registered parser without any parser knowing about the others.
//
// Validation is strict about reporting: every failure across all parsers and
// all methodConfig entries is collected into a single *Error tree rather
// than stopping at the first defect. Only a malformed document (bad JSON, a
// top-level value that is not an object, or a methodConfig list of the wrong
// shape) aborts the pass early.
package serviceconfig

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/relayrpc/relay-go/relaylog"
)

var logger = relaylog.Component("serviceconfig")

// ParsedConfig is the opaque typed result produced by one parser for one
// scope of the document, global or per-method. It is retrieved by the
// producing parser's registration index and cast back by the feature code
// that knows the concrete type.
type ParsedConfig interface {
	isParsedConfig()
}

// LoadBalancingConfig represents an opaque data structure holding a load
// balancing config produced by a balancer's config parser.
type LoadBalancingConfig interface {
	isLoadBalancingConfig()
}

// ServiceConfig is the parsed, immutable form of one service config
// document. It is built in a single pass by Parse and never mutated
// afterwards, so it is safe for any number of concurrent readers; it is
// replaced wholesale when a new config arrives.
type ServiceConfig struct {
	raw  string
	hash uint64

	global        []ParsedConfig
	methods       map[string][]ParsedConfig
	defaultConfig []ParsedConfig
}

// Parse validates the service config document js against every parser
// registered in r and assembles their results into a ServiceConfig. opts is
// forwarded verbatim to every parser invocation.
//
// On validation failure the returned error is an *Error tree containing
// every defect found in the pass, and no config is returned.
func Parse(r *Registry, js string, opts ParseOptions) (*ServiceConfig, error) {
	if len(js) == 0 {
		return nil, errors.New("no JSON service config provided")
	}
	var rawCfg map[string]json.RawMessage
	if err := json.Unmarshal([]byte(js), &rawCfg); err != nil {
		logger.Warningf("error unmarshaling service config %s due to %v", js, err)
		return nil, err
	}
	if rawCfg == nil {
		return nil, errors.New("service config JSON must be an object")
	}

	sc := &ServiceConfig{
		raw:     js,
		hash:    xxhash.Sum64String(js),
		global:  make([]ParsedConfig, r.NumParsers()),
		methods: make(map[string][]ParsedConfig),
	}
	globalErrs := sc.parseGlobalParams(r, json.RawMessage(js), opts)
	methodErrs, err := sc.parseMethodParams(r, rawCfg, opts)
	if err != nil {
		logger.Warningf("error unmarshaling service config %s due to %v", js, err)
		return nil, err
	}
	if parseErr := GroupError("Service config parsing error", globalErrs, methodErrs); parseErr != nil {
		return nil, parseErr
	}
	return sc, nil
}

// parseGlobalParams runs every global-capable parser against the top-level
// object. A failing parser never stops the others.
func (sc *ServiceConfig) parseGlobalParams(r *Registry, js json.RawMessage, opts ParseOptions) *Error {
	var errs []*Error
	for i, p := range r.parsers {
		gp, ok := p.(GlobalParser)
		if !ok {
			continue
		}
		cfg, err := gp.ParseGlobal(opts, js)
		if err != nil {
			errs = append(errs, asTreeError(err))
			continue
		}
		sc.global[i] = cfg
	}
	return GroupError("Global Params", errs...)
}

// parseMethodParams walks the methodConfig list, if present. The second
// return value is non-nil only for structural failures, which abort the
// whole parse; per-entry validation failures come back in the *Error tree.
func (sc *ServiceConfig) parseMethodParams(r *Registry, rawCfg map[string]json.RawMessage, opts ParseOptions) (*Error, error) {
	mcJSON, ok := rawCfg["methodConfig"]
	if !ok {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(mcJSON, &entries); err != nil || entries == nil {
		return nil, errors.New("field methodConfig must be an array")
	}
	var errs []*Error
	for _, entry := range entries {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(entry, &obj); err != nil || obj == nil {
			return nil, errors.New("methodConfig entries must be objects")
		}
		errs = append(errs, sc.parseMethodConfig(r, entry, obj, opts))
	}
	return GroupError("Method Params", errs...), nil
}

// parseMethodConfig handles one methodConfig entry: it runs every
// per-method-capable parser against the entry, then validates the entry's
// names and registers the parsed results under each of them. Duplicate
// detection spans the whole document: the same concrete name, or a second
// default (empty) name, anywhere in the list is an error. An entry with no
// names parses cleanly but is unreachable from lookups.
func (sc *ServiceConfig) parseMethodConfig(r *Registry, entry json.RawMessage, obj map[string]json.RawMessage, opts ParseOptions) *Error {
	var errs []*Error

	configs := make([]ParsedConfig, len(r.parsers))
	for i, p := range r.parsers {
		pmp, ok := p.(PerMethodParser)
		if !ok {
			continue
		}
		cfg, err := pmp.ParsePerMethod(opts, entry)
		if err != nil {
			errs = append(errs, asTreeError(err))
			continue
		}
		configs[i] = cfg
	}

	if nameJSON, ok := obj["name"]; ok {
		var names []json.RawMessage
		if err := json.Unmarshal(nameJSON, &names); err != nil {
			errs = append(errs, NewError("field:name error:should be of type array"))
		}
		for _, nameJS := range names {
			var name jsonName
			if err := json.Unmarshal(nameJS, &name); err != nil {
				errs = append(errs, NewErrorf("field:name error:%v", err))
				continue
			}
			path, isDefault, nameErr := name.path()
			if nameErr != nil {
				errs = append(errs, nameErr)
				continue
			}
			if isDefault {
				if sc.defaultConfig != nil {
					errs = append(errs, NewError("multiple default method configs"))
					continue
				}
				sc.defaultConfig = configs
				continue
			}
			if _, ok := sc.methods[path]; ok {
				errs = append(errs, NewError("multiple method configs with same name"))
				continue
			}
			sc.methods[path] = configs
		}
	}

	return GroupError("methodConfig", errs...)
}

type jsonName struct {
	Service string `json:"service,omitempty"`
	Method  string `json:"method,omitempty"`
}

// path returns the method index key for the name. A name with no service
// designates the config-wide default entry; a null or empty method is the
// same as an absent one and selects the whole service.
func (j jsonName) path() (path string, isDefault bool, _ *Error) {
	if j.Service == "" {
		if j.Method != "" {
			return "", false, NewErrorf("field:name error:method %q set without service", j.Method)
		}
		return "", true, nil
	}
	res := "/" + j.Service + "/"
	if j.Method != "" {
		res += j.Method
	}
	return res, false, nil
}

// GlobalConfig returns the global result produced by the parser registered
// at the given index, or nil if that parser produced none.
func (sc *ServiceConfig) GlobalConfig(index int) ParsedConfig {
	if index < 0 || index >= len(sc.global) {
		return nil
	}
	return sc.global[index]
}

// MethodConfigs returns the per-method results that apply to a call with the
// given "/service/method" path, indexed by parser registration index. An
// exact match wins over a config named for the service alone, which wins
// over the default entry. A nil return means no per-method policy applies;
// it is not an error. The returned slice must not be modified.
func (sc *ServiceConfig) MethodConfigs(path string) []ParsedConfig {
	if cfgs, ok := sc.methods[path]; ok {
		return cfgs
	}
	// Strip the method to try the service-wide entry.
	if i := strings.LastIndex(path, "/"); i >= 0 {
		if cfgs, ok := sc.methods[path[:i+1]]; ok {
			return cfgs
		}
	}
	return sc.defaultConfig
}

// JSON returns the document text the config was parsed from.
func (sc *ServiceConfig) JSON() string {
	return sc.raw
}

// Fingerprint returns a 64-bit hash of the document text. Configs parsed
// from byte-identical documents share a fingerprint, which makes change
// suppression cheap for callers that re-read their config source.
func (sc *ServiceConfig) Fingerprint() uint64 {
	return sc.hash
}

// Equal reports whether sc and other were parsed from byte-identical
// documents.
func (sc *ServiceConfig) Equal(other *ServiceConfig) bool {
	if sc == nil || other == nil {
		return sc == other
	}
	return sc.hash == other.hash && sc.raw == other.raw
}
