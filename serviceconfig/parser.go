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

package serviceconfig

import (
	"encoding/json"
	"fmt"

	"github.com/relayrpc/relay-go/attributes"
)

// ParseOptions contains the options forwarded verbatim to every parser
// invocation during one parse.
type ParseOptions struct {
	// Args carries opaque caller-supplied values, typically feature flags.
	// Parsers look up the keys they care about and must tolerate a nil
	// Args.
	Args *attributes.Attributes
}

// Parser validates one named slice of a service config document and produces
// a typed result for it. A Parser must additionally implement GlobalParser,
// PerMethodParser, or both; the name alone identifies which slice of the
// document it owns.
//
// Parsers never see each other's results and must not communicate through
// shared state; the only coupling between them is their registration order.
type Parser interface {
	// Name returns the name under which the parser is registered. It must
	// be non-empty and unique within a Registry.
	Name() string
}

// GlobalParser is implemented by parsers that consume fields of the
// top-level service config object.
type GlobalParser interface {
	Parser

	// ParseGlobal validates this parser's fields of the top-level object
	// js. Returning a nil ParsedConfig with a nil error means none of the
	// parser's fields were present, which is success: absence of a key is
	// a legitimate use of the config space by other parsers.
	ParseGlobal(opts ParseOptions, js json.RawMessage) (ParsedConfig, error)
}

// PerMethodParser is implemented by parsers that consume fields of
// individual methodConfig entries.
type PerMethodParser interface {
	Parser

	// ParsePerMethod validates this parser's fields of one methodConfig
	// entry js. The nil, nil convention of ParseGlobal applies.
	ParsePerMethod(opts ParseOptions, js json.RawMessage) (ParsedConfig, error)
}

// Registry is an ordered collection of service config parsers. The index
// assigned at registration is stable for the life of the Registry and is how
// parsed results are addressed, so registration order is part of a program's
// configuration surface.
//
// A Registry must be fully built before the first call to Parse and not
// mutated afterwards; it is then safe for any number of concurrent parses.
type Registry struct {
	parsers []Parser
	index   map[string]int
}

// NewRegistry returns an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register appends p to the registry, assigning it the next index. It
// panics if p's name is empty or already taken: shadowing a feature parser
// silently would misparse every config from then on, so a wiring bug of
// this kind is not allowed to survive startup.
func (r *Registry) Register(p Parser) {
	name := p.Name()
	if name == "" {
		panic("serviceconfig: cannot register a parser with an empty name")
	}
	if _, ok := r.index[name]; ok {
		panic(fmt.Sprintf("serviceconfig: service config parser %q already registered", name))
	}
	r.index[name] = len(r.parsers)
	r.parsers = append(r.parsers, p)
}

// IndexOf returns the registration index of the named parser.
func (r *Registry) IndexOf(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

// NumParsers returns the number of registered parsers.
func (r *Registry) NumParsers() int {
	return len(r.parsers)
}
