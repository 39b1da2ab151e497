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

// Package balancer holds the registry of load balancing policies. Service
// configs select a policy by its registered name, and a policy that accepts
// a configuration of its own parses it through the ConfigParser it registers
// here.
package balancer

import (
	"encoding/json"
	"strings"

	"github.com/relayrpc/relay-go/relaylog"
	"github.com/relayrpc/relay-go/serviceconfig"
)

var (
	// m is a map from name to balancer builder.
	m      = make(map[string]Builder)
	logger = relaylog.Component("balancer")
)

// Builder registers a load balancing policy under the name service configs
// use to select it.
type Builder interface {
	// Name returns the name the policy registers under. Names are matched
	// case-insensitively and should be lowercase.
	Name() string
}

// ConfigParser parses load balancer configs.
type ConfigParser interface {
	// ParseConfig parses the JSON load balancer config provided into an
	// internal form or returns an error if the config is invalid. For future
	// compatibility reasons, unknown fields in the config should be ignored.
	ParseConfig(LoadBalancingConfigJSON json.RawMessage) (serviceconfig.LoadBalancingConfig, error)
}

// ConfigRequirer is implemented by Builders whose policy cannot function
// without a structured config. Such a policy can only be selected through
// the loadBalancingConfig service config field; the legacy
// loadBalancingPolicy field has no way to carry a config and rejects these
// policies.
type ConfigRequirer interface {
	// RequiresConfig reports whether the policy needs a config.
	RequiresConfig() bool
}

// Register registers the balancer builder to the balancer map. b.Name
// (lowercased) is used as the name registered with this builder. If the
// Builder implements ConfigParser, ParseConfig will be called when a service
// config selecting this policy is parsed, and the result is carried in the
// parsed config.
//
// NOTE: this function must only be called during initialization time (i.e.
// in an init() function), and is not thread-safe. If multiple Balancers are
// registered with the same name, the one registered last will take effect.
func Register(b Builder) {
	name := strings.ToLower(b.Name())
	if name != b.Name() {
		logger.Warningf("Balancer registered with non-lowercase name %q; it will be matched case-insensitively", b.Name())
	}
	m[name] = b
}

// Get returns the balancer builder registered with the given name. Note
// that the compare is done in a case-insensitive fashion. If no builder is
// registered with the name, nil will be returned.
func Get(name string) Builder {
	if b, ok := m[strings.ToLower(name)]; ok {
		return b
	}
	return nil
}
