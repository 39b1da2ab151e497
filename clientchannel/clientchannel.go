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

// Package clientchannel implements the "client_channel" service config
// parser: load balancing policy selection, the health check target, and the
// per-method timeout and waitForReady settings.
package clientchannel

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/relayrpc/relay-go/balancer"
	internalserviceconfig "github.com/relayrpc/relay-go/internal/serviceconfig"
	"github.com/relayrpc/relay-go/serviceconfig"
)

// Name is the name under which the parser registers.
const Name = "client_channel"

// NewParser returns the client channel service config parser.
func NewParser() serviceconfig.Parser {
	return parser{}
}

type parser struct{}

func (parser) Name() string {
	return Name
}

// GlobalConfig is the client channel's slice of the global service config.
type GlobalConfig struct {
	serviceconfig.ParsedConfig

	// LBConfig names the policy selected through loadBalancingConfig and
	// carries the configuration the policy parsed for itself. nil when the
	// field is absent.
	LBConfig *LBConfig
	// LBPolicy is the policy named by the legacy loadBalancingPolicy field,
	// lowercased. Empty when the field is absent.
	LBPolicy string
	// HealthCheckServiceName is the value of healthCheckConfig.serviceName,
	// empty when health checking is not configured.
	HealthCheckServiceName string
}

// LBConfig wraps the name of a load balancing policy and the configuration
// it parsed for itself.
type LBConfig struct {
	Name   string
	Config serviceconfig.LoadBalancingConfig
}

// MethodConfig carries the per-method settings owned by the client channel.
type MethodConfig struct {
	serviceconfig.ParsedConfig

	// Timeout is the default deadline for calls matching the entry. nil
	// means no deadline is applied.
	Timeout *time.Duration
	// WaitForReady makes matching calls wait for the channel to become
	// ready instead of failing fast. nil means unset.
	WaitForReady *bool
}

func (parser) ParseGlobal(_ serviceconfig.ParseOptions, js json.RawMessage) (serviceconfig.ParsedConfig, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(js, &fields); err != nil {
		return nil, err
	}
	cfg := &GlobalConfig{}
	found := false
	var errs []*serviceconfig.Error

	if raw, ok := fields["loadBalancingConfig"]; ok {
		found = true
		var bc internalserviceconfig.BalancerConfig
		if err := bc.UnmarshalJSON(raw); err != nil {
			errs = append(errs, serviceconfig.NewErrorf("field:loadBalancingConfig error:%v", err))
		} else {
			cfg.LBConfig = &LBConfig{Name: bc.Name, Config: bc.Config}
		}
	}

	if raw, ok := fields["loadBalancingPolicy"]; ok {
		found = true
		var policy string
		if err := json.Unmarshal(raw, &policy); err != nil {
			errs = append(errs, serviceconfig.NewError("field:loadBalancingPolicy error:type should be STRING"))
		} else {
			name := strings.ToLower(policy)
			b := balancer.Get(name)
			if b == nil {
				errs = append(errs, serviceconfig.NewErrorf("field:loadBalancingPolicy error:Unknown lb policy %s", name))
			} else if cr, ok := b.(balancer.ConfigRequirer); ok && cr.RequiresConfig() {
				// The legacy field cannot carry a config, so policies that
				// need one can only be selected via loadBalancingConfig.
				errs = append(errs, serviceconfig.NewErrorf("field:loadBalancingPolicy error:%s requires a config. Please use loadBalancingConfig instead.", name))
			} else {
				cfg.LBPolicy = name
			}
		}
	}

	if raw, ok := fields["healthCheckConfig"]; ok {
		found = true
		if err := parseHealthCheckConfig(raw, cfg); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, serviceconfig.GroupError("Client channel global parser", errs...)
	}
	if !found {
		return nil, nil
	}
	return cfg, nil
}

func parseHealthCheckConfig(raw json.RawMessage, cfg *GlobalConfig) *serviceconfig.Error {
	var hc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &hc); err != nil || hc == nil {
		return serviceconfig.NewError("field:healthCheckConfig error:should be of type object")
	}
	rawName, ok := hc["serviceName"]
	if !ok {
		return nil
	}
	var name string
	if err := json.Unmarshal(rawName, &name); err != nil {
		return serviceconfig.GroupError("field:healthCheckConfig",
			serviceconfig.NewError("field:serviceName error:should be of type string"))
	}
	cfg.HealthCheckServiceName = name
	return nil
}

func (parser) ParsePerMethod(_ serviceconfig.ParseOptions, js json.RawMessage) (serviceconfig.ParsedConfig, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(js, &fields); err != nil {
		return nil, err
	}
	cfg := &MethodConfig{}
	found := false
	var errs []*serviceconfig.Error

	if raw, ok := fields["timeout"]; ok {
		found = true
		var d internalserviceconfig.Duration
		if err := json.Unmarshal(raw, &d); err != nil {
			errs = append(errs, serviceconfig.NewError("field:timeout error:type should be STRING of the form given by google.proto.Duration"))
		} else {
			t := time.Duration(d)
			cfg.Timeout = &t
		}
	}

	if raw, ok := fields["waitForReady"]; ok {
		found = true
		var w bool
		if err := json.Unmarshal(raw, &w); err != nil {
			errs = append(errs, serviceconfig.NewError("field:waitForReady error:Type should be true/false"))
		} else {
			cfg.WaitForReady = &w
		}
	}

	if len(errs) > 0 {
		return nil, serviceconfig.GroupError("Client channel parser", errs...)
	}
	if !found {
		return nil, nil
	}
	return cfg, nil
}
