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

package messagesize

import (
	"testing"

	"github.com/relayrpc/relay-go/internal/relaytest"
	"github.com/relayrpc/relay-go/serviceconfig"
)

type s struct {
	relaytest.Tester
}

func Test(t *testing.T) {
	relaytest.RunSubTests(t, s{})
}

func newTestRegistry(t *testing.T) *serviceconfig.Registry {
	t.Helper()
	r := serviceconfig.NewRegistry()
	r.Register(NewParser())
	if idx, ok := r.IndexOf(Name); !ok || idx != 0 {
		t.Fatalf("parser %q registered at index %d, want 0", Name, idx)
	}
	return r
}

func methodJSON(fields string) string {
	return `{"methodConfig":[{"name":[{"service":"TestServ","method":"TestMethod"}],` + fields + `}]}`
}

func parseMethod(t *testing.T, js string) *Config {
	t.Helper()
	sc, err := serviceconfig.Parse(newTestRegistry(t), js, serviceconfig.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(%q) returned error: %v", js, err)
	}
	cfgs := sc.MethodConfigs("/TestServ/TestMethod")
	if cfgs == nil {
		t.Fatalf("MethodConfigs(/TestServ/TestMethod) = nil, want configs")
	}
	cfg, ok := cfgs[0].(*Config)
	if !ok {
		t.Fatalf("MethodConfigs[0] = %T, want *Config", cfgs[0])
	}
	return cfg
}

func mustFail(t *testing.T, js, want string) {
	t.Helper()
	sc, err := serviceconfig.Parse(newTestRegistry(t), js, serviceconfig.ParseOptions{})
	if err == nil {
		t.Fatalf("Parse(%q) succeeded, want error %q", js, want)
	}
	if sc != nil {
		t.Fatalf("Parse(%q) returned a config alongside an error", js)
	}
	if got := err.Error(); got != want {
		t.Fatalf("Parse(%q) returned error:\n%q\nwant:\n%q", js, got, want)
	}
}

func (s) TestValid(t *testing.T) {
	cfg := parseMethod(t, methodJSON(`"maxRequestMessageBytes":1024,"maxResponseMessageBytes":1024`))
	if cfg.MaxRequestSize != 1024 || cfg.MaxResponseSize != 1024 {
		t.Errorf("limits = (%d, %d), want (1024, 1024)", cfg.MaxRequestSize, cfg.MaxResponseSize)
	}
}

func (s) TestOneFieldAbsent(t *testing.T) {
	cfg := parseMethod(t, methodJSON(`"maxRequestMessageBytes":1024`))
	if cfg.MaxRequestSize != 1024 {
		t.Errorf("MaxRequestSize = %d, want 1024", cfg.MaxRequestSize)
	}
	if cfg.MaxResponseSize != -1 {
		t.Errorf("MaxResponseSize = %d, want -1 for an absent field", cfg.MaxResponseSize)
	}
}

func (s) TestStringForm(t *testing.T) {
	// int64 fields may arrive as decimal strings, as proto JSON writes them.
	cfg := parseMethod(t, methodJSON(`"maxRequestMessageBytes":"1024","maxResponseMessageBytes":"4294967296"`))
	if cfg.MaxRequestSize != 1024 || cfg.MaxResponseSize != 4294967296 {
		t.Errorf("limits = (%d, %d), want (1024, 4294967296)", cfg.MaxRequestSize, cfg.MaxResponseSize)
	}
}

func (s) TestBothFieldsAbsent(t *testing.T) {
	sc, err := serviceconfig.Parse(newTestRegistry(t), methodJSON(`"waitForReady":true`), serviceconfig.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	cfgs := sc.MethodConfigs("/TestServ/TestMethod")
	if cfgs == nil {
		t.Fatalf("MethodConfigs(/TestServ/TestMethod) = nil, want configs")
	}
	if cfgs[0] != nil {
		t.Errorf("MethodConfigs[0] = %v, want nil", cfgs[0])
	}
}

func (s) TestNoGlobalConfig(t *testing.T) {
	sc, err := serviceconfig.Parse(newTestRegistry(t), methodJSON(`"maxRequestMessageBytes":1024`), serviceconfig.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg := sc.GlobalConfig(0); cfg != nil {
		t.Errorf("GlobalConfig(0) = %v, want nil for a per-method-only parser", cfg)
	}
}

func (s) TestNegative(t *testing.T) {
	mustFail(t, methodJSON(`"maxRequestMessageBytes":-1024`),
		"Service config parsing error: [Method Params: [methodConfig: [Message size parser: [field:maxRequestMessageBytes error:should be non-negative]]]]")
}

func (s) TestNonIntegerNumber(t *testing.T) {
	mustFail(t, methodJSON(`"maxRequestMessageBytes":1024.5`),
		"Service config parsing error: [Method Params: [methodConfig: [Message size parser: [field:maxRequestMessageBytes error:should be non-negative]]]]")
}

func (s) TestUnparseableString(t *testing.T) {
	mustFail(t, methodJSON(`"maxRequestMessageBytes":"1e3"`),
		"Service config parsing error: [Method Params: [methodConfig: [Message size parser: [field:maxRequestMessageBytes error:should be non-negative]]]]")
}

func (s) TestWrongType(t *testing.T) {
	mustFail(t, methodJSON(`"maxResponseMessageBytes":{}`),
		"Service config parsing error: [Method Params: [methodConfig: [Message size parser: [field:maxResponseMessageBytes error:should be of type number]]]]")
}

func (s) TestBothFieldsInvalid(t *testing.T) {
	mustFail(t, methodJSON(`"maxRequestMessageBytes":-1,"maxResponseMessageBytes":[]`),
		"Service config parsing error: [Method Params: [methodConfig: [Message size parser: ["+
			"field:maxRequestMessageBytes error:should be non-negative; "+
			"field:maxResponseMessageBytes error:should be of type number]]]]")
}

func (s) TestServiceWideEntry(t *testing.T) {
	js := `{"methodConfig":[{"name":[{"service":"TestServ"}],"maxRequestMessageBytes":2048}]}`
	sc, err := serviceconfig.Parse(newTestRegistry(t), js, serviceconfig.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	cfgs := sc.MethodConfigs("/TestServ/AnyMethod")
	if cfgs == nil {
		t.Fatalf("MethodConfigs(/TestServ/AnyMethod) = nil, want the service-wide entry")
	}
	if cfg := cfgs[0].(*Config); cfg.MaxRequestSize != 2048 {
		t.Errorf("MaxRequestSize = %d, want 2048", cfg.MaxRequestSize)
	}
}
