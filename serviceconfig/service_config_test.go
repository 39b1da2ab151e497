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
	"errors"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/relayrpc/relay-go/attributes"
	"github.com/relayrpc/relay-go/internal/relaytest"
)

type s struct {
	relaytest.Tester
}

func Test(t *testing.T) {
	relaytest.RunSubTests(t, s{})
}

// disableParsing is an args key the test parsers understand; parsers skip
// their fields entirely when it is set, exercising the options bag.
type disableParsing struct{}

type testNumberConfig struct {
	ParsedConfig
	value int
}

// testGlobalParser consumes the top-level "global_param" field.
type testGlobalParser struct{}

func (testGlobalParser) Name() string { return "test_parser_1" }

func (testGlobalParser) ParseGlobal(opts ParseOptions, js json.RawMessage) (ParsedConfig, error) {
	return parseNumberParam(opts, js, "global_param")
}

// testMethodParser consumes the "method_param" field of methodConfig entries.
type testMethodParser struct{}

func (testMethodParser) Name() string { return "test_parser_2" }

func (testMethodParser) ParsePerMethod(opts ParseOptions, js json.RawMessage) (ParsedConfig, error) {
	return parseNumberParam(opts, js, "method_param")
}

func parseNumberParam(opts ParseOptions, js json.RawMessage, param string) (ParsedConfig, error) {
	if opts.Args.Value(disableParsing{}) != nil {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(js, &fields); err != nil {
		return nil, err
	}
	raw, ok := fields[param]
	if !ok {
		return nil, nil
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, NewError(param + " value type should be a number")
	}
	if value < 0 {
		return nil, NewError(param + " value type should be non-negative")
	}
	return &testNumberConfig{value: int(value)}, nil
}

// errorParser fails both phases unconditionally, with plain (non-tree)
// errors so the engine's leaf wrapping is covered too.
type errorParser struct {
	name string
}

func (p errorParser) Name() string { return p.name }

func (errorParser) ParseGlobal(ParseOptions, json.RawMessage) (ParsedConfig, error) {
	return nil, errors.New("ErrorParserGlobal")
}

func (errorParser) ParsePerMethod(ParseOptions, json.RawMessage) (ParsedConfig, error) {
	return nil, errors.New("ErrorParserMethod")
}

// newTestRegistry returns a registry with testGlobalParser at index 0 and
// testMethodParser at index 1.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.Register(testGlobalParser{})
	r.Register(testMethodParser{})
	return r
}

func mustParse(t *testing.T, r *Registry, js string) *ServiceConfig {
	t.Helper()
	sc, err := Parse(r, js, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(%q) returned error: %v", js, err)
	}
	return sc
}

func (s) TestRegisterDuplicateNamePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("registering a duplicate parser name did not panic")
		}
	}()
	r := NewRegistry()
	r.Register(testGlobalParser{})
	r.Register(errorParser{name: "test_parser_1"})
}

func (s) TestRegisterEmptyNamePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("registering an empty parser name did not panic")
		}
	}()
	r := NewRegistry()
	r.Register(errorParser{})
}

func (s) TestRegistryIndexOf(t *testing.T) {
	r := newTestRegistry(t)
	if i, ok := r.IndexOf("test_parser_1"); !ok || i != 0 {
		t.Errorf(`IndexOf("test_parser_1") = %v, %v; want 0, true`, i, ok)
	}
	if i, ok := r.IndexOf("test_parser_2"); !ok || i != 1 {
		t.Errorf(`IndexOf("test_parser_2") = %v, %v; want 1, true`, i, ok)
	}
	if _, ok := r.IndexOf("unknown"); ok {
		t.Errorf(`IndexOf("unknown") = _, true; want _, false`)
	}
	if n := r.NumParsers(); n != 2 {
		t.Errorf("NumParsers() = %v; want 2", n)
	}
}

func (s) TestMalformedDocument(t *testing.T) {
	testCases := []struct {
		name string
		js   string
	}{
		{name: "empty input", js: ""},
		{name: "not JSON", js: "lalala"},
		{name: "string document", js: `"lalala"`},
		{name: "null document", js: "null"},
		{name: "number document", js: "5"},
		{name: "methodConfig not array", js: `{"methodConfig": {}}`},
		{name: "methodConfig null", js: `{"methodConfig": null}`},
		{name: "methodConfig entry not object", js: `{"methodConfig": [5]}`},
		{name: "methodConfig entry null", js: `{"methodConfig": [null]}`},
	}
	r := newTestRegistry(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sc, err := Parse(r, tc.js, ParseOptions{})
			if err == nil {
				t.Fatalf("Parse(%q) succeeded; want structural error", tc.js)
			}
			if sc != nil {
				t.Fatalf("Parse(%q) returned a config alongside an error", tc.js)
			}
			// Structural failures short-circuit and must not be dressed up
			// as a validation tree.
			var tree *Error
			if errors.As(err, &tree) {
				t.Fatalf("Parse(%q) returned a validation tree %v; want a plain error", tc.js, err)
			}
		})
	}
}

func (s) TestEmptyConfig(t *testing.T) {
	r := newTestRegistry(t)
	sc := mustParse(t, r, "{}")
	if cfg := sc.GlobalConfig(0); cfg != nil {
		t.Errorf("GlobalConfig(0) = %v; want nil", cfg)
	}
	if cfg := sc.GlobalConfig(1); cfg != nil {
		t.Errorf("GlobalConfig(1) = %v; want nil", cfg)
	}
	if cfgs := sc.MethodConfigs("/TestServ/TestMethod"); cfgs != nil {
		t.Errorf("MethodConfigs(/TestServ/TestMethod) = %v; want nil", cfgs)
	}
}

func (s) TestGlobalParserBasic(t *testing.T) {
	testCases := []struct {
		js   string
		want int
	}{
		{js: `{"global_param": 5}`, want: 5},
		{js: `{"global_param": 1000}`, want: 1000},
	}
	r := newTestRegistry(t)
	for _, tc := range testCases {
		sc := mustParse(t, r, tc.js)
		cfg, ok := sc.GlobalConfig(0).(*testNumberConfig)
		if !ok || cfg.value != tc.want {
			t.Errorf("Parse(%q): GlobalConfig(0) = %+v; want value %v", tc.js, sc.GlobalConfig(0), tc.want)
		}
	}
}

func (s) TestGlobalParserDisabledViaArgs(t *testing.T) {
	r := newTestRegistry(t)
	opts := ParseOptions{Args: attributes.New(disableParsing{}, true)}
	sc, err := Parse(r, `{"global_param": 5}`, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg := sc.GlobalConfig(0); cfg != nil {
		t.Errorf("GlobalConfig(0) = %v; want nil with parsing disabled", cfg)
	}
}

func (s) TestGlobalParserErrors(t *testing.T) {
	testCases := []struct {
		js      string
		wantErr string
	}{
		{
			js:      `{"global_param": "5"}`,
			wantErr: "Service config parsing error: [Global Params: [global_param value type should be a number]]",
		},
		{
			js:      `{"global_param": -5}`,
			wantErr: "Service config parsing error: [Global Params: [global_param value type should be non-negative]]",
		},
	}
	r := newTestRegistry(t)
	for _, tc := range testCases {
		_, err := Parse(r, tc.js, ParseOptions{})
		if err == nil || err.Error() != tc.wantErr {
			t.Errorf("Parse(%q) = error %v; want %q", tc.js, err, tc.wantErr)
		}
	}
}

func (s) TestMethodParserBasic(t *testing.T) {
	r := newTestRegistry(t)
	sc := mustParse(t, r, `{"methodConfig": [{"name":[{"service":"TestServ"}], "method_param":5}]}`)
	cfgs := sc.MethodConfigs("/TestServ/TestMethod")
	if cfgs == nil {
		t.Fatalf("MethodConfigs(/TestServ/TestMethod) = nil; want configs via service entry")
	}
	cfg, ok := cfgs[1].(*testNumberConfig)
	if !ok || cfg.value != 5 {
		t.Errorf("MethodConfigs(/TestServ/TestMethod)[1] = %+v; want value 5", cfgs[1])
	}
	if cfgs[0] != nil {
		t.Errorf("MethodConfigs(/TestServ/TestMethod)[0] = %+v; want nil slot for the global-only parser", cfgs[0])
	}
}

func (s) TestMethodParserDisabledViaArgs(t *testing.T) {
	r := newTestRegistry(t)
	opts := ParseOptions{Args: attributes.New(disableParsing{}, true)}
	sc, err := Parse(r, `{"methodConfig": [{"name":[{"service":"TestServ"}], "method_param":5}]}`, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	cfgs := sc.MethodConfigs("/TestServ/TestMethod")
	if cfgs == nil {
		t.Fatalf("MethodConfigs(/TestServ/TestMethod) = nil; want an entry with empty slots")
	}
	if cfgs[1] != nil {
		t.Errorf("MethodConfigs(/TestServ/TestMethod)[1] = %+v; want nil with parsing disabled", cfgs[1])
	}
}

func (s) TestMethodParserErrors(t *testing.T) {
	testCases := []struct {
		js      string
		wantErr string
	}{
		{
			js:      `{"methodConfig": [{"name":[{"service":"TestServ"}], "method_param":"5"}]}`,
			wantErr: "Service config parsing error: [Method Params: [methodConfig: [method_param value type should be a number]]]",
		},
		{
			js:      `{"methodConfig": [{"name":[{"service":"TestServ"}], "method_param":-5}]}`,
			wantErr: "Service config parsing error: [Method Params: [methodConfig: [method_param value type should be non-negative]]]",
		},
	}
	r := newTestRegistry(t)
	for _, tc := range testCases {
		_, err := Parse(r, tc.js, ParseOptions{})
		if err == nil || err.Error() != tc.wantErr {
			t.Errorf("Parse(%q) = error %v; want %q", tc.js, err, tc.wantErr)
		}
	}
}

func (s) TestSkipsMethodConfigWithNoOrEmptyName(t *testing.T) {
	r := newTestRegistry(t)
	sc := mustParse(t, r, `{"methodConfig": [
		{"method_param":1},
		{"name":[], "method_param":2},
		{"name":[{"service":"TestServ"}], "method_param":5}
	]}`)
	cfgs := sc.MethodConfigs("/TestServ/TestMethod")
	if cfgs == nil {
		t.Fatalf("MethodConfigs(/TestServ/TestMethod) = nil; want configs via service entry")
	}
	if cfg, ok := cfgs[1].(*testNumberConfig); !ok || cfg.value != 5 {
		t.Errorf("MethodConfigs(/TestServ/TestMethod)[1] = %+v; want value 5", cfgs[1])
	}
}

func (s) TestDuplicateMethodConfigNames(t *testing.T) {
	testCases := []struct {
		name string
		js   string
	}{
		{
			name: "same service and method",
			js: `{"methodConfig": [
				{"name":[{"service":"TestServ","method":"TestMethod"}]},
				{"name":[{"service":"TestServ","method":"TestMethod"}]}
			]}`,
		},
		{
			name: "null method matches absent method",
			js: `{"methodConfig": [
				{"name":[{"service":"TestServ","method":null}]},
				{"name":[{"service":"TestServ"}]}
			]}`,
		},
		{
			name: "empty method matches absent method",
			js: `{"methodConfig": [
				{"name":[{"service":"TestServ","method":""}]},
				{"name":[{"service":"TestServ"}]}
			]}`,
		},
		{
			name: "duplicate inside one entry",
			js: `{"methodConfig": [
				{"name":[{"service":"TestServ"},{"service":"TestServ"}]}
			]}`,
		},
	}
	const wantErr = "Service config parsing error: [Method Params: [methodConfig: [multiple method configs with same name]]]"
	r := newTestRegistry(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(r, tc.js, ParseOptions{})
			if err == nil || err.Error() != wantErr {
				t.Errorf("Parse(%q) = error %v; want %q", tc.js, err, wantErr)
			}
		})
	}
}

func (s) TestDuplicateDefaultMethodConfigs(t *testing.T) {
	testCases := []struct {
		name string
		js   string
	}{
		{
			name: "empty names",
			js:   `{"methodConfig": [{"name":[{}]}, {"name":[{}]}]}`,
		},
		{
			name: "null service matches empty name",
			js:   `{"methodConfig": [{"name":[{"service":null}]}, {"name":[{}]}]}`,
		},
		{
			name: "empty service matches empty name",
			js:   `{"methodConfig": [{"name":[{"service":""}]}, {"name":[{}]}]}`,
		},
	}
	const wantErr = "Service config parsing error: [Method Params: [methodConfig: [multiple default method configs]]]"
	r := newTestRegistry(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(r, tc.js, ParseOptions{})
			if err == nil || err.Error() != wantErr {
				t.Errorf("Parse(%q) = error %v; want %q", tc.js, err, wantErr)
			}
		})
	}
}

func (s) TestMethodNameWithoutService(t *testing.T) {
	r := newTestRegistry(t)
	_, err := Parse(r, `{"methodConfig": [{"name":[{"method":"TestMethod"}]}]}`, ParseOptions{})
	want := `Service config parsing error: [Method Params: [methodConfig: [field:name error:method "TestMethod" set without service]]]`
	if err == nil || err.Error() != want {
		t.Errorf("Parse = error %v; want %q", err, want)
	}
}

func (s) TestMethodNameNotArray(t *testing.T) {
	r := newTestRegistry(t)
	_, err := Parse(r, `{"methodConfig": [{"name":{"service":"TestServ"}}]}`, ParseOptions{})
	want := "Service config parsing error: [Method Params: [methodConfig: [field:name error:should be of type array]]]"
	if err == nil || err.Error() != want {
		t.Errorf("Parse = error %v; want %q", err, want)
	}
}

func (s) TestMethodLookupPrecedence(t *testing.T) {
	r := newTestRegistry(t)
	sc := mustParse(t, r, `{"methodConfig": [
		{"name":[{"service":"TestServ","method":"TestMethod"}], "method_param":1},
		{"name":[{"service":"TestServ"}], "method_param":2},
		{"name":[{}], "method_param":3}
	]}`)
	testCases := []struct {
		path string
		want int
	}{
		{path: "/TestServ/TestMethod", want: 1},
		{path: "/TestServ/OtherMethod", want: 2},
		{path: "/OtherServ/TestMethod", want: 3},
		{path: "no-slashes", want: 3},
	}
	for _, tc := range testCases {
		cfgs := sc.MethodConfigs(tc.path)
		if cfgs == nil {
			t.Errorf("MethodConfigs(%q) = nil; want value %v", tc.path, tc.want)
			continue
		}
		if cfg, ok := cfgs[1].(*testNumberConfig); !ok || cfg.value != tc.want {
			t.Errorf("MethodConfigs(%q)[1] = %+v; want value %v", tc.path, cfgs[1], tc.want)
		}
	}
}

func (s) TestMethodLookupMissWithoutDefault(t *testing.T) {
	r := newTestRegistry(t)
	sc := mustParse(t, r, `{"methodConfig": [{"name":[{"service":"TestServ"}], "method_param":2}]}`)
	if cfgs := sc.MethodConfigs("/OtherServ/TestMethod"); cfgs != nil {
		t.Errorf("MethodConfigs(/OtherServ/TestMethod) = %v; want nil", cfgs)
	}
}

func (s) TestErroredParsersScoping(t *testing.T) {
	r := NewRegistry()
	r.Register(errorParser{name: "ep1"})
	r.Register(errorParser{name: "ep2"})

	_, err := Parse(r, "{}", ParseOptions{})
	want := "Service config parsing error: [Global Params: [ErrorParserGlobal; ErrorParserGlobal]]"
	if err == nil || err.Error() != want {
		t.Errorf("Parse({}) = error %v; want %q", err, want)
	}

	_, err = Parse(r, `{"methodConfig": [{}]}`, ParseOptions{})
	want = "Service config parsing error: [Global Params: [ErrorParserGlobal; ErrorParserGlobal]; " +
		"Method Params: [methodConfig: [ErrorParserMethod; ErrorParserMethod]]]"
	if err == nil || err.Error() != want {
		t.Errorf(`Parse({"methodConfig": [{}]}) = error %v; want %q`, err, want)
	}
}

func (s) TestEachFailingEntryGetsOwnNode(t *testing.T) {
	r := NewRegistry()
	r.Register(errorParser{name: "ep1"})
	_, err := Parse(r, `{"methodConfig": [{}, {}]}`, ParseOptions{})
	want := "Service config parsing error: [Global Params: [ErrorParserGlobal]; " +
		"Method Params: [methodConfig: [ErrorParserMethod]; methodConfig: [ErrorParserMethod]]]"
	if err == nil || err.Error() != want {
		t.Errorf("Parse = error %v; want %q", err, want)
	}
}

func (s) TestParserErrorDoesNotStopOthers(t *testing.T) {
	r := NewRegistry()
	r.Register(errorParser{name: "ep1"})
	r.Register(testMethodParser{})
	sc, err := Parse(r, `{"methodConfig": [{"name":[{"service":"TestServ"}], "method_param":5}]}`, ParseOptions{})
	if err == nil {
		t.Fatalf("Parse succeeded; want error from ep1")
	}
	if sc != nil {
		t.Fatalf("Parse returned a config alongside an error")
	}
	if !strings.Contains(err.Error(), "ErrorParserMethod") || !strings.Contains(err.Error(), "ErrorParserGlobal") {
		t.Errorf("Parse error %v missing failures from both phases", err)
	}
}

func (s) TestZeroParserRegistry(t *testing.T) {
	r := NewRegistry()
	sc := mustParse(t, r, `{"unknownField": 42, "methodConfig": [{"name":[{"service":"TestServ"}]}]}`)
	cfgs := sc.MethodConfigs("/TestServ/TestMethod")
	if cfgs == nil {
		t.Fatalf("MethodConfigs(/TestServ/TestMethod) = nil; want empty configs")
	}
	if len(cfgs) != 0 {
		t.Errorf("MethodConfigs(/TestServ/TestMethod) = %v; want zero slots", cfgs)
	}
}

func (s) TestConcurrentReaders(t *testing.T) {
	r := newTestRegistry(t)
	sc := mustParse(t, r, `{"global_param": 5, "methodConfig": [
		{"name":[{"service":"TestServ"}], "method_param":2},
		{"name":[{}], "method_param":3}
	]}`)
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				if cfg, ok := sc.GlobalConfig(0).(*testNumberConfig); !ok || cfg.value != 5 {
					return errors.New("GlobalConfig(0) lost its value")
				}
				cfgs := sc.MethodConfigs("/TestServ/TestMethod")
				if cfg, ok := cfgs[1].(*testNumberConfig); !ok || cfg.value != 2 {
					return errors.New("MethodConfigs(/TestServ/TestMethod) lost its value")
				}
				cfgs = sc.MethodConfigs("/OtherServ/TestMethod")
				if cfg, ok := cfgs[1].(*testNumberConfig); !ok || cfg.value != 3 {
					return errors.New("default entry lost its value")
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Error(err)
	}
}

func (s) TestFingerprintAndEqual(t *testing.T) {
	r := newTestRegistry(t)
	a := mustParse(t, r, `{"global_param": 5}`)
	b := mustParse(t, r, `{"global_param": 5}`)
	c := mustParse(t, r, `{"global_param": 6}`)
	if !a.Equal(b) {
		t.Errorf("configs parsed from identical documents are not Equal")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("Fingerprint() differs for identical documents: %v vs %v", a.Fingerprint(), b.Fingerprint())
	}
	if a.Equal(c) {
		t.Errorf("configs parsed from different documents are Equal")
	}
	if a.JSON() != `{"global_param": 5}` {
		t.Errorf("JSON() = %q; want the original document", a.JSON())
	}
	if a.Equal(nil) {
		t.Errorf("Equal(nil) = true; want false")
	}
}
