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

// Package relay provides service config support for the Relay RPC framework.
//
// A service config is a JSON document describing how clients of a service
// should behave: which load balancing policy to use, when calls may be
// retried, how large messages may grow. The document is parsed by a set of
// independent feature parsers collected in a serviceconfig.Registry; this
// package assembles the standard set and offers one-call parsing against it.
//
// The serviceconfig package holds the engine and the parser contract;
// clientchannel, retry and messagesize implement the standard parsers; the
// configfile package keeps a parsed config in sync with a file on disk.
package relay

import (
	"github.com/relayrpc/relay-go/clientchannel"
	"github.com/relayrpc/relay-go/messagesize"
	"github.com/relayrpc/relay-go/retry"
	"github.com/relayrpc/relay-go/serviceconfig"
)

var defaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *serviceconfig.Registry {
	r := serviceconfig.NewRegistry()
	r.Register(clientchannel.NewParser())
	r.Register(retry.NewParser())
	r.Register(messagesize.NewParser())
	return r
}

// Registry returns the registry holding the standard parsers. They register
// in a fixed order, so results keep their position across parses:
// clientchannel first, then retry, then messagesize. Additional parsers may
// be registered on it before the first Parse.
func Registry() *serviceconfig.Registry {
	return defaultRegistry
}

// ParseServiceConfig parses the given service config document with the
// standard parsers. See serviceconfig.Parse for the error contract.
func ParseServiceConfig(js string) (*serviceconfig.ServiceConfig, error) {
	return serviceconfig.Parse(defaultRegistry, js, serviceconfig.ParseOptions{})
}
