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

// Package roundrobin defines the round_robin load balancing policy. It takes
// no configuration and is registered as one of the default policies.
package roundrobin

import "github.com/relayrpc/relay-go/balancer"

// Name is the name of round_robin balancer.
const Name = "round_robin"

func init() {
	balancer.Register(rrBuilder{})
}

type rrBuilder struct{}

func (rrBuilder) Name() string {
	return Name
}
