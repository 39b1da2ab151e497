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

// relayconf inspects and validates Relay service config documents.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/relayrpc/relay-go"

	// Register the standard load balancing policies.
	_ "github.com/relayrpc/relay-go/balancer/grpclb"
	_ "github.com/relayrpc/relay-go/balancer/pickfirst"
	_ "github.com/relayrpc/relay-go/balancer/roundrobin"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "relayconf",
		Short:        "Inspect and validate Relay service config documents",
		Version:      relay.Version,
		SilenceUsage: true,
	}
	cmd.AddCommand(newCheckCmd())
	return cmd
}
