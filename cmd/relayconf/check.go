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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/relayrpc/relay-go"
	"github.com/relayrpc/relay-go/attributes"
	"github.com/relayrpc/relay-go/retry"
	"github.com/relayrpc/relay-go/serviceconfig"
)

type checkOptions struct {
	yaml          bool
	enableHedging bool
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Validate service config documents against the standard parsers",
		Long: `Check parses each FILE with the standard parser registry and reports the
full validation error tree for every document that is rejected. Files with a
.yaml or .yml extension are converted to JSON before parsing.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.yaml, "yaml", false, "treat all input files as YAML regardless of extension")
	cmd.Flags().BoolVar(&opts.enableHedging, "enable-hedging", false, "accept the hedging fields of retryPolicy")
	return cmd
}

func runCheck(cmd *cobra.Command, files []string, opts checkOptions) error {
	parseOpts := serviceconfig.ParseOptions{}
	if opts.enableHedging {
		parseOpts.Args = attributes.New(retry.EnableHedgingKey, true)
	}

	// Check the files concurrently, but report in argument order.
	results := make([]error, len(files))
	var group errgroup.Group
	for i, file := range files {
		i, file := i, file
		group.Go(func() error {
			results[i] = checkFile(file, opts.yaml, parseOpts)
			return results[i]
		})
	}
	failedAny := group.Wait() != nil

	failed := 0
	for i, file := range files {
		if err := results[i]; err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", file, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", file)
	}
	if failedAny {
		return fmt.Errorf("%d of %d documents failed validation", failed, len(files))
	}
	return nil
}

func checkFile(path string, forceYAML bool, parseOpts serviceconfig.ParseOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if forceYAML || isYAMLPath(path) {
		if data, err = yamlToJSON(data); err != nil {
			return err
		}
	}
	_, err = serviceconfig.Parse(relay.Registry(), string(data), parseOpts)
	return err
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("converting YAML: %v", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting YAML: %v", err)
	}
	return out, nil
}
