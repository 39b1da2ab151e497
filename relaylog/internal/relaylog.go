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

// Package internal contains functionality internal to the relaylog package.
package internal

import "os"

var (
	// LoggerV2Impl is the logger used for the non-depth log functions.
	LoggerV2Impl LoggerV2
	// DepthLoggerV2Impl is the logger used for the depth log functions.
	DepthLoggerV2Impl DepthLoggerV2
)

// InfoDepth logs to the INFO log at the specified depth.
func InfoDepth(depth int, args ...any) {
	if DepthLoggerV2Impl != nil {
		DepthLoggerV2Impl.InfoDepth(depth, args...)
	} else {
		LoggerV2Impl.Infoln(args...)
	}
}

// WarningDepth logs to the WARNING log at the specified depth.
func WarningDepth(depth int, args ...any) {
	if DepthLoggerV2Impl != nil {
		DepthLoggerV2Impl.WarningDepth(depth, args...)
	} else {
		LoggerV2Impl.Warningln(args...)
	}
}

// ErrorDepth logs to the ERROR log at the specified depth.
func ErrorDepth(depth int, args ...any) {
	if DepthLoggerV2Impl != nil {
		DepthLoggerV2Impl.ErrorDepth(depth, args...)
	} else {
		LoggerV2Impl.Errorln(args...)
	}
}

// FatalDepth logs to the FATAL log at the specified depth.
func FatalDepth(depth int, args ...any) {
	if DepthLoggerV2Impl != nil {
		DepthLoggerV2Impl.FatalDepth(depth, args...)
	} else {
		LoggerV2Impl.Fatalln(args...)
	}
	os.Exit(1)
}
