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

// Package relaylog defines logging for Relay.
//
// In the default logger, severity level can be set by environment variable
// RELAY_GO_LOG_SEVERITY_LEVEL, verbosity level can be set by
// RELAY_GO_LOG_VERBOSITY_LEVEL. A LoggerV2 that logs in JSON format can be
// selected with RELAY_GO_LOG_FORMATTER=json.
package relaylog

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/relayrpc/relay-go/relaylog/internal"
)

func init() {
	SetLoggerV2(newLoggerV2())
}

// V reports whether verbosity level l is at least the requested verbose level.
func V(l int) bool {
	return internal.LoggerV2Impl.V(l)
}

// Info logs to the INFO log.
func Info(args ...any) {
	internal.LoggerV2Impl.Info(args...)
}

// Infof logs to the INFO log. Arguments are handled in the manner of fmt.Printf.
func Infof(format string, args ...any) {
	internal.LoggerV2Impl.Infof(format, args...)
}

// Infoln logs to the INFO log. Arguments are handled in the manner of fmt.Println.
func Infoln(args ...any) {
	internal.LoggerV2Impl.Infoln(args...)
}

// Warning logs to the WARNING log.
func Warning(args ...any) {
	internal.LoggerV2Impl.Warning(args...)
}

// Warningf logs to the WARNING log. Arguments are handled in the manner of fmt.Printf.
func Warningf(format string, args ...any) {
	internal.LoggerV2Impl.Warningf(format, args...)
}

// Warningln logs to the WARNING log. Arguments are handled in the manner of fmt.Println.
func Warningln(args ...any) {
	internal.LoggerV2Impl.Warningln(args...)
}

// Error logs to the ERROR log.
func Error(args ...any) {
	internal.LoggerV2Impl.Error(args...)
}

// Errorf logs to the ERROR log. Arguments are handled in the manner of fmt.Printf.
func Errorf(format string, args ...any) {
	internal.LoggerV2Impl.Errorf(format, args...)
}

// Errorln logs to the ERROR log. Arguments are handled in the manner of fmt.Println.
func Errorln(args ...any) {
	internal.LoggerV2Impl.Errorln(args...)
}

// Fatal logs to the FATAL log. Arguments are handled in the manner of fmt.Print.
// It calls os.Exit() with exit code 1.
func Fatal(args ...any) {
	internal.LoggerV2Impl.Fatal(args...)
	// Make sure fatal logs will exit.
	os.Exit(1)
}

// Fatalf logs to the FATAL log. Arguments are handled in the manner of fmt.Printf.
// It calls os.Exit() with exit code 1.
func Fatalf(format string, args ...any) {
	internal.LoggerV2Impl.Fatalf(format, args...)
	// Make sure fatal logs will exit.
	os.Exit(1)
}

// Fatalln logs to the FATAL log. Arguments are handled in the manner of fmt.Println.
// It calls os.Exit() with exit code 1.
func Fatalln(args ...any) {
	internal.LoggerV2Impl.Fatalln(args...)
	// Make sure fatal logs will exit.
	os.Exit(1)
}

// InfoDepth logs to the INFO log at the specified depth.
func InfoDepth(depth int, args ...any) {
	internal.InfoDepth(depth+1, args...)
}

// WarningDepth logs to the WARNING log at the specified depth.
func WarningDepth(depth int, args ...any) {
	internal.WarningDepth(depth+1, args...)
}

// ErrorDepth logs to the ERROR log at the specified depth.
func ErrorDepth(depth int, args ...any) {
	internal.ErrorDepth(depth+1, args...)
}

// FatalDepth logs to the FATAL log at the specified depth. It calls os.Exit()
// with exit code 1.
func FatalDepth(depth int, args ...any) {
	internal.FatalDepth(depth+1, args...)
}

// newLoggerV2 creates a loggerV2 to be used as the default logger.
// All logs are written to stderr.
func newLoggerV2() LoggerV2 {
	errorW := io.Discard
	warningW := io.Discard
	infoW := io.Discard

	logLevel := os.Getenv("RELAY_GO_LOG_SEVERITY_LEVEL")
	switch logLevel {
	case "", "ERROR", "error": // If env is unset, set level to ERROR.
		errorW = os.Stderr
	case "WARNING", "warning":
		warningW = os.Stderr
	case "INFO", "info":
		infoW = os.Stderr
	}

	var v int
	vLevel := os.Getenv("RELAY_GO_LOG_VERBOSITY_LEVEL")
	if vl, err := strconv.Atoi(vLevel); err == nil {
		v = vl
	}

	jsonFormat := strings.EqualFold(os.Getenv("RELAY_GO_LOG_FORMATTER"), "json")

	return internal.NewLoggerV2(infoW, warningW, errorW, internal.LoggerV2Config{
		Verbosity:  v,
		FormatJSON: jsonFormat,
	})
}
