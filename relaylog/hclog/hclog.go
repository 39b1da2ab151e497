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

/*
Package relayhclog defines hclog-based logging for Relay.

To set the hclog default logger as the relaylog logger, do a blank import:

	import _ "github.com/relayrpc/relay-go/relaylog/hclog"

To set another hclog Logger as the logger:

	relaylog.SetLoggerV2(relayhclog.NewLogger(hclogLogger))
*/
package relayhclog

import (
	"fmt"
	"os"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/relayrpc/relay-go/relaylog"
)

func init() {
	relaylog.SetLoggerV2(NewLogger(hclog.Default()))
}

// NewLogger returns a relaylog.LoggerV2 that wraps an hclog.Logger.
func NewLogger(hclogLogger hclog.Logger) relaylog.LoggerV2 {
	return &logger{hclogLogger}
}

type logger struct {
	l hclog.Logger
}

func (g *logger) Info(args ...any) {
	g.l.Info(fmt.Sprint(args...))
}

func (g *logger) Infoln(args ...any) {
	g.l.Info(fmt.Sprintln(args...))
}

func (g *logger) Infof(format string, args ...any) {
	g.l.Info(fmt.Sprintf(format, args...))
}

func (g *logger) Warning(args ...any) {
	g.l.Warn(fmt.Sprint(args...))
}

func (g *logger) Warningln(args ...any) {
	g.l.Warn(fmt.Sprintln(args...))
}

func (g *logger) Warningf(format string, args ...any) {
	g.l.Warn(fmt.Sprintf(format, args...))
}

func (g *logger) Error(args ...any) {
	g.l.Error(fmt.Sprint(args...))
}

func (g *logger) Errorln(args ...any) {
	g.l.Error(fmt.Sprintln(args...))
}

func (g *logger) Errorf(format string, args ...any) {
	g.l.Error(fmt.Sprintf(format, args...))
}

// hclog has no fatal level; fatal logs go out at error level before exiting.

func (g *logger) Fatal(args ...any) {
	g.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}

func (g *logger) Fatalln(args ...any) {
	g.l.Error(fmt.Sprintln(args...))
	os.Exit(1)
}

func (g *logger) Fatalf(format string, args ...any) {
	g.l.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

func (g *logger) V(l int) bool {
	if l <= 0 {
		return true
	}
	return g.l.IsDebug()
}
