// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging provides printf-style logging helpers shared by the
// commands and libraries of labrat. All output goes to stderr so that stdout
// and the batch response channel stay clean.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	logger = newLogger(os.Stderr)

	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)

	// exitFunc is swapped out in tests.
	exitFunc = os.Exit
)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    !isTerminal(w),
	})
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetOutput redirects all log output to w. Colors are enabled only when w is
// a terminal.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
	color.NoColor = !isTerminal(w)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    color.NoColor,
	})
}

// SetLevel sets the minimum level that is written. Accepted names are
// "debug", "info", "warn" and "error".
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}

// Debug logs a debug message.
func Debug(f string, a ...any) {
	logger.Debugf(f, a...)
}

// Info logs an informational message.
func Info(f string, a ...any) {
	logger.Infof(f, a...)
}

// Warn logs a warning.
func Warn(f string, a ...any) {
	logger.Warn(warnColor.Sprintf(f, a...))
}

// Error logs an error without exiting.
func Error(f string, a ...any) {
	logger.Error(errorColor.Sprintf(f, a...))
}

// Fatal logs an error and exits with status 1.
func Fatal(f string, a ...any) {
	Error(f, a...)
	exitFunc(1)
}
