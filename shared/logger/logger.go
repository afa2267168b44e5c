// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides structured logging scoped to one component
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	zl zerolog.Logger
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	out   io.Writer
	level zerolog.Level
}

// WithOutput sets the destination writer (default: stdout).
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.out = w
		}
	}
}

// WithLevel sets the minimum level by name: debug, info, warn or error.
func WithLevel(level string) Option {
	return func(o *options) { o.level = ParseLevel(level) }
}

// New creates a new Logger for the specified component
func New(component string, opts ...Option) *Logger {
	o := options{out: os.Stdout, level: zerolog.InfoLevel}
	for _, opt := range opts {
		opt(&o)
	}

	// Get instance ID from environment (set during deployment)
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	// Get container name from hostname
	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	zl := zerolog.New(o.out).Level(o.level).With().
		Str("component", component).
		Str("instance_id", instanceID).
		Str("container", container).
		Logger()

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		zl:         zl,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Component: "nop", zl: zerolog.Nop()}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// OpenChannel resolves a logging channel to a writer. "stdout" (or empty)
// and "stderr" map to the process streams; anything else is a file path
// opened for appending. The returned closer is a no-op for the streams.
func OpenChannel(channel string) (io.Writer, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(channel)) {
	case "", "stdout":
		return os.Stdout, func() error { return nil }, nil
	case "stderr":
		return os.Stderr, func() error { return nil }, nil
	}
	f, err := os.OpenFile(channel, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log channel %q: %w", channel, err)
	}
	return f, f.Close, nil
}

func (l *Logger) log(event *zerolog.Event, clientID, requestID, message string, fields map[string]interface{}) {
	event = event.Str("timestamp", time.Now().UTC().Format(time.RFC3339Nano)).
		Str("client_id", clientID)
	if requestID != "" {
		event = event.Str("request_id", requestID)
	}
	if len(fields) > 0 {
		event = event.Interface("fields", fields)
	}
	event.Msg(message)
}

// Info logs an informational message
func (l *Logger) Info(clientID, requestID, message string, fields map[string]interface{}) {
	l.log(l.zl.Info(), clientID, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(clientID, requestID, message string, fields map[string]interface{}) {
	l.log(l.zl.Error(), clientID, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(clientID, requestID, message string, fields map[string]interface{}) {
	l.log(l.zl.Warn(), clientID, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(clientID, requestID, message string, fields map[string]interface{}) {
	l.log(l.zl.Debug(), clientID, requestID, message, fields)
}

// InfoWithDuration logs an info message with duration field
func (l *Logger) InfoWithDuration(clientID, requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(clientID, requestID, message, fields)
}

// ErrorWithCode logs an error with status code
func (l *Logger) ErrorWithCode(clientID, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(clientID, requestID, message, fields)
}
