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

/*
Package logger provides structured JSON logging for the AI service
components.

# Overview

Each log entry is a single JSON line written through zerolog and includes:
  - Timestamp (RFC3339Nano format)
  - Log level (debug, info, warn, error)
  - Component name (service, bootstrap, aictl, ...)
  - Instance ID and container name
  - Caller ID and request ID for correlation
  - Custom fields

# Usage

	log := logger.New("service")

	log.Info("billing-worker", "req-456", "Provider failed over", map[string]interface{}{
	    "from": "openai",
	    "to":   "anthropic",
	})

Output goes to stdout unless configured otherwise:

	log := logger.New("service", logger.WithLevel("debug"), logger.WithOutput(w))

OpenChannel resolves the logging.channel setting ("stdout", "stderr" or a
file path) to a writer.

# Environment Variables

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
