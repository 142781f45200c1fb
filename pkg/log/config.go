// Copyright 2022 dtnet
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"io"
)

// Config holds the logging configuration of the daemon.
type Config struct {
	// Level of logging entries to write. One of debug, info, error.
	Level string `toml:"level,omitempty"`
	// Format of the log entries. One of json, human.
	Format string `toml:"format,omitempty"`
}

// InitDefaults populates unset fields with default values.
func (cfg *Config) InitDefaults() {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

// Validate checks that the config contains reasonable values.
func (cfg *Config) Validate() error {
	switch cfg.Level {
	case "debug", "info", "error":
	default:
		return fmt.Errorf("unknown log level: %s", cfg.Level)
	}
	switch cfg.Format {
	case "json", "human":
	default:
		return fmt.Errorf("unknown log format: %s", cfg.Format)
	}
	return nil
}

// Sample writes a commented sample config section to dst.
func (cfg *Config) Sample(dst io.Writer) {
	fmt.Fprint(dst, `[log]
# Level of logging entries to write. (debug|info|error, default info)
level = "info"
# Format of the log entries. (json|human, default json)
format = "json"
`)
}
