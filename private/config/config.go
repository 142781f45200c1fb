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

// Package config loads and validates the daemon's TOML configuration.
package config

import (
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/dtnet/dtnd/pkg/eid"
	"github.com/dtnet/dtnd/pkg/log"
	"github.com/dtnet/dtnd/pkg/private/serrors"
)

// Defaulter is implemented by config sections with default values.
type Defaulter interface {
	InitDefaults()
}

// Validator is implemented by config sections that check their values.
type Validator interface {
	Validate() error
}

// InitAll initializes the defaults of all sections.
func InitAll(defs ...Defaulter) {
	for _, d := range defs {
		d.InitDefaults()
	}
}

// ValidateAll validates all sections and collects the failures.
func ValidateAll(vals ...Validator) error {
	var errs serrors.List
	for _, v := range vals {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.ToError()
}

// Config is the daemon configuration.
type Config struct {
	General General    `toml:"general,omitempty"`
	Logging log.Config `toml:"log,omitempty"`
	Metrics Metrics    `toml:"metrics,omitempty"`
	Storage Storage    `toml:"storage,omitempty"`
	Network Network    `toml:"network,omitempty"`
}

// InitDefaults populates unset fields with default values.
func (cfg *Config) InitDefaults() {
	InitAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Storage,
		&cfg.Network,
	)
}

// Validate checks that the config contains reasonable values.
func (cfg *Config) Validate() error {
	return ValidateAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Storage,
		&cfg.Network,
	)
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.Wrap("reading config", err, "path", path)
	}
	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, serrors.Wrap("parsing config", err, "path", path)
	}
	cfg.InitDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, serrors.Wrap("validating config", err, "path", path)
	}
	return &cfg, nil
}

// General holds the node identity.
type General struct {
	// ID is a short name of this daemon instance, used in log entries.
	ID string `toml:"id,omitempty"`
	// LocalEID is the endpoint identifier of this node.
	LocalEID eid.EID `toml:"local_eid,omitempty"`
}

func (cfg *General) InitDefaults() {
	if cfg.ID == "" {
		cfg.ID = "dtnd"
	}
}

func (cfg *General) Validate() error {
	if cfg.LocalEID.IsZero() {
		return serrors.New("general.local_eid must be set")
	}
	if cfg.LocalEID.IsNone() {
		return serrors.New("general.local_eid must not be the null endpoint")
	}
	return nil
}

// Metrics configures the prometheus endpoint.
type Metrics struct {
	// Prometheus is the address the metrics HTTP server binds to. Empty
	// disables the endpoint.
	Prometheus string `toml:"prometheus,omitempty"`
}

func (cfg *Metrics) InitDefaults() {}

func (cfg *Metrics) Validate() error { return nil }

// Storage configures the bundle store.
type Storage struct {
	// Workdir is the directory bundle blobs are persisted in.
	Workdir string `toml:"workdir,omitempty"`
	// MaxBytes caps the stored bundle bytes. Zero means unbounded.
	MaxBytes uint64 `toml:"max_bytes,omitempty"`
	// BufferLimit bounds the datastore write queue.
	BufferLimit int `toml:"buffer_limit,omitempty"`
}

func (cfg *Storage) InitDefaults() {
	if cfg.Workdir == "" {
		cfg.Workdir = "/var/lib/dtnd/bundles"
	}
}

func (cfg *Storage) Validate() error {
	if cfg.BufferLimit < 0 {
		return serrors.New("storage.buffer_limit must not be negative",
			"value", cfg.BufferLimit)
	}
	return nil
}

// Network configures the connection manager and the TCP convergence layer.
type Network struct {
	// AutoConnect is the interval in seconds between sweeps opening
	// sessions to unconnected neighbors. Zero disables auto-connect.
	AutoConnect uint64 `toml:"auto_connect,omitempty"`
	// TCPListen is reserved for the TCP convergence-layer listener.
	TCPListen string `toml:"tcp_listen,omitempty"`
}

func (cfg *Network) InitDefaults() {}

func (cfg *Network) Validate() error { return nil }

// Sample writes a commented sample configuration to dst.
func Sample(dst io.Writer) {
	io.WriteString(dst, `[general]
# Short instance name used in log entries. (default dtnd)
id = "dtnd"
# Endpoint identifier of this node. (required)
local_eid = "dtn://node-one"

`)
	(&log.Config{}).Sample(dst)
	io.WriteString(dst, `
[metrics]
# Address of the prometheus endpoint. Empty disables it.
prometheus = "127.0.0.1:30452"

[storage]
# Directory bundle blobs are persisted in.
workdir = "/var/lib/dtnd/bundles"
# Byte capacity of the store. 0 means unbounded.
max_bytes = 0
# Bound of the datastore write queue.
buffer_limit = 1024

[network]
# Seconds between auto-connect sweeps. 0 disables auto-connect.
auto_connect = 0
`)
}
