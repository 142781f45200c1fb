// Copyright 2023 dtnet
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

// Package stats periodically logs the daemon's vital numbers: neighbor
// count, stored bundles and used bytes.
package stats

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dtnet/dtnd/pkg/log"
	"github.com/dtnet/dtnd/private/node"
	"github.com/dtnet/dtnd/private/periodic"
)

// NeighborSource exposes the neighbor table.
type NeighborSource interface {
	Neighbors() []*node.Node
}

// StoreSource exposes the bundle store counters.
type StoreSource interface {
	Count() int
	UsedBytes() uint64
}

// Collector is the periodic statistics task.
type Collector struct {
	neighbors NeighborSource
	store     StoreSource
	log       log.Logger
	runner    *periodic.Runner
	clk       clock.Clock
	interval  time.Duration
}

// New creates a collector logging every interval.
func New(n NeighborSource, s StoreSource, clk clock.Clock, interval time.Duration) *Collector {
	return &Collector{
		neighbors: n,
		store:     s,
		log:       log.New("comp", "stats"),
		clk:       clk,
		interval:  interval,
	}
}

// Start launches the periodic task.
func (c *Collector) Start() {
	c.runner = periodic.Start(c.clk, task{c}, c.interval, c.interval)
}

// Close stops the periodic task.
func (c *Collector) Close() {
	if c.runner != nil {
		c.runner.Stop()
	}
}

type task struct {
	c *Collector
}

func (t task) Name() string { return "stats" }

func (t task) Run(context.Context) {
	c := t.c
	c.log.Info("Statistics",
		"neighbors", len(c.neighbors.Neighbors()),
		"bundles", c.store.Count(),
		"used_bytes", c.store.UsedBytes(),
	)
}
