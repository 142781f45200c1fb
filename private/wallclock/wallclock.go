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

// Package wallclock drives the daemon's notion of time. It publishes a
// TimeTick event once per second; every component that ages state (URI
// expiry, bundle lifetimes, auto-connect cadence) reacts to these ticks
// instead of reading the system clock.
package wallclock

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dtnet/dtnd/pkg/dtntime"
	"github.com/dtnet/dtnd/private/event"
	"github.com/dtnet/dtnd/private/periodic"
)

// WallClock publishes second ticks on the event bus.
type WallClock struct {
	bus    *event.Bus
	clk    clock.Clock
	runner *periodic.Runner
}

// New creates a wall clock reading from clk.
func New(bus *event.Bus, clk clock.Clock) *WallClock {
	return &WallClock{bus: bus, clk: clk}
}

// Start begins publishing ticks.
func (w *WallClock) Start() {
	w.runner = periodic.Start(w.clk, tickTask{w}, time.Second, time.Second)
}

// Close stops the tick loop.
func (w *WallClock) Close() {
	if w.runner != nil {
		w.runner.Stop()
	}
}

type tickTask struct {
	w *WallClock
}

func (t tickTask) Name() string { return "wallclock" }

func (t tickTask) Run(context.Context) {
	t.w.bus.Publish(event.TimeTick{Timestamp: dtntime.Now(t.w.clk)})
}
