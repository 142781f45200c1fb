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

package event_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/dtnet/dtnd/private/event"
)

type recorder struct {
	mu      sync.Mutex
	ticks   []event.TimeTick
	nodes   []event.NodeEvent
	expired []event.BundleExpired
}

func (r *recorder) HandleTimeTick(e event.TimeTick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, e)
}

func (r *recorder) HandleNodeEvent(e event.NodeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, e)
}

func (r *recorder) HandleBundleExpired(e event.BundleExpired) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, e)
}

func TestPublishDeliversByKind(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := event.New()
	rec := &recorder{}
	bus.Subscribe(rec)
	go bus.Run()

	bus.Publish(event.TimeTick{Timestamp: 1})
	bus.Publish(event.GlobalEvent{Action: event.InternetAvailable})
	bus.Publish(event.TimeTick{Timestamp: 2})
	bus.Close()

	assert.Equal(t, []event.TimeTick{{Timestamp: 1}, {Timestamp: 2}}, rec.ticks)
	assert.Empty(t, rec.nodes)
}

func TestCloseDrainsQueue(t *testing.T) {
	bus := event.New()
	rec := &recorder{}
	bus.Subscribe(rec)
	go bus.Run()

	const n = 100
	for i := 0; i < n; i++ {
		bus.Publish(event.TimeTick{Timestamp: 1})
	}
	bus.Close()
	assert.Len(t, rec.ticks, n)

	// publishing after close is a silent drop
	bus.Publish(event.TimeTick{Timestamp: 2})
	assert.Len(t, rec.ticks, n)
}

func TestSubscribeIdempotent(t *testing.T) {
	bus := event.New()
	rec := &recorder{}
	bus.Subscribe(rec)
	bus.Subscribe(rec)
	go bus.Run()

	bus.Publish(event.TimeTick{Timestamp: 1})
	bus.Close()

	assert.Equal(t, []event.TimeTick{{Timestamp: 1}}, rec.ticks)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := event.New()
	rec := &recorder{}
	bus.Subscribe(rec)
	bus.Unsubscribe(rec)
	go bus.Run()

	bus.Publish(event.TimeTick{Timestamp: 1})
	bus.Close()

	assert.Empty(t, rec.ticks)
}
