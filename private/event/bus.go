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

// Package event contains the daemon's typed event bus. Components publish
// concrete event structs; subscribers implement one handler interface per
// event kind they care about, so no receiver ever type-asserts an event.
//
// Delivery is asynchronous with respect to the publisher: Publish enqueues
// and returns, a single dispatcher goroutine delivers each event to every
// matching subscriber in subscription order. Publishing from a locked
// section is therefore safe, and event handling within one component is
// serialized.
package event

import (
	"sync"

	"github.com/dtnet/dtnd/pkg/log"
)

// Handler interfaces, one per event kind. A subscriber implements the subset
// it cares about.
type (
	TimeTickHandler interface {
		HandleTimeTick(TimeTick)
	}
	NodeEventHandler interface {
		HandleNodeEvent(NodeEvent)
	}
	ConnectionEventHandler interface {
		HandleConnectionEvent(ConnectionEvent)
	}
	GlobalEventHandler interface {
		HandleGlobalEvent(GlobalEvent)
	}
	BundleEventHandler interface {
		HandleBundleEvent(BundleEvent)
	}
	BundleExpiredHandler interface {
		HandleBundleExpired(BundleExpired)
	}
	CustodyAcceptedHandler interface {
		HandleCustodyAccepted(CustodyAccepted)
	}
)

// Bus dispatches events to subscribers. The zero value is not usable, use
// New.
type Bus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []any
	closed bool
	done   chan struct{}

	subMu    sync.RWMutex
	time     []TimeTickHandler
	node     []NodeEventHandler
	conn     []ConnectionEventHandler
	global   []GlobalEventHandler
	bundle   []BundleEventHandler
	expired  []BundleExpiredHandler
	custody  []CustodyAcceptedHandler
	handlers map[any]struct{}

	log log.Logger
}

// New creates a bus. Run must be called for events to be delivered.
func New() *Bus {
	b := &Bus{
		done:     make(chan struct{}),
		handlers: make(map[any]struct{}),
		log:      log.New("comp", "event"),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Subscribe registers h for every event kind whose handler interface it
// implements. Subscribing the same handler twice is a no-op.
func (b *Bus) Subscribe(h any) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if _, ok := b.handlers[h]; ok {
		return
	}
	b.handlers[h] = struct{}{}
	if t, ok := h.(TimeTickHandler); ok {
		b.time = append(b.time, t)
	}
	if t, ok := h.(NodeEventHandler); ok {
		b.node = append(b.node, t)
	}
	if t, ok := h.(ConnectionEventHandler); ok {
		b.conn = append(b.conn, t)
	}
	if t, ok := h.(GlobalEventHandler); ok {
		b.global = append(b.global, t)
	}
	if t, ok := h.(BundleEventHandler); ok {
		b.bundle = append(b.bundle, t)
	}
	if t, ok := h.(BundleExpiredHandler); ok {
		b.expired = append(b.expired, t)
	}
	if t, ok := h.(CustodyAcceptedHandler); ok {
		b.custody = append(b.custody, t)
	}
}

// Unsubscribe removes h from all handler lists.
func (b *Bus) Unsubscribe(h any) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if _, ok := b.handlers[h]; !ok {
		return
	}
	delete(b.handlers, h)
	b.time = remove(b.time, h)
	b.node = remove(b.node, h)
	b.conn = remove(b.conn, h)
	b.global = remove(b.global, h)
	b.bundle = remove(b.bundle, h)
	b.expired = remove(b.expired, h)
	b.custody = remove(b.custody, h)
}

// Publish enqueues the event for delivery. It never blocks on subscribers.
// Events published after Close are dropped.
func (b *Bus) Publish(evt any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.queue = append(b.queue, evt)
	b.cond.Signal()
}

// Run delivers events until Close is called. It is intended to run in its
// own goroutine.
func (b *Bus) Run() {
	defer log.HandlePanic()
	defer close(b.done)
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		evt := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.dispatch(evt)
	}
}

// Close stops the bus. Events already queued are delivered before Close
// returns; later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Signal()
	b.mu.Unlock()
	<-b.done
}

func (b *Bus) dispatch(evt any) {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	switch e := evt.(type) {
	case TimeTick:
		for _, h := range b.time {
			h.HandleTimeTick(e)
		}
	case NodeEvent:
		for _, h := range b.node {
			h.HandleNodeEvent(e)
		}
	case ConnectionEvent:
		for _, h := range b.conn {
			h.HandleConnectionEvent(e)
		}
	case GlobalEvent:
		for _, h := range b.global {
			h.HandleGlobalEvent(e)
		}
	case BundleEvent:
		for _, h := range b.bundle {
			h.HandleBundleEvent(e)
		}
	case BundleExpired:
		for _, h := range b.expired {
			h.HandleBundleExpired(e)
		}
	case CustodyAccepted:
		for _, h := range b.custody {
			h.HandleCustodyAccepted(e)
		}
	default:
		b.log.Error("Dropping event of unknown type", "event", evt)
	}
}

func remove[T comparable](list []T, h any) []T {
	t, ok := h.(T)
	if !ok {
		return list
	}
	for i, x := range list {
		if x == t {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
