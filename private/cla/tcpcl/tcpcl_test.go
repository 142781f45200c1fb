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

package tcpcl_test

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnet/dtnd/pkg/bundle"
	"github.com/dtnet/dtnd/pkg/eid"
	"github.com/dtnet/dtnd/private/cla"
	"github.com/dtnet/dtnd/private/cla/tcpcl"
	"github.com/dtnet/dtnd/private/event"
	"github.com/dtnet/dtnd/private/node"
)

type mapGetter struct {
	bundles map[string]*bundle.Bundle
}

func (g *mapGetter) Get(id bundle.ID) (*bundle.Bundle, error) {
	return g.bundles[id.String()], nil
}

type connRecorder struct {
	mu     sync.Mutex
	events []event.ConnectionEvent
}

func (r *connRecorder) HandleConnectionEvent(e event.ConnectionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestQueueTransmitsBundle(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan *bundle.Bundle, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var b bundle.Bundle
		if err := b.Decode(conn); err == nil {
			received <- &b
		}
	}()

	b := bundle.New(
		eid.MustParse("dtn://src/app"),
		eid.MustParse("dtn://peer/app"),
		1000, 1, 3600, 0, []byte("over the wire"),
	)
	getter := &mapGetter{bundles: map[string]*bundle.Bundle{
		b.ID().String(): b,
	}}

	bus := event.New()
	rec := &connRecorder{}
	bus.Subscribe(rec)
	go bus.Run()

	c := tcpcl.New(bus, getter, clock.New())
	c.Start()

	peer := node.New(eid.MustParse("dtn://peer"))
	peer.Add(node.URI{
		Protocol: node.ProtocolTCP,
		Address:  ln.Addr().String(),
		State:    node.Discovered,
	})

	require.NoError(t, c.Queue(peer, cla.Job{
		Destination: peer.EID, Bundle: b.ID(),
	}))

	select {
	case got := <-received:
		assert.Equal(t, b, got)
	case <-time.After(5 * time.Second):
		t.Fatal("bundle not received")
	}

	c.Close()
	bus.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.events)
	assert.Equal(t, event.ConnectionUp, rec.events[0].State)
	assert.Equal(t, peer.EID, rec.events[0].Peer)
}

func TestQueueAfterClose(t *testing.T) {
	bus := event.New()
	go bus.Run()
	defer bus.Close()

	c := tcpcl.New(bus, &mapGetter{}, clock.New())
	c.Start()
	c.Close()

	peer := node.New(eid.MustParse("dtn://peer"))
	err := c.Queue(peer, cla.Job{Destination: peer.EID})
	assert.Error(t, err)
}
