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

// Package tcpcl is a minimal stream convergence-layer sender. It dials the
// best TCP URI a node advertises, keeps the session, and writes serialized
// bundles to it. Session state changes are announced as ConnectionEvents.
package tcpcl

import (
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dtnet/dtnd/pkg/bundle"
	"github.com/dtnet/dtnd/pkg/dtntime"
	"github.com/dtnet/dtnd/pkg/log"
	"github.com/dtnet/dtnd/pkg/private/serrors"
	"github.com/dtnet/dtnd/private/cla"
	"github.com/dtnet/dtnd/private/event"
	"github.com/dtnet/dtnd/private/node"
)

const (
	dialTimeout = 10 * time.Second
	// sessionLifetime is the expiry attached to connected-session URIs.
	sessionLifetime = 60
)

// BundleGetter loads the full bundle when its bytes go on the wire.
type BundleGetter interface {
	Get(id bundle.ID) (*bundle.Bundle, error)
}

type queuedJob struct {
	node *node.Node
	job  cla.Job
}

// CLA is the TCP convergence-layer sender.
type CLA struct {
	bus   *event.Bus
	store BundleGetter
	clk   clock.Clock
	log   log.Logger

	mu       sync.Mutex
	sessions map[string]net.Conn

	jobs     chan queuedJob
	stopping chan struct{}
	done     chan struct{}
}

var _ cla.ConvergenceLayer = (*CLA)(nil)

// New creates a TCP convergence layer fetching bundle bytes from store.
func New(bus *event.Bus, store BundleGetter, clk clock.Clock) *CLA {
	return &CLA{
		bus:      bus,
		store:    store,
		clk:      clk,
		log:      log.New("comp", "tcpcl"),
		sessions: make(map[string]net.Conn),
		jobs:     make(chan queuedJob, 64),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the transmission worker.
func (c *CLA) Start() {
	go func() {
		defer log.HandlePanic()
		c.run()
	}()
}

// Close stops the worker and tears down all sessions. Jobs still queued are
// dropped.
func (c *CLA) Close() {
	close(c.stopping)
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.sessions {
		conn.Close()
	}
	c.sessions = make(map[string]net.Conn)
}

// DiscoveryProtocol returns the protocol tag matched against node URIs.
func (c *CLA) DiscoveryProtocol() node.Protocol {
	return node.ProtocolTCP
}

// Open starts a background connection attempt to the node's best TCP URI.
func (c *CLA) Open(n *node.Node) {
	target := n.Clone()
	go func() {
		defer log.HandlePanic()
		if _, err := c.session(target); err != nil {
			c.log.Debug("Open failed", "node", target.EID, "err", err)
		}
	}()
}

// Queue enqueues a transmission job for the node.
func (c *CLA) Queue(n *node.Node, job cla.Job) error {
	select {
	case <-c.stopping:
		return serrors.New("convergence layer closed", "node", n.EID)
	case c.jobs <- queuedJob{node: n.Clone(), job: job}:
		return nil
	}
}

func (c *CLA) run() {
	defer close(c.done)
	for {
		select {
		case <-c.stopping:
			return
		case qj := <-c.jobs:
			if err := c.send(qj); err != nil {
				c.log.Error("Transmission failed",
					"bundle", qj.job.Bundle, "node", qj.node.EID, "err", err)
			}
		}
	}
}

func (c *CLA) send(qj queuedJob) error {
	b, err := c.store.Get(qj.job.Bundle)
	if err != nil {
		return err
	}
	conn, err := c.session(qj.node)
	if err != nil {
		return err
	}
	if err := b.Encode(conn); err != nil {
		c.dropSession(qj.node, conn)
		return err
	}
	c.log.Debug("Bundle transmitted", "bundle", qj.job.Bundle, "node", qj.node.EID)
	return nil
}

// session returns the existing session to the node or dials a new one.
func (c *CLA) session(n *node.Node) (net.Conn, error) {
	key := n.EID.String()
	c.mu.Lock()
	if conn, ok := c.sessions[key]; ok {
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	now := dtntime.Now(c.clk)
	uris := n.URIs(now)
	var lastErr error
	for _, u := range uris {
		if u.Protocol != node.ProtocolTCP {
			continue
		}
		conn, err := net.DialTimeout("tcp", u.Address, dialTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		c.mu.Lock()
		c.sessions[key] = conn
		c.mu.Unlock()

		up := node.New(n.EID)
		up.Add(node.URI{
			Protocol: node.ProtocolTCP,
			Address:  u.Address,
			Expire:   now.Add(sessionLifetime),
			State:    node.Connected,
		})
		c.bus.Publish(event.ConnectionEvent{
			State: event.ConnectionUp, Peer: n.EID, Node: up,
		})
		return conn, nil
	}
	if lastErr == nil {
		lastErr = serrors.New("no tcp uri advertised", "node", n.EID)
	}
	return nil, lastErr
}

// dropSession closes a failed session and announces it down.
func (c *CLA) dropSession(n *node.Node, conn net.Conn) {
	conn.Close()
	key := n.EID.String()
	c.mu.Lock()
	delete(c.sessions, key)
	c.mu.Unlock()

	down := node.New(n.EID)
	for _, u := range n.Get(node.Connected, node.ProtocolTCP, dtntime.Now(c.clk)) {
		down.Add(u)
	}
	c.bus.Publish(event.ConnectionEvent{
		State: event.ConnectionDown, Peer: n.EID, Node: down,
	})
}
