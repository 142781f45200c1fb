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

// Package connmgr maintains the neighbor table of the daemon. It tracks
// which remote nodes are reachable over which convergence layers, announces
// availability transitions on the event bus, and dispatches transmission
// jobs to the matching transport.
package connmgr

import (
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/dtnet/dtnd/pkg/bundle"
	"github.com/dtnet/dtnd/pkg/dtntime"
	"github.com/dtnet/dtnd/pkg/eid"
	"github.com/dtnet/dtnd/pkg/log"
	"github.com/dtnet/dtnd/pkg/private/serrors"
	"github.com/dtnet/dtnd/private/cla"
	"github.com/dtnet/dtnd/private/event"
	"github.com/dtnet/dtnd/private/node"
)

// Config configures a Manager.
type Config struct {
	// LocalEID is the endpoint of this node. Discovery observations of the
	// local endpoint are dropped.
	LocalEID eid.EID
	// AutoConnect is the interval in seconds between sweeps that open
	// sessions to available but unconnected neighbors. Zero disables
	// auto-connect.
	AutoConnect uint64
}

// Manager owns the in-memory neighbor table. All mutation goes through it;
// it reacts to discovery, connection, time and global connectivity events.
//
// Two mutexes guard the state: nodeMu for the neighbor table and clMu for
// the set of convergence layers. They are never held simultaneously.
type Manager struct {
	cfg Config
	bus *event.Bus
	clk clock.Clock
	log log.Logger

	nodeMu sync.Mutex
	nodes  map[eid.EID]*node.Node

	clMu sync.Mutex
	cls  []cla.ConvergenceLayer

	nextAutoConnect dtntime.Time
}

// New creates a connection manager. Start must be called before events are
// handled.
func New(cfg Config, bus *event.Bus, clk clock.Clock) *Manager {
	return &Manager{
		cfg:   cfg,
		bus:   bus,
		clk:   clk,
		log:   log.New("comp", "connmgr"),
		nodes: make(map[eid.EID]*node.Node),
	}
}

// Start subscribes the manager to the event bus and arms the auto-connect
// schedule.
func (m *Manager) Start() {
	if m.cfg.AutoConnect != 0 {
		m.nextAutoConnect = dtntime.Now(m.clk).Add(m.cfg.AutoConnect)
	}
	m.bus.Subscribe(m)
}

// Close unsubscribes the manager and drops the convergence layers.
func (m *Manager) Close() {
	m.bus.Unsubscribe(m)
	m.clMu.Lock()
	m.cls = nil
	m.clMu.Unlock()
}

// AddConvergenceLayer registers a transport. Registering the same transport
// twice is a no-op; identity is object identity.
func (m *Manager) AddConvergenceLayer(c cla.ConvergenceLayer) {
	m.clMu.Lock()
	defer m.clMu.Unlock()
	for _, existing := range m.cls {
		if existing == c {
			return
		}
	}
	m.cls = append(m.cls, c)
}

// AddConnection merges the observation into the neighbor table. If the node
// becomes available and has not been announced, a NODE_AVAILABLE event is
// published.
func (m *Manager) AddConnection(n *node.Node) {
	m.nodeMu.Lock()
	defer m.nodeMu.Unlock()
	m.upsertLocked(n)
}

// RemoveConnection subtracts the listed URIs from the node's record. No
// event is published; the next availability sweep announces the transition.
func (m *Manager) RemoveConnection(n *node.Node) {
	m.nodeMu.Lock()
	defer m.nodeMu.Unlock()
	if db, ok := m.nodes[n.EID]; ok {
		db.Remove(n)
		m.log.Debug("Node attributes removed", "node", db)
	}
}

// Discovered merges a discovery observation, ignoring observations of the
// local endpoint.
func (m *Manager) Discovered(n *node.Node) {
	if n.EID == m.cfg.LocalEID {
		return
	}
	m.nodeMu.Lock()
	defer m.nodeMu.Unlock()
	m.upsertLocked(n)
}

// UpdateNeighbor merges an updated observation of a neighbor.
func (m *Manager) UpdateNeighbor(n *node.Node) {
	m.Discovered(n)
}

// Open selects the first registered convergence layer whose discovery
// protocol the node advertises and starts a connection attempt.
func (m *Manager) Open(n *node.Node) error {
	now := dtntime.Now(m.clk)
	m.clMu.Lock()
	defer m.clMu.Unlock()
	for _, c := range m.cls {
		if n.Has(c.DiscoveryProtocol(), now) {
			metricOpenAttempts.WithLabelValues(string(c.DiscoveryProtocol())).Inc()
			c.Open(n)
			return nil
		}
	}
	return serrors.Join(ErrConnectionNotAvailable, nil, "node", n.EID)
}

// QueueNode hands the job to the first convergence layer matching the node.
func (m *Manager) QueueNode(n *node.Node, job cla.Job) error {
	now := dtntime.Now(m.clk)
	m.clMu.Lock()
	defer m.clMu.Unlock()
	for _, c := range m.cls {
		if n.Has(c.DiscoveryProtocol(), now) {
			if err := c.Queue(n, job); err != nil {
				metricDispatchErrors.Inc()
				return err
			}
			metricJobsDispatched.WithLabelValues(string(c.DiscoveryProtocol())).Inc()
			return nil
		}
	}
	metricDispatchErrors.Inc()
	return serrors.Join(ErrConnectionNotAvailable, nil, "node", n.EID)
}

// Queue resolves the job's destination against the neighbor table and
// dispatches it.
func (m *Manager) Queue(job cla.Job) error {
	m.nodeMu.Lock()
	n, ok := m.nodes[job.Destination]
	if ok {
		n = n.Clone()
	}
	m.nodeMu.Unlock()
	if !ok {
		metricDispatchErrors.Inc()
		return serrors.Join(ErrNeighborNotAvailable, nil, "destination", job.Destination)
	}
	m.log.Debug("Dispatching job", "bundle", job.Bundle, "next hop", n.EID)
	return m.QueueNode(n, job)
}

// QueueBundle is shorthand for Queue with a freshly assembled job.
func (m *Manager) QueueBundle(to eid.EID, id bundle.ID) error {
	return m.Queue(cla.Job{Destination: to, Bundle: id})
}

// Neighbors returns a snapshot of all currently available nodes.
func (m *Manager) Neighbors() []*node.Node {
	now := dtntime.Now(m.clk)
	m.nodeMu.Lock()
	defer m.nodeMu.Unlock()
	out := make([]*node.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		if n.IsAvailable(now) {
			out = append(out, n.Clone())
		}
	}
	return out
}

// Neighbor looks up an available neighbor by endpoint.
func (m *Manager) Neighbor(e eid.EID) (*node.Node, error) {
	now := dtntime.Now(m.clk)
	m.nodeMu.Lock()
	defer m.nodeMu.Unlock()
	if n, ok := m.nodes[e]; ok && n.IsAvailable(now) {
		return n.Clone(), nil
	}
	return nil, serrors.Join(ErrNeighborNotAvailable, nil, "eid", e)
}

// IsNeighbor reports whether the node is known and available.
func (m *Manager) IsNeighbor(n *node.Node) bool {
	_, err := m.Neighbor(n.EID)
	return err == nil
}

// HandleNodeEvent opens a session to newly available nodes that ask for an
// immediate connect.
func (m *Manager) HandleNodeEvent(e event.NodeEvent) {
	if e.Action != event.NodeAvailable || !e.Node.ConnectImmediately {
		return
	}
	if err := m.Open(e.Node); err != nil {
		m.log.Debug("Immediate connect failed", "node", e.Node.EID, "err", err)
	}
}

// HandleTimeTick runs the availability and auto-connect sweeps.
func (m *Manager) HandleTimeTick(e event.TimeTick) {
	m.checkUnavailable(e.Timestamp)
	m.checkAutoConnect(e.Timestamp)
}

// HandleConnectionEvent merges session state reported by the convergence
// layers into the table.
func (m *Manager) HandleConnectionEvent(e event.ConnectionEvent) {
	switch e.State {
	case event.ConnectionUp:
		m.nodeMu.Lock()
		defer m.nodeMu.Unlock()
		m.upsertLocked(e.Node)
	case event.ConnectionDown:
		m.RemoveConnection(e.Node)
	}
}

// HandleGlobalEvent reacts to uplink connectivity changes.
func (m *Manager) HandleGlobalEvent(e event.GlobalEvent) {
	switch e.Action {
	case event.InternetAvailable:
		m.checkAvailable()
	case event.InternetUnavailable:
		m.checkUnavailable(dtntime.Now(m.clk))
	}
}

// upsertLocked merges n into the table and announces the node if it just
// became available. Callers hold nodeMu.
func (m *Manager) upsertLocked(n *node.Node) {
	now := dtntime.Now(m.clk)
	db, ok := m.nodes[n.EID]
	if !ok {
		db = n.Clone()
		m.nodes[n.EID] = db
		m.log.Debug("New node known", "node", db)
	} else {
		db.Merge(n)
		m.log.Debug("Node attributes added", "node", db)
	}
	if db.IsAvailable(now) && !db.Announced {
		db.Announced = true
		m.bus.Publish(event.NodeEvent{Node: db.Clone(), Action: event.NodeAvailable})
	}
	m.updateNeighborMetricLocked(now)
}

// checkAvailable announces nodes that became available without a discovery
// or connection observation, e.g. after the uplink came back.
func (m *Manager) checkAvailable() {
	now := dtntime.Now(m.clk)
	m.nodeMu.Lock()
	defer m.nodeMu.Unlock()
	for _, n := range m.nodes {
		if n.Announced {
			continue
		}
		if n.IsAvailable(now) {
			n.Announced = true
			m.bus.Publish(event.NodeEvent{Node: n.Clone(), Action: event.NodeAvailable})
		}
	}
	m.updateNeighborMetricLocked(now)
}

// checkUnavailable walks the table, announces nodes that stopped being
// available, expires lapsed URIs and drops empty nodes.
func (m *Manager) checkUnavailable(now dtntime.Time) {
	m.nodeMu.Lock()
	defer m.nodeMu.Unlock()
	for e, n := range m.nodes {
		if n.Announced && !n.IsAvailable(now) {
			n.Announced = false
			m.bus.Publish(event.NodeEvent{Node: n.Clone(), Action: event.NodeUnavailable})
		}
		if n.Expire(now) {
			if n.Announced {
				n.Announced = false
				m.bus.Publish(event.NodeEvent{Node: n.Clone(), Action: event.NodeUnavailable})
			}
			delete(m.nodes, e)
			m.log.Debug("Node expired", "node", e)
		}
	}
	m.updateNeighborMetricLocked(now)
}

// checkAutoConnect opens sessions to available nodes that have no connected
// stream session. The candidate list is collected under the table lock and
// the open calls happen after it is released, so that the transport's
// connection events never contend with the sweep.
func (m *Manager) checkAutoConnect(now dtntime.Time) {
	if m.cfg.AutoConnect == 0 {
		return
	}
	if now < m.nextAutoConnect {
		return
	}
	var open []*node.Node
	m.nodeMu.Lock()
	for _, n := range m.nodes {
		if !n.IsAvailable(now) {
			continue
		}
		if len(n.Get(node.Connected, node.ProtocolTCP, now)) == 0 {
			open = append(open, n.Clone())
		}
	}
	m.nodeMu.Unlock()
	m.nextAutoConnect = now.Add(m.cfg.AutoConnect)

	for _, n := range open {
		if err := m.Open(n); err != nil {
			m.log.Debug("Auto-connect failed", "node", n.EID, "err", err)
		}
	}
}

func (m *Manager) updateNeighborMetricLocked(now dtntime.Time) {
	available := 0
	for _, n := range m.nodes {
		if n.IsAvailable(now) {
			available++
		}
	}
	metricNeighbors.Set(float64(available))
}
