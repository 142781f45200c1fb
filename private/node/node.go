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

// Package node contains the record type for a remote DTN peer. A node is
// identified by its endpoint identifier and carries the set of URIs it is
// reachable at, each with a protocol, a priority and an expiry.
package node

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dtnet/dtnd/pkg/dtntime"
	"github.com/dtnet/dtnd/pkg/eid"
)

// Protocol tags the transport a URI belongs to. Convergence layers announce
// the protocol they serve; dispatch matches it against the node's URIs.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// IsStream reports whether the protocol is stream-oriented. Auto-connect
// only considers stream protocols, datagram transports need no session.
func (p Protocol) IsStream() bool {
	return p == ProtocolTCP
}

// State describes how a URI became known.
type State int

const (
	// Discovered URIs were learned from a discovery beacon.
	Discovered State = iota
	// Connected URIs belong to an established convergence-layer session.
	Connected
	// Available URIs were announced by a global connectivity change.
	Available
	// Static URIs come from the configuration and never expire.
	Static
)

func (s State) String() string {
	switch s {
	case Discovered:
		return "discovered"
	case Connected:
		return "connected"
	case Available:
		return "available"
	case Static:
		return "static"
	default:
		return "unknown"
	}
}

// URI is one address a node is reachable at.
type URI struct {
	Protocol Protocol
	Address  string
	Priority int
	// Expire is the DTN time after which the URI lapses. Zero means never;
	// Static URIs never expire regardless.
	Expire dtntime.Time
	State  State
}

func (u URI) expired(now dtntime.Time) bool {
	if u.State == Static || u.Expire == 0 {
		return false
	}
	return u.Expire <= now
}

func (u URI) String() string {
	return fmt.Sprintf("%s://%s [%s]", u.Protocol, u.Address, u.State)
}

type uriKey struct {
	protocol Protocol
	address  string
}

// Node is the authoritative record for one remote peer. Nodes are not safe
// for concurrent use; the connection manager serializes access under its
// table lock and hands out copies.
type Node struct {
	EID eid.EID
	// Announced is true iff the most recent event published for this node
	// was NODE_AVAILABLE.
	Announced bool
	// ConnectImmediately is a hint from the source of the observation that a
	// session should be opened right away.
	ConnectImmediately bool

	uris map[uriKey]URI
}

// New creates an empty node record for the given endpoint.
func New(e eid.EID) *Node {
	return &Node{EID: e, uris: make(map[uriKey]URI)}
}

// Add inserts or replaces the URI keyed by (protocol, address).
func (n *Node) Add(u URI) {
	if n.uris == nil {
		n.uris = make(map[uriKey]URI)
	}
	n.uris[uriKey{u.Protocol, u.Address}] = u
}

// Merge adds all URIs of o to n. Entries with the same (protocol, address)
// key are replaced by o's observation. The connect-immediately hint is
// sticky.
func (n *Node) Merge(o *Node) {
	for _, u := range o.uris {
		n.Add(u)
	}
	if o.ConnectImmediately {
		n.ConnectImmediately = true
	}
}

// Remove drops every URI of n whose (protocol, address) key is listed in o.
func (n *Node) Remove(o *Node) {
	for k := range o.uris {
		delete(n.uris, k)
	}
}

// IsAvailable reports whether the node has at least one non-expired URI.
func (n *Node) IsAvailable(now dtntime.Time) bool {
	for _, u := range n.uris {
		if !u.expired(now) {
			return true
		}
	}
	return false
}

// Expire drops all URIs whose expiry has passed and reports whether the node
// itself has expired, i.e. its URI set is empty.
func (n *Node) Expire(now dtntime.Time) bool {
	for k, u := range n.uris {
		if u.expired(now) {
			delete(n.uris, k)
		}
	}
	return len(n.uris) == 0
}

// Has reports whether the node advertises a non-expired URI for the given
// protocol.
func (n *Node) Has(p Protocol, now dtntime.Time) bool {
	for _, u := range n.uris {
		if u.Protocol == p && !u.expired(now) {
			return true
		}
	}
	return false
}

// Get returns the non-expired URIs matching both state and protocol, best
// priority first.
func (n *Node) Get(s State, p Protocol, now dtntime.Time) []URI {
	var out []URI
	for _, u := range n.uris {
		if u.State == s && u.Protocol == p && !u.expired(now) {
			out = append(out, u)
		}
	}
	sortURIs(out)
	return out
}

// URIs returns all non-expired URIs, best priority first.
func (n *Node) URIs(now dtntime.Time) []URI {
	out := make([]URI, 0, len(n.uris))
	for _, u := range n.uris {
		if !u.expired(now) {
			out = append(out, u)
		}
	}
	sortURIs(out)
	return out
}

// Clone returns a deep copy of the node. Events and snapshots carry clones
// so that receivers never share the table's mutable state.
func (n *Node) Clone() *Node {
	c := &Node{
		EID:                n.EID,
		Announced:          n.Announced,
		ConnectImmediately: n.ConnectImmediately,
		uris:               make(map[uriKey]URI, len(n.uris)),
	}
	for k, u := range n.uris {
		c.uris[k] = u
	}
	return c
}

func (n *Node) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s#[", n.EID)
	for i, u := range n.URIs(0) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(u.String())
	}
	b.WriteString("]")
	return b.String()
}

func sortURIs(uris []URI) {
	sort.Slice(uris, func(i, j int) bool {
		if uris[i].Priority != uris[j].Priority {
			return uris[i].Priority < uris[j].Priority
		}
		return uris[i].Address < uris[j].Address
	})
}
