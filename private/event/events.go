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

package event

import (
	"github.com/dtnet/dtnd/pkg/bundle"
	"github.com/dtnet/dtnd/pkg/dtntime"
	"github.com/dtnet/dtnd/pkg/eid"
	"github.com/dtnet/dtnd/private/node"
)

// TimeTick is published once per second by the wall clock.
type TimeTick struct {
	Timestamp dtntime.Time
}

// NodeAction discriminates node events.
type NodeAction int

const (
	// NodeAvailable announces a neighbor that became reachable.
	NodeAvailable NodeAction = iota
	// NodeUnavailable announces a neighbor that is gone.
	NodeUnavailable
)

func (a NodeAction) String() string {
	if a == NodeAvailable {
		return "available"
	}
	return "unavailable"
}

// NodeEvent announces an availability transition of a neighbor. The node is
// a snapshot; receivers may keep it.
type NodeEvent struct {
	Node   *node.Node
	Action NodeAction
}

// ConnState discriminates connection events.
type ConnState int

const (
	// ConnectionUp reports an established convergence-layer session.
	ConnectionUp ConnState = iota
	// ConnectionDown reports a closed convergence-layer session.
	ConnectionDown
)

// ConnectionEvent is published by convergence layers when a session to a
// peer is established or torn down. Node carries the session URIs affected.
type ConnectionEvent struct {
	State ConnState
	Peer  eid.EID
	Node  *node.Node
}

// GlobalAction discriminates global connectivity events.
type GlobalAction int

const (
	// InternetAvailable reports that uplink connectivity came back.
	InternetAvailable GlobalAction = iota
	// InternetUnavailable reports that uplink connectivity was lost.
	InternetUnavailable
)

// GlobalEvent is published on global connectivity changes.
type GlobalEvent struct {
	Action GlobalAction
}

// BundleAction discriminates bundle events.
type BundleAction int

const (
	// BundleDeleted reports a bundle removed from the store.
	BundleDeleted BundleAction = iota
)

// DeletionReason is attached to BundleDeleted events.
type DeletionReason int

const (
	// LifetimeExpired means the bundle's lifetime ran out.
	LifetimeExpired DeletionReason = iota
)

// BundleEvent reports a change to a stored bundle.
type BundleEvent struct {
	ID     bundle.ID
	Action BundleAction
	Reason DeletionReason
}

// BundleExpired is published for every bundle dropped by the expiration
// sweep, in addition to the corresponding BundleEvent.
type BundleExpired struct {
	ID bundle.ID
}

// CustodyAccepted is published when the store accepts custody of a bundle
// and rewrites its custodian.
type CustodyAccepted struct {
	ID        bundle.ID
	Custodian eid.EID
}
