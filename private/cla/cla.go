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

// Package cla defines the contract between the connection manager and the
// convergence-layer adapters, the pluggable transports that move bundles
// between nodes.
package cla

import (
	"github.com/dtnet/dtnd/pkg/bundle"
	"github.com/dtnet/dtnd/pkg/eid"
	"github.com/dtnet/dtnd/private/node"
)

// Job is one transmission order: send the identified bundle toward the
// destination endpoint. The transport fetches the bundle bytes from the
// store when it is ready to put them on the wire.
type Job struct {
	Destination eid.EID
	Bundle      bundle.ID
}

// ConvergenceLayer is a transport adapter. Implementations are registered
// once with the connection manager, which borrows them on dispatch; they are
// never unregistered except during teardown.
type ConvergenceLayer interface {
	// DiscoveryProtocol returns the protocol tag this transport serves. It
	// is matched against the URIs a node advertises.
	DiscoveryProtocol() node.Protocol

	// Open starts a best-effort, non-blocking connection attempt to the
	// node. Session state changes are announced as ConnectionEvents.
	Open(n *node.Node)

	// Queue enqueues a transmission job for the node.
	Queue(n *node.Node, job Job) error
}
