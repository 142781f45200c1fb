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

package node_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtnet/dtnd/pkg/dtntime"
	"github.com/dtnet/dtnd/pkg/eid"
	"github.com/dtnet/dtnd/private/node"
)

func testNode(uris ...node.URI) *node.Node {
	n := node.New(eid.MustParse("dtn://peer"))
	for _, u := range uris {
		n.Add(u)
	}
	return n
}

func TestMergeUnionByKey(t *testing.T) {
	a := testNode(
		node.URI{Protocol: node.ProtocolTCP, Address: "10.0.0.1:4556", Expire: 100, State: node.Discovered},
	)
	b := testNode(
		// same key, newer observation wins
		node.URI{Protocol: node.ProtocolTCP, Address: "10.0.0.1:4556", Expire: 200, State: node.Connected},
		node.URI{Protocol: node.ProtocolUDP, Address: "10.0.0.1:4556", Expire: 200, State: node.Discovered},
	)
	b.ConnectImmediately = true

	a.Merge(b)
	assert.Len(t, a.URIs(0), 2)
	assert.True(t, a.ConnectImmediately)
	got := a.Get(node.Connected, node.ProtocolTCP, 0)
	assert.Len(t, got, 1)
	assert.Equal(t, dtntime.Time(200), got[0].Expire)
}

func TestRemoveSubtractsListed(t *testing.T) {
	a := testNode(
		node.URI{Protocol: node.ProtocolTCP, Address: "10.0.0.1:4556", Expire: 100},
		node.URI{Protocol: node.ProtocolUDP, Address: "10.0.0.1:4556", Expire: 100},
	)
	a.Remove(testNode(
		node.URI{Protocol: node.ProtocolTCP, Address: "10.0.0.1:4556"},
	))
	uris := a.URIs(0)
	assert.Len(t, uris, 1)
	assert.Equal(t, node.ProtocolUDP, uris[0].Protocol)
}

func TestAvailabilityAndExpire(t *testing.T) {
	n := testNode(
		node.URI{Protocol: node.ProtocolTCP, Address: "a:1", Expire: 100, State: node.Discovered},
		node.URI{Protocol: node.ProtocolUDP, Address: "a:1", Expire: 50, State: node.Discovered},
	)
	assert.True(t, n.IsAvailable(10))
	assert.True(t, n.IsAvailable(60))
	assert.False(t, n.IsAvailable(100))

	assert.False(t, n.Expire(60))
	assert.Len(t, n.URIs(0), 1)
	assert.True(t, n.Expire(100))
	assert.False(t, n.IsAvailable(100))
}

func TestStaticNeverExpires(t *testing.T) {
	n := testNode(
		node.URI{Protocol: node.ProtocolTCP, Address: "a:1", Expire: 10, State: node.Static},
	)
	assert.False(t, n.Expire(1 << 40))
	assert.True(t, n.IsAvailable(1<<40))
	assert.True(t, n.Has(node.ProtocolTCP, 1<<40))
}

func TestCloneIsIndependent(t *testing.T) {
	n := testNode(node.URI{Protocol: node.ProtocolTCP, Address: "a:1"})
	c := n.Clone()
	c.Add(node.URI{Protocol: node.ProtocolUDP, Address: "b:2"})
	assert.Len(t, n.URIs(0), 1)
	assert.Len(t, c.URIs(0), 2)
}
