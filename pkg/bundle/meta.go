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

package bundle

import (
	"github.com/dtnet/dtnd/pkg/dtntime"
	"github.com/dtnet/dtnd/pkg/eid"
)

// MetaBundle is a cheap metadata projection of a bundle. It is what the
// store indexes and what routing reasons about; the full bundle is only
// loaded when bytes go on the wire.
type MetaBundle struct {
	ID          ID
	Destination eid.EID
	ReportTo    eid.EID
	Priority    Priority
	Flags       ControlFlags
	Lifetime    uint64
	Expiration  dtntime.Time
	Size        uint64
}

// NewMeta projects the bundle into a MetaBundle. size is the serialized size
// in bytes as computed by a dry-run encoding.
func NewMeta(b *Bundle, size uint64) MetaBundle {
	return MetaBundle{
		ID:          b.ID(),
		Destination: b.Primary.Destination,
		ReportTo:    b.Primary.ReportTo,
		Priority:    b.Primary.Flags.Priority(),
		Flags:       b.Primary.Flags,
		Lifetime:    b.Primary.Lifetime,
		Expiration:  b.Expires(),
		Size:        size,
	}
}

// String returns the canonical string of the bundle ID. This is the form
// matched against routing summary vectors and used as the storage key.
func (m MetaBundle) String() string {
	return m.ID.String()
}

// Less is the dispatch order of the store's priority index: higher priority
// first, then earlier expiration, then lower ID. Ties on all three are
// impossible because bundle IDs are unique.
func (m MetaBundle) Less(o MetaBundle) bool {
	if m.Priority != o.Priority {
		return m.Priority > o.Priority
	}
	if m.Expiration != o.Expiration {
		return m.Expiration < o.Expiration
	}
	return m.ID.String() < o.ID.String()
}

// ExpiresEarlier orders MetaBundles by expiration time, breaking ties by ID.
// It is the order of the store's expiration sweep.
func (m MetaBundle) ExpiresEarlier(o MetaBundle) bool {
	if m.Expiration != o.Expiration {
		return m.Expiration < o.Expiration
	}
	return m.ID.String() < o.ID.String()
}
