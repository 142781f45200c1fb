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

// Package bundle contains the bundle data model and its wire codec. A bundle
// is the DTN unit of data transfer: a primary block followed by a sequence of
// canonical blocks, one of which is the payload. Bundles are encoded as CBOR
// on the wire and on disk.
package bundle

import (
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/dtnet/dtnd/pkg/dtntime"
	"github.com/dtnet/dtnd/pkg/eid"
	"github.com/dtnet/dtnd/pkg/private/serrors"
)

// Version is the bundle protocol version written to the primary block.
const Version = 7

// BlockType discriminates canonical block payloads.
type BlockType uint64

const (
	// BlockTypePayload is the payload block. Every bundle carries exactly one.
	BlockTypePayload BlockType = 1
	// BlockTypeAge is the bundle age block, tracking accumulated in-network
	// age in seconds for bundles from sources without a synchronized clock.
	BlockTypeAge BlockType = 10
)

// PrimaryBlock is the leading block of every bundle.
type PrimaryBlock struct {
	_              struct{} `cbor:",toarray"`
	Version        uint64
	Flags          ControlFlags
	Destination    eid.EID
	Source         eid.EID
	ReportTo       eid.EID
	Custodian      eid.EID
	CreationTime   dtntime.Time
	Sequence       uint64
	Lifetime       uint64
	FragmentOffset uint64
	TotalLength    uint64
}

// CanonicalBlock is any block following the primary block. Unknown block
// types are preserved verbatim.
type CanonicalBlock struct {
	_     struct{} `cbor:",toarray"`
	Type  BlockType
	Flags uint64
	Data  []byte
}

// Bundle is a full bundle: primary block plus canonical blocks including the
// payload.
type Bundle struct {
	_       struct{} `cbor:",toarray"`
	Primary PrimaryBlock
	Blocks  []CanonicalBlock
}

// New assembles a bundle from the given addressing information and payload.
func New(src, dst eid.EID, created dtntime.Time, seq, lifetime uint64,
	flags ControlFlags, payload []byte) *Bundle {

	return &Bundle{
		Primary: PrimaryBlock{
			Version:      Version,
			Flags:        flags,
			Destination:  dst,
			Source:       src,
			ReportTo:     src,
			Custodian:    eid.None,
			CreationTime: created,
			Sequence:     seq,
			Lifetime:     lifetime,
		},
		Blocks: []CanonicalBlock{
			{Type: BlockTypePayload, Data: payload},
		},
	}
}

// ID returns the bundle identifier.
func (b *Bundle) ID() ID {
	return ID{
		Source:         b.Primary.Source,
		Timestamp:      b.Primary.CreationTime,
		Sequence:       b.Primary.Sequence,
		IsFragment:     b.Primary.Flags.Has(FlagFragment),
		FragmentOffset: b.Primary.FragmentOffset,
	}
}

// Expires returns the time at which the bundle's lifetime ends.
func (b *Bundle) Expires() dtntime.Time {
	return b.Primary.CreationTime.Add(b.Primary.Lifetime)
}

// Encode writes the CBOR representation of the bundle to w.
func (b *Bundle) Encode(w io.Writer) error {
	if err := cbor.NewEncoder(w).Encode(b); err != nil {
		return serrors.Wrap("encoding bundle", err, "id", b.ID())
	}
	return nil
}

// Decode reads a CBOR-encoded bundle from r, replacing the receiver's
// contents.
func (b *Bundle) Decode(r io.Reader) error {
	if err := cbor.NewDecoder(r).Decode(b); err != nil {
		return serrors.Wrap("decoding bundle", err)
	}
	if b.Primary.Version != Version {
		return serrors.New("unsupported bundle version", "version", b.Primary.Version)
	}
	return nil
}

// Marshal returns the CBOR representation of the bundle.
func (b *Bundle) Marshal() ([]byte, error) {
	raw, err := cbor.Marshal(b)
	if err != nil {
		return nil, serrors.Wrap("encoding bundle", err, "id", b.ID())
	}
	return raw, nil
}

// Unmarshal decodes raw into the receiver.
func (b *Bundle) Unmarshal(raw []byte) error {
	if err := cbor.Unmarshal(raw, b); err != nil {
		return serrors.Wrap("decoding bundle", err)
	}
	if b.Primary.Version != Version {
		return serrors.New("unsupported bundle version", "version", b.Primary.Version)
	}
	return nil
}

// Len computes the serialized size of the bundle by a dry-run encoding.
func (b *Bundle) Len() (uint64, error) {
	raw, err := b.Marshal()
	if err != nil {
		return 0, err
	}
	return uint64(len(raw)), nil
}

// Copy returns a deep copy of the bundle.
func (b *Bundle) Copy() *Bundle {
	c := &Bundle{Primary: b.Primary}
	c.Blocks = make([]CanonicalBlock, len(b.Blocks))
	for i, blk := range b.Blocks {
		c.Blocks[i] = blk
		c.Blocks[i].Data = append([]byte(nil), blk.Data...)
	}
	return c
}

// Block returns the first canonical block of the given type.
func (b *Bundle) Block(t BlockType) (*CanonicalBlock, bool) {
	for i := range b.Blocks {
		if b.Blocks[i].Type == t {
			return &b.Blocks[i], true
		}
	}
	return nil, false
}

// Payload returns the payload block contents.
func (b *Bundle) Payload() ([]byte, bool) {
	blk, ok := b.Block(BlockTypePayload)
	if !ok {
		return nil, false
	}
	return blk.Data, true
}

// Age returns the accumulated age in seconds carried in the age block.
func (b *Bundle) Age() (uint64, bool) {
	blk, ok := b.Block(BlockTypeAge)
	if !ok {
		return 0, false
	}
	var age uint64
	if err := cbor.Unmarshal(blk.Data, &age); err != nil {
		return 0, false
	}
	return age, true
}

// SetAge attaches or replaces the age block with the given age in seconds.
func (b *Bundle) SetAge(seconds uint64) error {
	data, err := cbor.Marshal(seconds)
	if err != nil {
		return serrors.Wrap("encoding age block", err)
	}
	if blk, ok := b.Block(BlockTypeAge); ok {
		blk.Data = data
		return nil
	}
	b.Blocks = append(b.Blocks, CanonicalBlock{Type: BlockTypeAge, Data: data})
	return nil
}

// AddAge increases the age block by delta seconds. Bundles without an age
// block are left untouched.
func (b *Bundle) AddAge(delta uint64) error {
	age, ok := b.Age()
	if !ok {
		return nil
	}
	return b.SetAge(age + delta)
}
