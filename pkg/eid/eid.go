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

// Package eid contains the endpoint identifier type used to address DTN
// nodes and applications.
package eid

import (
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/dtnet/dtnd/pkg/private/serrors"
)

const (
	// SchemeDTN is the scheme of dtn URIs, e.g. dtn://node/app.
	SchemeDTN = "dtn"
	// SchemeIPN is the scheme of CBHE-compressed endpoints, e.g. ipn:4.2.
	SchemeIPN = "ipn"
)

// EID is an endpoint identifier, a URI-shaped address of a DTN endpoint.
// It is an immutable value type; the zero value is invalid, the canonical
// null endpoint is None.
type EID struct {
	scheme string
	ssp    string
}

// None is the null endpoint, dtn:none.
var None = EID{scheme: SchemeDTN, ssp: "none"}

// Parse parses s into an EID. The scheme must be dtn or ipn.
func Parse(s string) (EID, error) {
	scheme, ssp, ok := strings.Cut(s, ":")
	if !ok {
		return EID{}, serrors.New("invalid endpoint identifier", "eid", s)
	}
	switch scheme {
	case SchemeDTN, SchemeIPN:
	default:
		return EID{}, serrors.New("unsupported endpoint scheme", "scheme", scheme)
	}
	if ssp == "" {
		return EID{}, serrors.New("empty scheme-specific part", "eid", s)
	}
	return EID{scheme: scheme, ssp: ssp}, nil
}

// MustParse parses s into an EID and panics on error. For use in tests and
// variable initialization.
func MustParse(s string) EID {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the canonical URI form.
func (e EID) String() string {
	if e.IsZero() {
		return ""
	}
	return e.scheme + ":" + e.ssp
}

// Scheme returns the URI scheme.
func (e EID) Scheme() string {
	return e.scheme
}

// IsZero reports whether e is the invalid zero value.
func (e EID) IsZero() bool {
	return e.scheme == ""
}

// IsNone reports whether e is the null endpoint.
func (e EID) IsNone() bool {
	return e == None
}

// Authority returns the node part of a dtn URI, e.g. "host" for
// dtn://host/app. For non-hierarchical endpoints the full scheme-specific
// part is returned.
func (e EID) Authority() string {
	rest, ok := strings.CutPrefix(e.ssp, "//")
	if !ok {
		return e.ssp
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// Node returns the endpoint addressing the bare node of e, i.e. the EID with
// the application part stripped.
func (e EID) Node() EID {
	if !strings.HasPrefix(e.ssp, "//") {
		return e
	}
	return EID{scheme: e.scheme, ssp: "//" + e.Authority()}
}

// SameNode reports whether o addresses the same node as e.
func (e EID) SameNode(o EID) bool {
	return e.scheme == o.scheme && e.Authority() == o.Authority()
}

// HasPrefix reports whether the canonical form of e starts with prefix.
func (e EID) HasPrefix(prefix string) bool {
	return strings.HasPrefix(e.String(), prefix)
}

// MarshalCBOR encodes the EID as its canonical string form.
func (e EID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(e.String())
}

// UnmarshalCBOR decodes an EID from its canonical string form.
func (e *EID) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*e = EID{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler, used by the TOML config
// decoder.
func (e EID) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
