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

// Package dtntime provides the DTN timestamp type. DTN time counts seconds
// since 2000-01-01 00:00:00 UTC.
package dtntime

import (
	"time"

	"github.com/benbjohnson/clock"
)

// epochOffset is the Unix timestamp of the DTN epoch, 2000-01-01 00:00:00 UTC.
const epochOffset = 946684800

// Time is a DTN timestamp in seconds since the DTN epoch.
type Time uint64

// Epoch is the DTN epoch. A creation timestamp of Epoch marks a bundle
// sourced by a node without a synchronized clock.
const Epoch Time = 0

// FromTime converts a wall-clock time to DTN time. Times before the DTN
// epoch map to Epoch.
func FromTime(t time.Time) Time {
	u := t.Unix()
	if u < epochOffset {
		return Epoch
	}
	return Time(u - epochOffset)
}

// Now returns the current DTN time read from c.
func Now(c clock.Clock) Time {
	return FromTime(c.Now())
}

// Time converts the DTN timestamp back to wall-clock time.
func (t Time) Time() time.Time {
	return time.Unix(int64(t)+epochOffset, 0).UTC()
}

// Add returns the timestamp shifted by the given number of seconds.
func (t Time) Add(seconds uint64) Time {
	return t + Time(seconds)
}

// String returns the wall-clock representation in RFC 3339 form.
func (t Time) String() string {
	return t.Time().Format(time.RFC3339)
}
