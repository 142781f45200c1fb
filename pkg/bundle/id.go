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
	"fmt"

	"github.com/dtnet/dtnd/pkg/dtntime"
	"github.com/dtnet/dtnd/pkg/eid"
)

// ID identifies a bundle uniquely. It consists of the source endpoint, the
// creation timestamp with its sequence number, and, for fragments, the
// fragment offset. The canonical string form is used as the storage key.
type ID struct {
	Source         eid.EID
	Timestamp      dtntime.Time
	Sequence       uint64
	IsFragment     bool
	FragmentOffset uint64
}

// String returns the canonical form, e.g. "dtn://node/app-1234-5" or
// "dtn://node/app-1234-5-100" for a fragment.
func (id ID) String() string {
	if id.IsFragment {
		return fmt.Sprintf("%s-%d-%d-%d",
			id.Source, id.Timestamp, id.Sequence, id.FragmentOffset)
	}
	return fmt.Sprintf("%s-%d-%d", id.Source, id.Timestamp, id.Sequence)
}
