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

package storage

import (
	"io"

	"github.com/dtnet/dtnd/pkg/bundle"
	"github.com/dtnet/dtnd/pkg/private/serrors"
	"github.com/dtnet/dtnd/private/storage/datastore"
)

// bundleContainer hands a bundle to the datastore worker queue. The key is
// the canonical bundle ID string, so the blob name is content-addressed.
type bundleContainer struct {
	bundle *bundle.Bundle
}

var _ datastore.Container = (*bundleContainer)(nil)

func (c *bundleContainer) Key() string {
	return c.bundle.ID().String()
}

func (c *bundleContainer) Serialize(w io.Writer) (int64, error) {
	raw, err := c.bundle.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(raw)
	if err != nil {
		return int64(n), err
	}
	if n < len(raw) {
		return int64(n), serrors.New("not all data were written",
			"written", n, "size", len(raw))
	}
	return int64(n), nil
}
