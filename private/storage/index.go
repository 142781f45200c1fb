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
	"sort"

	"github.com/dtnet/dtnd/pkg/bundle"
)

// metaIndex is an ordered set of MetaBundles. The order is defined by the
// strict less function; membership is by bundle ID.
type metaIndex struct {
	less  func(a, b bundle.MetaBundle) bool
	items []bundle.MetaBundle
}

func newMetaIndex(less func(a, b bundle.MetaBundle) bool) *metaIndex {
	return &metaIndex{less: less}
}

func (x *metaIndex) insert(m bundle.MetaBundle) {
	i := sort.Search(len(x.items), func(i int) bool {
		return x.less(m, x.items[i])
	})
	x.items = append(x.items, bundle.MetaBundle{})
	copy(x.items[i+1:], x.items[i:])
	x.items[i] = m
}

func (x *metaIndex) remove(m bundle.MetaBundle) {
	i := sort.Search(len(x.items), func(i int) bool {
		return !x.less(x.items[i], m)
	})
	if i < len(x.items) && x.items[i].ID == m.ID {
		x.items = append(x.items[:i], x.items[i+1:]...)
	}
}

func (x *metaIndex) len() int {
	return len(x.items)
}

func (x *metaIndex) clear() {
	x.items = nil
}
