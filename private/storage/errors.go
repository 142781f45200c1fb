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

import "errors"

var (
	// ErrNoBundleFound is returned when a lookup or removal misses.
	ErrNoBundleFound = errors.New("no bundle found")
	// ErrStorageFull is returned by Store when accepting the bundle would
	// exceed the configured capacity.
	ErrStorageFull = errors.New("storage capacity exceeded")
	// ErrBundleLoad is returned by Get when the persisted bundle cannot be
	// deserialized. The broken bundle is evicted.
	ErrBundleLoad = errors.New("bundle load failed")
)
