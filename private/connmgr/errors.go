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

package connmgr

import "errors"

var (
	// ErrNeighborNotAvailable is returned when no neighbor matches a
	// destination endpoint.
	ErrNeighborNotAvailable = errors.New("neighbor not available")
	// ErrConnectionNotAvailable is returned when no registered convergence
	// layer matches any of a node's protocols.
	ErrConnectionNotAvailable = errors.New("connection not available")
)
