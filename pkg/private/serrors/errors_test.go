// Copyright 2021 dtnet
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

package serrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtnet/dtnd/pkg/private/serrors"
)

func TestWrapIsCause(t *testing.T) {
	cause := errors.New("cause")
	err := serrors.Wrap("failed", cause, "key", "value")
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "key=value")
	assert.Contains(t, err.Error(), "cause")
}

func TestJoinIsSentinel(t *testing.T) {
	sentinel := errors.New("not found")
	cause := errors.New("io broke")
	err := serrors.Join(sentinel, cause, "id", 42)
	assert.True(t, errors.Is(err, sentinel))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "id=42")
}

func TestJoinNil(t *testing.T) {
	assert.NoError(t, serrors.Join(nil, nil))
}

func TestNewContextSorted(t *testing.T) {
	err := serrors.New("msg", "b", 2, "a", 1)
	assert.Equal(t, "msg {a=1; b=2}", err.Error())
}

func TestList(t *testing.T) {
	var errs serrors.List
	assert.NoError(t, errs.ToError())
	errs = append(errs, errors.New("one"), errors.New("two"))
	assert.Error(t, errs.ToError())
	assert.Equal(t, "[ one; two ]", errs.Error())
}
