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

package wallclock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/dtnet/dtnd/pkg/dtntime"
	"github.com/dtnet/dtnd/private/event"
	"github.com/dtnet/dtnd/private/wallclock"
)

type tickRecorder struct {
	mu    sync.Mutex
	ticks []event.TimeTick
}

func (r *tickRecorder) HandleTimeTick(e event.TimeTick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, e)
}

func (r *tickRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func TestPublishesSecondTicks(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	bus := event.New()
	rec := &tickRecorder{}
	bus.Subscribe(rec)
	go bus.Run()

	wc := wallclock.New(bus, mock)
	wc.Start()

	mock.Add(time.Second)
	assert.Eventually(t, func() bool { return rec.count() >= 1 },
		time.Second, 5*time.Millisecond)

	wc.Close()
	bus.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := dtntime.FromTime(mock.Now())
	assert.Equal(t, want, rec.ticks[0].Timestamp)
}
