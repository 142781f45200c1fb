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

// Package periodic provides a runner for tasks that execute at a fixed
// interval, driven by an injectable clock.
package periodic

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dtnet/dtnd/pkg/log"
)

// A Task that has to be periodically executed.
type Task interface {
	// Name returns the task label used in logs.
	Name() string
	// Run executes the task once, it should return within the context's
	// timeout.
	Run(context.Context)
}

// Runner runs a task periodically.
type Runner struct {
	task    Task
	ticker  *clock.Ticker
	timeout time.Duration
	stop    chan struct{}
	done    chan struct{}
	trigger chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// Start creates and starts a new Runner to run task every period. The
// timeout bounds the context of each execution; it may exceed the period,
// in which case a slow run is immediately retriggered.
func Start(clk clock.Clock, task Task, period, timeout time.Duration) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		task:    task,
		ticker:  clk.Ticker(period),
		timeout: timeout,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		trigger: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go func() {
		defer log.HandlePanic()
		r.runLoop()
	}()
	return r
}

// Stop stops the periodic execution of the Runner. If the task is currently
// running, Stop blocks until it is done.
func (r *Runner) Stop() {
	r.ticker.Stop()
	close(r.stop)
	<-r.done
}

// Kill is like Stop but also cancels the context of a currently running
// execution.
func (r *Runner) Kill() {
	r.ticker.Stop()
	close(r.stop)
	r.cancel()
	<-r.done
}

// TriggerRun executes the task now, without affecting the periodic schedule.
// It blocks until the triggered run starts or the runner is stopped.
func (r *Runner) TriggerRun() {
	select {
	case <-r.stop:
	case r.trigger <- struct{}{}:
	}
}

func (r *Runner) runLoop() {
	defer close(r.done)
	defer r.cancel()
	for {
		select {
		case <-r.stop:
			return
		case <-r.ticker.C:
			r.onTick()
		case <-r.trigger:
			r.onTick()
		}
	}
}

func (r *Runner) onTick() {
	select {
	// The stop case is evaluated first so that a killed runner never starts
	// another execution.
	case <-r.stop:
		return
	default:
		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		ctx = log.CtxWith(ctx, log.New("task", r.task.Name()))
		r.task.Run(ctx)
		cancel()
	}
}
