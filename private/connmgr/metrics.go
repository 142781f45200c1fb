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

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricNeighbors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "connmgr_neighbors",
		Help: "Number of currently available neighbors.",
	})
	metricJobsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connmgr_jobs_dispatched_total",
		Help: "Total number of transmission jobs handed to a convergence layer.",
	}, []string{"protocol"})
	metricDispatchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connmgr_dispatch_errors_total",
		Help: "Total number of jobs that could not be dispatched.",
	})
	metricOpenAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connmgr_open_attempts_total",
		Help: "Total number of connection attempts handed to a convergence layer.",
	}, []string{"protocol"})
)
