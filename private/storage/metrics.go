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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricBundles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storage_bundles",
		Help: "Number of bundles currently held by the store.",
	})
	metricUsedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storage_used_bytes",
		Help: "Bytes of bundle data accounted by the store.",
	})
	metricExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storage_bundles_expired_total",
		Help: "Total number of bundles dropped because their lifetime ran out.",
	})
	metricStoreFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storage_store_failures_total",
		Help: "Total number of bundle writes that failed on disk.",
	})
)
