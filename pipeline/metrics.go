// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelStage  = "stage"
	LabelStatus = "status"
)

var (
	PartitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "itemsim",
		Subsystem: "pipeline",
		Name:      "partitions_total",
	}, []string{LabelStatus})
	StageSecondsVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "itemsim",
		Subsystem: "pipeline",
		Name:      "stage_seconds",
	}, []string{LabelStage})
	PartitionMemoryEstimateBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "itemsim",
		Subsystem: "pipeline",
		Name:      "partition_memory_estimate_bytes",
	})
	NeighborListsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "itemsim",
		Subsystem: "pipeline",
		Name:      "neighbor_lists_total",
	})
	MergedItemsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "itemsim",
		Subsystem: "pipeline",
		Name:      "merged_items_total",
	})
)

// WriteMetrics exports all metrics to a file for the node exporter textfile collector.
func WriteMetrics(path string) error {
	return errors.Trace(prometheus.WriteToTextfile(path, prometheus.DefaultGatherer))
}
