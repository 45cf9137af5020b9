// Copyright 2025 The quicd Authors
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

package metricstore

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/quicd/quicd/internal/labels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAccumulatesCounterAndOverwritesGauge(t *testing.T) {
	s := newStore(time.Minute)
	lbs := labels.Labels{{Name: "space", Value: "application_data"}}

	s.Update(ConstMetric{Model: ModelCounter, Name: "quicd_packet_lost_total", Labels: lbs, Value: 1})
	s.Update(ConstMetric{Model: ModelCounter, Name: "quicd_packet_lost_total", Labels: lbs, Value: 1})
	s.Update(ConstMetric{Model: ModelGauge, Name: "quicd_congestion_window_bytes", Labels: lbs, Value: 12000})
	s.Update(ConstMetric{Model: ModelGauge, Name: "quicd_congestion_window_bytes", Labels: lbs, Value: 9000})

	var buf bytes.Buffer
	s.WritePrometheus(&buf)
	out := buf.String()
	assert.True(t, strings.Contains(out, `quicd_packet_lost_total{space="application_data"} 2.000000`))
	assert.True(t, strings.Contains(out, `quicd_congestion_window_bytes{space="application_data"} 9000.000000`))
}

func TestWriteRequestProducesOneSeriesPerLabelSet(t *testing.T) {
	s := newStore(time.Minute)
	s.Update(ConstMetric{Model: ModelCounter, Name: "quicd_dcmap_evicted_total", Value: 3})

	wr := s.WriteRequest()
	require.Len(t, wr.Timeseries, 1)
	assert.Equal(t, "quicd_dcmap_evicted_total", wr.Timeseries[0].Labels[0].Value)
	require.Len(t, wr.Timeseries[0].Samples, 1)
	assert.Equal(t, float64(3), wr.Timeseries[0].Samples[0].Value)
}

func TestRemoveExpiredDropsStaleSamples(t *testing.T) {
	s := newStore(0)
	s.expired = time.Nanosecond
	s.Update(ConstMetric{Model: ModelCounter, Name: "quicd_packet_lost_total", Value: 1})
	time.Sleep(time.Millisecond)
	s.removeExpired()

	var buf bytes.Buffer
	s.WritePrometheus(&buf)
	assert.Empty(t, buf.String())
}
