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

package config

import (
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracerProvider(t *testing.T) {
	cfg := GetDefaultConfig().Tracing
	tp, err := cfg.NewTracerProvider(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, tp)

	for exporter, endpoint := range map[string]string{
		ExporterOTLP:     "localhost:4317",
		ExporterOTLPHTTP: "localhost:4318",
		ExporterZipkin:   "http://localhost:9411/api/v2/spans",
	} {
		for _, sampler := range []string{SamplerAlways, SamplerNever, SamplerRatio} {
			cfg = TracingConfig{
				EnableTracing:     true,
				Exporter:          exporter,
				CollectorEndpoint: endpoint,
				Sampler:           sampler,
				Ratio:             0.5,
			}
			tp, err = cfg.NewTracerProvider(context.Background())
			require.NoError(t, err, exporter)
			require.NotNil(t, tp)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			assert.NoError(t, tp.Shutdown(ctx))
			cancel()
		}
	}

	cfg = TracingConfig{EnableTracing: true, Exporter: "jaeger", Sampler: SamplerAlways}
	_, err = cfg.NewTracerProvider(context.Background())
	assert.True(t, errors.Is(err, errors.NotSupported))
	cfg = TracingConfig{EnableTracing: true, Exporter: ExporterZipkin, CollectorEndpoint: "http://localhost:9411", Sampler: "sometimes"}
	_, err = cfg.NewTracerProvider(context.Background())
	assert.True(t, errors.Is(err, errors.NotSupported))
}
