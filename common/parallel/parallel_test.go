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

package parallel

import (
	"context"
	"fmt"
	"testing"
	"testing/synctest"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

func TestParallel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		jobs := lo.Range(1000)
		done := make([]int, len(jobs))
		workers := make([]int, len(jobs))
		err := Parallel(context.Background(), len(jobs), 4, func(workerId, jobId int) error {
			done[jobId] = jobs[jobId]
			workers[jobId] = workerId
			time.Sleep(time.Millisecond)
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, jobs, done)
		assert.Equal(t, 4, mapset.NewSet(workers...).Cardinality())

		clear(done)
		err = Parallel(context.Background(), len(jobs), 1, func(workerId, jobId int) error {
			done[jobId] = jobs[jobId]
			workers[jobId] = workerId
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, jobs, done)
		assert.Equal(t, []int{0}, mapset.NewSet(workers...).ToSlice())
	})
}

func TestParallelMoreWorkersThanJobs(t *testing.T) {
	var count atomic.Int32
	assert.NoError(t, Parallel(context.Background(), 3, 16, func(_, _ int) error {
		count.Inc()
		return nil
	}))
	assert.Equal(t, int32(3), count.Load())
	assert.NoError(t, Parallel(context.Background(), 0, 4, func(_, _ int) error {
		return errors.New("unreachable")
	}))
}

func TestParallelFail(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var count atomic.Int32
		err := Parallel(context.Background(), 1000, 4, func(_, jobId int) error {
			count.Inc()
			time.Sleep(time.Millisecond)
			if jobId == 3 || jobId == 5 {
				return fmt.Errorf("partition %d failed", jobId)
			}
			return nil
		})
		assert.ErrorContains(t, err, "partition 3 failed")
		assert.Less(t, int(count.Load()), 1000)

		count.Store(0)
		err = Parallel(context.Background(), 1000, 1, func(_, jobId int) error {
			count.Inc()
			if jobId == 3 {
				return fmt.Errorf("partition %d failed", jobId)
			}
			return nil
		})
		assert.ErrorContains(t, err, "partition 3 failed")
		assert.Equal(t, int32(4), count.Load())
	})
}

func TestParallelPanic(t *testing.T) {
	err := Parallel(context.Background(), 10, 2, func(_, jobId int) error {
		if jobId == 7 {
			panic("out of memory")
		}
		return nil
	})
	assert.ErrorContains(t, err, "job 7 panicked: out of memory")
}

func TestParallelCancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var count atomic.Int32
		err := Parallel(ctx, 1000, 4, func(_, jobId int) error {
			if jobId == 0 {
				cancel()
			}
			count.Inc()
			time.Sleep(time.Millisecond)
			return nil
		})
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Less(t, int(count.Load()), 1000)
	})
}
