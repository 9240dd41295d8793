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
	"sync"

	"github.com/juju/errors"
	"go.uber.org/atomic"
)

// Parallel runs worker for jobs [0, nJobs) on nWorkers goroutines. Workers pull job ids
// in ascending order. After the first failure no new job is started and the error of the
// smallest failed job is returned. A panicking job fails like any other. Cancelling ctx
// stops outstanding work and its error is returned.
func Parallel(ctx context.Context, nJobs, nWorkers int, worker func(workerId, jobId int) error) error {
	if nWorkers < 1 {
		nWorkers = 1
	}
	nWorkers = min(nWorkers, nJobs)
	var (
		next   atomic.Int64
		failed atomic.Bool
		errs   = make([]error, nJobs)
		wg     sync.WaitGroup
	)
	for workerId := range nWorkers {
		wg.Go(func() {
			for !failed.Load() && ctx.Err() == nil {
				jobId := int(next.Inc() - 1)
				if jobId >= nJobs {
					return
				}
				if err := run(worker, workerId, jobId); err != nil {
					errs[jobId] = err
					failed.Store(true)
				}
			}
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(ctx.Err())
}

func run(worker func(workerId, jobId int) error, workerId, jobId int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("job %d panicked: %v", jobId, r)
		}
	}()
	return worker(workerId, jobId)
}
