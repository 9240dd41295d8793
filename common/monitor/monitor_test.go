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

package monitor

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor(t *testing.T) {
	m := NewMonitor()
	m.Pending("partition_2")
	m.Pending("partition_1")
	m.Pending("partition_3")

	m.Start("partition_3", 3)
	m.Update("partition_3", 2)
	assert.Equal(t, 2, m.GetTask("partition_3").Done)
	assert.False(t, m.GetTask("partition_3").Settled())
	m.Finish("partition_3")
	task := m.GetTask("partition_3")
	assert.Equal(t, StatusComplete, task.Status)
	assert.Equal(t, 3, task.Done)
	assert.True(t, task.Settled())

	m.Start("partition_1", 3)
	m.Skip("partition_1", "empty partition")
	assert.Equal(t, StatusSkipped, m.GetTask("partition_1").Status)
	assert.Equal(t, "empty partition", m.GetTask("partition_1").Error)

	// unknown tasks are ignored
	m.Fail("merge", "ignored")
	assert.Nil(t, m.GetTask("merge"))

	assert.Equal(t, map[Status]int{
		StatusComplete: 1,
		StatusSkipped:  1,
		StatusPending:  1,
	}, m.Count())

	tasks := m.List()
	require.Len(t, tasks, 3)
	assert.Equal(t, "partition_3", tasks[0].Name)
	assert.Equal(t, "partition_1", tasks[1].Name)
	assert.Equal(t, "partition_2", tasks[2].Name)
	assert.Equal(t, StatusPending, tasks[2].Status)
}

func TestMonitorFail(t *testing.T) {
	m := NewMonitor()
	m.Start("merge", 2)
	m.Fail("merge", "malformed intermediate")
	task := m.GetTask("merge")
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "malformed intermediate", task.Error)
	assert.False(t, task.FinishTime.IsZero())
	assert.True(t, task.Settled())
}

func TestMonitorConcurrent(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := range 100 {
		name := fmt.Sprintf("partition_%d", i)
		m.Pending(name)
		wg.Go(func() {
			m.Start(name, 1)
			m.Finish(name)
		})
	}
	wg.Wait()
	assert.Equal(t, map[Status]int{StatusComplete: 100}, m.Count())
}
