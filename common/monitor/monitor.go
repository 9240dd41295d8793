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
	"cmp"
	"slices"
	"sync"
	"time"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusSkipped  Status = "Skipped"
	StatusFailed   Status = "Failed"
)

// Task is the progress of one unit of work, usually a partition or the merge.
type Task struct {
	Name       string
	Status     Status
	Done       int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
	Error      string
}

// Settled reports whether the task will not change any more.
func (t *Task) Settled() bool {
	return t.Status == StatusComplete || t.Status == StatusSkipped || t.Status == StatusFailed
}

// Monitor tracks tasks by name. It is safe for concurrent use.
type Monitor struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewMonitor() *Monitor {
	return &Monitor{tasks: make(map[string]*Task)}
}

// GetTask returns a copy of the task, or nil if it is unknown.
func (m *Monitor) GetTask(name string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[name]; ok {
		task := *t
		return &task
	}
	return nil
}

func (m *Monitor) Pending(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[name] = &Task{Name: name, Status: StatusPending}
}

func (m *Monitor) Start(name string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[name] = &Task{
		Name:      name,
		Status:    StatusRunning,
		Total:     total,
		StartTime: time.Now(),
	}
}

func (m *Monitor) Update(name string, done int) {
	m.update(name, func(t *Task) {
		t.Done = done
	})
}

func (m *Monitor) Finish(name string) {
	m.update(name, func(t *Task) {
		t.Status = StatusComplete
		t.Done = t.Total
		t.FinishTime = time.Now()
	})
}

// Skip marks a task as skipped. A skipped task counts as settled.
func (m *Monitor) Skip(name, reason string) {
	m.update(name, func(t *Task) {
		t.Status = StatusSkipped
		t.Error = reason
		t.FinishTime = time.Now()
	})
}

func (m *Monitor) Fail(name, err string) {
	m.update(name, func(t *Task) {
		t.Status = StatusFailed
		t.Error = err
		t.FinishTime = time.Now()
	})
}

// update applies fn to a known task. Unknown tasks are ignored.
func (m *Monitor) update(name string, fn func(*Task)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[name]; ok {
		fn(t)
	}
}

// Count returns the number of tasks in each status.
func (m *Monitor) Count() map[Status]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[Status]int)
	for _, t := range m.tasks {
		counts[t.Status]++
	}
	return counts
}

// List returns all tasks. Started tasks come first by start time, then pending tasks
// by name.
func (m *Monitor) List() []Task {
	m.mu.Lock()
	tasks := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	m.mu.Unlock()
	slices.SortFunc(tasks, func(a, b Task) int {
		aPending, bPending := a.Status == StatusPending, b.Status == StatusPending
		if aPending != bPending {
			if aPending {
				return 1
			}
			return -1
		}
		return cmp.Or(a.StartTime.Compare(b.StartTime), cmp.Compare(a.Name, b.Name))
	})
	return tasks
}
