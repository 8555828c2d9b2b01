/*
 * Copyright 2022 The Gremlins Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package statusmap implements the per-unit mutable mutation → status
// table the Worker Controller drives: every mutation starts NOT_STARTED,
// at most one mutation is STARTED per live worker, and once CreateResults
// has emitted a unit's snapshot, ClearAfterReporting drops the detailed
// per-test data so memory doesn't grow across units.
package statusmap

import (
	"sync"

	"github.com/mutmatrix/mutmatrix/internal/mutation"
)

// Map is the status table for one work unit.
type Map struct {
	mu      sync.Mutex
	order   []mutation.ID
	details map[mutation.ID]mutation.Details
	status  map[mutation.ID]mutation.DetectionStatus
	pairs   map[mutation.ID]mutation.StatusTestPair
	results bool
}

// New builds a Map with every mutation in details marked NOT_STARTED.
func New(details []mutation.Details) *Map {
	m := &Map{
		order:   make([]mutation.ID, 0, len(details)),
		details: make(map[mutation.ID]mutation.Details, len(details)),
		status:  make(map[mutation.ID]mutation.DetectionStatus, len(details)),
		pairs:   make(map[mutation.ID]mutation.StatusTestPair, len(details)),
	}
	for _, d := range details {
		m.order = append(m.order, d.ID)
		m.details[d.ID] = d
		m.status[d.ID] = mutation.NotStarted
	}

	return m
}

// SetStatus marks a single mutation's status.
func (m *Map) SetStatus(id mutation.ID, s mutation.DetectionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[id] = s
}

// SetStatuses marks many mutations with the same status at once — used
// when reconciling an exit code against every mutation still unfinished.
func (m *Map) SetStatuses(ids []mutation.ID, s mutation.DetectionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.status[id] = s
	}
}

// SetResult records the terminal StatusTestPair for a mutation and marks
// its status from the pair.
func (m *Map) SetResult(id mutation.ID, pair mutation.StatusTestPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[id] = pair
	m.status[id] = pair.Status
}

// GetUnrun returns, in insertion order, every mutation still
// NOT_STARTED.
func (m *Map) GetUnrun() []mutation.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filterLocked(func(s mutation.DetectionStatus) bool { return s == mutation.NotStarted })
}

// GetUnfinished returns, in insertion order, every mutation not yet in a
// terminal status (NOT_STARTED or STARTED).
func (m *Map) GetUnfinished() []mutation.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filterLocked(func(s mutation.DetectionStatus) bool { return !s.IsTerminal() })
}

func (m *Map) filterLocked(keep func(mutation.DetectionStatus) bool) []mutation.ID {
	var out []mutation.ID
	for _, id := range m.order {
		if keep(m.status[id]) {
			out = append(out, id)
		}
	}

	return out
}

// MarkUncovered assigns NO_COVERAGE to every mutation whose covering-test
// list is empty. Only called in normal mode; research mode skips this
// step entirely since every surviving mutation there must be executed.
func (m *Map) MarkUncovered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		d := m.details[id]
		if len(d.CoveringTests) == 0 {
			m.status[id] = mutation.NoCoverage
		}
	}
}

// CreateResults snapshots the map into a []mutation.Result, ordered by
// insertion. It does not clear any per-test outcome data; the controller
// does that afterwards with a separate ClearAfterReporting call.
func (m *Map) CreateResults() []mutation.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = true

	out := make([]mutation.Result, 0, len(m.order))
	for _, id := range m.order {
		pair, ok := m.pairs[id]
		if !ok {
			pair = mutation.StatusTestPair{Status: m.status[id]}
		}
		out = append(out, mutation.Result{Details: m.details[id], Pair: pair})
	}

	return out
}

// ClearAfterReporting drops every detailed per-test outcome list from
// the map, bounding memory before the next unit begins. Safe to call
// only after CreateResults has emitted a snapshot.
func (m *Map) ClearAfterReporting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, pair := range m.pairs {
		pair.Clear()
		m.pairs[id] = pair
	}
}

// Len returns the number of mutations tracked by this map.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.order)
}
