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

package statusmap_test

import (
	"testing"

	"github.com/mutmatrix/mutmatrix/internal/mutation"
	"github.com/mutmatrix/mutmatrix/internal/statusmap"
)

func details(n int, covering []string) []mutation.Details {
	out := make([]mutation.Details, n)
	for i := range out {
		out[i] = mutation.Details{
			ID:            mutation.ID{Package: "pkg", Line: i + 1, Ordinal: 0, MutatorTag: "ARITH"},
			Package:       "pkg",
			Line:          i + 1,
			CoveringTests: covering,
		}
	}

	return out
}

func TestNewMarksEverythingNotStarted(t *testing.T) {
	m := statusmap.New(details(3, []string{"t1"}))
	if got := len(m.GetUnrun()); got != 3 {
		t.Fatalf("expected 3 unrun, got %d", got)
	}
}

func TestMarkUncoveredOnlyAffectsEmptyCoverage(t *testing.T) {
	covered := mutation.Details{
		ID:            mutation.ID{Package: "pkg", Line: 3, Ordinal: 0, MutatorTag: "ARITH"},
		Package:       "pkg",
		Line:          3,
		CoveringTests: []string{"t1"},
	}
	m := statusmap.New(append(details(2, nil), covered))
	m.MarkUncovered()
	results := m.CreateResults()
	for i, r := range results {
		want := mutation.NoCoverage
		if i == 2 {
			want = mutation.NotStarted
		}
		if r.Pair.Status != want {
			t.Errorf("result %d: expected %s, got %s", i, want, r.Pair.Status)
		}
	}
}

func TestSetResultMovesOutOfUnfinished(t *testing.T) {
	ds := details(1, []string{"t1"})
	m := statusmap.New(ds)
	id := ds[0].ID

	if got := len(m.GetUnfinished()); got != 1 {
		t.Fatalf("expected 1 unfinished, got %d", got)
	}

	m.SetResult(id, mutation.StatusTestPair{Status: mutation.Killed})

	if got := len(m.GetUnfinished()); got != 0 {
		t.Fatalf("expected 0 unfinished after terminal result, got %d", got)
	}
}

func TestSetStatusesBulkReconciliation(t *testing.T) {
	ds := details(3, []string{"t1"})
	m := statusmap.New(ds)

	unrun := m.GetUnrun()
	m.SetStatuses(unrun, mutation.RunError)

	results := m.CreateResults()
	for _, r := range results {
		if r.Pair.Status != mutation.RunError {
			t.Errorf("expected RUN_ERROR, got %s", r.Pair.Status)
		}
	}
}

func TestClearAfterReportingDropsOutcomes(t *testing.T) {
	ds := details(1, []string{"t1"})
	m := statusmap.New(ds)
	id := ds[0].ID
	m.SetResult(id, mutation.StatusTestPair{
		Status:       mutation.Killed,
		TestOutcomes: []mutation.TestOutcome{mutation.NewPassedOutcome("t1", 1)},
	})

	results := m.CreateResults()
	if len(results[0].Pair.TestOutcomes) != 1 {
		t.Fatalf("expected one outcome before clear")
	}

	m.ClearAfterReporting()

	results = m.CreateResults()
	if len(results[0].Pair.TestOutcomes) != 0 {
		t.Errorf("expected outcomes cleared, got %v", results[0].Pair.TestOutcomes)
	}
}
