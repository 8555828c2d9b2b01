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

// Package detect implements the baseline-aware detection rule: the pure
// function that turns a mutant's per-test outcomes, plus the run's
// Baseline, into a final mutation.DetectionStatus.
//
// This subsumes the classic PIT rule (which assumes every baseline test
// passes): running the same code path with every baseline outcome forced
// to "passed" degenerates exactly to "any test now failing kills the
// mutant", the normal-mode behavior.
package detect

import (
	"sort"

	"github.com/mutmatrix/mutmatrix/internal/baseline"
	"github.com/mutmatrix/mutmatrix/internal/mutation"
)

// Rule evaluates the outcomes of one mutant's test run against a
// Baseline and produces the StatusTestPair the spec requires.
//
// outcomes must be in discovery order; the killer list preserves that
// order.
func Rule(bl baseline.Baseline, outcomes []mutation.TestOutcome, coveringTests []string) mutation.StatusTestPair {
	pair := mutation.StatusTestPair{
		NumberOfTestsRun: len(outcomes),
		CoveringTests:    coveringTests,
		TestOutcomes:     outcomes,
	}

	if len(outcomes) == 0 {
		pair.Status = mutation.NoCoverage

		return pair
	}

	for _, o := range outcomes {
		if isKiller(bl, o) {
			pair.KillingTests = append(pair.KillingTests, o.TestName)
		} else {
			pair.SucceedingTests = append(pair.SucceedingTests, o.TestName)
		}
	}

	if len(pair.KillingTests) > 0 {
		pair.Status = mutation.Killed
	} else {
		pair.Status = mutation.Survived
	}

	return pair
}

// isKiller implements: a test is a killer iff its baseline verdict
// disagrees with its mutant verdict.
func isKiller(bl baseline.Baseline, o mutation.TestOutcome) bool {
	return bl.Passed(o.TestName) != o.Passed
}

// SortKillers returns a copy of names sorted for deterministic display;
// the discovery order used by Rule is authoritative for the killer list
// itself, this helper is only used by reporters that want a stable,
// independently-sortable view.
func SortKillers(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)

	return out
}
