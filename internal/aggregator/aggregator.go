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

// Package aggregator is the Result Aggregator (§4.8): it merges the
// per-unit results produced across every worker controller invocation
// into one deterministically ordered matrix and derives the summary
// statistics a report listener needs. It adapts the teacher's
// internal/report.Results/newReport shape (collect a flat slice, derive
// stats by switching on status) generalized from a single in-process
// tally to a merge across many work units.
package aggregator

import (
	"sort"
	"time"

	"github.com/mutmatrix/mutmatrix/internal/execution"
	"github.com/mutmatrix/mutmatrix/internal/mutation"
)

// Summary holds the counts and derived percentages the teacher's
// reportStatus computes, generalized over the nine-way DetectionStatus.
type Summary struct {
	Module  string
	Elapsed time.Duration

	Killed     int
	Survived   int
	NoCoverage int
	TimedOut   int
	MemoryErr  int
	RunErr     int
	NonViable  int

	// TestEfficacy is killed / (killed + survived) * 100, 0 when no
	// mutation ever reached one of those two statuses; this is the
	// "mutation score" statistic.
	TestEfficacy float64
	// MutantCoverage is (killed+survived) / (killed+survived+noCoverage)
	// * 100.
	MutantCoverage float64
}

// Matrix is the Result Aggregator's output: the full set of results in
// their canonical (Package, Line, MutatorTag, Ordinal) order, plus the
// derived Summary.
type Matrix struct {
	Module  string
	Results []mutation.Result
	Summary Summary
}

// Merge combines results from every unit into one Matrix, sorted per
// mutation.Less so a CSV/YAML writer and any test asserting on the
// matrix see a stable order regardless of unit completion order.
func Merge(module string, elapsed time.Duration, results []mutation.Result) Matrix {
	merged := make([]mutation.Result, len(results))
	copy(merged, results)
	sort.Slice(merged, func(i, j int) bool {
		return mutation.Less(merged[i], merged[j])
	})

	return Matrix{
		Module:  module,
		Results: merged,
		Summary: summarize(module, elapsed, merged),
	}
}

func summarize(module string, elapsed time.Duration, results []mutation.Result) Summary {
	s := Summary{Module: module, Elapsed: elapsed}
	for _, r := range results {
		switch r.Pair.Status {
		case mutation.Killed:
			s.Killed++
		case mutation.Survived:
			s.Survived++
		case mutation.NoCoverage:
			s.NoCoverage++
		case mutation.TimedOut:
			s.TimedOut++
		case mutation.MemoryError:
			s.MemoryErr++
		case mutation.RunError:
			s.RunErr++
		case mutation.NonViable:
			s.NonViable++
		}
	}

	if s.Killed+s.Survived > 0 {
		s.TestEfficacy = float64(s.Killed) / float64(s.Killed+s.Survived) * 100
	}
	if s.Killed+s.Survived+s.NoCoverage > 0 {
		s.MutantCoverage = float64(s.Killed+s.Survived) / float64(s.Killed+s.Survived+s.NoCoverage) * 100
	}

	return s
}

// Assess checks the Summary against the configured thresholds, mirroring
// the teacher's reportStatus.assess: an EfficacyThreshold or
// MutantCoverageThreshold exit error is returned if the corresponding
// statistic is at or below its threshold. A threshold of 0 disables the
// corresponding check.
func Assess(s Summary, efficacyThreshold, coverageThreshold float64) error {
	if efficacyThreshold > 0 && s.TestEfficacy <= efficacyThreshold {
		return execution.NewExitErr(execution.EfficacyThreshold)
	}
	if coverageThreshold > 0 && s.MutantCoverage <= coverageThreshold {
		return execution.NewExitErr(execution.MutantCoverageThreshold)
	}

	return nil
}
