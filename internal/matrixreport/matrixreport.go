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

// Package matrixreport writes the on-disk report for a full run: a
// per-(mutation, test) CSV matrix and an optional YAML run summary. It
// replaces the teacher's internal/report/internal single-JSON-summary
// shape with the (mutant x test) matrix the full-matrix research mode
// requires, while keeping the YAML summary as the analogous
// at-a-glance run statistics the teacher's JSON output served.
package matrixreport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mutmatrix/mutmatrix/internal/aggregator"
	"github.com/mutmatrix/mutmatrix/internal/baseline"
	"github.com/mutmatrix/mutmatrix/internal/mutation"
)

var csvHeader = []string{
	"mutationId", "className", "method", "lineNumber", "mutator",
	"testName", "originallyPassed", "mutantPassed", "killer",
	"elapsedMs", "exceptionType", "exceptionMessage", "stackTrace",
}

// WriteCSV writes one row per (mutation, test) pair across every result
// in m, in m's existing order (callers pass an aggregator.Matrix, whose
// Results are already sorted by mutation.Less). A mutation with no
// recorded per-test outcomes — NO_COVERAGE, NON_VIABLE, TIMED_OUT — still
// gets exactly one row, with the test-specific columns filled with the
// mutation.None placeholder, so the invariant "no mutation is silently
// dropped" holds at the CSV level too.
func WriteCSV(w io.Writer, bl baseline.Baseline, results []mutation.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("matrixreport: write header: %w", err)
	}

	for _, r := range results {
		rows := rowsFor(bl, r)
		for _, row := range rows {
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("matrixreport: write row: %w", err)
			}
		}
	}

	cw.Flush()

	return cw.Error()
}

func rowsFor(bl baseline.Baseline, r mutation.Result) [][]string {
	identity := []string{
		r.Details.ID.String(),
		r.Details.Package,
		r.Details.ID.Func,
		strconv.Itoa(r.Details.Line),
		r.Details.ID.MutatorTag,
	}

	if len(r.Pair.TestOutcomes) == 0 {
		return [][]string{append(append([]string{}, identity...), placeholderRow()...)}
	}

	killers := toSet(r.Pair.KillingTests)
	rows := make([][]string, 0, len(r.Pair.TestOutcomes))
	for _, o := range r.Pair.TestOutcomes {
		_, isKiller := killers[o.TestName]
		rows = append(rows, append(append([]string{}, identity...), []string{
			o.TestName,
			strconv.FormatBool(bl.Passed(o.TestName)),
			strconv.FormatBool(o.Passed),
			strconv.FormatBool(isKiller),
			strconv.FormatFloat(o.ElapsedMs, 'f', -1, 64),
			o.ExceptionType,
			o.Message,
			o.StackTrace,
		}...))
	}

	return rows
}

func placeholderRow() []string {
	return []string{
		mutation.None, mutation.None, mutation.None, mutation.None,
		mutation.None, mutation.None, mutation.None, mutation.None,
	}
}

func toSet(ss []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		out[s] = struct{}{}
	}

	return out
}

// Summary is the YAML document written alongside the CSV matrix: the
// at-a-glance run statistics the teacher's JSON report carried, in the
// domain-stack's chosen serialization.
type Summary struct {
	Module             string  `yaml:"module"`
	ElapsedSeconds     float64 `yaml:"elapsedSeconds"`
	MutantsTotal       int     `yaml:"mutantsTotal"`
	MutantsKilled      int     `yaml:"mutantsKilled"`
	MutantsSurvived    int     `yaml:"mutantsSurvived"`
	MutantsNoCoverage  int     `yaml:"mutantsNoCoverage"`
	MutantsTimedOut    int     `yaml:"mutantsTimedOut"`
	MutantsMemoryError int     `yaml:"mutantsMemoryError"`
	MutantsRunError    int     `yaml:"mutantsRunError"`
	MutantsNonViable   int     `yaml:"mutantsNonViable"`
	TestEfficacy       float64 `yaml:"testEfficacy"`
	MutantCoverage     float64 `yaml:"mutantCoverage"`
}

// SummaryFrom projects an aggregator.Matrix into the YAML summary shape.
func SummaryFrom(m aggregator.Matrix) Summary {
	s := m.Summary
	total := s.Killed + s.Survived + s.NoCoverage + s.TimedOut + s.MemoryErr + s.RunErr + s.NonViable

	return Summary{
		Module:             m.Module,
		ElapsedSeconds:     s.Elapsed.Seconds(),
		MutantsTotal:       total,
		MutantsKilled:      s.Killed,
		MutantsSurvived:    s.Survived,
		MutantsNoCoverage:  s.NoCoverage,
		MutantsTimedOut:    s.TimedOut,
		MutantsMemoryError: s.MemoryErr,
		MutantsRunError:    s.RunErr,
		MutantsNonViable:   s.NonViable,
		TestEfficacy:       s.TestEfficacy,
		MutantCoverage:     s.MutantCoverage,
	}
}

// WriteYAMLSummary marshals m's run summary to w.
func WriteYAMLSummary(w io.Writer, m aggregator.Matrix) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	if err := enc.Encode(SummaryFrom(m)); err != nil {
		return fmt.Errorf("matrixreport: encode summary: %w", err)
	}

	return nil
}
