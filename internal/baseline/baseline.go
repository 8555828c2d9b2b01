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

// Package baseline holds the immutable, run-wide result of the
// unmodified-program test execution: which tests originally failed, and
// which (package, line) pairs those failing tests executed.
//
// A Baseline is built exactly once per run, before any mutation runs, and
// is never mutated afterwards. It is passed explicitly to the failing-line
// filter and to each worker rather than kept as package-level state, so
// that tests can construct and tear down independent Baselines.
package baseline

import "github.com/mutmatrix/mutmatrix/internal/mutation"

// Baseline is the process-wide, read-only-after-build baseline of a run.
type Baseline struct {
	failingTests     map[string]struct{}
	failingTestLines map[mutation.ClassLine]struct{}
}

// Builder accumulates baseline facts while the coverage collector walks
// the unmodified test suite, then produces an immutable Baseline.
type Builder struct {
	failingTests     map[string]struct{}
	failingTestLines map[mutation.ClassLine]struct{}
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		failingTests:     make(map[string]struct{}),
		failingTestLines: make(map[mutation.ClassLine]struct{}),
	}
}

// RecordTest records one test's baseline outcome. passed=false marks the
// test as originally failing; visited is the set of (package, line) pairs
// that test's coverage reported as entered. Only failing tests contribute
// to FailingTestLines, per the spec's projection-of-visited-blocks rule.
func (b *Builder) RecordTest(testName string, passed bool, visited []mutation.ClassLine) {
	if passed {
		return
	}
	b.failingTests[testName] = struct{}{}
	for _, cl := range visited {
		b.failingTestLines[cl] = struct{}{}
	}
}

// Build freezes the accumulated facts into an immutable Baseline.
func (b *Builder) Build() Baseline {
	ft := make(map[string]struct{}, len(b.failingTests))
	for k := range b.failingTests {
		ft[k] = struct{}{}
	}
	ftl := make(map[mutation.ClassLine]struct{}, len(b.failingTestLines))
	for k := range b.failingTestLines {
		ftl[k] = struct{}{}
	}

	return Baseline{failingTests: ft, failingTestLines: ftl}
}

// IsFailing reports whether testName did not pass on the unmodified
// program.
func (bl Baseline) IsFailing(testName string) bool {
	_, ok := bl.failingTests[testName]

	return ok
}

// Passed is the baseline's own per-test verdict (the B[test] in the
// detection rule): true unless the test is recorded as originally
// failing.
func (bl Baseline) Passed(testName string) bool {
	return !bl.IsFailing(testName)
}

// HasFailingLine reports whether cl was executed by at least one
// originally-failing test.
func (bl Baseline) HasFailingLine(cl mutation.ClassLine) bool {
	_, ok := bl.failingTestLines[cl]

	return ok
}

// FailingTestLinesEmpty reports whether the failing-line set is empty,
// the condition under which the failing-line filter must conservatively
// retain everything rather than drop everything.
func (bl Baseline) FailingTestLinesEmpty() bool {
	return len(bl.failingTestLines) == 0
}

// FailingTests returns a copy of the qualified names of originally
// failing tests.
func (bl Baseline) FailingTests() []string {
	out := make([]string, 0, len(bl.failingTests))
	for t := range bl.failingTests {
		out = append(out, t)
	}

	return out
}
