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

package interceptor

import (
	"github.com/mutmatrix/mutmatrix/internal/baseline"
	"github.com/mutmatrix/mutmatrix/internal/log"
	"github.com/mutmatrix/mutmatrix/internal/mutation"
)

// FailingLineFilter is a FILTER-kind Interceptor that, in research mode,
// retains only mutations whose (package, line) was executed by at least
// one originally-failing test. Outside research mode it is a no-op
// passthrough.
//
// The open question in spec §9 (lazy per-Begin baseline load vs. a
// one-time load) is resolved here in favor of loading once: the Baseline
// is immutable for the lifetime of a run, so there is nothing to gain
// from re-reading it on every Begin.
type FailingLineFilter struct {
	researchMode bool
	bl           baseline.Baseline
	warned       bool
}

// NewFailingLineFilter builds the filter bound to bl. researchMode gates
// whether it actually filters or passes everything through.
func NewFailingLineFilter(bl baseline.Baseline, researchMode bool) *FailingLineFilter {
	return &FailingLineFilter{bl: bl, researchMode: researchMode}
}

// Kind reports this interceptor narrows the set.
func (f *FailingLineFilter) Kind() Kind { return Filter }

// Begin is a no-op: the baseline is loaded once, at construction.
func (f *FailingLineFilter) Begin(_ string) {}

// Intercept keeps every mutation in normal mode, and in research mode
// keeps only mutations on a failing line — unless the failing-line set
// is empty, in which case it conservatively keeps everything and warns
// once, rather than silently dropping the whole candidate set.
func (f *FailingLineFilter) Intercept(mutations []mutation.Details) []mutation.Details {
	if !f.researchMode {
		return mutations
	}

	if f.bl.FailingTestLinesEmpty() {
		if !f.warned {
			log.Warnf("failing-test-line set is empty, retaining all mutations\n")
			f.warned = true
		}

		return mutations
	}

	out := make([]mutation.Details, 0, len(mutations))
	for _, m := range mutations {
		if f.bl.HasFailingLine(m.ClassLine()) {
			out = append(out, m)
		}
	}

	return out
}

// End clears nothing — the filter holds no local mutable baseline
// reference to release, since the baseline is a value, not a handle.
func (f *FailingLineFilter) End() {}
