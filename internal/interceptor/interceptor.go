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

// Package interceptor models the mutation interceptor pipeline: an
// ordered chain of narrowing steps applied to the raw mutation set
// produced by the (out-of-core) mutation-generation engine, generalizing
// gremlins' exclusion.Rules (a similarly-shaped "narrow the candidate
// set by file path" contract) into the tagged-variant contract spec §9
// asks for.
package interceptor

import "github.com/mutmatrix/mutmatrix/internal/mutation"

// Kind tags what an Interceptor does, so the pipeline and its logging
// can describe what changed at each step without type-switching on the
// concrete implementation.
type Kind int

const (
	// Filter narrows the mutation set (e.g. the failing-line filter).
	Filter Kind = iota
	// Other is a catch-all for interceptors that neither filter nor
	// re-weigh (e.g. annotation or tagging passes).
	Other
	// CostFactor re-weighs mutations for scheduling purposes without
	// removing any of them.
	CostFactor
)

// Interceptor is a single pipeline stage: (package, mutations) →
// mutations.
type Interceptor interface {
	Kind() Kind
	Begin(pkg string)
	Intercept(mutations []mutation.Details) []mutation.Details
	End()
}

// Pipeline is an ordered chain of Interceptors. Running it is a fold
// over the raw mutation set.
type Pipeline struct {
	stages []Interceptor
}

// New builds a Pipeline from the given stages, applied in order.
func New(stages ...Interceptor) *Pipeline {
	return &Pipeline{stages: stages}
}

// Run folds every stage over mutations for the package pkg.
func (p *Pipeline) Run(pkg string, mutations []mutation.Details) []mutation.Details {
	for _, s := range p.stages {
		s.Begin(pkg)
		mutations = s.Intercept(mutations)
		s.End()
	}

	return mutations
}
