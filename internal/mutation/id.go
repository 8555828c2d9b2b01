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

// Package mutation holds the identity and outcome types shared by the
// coverage collector, the worker protocol and the result aggregator.
package mutation

import "fmt"

// ID is the stable identity of a single transformation site.
//
// It is serializable and is built so two runs over the same source tree
// produce the same ID for the same site: package import path, enclosing
// function signature, mutator tag and an ordinal disambiguating multiple
// mutable sites on one line.
type ID struct {
	Package    string
	File       string
	Func       string
	MutatorTag string
	Line       int
	Ordinal    int
}

// String renders the ID the way it is persisted in the matrix CSV and
// logged by the controller.
func (id ID) String() string {
	return fmt.Sprintf("%s:%s:%d:%s#%d", id.Package, id.File, id.Line, id.MutatorTag, id.Ordinal)
}

// ClassLine is the "(package, line)" identity used by coverage-derived
// filtering. It is distinct from ID because filtering must never be
// decided by file or package alone.
type ClassLine struct {
	Package string
	Line    int
}

// String renders as "Package:Line", the exact form used in
// Baseline.FailingTestLines.
func (cl ClassLine) String() string {
	return fmt.Sprintf("%s:%d", cl.Package, cl.Line)
}

// Details is the immutable identity of one mutation candidate, as
// produced by the (out-of-core) mutation-generation engine.
type Details struct {
	ID ID

	// Package is the dotted/slashed import path of the enclosing package.
	Package string

	// File is the source file, relative to the module root.
	File string

	// Line is the 1-based source line of the mutation site.
	Line int

	// CoveringTests is the ordered list of tests statically recorded, by
	// the baseline coverage collector, as covering this (package, line).
	// Populated once, at construction, and never mutated afterwards.
	CoveringTests []string
}

// ClassLine returns the (package, line) identity used by the failing-line
// filter and by the NO_COVERAGE invariant checks.
func (d Details) ClassLine() ClassLine {
	return ClassLine{Package: d.Package, Line: d.Line}
}
