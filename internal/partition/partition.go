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

// Package partition groups a package's filtered mutations into bounded
// work units, per §4.3: at most unitSize mutations of one package per
// unit (0 means unbounded), and attaches the test-class set each unit
// should run.
package partition

import "github.com/mutmatrix/mutmatrix/internal/mutation"

// Unit is one unit of work handed to a controller/worker pair: a bounded
// slice of mutations, all belonging to the same package, plus the set of
// test names the worker should run against them.
type Unit struct {
	Package   string
	Mutations []mutation.Details
	Tests     []string
}

// Mode picks which test-class set a unit carries, per §4.3.
type Mode int

const (
	// Normal carries only the statically-covering tests of the unit's
	// mutations.
	Normal Mode = iota
	// Research carries the full project test-class set, so the
	// baseline-aware rule can observe every test against every mutant.
	Research
)

// Build partitions mutations (already grouped by package by the caller)
// into units of at most unitSize mutations each (0 means unbounded), in
// the order mutations are given. allTests is the full project test-class
// set, used verbatim in Research mode.
func Build(mode Mode, unitSize int, mutations []mutation.Details, allTests []string) []Unit {
	if len(mutations) == 0 {
		return nil
	}

	var units []Unit
	byPackage := groupByPackage(mutations)
	for _, pkg := range byPackage.order {
		ms := byPackage.byPkg[pkg]
		for _, chunk := range chunk(ms, unitSize) {
			units = append(units, Unit{
				Package:   pkg,
				Mutations: chunk,
				Tests:     testsFor(mode, chunk, allTests),
			})
		}
	}

	return units
}

func testsFor(mode Mode, mutations []mutation.Details, allTests []string) []string {
	if mode == Research {
		return allTests
	}

	seen := make(map[string]struct{})
	var out []string
	for _, m := range mutations {
		for _, t := range m.CoveringTests {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}

	return out
}

type grouped struct {
	order []string
	byPkg map[string][]mutation.Details
}

func groupByPackage(mutations []mutation.Details) grouped {
	g := grouped{byPkg: make(map[string][]mutation.Details)}
	for _, m := range mutations {
		if _, ok := g.byPkg[m.Package]; !ok {
			g.order = append(g.order, m.Package)
		}
		g.byPkg[m.Package] = append(g.byPkg[m.Package], m)
	}

	return g
}

// chunk splits ms into groups of at most size, preserving order; size <= 0
// means unbounded (a single chunk).
func chunk(ms []mutation.Details, size int) [][]mutation.Details {
	if size <= 0 || len(ms) <= size {
		return [][]mutation.Details{ms}
	}

	var out [][]mutation.Details
	for start := 0; start < len(ms); start += size {
		end := start + size
		if end > len(ms) {
			end = len(ms)
		}
		out = append(out, ms[start:end])
	}

	return out
}
