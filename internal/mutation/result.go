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

package mutation

// Result pairs a mutation's immutable identity with its final outcome,
// the shape the Result Aggregator emits to report listeners.
type Result struct {
	Details Details
	Pair    StatusTestPair
}

// Less orders results deterministically by (package, line, mutator tag,
// ordinal), the order the aggregator and the CSV writer both rely on.
func Less(a, b Result) bool {
	if a.Details.Package != b.Details.Package {
		return a.Details.Package < b.Details.Package
	}
	if a.Details.Line != b.Details.Line {
		return a.Details.Line < b.Details.Line
	}
	if a.Details.ID.MutatorTag != b.Details.ID.MutatorTag {
		return a.Details.ID.MutatorTag < b.Details.ID.MutatorTag
	}

	return a.Details.ID.Ordinal < b.Details.ID.Ordinal
}
