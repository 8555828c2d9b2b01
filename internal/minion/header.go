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

// Package minion is the Worker (§2, §4.5): a subprocess that loads the
// target program, reads the work plan, and executes the per-mutant
// protocol, writing framed results back over stdout.
package minion

import (
	"encoding/json"
	"io"
	"time"

	"github.com/mutmatrix/mutmatrix/internal/mutation"
)

// Header is the unit bootstrap payload a controller writes to a
// minion's stdin before reading any result frames, per §4.5 step 1.
type Header struct {
	// Package is the import path under analysis.
	Package string
	// Dir is this worker's private copy of the module root, populated
	// by the controller's workdir.Dealer.
	Dir string
	// Mutations are processed strictly in order.
	Mutations []mutation.Details
	// Tests is the candidate test-class set: every discovered test in
	// research mode, or only the statically-covering tests in normal
	// mode (already resolved by the partitioner, §4.3).
	Tests []string
	// ResearchMode gates baseline-within-worker, all-tests-per-mutant,
	// and the no-early-exit rule of §4.5.
	ResearchMode bool
	// PerMutationTimeout bounds the wall-clock budget across all tests
	// run for one mutation (§5).
	PerMutationTimeout time.Duration
}

// WriteHeader encodes h as JSON to w, terminated by a newline so the
// reading side can use bufio.Scanner.
func WriteHeader(w io.Writer, h Header) error {
	enc := json.NewEncoder(w)

	return enc.Encode(h)
}

// ReadHeader decodes one JSON-encoded Header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	dec := json.NewDecoder(r)
	err := dec.Decode(&h)

	return h, err
}
