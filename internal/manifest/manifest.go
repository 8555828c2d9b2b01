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

// Package manifest is the seam between the (out-of-core, non-goal)
// mutation-generation engine and the run command: it loads the JSON
// array of mutation.Details a generator produced on disk, so the CLI has
// something concrete to feed the interceptor pipeline. No generator
// ships with this module; callers point --mutations at a file built by
// one.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mutmatrix/mutmatrix/internal/mutation"
)

// Load reads and decodes the JSON array of mutation.Details at path.
func Load(path string) ([]mutation.Details, error) {
	b, err := os.ReadFile(path) //nolint:gosec // path is an operator-supplied CLI flag
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}

	var details []mutation.Details
	if err := json.Unmarshal(b, &details); err != nil {
		return nil, fmt.Errorf("manifest: decode %s: %w", path, err)
	}

	return details, nil
}
