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

package configuration_test

import (
	"testing"

	"github.com/mutmatrix/mutmatrix/internal/configuration"
)

type envEntry struct {
	name  string
	value string
}

func TestConfiguration(t *testing.T) {
	testCases := []struct {
		wantedConfig map[string]interface{}
		name         string
		configPaths  []string
		envEntries   []envEntry
	}{
		{
			name:        "from cfg dir",
			configPaths: []string{"./testdata/config1"},
			wantedConfig: map[string]interface{}{
				configuration.FullMatrixResearchModeKey: true,
				configuration.RunTagsKey:                "tag1,tag2,tag3",
			},
		},
		{
			name: "from env",
			envEntries: []envEntry{
				{name: "MUTMATRIX_RUN_FULL_MATRIX_RESEARCH_MODE", value: "true"},
				{name: "MUTMATRIX_RUN_TAGS", value: "tag1,tag2,tag3"},
			},
			wantedConfig: map[string]interface{}{
				configuration.FullMatrixResearchModeKey: "true",
				configuration.RunTagsKey:                "tag1,tag2,tag3",
			},
		},
		{
			name: "env overrides file",
			envEntries: []envEntry{
				{name: "MUTMATRIX_RUN_TAGS", value: "tagenv"},
			},
			configPaths: []string{"./testdata/config1"},
			wantedConfig: map[string]interface{}{
				configuration.RunTagsKey: "tagenv",
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			defer configuration.Reset()
			for _, e := range tc.envEntries {
				t.Setenv(e.name, e.value)
			}

			if err := configuration.Init(tc.configPaths); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for key, wanted := range tc.wantedConfig {
				got := configuration.Get[any](key)
				if got != wanted {
					t.Errorf("key %q: got %v, want %v", key, got, wanted)
				}
			}
		})
	}
}

func TestSetAndGetAreSynchronised(t *testing.T) {
	defer configuration.Reset()
	configuration.Set(configuration.ResearchUnitSizeKey, 25)

	if got := configuration.Get[int](configuration.ResearchUnitSizeKey); got != 25 {
		t.Errorf("got %d, want 25", got)
	}
}
