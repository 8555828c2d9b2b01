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

package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/mutmatrix/mutmatrix/internal/configuration"
	"github.com/mutmatrix/mutmatrix/internal/coverage"
	"github.com/mutmatrix/mutmatrix/internal/mutation"
)

func TestRunCmdRegistersFlags(t *testing.T) {
	c, err := newRunCmd(context.Background())
	if err != nil {
		t.Fatal("newRunCmd should not fail")
	}
	cmd := c.cmd

	if cmd.Name() != "run" {
		t.Errorf("expected %q, got %q", "run", cmd.Name())
	}

	testCases := []struct {
		name      string
		shorthand string
		flagType  string
		defValue  string
	}{
		{name: paramMutations, flagType: "string", defValue: ""},
		{name: paramOutput, shorthand: "o", flagType: "string", defValue: ""},
		{name: paramResearch, flagType: "bool", defValue: "false"},
		{name: paramThreads, flagType: "int", defValue: "0"},
		{name: paramUnitSize, flagType: "int", defValue: "0"},
		{name: paramTimeoutFct, flagType: "float64", defValue: "0"},
		{name: paramTimeoutCst, flagType: "int", defValue: "0"},
		{name: paramThresholdEfficacy, flagType: "float64", defValue: "0"},
		{name: paramThresholdMCoverage, flagType: "float64", defValue: "0"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := cmd.Flags().Lookup(tc.name)
			if f == nil {
				t.Fatalf("expected flag %q to be registered", tc.name)
			}
			if tc.shorthand != "" && f.Shorthand != tc.shorthand {
				t.Errorf("expected shorthand %q, got %q", tc.shorthand, f.Shorthand)
			}
			if f.Value.Type() != tc.flagType {
				t.Errorf("expected type %q, got %q", tc.flagType, f.Value.Type())
			}
			if f.DefValue != tc.defValue {
				t.Errorf("expected default %q, got %q", tc.defValue, f.DefValue)
			}
		})
	}
}

func TestAttachCoverageFillsCoveringTests(t *testing.T) {
	covResults := []coverage.Result{
		{TestName: "TestA", Visited: []mutation.ClassLine{{Package: "pkg/a", Line: 4}}},
		{TestName: "TestB", Visited: []mutation.ClassLine{{Package: "pkg/a", Line: 4}, {Package: "pkg/a", Line: 9}}},
	}
	raw := []mutation.Details{
		{ID: mutation.ID{Package: "pkg/a", Line: 4}, Package: "pkg/a", Line: 4},
		{ID: mutation.ID{Package: "pkg/a", Line: 20}, Package: "pkg/a", Line: 20},
	}

	out := attachCoverage(covResults, raw)

	if len(out[0].CoveringTests) != 2 {
		t.Fatalf("expected 2 covering tests for line 4, got %v", out[0].CoveringTests)
	}
	if len(out[1].CoveringTests) != 0 {
		t.Fatalf("expected no covering tests for an uncovered line, got %v", out[1].CoveringTests)
	}
}

func TestPerTestTimeoutAppliesDefaultsWhenUnset(t *testing.T) {
	defer configuration.Reset()
	configuration.Set(configuration.ResearchTimeoutFactorKey, float64(0))
	configuration.Set(configuration.ResearchTimeoutConstantKey, 0)

	got := perTestTimeout()
	want := time.Duration(float64(30*time.Second)*configuration.DefaultTimeoutFactor) + configuration.DefaultTimeoutConstantMs*time.Millisecond
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}
