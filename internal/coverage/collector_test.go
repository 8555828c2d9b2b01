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

package coverage_test

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/mutmatrix/mutmatrix/internal/coverage"
	"github.com/mutmatrix/mutmatrix/internal/testdiscovery"
)

// fakeExecContext spawns this same test binary re-entered as the
// TestFakeCoverageProcess helper, writing canned `go test -json` output
// to stdout, exactly the technique the teacher uses in
// internal/engine/executor_test.go style fakes.
func fakeExecContext(scripted string) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestFakeCoverageProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_SCRIPT=" + scripted}

		return cmd
	}
}

func TestFakeCoverageProcess(_ *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Stdout.WriteString(os.Getenv("HELPER_SCRIPT")) //nolint:errcheck
	os.Exit(0)
}

func TestCollectorRunRecordsPassAndFail(t *testing.T) {
	passEvent := `{"Action":"run","Test":"TestAdd"}
{"Action":"pass","Test":"TestAdd","Elapsed":0.002}
`
	failEvent := `{"Action":"run","Test":"TestDiv"}
{"Action":"output","Test":"TestDiv","Output":"division by zero\n"}
{"Action":"fail","Test":"TestDiv","Elapsed":0.001}
`

	units := []testdiscovery.Unit{
		{Package: "./...", Name: "TestAdd"},
		{Package: "./...", Name: "TestDiv"},
	}

	callCount := 0
	scripts := []string{passEvent, failEvent}

	c := coverage.NewCollector(t.TempDir())
	c.AllowRedBaseline = true
	// Swap execContext per-call so each unit gets its own scripted output.
	c.SetExecContextForTest(func(ctx context.Context, name string, args ...string) *exec.Cmd {
		script := scripts[callCount%len(scripts)]
		callCount++

		return fakeExecContext(script)(ctx, name, args...)
	})

	results, bl, err := c.Run(context.Background(), units, "./...", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Passed {
		t.Errorf("expected TestAdd to pass")
	}
	if results[1].Passed {
		t.Errorf("expected TestDiv to fail")
	}
	if !bl.IsFailing("TestDiv") {
		t.Errorf("expected baseline to record TestDiv as failing")
	}
	if bl.IsFailing("TestAdd") {
		t.Errorf("did not expect TestAdd to be recorded as failing")
	}
}

func TestCollectorAbortsOnRedBaselineWhenDisallowed(t *testing.T) {
	failEvent := `{"Action":"run","Test":"TestDiv"}
{"Action":"fail","Test":"TestDiv","Elapsed":0.001}
`
	units := []testdiscovery.Unit{{Package: "./...", Name: "TestDiv"}}

	c := coverage.NewCollector(t.TempDir())
	c.AllowRedBaseline = false
	c.SetExecContextForTest(fakeExecContext(failEvent))

	_, _, err := c.Run(context.Background(), units, "./...", time.Second)
	if err == nil || !strings.Contains(err.Error(), "not permitted") {
		t.Fatalf("expected red-baseline error, got %v", err)
	}
}
