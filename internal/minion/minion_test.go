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

package minion_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mutmatrix/mutmatrix/internal/minion"
	"github.com/mutmatrix/mutmatrix/internal/mutation"
	"github.com/mutmatrix/mutmatrix/internal/protocol"
)

// scriptedExecContext answers "go build" with a scripted exit code and
// "go test" with scripted -json output, mirroring the re-exec fake used
// by internal/coverage.
func scriptedExecContext(buildFails bool, testEvents string) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		var script string
		if len(args) > 0 && args[0] == "build" {
			if buildFails {
				script = "FAIL_BUILD"
			}
		} else {
			script = testEvents
		}

		cs := []string{"-test.run=TestFakeMinionProcess", "--"}
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_SCRIPT=" + script}

		return cmd
	}
}

func TestFakeMinionProcess(_ *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	script := os.Getenv("HELPER_SCRIPT")
	if script == "FAIL_BUILD" {
		os.Stderr.WriteString("syntax error")
		os.Exit(1)
	}
	os.Stdout.WriteString(script) //nolint:errcheck
	os.Exit(0)
}

func writeSource(t *testing.T, dir, file, content string) {
	t.Helper()
	full := filepath.Join(dir, file)
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestWorkerRunEmitsKilledOnFailingTest(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "add.go", "package p\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n")

	var buf bytes.Buffer
	w := minion.NewWorker(protocol.NewWriter(&buf))
	w.ExecContext = scriptedExecContext(false, `{"Action":"run","Test":"TestAdd"}
{"Action":"fail","Test":"TestAdd","Elapsed":0.001}
`)

	h := minion.Header{
		Package: "./...",
		Dir:     dir,
		Mutations: []mutation.Details{
			{ID: mutation.ID{Package: "p", Line: 4, MutatorTag: "ARITHMETIC_BASE_ADD"}, Package: "p", File: "add.go", Line: 4, CoveringTests: []string{"TestAdd"}},
		},
		PerMutationTimeout: time.Second,
	}

	if err := w.Run(context.Background(), h); err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := protocol.NewReader(&buf)
	started, err := r.ReadFrame()
	if err != nil || started.Tag != protocol.TagMutationStarted {
		t.Fatalf("expected MUTATION_STARTED frame, got %v err=%v", started, err)
	}
	result, err := r.ReadFrame()
	if err != nil || result.Tag != protocol.TagMutationResult {
		t.Fatalf("expected MUTATION_RESULT frame, got %v err=%v", result, err)
	}
	payload, err := protocol.DecodeMutationResult(result)
	if err != nil {
		t.Fatalf("DecodeMutationResult: %v", err)
	}
	if payload.Status != mutation.Killed {
		t.Errorf("expected KILLED, got %s", payload.Status)
	}

	// The original source must be restored after rollback.
	restored, err := os.ReadFile(filepath.Join(dir, "add.go"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(restored), "a + b") {
		t.Errorf("expected original source restored, got:\n%s", restored)
	}
}

func TestWorkerRunEmitsNonViableOnBuildFailure(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "add.go", "package p\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n")

	var buf bytes.Buffer
	w := minion.NewWorker(protocol.NewWriter(&buf))
	w.ExecContext = scriptedExecContext(true, "")

	h := minion.Header{
		Package: "./...",
		Dir:     dir,
		Mutations: []mutation.Details{
			{ID: mutation.ID{Package: "p", Line: 4, MutatorTag: "ARITHMETIC_BASE_ADD"}, Package: "p", File: "add.go", Line: 4, CoveringTests: []string{"TestAdd"}},
		},
		PerMutationTimeout: time.Second,
	}

	if err := w.Run(context.Background(), h); err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := protocol.NewReader(&buf)
	_, _ = r.ReadFrame() // MUTATION_STARTED
	result, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	payload, err := protocol.DecodeMutationResult(result)
	if err != nil {
		t.Fatalf("DecodeMutationResult: %v", err)
	}
	if payload.Status != mutation.NonViable {
		t.Errorf("expected NON_VIABLE, got %s", payload.Status)
	}
	if payload.Pair.NumberOfTestsRun != 0 {
		t.Errorf("expected zero tests run for a non-viable mutant, got %d", payload.Pair.NumberOfTestsRun)
	}
}

func TestWorkerRunEmitsNoCoverageWhenNoCoveringTests(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "add.go", "package p\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n")

	var buf bytes.Buffer
	w := minion.NewWorker(protocol.NewWriter(&buf))
	w.ExecContext = scriptedExecContext(false, "")

	h := minion.Header{
		Package: "./...",
		Dir:     dir,
		Mutations: []mutation.Details{
			{ID: mutation.ID{Package: "p", Line: 4, MutatorTag: "ARITHMETIC_BASE_ADD"}, Package: "p", File: "add.go", Line: 4},
		},
		PerMutationTimeout: time.Second,
	}

	if err := w.Run(context.Background(), h); err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := protocol.NewReader(&buf)
	_, _ = r.ReadFrame()
	result, _ := r.ReadFrame()
	payload, err := protocol.DecodeMutationResult(result)
	if err != nil {
		t.Fatalf("DecodeMutationResult: %v", err)
	}
	if payload.Status != mutation.NoCoverage {
		t.Errorf("expected NO_COVERAGE, got %s", payload.Status)
	}
}
