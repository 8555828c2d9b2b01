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

package minion

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mutmatrix/mutmatrix/internal/baseline"
	"github.com/mutmatrix/mutmatrix/internal/coverage"
	"github.com/mutmatrix/mutmatrix/internal/detect"
	"github.com/mutmatrix/mutmatrix/internal/log"
	"github.com/mutmatrix/mutmatrix/internal/mutation"
	"github.com/mutmatrix/mutmatrix/internal/protocol"
	"github.com/mutmatrix/mutmatrix/internal/transform"
)

type execContext = func(ctx context.Context, name string, args ...string) *exec.Cmd

// Worker runs one unit's per-mutant loop (§4.5) inside the subprocess,
// writing framed results to Out as it goes. A unit is processed
// serially; the worker exposes no concurrency to its controller.
type Worker struct {
	ExecContext execContext
	Transformer transform.Transformer
	Out         *protocol.Writer
}

// NewWorker builds a Worker with the default exec.CommandContext and a
// fresh transform.LineSplice.
func NewWorker(out *protocol.Writer) *Worker {
	return &Worker{
		ExecContext: exec.CommandContext,
		Transformer: transform.NewLineSplice(),
		Out:         out,
	}
}

// Run executes h's per-mutant loop to completion, in order, and emits
// the unit's stream terminator at the end.
func (w *Worker) Run(ctx context.Context, h Header) error {
	bl := baseline.Baseline{}
	if h.ResearchMode {
		b, err := w.buildLocalBaseline(ctx, h)
		if err != nil {
			return fmt.Errorf("minion: baseline within worker: %w", err)
		}
		bl = b
	}

	for _, m := range h.Mutations {
		if err := w.Out.WriteFrame(protocol.TagMutationStarted, protocol.MutationStartedPayload{ID: m.ID}); err != nil {
			return err
		}

		pair := w.runOne(ctx, h, m, bl)

		if err := w.Out.WriteFrame(protocol.TagMutationResult, protocol.MutationResultPayload{
			ID:     m.ID,
			Status: pair.Status,
			Pair:   pair,
		}); err != nil {
			return err
		}
	}

	return w.Out.WriteStreamEnd()
}

func (w *Worker) runOne(ctx context.Context, h Header, m mutation.Details, bl baseline.Baseline) mutation.StatusTestPair {
	tests := m.CoveringTests
	if h.ResearchMode {
		tests = h.Tests
	}
	if len(tests) == 0 {
		return mutation.StatusTestPair{Status: mutation.NoCoverage, CoveringTests: m.CoveringTests}
	}

	target := filepath.Join(h.Dir, m.File)
	original, err := os.ReadFile(target) //nolint:gosec // path constructed from the worker's own isolated workdir
	if err != nil {
		return nonViable(m, fmt.Sprintf("read source: %v", err))
	}

	transformed, err := w.Transformer.Transform(original, m.ID)
	if err != nil {
		return nonViable(m, err.Error())
	}

	if err := os.WriteFile(target, transformed, 0o600); err != nil {
		return nonViable(m, fmt.Sprintf("install transformed source: %v", err))
	}
	defer func() {
		_ = os.WriteFile(target, original, 0o600) // rollback
	}()

	if err := w.verify(ctx, h.Dir, m.Package); err != nil {
		return nonViable(m, err.Error())
	}

	outcomes, timedOut, err := w.runTests(ctx, h.Dir, m.Package, tests, h.PerMutationTimeout, h.ResearchMode)
	if err != nil {
		return mutation.StatusTestPair{Status: mutation.RunError, CoveringTests: m.CoveringTests}
	}
	if timedOut {
		return mutation.StatusTestPair{
			Status:           mutation.TimedOut,
			NumberOfTestsRun: len(outcomes),
			CoveringTests:    m.CoveringTests,
			TestOutcomes:     outcomes,
		}
	}

	return detect.Rule(bl, outcomes, m.CoveringTests)
}

func nonViable(m mutation.Details, reason string) mutation.StatusTestPair {
	log.Infof("mutation at %s:%d is non-viable: %s\n", m.Package, m.Line, reason)

	return mutation.StatusTestPair{Status: mutation.NonViable, CoveringTests: m.CoveringTests}
}

// verify checks the transformed package still builds; a verifier
// rejection in the original system's classloader maps, in Go, to a
// `go build` failure (§4.5).
func (w *Worker) verify(ctx context.Context, dir, pkg string) error {
	cmd := w.ExecContext(ctx, "go", "build", pkg)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("build failed: %s", strings.TrimSpace(string(out)))
	}

	return nil
}

// runTests runs every test in tests in a single `go test` invocation,
// returning one TestOutcome per test. In research mode every test runs
// to completion with no early exit; in normal mode, -failfast is used
// since only a killer, not full results, is needed.
func (w *Worker) runTests(ctx context.Context, dir, pkg string, tests []string, timeout time.Duration, researchMode bool) ([]mutation.TestOutcome, bool, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"test", "-json", "-run", "^(" + strings.Join(tests, "|") + ")$"}
	if !researchMode {
		args = append(args, "-failfast")
	}
	args = append(args, pkg)

	cmd := w.ExecContext(runCtx, "go", args...)
	cmd.Dir = dir

	out, _ := cmd.Output() // non-zero exit for failing tests is expected, not a Go error

	if runCtx.Err() != nil {
		return nil, true, nil
	}

	events, err := coverage.ParseTestEvents(strings.NewReader(string(out)))
	if err != nil {
		return nil, false, err
	}

	byName := make(map[string]coverage.TestResult, len(events))
	for _, e := range events {
		byName[e.Name] = e
	}

	outcomes := make([]mutation.TestOutcome, 0, len(tests))
	for _, name := range tests {
		tr, ok := byName[name]
		if !ok {
			// In normal -failfast mode, a test after the killer never ran.
			continue
		}
		if tr.Passed {
			outcomes = append(outcomes, mutation.NewPassedOutcome(name, tr.ElapsedMs))

			continue
		}
		exceptionType, message, stackTrace := "testing.T.Fail", firstLine(tr.Output), tr.Output
		outcomes = append(outcomes, mutation.NewFailedOutcome(name, tr.ElapsedMs, exceptionType, message, stackTrace))
	}

	return outcomes, false, nil
}

func (w *Worker) buildLocalBaseline(ctx context.Context, h Header) (baseline.Baseline, error) {
	b := baseline.NewBuilder()
	outcomes, _, err := w.runTests(ctx, h.Dir, h.Package, h.Tests, h.PerMutationTimeout, true)
	if err != nil {
		return baseline.Baseline{}, err
	}
	for _, o := range outcomes {
		b.RecordTest(o.TestName, o.Passed, nil)
	}

	return b.Build(), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}

	return s
}
