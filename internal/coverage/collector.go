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

package coverage

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/tools/cover"

	"github.com/mutmatrix/mutmatrix/internal/baseline"
	"github.com/mutmatrix/mutmatrix/internal/log"
	"github.com/mutmatrix/mutmatrix/internal/mutation"
	"github.com/mutmatrix/mutmatrix/internal/testdiscovery"
)

// Result is the per-test output of the baseline collector: §4.1's
// CoverageResult. Each test is executed exactly once, under coverage
// instrumentation, so this carries both the test's green/red verdict
// and the set of (package, line) pairs it visited.
type Result struct {
	TestName      string
	Passed        bool
	ElapsedMs     float64
	ExceptionType string
	Message       string
	StackTrace    string
	Visited       []mutation.ClassLine
}

// execContext is overridable for testing, following the teacher's
// execContext indirection in internal/engine/executor.go.
type execContext = func(ctx context.Context, name string, args ...string) *exec.Cmd

// Collector runs the unmodified program's test suite once, per spec
// §4.1, and derives the run's Baseline from it.
type Collector struct {
	Dir             string // module root the tests run from
	execContext     execContext
	AllowRedBaseline bool // if false, any originally failing test aborts the run
}

// NewCollector builds a Collector rooted at dir.
func NewCollector(dir string) *Collector {
	return &Collector{Dir: dir, execContext: exec.CommandContext, AllowRedBaseline: true}
}

// SetExecContextForTest overrides the command constructor used to invoke
// `go test`, following the teacher's executor test seam.
func (c *Collector) SetExecContextForTest(fn execContext) {
	c.execContext = fn
}

// ErrRedBaseline is returned when AllowRedBaseline is false and at least
// one test failed on the unmodified program.
var ErrRedBaseline = fmt.Errorf("baseline has failing tests and failing tests are not permitted")

// Run executes every unit in units once, each under its own coverage
// profile, within the given per-test timeout, and returns both the raw
// per-test Results and the derived Baseline.
func (c *Collector) Run(ctx context.Context, units []testdiscovery.Unit, pkg string, perTestTimeout time.Duration) ([]Result, baseline.Baseline, error) {
	tmpDir, err := os.MkdirTemp("", "mutmatrix-baseline-*")
	if err != nil {
		return nil, baseline.Baseline{}, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	b := baseline.NewBuilder()
	var results []Result
	anyFailed := false

	for _, u := range units {
		res, visited, err := c.runOne(ctx, tmpDir, pkg, u.Name, perTestTimeout)
		if err != nil {
			return nil, baseline.Baseline{}, fmt.Errorf("baseline run of %s: %w", u.Name, err)
		}
		results = append(results, res)
		if !res.Passed {
			anyFailed = true
		}
		b.RecordTest(u.Name, res.Passed, visited)
	}

	if anyFailed && !c.AllowRedBaseline {
		return results, baseline.Baseline{}, ErrRedBaseline
	}

	return results, b.Build(), nil
}

func (c *Collector) runOne(ctx context.Context, tmpDir, pkg, testName string, timeout time.Duration) (Result, []mutation.ClassLine, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	covFile := filepath.Join(tmpDir, sanitize(testName)+".cov")
	cmd := c.execContext(runCtx, "go", "test", "-json",
		"-run", "^"+testName+"$",
		"-coverprofile", covFile, pkg)
	cmd.Dir = c.Dir

	out, _ := cmd.Output() // exit status from a failing test is expected, not an error

	events, err := ParseTestEvents(strings.NewReader(string(out)))
	if err != nil {
		return Result{}, nil, err
	}

	var tr TestResult
	for _, e := range events {
		if e.Name == testName {
			tr = e

			break
		}
	}
	if tr.Name == "" {
		// Never reported a verdict: treat as a failure, it is not a kill
		// candidate but must not be silently dropped (spec §7).
		tr = TestResult{Name: testName, Passed: false, Output: "test produced no pass/fail event"}
	}

	res := Result{
		TestName:  testName,
		Passed:    tr.Passed,
		ElapsedMs: tr.ElapsedMs,
	}
	if !tr.Passed {
		res.ExceptionType, res.Message, res.StackTrace = splitFailureOutput(tr.Output)
		log.Infof("baseline: %s failed\n", testName)
	}

	var visited []mutation.ClassLine
	if profile, err := parseProfile(covFile); err == nil {
		for file, lines := range linesByFile(profile) {
			// The cover profile keys blocks by the import-path-qualified
			// file (e.g. "github.com/mutmatrix/mutmatrix/internal/foo/bar.go");
			// mutation.ClassLine.Package must be the bare package import
			// path, matching Details.Package and Details.ClassLine(), so
			// the filename component is stripped here.
			pkg := path.Dir(file)
			for line := range lines {
				visited = append(visited, mutation.ClassLine{Package: pkg, Line: line})
			}
		}
	}

	return res, visited, nil
}

func linesByFile(p Profile) map[string]map[int]struct{} {
	out := make(map[string]map[int]struct{}, len(p))
	for file := range p {
		out[file] = p.Lines(file)
	}

	return out
}

func parseProfile(path string) (Profile, error) {
	f, err := os.Open(path) //nolint:gosec // path is internally constructed
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	profiles, err := cover.ParseProfilesFromReader(f)
	if err != nil {
		return nil, err
	}

	out := make(Profile)
	for _, p := range profiles {
		for _, blk := range p.Blocks {
			if blk.Count == 0 {
				continue
			}
			out[p.FileName] = append(out[p.FileName], Block{
				StartLine: blk.StartLine,
				StartCol:  blk.StartCol,
				EndLine:   blk.EndLine,
				EndCol:    blk.EndCol,
			})
		}
	}

	return out, nil
}

// splitFailureOutput is a best-effort heuristic that turns raw `go test`
// captured output into the (exceptionType, message, stackTrace) triple
// TestOutcome wants; Go doesn't have Java's typed exceptions, so the
// "exception type" is always "testing.T.Fail" and the message is the
// first non-empty output line.
func splitFailureOutput(output string) (exceptionType, message, stackTrace string) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			message = strings.TrimSpace(l)

			break
		}
	}
	if message == "" {
		message = mutation.None
	}

	return "testing.T.Fail", message, output
}

func sanitize(name string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(name)
}
