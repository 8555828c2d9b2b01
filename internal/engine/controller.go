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

// Package engine is the Worker Controller (§4.4): per unit, it spawns a
// minion subprocess, streams the work plan to it, consumes its result
// frames, and reconciles the status map against the subprocess exit
// code. It adapts the teacher's ExecutorDealer/mutantExecutor shape —
// the same exec.CommandContext-plus-context-timeout idiom — generalized
// to spawn one minion per work unit instead of running an in-process
// `go test` per mutant.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mutmatrix/mutmatrix/internal/baseline"
	"github.com/mutmatrix/mutmatrix/internal/engine/workdir"
	"github.com/mutmatrix/mutmatrix/internal/gomodule"
	"github.com/mutmatrix/mutmatrix/internal/log"
	"github.com/mutmatrix/mutmatrix/internal/minion"
	"github.com/mutmatrix/mutmatrix/internal/mutation"
	"github.com/mutmatrix/mutmatrix/internal/partition"
	"github.com/mutmatrix/mutmatrix/internal/protocol"
	"github.com/mutmatrix/mutmatrix/internal/statusmap"
)

type execContext = func(ctx context.Context, name string, args ...string) *exec.Cmd

// MinionCommand builds the argv used to re-invoke this same binary as a
// minion subprocess, e.g. []string{os.Args[0], "__minion"}.
type MinionCommand func() []string

// Controller drives the per-unit controller↔worker loop of §4.4 across
// a worker pool of configurable size, using golang.org/x/sync/errgroup
// in place of the teacher's hand-rolled workerpool package (a SPEC_FULL
// domain-stack decision): errgroup already gives a bounded concurrent
// fan-out with first-error propagation, which is all the controller
// level needs since each unit is independent.
type Controller struct {
	Mod          gomodule.GoModule
	WdDealer     workdir.Dealer
	Threads      int
	MinionArgv   MinionCommand
	ExecContext  execContext
	ResearchMode bool
}

// NewController builds a Controller with sane defaults: exec.CommandContext
// and GOMAXPROCS-derived concurrency when threads is left at zero.
func NewController(mod gomodule.GoModule, wdd workdir.Dealer, argv MinionCommand, threads int, researchMode bool) *Controller {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}

	return &Controller{
		Mod:          mod,
		WdDealer:     wdd,
		Threads:      threads,
		MinionArgv:   argv,
		ExecContext:  exec.CommandContext,
		ResearchMode: researchMode,
	}
}

// RunAll drives every unit to completion, Threads at a time, and returns
// the merged per-mutation results across all units. The Baseline Store
// is read-only here: it was fully established before the first unit
// runs and is not mutated thereafter (§5).
func (c *Controller) RunAll(ctx context.Context, units []partition.Unit, bl baseline.Baseline) ([]mutation.Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Threads)

	var mu sync.Mutex
	var all []mutation.Result

	for _, u := range units {
		u := u
		g.Go(func() error {
			results, err := c.runUnit(gctx, u, bl)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, results...)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return all, nil
}

// runUnit spawns a worker for u, reconciling until every mutation in the
// unit reaches a terminal status, per §4.4's termination guarantee: each
// iteration either completes at least one mutation via a result frame,
// or assigns every still-unfinished mutation a status derived from the
// subprocess exit code.
func (c *Controller) runUnit(ctx context.Context, u partition.Unit, bl baseline.Baseline) ([]mutation.Result, error) {
	logHeapStats(u.Package, "before unit")

	sm := statusmap.New(u.Mutations)
	if !c.ResearchMode {
		sm.MarkUncovered()
	}

	const maxRespawns = 3
	for attempt := 0; attempt < maxRespawns; attempt++ {
		if len(sm.GetUnrun()) == 0 {
			break
		}
		if err := c.spawnAndReconcile(ctx, u, sm); err != nil {
			return nil, err
		}
		if len(sm.GetUnfinished()) == 0 {
			break
		}
		if attempt == maxRespawns-1 {
			log.Errorf("unit %s did not converge after %d respawns\n", u.Package, maxRespawns)
		}
	}

	logHeapStats(u.Package, "after execution")

	results := sm.CreateResults()

	logHeapStats(u.Package, "after reporting")

	sm.ClearAfterReporting()

	logHeapStats(u.Package, "after clearing")

	return results, nil
}

// maxHeapWarnFraction is the used/max-heap ratio above which logHeapStats
// escalates from an info line to a warning (spec §7/§8's 80% threshold).
const maxHeapWarnFraction = 0.8

// logHeapStats reports used/free/total/max heap for the running process at
// one of runUnit's four phases (before the unit, after execution, after
// reporting, after clearing), per §4.4's memory-discipline requirement.
// "Max" is HeapSys, the heap memory obtained from the OS so far, since Go
// does not expose a fixed heap ceiling the way a JVM -Xmx would.
func logHeapStats(pkg, phase string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	used := m.HeapAlloc
	maxHeap := m.HeapSys
	free := maxHeap - used
	total := m.HeapSys

	msg := fmt.Sprintf("heap[%s/%s]: used=%d free=%d total=%d max=%d bytes", pkg, phase, used, free, total, maxHeap)

	if maxHeap > 0 && float64(used)/float64(maxHeap) > maxHeapWarnFraction {
		log.Warnf("%s (exceeds %.0f%% of max heap)\n", msg, maxHeapWarnFraction*100)

		return
	}

	log.Infof("%s\n", msg)
}

func (c *Controller) spawnAndReconcile(ctx context.Context, u partition.Unit, sm *statusmap.Map) error {
	workerID := uuid.NewString()
	dir, err := c.WdDealer.Get(workerID)
	if err != nil {
		return fmt.Errorf("engine: acquire workdir for worker %s: %w", workerID, err)
	}

	argv := c.MinionArgv()
	cmd := c.ExecContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	setupProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("engine: start minion %s: %w", workerID, err)
	}
	context.AfterFunc(ctx, func() { _ = killProcessGroup(cmd) })

	unrunIDs := sm.GetUnrun()
	pending := unrunDetails(u.Mutations, unrunIDs)
	header := minion.Header{
		Package:      u.Package,
		Dir:          ".",
		Mutations:    pending,
		Tests:        u.Tests,
		ResearchMode: c.ResearchMode,
	}
	if err := minion.WriteHeader(stdin, header); err != nil {
		_ = killProcessGroup(cmd)

		return fmt.Errorf("engine: write header to worker %s: %w", workerID, err)
	}
	_ = stdin.Close()

	if len(pending) > 0 {
		sm.SetStatus(pending[0].ID, mutation.Started)
	}

	readErr := c.consumeFrames(stdout, sm)

	waitErr := cmd.Wait()
	code := protocol.ExitOK
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = protocol.NormalizeExitCode(exitErr.ExitCode())
		} else {
			code = protocol.ExitUnknownError
		}
	}

	still := sm.GetUnfinished()
	if len(still) > 0 {
		status := protocol.StatusForExitCode(code)
		log.Infof("worker %s exited (%v); reconciling %d unfinished mutations as %s\n", workerID, waitErr, len(still), status)
		sm.SetStatuses(still, status)
	}

	if readErr != nil && !errors.Is(readErr, io.EOF) {
		log.Errorf("engine: reading results from worker %s: %v\n", workerID, readErr)
	}

	return nil
}

func (c *Controller) consumeFrames(r io.Reader, sm *statusmap.Map) error {
	fr := protocol.NewReader(bufio.NewReader(r))
	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		switch frame.Tag {
		case protocol.TagStreamEnd:
			return nil
		case protocol.TagMutationStarted:
			p, err := protocol.DecodeMutationStarted(frame)
			if err != nil {
				return err
			}
			sm.SetStatus(p.ID, mutation.Started)
		case protocol.TagMutationResult:
			p, err := protocol.DecodeMutationResult(frame)
			if err != nil {
				return err
			}
			sm.SetResult(p.ID, p.Pair)
		case protocol.TagTestOutcome:
			// Individual TEST_OUTCOME frames are informational only; the
			// terminal MUTATION_RESULT frame already carries the full
			// per-test list in research mode.
		}
	}
}

func unrunDetails(all []mutation.Details, ids []mutation.ID) []mutation.Details {
	want := make(map[mutation.ID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var out []mutation.Details
	for _, d := range all {
		if _, ok := want[d.ID]; ok {
			out = append(out, d)
		}
	}

	return out
}
