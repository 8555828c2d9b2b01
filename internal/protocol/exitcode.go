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

package protocol

import "github.com/mutmatrix/mutmatrix/internal/mutation"

// ExitCode is the subprocess exit status the controller reconciles
// against the status map for every mutation left without a final frame,
// per §6 and §7.
type ExitCode int

const (
	// ExitOK is a clean exit; every mutation in the unit should already
	// have a terminal frame.
	ExitOK ExitCode = 0
	// ExitMinionDied is an unrecoverable worker-internal fatal.
	ExitMinionDied ExitCode = 1
	// ExitTimeout is a worker exit status of 2, mapped to TIMED_OUT. The
	// controller runs no watchdog of its own: a worker it kills on context
	// cancellation reports a signal exit, which NormalizeExitCode turns
	// into ExitUnknownError.
	ExitTimeout ExitCode = 2
	// ExitOutOfMemory is a worker exit status of 3, mapped to
	// MEMORY_ERROR. A worker killed by a signal (an OS out-of-memory kill
	// included) normalizes to ExitUnknownError instead.
	ExitOutOfMemory ExitCode = 3
	// ExitUnknownError covers any other non-zero, unrecognised exit.
	ExitUnknownError ExitCode = 4
)

// StatusForExitCode maps a subprocess exit code to the DetectionStatus
// assigned to every mutation still unfinished when the worker exited, per
// §6's deterministic exit-code-to-status mapping.
func StatusForExitCode(code ExitCode) mutation.DetectionStatus {
	switch code {
	case ExitTimeout:
		return mutation.TimedOut
	case ExitOutOfMemory:
		return mutation.MemoryError
	case ExitMinionDied, ExitUnknownError:
		return mutation.RunError
	case ExitOK:
		return mutation.RunError // clean exit with mutations still unfinished is itself an anomaly
	default:
		return mutation.RunError
	}
}

// NormalizeExitCode clamps an OS-reported process exit code (which may be
// any int, including negative values on signal termination) to one of the
// known ExitCode values, defaulting to ExitUnknownError.
func NormalizeExitCode(raw int) ExitCode {
	switch raw {
	case int(ExitOK):
		return ExitOK
	case int(ExitMinionDied):
		return ExitMinionDied
	case int(ExitTimeout):
		return ExitTimeout
	case int(ExitOutOfMemory):
		return ExitOutOfMemory
	default:
		return ExitUnknownError
	}
}
