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

package mutation

// DetectionStatus is the tagged variant assigned to a mutation exactly
// once, on completion.
type DetectionStatus int

// The nine statuses a mutation can terminate in. NotStarted and Started
// are transient; every other value is terminal.
const (
	NotStarted DetectionStatus = iota
	Started
	Killed
	Survived
	NoCoverage
	TimedOut
	MemoryError
	RunError
	NonViable
)

// String renders the status the way it is logged and persisted in the
// matrix CSV.
func (s DetectionStatus) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Started:
		return "STARTED"
	case Killed:
		return "KILLED"
	case Survived:
		return "SURVIVED"
	case NoCoverage:
		return "NO_COVERAGE"
	case TimedOut:
		return "TIMED_OUT"
	case MemoryError:
		return "MEMORY_ERROR"
	case RunError:
		return "RUN_ERROR"
	case NonViable:
		return "NON_VIABLE"
	default:
		panic("this should not happen")
	}
}

// IsTerminal reports whether a mutation with this status is done and
// will never transition again.
func (s DetectionStatus) IsTerminal() bool {
	return s != NotStarted && s != Started
}

// None is the literal placeholder CSV/TestOutcome fields fall back to,
// per spec, so downstream CSV consumers never see a null.
const None = "None"

// TestOutcome records, for one (mutant, test) pair, what happened.
type TestOutcome struct {
	TestName      string
	Passed        bool
	ElapsedMs     float64
	ExceptionType string
	Message       string
	StackTrace    string
}

// NewPassedOutcome builds the outcome for a test that ran to completion
// without failing.
func NewPassedOutcome(testName string, elapsedMs float64) TestOutcome {
	return TestOutcome{
		TestName:      testName,
		Passed:        true,
		ElapsedMs:     elapsedMs,
		ExceptionType: None,
		Message:       None,
		StackTrace:    None,
	}
}

// NewFailedOutcome builds the outcome for a test that failed, filling in
// the None placeholder for any field the caller leaves blank.
func NewFailedOutcome(testName string, elapsedMs float64, exceptionType, message, stackTrace string) TestOutcome {
	o := TestOutcome{
		TestName:      testName,
		Passed:        false,
		ElapsedMs:     elapsedMs,
		ExceptionType: exceptionType,
		Message:       message,
		StackTrace:    stackTrace,
	}
	if o.ExceptionType == "" {
		o.ExceptionType = None
	}
	if o.Message == "" {
		o.Message = None
	}
	if o.StackTrace == "" {
		o.StackTrace = None
	}

	return o
}

// StatusTestPair is the aggregate assigned to each mutation on
// completion: how many tests ran, the final status, and the three
// derived test-name lists plus (in full-matrix mode) every per-test
// outcome.
type StatusTestPair struct {
	NumberOfTestsRun int
	Status           DetectionStatus
	KillingTests     []string
	SucceedingTests  []string
	CoveringTests    []string
	TestOutcomes     []TestOutcome
}

// Clear drops the heavy per-test data, keeping only the summary fields,
// so a completed unit's detailed outcomes don't linger in memory once
// they've been handed to the reporter.
func (p *StatusTestPair) Clear() {
	p.TestOutcomes = nil
}
