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
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// testEvent mirrors the shape of one line of `go test -json` output.
type testEvent struct {
	Action  string
	Test    string
	Output  string
	Elapsed float64
}

// TestResult is the parsed, final verdict for one test as reported by
// `go test -json`: whether it passed, how long it took (sub-millisecond
// precision preserved as a float, per spec §3), and — on failure — the
// captured output used to fill in the exception detail fields.
type TestResult struct {
	Name      string
	Passed    bool
	ElapsedMs float64
	Output    string
}

// ParseTestEvents reads a `go test -json` stream and returns one
// TestResult per test that reached a pass/fail verdict. Tests that are
// skipped are omitted, matching the spec's silence on skipped tests.
func ParseTestEvents(r io.Reader) ([]TestResult, error) {
	outputs := make(map[string]*strings.Builder)
	order := make([]string, 0)
	results := make(map[string]TestResult)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev testEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue // non-JSON noise on stdout, ignore
		}
		if ev.Test == "" {
			continue // package-level event
		}

		switch ev.Action {
		case "run":
			if _, ok := outputs[ev.Test]; !ok {
				outputs[ev.Test] = &strings.Builder{}
				order = append(order, ev.Test)
			}
		case "output":
			if b, ok := outputs[ev.Test]; ok {
				b.WriteString(ev.Output)
			}
		case "pass", "fail":
			b := outputs[ev.Test]
			out := ""
			if b != nil {
				out = b.String()
			}
			results[ev.Test] = TestResult{
				Name:      ev.Test,
				Passed:    ev.Action == "pass",
				ElapsedMs: ev.Elapsed * 1000,
				Output:    out,
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	out := make([]TestResult, 0, len(order))
	for _, name := range order {
		if r, ok := results[name]; ok {
			out = append(out, r)
		}
	}

	return out, nil
}
