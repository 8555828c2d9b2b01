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

// Package testdiscovery is the minimal seam the core calls into to
// enumerate runnable test units. The real test discovery/adapter layer
// is out of core scope (spec §1): this package only lists `go test`
// function names per package via `go test -list`, in the order the Go
// toolchain itself reports them, which is what the spec calls
// "discovery order" for determinism purposes (§4.5, §8).
package testdiscovery

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"strings"
)

// Unit identifies one runnable test: the package pattern it was listed
// under (as passed to List) and its function name.
type Unit struct {
	Package string
	Name    string
}

// List runs `go test -list` against pkg inside dir and returns every
// discovered Test and Example function, in the order go test reports
// them.
func List(ctx context.Context, dir, pkg string) ([]Unit, error) {
	cmd := exec.CommandContext(ctx, "go", "test", "-list", ".*", pkg)
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var units []Unit
	testNameRe := regexp.MustCompile(`^(Test|Example)\w*$`)
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if testNameRe.MatchString(line) {
			units = append(units, Unit{Package: pkg, Name: line})
		}
	}

	return units, nil
}

// Names projects a slice of Unit down to their bare test names, the form
// the `-run` flag and the worker protocol's TestOutcome.TestName use.
func Names(units []Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Name
	}

	return out
}
