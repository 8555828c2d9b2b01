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
	"github.com/fatih/color"
	"github.com/hako/durafmt"

	"github.com/mutmatrix/mutmatrix/internal/aggregator"
	"github.com/mutmatrix/mutmatrix/internal/log"
)

var (
	fgGreen    = color.New(color.FgGreen).SprintFunc()
	fgRed      = color.New(color.FgRed).SprintFunc()
	fgHiYellow = color.New(color.FgYellow).SprintFunc()
)

// printSummary writes the final human-readable tally to the info log,
// in the same colored, durafmt-elapsed-time style the CLI has always
// used for a run's closing report.
func printSummary(m aggregator.Matrix) {
	elapsed := durafmt.Parse(m.Summary.Elapsed).LimitFirstN(2).String()

	log.Infof("\n%s %s in %s\n", fgGreen("Done."), m.Module, elapsed)
	log.Infof("%s: %d, %s: %d, %s: %d\n",
		fgGreen("Killed"), m.Summary.Killed,
		fgRed("Survived"), m.Summary.Survived,
		fgHiYellow("No coverage"), m.Summary.NoCoverage)
	log.Infof("Timed out: %d, Memory error: %d, Run error: %d, Non-viable: %d\n",
		m.Summary.TimedOut, m.Summary.MemoryErr, m.Summary.RunErr, m.Summary.NonViable)
	log.Infof("Test efficacy: %.2f%%, Mutant coverage: %.2f%%\n",
		m.Summary.TestEfficacy, m.Summary.MutantCoverage)
}
