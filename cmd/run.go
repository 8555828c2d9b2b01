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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/mutmatrix/mutmatrix/cmd/internal/flags"
	"github.com/mutmatrix/mutmatrix/internal/aggregator"
	"github.com/mutmatrix/mutmatrix/internal/baseline"
	"github.com/mutmatrix/mutmatrix/internal/configuration"
	"github.com/mutmatrix/mutmatrix/internal/coverage"
	"github.com/mutmatrix/mutmatrix/internal/engine"
	"github.com/mutmatrix/mutmatrix/internal/engine/workdir"
	"github.com/mutmatrix/mutmatrix/internal/exclusion"
	"github.com/mutmatrix/mutmatrix/internal/gomodule"
	"github.com/mutmatrix/mutmatrix/internal/interceptor"
	"github.com/mutmatrix/mutmatrix/internal/log"
	"github.com/mutmatrix/mutmatrix/internal/manifest"
	"github.com/mutmatrix/mutmatrix/internal/matrixreport"
	"github.com/mutmatrix/mutmatrix/internal/mutation"
	"github.com/mutmatrix/mutmatrix/internal/partition"
	"github.com/mutmatrix/mutmatrix/internal/testdiscovery"
)

type runCmd struct {
	cmd *cobra.Command
}

const (
	runCommandName = "run"

	paramMutations    = "mutations"
	paramPackage      = "cover-pkg"
	paramExcludeFiles = "exclude-files"
	paramOutput       = "output"

	paramSummary    = "summary"
	paramResearch   = "fullMatrixResearchMode"
	paramThreads    = "threads"
	paramUnitSize   = "unit-size"
	paramTimeoutFct = "timeout-factor"
	paramTimeoutCst = "timeout-constant"

	paramThresholdEfficacy  = "threshold-efficacy"
	paramThresholdMCoverage = "threshold-mcover"
)

func newRunCmd(ctx context.Context) (*runCmd, error) {
	cmd := &cobra.Command{
		Use:     fmt.Sprintf("%s [path]", runCommandName),
		Aliases: []string{"r"},
		Args:    cobra.MaximumNArgs(1),
		Short:   "Run the mutation testing engine on a Go module",
		Long:    runLongExplainer(),
		RunE:    runE(ctx),
	}

	if err := setRunFlags(cmd); err != nil {
		return nil, err
	}

	return &runCmd{cmd: cmd}, nil
}

func runLongExplainer() string {
	return heredoc.Doc(`
		Collects the baseline of the test suite, narrows a mutation manifest
		down through the interceptor pipeline, partitions the survivors into
		bounded work units, and drives a pool of minion subprocesses that
		execute the per-mutant protocol. Writes the full (mutant x test)
		result matrix as CSV.

		In --fullMatrixResearchMode, every discovered test runs against
		every surviving mutant (not just the first killer), detection is
		baseline-aware (a mutation that makes an originally-failing test
		pass is still KILLED), and the failing-line filter restricts
		analysis to lines an originally-failing test actually executed.
	`)
}

func runE(ctx context.Context) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		path, _ := os.Getwd()
		if len(args) > 0 {
			path = args[0]
		}

		mod, err := gomodule.Init(path)
		if err != nil {
			return fmt.Errorf("not in a Go module: %w", err)
		}

		return run(ctx, mod)
	}
}

func run(ctx context.Context, mod gomodule.GoModule) error {
	start := time.Now()

	researchMode := configuration.Get[bool](configuration.FullMatrixResearchModeKey)
	pkgPattern := configuration.Get[string](configuration.RunCoverPkgKey)
	if pkgPattern == "" {
		pkgPattern = "./..."
	}

	log.Infoln("Discovering tests...")
	units, err := testdiscovery.List(ctx, mod.Root, pkgPattern)
	if err != nil {
		return fmt.Errorf("run: discover tests: %w", err)
	}
	allTests := testdiscovery.Names(units)

	log.Infoln("Collecting baseline...")
	collector := coverage.NewCollector(mod.Root)
	covResults, bl, err := collector.Run(ctx, units, pkgPattern, perTestTimeout())
	if err != nil {
		return fmt.Errorf("run: collect baseline: %w", err)
	}

	mutationsPath := configuration.Get[string](paramMutations)
	rawMutations, err := manifest.Load(mutationsPath)
	if err != nil {
		return fmt.Errorf("run: load mutation manifest: %w", err)
	}
	mutations := attachCoverage(covResults, rawMutations)

	exclusionRules, err := exclusion.New()
	if err != nil {
		return fmt.Errorf("run: parse exclude-files patterns: %w", err)
	}

	pipeline := interceptor.New(
		exclusion.NewFilter(exclusionRules),
		interceptor.NewFailingLineFilter(bl, researchMode),
	)
	mutations = pipeline.Run(pkgPattern, mutations)

	mode := partition.Normal
	if researchMode {
		mode = partition.Research
	}
	unitSize := configuration.Get[int](configuration.ResearchUnitSizeKey)
	workUnits := partition.Build(mode, unitSize, mutations, allTests)

	workDir, err := os.MkdirTemp(os.TempDir(), "mutmatrix-")
	if err != nil {
		return fmt.Errorf("run: create workdir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	dealer := workdir.NewCachedDealer(workDir, mod.Root)
	defer dealer.Clean()

	threads := configuration.Get[int](configuration.RunThreadsKey)
	controller := engine.NewController(mod, dealer, minionArgv, threads, researchMode)

	log.Infof("Running %d work units across %d mutations...\n", len(workUnits), len(mutations))
	results, err := controller.RunAll(ctx, workUnits, bl)
	if err != nil {
		return fmt.Errorf("run: execute work units: %w", err)
	}

	matrix := aggregator.Merge(mod.Name, time.Since(start), results)
	printSummary(matrix)

	if err := writeReports(matrix, bl); err != nil {
		return err
	}

	efficacyThreshold := configuration.Get[float64](configuration.RunThresholdEfficacyKey)
	coverageThreshold := configuration.Get[float64](configuration.RunThresholdMCoverageKey)

	return aggregator.Assess(matrix.Summary, efficacyThreshold, coverageThreshold)
}

func writeReports(matrix aggregator.Matrix, bl baseline.Baseline) error {
	output := configuration.Get[string](configuration.RunOutputKey)
	if output == "" {
		output = "mutmatrix.csv"
	}
	f, err := os.Create(output) //nolint:gosec // operator-supplied CLI flag
	if err != nil {
		return fmt.Errorf("run: create output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := matrixreport.WriteCSV(f, bl, matrix.Results); err != nil {
		return fmt.Errorf("run: write CSV matrix: %w", err)
	}

	if summaryPath := configuration.Get[string](paramSummary); summaryPath != "" {
		sf, err := os.Create(summaryPath) //nolint:gosec // operator-supplied CLI flag
		if err != nil {
			return fmt.Errorf("run: create summary file: %w", err)
		}
		defer func() { _ = sf.Close() }()

		if err := matrixreport.WriteYAMLSummary(sf, matrix); err != nil {
			return fmt.Errorf("run: write YAML summary: %w", err)
		}
	}

	return nil
}

// attachCoverage correlates the baseline coverage results against the raw
// mutation manifest, filling in each mutation's CoveringTests: the
// ordered list of tests whose coverage profile visited that (package,
// line), per spec §3's MutationDetails.coveringTests.
func attachCoverage(covResults []coverage.Result, raw []mutation.Details) []mutation.Details {
	byLine := make(map[mutation.ClassLine][]string)
	for _, r := range covResults {
		for _, cl := range r.Visited {
			byLine[cl] = append(byLine[cl], r.TestName)
		}
	}

	out := make([]mutation.Details, len(raw))
	for i, d := range raw {
		d.CoveringTests = byLine[d.ClassLine()]
		out[i] = d
	}

	return out
}

func perTestTimeout() time.Duration {
	factor := configuration.Get[float64](configuration.ResearchTimeoutFactorKey)
	if factor == 0 {
		factor = configuration.DefaultTimeoutFactor
	}
	constant := configuration.Get[int](configuration.ResearchTimeoutConstantKey)
	if constant == 0 {
		constant = configuration.DefaultTimeoutConstantMs
	}

	return time.Duration(float64(30*time.Second)*factor) + time.Duration(constant)*time.Millisecond
}

func setRunFlags(cmd *cobra.Command) error {
	cmd.Flags().SortFlags = false

	fls := []*flags.Flag{
		{Name: paramMutations, CfgKey: paramMutations, DefaultV: "", Usage: "path to the JSON mutation manifest produced by an external generator"},
		{Name: paramPackage, CfgKey: configuration.RunCoverPkgKey, DefaultV: "", Usage: "the package pattern to test (default ./...)"},
		{Name: paramExcludeFiles, CfgKey: configuration.RunExcludeFilesKey, DefaultV: []string(nil), Usage: "regex patterns of source file paths to exclude from mutation"},
		{Name: paramOutput, CfgKey: configuration.RunOutputKey, Shorthand: "o", DefaultV: "", Usage: "the CSV matrix output file (default mutmatrix.csv)"},
		{Name: paramSummary, CfgKey: paramSummary, DefaultV: "", Usage: "optional YAML run-summary output file"},
		{Name: paramResearch, CfgKey: configuration.FullMatrixResearchModeKey, DefaultV: false, Usage: "run every test against every mutant with baseline-aware detection"},
		{Name: paramThreads, CfgKey: configuration.RunThreadsKey, DefaultV: 0, Usage: "number of concurrent minion workers (default GOMAXPROCS)"},
		{Name: paramUnitSize, CfgKey: configuration.ResearchUnitSizeKey, DefaultV: 0, Usage: "maximum mutations per work unit (default unbounded)"},
		{Name: paramTimeoutFct, CfgKey: configuration.ResearchTimeoutFactorKey, DefaultV: float64(0), Usage: "per-mutation timeout factor (default 1.25)"},
		{Name: paramTimeoutCst, CfgKey: configuration.ResearchTimeoutConstantKey, DefaultV: 0, Usage: "per-mutation timeout constant in ms (default 4000)"},
		{Name: paramThresholdEfficacy, CfgKey: configuration.RunThresholdEfficacyKey, DefaultV: float64(0), Usage: "exit with an error if test efficacy is at or below this percent"},
		{Name: paramThresholdMCoverage, CfgKey: configuration.RunThresholdMCoverageKey, DefaultV: float64(0), Usage: "exit with an error if mutant coverage is at or below this percent"},
	}

	for _, f := range fls {
		if err := flags.Set(cmd, f); err != nil {
			return err
		}
	}

	return nil
}
