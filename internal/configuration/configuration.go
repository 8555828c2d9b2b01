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

package configuration

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// This is the list of the keys available in config files and as flags.
const (
	SilentKey = "silent"

	RunOutputKey             = "run.output"
	RunTagsKey               = "run.tags"
	RunCoverPkgKey           = "run.coverpkg"
	RunExcludeFilesKey       = "run.exclude-files"
	RunThreadsKey            = "run.threads"
	RunTestCPUKey            = "run.test-cpu"
	RunThresholdEfficacyKey  = "run.threshold.efficacy"
	RunThresholdMCoverageKey = "run.threshold.mutant-coverage"

	// FullMatrixResearchModeKey is the one flag spec §6 names as gating
	// the core research-mode behavior: baseline-aware detection,
	// all-tests-per-mutant, failing-line filtering and CSV matrix output
	// are enabled together when this is true.
	FullMatrixResearchModeKey = "run.full-matrix-research-mode"

	// ResearchUnitSizeKey bounds mutations-per-unit (§4.3); 0 means
	// unbounded.
	ResearchUnitSizeKey = "run.research.unit-size"

	// ResearchTimeoutFactorKey and ResearchTimeoutConstantKey parameterize
	// the per-mutation timeout formula in §5: baselineExecutionTime *
	// factor + constant(ms).
	ResearchTimeoutFactorKey   = "run.research.timeout-factor"
	ResearchTimeoutConstantKey = "run.research.timeout-constant-ms"
)

const (
	cfgName      = ".mutmatrix"
	envVarPrefix = "MUTMATRIX"

	xdgConfigHomeKey = "XDG_CONFIG_HOME"

	windowsOs = "windows"
)

// DefaultTimeoutFactor and DefaultTimeoutConstantMs are the spec §5
// defaults applied when the corresponding keys are unset.
const (
	DefaultTimeoutFactor      = 1.25
	DefaultTimeoutConstantMs  = 4000
	DefaultResearchUnitSize   = 0
	DefaultResearchThreads    = 1
	HeapWarnThresholdFraction = 0.8
)

// Init initializes the viper configuration.
//
// It sets the configuration file name as .mutmatrix.yaml, adds the passed
// paths as ConfigPaths, and enables AutomaticEnv with MUTMATRIX as
// prefix. Environment variables take precedence over the configuration
// file and must be set in the format:
//
//	MUTMATRIX_<SECTION>_<FLAG NAME>
func Init(cPaths []string) error {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()
	viper.SetConfigName(cfgName)
	viper.SetConfigType("yaml")

	if isSpecificFile(cPaths) {
		viper.SetConfigFile(cPaths[0])
		err := viper.ReadInConfig()
		if err != nil {
			return err
		}
	} else if arePathsNotSet(cPaths) {
		cPaths = defaultConfigPaths()
	}

	for _, p := range cPaths {
		viper.AddConfigPath(p)
	}

	_ = viper.ReadInConfig() // ignoring error if file not present

	return nil
}

func isSpecificFile(cPaths []string) bool {
	return len(cPaths) == 1 && filepath.Ext(cPaths[0]) != ""
}

func arePathsNotSet(cPaths []string) bool {
	return len(cPaths) == 0 || len(cPaths) == 1 && cPaths[0] == ""
}

func defaultConfigPaths() []string {
	result := make([]string, 0, 4)

	if runtime.GOOS != windowsOs {
		result = append(result, "/etc/mutmatrix")
	}

	xchLocation, _ := homedir.Expand("~/.config")
	if x := os.Getenv(xdgConfigHomeKey); x != "" {
		xchLocation = x
	}
	xchLocation = filepath.Join(xchLocation, "mutmatrix", "mutmatrix")
	result = append(result, xchLocation)

	homeLocation, err := homedir.Expand("~/.mutmatrix")
	if err != nil {
		return result
	}
	result = append(result, homeLocation)

	if root := findModuleRoot(); root != "" {
		result = append(result, root)
	}

	result = append(result, ".")

	return result
}

func findModuleRoot() string {
	// Duplicated from internal/gomodule: configuration is initialised
	// before gomodule runs, so it can't depend on it.
	path, _ := os.Getwd()
	for {
		if fi, err := os.Stat(filepath.Join(path, "go.mod")); err == nil && !fi.IsDir() {
			return path
		}
		d := filepath.Dir(path)
		if d == path {
			break
		}
		path = d
	}

	return ""
}

var mutex sync.RWMutex

// Set offers synchronised access to Viper.
func Set[T any](k string, v T) {
	mutex.Lock()
	defer mutex.Unlock()
	viper.Set(k, v)
}

// Get offers synchronised access to Viper.
func Get[T any](k string) T {
	var r T
	mutex.RLock()
	defer mutex.RUnlock()
	r, _ = viper.Get(k).(T)

	return r
}

// Reset is used mainly for testing purposes, in order to clean up the
// Viper instance.
func Reset() {
	mutex.Lock()
	defer mutex.Unlock()
	viper.Reset()
}
