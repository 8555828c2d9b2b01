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

// Package workdir manages the per-worker isolated copy of the module
// under analysis. A minion never mutates the real source tree: §4.5's
// "install the transformed image into the active class environment" is
// realized in Go as writing the mutated source file into one of these
// private copies before invoking `go test`.
package workdir

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mutmatrix/mutmatrix/internal/log"
)

// Dealer creates and returns isolated working directories, one per
// correlation identifier (typically a worker's id), and frees them on
// Clean.
type Dealer interface {
	Get(idf string) (string, error)
	Clean()
}

// CachedDealer is the Dealer implementation: it keeps a cache of the
// folders it has handed out so repeat calls with the same identifier
// return the same directory, and it links rather than copies files
// unless running inside a Docker container (hard links don't survive
// most container filesystem layers, so a full copy is used there).
type CachedDealer struct {
	mutex            *sync.RWMutex
	cache            map[string]string
	workDir          string
	srcDir           string
	dockerRootFolder string
	withinDocker     bool
}

// Option configures a CachedDealer at construction.
type Option func(d *CachedDealer) *CachedDealer

// NewCachedDealer instantiates a Dealer rooted at workDir, copying or
// linking from srcDir on first Get of a given identifier.
func NewCachedDealer(workDir, srcDir string, opts ...Option) *CachedDealer {
	dealer := &CachedDealer{
		mutex:            &sync.RWMutex{},
		cache:            make(map[string]string),
		workDir:          workDir,
		srcDir:           srcDir,
		dockerRootFolder: "/",
	}

	for _, opt := range opts {
		dealer = opt(dealer)
	}

	if isRunningInDockerContainer(dealer.dockerRootFolder) {
		dealer.withinDocker = true

		return dealer
	}

	return dealer
}

// WithDockerRootFolder overrides the default root folder where the
// dealer looks for a `.dockerenv` marker.
func WithDockerRootFolder(rootFolder string) Option {
	return func(d *CachedDealer) *CachedDealer {
		d.dockerRootFolder = rootFolder

		return d
	}
}

// Get returns the working directory for idf, populating it with a fresh
// hard-linked (or, inside Docker, copied) mirror of srcDir the first
// time idf is requested.
func (cd *CachedDealer) Get(idf string) (string, error) {
	dstDir, ok := cd.getFromCache(idf)
	if ok {
		return dstDir, nil
	}

	dstDir, err := os.MkdirTemp(cd.workDir, "wd-*")
	if err != nil {
		return "", err
	}
	if err := filepath.Walk(cd.srcDir, cd.copyTo(dstDir)); err != nil {
		return "", err
	}

	cd.setCache(idf, dstDir)

	return dstDir, nil
}

// Clean removes every directory this dealer has handed out.
func (cd *CachedDealer) Clean() {
	for _, v := range cd.cache {
		if err := os.RemoveAll(v); err != nil {
			log.Errorf("impossible to remove temporary folder %s: %s\n", v, err)
		}
	}
	cd.cache = make(map[string]string)
}

func (cd *CachedDealer) getFromCache(idf string) (string, bool) {
	cd.mutex.RLock()
	defer cd.mutex.RUnlock()
	dstDir, ok := cd.cache[idf]

	return dstDir, ok
}

func (cd *CachedDealer) setCache(idf, folder string) {
	cd.mutex.Lock()
	defer cd.mutex.Unlock()
	cd.cache[idf] = folder
}

func (cd *CachedDealer) copyTo(dstDir string) func(srcPath string, info fs.FileInfo, err error) error {
	return func(srcPath string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(cd.srcDir, srcPath)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		return cd.copyPath(srcPath, filepath.Join(dstDir, relPath), info)
	}
}

func (cd *CachedDealer) copyPath(srcPath, dstPath string, info fs.FileInfo) error {
	switch mode := info.Mode(); {
	case mode.IsDir():
		if err := os.Mkdir(dstPath, mode); err != nil && !os.IsExist(err) {
			return err
		}
	case mode.IsRegular():
		if cd.withinDocker {
			if err := doCopy(srcPath, dstPath, mode); err != nil {
				return err
			}
		} else if err := os.Link(srcPath, dstPath); err != nil {
			return err
		}
	}

	return nil
}

func doCopy(srcPath, dstPath string, fileMode fs.FileMode) error {
	//nolint:gosec // srcPath is internally controlled, not user input
	s, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	//nolint:gosec // dstPath is internally controlled, not user input
	d, err := os.OpenFile(dstPath, os.O_CREATE|os.O_RDWR, fileMode)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	_, err = io.Copy(d, s)

	return err
}

func isRunningInDockerContainer(dockerRootFolder string) bool {
	f := strings.TrimSuffix(dockerRootFolder, "/") + "/" + ".dockerenv"
	_, err := os.Stat(f)

	return err == nil
}
