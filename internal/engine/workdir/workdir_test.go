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

package workdir_test

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hectane/go-acl"

	"github.com/mutmatrix/mutmatrix/internal/engine/workdir"
)

func TestLinksFolder(t *testing.T) {
	srcDir := t.TempDir()
	populateSrcDir(t, srcDir, 3)
	dstDir := t.TempDir()

	dealer := workdir.NewCachedDealer(dstDir, srcDir, workdir.WithDockerRootFolder(dstDir))

	gotDir, err := dealer.Get("worker-1")
	if err != nil {
		t.Fatal(err)
	}
	defer dealer.Clean()

	err = filepath.Walk(srcDir, func(path string, srcFileInfo fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			t.Fatal(err)
		}
		if relPath == "." {
			return nil
		}
		dstFileInfo, err := os.Lstat(filepath.Join(gotDir, relPath))
		if err != nil {
			t.Fatal(err)
		}

		if srcFileInfo.Mode().IsRegular() && !os.SameFile(dstFileInfo, srcFileInfo) {
			t.Error("expected file to be hard-linked to the same inode, got a different file")
		}
		if !cmp.Equal(dstFileInfo.Name(), srcFileInfo.Name()) {
			t.Errorf("expected Name to be %v, got %v", srcFileInfo.Name(), dstFileInfo.Name())
		}

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCopiesFolderInsideDocker(t *testing.T) {
	srcDir := t.TempDir()
	populateSrcDir(t, srcDir, 3)
	wdDir := t.TempDir()

	dockerRootDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dockerRootDir, ".dockerenv"), []byte{}, 0400); err != nil {
		t.Fatal(err)
	}

	dealer := workdir.NewCachedDealer(wdDir, srcDir, workdir.WithDockerRootFolder(dockerRootDir))
	defer dealer.Clean()

	gotDir, err := dealer.Get("worker-1")
	if err != nil {
		t.Fatal(err)
	}

	err = filepath.Walk(srcDir, func(path string, srcFileInfo fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			t.Fatal(err)
		}
		if relPath == "." {
			return nil
		}
		dstFileInfo, err := os.Lstat(filepath.Join(gotDir, relPath))
		if err != nil {
			t.Fatal(err)
		}

		if os.SameFile(dstFileInfo, srcFileInfo) {
			t.Error("expected file to be copied, got the same inode")
		}

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCachesFoldersByIdentifier(t *testing.T) {
	t.Run("same identifier returns the same folder", func(t *testing.T) {
		srcDir := t.TempDir()
		populateSrcDir(t, srcDir, 0)
		dstDir := t.TempDir()

		dealer := workdir.NewCachedDealer(dstDir, srcDir, workdir.WithDockerRootFolder(dstDir))
		defer dealer.Clean()

		first, err := dealer.Get("worker-1")
		if err != nil {
			t.Fatal(err)
		}
		second, err := dealer.Get("worker-1")
		if err != nil {
			t.Fatal(err)
		}
		third, err := dealer.Get("worker-2")
		if err != nil {
			t.Fatal(err)
		}

		if first != second {
			t.Errorf("expected repeat Get to be cached, got %s", cmp.Diff(first, second))
		}
		if first == third {
			t.Errorf("expected a distinct identifier to get a new folder")
		}
	})

	t.Run("clean frees every cached folder", func(t *testing.T) {
		srcDir := t.TempDir()
		populateSrcDir(t, srcDir, 0)
		dstDir := t.TempDir()

		dealer := workdir.NewCachedDealer(dstDir, srcDir, workdir.WithDockerRootFolder(dstDir))

		first, err := dealer.Get("worker-1")
		if err != nil {
			t.Fatal(err)
		}

		dealer.Clean()

		second, err := dealer.Get("worker-1")
		if err != nil {
			t.Fatal(err)
		}

		if first == second {
			t.Errorf("expected a fresh folder after Clean")
		}
	})

	t.Run("concurrent Get calls never collide", func(t *testing.T) {
		srcDir := t.TempDir()
		populateSrcDir(t, srcDir, 0)
		dstDir := t.TempDir()

		dealer := workdir.NewCachedDealer(dstDir, srcDir, workdir.WithDockerRootFolder(dstDir))
		defer dealer.Clean()

		var mu sync.Mutex
		var folders []string

		var wg sync.WaitGroup
		wg.Add(10)
		for i := 0; i < 10; i++ {
			i := i
			go func() {
				defer wg.Done()
				f, err := dealer.Get(fmt.Sprintf("worker-%d", i))
				if err != nil {
					t.Errorf("unexpected error: %s", err)
				}
				mu.Lock()
				defer mu.Unlock()
				folders = append(folders, f)
			}()
		}
		wg.Wait()

		seen := make(map[string]bool)
		for _, f := range folders {
			if seen[f] {
				t.Fatal("expected every folder to be unique")
			}
			seen[f] = true
		}
	})
}

func TestGetErrors(t *testing.T) {
	t.Run("source directory does not exist", func(t *testing.T) {
		dealer := workdir.NewCachedDealer(t.TempDir(), "not a dir")

		if _, err := dealer.Get("worker-1"); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("source directory is not readable", func(t *testing.T) {
		srcDir := t.TempDir()
		chmod, clean := os.Chmod, os.Chmod
		if runtime.GOOS == "windows" {
			chmod, clean = acl.Chmod, acl.Chmod
		}
		if err := chmod(srcDir, 0000); err != nil {
			t.Fatal(err)
		}
		defer func() { _ = clean(srcDir, 0700) }()

		dealer := workdir.NewCachedDealer(t.TempDir(), srcDir)

		if _, err := dealer.Get("worker-1"); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("destination directory is not writeable", func(t *testing.T) {
		srcDir := t.TempDir()
		dstDir := t.TempDir()
		chmod, clean := os.Chmod, os.Chmod
		if runtime.GOOS == "windows" {
			chmod, clean = acl.Chmod, acl.Chmod
		}
		if err := chmod(dstDir, 0000); err != nil {
			t.Fatal(err)
		}
		defer func() { _ = clean(dstDir, 0700) }()

		dealer := workdir.NewCachedDealer(dstDir, srcDir)

		if _, err := dealer.Get("worker-1"); err == nil {
			t.Error("expected an error")
		}
	})
}

func populateSrcDir(t *testing.T, srcDir string, depth int) {
	t.Helper()
	if depth == 0 {
		return
	}

	for i := 0; i < 10; i++ {
		dirName := filepath.Join(srcDir, fmt.Sprintf("srcdir-%d", i))
		if err := os.Mkdir(dirName, 0700); err != nil {
			t.Fatal(err)
		}
		populateSrcDir(t, dirName, depth-1)
	}

	for i := 0; i < 10; i++ {
		fileName := filepath.Join(srcDir, fmt.Sprintf("srcfile-%d", i))
		if err := os.WriteFile(fileName, []byte{}, 0400); err != nil {
			t.Fatal(err)
		}
	}
}
