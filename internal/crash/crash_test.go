/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"invoicedesigner/internal/storage"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport("", "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Invoice Designer Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportCreatesFileInBackups(t *testing.T) {
	root := t.TempDir()
	path, err := writeReport(root, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if !strings.HasPrefix(path, filepath.Join(root, storage.BackupsDirName)) {
		t.Fatalf("expected crash report under backups dir, got %s", path)
	}
}

func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = old
		_, _ = io.Copy(io.Discard, r)
	})
}

func interceptExit(t *testing.T) *int {
	t.Helper()
	code := 0
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func TestRecoverWritesReportAndSnapshot(t *testing.T) {
	silenceStderr(t)
	code := interceptExit(t)
	root := t.TempDir()

	func() {
		defer Recover(root, func() ([]byte, error) { return []byte(`{"components":[]}`), nil })
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
	files, _ := os.ReadDir(filepath.Join(root, storage.BackupsDirName))
	var report, snap bool
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log"):
			report = true
		case strings.HasPrefix(f.Name(), "canvas.crash-"):
			snap = true
		}
	}
	if !report || !snap {
		t.Fatalf("expected report and snapshot, got %v", files)
	}
}

func TestRecoverSurvivesFailingSnapshot(t *testing.T) {
	silenceStderr(t)
	code := interceptExit(t)
	root := t.TempDir()

	func() {
		defer Recover(root, func() ([]byte, error) { panic("snapshot broke") })
		panic("boom")
	}()
	func() {
		defer Recover(root, func() ([]byte, error) { return nil, errors.New("no state") })
		panic("boom again")
	}()
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
}

func TestRecoverWithoutPanicDoesNothing(t *testing.T) {
	code := interceptExit(t)
	func() {
		defer Recover(t.TempDir(), nil)
	}()
	if *code != 0 {
		t.Fatalf("exit called without panic")
	}
}
