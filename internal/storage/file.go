/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	applog "invoicedesigner/internal/log"
)

const (
	BackupsDirName = "backups"
	// keepBackups bounds the number of timestamped backups retained per collection.
	keepBackups = 10
)

// FileStore keeps one <name>.json per collection under Dir.
// Writes go to a temp file that is renamed over the target after the previous version was copied
// into backups/. A blob that fails to parse as JSON is replaced by the latest backup on read.
type FileStore struct {
	Dir string

	mu sync.Mutex
}

// NewFileStore creates dir (and its backups folder) when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.Dir, name+".json")
}

func (s *FileStore) Read(name string) ([]byte, bool, error) {
	if err := validName(name); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l := applog.WithOperation(applog.WithComponent("storage"), "read").With(slog.String("collection", name))
	b, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		// A missing file with backups present means a crash between remove and rename.
		if bb, berr := s.latestBackup(name); berr == nil {
			l.Warn("collection missing, restored from backup")
			return bb, true, nil
		}
		return nil, false, nil
	}
	if err != nil {
		bb, berr := s.latestBackup(name)
		if berr != nil {
			return nil, false, fmt.Errorf("read %s: %w; backup attempt: %v", name, err, berr)
		}
		l.Warn("collection unreadable, restored from backup", slog.Any("err", err))
		return bb, true, nil
	}
	if !json.Valid(b) {
		bb, berr := s.latestBackup(name)
		if berr != nil {
			return nil, false, fmt.Errorf("parse %s: invalid JSON; backup attempt: %v", name, berr)
		}
		l.Warn("collection corrupt, restored from backup")
		return bb, true, nil
	}
	return b, true, nil
}

func (s *FileStore) Write(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("write %s: data is not valid JSON", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(name)
	bdir := filepath.Join(s.Dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(target); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.json.%s.bak", name, stamp))
		if cerr := copyFile(target, bpath); cerr != nil {
			return fmt.Errorf("backup %s: %w", name, cerr)
		}
		s.pruneBackups(name)
	}

	temp := filepath.Join(s.Dir, fmt.Sprintf(".%s.json.tmp-%d-%d", name, os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp %s: %w", name, err)
	}
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(target); err == nil {
		_ = os.Remove(target)
	}
	if err := os.Rename(temp, target); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// Backups lists the backup files of a collection, oldest first.
func (s *FileStore) Backups(name string) ([]string, error) {
	ents, err := os.ReadDir(filepath.Join(s.Dir, BackupsDirName))
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := name + ".json."
	var out []string
	for _, e := range ents {
		n := e.Name()
		if strings.HasPrefix(n, prefix) && strings.HasSuffix(n, ".bak") {
			out = append(out, filepath.Join(s.Dir, BackupsDirName, n))
		}
	}
	// timestamp in name yields lexicographic order
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) latestBackup(name string) ([]byte, error) {
	candidates, err := s.Backups(name)
	if err != nil {
		return nil, err
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil || !json.Valid(b) {
			continue
		}
		return b, nil
	}
	return nil, errors.New("no usable backups found")
}

func (s *FileStore) pruneBackups(name string) {
	all, err := s.Backups(name)
	if err != nil || len(all) <= keepBackups {
		return
	}
	for _, p := range all[:len(all)-keepBackups] {
		_ = os.Remove(p)
	}
}

// WriteCrashSnapshot stores data as a timestamped JSON file under dir/backups, bypassing the
// transactional path so it works while the process is panicking.
func WriteCrashSnapshot(dir string, data []byte) (string, error) {
	bdir := filepath.Join(dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(bdir, fmt.Sprintf("canvas.crash-%s.json", time.Now().Format("20060102-150405")))
	if err := writeFileSync(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
