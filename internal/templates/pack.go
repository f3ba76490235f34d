/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package templates

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	applog "invoicedesigner/internal/log"
)

const (
	packManifest = "templates.manifest.txt"
	packDir      = "templates/"
)

// ExportPack writes every template into a zip archive as templates/<id>.json, plus a short
// manifest for human inspection.
func (m *Manager) ExportPack(w io.Writer) (int, error) {
	l := applog.WithOperation(m.log, "export-pack")
	list, err := m.List()
	if err != nil {
		return 0, err
	}
	zw := zip.NewWriter(w)
	manifest := fmt.Sprintf("Invoice Designer Template Pack\nCreated: %s\nTemplates: %d\n",
		m.now().Format("2006-01-02T15:04:05Z07:00"), len(list))
	fw, err := zw.Create(packManifest)
	if err != nil {
		return 0, fmt.Errorf("add manifest: %w", err)
	}
	if _, err := fw.Write([]byte(manifest)); err != nil {
		return 0, fmt.Errorf("write manifest: %w", err)
	}
	for _, t := range list {
		b, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return 0, fmt.Errorf("marshal %s: %w", t.ID, err)
		}
		fw, err := zw.Create(packDir + t.ID + ".json")
		if err != nil {
			return 0, err
		}
		if _, err := fw.Write(b); err != nil {
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		l.Error("zip build failed", slog.Any("err", err))
		return 0, fmt.Errorf("build zip: %w", err)
	}
	l.Info("template pack exported", slog.Int("templates", len(list)))
	return len(list), nil
}

// InstallPack adds the templates of a pack. Templates whose id already exists are skipped and
// invalid entries abort the install before anything is written. It returns the number installed.
func (m *Manager) InstallPack(r io.ReaderAt, size int64) (int, error) {
	l := applog.WithOperation(m.log, "install-pack")
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	var incoming []Template
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || f.Name == packManifest || path.Ext(f.Name) != ".json" {
			continue
		}
		if !strings.HasPrefix(f.Name, packDir) {
			l.Warn("skip foreign entry", slog.String("entry", f.Name))
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return 0, err
		}
		var buf bytes.Buffer
		_, err = io.Copy(&buf, io.LimitReader(rc, 16<<20))
		_ = rc.Close()
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", f.Name, err)
		}
		t, err := parse(buf.Bytes())
		if err != nil {
			return 0, fmt.Errorf("%s: %w", f.Name, err)
		}
		if t.ID == "" {
			t.ID = strings.TrimSuffix(path.Base(f.Name), ".json")
		}
		incoming = append(incoming, t)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	list, err := m.load()
	if err != nil {
		return 0, err
	}
	installed := 0
	for _, t := range incoming {
		if index(list, t.ID) >= 0 {
			l.Warn("skip existing template", slog.String("id", t.ID))
			continue
		}
		// a pack never overrides the local default
		t.IsDefault = false
		list = append(list, withDefaults(t, m.now(), m.newID))
		installed++
	}
	if installed > 0 {
		if err := m.persist(list); err != nil {
			return 0, err
		}
	}
	l.Info("template pack installed", slog.Int("templates", installed))
	return installed, nil
}
