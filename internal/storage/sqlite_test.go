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
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestSQLiteStoreRoundTripAndHistory(t *testing.T) {
	ss, err := OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer ss.Close()

	if _, ok, err := ss.Read(CollectionTemplates); err != nil || ok {
		t.Fatalf("expected absent collection, ok=%v err=%v", ok, err)
	}
	for i := 1; i <= 3; i++ {
		if err := ss.Write(CollectionTemplates, []byte(fmt.Sprintf(`{"v":%d}`, i))); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	b, ok, err := ss.Read(CollectionTemplates)
	if err != nil || !ok || string(b) != `{"v":3}` {
		t.Fatalf("Read: %s ok=%v err=%v", b, ok, err)
	}
	n, err := ss.HistoryCount(CollectionTemplates)
	if err != nil {
		t.Fatalf("HistoryCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 history rows, got %d", n)
	}
}

func TestSQLiteStoreReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ss, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := ss.Write(CollectionCustomFields, []byte(`[]`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_ = ss.Close()

	ss2, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ss2.Close()
	if _, ok, err := ss2.Read(CollectionCustomFields); err != nil || !ok {
		t.Fatalf("Read after reopen: ok=%v err=%v", ok, err)
	}
}

// TestMigrations_UpgradeV1ToV2 ensures a schema-1 database gains the history table.
func TestMigrations_UpgradeV1ToV2(t *testing.T) {
	dir := t.TempDir()
	path := SQLitePath(dir)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
		`CREATE TABLE IF NOT EXISTS collections (name TEXT PRIMARY KEY, blob BLOB NOT NULL, updated_at TEXT NOT NULL);`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	db.Close()

	ss, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer ss.Close()
	var schema int
	if err := ss.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("expected schema %d after migration, got %d", schemaVersion, schema)
	}
	var cnt int
	if err := ss.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='collection_history'`).Scan(&cnt); err != nil {
		t.Fatalf("query tables: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected collection_history table after migration")
	}
}
