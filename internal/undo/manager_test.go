/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func snap(label, blob string, ts time.Time) Snapshot {
	return Snapshot{Label: label, Blob: []byte(blob), TS: ts}
}

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxDepth: 10})
	t0 := time.Now()
	m.Push(snap("move", "a", t0))
	m.Push(snap("move", "b", t0.Add(20*time.Millisecond)))
	if _, depth, _ := m.Stats(); depth != 2 {
		t.Fatalf("expected 2 undo entries, got %d", depth)
	}
	s, ok := m.Undo(snap("", "c", time.Now()))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
	s, ok = m.Redo(snap("", "b", time.Now()))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if _, depth, redo := m.Stats(); depth != 2 || redo != 0 {
		t.Fatalf("expected depth 2 and empty redo, got %d/%d", depth, redo)
	}
}

func TestPushClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	m.Push(snap("insert", "a", time.Now()))
	if _, ok := m.Undo(snap("", "b", time.Now())); !ok {
		t.Fatalf("expected undo")
	}
	m.Push(snap("insert", "b", time.Now()))
	if _, ok := m.Redo(snap("", "x", time.Now())); ok {
		t.Fatalf("redo must be cleared by a new change")
	}
}

func TestCoalesceKeepsEarliestState(t *testing.T) {
	m := NewManager(Config{MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Push(snap("nudge", "1", t0))
	m.Push(snap("nudge", "2", t0.Add(10*time.Millisecond)))
	m.Push(snap("nudge", "3", t0.Add(20*time.Millisecond)))
	if _, depth, _ := m.Stats(); depth != 1 {
		t.Fatalf("expected coalesced to 1 entry, got %d", depth)
	}
	s, _ := m.Undo(snap("", "4", time.Now()))
	if string(s.Blob) != "1" {
		t.Fatalf("expected state before the burst, got %q", s.Blob)
	}
	m.Push(snap("nudge", "5", t0))
	m.Push(snap("resize", "6", t0.Add(time.Millisecond)))
	if _, depth, _ := m.Stats(); depth != 2 {
		t.Fatalf("different labels must not coalesce, depth=%d", depth)
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxDepth: 2})
	for i := 0; i < 10; i++ {
		m.Push(snap("move", "xxxxx", time.Now().Add(time.Duration(i)*time.Second)))
	}
	total, depth, _ := m.Stats()
	if depth > 2 {
		t.Fatalf("expected MaxDepth cap to limit to 2, got %d", depth)
	}
	if total > 20 {
		t.Fatalf("expected bytes <= 20, got %d", total)
	}
}

func TestClear(t *testing.T) {
	m := NewManager(Config{})
	m.Push(snap("x", "abc", time.Now()))
	m.Clear()
	if total, depth, redo := m.Stats(); total != 0 || depth != 0 || redo != 0 {
		t.Fatalf("expected empty manager, got %d/%d/%d", total, depth, redo)
	}
	if _, ok := m.Undo(snap("", "", time.Now())); ok {
		t.Fatalf("undo on empty manager must report false")
	}
}
