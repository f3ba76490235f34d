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
	"encoding/json"
	"time"

	"invoicedesigner/internal/canvas"
	"invoicedesigner/internal/settings"
)

// Snapshot is the live canvas exported as a file.
type Snapshot struct {
	Components     []canvas.PlacedComponent `json:"components"`
	CanvasSettings settings.CanvasSettings  `json:"canvasSettings"`
	ExportedAt     time.Time                `json:"exportedAt"`
}

func ExportSnapshot(cs []canvas.PlacedComponent, s settings.CanvasSettings, now time.Time) ([]byte, error) {
	if cs == nil {
		cs = []canvas.PlacedComponent{}
	}
	return json.MarshalIndent(Snapshot{Components: cs, CanvasSettings: s, ExportedAt: now.UTC()}, "", "  ")
}

// ImportSnapshot accepts a document only when both components and canvasSettings are present.
func ImportSnapshot(doc []byte) (Snapshot, error) {
	if !json.Valid(doc) {
		return Snapshot{}, &ImportError{Problems: []string{"document is not valid JSON"}}
	}
	if err := check(snapshotValidator, doc); err != nil {
		return Snapshot{}, err
	}
	var raw struct {
		Components     []canvas.PlacedComponent `json:"components"`
		CanvasSettings json.RawMessage          `json:"canvasSettings"`
	}
	if err := json.Unmarshal(doc, &raw); err != nil {
		return Snapshot{}, &ImportError{Problems: []string{err.Error()}}
	}
	s := settings.Default()
	if err := json.Unmarshal(raw.CanvasSettings, &s); err != nil {
		// timestamps in foreign documents are not always RFC 3339
		var loose map[string]json.RawMessage
		_ = json.Unmarshal(raw.CanvasSettings, &loose)
		delete(loose, "createdAt")
		delete(loose, "updatedAt")
		b, _ := json.Marshal(loose)
		s = settings.Default()
		if err := json.Unmarshal(b, &s); err != nil {
			return Snapshot{}, &ImportError{Problems: []string{"canvasSettings: " + err.Error()}}
		}
	}
	if err := settings.Validate(s); err != nil {
		return Snapshot{}, &ImportError{Problems: []string{err.Error()}}
	}
	return Snapshot{Components: raw.Components, CanvasSettings: s}, nil
}
