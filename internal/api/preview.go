/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoicedesigner/internal/canvas"
	"invoicedesigner/internal/settings"
)

// PreviewTTL bounds how long a handed-off layout can be picked up.
const PreviewTTL = 5 * time.Minute

// PreviewPayload is what the preview page renders.
type PreviewPayload struct {
	Name       string                   `json:"name"`
	Components []canvas.PlacedComponent `json:"components"`
	Settings   settings.CanvasSettings  `json:"settings"`
}

type previewEntry struct {
	payload PreviewPayload
	expires time.Time
}

// previewStore keeps single-use handoff tokens.
type previewStore struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]previewEntry
}

func newPreviewStore(ttl time.Duration) *previewStore {
	return &previewStore{ttl: ttl, now: time.Now, entries: map[string]previewEntry{}}
}

func (p *previewStore) put(pl PreviewPayload) (string, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for k, e := range p.entries {
		if !now.Before(e.expires) {
			delete(p.entries, k)
		}
	}
	tok := uuid.NewString()
	exp := now.Add(p.ttl)
	p.entries[tok] = previewEntry{payload: pl, expires: exp}
	return tok, exp
}

// take returns the payload once; expired or used tokens fail.
func (p *previewStore) take(tok string) (PreviewPayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[tok]
	if !ok {
		return PreviewPayload{}, errPreviewGone
	}
	delete(p.entries, tok)
	if !p.now().Before(e.expires) {
		return PreviewPayload{}, fmt.Errorf("%w: %s", errPreviewGone, tok)
	}
	return e.payload, nil
}
