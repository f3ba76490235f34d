/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "invoicedesigner/internal/log"
)

const (
	DefaultCacheTTL    = 60 * time.Second
	DefaultHTTPTimeout = 15 * time.Second
)

type Options struct {
	HTTPClient *http.Client
	Database   DatabaseConnector
	CacheTTL   time.Duration
}

// Registry owns the data sources of one designer session. Network and database calls run without
// the lock held; their results are committed only if the source still exists with the same config
// generation.
type Registry struct {
	client *http.Client
	db     DatabaseConnector
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
	// tick is the unit of Refresh.RefreshInterval.
	tick time.Duration
	log  *slog.Logger

	mu       sync.Mutex
	sources  map[string]*entry
	mappings map[string][]Mapping
	closed   bool
}

type entry struct {
	src   DataSource
	gen   uint64
	cache *cached
	timer *refresher
}

type cached struct {
	s  sample
	at time.Time
}

type refresher struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the ticker and waits for an in-flight refresh to return.
func (t *refresher) stop() {
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}

func NewRegistry(opts Options) *Registry {
	r := &Registry{
		client:   opts.HTTPClient,
		db:       opts.Database,
		ttl:      opts.CacheTTL,
		now:      time.Now,
		newID:    uuid.NewString,
		tick:     time.Second,
		log:      applog.WithComponent("datasource"),
		sources:  map[string]*entry{},
		mappings: map[string][]Mapping{},
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if r.db == nil {
		r.db = StubConnector{}
	}
	if r.ttl <= 0 {
		r.ttl = DefaultCacheTTL
	}
	return r
}

func (s DataSource) clone() DataSource {
	s.Fields = append([]DataField{}, s.Fields...)
	if s.LastSync != nil {
		t := *s.LastSync
		s.LastSync = &t
	}
	return s
}

// Create registers the source in status loading, tests it and discovers its fields. Connection or
// parse failures do not fail Create; they leave the source in status error with LastError set.
func (r *Registry) Create(ctx context.Context, in Input) (DataSource, error) {
	if strings.TrimSpace(in.Name) == "" {
		return DataSource{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if err := validateConfig(in.Config); err != nil {
		return DataSource{}, err
	}
	if in.Type == "" {
		in.Type = in.Config.Kind()
	}
	if in.Type != in.Config.Kind() {
		return DataSource{}, fmt.Errorf("%w: type %q does not match %s config", ErrInvalid, in.Type, in.Config.Kind())
	}
	src := DataSource{
		ID:        r.newID(),
		Name:      in.Name,
		Type:      in.Type,
		Config:    in.Config,
		Status:    StatusLoading,
		Fields:    []DataField{},
		CreatedAt: r.now().UTC(),
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return DataSource{}, errors.New("data source registry is closed")
	}
	r.sources[src.ID] = &entry{src: src, gen: 1}
	r.mu.Unlock()

	r.log.Info("data source created", slog.String("id", src.ID), slog.String("type", string(src.Type)))
	return r.probe(ctx, src.ID, 1, src), nil
}

// probe tests and samples the source, then commits status and fields if gen is still current.
func (r *Registry) probe(ctx context.Context, id string, gen uint64, src DataSource) DataSource {
	s, err := r.sampleWithTest(ctx, src.Config)

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sources[id]
	if !ok || e.gen != gen {
		r.log.Debug("discarding stale probe result", slog.String("id", id))
		if ok {
			return e.src.clone()
		}
		return src
	}
	now := r.now().UTC()
	if err != nil {
		e.src.Status = StatusError
		e.src.LastError = err.Error()
		r.log.Warn("data source probe failed", slog.String("id", id), slog.Any("err", err))
		return e.src.clone()
	}
	e.src.Status = StatusConnected
	e.src.LastError = ""
	e.src.Fields = discover(s)
	e.src.LastSync = &now
	e.cache = &cached{s: s, at: now}
	r.arm(id, e)
	return e.src.clone()
}

func (r *Registry) sampleWithTest(ctx context.Context, c Config) (sample, error) {
	if err := r.test(ctx, c); err != nil {
		return sample{}, err
	}
	return r.fetch(ctx, c)
}

// Update renames and/or reconfigures a source. A new config cancels the refresh ticker, drops the
// cache and re-runs the probe; failures are recorded on the source as in Create.
func (r *Registry) Update(ctx context.Context, id string, p Patch) (DataSource, error) {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return DataSource{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if p.Config != nil {
		if err := validateConfig(p.Config); err != nil {
			return DataSource{}, err
		}
	}

	r.mu.Lock()
	e, ok := r.sources[id]
	if !ok {
		r.mu.Unlock()
		return DataSource{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if p.Config != nil && p.Config.Kind() != e.src.Type {
		r.mu.Unlock()
		return DataSource{}, fmt.Errorf("%w: cannot change type %s to %s", ErrInvalid, e.src.Type, p.Config.Kind())
	}
	if p.Name != nil {
		e.src.Name = *p.Name
	}
	if p.Config == nil {
		out := e.src.clone()
		r.mu.Unlock()
		return out, nil
	}
	e.gen++
	gen := e.gen
	e.src.Config = p.Config
	e.src.Status = StatusLoading
	e.cache = nil
	t := e.timer
	e.timer = nil
	src := e.src.clone()
	r.mu.Unlock()

	t.stop()
	return r.probe(ctx, id, gen, src), nil
}

// Refresh re-runs the probe on demand (connected → loading → connected|error).
func (r *Registry) Refresh(ctx context.Context, id string) (DataSource, error) {
	r.mu.Lock()
	e, ok := r.sources[id]
	if !ok {
		r.mu.Unlock()
		return DataSource{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.src.Status = StatusLoading
	gen, src := e.gen, e.src.clone()
	r.mu.Unlock()

	out := r.probe(ctx, id, gen, src)
	if out.Status == StatusError {
		return out, errors.New(out.LastError)
	}
	return out, nil
}

func (r *Registry) Get(id string) (DataSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sources[id]
	if !ok {
		return DataSource{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.src.clone(), nil
}

// List returns all sources in creation order.
func (r *Registry) List() []DataSource {
	r.mu.Lock()
	out := make([]DataSource, 0, len(r.sources))
	for _, e := range r.sources {
		out = append(out, e.src.clone())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) config(id string) (Config, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sources[id]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.src.Config, e.gen, nil
}

// TestConnection checks the source is reachable and returns the failure if not.
func (r *Registry) TestConnection(ctx context.Context, id string) error {
	cfg, _, err := r.config(id)
	if err != nil {
		return err
	}
	return r.test(ctx, cfg)
}

// DiscoverFields samples the source and describes the first record without changing the source.
func (r *Registry) DiscoverFields(ctx context.Context, id string) ([]DataField, error) {
	cfg, _, err := r.config(id)
	if err != nil {
		return nil, err
	}
	s, err := r.fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return discover(s), nil
}

// FetchData returns rows from the cache when useCache is set and the entry is younger than the
// TTL; otherwise it re-fetches, refreshes the cache and LastSync. A failed fetch marks the source
// as errored and returns the failure.
func (r *Registry) FetchData(ctx context.Context, id string, useCache bool) ([]Row, error) {
	r.mu.Lock()
	e, ok := r.sources[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if useCache && e.cache != nil && r.now().Sub(e.cache.at) < r.ttl {
		rows := cloneRows(e.cache.s.rows)
		r.mu.Unlock()
		return rows, nil
	}
	cfg, gen := e.src.Config, e.gen
	r.mu.Unlock()
	return r.fetchAndCommit(ctx, id, gen, cfg)
}

func (r *Registry) fetchAndCommit(ctx context.Context, id string, gen uint64, cfg Config) ([]Row, error) {
	s, err := r.fetch(ctx, cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.gen != gen || ctx.Err() != nil {
		// reconfigured or cancelled meanwhile: hand back the result but keep the source untouched
		if err != nil {
			return nil, err
		}
		return cloneRows(s.rows), nil
	}
	if err != nil {
		e.src.Status = StatusError
		e.src.LastError = err.Error()
		r.log.Warn("data source fetch failed", slog.String("id", id), slog.Any("err", err))
		return nil, err
	}
	now := r.now().UTC()
	e.cache = &cached{s: s, at: now}
	e.src.LastSync = &now
	return cloneRows(s.rows), nil
}

// arm starts the auto-refresh ticker for e. Caller holds r.mu.
func (r *Registry) arm(id string, e *entry) {
	pol := e.src.Config.RefreshPolicy()
	if !pol.AutoRefresh || pol.RefreshInterval <= 0 || e.timer != nil || r.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &refresher{cancel: cancel, done: make(chan struct{})}
	e.timer = t
	gen, cfg := e.gen, e.src.Config
	every := time.Duration(pol.RefreshInterval) * r.tick
	l := r.log.With(slog.String("id", id))
	l.Debug("auto-refresh armed", slog.Duration("every", every))

	go func() {
		defer close(t.done)
		tk := time.NewTicker(every)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if _, err := r.fetchAndCommit(ctx, id, gen, cfg); err != nil && ctx.Err() == nil {
					l.Warn("auto-refresh failed", slog.Any("err", err))
				}
			}
		}
	}()
}

// ActiveRefreshers reports how many auto-refresh tickers are running.
func (r *Registry) ActiveRefreshers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.sources {
		if e.timer != nil {
			n++
		}
	}
	return n
}

// Delete cancels the source's ticker, drops its cache and mappings, and removes it. When Delete
// returns no refresh for the source is running.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.sources[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.sources, id)
	delete(r.mappings, id)
	for table, ms := range r.mappings {
		kept := ms[:0:0]
		for _, m := range ms {
			if m.SourceID != id {
				kept = append(kept, m)
			}
		}
		r.mappings[table] = kept
	}
	t := e.timer
	e.timer = nil
	r.mu.Unlock()

	t.stop()
	r.log.Info("data source deleted", slog.String("id", id))
	return nil
}

// SetMapping replaces the mappings of a table.
func (r *Registry) SetMapping(tableID string, ms []Mapping) error {
	if strings.TrimSpace(tableID) == "" {
		return fmt.Errorf("%w: table id is required", ErrInvalid)
	}
	for i, m := range ms {
		if m.SourceField == "" || m.TargetField == "" {
			return fmt.Errorf("%w: mapping %d needs sourceField and targetField", ErrInvalid, i)
		}
	}
	r.mu.Lock()
	r.mappings[tableID] = append([]Mapping(nil), ms...)
	r.mu.Unlock()
	return nil
}

func (r *Registry) GetMapping(tableID string) []Mapping {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mapping{}, r.mappings[tableID]...)
}

// ApplyMapping fetches the source's rows (cache allowed) and renames their keys per the table's
// mappings. Without mappings rows are returned as fetched.
func (r *Registry) ApplyMapping(ctx context.Context, tableID, sourceID string) ([]Row, error) {
	ms := r.GetMapping(tableID)
	rows, err := r.FetchData(ctx, sourceID, true)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return rows, nil
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		mapped := make(Row, len(ms))
		for _, m := range ms {
			mapped[m.TargetField] = applyTransform(row[m.SourceField], m.Transform)
		}
		out = append(out, mapped)
	}
	return out, nil
}

// Close stops every ticker. Sources stay readable; new sources are refused.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	var timers []*refresher
	for _, e := range r.sources {
		if e.timer != nil {
			timers = append(timers, e.timer)
			e.timer = nil
		}
	}
	r.mu.Unlock()
	for _, t := range timers {
		t.stop()
	}
}
