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
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabaseConnector reaches the database behind a database-type source.
type DatabaseConnector interface {
	Test(ctx context.Context, c DatabaseConfig) error
	Sample(ctx context.Context, c DatabaseConfig) (rows []Row, cols []string, err error)
}

// StubConnector accepts every connection and returns no rows.
type StubConnector struct{}

func (StubConnector) Test(context.Context, DatabaseConfig) error { return nil }

func (StubConnector) Sample(context.Context, DatabaseConfig) ([]Row, []string, error) {
	return nil, nil, nil
}

// DefaultSampleLimit caps rows read from a database query.
const DefaultSampleLimit = 100

// PgxConnector talks to PostgreSQL through one pgxpool per connection string.
type PgxConnector struct {
	SampleLimit int

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

func NewPgxConnector() *PgxConnector {
	return &PgxConnector{SampleLimit: DefaultSampleLimit, pools: map[string]*pgxpool.Pool{}}
}

func (p *PgxConnector) pool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("connection string is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if pl, ok := p.pools[dsn]; ok {
		return pl, nil
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	cfg.MaxConns = 2
	pl, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	p.pools[dsn] = pl
	return pl, nil
}

func (p *PgxConnector) Test(ctx context.Context, c DatabaseConfig) error {
	pl, err := p.pool(ctx, c.ConnectionString)
	if err != nil {
		return err
	}
	if err := pl.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Sample runs the configured query and reads at most SampleLimit rows.
func (p *PgxConnector) Sample(ctx context.Context, c DatabaseConfig) ([]Row, []string, error) {
	if strings.TrimSpace(c.Query) == "" {
		return nil, nil, nil
	}
	pl, err := p.pool(ctx, c.ConnectionString)
	if err != nil {
		return nil, nil, err
	}
	rows, err := pl.Query(ctx, c.Query)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var cols []string
	for _, fd := range rows.FieldDescriptions() {
		cols = append(cols, fd.Name)
	}
	limit := p.SampleLimit
	if limit <= 0 {
		limit = DefaultSampleLimit
	}
	var out []Row
	for len(out) < limit && rows.Next() {
		m, err := pgx.RowToMap(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	return out, cols, nil
}

// Close releases every pool.
func (p *PgxConnector) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, pl := range p.pools {
		pl.Close()
		delete(p.pools, k)
	}
}
