// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package paramstore resolves the master role's deployment
// parameters (bucket name, security group, subnet, cluster/task ARNs)
// once at startup.
package paramstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Store resolves a named parameter to its current value.
type Store interface {
	Value(ctx context.Context, name string) (string, error)
}

// SQLStore resolves parameters from a row store reachable through
// database/sql, without importing any concrete driver — the same
// no-driver-imported shape the rate limiter's Postgres persister
// used, since the concrete driver is an operator choice (sql.Open's
// driverName argument), not a compile-time dependency of this
// package.
type SQLStore struct {
	DB    *sql.DB
	Table string
}

// NewSQLStore returns a Store backed by db, reading from a table
// shaped (name TEXT PRIMARY KEY, value TEXT).
func NewSQLStore(db *sql.DB, table string) *SQLStore {
	if table == "" {
		table = "parameters"
	}
	return &SQLStore{DB: db, Table: table}
}

func (s *SQLStore) Value(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE name = $1", s.Table)
	row := s.DB.QueryRowContext(ctx, query, name)
	var value string
	if err := row.Scan(&value); err != nil {
		return "", fmt.Errorf("paramstore: resolve %q: %w", name, err)
	}
	return value, nil
}
