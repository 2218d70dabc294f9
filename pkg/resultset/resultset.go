// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resultset holds the tabular result model returned by the engine
// and renders it as text or JSON row objects.
package resultset

import "fmt"

// ResultSet is the primary table of an engine response.
type ResultSet struct {
	Columns []string
	Rows    [][]Value
}

// Empty returns an acknowledgment result with no columns and no rows.
func Empty() *ResultSet {
	return &ResultSet{Columns: []string{}, Rows: [][]Value{}}
}

// Validate checks that column names are unique and every row has one
// value per column.
func (rs *ResultSet) Validate() error {
	if rs == nil {
		return fmt.Errorf("result set is nil")
	}
	seen := make(map[string]struct{}, len(rs.Columns))
	for _, col := range rs.Columns {
		if _, dup := seen[col]; dup {
			return fmt.Errorf("duplicate column name %q", col)
		}
		seen[col] = struct{}{}
	}
	for i, row := range rs.Rows {
		if len(row) != len(rs.Columns) {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(rs.Columns))
		}
	}
	return nil
}

// IsEmpty reports whether the result has no rows.
func (rs *ResultSet) IsEmpty() bool {
	return rs == nil || len(rs.Rows) == 0
}

// Equal reports whether both results carry the same columns and cells in
// the same order.
func (rs *ResultSet) Equal(other *ResultSet) bool {
	if rs == nil || other == nil {
		return rs == other
	}
	if len(rs.Columns) != len(other.Columns) || len(rs.Rows) != len(other.Rows) {
		return false
	}
	for i := range rs.Columns {
		if rs.Columns[i] != other.Columns[i] {
			return false
		}
	}
	for i := range rs.Rows {
		if len(rs.Rows[i]) != len(other.Rows[i]) {
			return false
		}
		for j := range rs.Rows[i] {
			if !rs.Rows[i][j].Equal(other.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}
