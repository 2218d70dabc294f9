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

package resultset

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// EmptyMarker replaces the text rendering of a result with no rows.
	EmptyMarker = "(no rows)"

	// ColumnSeparator joins cells in the text rendering.
	ColumnSeparator = " | "
)

// Mode selects a rendering.
type Mode string

const (
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeText:
		return ModeText, nil
	case ModeJSON:
		return ModeJSON, nil
	default:
		return "", fmt.Errorf("unknown render mode %q (must be text or json)", s)
	}
}

// RenderText renders a header line followed by one line per row, cells
// joined by ColumnSeparator. A result without rows renders as EmptyMarker.
func RenderText(rs *ResultSet) string {
	if rs.IsEmpty() {
		return EmptyMarker
	}

	lines := make([]string, 0, len(rs.Rows)+1)
	lines = append(lines, strings.Join(rs.Columns, ColumnSeparator))
	cells := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i, v := range row {
			cells[i] = v.String()
		}
		lines = append(lines, strings.Join(cells, ColumnSeparator))
	}
	return strings.Join(lines, "\n")
}

// Rows converts every row into an ordered row object of textual values.
// The result is never nil.
func Rows(rs *ResultSet) []Row {
	if rs.IsEmpty() {
		return []Row{}
	}
	rows := make([]Row, 0, len(rs.Rows))
	for _, values := range rs.Rows {
		row := make(Row, len(rs.Columns))
		for i, col := range rs.Columns {
			row[i] = Field{Name: col, Value: values[i].String()}
		}
		rows = append(rows, row)
	}
	return rows
}

// RenderJSON encodes Rows(rs) as a JSON array. No rows encode as [].
func RenderJSON(rs *ResultSet) ([]byte, error) {
	data, err := json.Marshal(Rows(rs))
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return data, nil
}

// Render renders rs in the requested mode.
func Render(rs *ResultSet, mode Mode) (string, error) {
	switch mode {
	case ModeText:
		return RenderText(rs), nil
	case ModeJSON:
		data, err := RenderJSON(rs)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown render mode %q", mode)
	}
}
