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

// Package export writes an answer table to a file. The format follows the
// file extension: .xlsx, .csv or .json.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Sheet names of the workbook.
const (
	ResultSheet  = "Result"
	SummarySheet = "Summary"
)

// Table is the exported answer.
type Table struct {
	Columns []string        `json:"columns"`
	Rows    []resultset.Row `json:"table"`
	Summary string          `json:"summary,omitempty"`
}

// NewTable builds a table from rendered rows. Columns come from the first
// row when none are given.
func NewTable(columns []string, rows []resultset.Row, summary string) Table {
	if len(columns) == 0 && len(rows) > 0 {
		columns = rows[0].Names()
	}
	if rows == nil {
		rows = []resultset.Row{}
	}
	return Table{Columns: columns, Rows: rows, Summary: summary}
}

// records returns the header and cells in column order.
func (t Table) records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Columns)
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, name := range t.Columns {
			cells[i], _ = row.Get(name)
		}
		out = append(out, cells)
	}
	return out
}

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch f := Format(ext); f {
	case FormatXLSX, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want .xlsx, .csv or .json)", filepath.Ext(path))
	}
}

// WriteFile writes t to path in the format named by its extension.
func WriteFile(path string, t Table) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	switch format {
	case FormatXLSX:
		return writeXLSX(path, t)
	case FormatCSV:
		return writeCSV(path, t)
	default:
		return writeJSON(path, t)
	}
}

func writeXLSX(path string, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ResultSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for rowIdx, record := range t.records() {
		for colIdx, val := range record {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(ResultSheet, cell, val); err != nil {
				return fmt.Errorf("set %s: %w", cell, err)
			}
		}
	}

	if len(t.Columns) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("create header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(t.Columns), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(ResultSheet, "A1", last, bold); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}

	if t.Summary != "" {
		if _, err := f.NewSheet(SummarySheet); err != nil {
			return fmt.Errorf("create summary sheet: %w", err)
		}
		if err := f.SetCellValue(SummarySheet, "A1", t.Summary); err != nil {
			return fmt.Errorf("set summary: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeCSV(path string, t Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	if err := w.WriteAll(t.records()); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func writeJSON(path string, t Table) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
