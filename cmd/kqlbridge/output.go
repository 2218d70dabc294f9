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

package main

import (
	"fmt"
	"io"
	"os"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"golang.org/x/term"

	"github.com/teradata-labs/kqlbridge/pkg/orchestrator"
	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	noticeStyle  = lipgloss.NewStyle().Faint(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderTable draws rows as a bordered table. Columns default to the
// field names of the first row.
func renderTable(columns []string, rows []resultset.Row) string {
	if len(columns) == 0 && len(rows) > 0 {
		columns = rows[0].Names()
	}
	data := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(columns))
		for j, name := range columns {
			cells[j], _ = row.Get(name)
		}
		data[i] = cells
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(columns...).
		Rows(data...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

// printAnswer writes an answer. Styled output draws answered tables; plain
// output prints the answer text as the tool or model produced it.
func printAnswer(w io.Writer, ans *orchestrator.Answer, styled bool) {
	if !styled {
		fmt.Fprintln(w, ans.Text)
		if ans.Message != "" {
			fmt.Fprintln(w, ans.Message)
		}
		return
	}

	switch {
	case ans.Outcome == orchestrator.OutcomeFailed, ans.Outcome == orchestrator.OutcomeTruncated:
		fmt.Fprintln(w, failureStyle.Render(ans.Text))
	case ans.Outcome == orchestrator.OutcomeAnswered && len(ans.Table) > 0:
		fmt.Fprintln(w, renderTable(ans.Columns, ans.Table))
		if ans.Summary != "" {
			fmt.Fprintln(w, ans.Summary)
		}
	case ans.Outcome == orchestrator.OutcomeAnswered && ans.Summary != "":
		fmt.Fprintln(w, ans.Summary)
	default:
		fmt.Fprintln(w, ans.Text)
	}
	if ans.Message != "" {
		fmt.Fprintln(w, noticeStyle.Render(ans.Message))
	}
}
