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

package orchestrator

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
)

// DefaultTables describes the tables the model may query when none are
// configured.
var DefaultTables = []string{"AppLogs (Timestamp, Level, Message, Service, Host, UserId)"}

// FormatInstructions is the JSON output contract given to the model.
var FormatInstructions = heredoc.Doc(`
	Return ONLY a valid JSON object with exactly two keys:
	  "table":   an array of row objects, one per result row, mapping each ADX column
	             name to its value rendered as a string
	  "summary": a string of 1-2 concise sentences on what the query returned
	             (counts, trends, anomalies) and briefly what the query did

	Rules:
	- Preserve the exact ADX column names and row order returned by the tool. Do not add,
	  rename, or drop columns.
	- If the result set is empty, return "table": [] and say so in "summary".
	- Do NOT include any other top-level keys, code fences, or prose.
	- If the input is not a valid ADX KQL query, respond with exactly the string:
	  not allowed
	  and nothing else.
`)

// MarkerSystemPrompt is the system prompt of the plain-text contract.
func MarkerSystemPrompt(tables []string) string {
	return heredoc.Docf(`
		You are a KQL expert and Azure Data Explorer administrator. You can help with
		queries and table management.

		Available tools:
		1. adx_query - Run KQL queries
		2. adx_create_table - Create new tables
		3. adx_ingest_inline - Add data to tables

		Available tables: %s

		For queries, respond with:
		QUERY: [KQL query]

		For table creation, respond with:
		CREATE_TABLE: [table_name]
		SCHEMA: [column definitions in Kusto syntax]

		Examples:
		- "Show me log levels from the last hour" → QUERY: AppLogs | where Timestamp > ago(1h) | summarize Count = count() by Level
		- "Show me all errors" → QUERY: AppLogs | where Level == 'ERROR'
		- "Create a users table with id, name, email" →
		CREATE_TABLE: Users
		SCHEMA: Id:int, Name:string, Email:string

		Respond with the appropriate format. Do not include any explanations, comments,
		or additional text after the query.
	`, tableList(tables))
}

// JSONSystemPrompt is the system prompt of the JSON contract.
func JSONSystemPrompt(tables []string) string {
	return heredoc.Docf(`
		You are a KQL expert and Azure Data Explorer administrator.

		The user's input should be a KQL query. It has already been run with the adx_query
		tool and either its result rows (as JSON) or the tool's error are attached. When the
		tool failed and the input is not KQL, reply not allowed. When the tool failed on a
		KQL query, return "table": [] and name the error in "summary".

		Available tables: %s

		Output contract:
		%s
		If a column value is non-string (datetime, int, bool, dynamic), use its standard
		ADX textual rendering. No extra text, code fences, or markdown: JSON only.
	`, tableList(tables), FormatInstructions)
}

// JSONUserPrompt combines the query and the tool's rows.
func JSONUserPrompt(query, rowsJSON string) string {
	return fmt.Sprintf("KQL query:\n%s\n\nTool result rows (JSON):\n%s", query, rowsJSON)
}

// JSONFailurePrompt combines the query and the tool's error.
func JSONFailurePrompt(query, failure string) string {
	return fmt.Sprintf("KQL query:\n%s\n\nTool error:\n%s", query, failure)
}

func tableList(tables []string) string {
	if len(tables) == 0 {
		tables = DefaultTables
	}
	return strings.Join(tables, "; ")
}
