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

package executor

import (
	"fmt"

	"github.com/teradata-labs/kqlbridge/pkg/registry"
)

// CreateTableCommand builds the control command for a CreateTable, keeping
// the caller's column order.
func CreateTableCommand(op registry.CreateTable) string {
	return fmt.Sprintf(".create table %s (%s)", op.Table, registry.FormatColumns(op.Columns))
}

// IngestCommand builds the inline ingestion command. The payload follows
// the "<|" separator verbatim.
func IngestCommand(op registry.IngestInline) string {
	if op.Format == registry.FormatJSON {
		return fmt.Sprintf(".ingest inline into table %s with (format='json') <|\n%s", op.Table, op.Payload)
	}
	return fmt.Sprintf(".ingest inline into table %s <|\n%s", op.Table, op.Payload)
}
