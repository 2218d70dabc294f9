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

import "fmt"

// ErrorKind classifies a failed operation.
type ErrorKind string

const (
	KindQueryFailed       ErrorKind = "query_failed"
	KindTableCreateFailed ErrorKind = "table_create_failed"
	KindIngestFailed      ErrorKind = "ingest_failed"
	KindUnsupported       ErrorKind = "unsupported_operation"
)

// BridgeError is the only error Execute returns. Message carries the
// engine's text unchanged.
type BridgeError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

func newBridgeError(kind ErrorKind, err error) *BridgeError {
	return &BridgeError{Kind: kind, Message: err.Error(), Err: err}
}
