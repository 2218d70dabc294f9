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

// kqlbridge exposes an Azure Data Explorer database as MCP tools and answers
// natural-language questions against it through Claude.
//
// Usage:
//
//	kqlbridge serve [--transport stdio|http]   # run the tool server
//	kqlbridge ask "how many errors today?"     # ask one question
//	kqlbridge ask                              # interactive loop
//	kqlbridge tools --format yaml              # print the tool registry
//
// Logs never go to stdout: it carries the stdio transport.
package main

func main() {
	Execute()
}
