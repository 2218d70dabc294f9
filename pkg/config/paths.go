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

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDirEnv overrides the data directory.
const DataDirEnv = "KQLBRIDGE_DATA_DIR"

// DataDir returns the directory searched first for kqlbridge.yaml.
//
// Priority:
// 1. KQLBRIDGE_DATA_DIR (if set and non-empty)
// 2. ~/.kqlbridge
//
// The result is absolute and a leading ~ is expanded. DataDir reads the
// environment directly since it runs before the configuration is loaded.
func DataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return expandPath(dir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".kqlbridge"
	}
	return filepath.Join(homeDir, ".kqlbridge")
}

// expandPath expands ~ and resolves to an absolute path.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/"))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
