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
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/kqlbridge/internal/version"
	"github.com/teradata-labs/kqlbridge/pkg/config"
	"github.com/teradata-labs/kqlbridge/pkg/kusto"
)

// app is the state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger

	// newEngine connects to the cluster. Tests replace it with a fake.
	newEngine func(kusto.Config, *zap.Logger) (kusto.Client, error)
}

func newApp() *app {
	return &app{
		v:      viper.New(),
		logger: zap.NewNop(),
		newEngine: func(cfg kusto.Config, logger *zap.Logger) (kusto.Client, error) {
			return kusto.NewClient(cfg, logger)
		},
	}
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd(newApp()).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "kqlbridge",
		Short: "Azure Data Explorer tools over MCP, with a Claude front end",
		Long: `kqlbridge serves an Azure Data Explorer database as three MCP tools
(adx_query, adx_create_table, adx_ingest_inline) and answers questions by
letting Claude pick one tool call per question.`,
		Version:       version.Get(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			_ = a.logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: $KQLBRIDGE_DATA_DIR/kqlbridge.yaml)")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.String("log-file", "", "Log file (default: stderr)")
	_ = a.v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.file", pf.Lookup("log-file"))

	root.AddCommand(
		newServeCmd(a),
		newAskCmd(a),
		newToolsCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// init loads the configuration and builds the logger.
func (a *app) init() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := buildLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
