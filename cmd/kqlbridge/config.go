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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/kqlbridge/pkg/config"
)

const masked = "********"

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration and manage secrets",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the merged configuration (secrets masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.OutOrStdout(), a.cfg)
		},
	}

	listKeys := &cobra.Command{
		Use:   "list-keys",
		Short: "List secrets that can be stored in the keyring",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, k := range config.ListAvailableSecretKeys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}

	setKey := &cobra.Command{
		Use:   "set-key <key-name>",
		Short: "Save a secret to the system keyring",
		Long: `Save a secret to the system keyring (Keychain on macOS, Credential
Manager on Windows, Secret Service on Linux). The value is read from the
terminal without echo, or from the first line of stdin when piped.

Run 'kqlbridge config list-keys' to see available key names.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			if err := config.SaveSecretToKeyring(args[0], secret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to system keyring\n", args[0])
			return nil
		},
	}

	deleteKey := &cobra.Command{
		Use:   "delete-key <key-name>",
		Short: "Remove a secret from the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteSecretFromKeyring(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s from system keyring\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(show, listKeys, setKey, deleteKey)
	return cmd
}

func showConfig(w io.Writer, cfg *config.Config) error {
	c := *cfg
	if c.Engine.Auth.ClientSecret != "" {
		c.Engine.Auth.ClientSecret = masked
	}
	if c.LLM.APIKey != "" {
		c.LLM.APIKey = masked
	}
	out, err := yaml.Marshal(&c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// readSecret reads without echo from a terminal, else the first line of in.
func readSecret(in io.Reader, prompt io.Writer, name string) (string, error) {
	if !config.IsSecretKey(name) {
		return "", fmt.Errorf("unknown secret %q (available: %s)", name, strings.Join(config.ListAvailableSecretKeys(), ", "))
	}

	var secret string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(prompt, "Enter %s (input hidden): ", name)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		secret = string(b)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read input: %w", err)
		}
		secret = line
	}

	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	return secret, nil
}
