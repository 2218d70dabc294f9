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

// Package config loads kqlbridge settings from defaults, a YAML file, the
// environment (including a .env file), command-line flags and the OS
// keyring.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"github.com/zalando/go-keyring"

	"github.com/teradata-labs/kqlbridge/pkg/kusto"
	"github.com/teradata-labs/kqlbridge/pkg/llm"
	"github.com/teradata-labs/kqlbridge/pkg/llm/anthropic"
	"github.com/teradata-labs/kqlbridge/pkg/orchestrator"
)

const (
	// ServiceName is the keyring service secrets are stored under.
	ServiceName = "kqlbridge"
	// DefaultConfigFileName is the config file name without extension.
	DefaultConfigFileName = "kqlbridge"
	// EnvPrefix prefixes environment variables derived from config keys.
	EnvPrefix = "KQLBRIDGE"
	// DotEnvFile is loaded from the working directory when present.
	DotEnvFile = ".env"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the full process configuration.
type Config struct {
	DataDir string `mapstructure:"-" yaml:"data_dir"`

	Engine       EngineConfig       `mapstructure:"engine" yaml:"engine"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// EngineConfig locates the cluster and database.
type EngineConfig struct {
	ClusterURI string     `mapstructure:"cluster_uri" yaml:"cluster_uri"`
	Database   string     `mapstructure:"database" yaml:"database"`
	Serialize  bool       `mapstructure:"serialize" yaml:"serialize"`
	Auth       AuthConfig `mapstructure:"auth" yaml:"auth"`
}

// AuthConfig selects and parameterizes the authentication path.
type AuthConfig struct {
	Mode         string `mapstructure:"mode" yaml:"mode"`
	TenantID     string `mapstructure:"tenant_id" yaml:"tenant_id"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"` // From env/keyring
}

// ServerConfig configures the tool server.
type ServerConfig struct {
	Transport  string        `mapstructure:"transport" yaml:"transport"`
	Host       string        `mapstructure:"host" yaml:"host"`
	Port       int           `mapstructure:"port" yaml:"port"`
	Path       string        `mapstructure:"path" yaml:"path"`
	SessionTTL time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	Compress   bool          `mapstructure:"compress" yaml:"compress"`
}

// LLMConfig configures the language model used by the orchestrator.
type LLMConfig struct {
	Provider      string        `mapstructure:"provider" yaml:"provider"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key"` // From env/keyring
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	Model         string        `mapstructure:"model" yaml:"model"`
	MaxTokens     int64         `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature   float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	BedrockRegion string        `mapstructure:"bedrock_region" yaml:"bedrock_region"`
}

// OrchestratorConfig configures question answering.
type OrchestratorConfig struct {
	Contract  string   `mapstructure:"contract" yaml:"contract"`
	ServerURL string   `mapstructure:"server_url" yaml:"server_url"`
	Tables    []string `mapstructure:"tables" yaml:"tables"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// envAliases are environment variables accepted besides the prefixed name
// of a key. Earlier names win.
var envAliases = map[string][]string{
	"engine.cluster_uri":        {"ADX_CLUSTER_URI"},
	"engine.database":           {"ADX_DATABASE"},
	"engine.auth.tenant_id":     {"AZURE_TENANT_ID"},
	"engine.auth.client_id":     {"AZURE_CLIENT_ID"},
	"engine.auth.client_secret": {"AZURE_CLIENT_SECRET"},
	"llm.api_key":               {"CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
}

// boundKeys have no default, so they are bound explicitly to be visible to
// Unmarshal.
var boundKeys = []string{
	"engine.cluster_uri",
	"engine.database",
	"engine.auth.mode",
	"engine.auth.tenant_id",
	"engine.auth.client_id",
	"engine.auth.client_secret",
	"llm.api_key",
	"llm.base_url",
	"orchestrator.server_url",
	"logging.file",
}

// Load reads the configuration. Priority, highest first:
// 1. Flags bound to v by the caller
// 2. Environment variables (a .env file fills in unset ones)
// 3. Config file
// 4. Defaults
//
// Secrets still empty afterwards are looked up in the OS keyring. A nil v
// uses a fresh viper instance.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	setDefaults(v)

	dataDir := DataDir()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dataDir)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/kqlbridge/")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range boundKeys {
		names := append([]string{envName(key)}, envAliases[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DataDir = dataDir

	// Keyring might not be available; secrets can still come from env.
	loadSecretsFromKeyring(&cfg)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.serialize", true)

	v.SetDefault("server.transport", TransportStdio)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.path", "/mcp")
	v.SetDefault("server.session_ttl", 30*time.Minute)
	v.SetDefault("server.compress", true)

	v.SetDefault("llm.provider", llm.ProviderAnthropic)
	v.SetDefault("llm.model", anthropic.DefaultModel)
	v.SetDefault("llm.max_tokens", anthropic.DefaultMaxTokens)
	v.SetDefault("llm.temperature", anthropic.DefaultTemperature)
	v.SetDefault("llm.timeout", anthropic.DefaultTimeout)
	v.SetDefault("llm.bedrock_region", anthropic.DefaultBedrockRegion)

	v.SetDefault("orchestrator.contract", string(orchestrator.ContractMarker))
	v.SetDefault("orchestrator.tables", orchestrator.DefaultTables)

	v.SetDefault("logging.level", "warn")
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// loadDotEnv fills unset environment variables from path, if it exists.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// SecretMapping ties a keyring key to the config field it fills.
type SecretMapping struct {
	KeyringKey string
	Setter     func(*Config, string)
	IsSet      func(*Config) bool
}

// GetSecretMappings returns every secret that can come from the keyring.
func GetSecretMappings() []SecretMapping {
	return []SecretMapping{
		{
			KeyringKey: "azure_client_secret",
			Setter:     func(c *Config, v string) { c.Engine.Auth.ClientSecret = v },
			IsSet:      func(c *Config) bool { return c.Engine.Auth.ClientSecret != "" },
		},
		{
			KeyringKey: "anthropic_api_key",
			Setter:     func(c *Config, v string) { c.LLM.APIKey = v },
			IsSet:      func(c *Config) bool { return c.LLM.APIKey != "" },
		},
	}
}

func loadSecretsFromKeyring(cfg *Config) {
	for _, mapping := range GetSecretMappings() {
		if mapping.IsSet(cfg) {
			continue
		}
		if value, err := GetSecretFromKeyring(mapping.KeyringKey); err == nil && value != "" {
			mapping.Setter(cfg, value)
		}
	}
}

// GetSecretFromKeyring retrieves a secret from the system keyring.
func GetSecretFromKeyring(key string) (string, error) {
	return keyring.Get(ServiceName, key)
}

// SaveSecretToKeyring saves a secret to the system keyring.
func SaveSecretToKeyring(key, value string) error {
	if !IsSecretKey(key) {
		return fmt.Errorf("unknown secret %q (available: %s)", key, strings.Join(ListAvailableSecretKeys(), ", "))
	}
	return keyring.Set(ServiceName, key, value)
}

// DeleteSecretFromKeyring removes a secret from the system keyring.
func DeleteSecretFromKeyring(key string) error {
	if !IsSecretKey(key) {
		return fmt.Errorf("unknown secret %q (available: %s)", key, strings.Join(ListAvailableSecretKeys(), ", "))
	}
	return keyring.Delete(ServiceName, key)
}

// ListAvailableSecretKeys returns the keyring keys Load consults.
func ListAvailableSecretKeys() []string {
	mappings := GetSecretMappings()
	keys := make([]string, len(mappings))
	for i, mapping := range mappings {
		keys[i] = mapping.KeyringKey
	}
	return keys
}

// IsSecretKey reports whether key is a known keyring key.
func IsSecretKey(key string) bool {
	for _, k := range ListAvailableSecretKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// KustoConfig returns the engine connection settings.
func (c *Config) KustoConfig() (kusto.Config, error) {
	mode, err := kusto.ParseAuthMode(c.Engine.Auth.Mode)
	if err != nil {
		return kusto.Config{}, err
	}
	return kusto.Config{
		ClusterURI:   c.Engine.ClusterURI,
		AuthMode:     mode,
		TenantID:     c.Engine.Auth.TenantID,
		ClientID:     c.Engine.Auth.ClientID,
		ClientSecret: c.Engine.Auth.ClientSecret,
	}, nil
}

// ValidateEngine checks the settings the tool server needs to reach the
// cluster.
func (c *Config) ValidateEngine() error {
	if c.Engine.ClusterURI == "" {
		return fmt.Errorf("engine.cluster_uri is required (or set ADX_CLUSTER_URI)")
	}
	if c.Engine.Database == "" {
		return fmt.Errorf("engine.database is required (or set ADX_DATABASE)")
	}
	kc, err := c.KustoConfig()
	if err != nil {
		return fmt.Errorf("engine.auth.mode: %w", err)
	}
	if err := kc.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// ValidateServer checks the tool server settings.
func (c *Config) ValidateServer() error {
	switch c.Server.Transport {
	case TransportStdio:
		return nil
	case TransportHTTP:
	default:
		return fmt.Errorf("server.transport must be %s or %s, got %q", TransportStdio, TransportHTTP, c.Server.Transport)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with /, got %q", c.Server.Path)
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be positive")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ValidateLLM checks the language model settings.
func (c *Config) ValidateLLM() error {
	provider, err := llm.ParseProvider(c.LLM.Provider)
	if err != nil {
		return fmt.Errorf("llm.provider: %w", err)
	}
	if provider == llm.ProviderAnthropic && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required for anthropic (set CLAUDE_API_KEY or store anthropic_api_key in the keyring)")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("llm.temperature must be between 0 and 1, got %g", c.LLM.Temperature)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	return nil
}

// AnthropicConfig returns the settings of the model client.
func (c *Config) AnthropicConfig() anthropic.Config {
	return anthropic.Config{
		Provider:    c.LLM.Provider,
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		Model:       c.LLM.Model,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
		Timeout:     c.LLM.Timeout,
		Region:      c.LLM.BedrockRegion,
	}
}

// ValidateOrchestrator checks the question answering settings.
func (c *Config) ValidateOrchestrator() error {
	if _, err := orchestrator.ParseContract(c.Orchestrator.Contract); err != nil {
		return fmt.Errorf("orchestrator.contract: %w", err)
	}
	if c.Orchestrator.ServerURL != "" {
		u, err := url.Parse(c.Orchestrator.ServerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("orchestrator.server_url must be an http(s) URL, got %q", c.Orchestrator.ServerURL)
		}
	}
	return nil
}
