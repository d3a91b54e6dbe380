// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads opslevel-relay settings from layered sources.
//
// Configuration sources (in precedence order, highest to lowest):
//  1. Command-line flags
//  2. Environment variables
//  3. Configuration file
//  4. Built-in defaults
//
// Credentials are read from the environment only, through the Require*
// helpers, which name every missing variable at once.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/transport"
)

// LoadConfig loads configuration from configPath, or from the first file
// found in the standard locations:
//   - .opslevel-relay.yaml (current directory)
//   - .opslevel-relay.yml (current directory)
//   - ~/.opslevel-relay/config.yaml
//   - ~/.opslevel-relay/config.yml
//
// Environment overrides are applied afterwards. A missing file in the
// standard locations is not an error.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		home := os.Getenv("HOME")
		defaultPaths := []string{
			".opslevel-relay.yaml",
			".opslevel-relay.yml",
			filepath.Join(home, ".opslevel-relay", "config.yaml"),
			filepath.Join(home, ".opslevel-relay", "config.yml"),
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := loadConfigFile(path, cfg); err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				break
			}
		}
	}

	applyEnvOverrides(cfg)

	cfg.Defaults.OutputDir = expandPath(cfg.Defaults.OutputDir)
	cfg.Defaults.WatermarkFile = expandPath(cfg.Defaults.WatermarkFile)

	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"WIZ_ENDPOINT_URL", &cfg.Wiz.EndpointURL},
		{"WIZ_TOKEN_URL", &cfg.Wiz.TokenURL},
		{"OPSLEVEL_API_URL", &cfg.OpsLevel.APIURL},
		{"OPSLEVEL_WEBHOOK_UID", &cfg.OpsLevel.WebhookUID},
		{"OPSLEVEL_EXTERNAL_KIND", &cfg.OpsLevel.ExternalKind},
		{"OPSLEVEL_ROUTING_ID", &cfg.OpsLevel.RoutingID},
		{"OPSLEVEL_INTEGRATION_ID", &cfg.OpsLevel.IntegrationID},
		{"CLOUDZERO_API_URL", &cfg.CloudZero.APIURL},
		{"GITHUB_API_ENDPOINT", &cfg.GitHub.APIEndpoint},
		{"JIRA_URL", &cfg.Jira.URL},
		{"RELAY_WATERMARK_FILE", &cfg.Defaults.WatermarkFile},
		{"RELAY_OUTPUT_DIR", &cfg.Defaults.OutputDir},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}

	if v := os.Getenv("RELAY_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.Retry.MaxAttempts = n
		}
	}
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home := os.Getenv("HOME")
		if home == "" {
			home = os.Getenv("USERPROFILE") // Windows
		}
		path = filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func parsePositiveInt(s string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer from '%s': %w", s, err)
	}
	if i <= 0 {
		return 0, fmt.Errorf("value must be positive, got: %d", i)
	}
	return i, nil
}

// Validate checks page sizes and retry bounds. Call it after LoadConfig and
// after flag overrides have been applied.
func (c *Config) Validate() error {
	sizes := []struct {
		name  string
		value int
		max   int
	}{
		{"wiz_issues_page_size", c.Defaults.WizIssuesPageSize, 500},
		{"wiz_findings_page_size", c.Defaults.WizFindingsPageSize, 500},
		{"opslevel_page_size", c.Defaults.OpsLevelPageSize, 500},
	}
	for _, s := range sizes {
		if s.value <= 0 {
			return fmt.Errorf("%s must be positive, got: %d", s.name, s.value)
		}
		if s.value > s.max {
			return fmt.Errorf("%s %d exceeds the API limit of %d", s.name, s.value, s.max)
		}
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		return fmt.Errorf("retry max_attempts must be between 1 and 10, got: %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Interval < 0 {
		return fmt.Errorf("retry interval cannot be negative")
	}
	switch c.Retry.Backoff {
	case BackoffConstant, BackoffExponential:
	default:
		return fmt.Errorf("unknown retry backoff %q (use %s or %s)", c.Retry.Backoff, BackoffConstant, BackoffExponential)
	}

	if c.OpsLevel.APIURL == "" {
		return fmt.Errorf("OpsLevel API URL cannot be empty")
	}
	return nil
}

// RetryPolicy builds the transport retry policy described by c.Retry.
func (c *Config) RetryPolicy() transport.RetryPolicy {
	policy := transport.DefaultRetryPolicy()
	policy.MaxAttempts = c.Retry.MaxAttempts
	if c.Retry.Backoff == BackoffExponential {
		policy.Backoff = transport.ExponentialBackoff(c.Retry.Interval, c.Retry.MaxInterval, 2)
	} else {
		policy.Backoff = transport.ConstantBackoff(c.Retry.Interval)
	}
	return policy
}

// Integration names an external system a subcommand talks to.
type Integration string

// Integrations with required credentials.
const (
	Wiz       Integration = "wiz"
	OpsLevel  Integration = "opslevel"
	CloudZero Integration = "cloudzero"
	GitHub    Integration = "github"
	Jira      Integration = "jira"

	// OpsLevel intake settings needed only by some subcommands.
	OpsLevelWebhook     Integration = "opslevel-webhook"
	OpsLevelCustomEvent Integration = "opslevel-custom-event"
	OpsLevelCodeIssues  Integration = "opslevel-code-issues"
	WebhookSigning      Integration = "webhook-signing"
)

// Credentials holds the secrets read from the environment.
type Credentials struct {
	WizClientID     string
	WizClientSecret string
	OpsLevelToken   string
	CloudZeroAPIKey string
	GitHubToken     string
	JiraUser        string
	JiraAPIToken    string
	SigningSecret   string
}

// Require checks every variable the given integrations need and reads the
// secrets. Endpoints may come from the config file instead of the
// environment. The returned error wraps ErrMissingConfig and names every
// missing variable, so it can be reported before any network call.
func (c *Config) Require(integrations ...Integration) (Credentials, error) {
	var creds Credentials
	var missing []string

	need := func(name, configured string) string {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			v = strings.TrimSpace(configured)
		}
		if v == "" {
			missing = append(missing, name)
		}
		return v
	}

	for _, in := range integrations {
		switch in {
		case Wiz:
			creds.WizClientID = need("WIZ_CLIENT_ID", "")
			creds.WizClientSecret = need("WIZ_CLIENT_SECRET", "")
			need("WIZ_ENDPOINT_URL", c.Wiz.EndpointURL)
			need("WIZ_TOKEN_URL", c.Wiz.TokenURL)
		case OpsLevel:
			creds.OpsLevelToken = need("OPSLEVEL_API_TOKEN", "")
		case CloudZero:
			creds.CloudZeroAPIKey = need("CLOUDZERO_API_KEY", "")
		case GitHub:
			creds.GitHubToken = need("GITHUB_TOKEN", "")
		case Jira:
			need("JIRA_URL", c.Jira.URL)
			creds.JiraUser = need("JIRA_USER", "")
			creds.JiraAPIToken = need("JIRA_APITOKEN", "")
		case OpsLevelWebhook:
			need("OPSLEVEL_WEBHOOK_UID", c.OpsLevel.WebhookUID)
		case OpsLevelCustomEvent:
			need("OPSLEVEL_ROUTING_ID", c.OpsLevel.RoutingID)
		case OpsLevelCodeIssues:
			need("OPSLEVEL_INTEGRATION_ID", c.OpsLevel.IntegrationID)
		case WebhookSigning:
			creds.SigningSecret = need("OPSLEVEL_SIGNING_SECRET", "")
		}
	}

	if len(missing) > 0 {
		return Credentials{}, missingError(missing)
	}
	return creds, nil
}

// RequireEnv reads every name from the environment. When any is unset or
// empty the error wraps ErrMissingConfig and lists all of them.
func RequireEnv(names ...string) (map[string]string, error) {
	env := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			missing = append(missing, name)
			continue
		}
		env[name] = v
	}
	if len(missing) > 0 {
		return nil, missingError(missing)
	}
	return env, nil
}

func missingError(names []string) error {
	return fmt.Errorf("%w: set %s", relayerrors.ErrMissingConfig, strings.Join(names, ", "))
}
