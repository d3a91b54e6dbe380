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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
)

var credentialVars = []string{
	"WIZ_CLIENT_ID", "WIZ_CLIENT_SECRET", "WIZ_ENDPOINT_URL", "WIZ_TOKEN_URL",
	"OPSLEVEL_API_TOKEN", "OPSLEVEL_API_URL", "CLOUDZERO_API_KEY", "GITHUB_TOKEN",
	"JIRA_URL", "JIRA_USER", "JIRA_APITOKEN", "RELAY_RETRY_MAX_ATTEMPTS",
	"OPSLEVEL_WEBHOOK_UID", "OPSLEVEL_ROUTING_ID", "OPSLEVEL_INTEGRATION_ID",
	"OPSLEVEL_SIGNING_SECRET", "OPSLEVEL_EXTERNAL_KIND",
}

// clearEnv blanks every variable the package reads so the host
// environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range credentialVars {
		t.Setenv(name, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://app.opslevel.com/graphql", cfg.OpsLevel.APIURL)
	assert.Equal(t, "wiz_issues", cfg.OpsLevel.ExternalKind)
	assert.Equal(t, 50, cfg.Defaults.WizIssuesPageSize)
	assert.Equal(t, 200, cfg.Defaults.WizFindingsPageSize)
	assert.Equal(t, "config.json", cfg.Defaults.WatermarkFile)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Interval)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	content := `
opslevel:
  api_url: https://opslevel.internal/graphql
  webhook_uid: abc-123
wiz:
  endpoint_url: https://api.us17.app.wiz.io/graphql
  token_url: https://auth.app.wiz.io/oauth/token
defaults:
  wiz_issues_page_size: 25
  watermark_file: /var/lib/relay/config.json
retry:
  max_attempts: 5
  backoff: exponential
  interval: 500ms
webhook:
  extra_headers: [X-Request-Id]
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://opslevel.internal/graphql", cfg.OpsLevel.APIURL)
	assert.Equal(t, "abc-123", cfg.OpsLevel.WebhookUID)
	assert.Equal(t, "https://auth.app.wiz.io/oauth/token", cfg.Wiz.TokenURL)
	assert.Equal(t, 25, cfg.Defaults.WizIssuesPageSize)
	assert.Equal(t, 200, cfg.Defaults.WizFindingsPageSize, "unset keys keep defaults")
	assert.Equal(t, "/var/lib/relay/config.json", cfg.Defaults.WatermarkFile)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, BackoffExponential, cfg.Retry.Backoff)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Interval)
	assert.Equal(t, []string{"X-Request-Id"}, cfg.Webhook.ExtraHeaders)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("opslevel:\n  api_url: https://from-file/graphql\n"), 0o644))

	t.Setenv("OPSLEVEL_API_URL", "https://from-env/graphql")
	t.Setenv("RELAY_RETRY_MAX_ATTEMPTS", "7")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env/graphql", cfg.OpsLevel.APIURL)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
}

func TestLoadConfig_DiscoversHomeFile(t *testing.T) {
	clearEnv(t)
	home := os.Getenv("HOME")
	dir := filepath.Join(home, ".opslevel-relay")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("defaults:\n  output_dir: ~/exports\n"), 0o644))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "exports"), cfg.Defaults.OutputDir)
}

func TestLoadConfig_Errors(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("retry: [unclosed"), 0o644))
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "zero page size", modify: func(c *Config) { c.Defaults.WizIssuesPageSize = 0 }, wantErr: "wiz_issues_page_size must be positive"},
		{name: "page size over limit", modify: func(c *Config) { c.Defaults.OpsLevelPageSize = 1000 }, wantErr: "exceeds the API limit"},
		{name: "no attempts", modify: func(c *Config) { c.Retry.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "unknown backoff", modify: func(c *Config) { c.Retry.Backoff = "linear" }, wantErr: "unknown retry backoff"},
		{name: "empty api url", modify: func(c *Config) { c.OpsLevel.APIURL = "" }, wantErr: "OpsLevel API URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRetryPolicy(t *testing.T) {
	cfg := DefaultConfig()
	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 2*time.Second, policy.Backoff(1))
	assert.True(t, policy.Retryable(503))
	assert.False(t, policy.Retryable(404))

	cfg.Retry.Backoff = BackoffExponential
	cfg.Retry.Interval = time.Second
	cfg.Retry.MaxInterval = 4 * time.Second
	policy = cfg.RetryPolicy()
	assert.LessOrEqual(t, policy.Backoff(10), 4*time.Second+400*time.Millisecond)
}

func TestRequire_ReportsEveryMissingVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv("WIZ_CLIENT_ID", "id")

	_, err := DefaultConfig().Require(Wiz, OpsLevel)
	require.Error(t, err)
	assert.True(t, errors.Is(err, relayerrors.ErrMissingConfig))
	for _, name := range []string{"WIZ_CLIENT_SECRET", "WIZ_ENDPOINT_URL", "WIZ_TOKEN_URL", "OPSLEVEL_API_TOKEN"} {
		assert.Contains(t, err.Error(), name)
	}
	assert.NotContains(t, err.Error(), "WIZ_CLIENT_ID")
}

func TestRequire_EndpointsFromConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("WIZ_CLIENT_ID", "id")
	t.Setenv("WIZ_CLIENT_SECRET", "secret")

	cfg := DefaultConfig()
	cfg.Wiz.EndpointURL = "https://api.us1.app.wiz.io/graphql"
	cfg.Wiz.TokenURL = "https://auth.app.wiz.io/oauth/token"

	creds, err := cfg.Require(Wiz)
	require.NoError(t, err)
	assert.Equal(t, "id", creds.WizClientID)
	assert.Equal(t, "secret", creds.WizClientSecret)
}

func TestRequire_Jira(t *testing.T) {
	clearEnv(t)
	t.Setenv("JIRA_USER", "bot@example.com")
	t.Setenv("JIRA_APITOKEN", "tok")

	_, err := DefaultConfig().Require(Jira)
	assert.ErrorIs(t, err, relayerrors.ErrMissingConfig)
	assert.ErrorContains(t, err, "JIRA_URL")

	t.Setenv("JIRA_URL", "https://example.atlassian.net")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	creds, err := cfg.Require(Jira)
	require.NoError(t, err)
	assert.Equal(t, "bot@example.com", creds.JiraUser)
	assert.Equal(t, "https://example.atlassian.net", cfg.Jira.URL)
}

func TestRequireEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_TOKEN", "ghp_x")

	env, err := RequireEnv("GITHUB_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "ghp_x", env["GITHUB_TOKEN"])

	_, err = RequireEnv("GITHUB_TOKEN", "CLOUDZERO_API_KEY")
	assert.ErrorIs(t, err, relayerrors.ErrMissingConfig)
	assert.ErrorContains(t, err, "CLOUDZERO_API_KEY")
}

func TestRequire_IntakeSettings(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	_, err = cfg.Require(OpsLevelWebhook, OpsLevelCustomEvent, OpsLevelCodeIssues, WebhookSigning)
	require.ErrorIs(t, err, relayerrors.ErrMissingConfig)
	for _, name := range []string{"OPSLEVEL_WEBHOOK_UID", "OPSLEVEL_ROUTING_ID", "OPSLEVEL_INTEGRATION_ID", "OPSLEVEL_SIGNING_SECRET"} {
		assert.Contains(t, err.Error(), name)
	}

	cfg.OpsLevel.WebhookUID = "uid-from-file"
	t.Setenv("OPSLEVEL_SIGNING_SECRET", "s3cret")
	creds, err := cfg.Require(OpsLevelWebhook, WebhookSigning)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", creds.SigningSecret)
}
