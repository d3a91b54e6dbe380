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

// Package config types define the settings opslevel-relay reads from YAML
// files and environment variables. Secrets never live here; see Env.
package config

import "time"

// Config represents the complete configuration for opslevel-relay.
type Config struct {
	Wiz       WizConfig       `yaml:"wiz"`
	OpsLevel  OpsLevelConfig  `yaml:"opslevel"`
	CloudZero CloudZeroConfig `yaml:"cloudzero"`
	GitHub    GitHubConfig    `yaml:"github"`
	Jira      JiraConfig      `yaml:"jira"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Retry     RetryConfig     `yaml:"retry"`
}

// WizConfig holds the Wiz GraphQL endpoint and token URL. Both are
// normally supplied through WIZ_ENDPOINT_URL and WIZ_TOKEN_URL.
type WizConfig struct {
	EndpointURL string `yaml:"endpoint_url"`
	TokenURL    string `yaml:"token_url"`
	// Audience skips token URL classification when set.
	Audience string `yaml:"audience"`
}

// OpsLevelConfig holds the OpsLevel API and integration endpoints.
type OpsLevelConfig struct {
	APIURL         string `yaml:"api_url"`
	WebhookBaseURL string `yaml:"webhook_base_url"`
	CustomEventURL string `yaml:"custom_event_url"`
	WebhookUID     string `yaml:"webhook_uid"`
	ExternalKind   string `yaml:"external_kind"`
	RoutingID      string `yaml:"routing_id"`
	IntegrationID  string `yaml:"integration_id"`
}

// CloudZeroConfig holds the CloudZero REST base URL.
type CloudZeroConfig struct {
	APIURL string `yaml:"api_url"`
}

// GitHubConfig allows pointing the Dependabot client at GitHub Enterprise.
type GitHubConfig struct {
	APIEndpoint string `yaml:"api_endpoint"`
}

// JiraConfig holds the Jira Cloud site URL.
type JiraConfig struct {
	URL string `yaml:"url"`
}

// WebhookConfig configures the inbound signature endpoint.
type WebhookConfig struct {
	Addr string `yaml:"addr"`
	// ExtraHeaders are signed in addition to the OpsLevel action headers.
	ExtraHeaders []string `yaml:"extra_headers"`
}

// DefaultsConfig holds page sizes and file locations shared by subcommands.
type DefaultsConfig struct {
	WizIssuesPageSize   int    `yaml:"wiz_issues_page_size"`
	WizFindingsPageSize int    `yaml:"wiz_findings_page_size"`
	OpsLevelPageSize    int    `yaml:"opslevel_page_size"`
	WatermarkFile       string `yaml:"watermark_file"`
	OutputDir           string `yaml:"output_dir"`
}

// RetryConfig controls how failed HTTP requests are retried.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     string        `yaml:"backoff"`
	Interval    time.Duration `yaml:"interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
}

// Backoff strategies accepted by RetryConfig.Backoff.
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// DefaultConfig returns the settings used when no file or environment
// override is present.
func DefaultConfig() *Config {
	return &Config{
		OpsLevel: OpsLevelConfig{
			APIURL:         "https://app.opslevel.com/graphql",
			WebhookBaseURL: "https://app.opslevel.com/integrations/custom/webhook",
			CustomEventURL: "https://upload.opslevel.com/integrations/custom_event/",
			ExternalKind:   "wiz_issues",
		},
		CloudZero: CloudZeroConfig{
			APIURL: "https://api.cloudzero.com",
		},
		GitHub: GitHubConfig{
			APIEndpoint: "https://api.github.com/",
		},
		Webhook: WebhookConfig{
			Addr: ":8080",
		},
		Defaults: DefaultsConfig{
			WizIssuesPageSize:   50,
			WizFindingsPageSize: 200,
			OpsLevelPageSize:    100,
			WatermarkFile:       "config.json",
			OutputDir:           ".",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Backoff:     BackoffConstant,
			Interval:    2 * time.Second,
			MaxInterval: 30 * time.Second,
		},
	}
}
