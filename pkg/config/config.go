// Package config loads and validates labforge's runtime configuration.
package config

import (
	"time"
)

// Config holds every tunable named in the orchestration runtime's
// configuration surface. Durations are stored as whole seconds (matching
// the *_S environment variable names) and converted via the Duration
// helpers below.
type Config struct {
	MaxPlannerTurns int `yaml:"max_planner_turns" validate:"min=1"`
	MaxStageRetries int `yaml:"max_stage_retries" validate:"min=0"`
	MaxRCARetries   int `yaml:"max_rca_retries" validate:"min=0"`

	PipelineTimeoutS  int `yaml:"pipeline_timeout_s" validate:"min=1"`
	PlannerTimeoutS   int `yaml:"planner_timeout_s" validate:"min=1"`
	UserReplyTimeoutS int `yaml:"user_reply_timeout_s" validate:"min=1"`
	StageTimeoutS     int `yaml:"stage_timeout_s" validate:"min=1"`
	ValidatorTimeoutS int `yaml:"validator_timeout_s" validate:"min=1"`
	PollIntervalS     int `yaml:"poll_interval_s" validate:"min=1"`

	LinterEndpoint string `yaml:"linter_endpoint"`
	RunnerEndpoint string `yaml:"runner_endpoint"`
	ArtifactBucket string `yaml:"artifact_bucket"`
	LLMEndpoint    string `yaml:"llm_endpoint"`
	LLMCredential  string `yaml:"llm_credential"`

	CORSOrigins []string `yaml:"cors_origins"`

	// PendingQueueSize bounds the per-lab user-message queue (§5 back-pressure).
	PendingQueueSize int `yaml:"pending_queue_size" validate:"min=1"`

	HTTPAddr string `yaml:"http_addr"`

	// StageRetryBestEffort selects what a Designer/Author stage does when
	// MAX_STAGE_RETRIES is exhausted with outstanding lint errors: proceed
	// with the best-effort output (true) or fail the lab (false). See §4.6.
	StageRetryBestEffort bool `yaml:"stage_retry_best_effort"`

	Slack SlackConfig `yaml:"slack"`
}

// SlackConfig configures the optional lab-lifecycle notifier (§11.7).
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`
}

// Defaults returns the built-in configuration defaults from spec.md §6.2.
func Defaults() *Config {
	return &Config{
		MaxPlannerTurns:      10,
		MaxStageRetries:      2,
		MaxRCARetries:        2,
		PipelineTimeoutS:     600,
		PlannerTimeoutS:      300,
		UserReplyTimeoutS:    120,
		StageTimeoutS:        120,
		ValidatorTimeoutS:    300,
		PollIntervalS:        10,
		PendingQueueSize:     32,
		HTTPAddr:             ":8080",
		StageRetryBestEffort: true,
		CORSOrigins:          []string{"*"},
	}
}

func (c *Config) PipelineTimeout() time.Duration  { return time.Duration(c.PipelineTimeoutS) * time.Second }
func (c *Config) PlannerTimeout() time.Duration   { return time.Duration(c.PlannerTimeoutS) * time.Second }
func (c *Config) UserReplyTimeout() time.Duration { return time.Duration(c.UserReplyTimeoutS) * time.Second }
func (c *Config) StageTimeout() time.Duration     { return time.Duration(c.StageTimeoutS) * time.Second }
func (c *Config) ValidatorTimeout() time.Duration { return time.Duration(c.ValidatorTimeoutS) * time.Second }
func (c *Config) PollInterval() time.Duration     { return time.Duration(c.PollIntervalS) * time.Second }
