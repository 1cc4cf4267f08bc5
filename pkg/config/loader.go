package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load reads labforge.yaml from configDir (if present), merges it over the
// built-in defaults, applies environment-variable overrides for the keys
// named in spec.md §6.2, and validates the result. A missing config file is
// not an error — the built-in defaults plus environment are sufficient to
// run.
func Load(configDir string) (*Config, error) {
	cfg := Defaults()

	path := filepath.Join(configDir, "labforge.yaml")
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		raw = expandEnv(raw)
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, NewLoadError(path, err)
		}
	case os.IsNotExist(err):
		slog.Info("No labforge.yaml found, using built-in defaults", "path", path)
	default:
		return nil, NewLoadError(path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return cfg, nil
}

// applyEnvOverrides applies the literal environment variable names from
// spec.md §6.2 over whatever the YAML file (or defaults) already set.
func applyEnvOverrides(cfg *Config) {
	intEnv("MAX_PLANNER_TURNS", &cfg.MaxPlannerTurns)
	intEnv("MAX_STAGE_RETRIES", &cfg.MaxStageRetries)
	intEnv("MAX_RCA_RETRIES", &cfg.MaxRCARetries)
	intEnv("PIPELINE_TIMEOUT_S", &cfg.PipelineTimeoutS)
	intEnv("PLANNER_TIMEOUT_S", &cfg.PlannerTimeoutS)
	intEnv("USER_REPLY_TIMEOUT_S", &cfg.UserReplyTimeoutS)
	intEnv("STAGE_TIMEOUT_S", &cfg.StageTimeoutS)
	intEnv("VALIDATOR_TIMEOUT_S", &cfg.ValidatorTimeoutS)
	intEnv("POLL_INTERVAL_S", &cfg.PollIntervalS)

	strEnv("LINTER_ENDPOINT", &cfg.LinterEndpoint)
	strEnv("RUNNER_ENDPOINT", &cfg.RunnerEndpoint)
	strEnv("ARTIFACT_BUCKET", &cfg.ArtifactBucket)
	strEnv("LLM_CREDENTIAL", &cfg.LLMCredential)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
}

func intEnv(name string, dest *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring invalid integer environment override", "name", name, "value", v)
		return
	}
	*dest = n
}

func strEnv(name string, dest *string) {
	if v := os.Getenv(name); v != "" {
		*dest = v
	}
}

var structValidator = validator.New()

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		first := verrs[0]
		return &ValidationError{Field: first.Field(), Tag: first.Tag(), Value: first.Value()}
	}
	if cfg.MaxRCARetries < 0 {
		return &ValidationError{Field: "MaxRCARetries", Tag: "min=0", Value: cfg.MaxRCARetries}
	}
	return nil
}
