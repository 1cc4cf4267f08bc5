// Package notify sends optional Slack notifications about a lab's
// lifecycle. It is entirely off the critical path: every method is
// fail-open, and a nil *Service is a valid, inert no-op.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	"github.com/codeready-toolchain/labforge/pkg/config"
)

// Service posts lab lifecycle events to a Slack channel. Nil-safe: every
// method is a no-op when the receiver is nil.
type Service struct {
	client  *slack.Client
	channel string
	logger  *slog.Logger
}

// New builds a Service from cfg, or returns nil if notifications are
// disabled or misconfigured (mirrors the teacher's nil-Service pattern:
// absent configuration silently disables the feature rather than erroring
// at startup).
func New(cfg config.SlackConfig) *Service {
	if !cfg.Enabled || cfg.Channel == "" {
		return nil
	}
	token := lookupToken(cfg.TokenEnv)
	if token == "" {
		slog.Warn("Slack notifications enabled but token is empty, disabling", "token_env", cfg.TokenEnv)
		return nil
	}
	return &Service{
		client:  slack.New(token),
		channel: cfg.Channel,
		logger:  slog.Default().With("component", "notify"),
	}
}

// LabStarted announces a new lab pipeline run.
func (s *Service) LabStarted(ctx context.Context, labID, prompt string) {
	if s == nil {
		return
	}
	s.post(ctx, fmt.Sprintf(":gear: Lab `%s` started: %s", labID, truncate(prompt, 120)))
}

// LabCompleted announces a terminal success, including whether validation
// actually passed.
func (s *Service) LabCompleted(ctx context.Context, labID string, validationSuccess bool) {
	if s == nil {
		return
	}
	verdict := "validation passed"
	if !validationSuccess {
		verdict = "validation did not pass"
	}
	s.post(ctx, fmt.Sprintf(":white_check_mark: Lab `%s` completed (%s)", labID, verdict))
}

// LabFailed announces a terminal failure.
func (s *Service) LabFailed(ctx context.Context, labID string, reason error) {
	if s == nil {
		return
	}
	s.post(ctx, fmt.Sprintf(":x: Lab `%s` failed: %v", labID, reason))
}

func (s *Service) post(ctx context.Context, text string) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, _, err := s.client.PostMessageContext(timeoutCtx, s.channel, slack.MsgOptionText(text, false)); err != nil {
		s.logger.Warn("Failed to post Slack notification", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
