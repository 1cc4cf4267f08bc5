package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/labforge/pkg/adapters"
	"github.com/codeready-toolchain/labforge/pkg/lab"
	"github.com/codeready-toolchain/labforge/pkg/registry"
)

// Validator submits a drafted lab to the headless runner and records the
// result (§4.7).
type Validator struct {
	runner       adapters.RunnerClient
	artifacts    adapters.ArtifactStore
	reg          *registry.Registry
	pollInterval time.Duration
	retries      int
}

// NewValidator builds a Validator stage agent.
func NewValidator(runner adapters.RunnerClient, artifacts adapters.ArtifactStore, reg *registry.Registry, pollInterval time.Duration, retries int) *Validator {
	return &Validator{runner: runner, artifacts: artifacts, reg: reg, pollInterval: pollInterval, retries: retries}
}

// runnerPayload is the wire schema the external headless runner expects
// (§4.7).
type runnerPayload struct {
	ExerciseID     string                   `json:"exercise_id"`
	ArtifactPrefix string                   `json:"artifact_prefix"`
	RunID          string                   `json:"run_id"`
	LabID          string                   `json:"lab_id"`
	TopologyYAML   string                   `json:"topology"`
	Devices        map[string]runnerDevice  `json:"devices"`
	Options        lab.Options              `json:"options"`
}

type runnerDevice struct {
	Platform string            `json:"platform"`
	Initial  []string          `json:"initial"`
	Steps    []runnerDeviceStep `json:"steps"`
}

type runnerDeviceStep struct {
	Kind  string `json:"kind"` // "command" or "verification"
	Value string `json:"value"`
}

// Run executes the Validator stage for labID. ctx's deadline bounds both
// the initial submit and the entire poll loop (§4.4's validator timeout).
func (v *Validator) Run(ctx context.Context, labID string) error {
	snap, err := v.reg.Get(labID)
	if err != nil {
		return err
	}

	if snap.Progress.DesignOutput == nil || snap.Progress.DraftLabGuide == nil {
		return v.reg.Mutate(labID, func(l *registry.Lab) {
			l.Progress.ValidationResult = &lab.ValidationResult{Skipped: true, Success: false}
			l.Status = lab.StatusValidatorComplete
			l.CurrentStage = lab.StageValidator
		})
	}

	runID := uuid.New().String()
	payload := buildRunnerPayload(labID, runID, snap.Options, snap.Progress.DesignOutput, snap.Progress.DraftLabGuide)
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode runner payload: %w", err)
	}

	pendingPath := fmt.Sprintf("pending/%s.json", labID)
	archivePath := fmt.Sprintf("executions/%s/payload.json", runID)
	if err := adapters.WithRetry(ctx, v.retries, func() error {
		return v.artifacts.Put(ctx, pendingPath, raw)
	}); err != nil {
		return fmt.Errorf("upload pending payload: %w", err)
	}
	if err := adapters.WithRetry(ctx, v.retries, func() error {
		return v.artifacts.Put(ctx, archivePath, raw)
	}); err != nil {
		return fmt.Errorf("archive payload: %w", err)
	}

	var executionID string
	err = adapters.WithRetry(ctx, v.retries, func() error {
		var submitErr error
		executionID, submitErr = v.runner.Submit(ctx, pendingPath)
		return submitErr
	})
	if err != nil {
		return fmt.Errorf("submit to runner: %w", err)
	}

	result, err := v.poll(ctx, executionID)
	if err != nil {
		return err
	}

	return v.reg.Mutate(labID, func(l *registry.Lab) {
		l.Progress.ValidationResult = result
		l.Status = lab.StatusValidatorComplete
		l.CurrentStage = lab.StageValidator
	})
}

func (v *Validator) poll(ctx context.Context, executionID string) (*lab.ValidationResult, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ErrValidatorTimeout
		case <-time.After(v.pollInterval):
		}

		var status adapters.ExecutionStatus
		if err := adapters.WithRetry(ctx, v.retries, func() error {
			var statusErr error
			status, statusErr = v.runner.Status(ctx, executionID)
			return statusErr
		}); err != nil {
			continue
		}
		if status.State == adapters.ExecutionRunning {
			continue
		}

		return v.readSummary(ctx, executionID, status), nil
	}
}

func (v *Validator) readSummary(ctx context.Context, executionID string, status adapters.ExecutionStatus) *lab.ValidationResult {
	result := &lab.ValidationResult{
		Success:      status.State == adapters.ExecutionSucceeded,
		StepsPassed:  status.StepsPass,
		StepsTotal:   status.StepsTotal,
		ArtifactRefs: []string{fmt.Sprintf("executions/%s/payload.json", executionID)},
	}

	summaryPath := fmt.Sprintf("executions/%s/summary.json", executionID)
	var raw []byte
	err := adapters.WithRetry(ctx, v.retries, func() error {
		var getErr error
		raw, getErr = v.artifacts.Get(ctx, summaryPath)
		return getErr
	})
	if err != nil {
		return result
	}

	var summary struct {
		Success      bool     `json:"success"`
		StepsPassed  int      `json:"steps_passed"`
		StepsTotal   int      `json:"steps_total"`
		ErrorSummary string   `json:"error_summary"`
		ArtifactRefs []string `json:"artifact_refs"`
	}
	if err := json.Unmarshal(raw, &summary); err != nil {
		return result
	}

	result.Success = summary.Success
	result.StepsPassed = summary.StepsPassed
	result.StepsTotal = summary.StepsTotal
	result.ErrorSummary = summary.ErrorSummary
	if len(summary.ArtifactRefs) > 0 {
		result.ArtifactRefs = append(result.ArtifactRefs, summary.ArtifactRefs...)
	}
	return result
}

func buildRunnerPayload(labID, runID string, opts lab.Options, design *lab.DesignOutput, guide *lab.LabGuide) runnerPayload {
	devices := make(map[string]runnerDevice, len(guide.Devices))
	for _, section := range guide.Devices {
		steps := make([]runnerDeviceStep, 0, len(section.Steps))
		for _, step := range section.Steps {
			kind := "command"
			if step.Type == lab.StepVerify {
				kind = "verification"
			}
			if step.Type != lab.StepCmd && step.Type != lab.StepVerify {
				continue
			}
			steps = append(steps, runnerDeviceStep{Kind: kind, Value: step.Value})
		}
		devices[section.Name] = runnerDevice{
			Platform: section.Platform,
			Initial:  design.InitialConfigs[section.Name],
			Steps:    steps,
		}
	}

	return runnerPayload{
		ExerciseID:     labID,
		ArtifactPrefix: fmt.Sprintf("executions/%s/", runID),
		RunID:          runID,
		LabID:          labID,
		TopologyYAML:   design.TopologyYAML,
		Devices:        devices,
		Options:        opts,
	}
}
