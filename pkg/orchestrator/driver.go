package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/labforge/pkg/adapters"
	"github.com/codeready-toolchain/labforge/pkg/config"
	"github.com/codeready-toolchain/labforge/pkg/lab"
	"github.com/codeready-toolchain/labforge/pkg/notify"
	"github.com/codeready-toolchain/labforge/pkg/registry"
)

// Driver runs the full stage pipeline for one lab: Planner, Designer,
// Author, Validator, and RCA-driven rewinds (§4.4). One Driver instance is
// shared by every lab; Run is called once per lab_id, each in its own
// goroutine.
type Driver struct {
	reg       *registry.Registry
	cfg       *config.Config
	notifier  *notify.Service
	planner   *Planner
	designer  *Designer
	author    *Author
	validator *Validator
	rca       *RCA
}

// NewDriver wires every stage agent from the given adapters and
// configuration. notifier may be nil.
func NewDriver(reg *registry.Registry, cfg *config.Config, llm adapters.LLMClient, linter adapters.LinterClient, runner adapters.RunnerClient, artifacts adapters.ArtifactStore, notifier *notify.Service) *Driver {
	return &Driver{
		reg:       reg,
		cfg:       cfg,
		notifier:  notifier,
		planner:   NewPlanner(llm, reg, cfg.MaxPlannerTurns, cfg.UserReplyTimeout(), cfg.MaxStageRetries),
		designer:  NewDesigner(llm, linter, reg, cfg.MaxStageRetries, cfg.StageRetryBestEffort),
		author:    NewAuthor(llm, linter, reg, cfg.MaxStageRetries, cfg.StageRetryBestEffort),
		validator: NewValidator(runner, artifacts, reg, cfg.PollInterval(), cfg.MaxStageRetries),
		rca:       NewRCA(llm, reg, cfg.MaxStageRetries),
	}
}

// Run drives labID through the pipeline to a terminal state. It never lets
// a panic escape: a panic is converted into status=failed (§7's single
// failure-boundary policy).
func (d *Driver) Run(ctx context.Context, labID string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Pipeline panicked", "lab_id", labID, "recovered", r)
			_ = d.reg.Mutate(labID, func(l *registry.Lab) {
				l.Status = lab.StatusFailed
				l.CurrentStage = ""
				l.AwaitingUserInput = false
				l.Error = fmt.Sprintf("internal error: %v", r)
			})
			d.notifier.LabFailed(context.Background(), labID, fmt.Errorf("internal error: %v", r))
		}
	}()

	pipelineCtx, cancel := context.WithTimeout(ctx, d.cfg.PipelineTimeout())
	defer cancel()

	if snap, err := d.reg.Get(labID); err == nil {
		d.notifier.LabStarted(ctx, labID, snap.Prompt)
	}

	stage := lab.StagePlanner
	for {
		var err error
		switch stage {
		case lab.StagePlanner:
			if err = d.runPlannerStage(pipelineCtx, labID); err != nil {
				d.fail(labID, &StageError{Stage: string(lab.StagePlanner), Err: err})
				return
			}
			stage = lab.StageDesigner

		case lab.StageDesigner:
			if err = d.runStage(pipelineCtx, labID, lab.StatusDesignerRunning, lab.StageDesigner, d.designer.Run, ErrStageTimeout); err != nil {
				d.fail(labID, &StageError{Stage: string(lab.StageDesigner), Err: err})
				return
			}
			stage = lab.StageAuthor

		case lab.StageAuthor:
			if err = d.runStage(pipelineCtx, labID, lab.StatusAuthorRunning, lab.StageAuthor, d.author.Run, ErrStageTimeout); err != nil {
				d.fail(labID, &StageError{Stage: string(lab.StageAuthor), Err: err})
				return
			}
			snap, getErr := d.reg.Get(labID)
			if getErr != nil {
				d.fail(labID, getErr)
				return
			}
			if snap.Options.DryRun {
				d.complete(labID, true)
				return
			}
			stage = lab.StageValidator

		case lab.StageValidator:
			if err = d.runValidatorStage(pipelineCtx, labID); err != nil {
				d.fail(labID, &StageError{Stage: string(lab.StageValidator), Err: err})
				return
			}
			snap, getErr := d.reg.Get(labID)
			if getErr != nil {
				d.fail(labID, getErr)
				return
			}
			vr := snap.Progress.ValidationResult
			if vr.Success || !snap.Options.EnableRCA || snap.RetryCount >= d.cfg.MaxRCARetries {
				d.complete(labID, vr.Success)
				return
			}
			stage = lab.StageRCA

		case lab.StageRCA:
			target, rcaErr := d.runRCAStage(pipelineCtx, labID)
			if rcaErr != nil {
				d.fail(labID, &StageError{Stage: string(lab.StageRCA), Err: rcaErr})
				return
			}
			if err = d.reg.Mutate(labID, func(l *registry.Lab) {
				l.RetryCount++
				discardDownstream(l, target)
			}); err != nil {
				d.fail(labID, err)
				return
			}
			stage = target

		default:
			d.fail(labID, fmt.Errorf("unknown stage %q", stage))
			return
		}
	}
}

func (d *Driver) runPlannerStage(ctx context.Context, labID string) error {
	plannerCtx, cancel := context.WithTimeout(ctx, d.cfg.PlannerTimeout())
	defer cancel()

	if err := d.reg.Mutate(labID, func(l *registry.Lab) {
		l.Status = lab.StatusPlannerRunning
		l.CurrentStage = lab.StagePlanner
	}); err != nil {
		return err
	}

	err := d.planner.Run(plannerCtx, labID)
	if err == nil {
		return nil
	}
	return classifyStageErr(ctx, plannerCtx, err, ErrPlannerDialogTimeout)
}

func (d *Driver) runStage(ctx context.Context, labID string, runningStatus lab.Status, stageName lab.Stage, fn func(context.Context, string) error, timeoutErr error) error {
	stageCtx, cancel := context.WithTimeout(ctx, d.cfg.StageTimeout())
	defer cancel()

	if err := d.reg.Mutate(labID, func(l *registry.Lab) {
		l.Status = runningStatus
		l.CurrentStage = stageName
	}); err != nil {
		return err
	}

	err := fn(stageCtx, labID)
	if err == nil {
		return nil
	}
	return classifyStageErr(ctx, stageCtx, err, timeoutErr)
}

func (d *Driver) runValidatorStage(ctx context.Context, labID string) error {
	validatorCtx, cancel := context.WithTimeout(ctx, d.cfg.ValidatorTimeout())
	defer cancel()

	if err := d.reg.Mutate(labID, func(l *registry.Lab) {
		l.Status = lab.StatusValidatorRunning
		l.CurrentStage = lab.StageValidator
	}); err != nil {
		return err
	}

	err := d.validator.Run(validatorCtx, labID)
	if err == nil {
		return nil
	}
	return classifyStageErr(ctx, validatorCtx, err, ErrValidatorTimeout)
}

func (d *Driver) runRCAStage(ctx context.Context, labID string) (lab.Stage, error) {
	rcaCtx, cancel := context.WithTimeout(ctx, d.cfg.StageTimeout())
	defer cancel()

	if err := d.reg.Mutate(labID, func(l *registry.Lab) {
		l.Status = lab.StatusRCARunning
		l.CurrentStage = lab.StageRCA
	}); err != nil {
		return "", err
	}

	target, err := d.rca.Run(rcaCtx, labID)
	if err != nil {
		return "", classifyStageErr(ctx, rcaCtx, err, ErrStageTimeout)
	}
	return target, nil
}

// classifyStageErr prefers a whole-pipeline timeout over a stage-local one,
// since the pipeline budget is the outer bound (§5 "minimum of stage-
// specific timeout, remaining pipeline budget").
func classifyStageErr(pipelineCtx, stageCtx context.Context, err error, stageTimeoutErr error) error {
	if errors.Is(pipelineCtx.Err(), context.DeadlineExceeded) {
		return ErrPipelineTimeout
	}
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrUserReplyTimeout) {
		return stageTimeoutErr
	}
	return err
}

func (d *Driver) complete(labID string, validationSuccess bool) {
	_ = d.reg.Mutate(labID, func(l *registry.Lab) {
		l.Status = lab.StatusCompleted
		l.CurrentStage = ""
		l.AwaitingUserInput = false
	})
	d.notifier.LabCompleted(context.Background(), labID, validationSuccess)
}

func (d *Driver) fail(labID string, cause error) {
	_ = d.reg.Mutate(labID, func(l *registry.Lab) {
		l.Status = lab.StatusFailed
		l.CurrentStage = ""
		l.AwaitingUserInput = false
		l.Error = cause.Error()
	})
	d.notifier.LabFailed(context.Background(), labID, cause)
}

// discardDownstream clears every progress artifact produced at or after
// target, so a rewind recomputes them from scratch (§3.2, §4.4).
func discardDownstream(l *registry.Lab, target lab.Stage) {
	switch target {
	case lab.StagePlanner:
		l.Progress.ExerciseSpec = nil
		fallthrough
	case lab.StageDesigner:
		l.Progress.DesignOutput = nil
		fallthrough
	case lab.StageAuthor:
		l.Progress.DraftLabGuide = nil
		l.Progress.ValidationResult = nil
	}
}
