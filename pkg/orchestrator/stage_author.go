package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/labforge/pkg/adapters"
	"github.com/codeready-toolchain/labforge/pkg/lab"
	"github.com/codeready-toolchain/labforge/pkg/registry"
)

// Author is the thin LLM+linter wrapper that turns a design_output into a
// draft_lab_guide (§4.6).
type Author struct {
	llm        adapters.LLMClient
	linter     adapters.LinterClient
	reg        *registry.Registry
	maxRetries int
	bestEffort bool
}

// NewAuthor builds an Author stage agent.
func NewAuthor(llm adapters.LLMClient, linter adapters.LinterClient, reg *registry.Registry, maxRetries int, bestEffort bool) *Author {
	return &Author{llm: llm, linter: linter, reg: reg, maxRetries: maxRetries, bestEffort: bestEffort}
}

// Run executes the Author stage for labID.
func (a *Author) Run(ctx context.Context, labID string) error {
	snap, err := a.reg.Get(labID)
	if err != nil {
		return err
	}
	if snap.Progress.ExerciseSpec == nil || snap.Progress.DesignOutput == nil {
		return fmt.Errorf("%w: author requires exercise_spec and design_output", ErrUnparseableOutput)
	}
	spec, design := snap.Progress.ExerciseSpec, snap.Progress.DesignOutput

	var patchInstructions string
	if pp := snap.Progress.PatchPlan; pp != nil && pp.TargetStage == lab.StageAuthor {
		patchInstructions = pp.PatchInstructions
	}

	var lastIssues []string
	var lastGuide *lab.LabGuide

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return ErrCancelled
		}

		instruction := withLintFeedback(withPatchInstructions(authorInstruction, patchInstructions), lastIssues)
		var response string
		err := adapters.WithRetry(ctx, a.maxRetries, func() error {
			var genErr error
			response, genErr = a.llm.Generate(ctx, instruction, []adapters.ConversationTurn{authorInputTurn(spec, design)})
			return genErr
		})
		if err != nil {
			lastIssues = []string{fmt.Sprintf("llm call failed: %v", err)}
			continue
		}

		guide, ok := parseLabGuide(response)
		if !ok {
			lastIssues = []string{"response was not valid draft_lab_guide JSON"}
			continue
		}
		lastGuide = guide

		issues, lintErr := a.lint(ctx, guide)
		if lintErr != nil {
			lastIssues = []string{fmt.Sprintf("linter call failed: %v", lintErr)}
			continue
		}
		if len(issues) == 0 {
			return a.reg.Mutate(labID, func(l *registry.Lab) {
				l.Progress.DraftLabGuide = guide
				l.Status = lab.StatusAuthorComplete
				l.CurrentStage = lab.StageAuthor
			})
		}
		lastIssues = issues
	}

	if a.bestEffort && lastGuide != nil {
		return a.reg.Mutate(labID, func(l *registry.Lab) {
			l.Progress.DraftLabGuide = lastGuide
			l.Status = lab.StatusAuthorComplete
			l.CurrentStage = lab.StageAuthor
		})
	}
	return fmt.Errorf("author: %w", ErrStageRetriesExhausted)
}

func (a *Author) lint(ctx context.Context, guide *lab.LabGuide) ([]string, error) {
	var issues []string
	for _, device := range guide.Devices {
		var commands []string
		for _, step := range device.Steps {
			if step.Type == lab.StepCmd {
				commands = append(commands, step.Value)
			}
		}
		if len(commands) == 0 {
			continue
		}
		var results []adapters.CommandResult
		if err := adapters.WithRetry(ctx, a.maxRetries, func() error {
			var lintErr error
			results, lintErr = a.linter.LintCLI(ctx, device.Platform, commands, nil)
			return lintErr
		}); err != nil {
			return nil, err
		}
		for _, r := range results {
			if !r.Valid {
				issues = append(issues, fmt.Sprintf("%s: %s (%s)", device.Name, r.Message, r.Command))
			}
		}
	}
	return issues, nil
}

func parseLabGuide(response string) (*lab.LabGuide, bool) {
	raw, ok := ExtractBalancedJSON(response)
	if !ok {
		return nil, false
	}
	var out lab.LabGuide
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false
	}
	if out.Title == "" || len(out.Devices) == 0 {
		return nil, false
	}
	return &out, true
}
