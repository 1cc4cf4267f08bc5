package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/labforge/pkg/adapters"
	"github.com/codeready-toolchain/labforge/pkg/lab"
	"github.com/codeready-toolchain/labforge/pkg/registry"
)

// Designer is the thin LLM+linter wrapper that turns an exercise_spec into
// a design_output (§4.6).
type Designer struct {
	llm        adapters.LLMClient
	linter     adapters.LinterClient
	reg        *registry.Registry
	maxRetries int
	bestEffort bool
}

// NewDesigner builds a Designer stage agent.
func NewDesigner(llm adapters.LLMClient, linter adapters.LinterClient, reg *registry.Registry, maxRetries int, bestEffort bool) *Designer {
	return &Designer{llm: llm, linter: linter, reg: reg, maxRetries: maxRetries, bestEffort: bestEffort}
}

// Run executes the Designer stage for labID.
func (d *Designer) Run(ctx context.Context, labID string) error {
	snap, err := d.reg.Get(labID)
	if err != nil {
		return err
	}
	if snap.Progress.ExerciseSpec == nil {
		return fmt.Errorf("%w: designer requires exercise_spec", ErrUnparseableOutput)
	}
	spec := snap.Progress.ExerciseSpec

	var patchInstructions string
	if pp := snap.Progress.PatchPlan; pp != nil && pp.TargetStage == lab.StageDesigner {
		patchInstructions = pp.PatchInstructions
	}

	var lastIssues []string
	var lastOutput *lab.DesignOutput

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return ErrCancelled
		}

		instruction := withLintFeedback(withPatchInstructions(designerInstruction, patchInstructions), lastIssues)
		var response string
		err := adapters.WithRetry(ctx, d.maxRetries, func() error {
			var genErr error
			response, genErr = d.llm.Generate(ctx, instruction, []adapters.ConversationTurn{designInputTurn(spec)})
			return genErr
		})
		if err != nil {
			lastIssues = []string{fmt.Sprintf("llm call failed: %v", err)}
			continue
		}

		output, ok := parseDesignOutput(response)
		if !ok {
			lastIssues = []string{"response was not valid design_output JSON"}
			continue
		}
		lastOutput = output

		issues, lintErr := d.lint(ctx, output)
		if lintErr != nil {
			lastIssues = []string{fmt.Sprintf("linter call failed: %v", lintErr)}
			continue
		}
		if len(issues) == 0 {
			return d.reg.Mutate(labID, func(l *registry.Lab) {
				l.Progress.DesignOutput = output
				l.Status = lab.StatusDesignerComplete
				l.CurrentStage = lab.StageDesigner
			})
		}
		lastIssues = issues
	}

	if d.bestEffort && lastOutput != nil {
		return d.reg.Mutate(labID, func(l *registry.Lab) {
			l.Progress.DesignOutput = lastOutput
			l.Status = lab.StatusDesignerComplete
			l.CurrentStage = lab.StageDesigner
		})
	}
	return fmt.Errorf("designer: %w", ErrStageRetriesExhausted)
}

func (d *Designer) lint(ctx context.Context, output *lab.DesignOutput) ([]string, error) {
	var issues []string

	var topologyIssues []adapters.LintIssue
	if err := adapters.WithRetry(ctx, d.maxRetries, func() error {
		var lintErr error
		topologyIssues, lintErr = d.linter.LintTopology(ctx, output.TopologyYAML)
		return lintErr
	}); err != nil {
		return nil, err
	}
	for _, iss := range topologyIssues {
		if iss.Severity == "error" {
			issues = append(issues, fmt.Sprintf("topology: %s", iss.Message))
		}
	}

	for device, commands := range output.InitialConfigs {
		platform := output.Platforms[device]
		var results []adapters.CommandResult
		if err := adapters.WithRetry(ctx, d.maxRetries, func() error {
			var lintErr error
			results, lintErr = d.linter.LintCLI(ctx, platform, commands, nil)
			return lintErr
		}); err != nil {
			return nil, err
		}
		for _, r := range results {
			if !r.Valid {
				issues = append(issues, fmt.Sprintf("%s: %s (%s)", device, r.Message, r.Command))
			}
		}
	}
	return issues, nil
}

func parseDesignOutput(response string) (*lab.DesignOutput, bool) {
	raw, ok := ExtractBalancedJSON(response)
	if !ok {
		return nil, false
	}
	var out lab.DesignOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false
	}
	if out.TopologyYAML == "" || out.InitialConfigs == nil {
		return nil, false
	}
	return &out, true
}
