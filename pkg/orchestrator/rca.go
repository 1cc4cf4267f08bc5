package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/labforge/pkg/adapters"
	"github.com/codeready-toolchain/labforge/pkg/lab"
	"github.com/codeready-toolchain/labforge/pkg/registry"
)

// RCA classifies a Validator failure and selects the stage to rewind to
// (§4.8). It is stateless across iterations: it consumes only the lab's
// current progress (§9).
type RCA struct {
	llm        adapters.LLMClient
	reg        *registry.Registry
	llmRetries int
}

// NewRCA builds an RCA stage agent.
func NewRCA(llm adapters.LLMClient, reg *registry.Registry, llmRetries int) *RCA {
	return &RCA{llm: llm, reg: reg, llmRetries: llmRetries}
}

type rawPatchPlan struct {
	Analysis          string `json:"analysis"`
	RootCauseType     string `json:"root_cause_type"`
	TargetAgent       string `json:"target_agent"`
	PatchInstructions string `json:"patch_instructions"`
}

// Run invokes the LLM, writes a patch_plan into progress, and returns the
// stage the driver should rewind to.
func (r *RCA) Run(ctx context.Context, labID string) (lab.Stage, error) {
	snap, err := r.reg.Get(labID)
	if err != nil {
		return "", err
	}
	if snap.Progress.ValidationResult == nil {
		return "", fmt.Errorf("%w: rca requires a validation_result", ErrUnparseableOutput)
	}

	turn := rcaInputTurn(snap.Progress.ExerciseSpec, snap.Progress.DesignOutput, snap.Progress.DraftLabGuide, snap.Progress.ValidationResult)
	var response string
	err = adapters.WithRetry(ctx, r.llmRetries, func() error {
		var genErr error
		response, genErr = r.llm.Generate(ctx, rcaInstruction, []adapters.ConversationTurn{turn})
		return genErr
	})
	if err != nil {
		return "", fmt.Errorf("rca llm call: %w", err)
	}

	raw, ok := ExtractBalancedJSON(response)
	if !ok {
		return "", fmt.Errorf("%w: rca response had no JSON object", ErrUnparseableOutput)
	}
	var parsed rawPatchPlan
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparseableOutput, err)
	}

	rootCause := lab.RootCauseType(parsed.RootCauseType)
	target, ok := targetStageFromAgent(parsed.TargetAgent)
	if !ok || rootCause == lab.RootCauseUnknown || rootCause == "" {
		_ = r.reg.Mutate(labID, func(l *registry.Lab) {
			l.Progress.PatchPlan = &lab.PatchPlan{
				Analysis: parsed.Analysis, RootCauseType: lab.RootCauseUnknown,
				PatchInstructions: parsed.PatchInstructions,
			}
		})
		return "", ErrUnknownRootCause
	}

	plan := &lab.PatchPlan{
		Analysis:          parsed.Analysis,
		RootCauseType:     rootCause,
		TargetStage:       target,
		PatchInstructions: parsed.PatchInstructions,
	}
	if err := r.reg.Mutate(labID, func(l *registry.Lab) {
		l.Progress.PatchPlan = plan
		l.Status = lab.StatusRCAComplete
		l.CurrentStage = lab.StageRCA
	}); err != nil {
		return "", err
	}
	return target, nil
}

func targetStageFromAgent(agent string) (lab.Stage, bool) {
	switch agent {
	case "designer":
		return lab.StageDesigner, true
	case "author":
		return lab.StageAuthor, true
	case "planner":
		return lab.StagePlanner, true
	default:
		return "", false
	}
}
