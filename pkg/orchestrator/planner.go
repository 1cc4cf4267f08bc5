package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/labforge/pkg/adapters"
	"github.com/codeready-toolchain/labforge/pkg/lab"
	"github.com/codeready-toolchain/labforge/pkg/registry"
)

// Planner conducts the multi-turn dialog that refines an instructor's
// prompt into a complete exercise spec (§4.5).
type Planner struct {
	llm              adapters.LLMClient
	reg              *registry.Registry
	maxTurns         int
	userReplyTimeout time.Duration
	llmRetries       int
}

// NewPlanner builds a Planner controller.
func NewPlanner(llm adapters.LLMClient, reg *registry.Registry, maxTurns int, userReplyTimeout time.Duration, llmRetries int) *Planner {
	return &Planner{llm: llm, reg: reg, maxTurns: maxTurns, userReplyTimeout: userReplyTimeout, llmRetries: llmRetries}
}

// Run drives the dialog for labID until a complete exercise_spec is
// produced, the lab fails, or ctx is cancelled. The caller (the pipeline
// driver) is responsible for transitioning the lab to failed on error.
func (p *Planner) Run(ctx context.Context, labID string) error {
	if err := p.seedPatchFeedback(labID); err != nil {
		return err
	}

	for turn := 0; turn < p.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return ErrCancelled
		}

		snap, err := p.reg.Get(labID)
		if err != nil {
			return err
		}

		var response string
		err = adapters.WithRetry(ctx, p.llmRetries, func() error {
			var genErr error
			response, genErr = p.llm.Generate(ctx, plannerInstruction, toTurns(snap.Conversation))
			return genErr
		})
		if err != nil {
			return fmt.Errorf("planner llm call: %w", err)
		}

		now := time.Now()
		_ = p.reg.Mutate(labID, func(l *registry.Lab) {
			l.Conversation = append(l.Conversation, lab.Message{
				Role: lab.RoleAssistant, Content: response, Timestamp: now,
			})
		})

		if spec, ok := tryExtractExerciseSpec(response); ok {
			return p.reg.Mutate(labID, func(l *registry.Lab) {
				l.Progress.ExerciseSpec = spec
				l.Status = lab.StatusPlannerComplete
				l.CurrentStage = lab.StagePlanner
			})
		}

		if turn == p.maxTurns-1 {
			return ErrPlannerTurnsExhausted
		}

		if err := p.reg.Mutate(labID, func(l *registry.Lab) {
			l.Status = lab.StatusAwaitingUserInput
			l.AwaitingUserInput = true
		}); err != nil {
			return err
		}

		waitCtx, cancel := context.WithTimeout(ctx, p.userReplyTimeout)
		msg, err := p.reg.DequeueMessage(waitCtx, labID)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ErrCancelled
			}
			return ErrUserReplyTimeout
		}

		if err := p.reg.Mutate(labID, func(l *registry.Lab) {
			l.Conversation = append(l.Conversation, lab.Message{
				Role: lab.RoleUser, Content: msg, Timestamp: time.Now(),
			})
			l.Status = lab.StatusPlannerRunning
			l.AwaitingUserInput = false
		}); err != nil {
			return err
		}
	}
	return ErrPlannerTurnsExhausted
}

// seedPatchFeedback appends the RCA patch plan as a user turn when this run
// is itself the rewind target, so the next LLM call sees what went wrong
// instead of repeating the prior dialog blind, and so the conversation
// still alternates roles even though it already ends in an assistant turn
// (§4.8, §8 role-alternation invariant).
func (p *Planner) seedPatchFeedback(labID string) error {
	snap, err := p.reg.Get(labID)
	if err != nil {
		return err
	}
	pp := snap.Progress.PatchPlan
	if pp == nil || pp.TargetStage != lab.StagePlanner || pp.PatchInstructions == "" {
		return nil
	}
	return p.reg.Mutate(labID, func(l *registry.Lab) {
		l.Conversation = append(l.Conversation, lab.Message{
			Role:      lab.RoleUser,
			Content:   "A prior attempt failed validation. Root-cause analysis found:\n" + pp.PatchInstructions,
			Timestamp: time.Now(),
		})
	})
}

type rawExerciseSpec struct {
	Title         *string              `json:"title"`
	Objectives    *[]string            `json:"objectives"`
	Constraints   *lab.Constraints     `json:"constraints"`
	Level         *string              `json:"level"`
	Prerequisites *[]string            `json:"prerequisites"`
}

// tryExtractExerciseSpec scans response for the outermost balanced JSON
// object and checks it carries every required exercise_spec field (§4.5
// step 3).
func tryExtractExerciseSpec(response string) (*lab.ExerciseSpec, bool) {
	raw, ok := ExtractBalancedJSON(response)
	if !ok {
		return nil, false
	}

	var parsed rawExerciseSpec
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, false
	}
	if parsed.Title == nil || *parsed.Title == "" ||
		parsed.Objectives == nil ||
		parsed.Constraints == nil ||
		parsed.Level == nil || *parsed.Level == "" ||
		parsed.Prerequisites == nil {
		return nil, false
	}

	return &lab.ExerciseSpec{
		Title:         *parsed.Title,
		Objectives:    *parsed.Objectives,
		Constraints:   *parsed.Constraints,
		Level:         *parsed.Level,
		Prerequisites: *parsed.Prerequisites,
	}, true
}
