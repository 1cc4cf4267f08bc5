package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/labforge/pkg/adapters"
	"github.com/codeready-toolchain/labforge/pkg/lab"
)

// plannerInstruction is the Planner stage's system instruction (§6.3).
const plannerInstruction = `You are a networking lab instructional designer. Ask the instructor ` +
	`clarifying questions until you know enough to fully specify a lab exercise. ` +
	`Once you have enough information, respond with a single JSON object and nothing else, ` +
	`containing exactly these fields: "title" (string), "objectives" (array of strings), ` +
	`"constraints" (object with "device_count" and "time_minutes" integers), "level" (string), ` +
	`"prerequisites" (array of strings). Do not wrap the JSON in markdown fences.`

// designerInstruction is the Designer stage's system instruction (§6.3).
const designerInstruction = `You are a network topology designer. Given an exercise specification, ` +
	`respond with a single JSON object containing: "topology_yaml" (string), ` +
	`"initial_configs" (object mapping device name to an array of CLI commands), ` +
	`"target_configs" (object mapping device name to an array of CLI commands), ` +
	`"platforms" (object mapping device name to a platform tag). Respond with JSON only.`

// authorInstruction is the Author stage's system instruction (§6.3).
const authorInstruction = `You are a lab guide author. Given an exercise specification and a network ` +
	`design, respond with a single JSON object containing: "title", "estimated_minutes", ` +
	`"devices" (array of {"name","platform","role","interfaces","steps"} where each step is ` +
	`{"type": one of "cmd"|"verify"|"note"|"output", "value", "description"}), and optionally ` +
	`"objectives", "prerequisites", "troubleshooting_tips". Respond with JSON only.`

// rcaInstruction is the RCA stage's system instruction (§6.3, §4.8).
const rcaInstruction = `You are a root-cause analyst for a failed networking lab validation. Given the ` +
	`exercise spec, design, lab guide, and validation result, respond with a single JSON object ` +
	`containing exactly: "analysis" (short string), ` +
	`"root_cause_type" (one of "DESIGN", "INSTRUCTION", "OBJECTIVES", "UNKNOWN"), ` +
	`"target_agent" (one of "designer", "author", "planner"), "patch_instructions" (string). ` +
	`Respond with JSON only.`

func toTurns(messages []lab.Message) []adapters.ConversationTurn {
	turns := make([]adapters.ConversationTurn, len(messages))
	for i, m := range messages {
		turns[i] = adapters.ConversationTurn{Role: string(m.Role), Content: m.Content}
	}
	return turns
}

// withLintFeedback appends prior lint issues to an instruction so a retried
// LLM call can see what was wrong with its last attempt (§4.6).
func withLintFeedback(instruction string, issues []string) string {
	if len(issues) == 0 {
		return instruction
	}
	return instruction + "\n\nThe previous attempt had these lint errors, fix them:\n- " + strings.Join(issues, "\n- ")
}

// withPatchInstructions appends an RCA patch plan's instructions to a stage
// instruction, so a rewound stage sees why it's being re-run instead of
// repeating its prior attempt blind (§4.8).
func withPatchInstructions(instruction, patchInstructions string) string {
	if patchInstructions == "" {
		return instruction
	}
	return instruction + "\n\nA prior attempt failed validation. Root-cause analysis found:\n" + patchInstructions
}

func designInputTurn(spec *lab.ExerciseSpec) adapters.ConversationTurn {
	raw, _ := json.Marshal(spec)
	return adapters.ConversationTurn{Role: "user", Content: "exercise_spec: " + string(raw)}
}

func authorInputTurn(spec *lab.ExerciseSpec, design *lab.DesignOutput) adapters.ConversationTurn {
	specRaw, _ := json.Marshal(spec)
	designRaw, _ := json.Marshal(design)
	return adapters.ConversationTurn{
		Role:    "user",
		Content: fmt.Sprintf("exercise_spec: %s\ndesign_output: %s", specRaw, designRaw),
	}
}

func rcaInputTurn(spec *lab.ExerciseSpec, design *lab.DesignOutput, guide *lab.LabGuide, result *lab.ValidationResult) adapters.ConversationTurn {
	raw, _ := json.Marshal(struct {
		ExerciseSpec     *lab.ExerciseSpec     `json:"exercise_spec"`
		DesignOutput     *lab.DesignOutput     `json:"design_output"`
		DraftLabGuide    *lab.LabGuide         `json:"draft_lab_guide"`
		ValidationResult *lab.ValidationResult `json:"validation_result"`
	}{spec, design, guide, result})
	return adapters.ConversationTurn{Role: "user", Content: string(raw)}
}
