// Package adapters isolates the orchestration core from its external
// collaborators: the LLM inference backend, the parser/linter service, the
// headless runner, and its artifact object store (spec.md §4.9). LLMClient,
// LinterClient and RunnerClient each have an HTTP+JSON implementation for
// production and a scriptable fake for tests; ArtifactStore has an S3
// implementation and an in-memory one, which the tests use.
package adapters

import "context"

// LLMClient generates a single completion from a system instruction and a
// conversation. Implementations must be safe for concurrent use; callers
// retry on error at the stage level (§7).
type LLMClient interface {
	Generate(ctx context.Context, systemInstruction string, conversation []ConversationTurn) (string, error)
}

// ConversationTurn is one message handed to the LLM, independent of the
// lab's own lab.Message type so this package has no dependency on pkg/lab.
type ConversationTurn struct {
	Role    string
	Content string
}

// LintIssue is one problem reported by the linter against a topology or
// command sequence.
type LintIssue struct {
	Severity string // "error" or "warning"
	Message  string
	Location string // device name, line, or other positional hint
}

// CommandResult is the linter's per-command verdict from LintCLI.
type CommandResult struct {
	Command string
	Valid   bool
	Message string
}

// LinterClient validates topology descriptions and CLI command sequences.
// Side-effect-free and retriable (§4.9).
type LinterClient interface {
	LintTopology(ctx context.Context, topologyYAML string) ([]LintIssue, error)
	LintCLI(ctx context.Context, deviceType string, commands []string, options map[string]string) ([]CommandResult, error)
}

// ExecutionState is the headless runner's reported job state.
type ExecutionState string

// ExecutionState values.
const (
	ExecutionRunning   ExecutionState = "running"
	ExecutionSucceeded ExecutionState = "succeeded"
	ExecutionFailed    ExecutionState = "failed"
)

// ExecutionStatus is the result of polling a submitted run.
type ExecutionStatus struct {
	State      ExecutionState
	StepsTotal int
	StepsPass  int
}

// RunnerClient submits a validation payload to the headless runner and
// polls it to completion.
type RunnerClient interface {
	Submit(ctx context.Context, payloadRef string) (executionID string, err error)
	Status(ctx context.Context, executionID string) (ExecutionStatus, error)
}

// ArtifactStore is the blob store shared between the core and the runner
// for handing payloads and results back and forth.
type ArtifactStore interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
}
