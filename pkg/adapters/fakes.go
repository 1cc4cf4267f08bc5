package adapters

import (
	"context"
	"fmt"
	"sync"
)

// LLMScriptEntry is one scripted response consumed by FakeLLMClient, in
// order, each time Generate is called.
type LLMScriptEntry struct {
	Text  string
	Error error
}

// FakeLLMClient implements LLMClient by replaying a fixed script, and
// records every call for assertions.
type FakeLLMClient struct {
	mu       sync.Mutex
	script   []LLMScriptEntry
	index    int
	Captured []ConversationTurn
}

// NewFakeLLMClient builds a FakeLLMClient that replays script in order.
func NewFakeLLMClient(script ...LLMScriptEntry) *FakeLLMClient {
	return &FakeLLMClient{script: script}
}

// Generate implements LLMClient.
func (f *FakeLLMClient) Generate(_ context.Context, _ string, conversation []ConversationTurn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(conversation) > 0 {
		f.Captured = append(f.Captured, conversation[len(conversation)-1])
	}

	if f.index >= len(f.script) {
		return "", fmt.Errorf("fake llm client: script exhausted after %d calls", f.index)
	}
	entry := f.script[f.index]
	f.index++
	if entry.Error != nil {
		return "", entry.Error
	}
	return entry.Text, nil
}

// FakeLinterClient returns clean (empty-issue) results unless a test
// populates TopologyIssues/CLIResults or Err.
type FakeLinterClient struct {
	TopologyIssues []LintIssue
	CLIResults     []CommandResult
	Err            error
}

// LintTopology implements LinterClient.
func (f *FakeLinterClient) LintTopology(context.Context, string) ([]LintIssue, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.TopologyIssues, nil
}

// LintCLI implements LinterClient.
func (f *FakeLinterClient) LintCLI(context.Context, string, []string, map[string]string) ([]CommandResult, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.CLIResults, nil
}

// FakeRunnerClient drives the Validator through a scripted execution
// without any network traffic. Statuses is a sequence of responses Status
// walks through, "running" first, terminal last — typical of the polling
// loop the real runner exhibits.
type FakeRunnerClient struct {
	mu          sync.Mutex
	SubmitErr   error
	ExecutionID string
	Statuses    []ExecutionStatus
	pollIndex   int
}

// Submit implements RunnerClient.
func (f *FakeRunnerClient) Submit(context.Context, string) (string, error) {
	if f.SubmitErr != nil {
		return "", f.SubmitErr
	}
	id := f.ExecutionID
	if id == "" {
		id = "fake-execution"
	}
	return id, nil
}

// Status implements RunnerClient.
func (f *FakeRunnerClient) Status(context.Context, string) (ExecutionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Statuses) == 0 {
		return ExecutionStatus{State: ExecutionSucceeded}, nil
	}
	idx := f.pollIndex
	if idx >= len(f.Statuses) {
		idx = len(f.Statuses) - 1
	} else {
		f.pollIndex++
	}
	return f.Statuses[idx], nil
}
