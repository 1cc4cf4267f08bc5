package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/labforge/pkg/adapters"
	"github.com/codeready-toolchain/labforge/pkg/config"
	"github.com/codeready-toolchain/labforge/pkg/lab"
	"github.com/codeready-toolchain/labforge/pkg/registry"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.PipelineTimeoutS = 5
	cfg.PlannerTimeoutS = 3
	cfg.UserReplyTimeoutS = 2
	cfg.StageTimeoutS = 2
	cfg.ValidatorTimeoutS = 2
	cfg.PollIntervalS = 1
	cfg.PendingQueueSize = 4
	return cfg
}

const fullSpecJSON = `{"title":"Static routing basics","objectives":["configure static routes"],"constraints":{"device_count":2,"time_minutes":30},"level":"CCNA","prerequisites":[]}`
const designJSON = `{"topology_yaml":"r1--r2","initial_configs":{"r1":["show run"],"r2":["show run"]},"target_configs":{},"platforms":{"r1":"ios","r2":"ios"}}`
const guideJSON = `{"title":"Static routing lab","estimated_minutes":30,"devices":[{"name":"r1","platform":"ios","steps":[{"type":"cmd","value":"ip route 0.0.0.0 0.0.0.0 1.1.1.1","description":"set default route"},{"type":"verify","value":"show ip route","description":"confirm route"}]}]}`

func runDriverSync(t *testing.T, d *Driver, labID string, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Run(ctx, labID)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout + time.Second):
		t.Fatal("driver did not finish in time")
	}
}

func TestDriver_ScenarioA_HappyPathDryRun(t *testing.T) {
	reg := registry.New(4)
	cfg := testConfig()
	id := reg.Create("Build a 2-router static-routing lab for CCNA level, 30 minutes, include verification steps", lab.Options{DryRun: true, EnableRCA: true})
	require.NoError(t, reg.Mutate(id, func(l *registry.Lab) {
		l.Conversation = append(l.Conversation, lab.Message{Role: lab.RoleUser, Content: l.Prompt, Timestamp: time.Now()})
	}))

	llm := adapters.NewFakeLLMClient(
		adapters.LLMScriptEntry{Text: fullSpecJSON},
		adapters.LLMScriptEntry{Text: designJSON},
		adapters.LLMScriptEntry{Text: guideJSON},
	)
	d := NewDriver(reg, cfg, llm, &adapters.FakeLinterClient{}, &adapters.FakeRunnerClient{}, adapters.NewMemoryArtifactStore(), nil)

	runDriverSync(t, d, id, 5*time.Second)

	snap, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, lab.StatusCompleted, snap.Status)
	assert.NotNil(t, snap.Progress.ExerciseSpec)
	assert.NotNil(t, snap.Progress.DesignOutput)
	assert.NotNil(t, snap.Progress.DraftLabGuide)
	assert.Nil(t, snap.Progress.ValidationResult)
	assert.Equal(t, 0, snap.RetryCount)
}

func TestDriver_ScenarioB_InteractivePlannerTwoTurns(t *testing.T) {
	reg := registry.New(4)
	cfg := testConfig()
	id := reg.Create("teach static routing", lab.Options{DryRun: true})
	require.NoError(t, reg.Mutate(id, func(l *registry.Lab) {
		l.Conversation = append(l.Conversation, lab.Message{Role: lab.RoleUser, Content: l.Prompt, Timestamp: time.Now()})
	}))

	llm := adapters.NewFakeLLMClient(
		adapters.LLMScriptEntry{Text: "How many routers, and what skill level?"},
		adapters.LLMScriptEntry{Text: fullSpecJSON},
		adapters.LLMScriptEntry{Text: designJSON},
		adapters.LLMScriptEntry{Text: guideJSON},
	)
	d := NewDriver(reg, cfg, llm, &adapters.FakeLinterClient{}, &adapters.FakeRunnerClient{}, adapters.NewMemoryArtifactStore(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() { d.Run(ctx, id); close(done) }()

	require.Eventually(t, func() bool {
		snap, _ := reg.Get(id)
		return snap.Status == lab.StatusAwaitingUserInput
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, reg.EnqueueMessage(id, "2 routers, CCNA, 30 min, include verification"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not finish")
	}

	snap, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, lab.StatusCompleted, snap.Status)
	assert.Len(t, snap.Conversation, 4)
}

func TestDriver_ScenarioC_ValidatorFailureTriggersRCAThenSucceeds(t *testing.T) {
	reg := registry.New(4)
	cfg := testConfig()
	cfg.PipelineTimeoutS = 8
	id := reg.Create("build a lab", lab.Options{EnableRCA: true})
	require.NoError(t, reg.Mutate(id, func(l *registry.Lab) {
		l.Conversation = append(l.Conversation, lab.Message{Role: lab.RoleUser, Content: l.Prompt, Timestamp: time.Now()})
	}))

	llm := adapters.NewFakeLLMClient(
		adapters.LLMScriptEntry{Text: fullSpecJSON},
		adapters.LLMScriptEntry{Text: designJSON},
		adapters.LLMScriptEntry{Text: guideJSON},
		adapters.LLMScriptEntry{Text: `{"analysis":"missing a config line","root_cause_type":"INSTRUCTION","target_agent":"author","patch_instructions":"add the missing line"}`},
		adapters.LLMScriptEntry{Text: guideJSON},
	)
	runner := &adapters.FakeRunnerClient{Statuses: []adapters.ExecutionStatus{
		{State: adapters.ExecutionFailed, StepsTotal: 10, StepsPass: 3},
		{State: adapters.ExecutionSucceeded, StepsTotal: 10, StepsPass: 10},
	}}
	d := NewDriver(reg, cfg, llm, &adapters.FakeLinterClient{}, runner, adapters.NewMemoryArtifactStore(), nil)

	runDriverSync(t, d, id, 8*time.Second)

	snap, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, lab.StatusCompleted, snap.Status)
	assert.Equal(t, 1, snap.RetryCount)
	require.NotNil(t, snap.Progress.PatchPlan)
	assert.Equal(t, lab.RootCauseInstruction, snap.Progress.PatchPlan.RootCauseType)
	require.NotNil(t, snap.Progress.ValidationResult)
	assert.True(t, snap.Progress.ValidationResult.Success)
}

func TestDriver_ScenarioD_RCARetriesExhausted(t *testing.T) {
	reg := registry.New(4)
	cfg := testConfig()
	cfg.MaxRCARetries = 2
	cfg.PipelineTimeoutS = 8
	id := reg.Create("build a lab", lab.Options{EnableRCA: true})
	require.NoError(t, reg.Mutate(id, func(l *registry.Lab) {
		l.Conversation = append(l.Conversation, lab.Message{Role: lab.RoleUser, Content: l.Prompt, Timestamp: time.Now()})
	}))

	rcaResponse := `{"analysis":"bad topology","root_cause_type":"DESIGN","target_agent":"designer","patch_instructions":"retry design"}`
	llm := adapters.NewFakeLLMClient(
		adapters.LLMScriptEntry{Text: fullSpecJSON},
		adapters.LLMScriptEntry{Text: designJSON},
		adapters.LLMScriptEntry{Text: guideJSON},
		adapters.LLMScriptEntry{Text: rcaResponse},
		adapters.LLMScriptEntry{Text: designJSON},
		adapters.LLMScriptEntry{Text: guideJSON},
		adapters.LLMScriptEntry{Text: rcaResponse},
		adapters.LLMScriptEntry{Text: designJSON},
		adapters.LLMScriptEntry{Text: guideJSON},
	)
	runner := &adapters.FakeRunnerClient{Statuses: []adapters.ExecutionStatus{
		{State: adapters.ExecutionFailed, StepsTotal: 10, StepsPass: 2},
	}}
	d := NewDriver(reg, cfg, llm, &adapters.FakeLinterClient{}, runner, adapters.NewMemoryArtifactStore(), nil)

	runDriverSync(t, d, id, 8*time.Second)

	snap, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, lab.StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.RetryCount)
	require.NotNil(t, snap.Progress.ValidationResult)
	assert.False(t, snap.Progress.ValidationResult.Success)
}

func TestDriver_ScenarioE_UserReplyTimeout(t *testing.T) {
	reg := registry.New(4)
	cfg := testConfig()
	cfg.UserReplyTimeoutS = 0 // forced via Duration below; kept for documentation
	id := reg.Create("teach static routing", lab.Options{})
	require.NoError(t, reg.Mutate(id, func(l *registry.Lab) {
		l.Conversation = append(l.Conversation, lab.Message{Role: lab.RoleUser, Content: l.Prompt, Timestamp: time.Now()})
	}))

	llm := adapters.NewFakeLLMClient(adapters.LLMScriptEntry{Text: "what level are your students?"})
	d := NewDriver(reg, cfg, llm, &adapters.FakeLinterClient{}, &adapters.FakeRunnerClient{}, adapters.NewMemoryArtifactStore(), nil)
	d.planner = NewPlanner(llm, reg, cfg.MaxPlannerTurns, 30*time.Millisecond, cfg.MaxStageRetries)

	runDriverSync(t, d, id, 2*time.Second)

	snap, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, lab.StatusFailed, snap.Status)
	assert.False(t, snap.AwaitingUserInput)
	assert.Contains(t, snap.Error, "did not respond")
}

func TestDriver_ScenarioF_PipelineTimeout(t *testing.T) {
	reg := registry.New(4)
	cfg := testConfig()
	cfg.PipelineTimeoutS = 1
	id := reg.Create("build a lab", lab.Options{})
	require.NoError(t, reg.Mutate(id, func(l *registry.Lab) {
		l.Conversation = append(l.Conversation, lab.Message{Role: lab.RoleUser, Content: l.Prompt, Timestamp: time.Now()})
	}))

	llm := adapters.NewFakeLLMClient(adapters.LLMScriptEntry{Text: fullSpecJSON}, adapters.LLMScriptEntry{Text: designJSON})
	slowLinter := &blockingLinter{delay: 2 * time.Second}
	d := NewDriver(reg, cfg, llm, slowLinter, &adapters.FakeRunnerClient{}, adapters.NewMemoryArtifactStore(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	d.Run(ctx, id)

	snap, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, lab.StatusFailed, snap.Status)
	assert.Contains(t, snap.Error, "pipeline timeout")
}

// blockingLinter stalls every call past ctx cancellation, modeling a
// Designer call that never returns within the pipeline budget (scenario F).
type blockingLinter struct {
	delay time.Duration
}

func (b *blockingLinter) LintTopology(ctx context.Context, _ string) ([]adapters.LintIssue, error) {
	select {
	case <-time.After(b.delay):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingLinter) LintCLI(ctx context.Context, _ string, _ []string, _ map[string]string) ([]adapters.CommandResult, error) {
	select {
	case <-time.After(b.delay):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
