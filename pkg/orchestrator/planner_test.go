package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/labforge/pkg/adapters"
	"github.com/codeready-toolchain/labforge/pkg/lab"
	"github.com/codeready-toolchain/labforge/pkg/registry"
)

func seedLab(t *testing.T, reg *registry.Registry, prompt string) string {
	t.Helper()
	id := reg.Create(prompt, lab.Options{})
	require.NoError(t, reg.Mutate(id, func(l *registry.Lab) {
		l.Conversation = append(l.Conversation, lab.Message{Role: lab.RoleUser, Content: prompt, Timestamp: time.Now()})
	}))
	return id
}

func TestPlanner_SingleTurnProducesSpec(t *testing.T) {
	reg := registry.New(4)
	id := seedLab(t, reg, "Build a 2-router static-routing lab for CCNA level, 30 minutes, include verification steps")

	spec := `{"title":"Static routing basics","objectives":["configure static routes"],"constraints":{"device_count":2,"time_minutes":30},"level":"CCNA","prerequisites":[]}`
	llm := adapters.NewFakeLLMClient(adapters.LLMScriptEntry{Text: spec})
	p := NewPlanner(llm, reg, 10, time.Second, 1)

	err := p.Run(context.Background(), id)
	require.NoError(t, err)

	snap, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, lab.StatusPlannerComplete, snap.Status)
	require.NotNil(t, snap.Progress.ExerciseSpec)
	assert.Equal(t, "Static routing basics", snap.Progress.ExerciseSpec.Title)
}

func TestPlanner_TwoTurnsWithUserReply(t *testing.T) {
	reg := registry.New(4)
	id := seedLab(t, reg, "teach static routing")

	llm := adapters.NewFakeLLMClient(
		adapters.LLMScriptEntry{Text: "How many routers and what skill level?"},
		adapters.LLMScriptEntry{Text: `{"title":"Static routing","objectives":["o"],"constraints":{"device_count":2,"time_minutes":30},"level":"CCNA","prerequisites":[]}`},
	)
	p := NewPlanner(llm, reg, 10, 2*time.Second, 1)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), id) }()

	require.Eventually(t, func() bool {
		snap, _ := reg.Get(id)
		return snap.Status == lab.StatusAwaitingUserInput
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, reg.EnqueueMessage(id, "2 routers, CCNA, 30 min, include verification"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("planner did not finish")
	}

	snap, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, lab.StatusPlannerComplete, snap.Status)
	require.Len(t, snap.Conversation, 4)
	assert.Equal(t, lab.RoleUser, snap.Conversation[0].Role)
	assert.Equal(t, lab.RoleAssistant, snap.Conversation[1].Role)
	assert.Equal(t, lab.RoleUser, snap.Conversation[2].Role)
	assert.Equal(t, lab.RoleAssistant, snap.Conversation[3].Role)
}

func TestPlanner_TurnsExhausted(t *testing.T) {
	reg := registry.New(4)
	id := seedLab(t, reg, "teach something")

	entries := make([]adapters.LLMScriptEntry, 0)
	for i := 0; i < 2; i++ {
		entries = append(entries, adapters.LLMScriptEntry{Text: "still need more detail, can you clarify?"})
	}
	llm := adapters.NewFakeLLMClient(entries...)
	p := NewPlanner(llm, reg, 2, time.Second, 1)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = reg.EnqueueMessage(id, "more detail")
	}()

	err := p.Run(context.Background(), id)
	assert.True(t, errors.Is(err, ErrPlannerTurnsExhausted))
}

func TestPlanner_UserReplyTimeout(t *testing.T) {
	reg := registry.New(4)
	id := seedLab(t, reg, "teach static routing")

	llm := adapters.NewFakeLLMClient(adapters.LLMScriptEntry{Text: "what level are your students?"})
	p := NewPlanner(llm, reg, 10, 20*time.Millisecond, 1)

	err := p.Run(context.Background(), id)
	assert.True(t, errors.Is(err, ErrUserReplyTimeout))
}

func TestPlanner_RewindSeedsPatchFeedbackAsUserTurn(t *testing.T) {
	reg := registry.New(4)
	id := seedLab(t, reg, "teach static routing")

	require.NoError(t, reg.Mutate(id, func(l *registry.Lab) {
		l.Conversation = append(l.Conversation, lab.Message{Role: lab.RoleAssistant, Content: fullSpecJSON, Timestamp: time.Now()})
		l.Progress.PatchPlan = &lab.PatchPlan{
			TargetStage:       lab.StagePlanner,
			PatchInstructions: "the device count in constraints was wrong, use 3 routers",
		}
	}))

	llm := adapters.NewFakeLLMClient(adapters.LLMScriptEntry{Text: fullSpecJSON})
	p := NewPlanner(llm, reg, 10, time.Second, 1)

	require.NoError(t, p.Run(context.Background(), id))

	snap, err := reg.Get(id)
	require.NoError(t, err)
	require.Len(t, snap.Conversation, 3)
	assert.Equal(t, lab.RoleUser, snap.Conversation[0].Role)
	assert.Equal(t, lab.RoleAssistant, snap.Conversation[1].Role)
	assert.Equal(t, lab.RoleUser, snap.Conversation[2].Role)
	assert.Contains(t, snap.Conversation[2].Content, "3 routers")
	require.Len(t, llm.Captured, 1)
	assert.Equal(t, snap.Conversation[2].Content, llm.Captured[0].Content)
}

func TestPlanner_CancellationWhileAwaitingUser(t *testing.T) {
	reg := registry.New(4)
	id := seedLab(t, reg, "teach static routing")

	llm := adapters.NewFakeLLMClient(adapters.LLMScriptEntry{Text: "what level are your students?"})
	p := NewPlanner(llm, reg, 10, 5*time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Run(ctx, id)
	assert.True(t, errors.Is(err, ErrCancelled))
}
