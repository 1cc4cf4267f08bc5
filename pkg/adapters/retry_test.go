package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 3, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 2, func() error {
		attempts++
		return errors.New("persistent")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestFakeLLMClient_ExhaustsScript(t *testing.T) {
	client := NewFakeLLMClient(LLMScriptEntry{Text: "hi"})
	_, err := client.Generate(context.Background(), "", []ConversationTurn{{Role: "user", Content: "a"}})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "", nil)
	assert.Error(t, err)
}
