package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenUsage_Add(t *testing.T) {
	var u TokenUsage
	assert.True(t, u.IsZero())

	u.Add(TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	u.Add(TokenUsage{PromptTokens: 2, CompletionTokens: 3})

	assert.Equal(t, TokenUsage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 20}, u)
	assert.False(t, u.IsZero())
}
