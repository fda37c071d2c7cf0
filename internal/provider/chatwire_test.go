package provider_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/provider"
)

func TestChatMessages(t *testing.T) {
	t.Run("should keep text turns as plain strings", func(t *testing.T) {
		messages := provider.ChatMessages("be brief", []domain.Turn{
			domain.TextTurn(domain.RoleUser, "hi"),
			domain.TextTurn(domain.RoleAssistant, "hello"),
		})

		require.Len(t, messages, 3)
		require.Equal(t, "system", messages[0].Role)
		require.Equal(t, "be brief", messages[0].Content)
		require.Equal(t, "user", messages[1].Role)
		require.Equal(t, "hi", messages[1].Content)
		require.Equal(t, "assistant", messages[2].Role)
	})

	t.Run("should omit the system message when empty", func(t *testing.T) {
		messages := provider.ChatMessages("", []domain.Turn{
			domain.TextTurn(domain.RoleUser, "hi"),
		})

		require.Len(t, messages, 1)
		require.Equal(t, "user", messages[0].Role)
	})

	t.Run("should switch to part lists for image turns", func(t *testing.T) {
		messages := provider.ChatMessages("", []domain.Turn{
			{Role: domain.RoleUser, Blocks: []domain.ContentBlock{
				domain.TextBlock("look"),
				domain.ImageBlock("image/png", "aGVsbG8="),
			}},
		})

		require.Len(t, messages, 1)
		parts, ok := messages[0].Content.([]provider.ChatContentPart)
		require.True(t, ok)
		require.Len(t, parts, 2)
		require.Equal(t, "text", parts[0].Type)
		require.Equal(t, "look", parts[0].Text)
		require.Equal(t, "image_url", parts[1].Type)
		require.Equal(t, "data:image/png;base64,aGVsbG8=", parts[1].ImageURL.URL)
	})
}

func TestNormalizeChatUsage(t *testing.T) {
	t.Run("should map the base counters", func(t *testing.T) {
		usage := provider.NormalizeChatUsage(provider.ChatUsage{
			PromptTokens:     7,
			CompletionTokens: 2,
		})

		require.Equal(t, 7, usage.InputTokens)
		require.Equal(t, 2, usage.OutputTokens)
		require.Zero(t, usage.CacheReadTokens)
		require.Nil(t, usage.ReasoningTokens)
		require.Nil(t, usage.TotalCost)
	})

	t.Run("should map detail breakdowns when reported", func(t *testing.T) {
		usage := provider.NormalizeChatUsage(provider.ChatUsage{
			PromptTokens:            7,
			CompletionTokens:        2,
			PromptTokensDetails:     &provider.ChatPromptDetails{CachedTokens: 3},
			CompletionTokensDetails: &provider.ChatCompletionDetails{ReasoningTokens: 5},
		})

		require.Equal(t, 3, usage.CacheReadTokens)
		require.NotNil(t, usage.ReasoningTokens)
		require.Equal(t, 5, *usage.ReasoningTokens)
	})

	t.Run("should not fabricate reasoning tokens from a zero detail", func(t *testing.T) {
		usage := provider.NormalizeChatUsage(provider.ChatUsage{
			PromptTokens:            7,
			CompletionTokensDetails: &provider.ChatCompletionDetails{},
		})

		require.Nil(t, usage.ReasoningTokens)
	})
}
