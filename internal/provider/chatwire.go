package provider

import (
	"fmt"

	"github.com/davidbz/hearth/internal/domain"
)

// ChatStreamDone is the sentinel data frame ending an OpenAI-compatible
// chat completion stream.
const ChatStreamDone = "[DONE]"

// ChatRequest is the OpenAI-compatible chat completions request shared by
// the adapters that speak that dialect.
type ChatRequest struct {
	Model         string             `json:"model"`
	Messages      []ChatMessage      `json:"messages"`
	MaxTokens     int                `json:"max_tokens,omitempty"`
	Temperature   float64            `json:"temperature"`
	Stream        bool               `json:"stream,omitempty"`
	Stop          []string           `json:"stop,omitempty"`
	StreamOptions *ChatStreamOptions `json:"stream_options,omitempty"`
}

// ChatStreamOptions asks the vendor to attach usage to the final chunk.
type ChatStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatMessage holds either a plain string or a part list in Content.
type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ChatContentPart is one element of a mixed text/image message.
type ChatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *ChatImageURL `json:"image_url,omitempty"`
}

// ChatImageURL carries an image as a data URL.
type ChatImageURL struct {
	URL string `json:"url"`
}

// ChatUsage is the wire usage block. Cost is an OpenRouter extension;
// vendors that do not bill per request simply never send it.
type ChatUsage struct {
	PromptTokens            int                    `json:"prompt_tokens"`
	CompletionTokens        int                    `json:"completion_tokens"`
	Cost                    *float64               `json:"cost,omitempty"`
	PromptTokensDetails     *ChatPromptDetails     `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *ChatCompletionDetails `json:"completion_tokens_details,omitempty"`
}

// ChatPromptDetails breaks down prompt tokens.
type ChatPromptDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

// ChatCompletionDetails breaks down completion tokens.
type ChatCompletionDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

// ChatChunk is one streamed completion delta.
type ChatChunk struct {
	Choices []ChatChunkChoice `json:"choices"`
	Usage   *ChatUsage        `json:"usage"`
	Error   *ChatWireError    `json:"error"`
}

// ChatChunkChoice wraps a delta with its finish reason.
type ChatChunkChoice struct {
	Delta        ChatDelta `json:"delta"`
	FinishReason string    `json:"finish_reason"`
}

// ChatDelta is the incremental payload. Reasoning is the OpenRouter field
// for thinking output; vendors without it leave it empty.
type ChatDelta struct {
	Content   string `json:"content"`
	Reasoning string `json:"reasoning"`
}

// ChatWireError is an error object embedded in a stream frame.
type ChatWireError struct {
	Message string `json:"message"`
}

// ChatResponse is the non-streaming completion response.
type ChatResponse struct {
	Choices []ChatResponseChoice `json:"choices"`
	Usage   *ChatUsage           `json:"usage"`
}

// ChatResponseChoice wraps a complete message.
type ChatResponseChoice struct {
	Message      ChatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

// ChatResponseMessage is the assembled assistant reply.
type ChatResponseMessage struct {
	Content string `json:"content"`
}

// ChatMessages converts a system prompt and conversation turns to wire
// messages. Text-only turns stay plain strings; turns with images switch to
// part lists with data URLs.
func ChatMessages(system string, turns []domain.Turn) []ChatMessage {
	messages := make([]ChatMessage, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: system})
	}
	for _, turn := range turns {
		messages = append(messages, chatMessage(turn))
	}
	return messages
}

func chatMessage(turn domain.Turn) ChatMessage {
	role := "user"
	if turn.Role == domain.RoleAssistant {
		role = "assistant"
	}

	hasImage := false
	for _, block := range turn.Blocks {
		if block.Type == domain.BlockImage && block.Image != nil {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return ChatMessage{Role: role, Content: turn.JoinText()}
	}

	parts := make([]ChatContentPart, 0, len(turn.Blocks))
	for _, block := range turn.Blocks {
		switch block.Type {
		case domain.BlockImage:
			if block.Image == nil {
				continue
			}
			parts = append(parts, ChatContentPart{
				Type: "image_url",
				ImageURL: &ChatImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", block.Image.MediaType, block.Image.Data),
				},
			})
		default:
			parts = append(parts, ChatContentPart{Type: "text", Text: block.Text})
		}
	}
	return ChatMessage{Role: role, Content: parts}
}

// NormalizeChatUsage maps wire usage to the shared vocabulary. Cost is left
// to the adapters that define it.
func NormalizeChatUsage(u ChatUsage) domain.Usage {
	usage := domain.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
	}
	if u.PromptTokensDetails != nil {
		usage.CacheReadTokens = u.PromptTokensDetails.CachedTokens
	}
	if u.CompletionTokensDetails != nil && u.CompletionTokensDetails.ReasoningTokens > 0 {
		rt := u.CompletionTokensDetails.ReasoningTokens
		usage.ReasoningTokens = &rt
	}
	return usage
}
