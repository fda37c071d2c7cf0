package domain

import "strings"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates content block variants.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
)

// ImageSource holds a base64-encoded image payload.
type ImageSource struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ContentBlock is a single element of a turn: text or an image.
type ContentBlock struct {
	Type  BlockType    `json:"type"`
	Text  string       `json:"text,omitempty"`
	Image *ImageSource `json:"image,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageBlock builds an image content block.
func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{
		Type:  BlockImage,
		Image: &ImageSource{MediaType: mediaType, Data: data},
	}
}

// Turn is one user or assistant entry in the conversation history.
type Turn struct {
	Role   Role           `json:"role"`
	Blocks []ContentBlock `json:"blocks"`
}

// TextTurn builds a turn containing a single text block.
func TextTurn(role Role, text string) Turn {
	return Turn{Role: role, Blocks: []ContentBlock{TextBlock(text)}}
}

// JoinText concatenates the text blocks of the turn. Image blocks are
// skipped; providers that only accept plain strings use this to flatten
// history.
func (t Turn) JoinText() string {
	var sb strings.Builder
	for _, block := range t.Blocks {
		if block.Type == BlockText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// ChunkType discriminates stream chunk variants.
type ChunkType string

const (
	// ChunkText carries a fragment of the assistant's visible response.
	ChunkText ChunkType = "text"

	// ChunkReasoning carries a fragment of the model's thinking output.
	// Reasoning is never merged into text.
	ChunkReasoning ChunkType = "reasoning"

	// ChunkUsage carries normalized token accounting. At most one usage
	// chunk is emitted per stream, after all content.
	ChunkUsage ChunkType = "usage"

	// ChunkError terminates a stream that failed mid-flight. No chunk
	// follows it.
	ChunkError ChunkType = "error"
)

// StreamChunk is one normalized element of a provider stream.
type StreamChunk struct {
	Type  ChunkType `json:"type"`
	Text  string    `json:"text,omitempty"`
	Usage *Usage    `json:"usage,omitempty"`
	Err   error     `json:"-"`
}

// TextChunk builds a text chunk.
func TextChunk(text string) StreamChunk {
	return StreamChunk{Type: ChunkText, Text: text}
}

// ReasoningChunk builds a reasoning chunk.
func ReasoningChunk(text string) StreamChunk {
	return StreamChunk{Type: ChunkReasoning, Text: text}
}

// UsageChunk builds a usage chunk.
func UsageChunk(usage Usage) StreamChunk {
	return StreamChunk{Type: ChunkUsage, Usage: &usage}
}

// ErrorChunk builds a terminal error chunk.
func ErrorChunk(err error) StreamChunk {
	return StreamChunk{Type: ChunkError, Err: err}
}

// Usage tracks normalized token consumption for one request. Fields a
// vendor did not report stay at their zero value; optional fields stay nil
// rather than being fabricated.
type Usage struct {
	InputTokens      int      `json:"input_tokens"`
	OutputTokens     int      `json:"output_tokens"`
	CacheWriteTokens int      `json:"cache_write_tokens,omitempty"`
	CacheReadTokens  int      `json:"cache_read_tokens,omitempty"`
	ReasoningTokens  *int     `json:"reasoning_tokens,omitempty"`
	TotalCost        *float64 `json:"total_cost,omitempty"`
}
