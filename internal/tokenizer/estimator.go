// Package tokenizer estimates token counts locally so adapters can budget
// context windows without a vendor round trip.
package tokenizer

import (
	"context"
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

const (
	encodingName = "cl100k_base"

	// textFudgeFactor pads BPE counts. Context budgeting prefers
	// overestimates to overflows, and vendor tokenizers differ from
	// cl100k by up to this margin.
	textFudgeFactor = 1.5

	// fallbackImageTokens approximates an image whose payload is not
	// available for inspection.
	fallbackImageTokens = 300

	// charsPerToken approximates plain text when the encoding cannot be
	// loaded.
	charsPerToken = 4
)

// The encoding is loaded lazily and shared process-wide: loading parses the
// whole BPE vocabulary, which is too expensive to repeat per adapter.
//
//nolint:gochecknoglobals // Shared encoding is a deliberate singleton
var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func sharedEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			observability.FromContext(context.Background()).Warn(
				"failed to load token encoding, using character fallback",
				observability.String("encoding", encodingName),
				observability.Error(err))
			return
		}
		encoding = enc
	})
	return encoding
}

// Estimator implements domain.TokenCounter on the shared BPE encoding.
type Estimator struct{}

// NewEstimator creates a token estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Count estimates the token footprint of content blocks. It never fails:
// text falls back to a character heuristic when the encoding is
// unavailable, images are estimated from payload size.
func (e *Estimator) Count(blocks []domain.ContentBlock) int {
	total := 0
	for _, block := range blocks {
		switch block.Type {
		case domain.BlockText:
			total += e.CountText(block.Text)
		case domain.BlockImage:
			total += imageTokens(block.Image)
		}
	}
	return total
}

// CountText estimates the token footprint of a plain string, padded by the
// fudge factor.
func (e *Estimator) CountText(text string) int {
	if text == "" {
		return 0
	}

	enc := sharedEncoding()
	if enc == nil {
		return (len(text) + charsPerToken - 1) / charsPerToken
	}

	tokens := enc.Encode(text, nil, nil)
	return int(math.Ceil(float64(len(tokens)) * textFudgeFactor))
}

// imageTokens derives a conservative estimate from the base64 payload
// size. The square root keeps large images from eating the whole budget.
func imageTokens(img *domain.ImageSource) int {
	if img == nil || img.Data == "" {
		return fallbackImageTokens
	}
	return int(math.Ceil(math.Sqrt(float64(len(img.Data)))))
}
