package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"pagesmith/internal/domain"
)

// perMessageOverhead approximates the role and separator tokens chat models
// add around every message.
const perMessageOverhead = 4

// Counter estimates prompt size with the cl100k_base encoding. DeepSeek uses
// its own tokenizer, so counts are an estimate used for limits and metadata.
type Counter struct {
	codec tokenizer.Codec
}

func New() (*Counter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("tokens: load codec: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the estimated prompt tokens for a conversation.
func (c *Counter) Count(turns []domain.Turn) (int, error) {
	total := 0
	for i, t := range turns {
		ids, _, err := c.codec.Encode(t.Content)
		if err != nil {
			return 0, fmt.Errorf("tokens: encode turn %d: %w", i, err)
		}
		total += len(ids) + perMessageOverhead
	}
	return total, nil
}
