package token

import (
	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken counts tokens with a tiktoken BPE encoding. cl100k_base matches
// the GPT-3.5/GPT-4 family and is the encoding the retrieval budget is
// calibrated against.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
}

var _ Counter = (*Tiktoken)(nil)

// NewTiktoken creates a counter for the given model, falling back to the
// cl100k_base encoding when the model is unknown.
func NewTiktoken(model string) (*Tiktoken, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &Tiktoken{encoding: encoding}, nil
}

// Count returns the number of BPE tokens in text.
func (t *Tiktoken) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}
