package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

// CountTokens returns the number of tokens in text for a specific model,
// falling back to the cl100k_base encoding for unknown models.
func CountTokens(model, text string) int {
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tkm, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0
		}
	}
	return len(tkm.Encode(text, nil, nil))
}
