// Package prompt validates raw user input before it is relayed upstream.
package prompt

import "strings"

// Reason classifies why input was rejected.
type Reason int

const (
	EmptyInput Reason = iota
	TooLong
)

// Outcome is the result of validating one prompt. Exactly one of
// Accepted or Rejected semantics applies: when Accepted is true, Prompt
// holds the text to send upstream; otherwise Reason (and Limit for
// TooLong) describe the rejection.
type Outcome struct {
	Accepted bool
	Prompt   string
	Reason   Reason
	Limit    int
}

// Validate trims the raw text, appends any quoted reply context as a
// quote block, and applies the optional length ceiling. Pure function.
func Validate(raw, quoted string, maxLen int, enforceMax bool) Outcome {
	text := strings.TrimSpace(raw)

	if q := strings.TrimSpace(quoted); q != "" {
		quoteLines := make([]string, 0, 4)
		for _, line := range strings.Split(q, "\n") {
			quoteLines = append(quoteLines, "> "+line)
		}
		if text == "" {
			text = strings.Join(quoteLines, "\n")
		} else {
			text = strings.Join(quoteLines, "\n") + "\n\n" + text
		}
	}

	if text == "" {
		return Outcome{Reason: EmptyInput}
	}
	if enforceMax && len(text) > maxLen {
		return Outcome{Reason: TooLong, Limit: maxLen}
	}
	return Outcome{Accepted: true, Prompt: text}
}
