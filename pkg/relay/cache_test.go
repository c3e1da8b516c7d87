package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplyKey(t *testing.T) {
	k1 := replyKey("openai", "hello")
	require.Equal(t, k1, replyKey("openai", "hello"))

	// Provider and prompt both feed the key; the separator keeps
	// ("ab","c") and ("a","bc") apart.
	require.NotEqual(t, k1, replyKey("deepseek", "hello"))
	require.NotEqual(t, k1, replyKey("openai", "hello "))
	require.NotEqual(t, replyKey("ab", "c"), replyKey("a", "bc"))
}
