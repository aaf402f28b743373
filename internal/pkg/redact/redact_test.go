package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "al***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"a@example.com", "***@example.com"},
		{"not-an-email", "***"},
		{"", "***"},
		{"trailing@", "***"},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, Email(tc.in), "input %q", tc.in)
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	require.Equal(t, "[REDACTED_TOKEN]", Token())
	require.Equal(t, "[REDACTED_PASSWORD]", Password())
}
