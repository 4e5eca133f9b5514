package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyFragment_AllowsPlainPredicates(t *testing.T) {
	tests := []string{
		"Age > 18",
		"City = 'Seattle' AND Amount >= 100",
		"updated_at IS NOT NULL",
		"(a = 1 OR b = 2)",
		"tableau_score > 5", // contains "table" inside a word
	}
	for _, fragment := range tests {
		t.Run(fragment, func(t *testing.T) {
			assert.NoError(t, VerifyFragment(fragment))
		})
	}
}

func TestVerifyFragment_RejectsIllegalTokens(t *testing.T) {
	tests := []struct {
		fragment string
		token    string
	}{
		{"1=1; DROP TABLE users", ";"},
		{"Age > 18 -- comment", "--"},
		{"a /* hidden */ = 1", "/*"},
		{"@@version", "@@"},
		{"1=1 UNION SELECT password FROM users", "union"},
		{"DROP table users", "drop"},
		{"exec xp_cmdshell", "exec"},
		{"name = 'x' OR EXISTS (SELECT 1)", "select"},
		{"TRUNCATE orders", "truncate"},
	}
	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			err := VerifyFragment(tt.fragment)
			require.Error(t, err)
			var fragErr *FragmentError
			require.ErrorAs(t, err, &fragErr)
			assert.Equal(t, tt.token, fragErr.Token)
		})
	}
}

func TestVerifyFragment_WordBoundaries(t *testing.T) {
	// Keywords embedded inside identifiers are not matches.
	assert.NoError(t, VerifyFragment("dropped_at IS NULL"))
	assert.NoError(t, VerifyFragment("selection = 'a'"))
	assert.NoError(t, VerifyFragment("chart = 'bar'"))

	// But the bare keyword is, regardless of case.
	assert.Error(t, VerifyFragment("SeLeCt 1"))
	assert.Error(t, VerifyFragment("cast(x as int) = 1"))
}
