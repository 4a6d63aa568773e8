package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"simple words", "deploy the service", []string{"deploy", "the", "service"}},
		{"lowercased", "Deploy SERVICE", []string{"deploy", "service"}},
		{"punctuation splits", "rollback: v1.2, failed!", []string{"rollback", "v1", "2", "failed"}},
		{"digits kept", "retry 3 times", []string{"retry", "3", "times"}},
		{"empty", "", nil},
		{"only separators", "--- ...", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestJaccard(t *testing.T) {
	set := func(tokens ...string) map[string]bool {
		return tokenSet(tokens)
	}

	tests := []struct {
		name string
		a, b map[string]bool
		want float64
	}{
		{"identical", set("a", "b"), set("a", "b"), 1},
		{"disjoint", set("a"), set("b"), 0},
		{"half overlap", set("a", "b"), set("b", "c"), 1.0 / 3.0},
		{"both empty", set(), set(), 0},
		{"one empty", set("a"), set(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Jaccard(tt.a, tt.b), 1e-9)
		})
	}
}
