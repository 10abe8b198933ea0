package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMint(t *testing.T) {
	mint := "6p6xgHyF7AeE6TZkSmFsko444wqoP15icUSqi2jfGiPN"

	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{"plain address", mint, mint},
		{"quoted address", `"` + mint + `"`, mint},
		{"trailing period", mint + ".", mint},
		{"null refusal", "null", ""},
		{"Null refusal", "Null", ""},
		{"none refusal", "none", ""},
		{"empty", "", ""},
		{"too short", "abc123", ""},
		{"too long", mint + mint, ""},
		{"contains space", "6p6xgHyF7AeE6TZkSmFsko 444wqoP15icUSqi2jfGiPN", ""},
		{"non-base58 chars", "0OIl+" + mint[:30], ""},
		{"sentence answer", "The token address is " + mint, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeMint(tt.answer))
		})
	}
}
