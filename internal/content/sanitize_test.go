package content

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var allowedName = regexp.MustCompile(`^[a-z0-9_-]+$`)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Moby Dick", "moby_dick"},
		{"strips punctuation", "war & peace!", "war__peace"},
		{"keeps hyphen and underscore", "item-42_final", "item-42_final"},
		{"strips traversal", "../../etc/passwd", "etcpasswd"},
		{"strips slashes", "a/b\\c", "abc"},
		{"unicode removed", "crème brûlée", "crme_brle"},
		{"empty falls back", "", "item"},
		{"only junk falls back", "!!!", "item"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.input))
		})
	}
}

func TestSanitizeName_AlwaysSafe(t *testing.T) {
	inputs := []string{
		"normal title",
		"../../../root",
		"..\\..\\windows",
		strings.Repeat("a", 500),
		"null\x00byte",
		"dots....everywhere..",
		"<script>alert(1)</script>",
	}

	for _, input := range inputs {
		got := SanitizeName(input)
		assert.True(t, allowedName.MatchString(got), "unsafe output %q for %q", got, input)
		assert.NotContains(t, got, "..")
		assert.LessOrEqual(t, len(got), maxNameLength)
	}
}

func TestAssetPath_Deterministic(t *testing.T) {
	first := AssetPath("openlibrary", "OL123M", "pdf")
	second := AssetPath("openlibrary", "OL123M", "pdf")

	assert.Equal(t, first, second)
	assert.Equal(t, "openlibrary/ol123m.pdf", first)
}
