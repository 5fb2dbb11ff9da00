package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"  Go & Rust: Part 2 ", "go-rust-part-2"},
		{"Already-slugged", "already-slugged"},
		{"Multiple   spaces", "multiple-spaces"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestGenerateEventID(t *testing.T) {
	tests := []struct {
		name, date, want string
	}{
		{"Intro to Go & Rust!", "2024-03-15", "intro-to-go-rust-20240315"},
		{"A Very Long Workshop Name That Exceeds Thirty Characters", "2024-12-01", "a-very-long-workshop-name-that-20241201"},
		{"abcdefghij abcdefghij abcdefg xyz", "2025-01-02", "abcdefghij-abcdefghij-abcdefg-20250102"},
		{"!!Launch", "2024-06-30", "launch-20240630"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateEventID(tt.name, tt.date))
		})
	}
}

func TestGenerateEventID_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.String().Draw(t, "name")
		id := GenerateEventID(name, "2024-01-31")

		prefix := strings.TrimSuffix(id, "-20240131")
		if len(prefix) > 30 {
			t.Fatalf("name part %q longer than 30", prefix)
		}
		if strings.Contains(prefix, "--") {
			t.Fatalf("name part %q contains repeated dashes", prefix)
		}
		if strings.HasPrefix(prefix, "-") || strings.HasSuffix(prefix, "-") {
			t.Fatalf("name part %q not trimmed", prefix)
		}
		for _, r := range prefix {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				t.Fatalf("unexpected rune %q in %q", r, prefix)
			}
		}
	})
}

func TestGenerateExcerpt(t *testing.T) {
	assert.Equal(t, "Hello world", GenerateExcerpt("<p>Hello <b>world</b></p>"))

	long := strings.Repeat("word ", 40)
	want := strings.TrimSuffix(strings.Repeat("word ", 30), " ") + "..."
	assert.Equal(t, want, GenerateExcerpt(long))
}

func TestExtractFirstImage(t *testing.T) {
	html := `<p>intro</p><img class="x" src="https://img.example/a.png"><img src='b.png'>`
	assert.Equal(t, "https://img.example/a.png", ExtractFirstImage(html))
	assert.Equal(t, "", ExtractFirstImage("<p>no images</p>"))
}
