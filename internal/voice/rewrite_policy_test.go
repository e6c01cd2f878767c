package voice

import (
	"strings"
	"testing"
)

func TestDefaultRewritePolicy(t *testing.T) {
	policy := DefaultRewritePolicy(200)

	cases := []struct {
		name string
		text string
		want bool
	}{
		{"short prose", "sounds fine spoken aloud", false},
		{"exactly at limit", strings.Repeat("a", 200), false},
		{"one past limit", strings.Repeat("a", 201), true},
		{"fenced code", "run this:\n```sh\nls\n```", true},
		{"table", "| name | size |", true},
		{"box drawing", "┌─────┐", true},
		{"multibyte under limit", strings.Repeat("é", 200), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy(tc.text); got != tc.want {
				t.Fatalf("policy(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestDefaultRewritePolicyZeroMaxUsesDefault(t *testing.T) {
	policy := DefaultRewritePolicy(0)
	if policy(strings.Repeat("a", 200)) {
		t.Fatalf("policy fired at the default limit, want it to fire only past it")
	}
	if !policy(strings.Repeat("a", 201)) {
		t.Fatalf("policy did not fire past the default limit")
	}
}

func TestStripLightMarkdown(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"**bold** and *italic*", "bold and italic"},
		{"use `go vet` here", "use go vet here"},
		{"  plain text  ", "plain text"},
	}
	for _, tc := range cases {
		if got := StripLightMarkdown(tc.in); got != tc.want {
			t.Fatalf("StripLightMarkdown(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
