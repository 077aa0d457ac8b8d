package textutil

import "testing"

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips punctuation", "where's my mother, Julio?", "wheres my mother Julio"},
		{"collapses whitespace", "a   b\t\tc\n\nd", "a b c d"},
		{"keeps hyphen and underscore", "foo-bar_baz", "foo-bar_baz"},
		{"trims edges", "  hello world  ", "hello world"},
		{"drops operators", `"mother" AND (lives OR from)`, "mother AND lives OR from"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeQuery(tt.in)
			if got != tt.want {
				t.Fatalf("SanitizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeQuery_Idempotent(t *testing.T) {
	inputs := []string{
		`"Julio's mother" -- lives/from??`,
		"already clean query",
		"   weird    spacing   ",
	}
	for _, in := range inputs {
		once := SanitizeQuery(in)
		twice := SanitizeQuery(once)
		if once != twice {
			t.Fatalf("SanitizeQuery not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}
