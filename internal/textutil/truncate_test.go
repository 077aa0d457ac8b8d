package textutil

import (
	"reflect"
	"strings"
	"testing"
)

func TestTruncateRepetitive(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "detects doubled chunk and keeps only the first copy",
			in:   "the cat sat on the matthe cat sat on the mat and then stopped",
			want: "the cat sat on the mat",
		},
		{
			name: "no repetition leaves text untouched",
			in:   "a perfectly ordinary sentence with no loops",
			want: "a perfectly ordinary sentence with no loops",
		},
		{
			name: "short string untouched",
			in:   "hi",
			want: "hi",
		},
		{
			name: "whitespace-only repeated chunk is not truncated",
			in:   strings.Repeat(" ", 20),
			want: strings.Repeat(" ", 20),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRepetitive(tt.in)
			if got != tt.want {
				t.Fatalf("TruncateRepetitive(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncateRepetitive_Idempotent(t *testing.T) {
	in := "the cat sat on the matthe cat sat on the mat and then stopped"
	once := TruncateRepetitive(in)
	twice := TruncateRepetitive(once)
	if once != twice {
		t.Fatalf("not idempotent: once=%q twice=%q", once, twice)
	}
}

func TestSplitSeedQueries(t *testing.T) {
	raw := "1. Where does Julio's mother live?\n- \"where does julio's mother live?\"\n2. What city is Miguelturra in?\n* Miguelturra location\n"
	got := SplitSeedQueries(raw)
	want := []string{
		"Where does Julio's mother live?",
		"What city is Miguelturra in?",
		"Miguelturra location",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitSeedQueries = %#v, want %#v", got, want)
	}
}

func TestSplitSeedQueries_CapsAtThree(t *testing.T) {
	raw := "one\ntwo\nthree\nfour\nfive"
	got := SplitSeedQueries(raw)
	if len(got) != 3 {
		t.Fatalf("expected 3 queries, got %d: %#v", len(got), got)
	}
}

func TestSplitSeedQueries_Empty(t *testing.T) {
	got := SplitSeedQueries("")
	if len(got) != 0 {
		t.Fatalf("expected 0 queries for empty input, got %#v", got)
	}
}
