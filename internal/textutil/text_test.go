package textutil

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := map[string]string{
		"  hello \n  world\t":  "hello world",
		"":                     "",
		"cafe\u0301":           "caf\u00e9",
		"line one\r\nline two": "line one line two",
	}
	for input, want := range tests {
		if got := NormalizeText(input); got != want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestEndsSentence(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Hello there.", true},
		{"Really?", true},
		{"Stop!  ", true},
		{"and then…", true},
		{"She said \"go.\"", true},
		{"(done.)", true},
		{"終わりです。", true},
		{"本当？」", true},
		{"no terminal", false},
		{"comma,", false},
		{"", false},
		{"\"\"", false},
	}
	for _, tc := range tests {
		if got := EndsSentence(tc.text); got != tc.want {
			t.Fatalf("EndsSentence(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestJoinTextsSkipsEmpty(t *testing.T) {
	got := JoinTexts([]string{"one", "  ", "two ", ""})
	if got != "one two" {
		t.Fatalf("JoinTexts = %q", got)
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("a  b\nc", 0); got != "a b c" {
		t.Fatalf("Snippet = %q", got)
	}
	if got := Snippet("abcdef", 3); got != "abc..." {
		t.Fatalf("Snippet truncated = %q", got)
	}
	if got := Snippet("   ", 5); got != "<empty>" {
		t.Fatalf("Snippet empty = %q", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := map[string]string{
		"Team Key #1": "team_key__1",
		"":            "unknown",
		"tts-1-hd":    "tts-1-hd",
		"???":         "unknown",
	}
	for input, want := range tests {
		if got := SanitizeToken(input); got != want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", input, got, want)
		}
	}
}
