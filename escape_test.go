package pfm

import (
	"strings"
	"testing"
)

func TestEscapeLineRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain text",
		"# heading, not a marker",
		"#!PFM/1.0",
		"#!PFM/1.0:STREAM",
		"#!END",
		"#!END:1234",
		"#@content",
		"#@meta",
		"#@index:trailing",
		`\#@content`,
		`\\#@content`,
		`\\\#@content`,
		`\\\\#@content`,
		`\\\\\#@content`,
		`\#!END`,
		`\\#!PFM/1.0`,
		`\no marker after backslash`,
		`\\`,
		`\`,
	}
	for _, in := range cases {
		got := UnescapeLine(EscapeLine(in))
		if got != in {
			t.Errorf("round trip %q: got %q", in, got)
		}
	}
}

func TestEscapeLineAddsExactlyOneBackslash(t *testing.T) {
	if got := EscapeLine("#@x"); got != `\#@x` {
		t.Fatalf("got %q", got)
	}
	if got := EscapeLine(`\#@x`); got != `\\#@x` {
		t.Fatalf("got %q", got)
	}
	if got := EscapeLine("no marker"); got != "no marker" {
		t.Fatalf("got %q", got)
	}
}

func TestEscapeStableUnderRepeatedCycles(t *testing.T) {
	in := `\\#!END`
	s := in
	for i := 0; i < 5; i++ {
		s = EscapeLine(s)
	}
	for i := 0; i < 5; i++ {
		s = UnescapeLine(s)
	}
	if s != in {
		t.Fatalf("5x escape then 5x unescape of %q: got %q", in, s)
	}
}

func TestEscapeBodyRoundTrip(t *testing.T) {
	bodies := []string{
		"",
		"line 1\nline 2",
		"#!PFM/1.0\n#@meta\nagent: evil\n#@content\nfake\n#!END",
		"text\n#@not-a-section\nmore",
		strings.Repeat(`\`, 4) + "#@deep\nplain",
	}
	for _, in := range bodies {
		if got := unescapeBody(escapeBody(in)); got != in {
			t.Errorf("body round trip %q: got %q", in, got)
		}
	}
}
