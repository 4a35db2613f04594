package main

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func feedAll(s *lineState, input string) keyResult {
	res := keyContinue
	for i := 0; i < len(input); i++ {
		if res = s.feed(input[i]); res != keyContinue {
			return res
		}
	}
	return res
}

func TestLineStateEditing(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		res   keyResult
	}{
		{"plain", "hello\r", "hello", keySubmit},
		{"insert after left arrow", "hel\x1b[Dx\r", "hexl", keySubmit},
		{"home and end", "bc\x1b[Ha\x1b[Fd\n", "abcd", keySubmit},
		{"backspace", "abc\x7f\x7fz\r", "az", keySubmit},
		{"delete key", "abc\x01\x1b[3~\r", "bc", keySubmit},
		{"ctrl-w", "one two  \x17\r", "one ", keySubmit},
		{"ctrl-u", "one two\x1b[D\x1b[D\x15\r", "wo", keySubmit},
		{"ctrl-k", "one two\x01\x1b[C\x0b\r", "o", keySubmit},
		{"alt-b word left", "one two\x1bbX\r", "one Xtwo", keySubmit},
		{"ctrl-right", "one two\x01\x1b[1;5CX\r", "oneX two", keySubmit},
		{"utf8", "h\xc3\xa9llo\x1b[D\x1b[D\x1b[D\x1b[D\x7f\r", "éllo", keySubmit},
		{"ctrl-c", "abc\x03", "abc", keyInterrupt},
		{"ctrl-d on empty line", "\x04", "", keyEOF},
		{"ctrl-d deletes forward", "ab\x01\x04\r", "b", keySubmit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newLineState(nil)
			if res := feedAll(s, tc.input); res != tc.res {
				t.Fatalf("result = %v, want %v", res, tc.res)
			}
			if got := s.String(); got != tc.want {
				t.Fatalf("line = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLineStateHistory(t *testing.T) {
	s := newLineState([]string{"first", "second"})
	feedAll(s, "dra")
	feedAll(s, "\x1b[A")
	if s.String() != "second" {
		t.Fatalf("up once = %q", s.String())
	}
	feedAll(s, "\x1b[A\x1b[A")
	if s.String() != "first" {
		t.Fatalf("up past the start = %q", s.String())
	}
	feedAll(s, "\x1b[B")
	if s.String() != "second" {
		t.Fatalf("down = %q", s.String())
	}
	feedAll(s, "\x1b[B")
	if s.String() != "dra" {
		t.Fatalf("down past the end should restore the draft, got %q", s.String())
	}
	if s.cursor != 3 {
		t.Fatalf("cursor = %d, want 3", s.cursor)
	}
}

func TestLineEditorPlain(t *testing.T) {
	var out strings.Builder
	e := newLineEditor(strings.NewReader("hi\r\nagain\nlast"), &out)
	for _, want := range []string{"hi", "again", "last"} {
		got, err := e.readLine("> ")
		if err != nil {
			t.Fatalf("readLine: %v", err)
		}
		if got != want {
			t.Fatalf("readLine = %q, want %q", got, want)
		}
	}
	if _, err := e.readLine("> "); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if strings.Count(out.String(), "> ") != 4 {
		t.Fatalf("prompt not printed each time: %q", out.String())
	}
}

func TestRememberSkipsBlankAndRepeats(t *testing.T) {
	e := newLineEditor(strings.NewReader(""), io.Discard)
	for _, l := range []string{"a", "  ", "a", "b"} {
		e.remember(l)
	}
	if got := strings.Join(e.history, ","); got != "a,b" {
		t.Fatalf("history = %q", got)
	}
}
