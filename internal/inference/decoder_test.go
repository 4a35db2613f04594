package inference

import "testing"

func TestPieceDecoder(t *testing.T) {
	tests := []struct {
		name   string
		pieces []string
		want   []string
		flush  string
	}{
		{"ascii", []string{"ab", "c"}, []string{"ab", "c"}, ""},
		{"two byte split", []string{"\xc3", "\xa9"}, []string{"", "é"}, ""},
		{"four byte split", []string{"\xf0\x9f", "\x98", "\x80x"}, []string{"", "", "😀x"}, ""},
		{"dangling lead", []string{"a\xe2\x82"}, []string{"a"}, "\xe2\x82"},
		{"invalid byte passes", []string{"\xff", "b"}, []string{"\xff", "b"}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d PieceDecoder
			for i, p := range tc.pieces {
				if got := d.Push(p); got != tc.want[i] {
					t.Fatalf("Push(%q) = %q, want %q", p, got, tc.want[i])
				}
			}
			if got := d.Flush(); got != tc.flush {
				t.Fatalf("Flush = %q, want %q", got, tc.flush)
			}
		})
	}
}

func TestStopBuffer(t *testing.T) {
	s := newStopBuffer([]string{"END", ""})
	out, hit := s.Push("abcE")
	if out != "abc" || hit {
		t.Fatalf("Push = %q, %v", out, hit)
	}
	out, hit = s.Push("Nx")
	if out != "ENx" || hit {
		t.Fatalf("Push = %q, %v", out, hit)
	}
	out, hit = s.Push("yEN")
	if out != "y" || hit {
		t.Fatalf("Push = %q, %v", out, hit)
	}
	out, hit = s.Push("Dzz")
	if out != "" || !hit {
		t.Fatalf("Push = %q, %v", out, hit)
	}

	s = newStopBuffer([]string{"END"})
	s.Push("tail E")
	if got := s.Flush(""); got != "E" {
		t.Fatalf("Flush = %q", got)
	}
	if got := newStopBuffer(nil).Flush("x"); got != "x" {
		t.Fatalf("Flush without stops = %q", got)
	}
}
