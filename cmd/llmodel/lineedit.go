package main

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// lineEditor reads prompts for the chat loop. On a terminal it edits in raw
// mode with history; otherwise it reads plain lines.
type lineEditor struct {
	in      io.Reader
	plain   *bufio.Reader
	out     io.Writer
	history []string
}

func newLineEditor(in io.Reader, out io.Writer) *lineEditor {
	return &lineEditor{in: in, plain: bufio.NewReader(in), out: out}
}

// readPlain returns io.EOF only when nothing was read.
func (e *lineEditor) readPlain() (string, error) {
	s, err := e.plain.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return trimTrailingNewline(s), nil
}

func (e *lineEditor) remember(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if n := len(e.history); n > 0 && e.history[n-1] == line {
		return
	}
	e.history = append(e.history, line)
}

func trimTrailingNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

type keyResult int

const (
	keyContinue keyResult = iota
	keySubmit
	keyInterrupt
	keyEOF
)

// lineState is the editing buffer of one raw-mode read. Input arrives a byte
// at a time; escape sequences and multi-byte characters are assembled here.
type lineState struct {
	line   []rune
	cursor int
	dirty  bool

	history  []string
	histPos  int
	browsing bool
	draft    string

	esc     int
	escBuf  strings.Builder
	pending []byte
}

func newLineState(history []string) *lineState {
	return &lineState{history: history, histPos: len(history)}
}

func (s *lineState) String() string { return string(s.line) }

func (s *lineState) feed(b byte) keyResult {
	if s.esc != 0 {
		s.feedEscape(b)
		return keyContinue
	}
	if len(s.pending) > 0 || b >= utf8.RuneSelf {
		s.pending = append(s.pending, b)
		if utf8.FullRune(s.pending) {
			r, _ := utf8.DecodeRune(s.pending)
			s.pending = s.pending[:0]
			s.insert(r)
		}
		return keyContinue
	}

	switch b {
	case 27:
		s.esc = 1
	case '\r', '\n':
		return keySubmit
	case 3: // Ctrl+C
		return keyInterrupt
	case 4: // Ctrl+D
		if len(s.line) == 0 {
			return keyEOF
		}
		s.deleteForward()
	case 127, 8:
		s.backspace()
	case 1: // Ctrl+A
		s.move(0)
	case 5: // Ctrl+E
		s.move(len(s.line))
	case 11: // Ctrl+K
		s.line = s.line[:s.cursor]
		s.dirty = true
	case 21: // Ctrl+U
		s.line = append(s.line[:0], s.line[s.cursor:]...)
		s.move(0)
	case 23: // Ctrl+W
		s.deleteWordBack()
	default:
		if b >= 32 {
			s.insert(rune(b))
		}
	}
	return keyContinue
}

func (s *lineState) feedEscape(b byte) {
	if s.esc == 1 {
		s.esc = 0
		switch b {
		case '[':
			s.esc = 2
			s.escBuf.Reset()
		case 'b', 'B':
			s.move(s.wordLeft())
		case 'f', 'F':
			s.move(s.wordRight())
		case 127:
			s.deleteWordBack()
		}
		return
	}
	s.escBuf.WriteByte(b)
	if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
		s.esc = 0
		s.csi(s.escBuf.String())
	}
}

func (s *lineState) csi(seq string) {
	switch seq {
	case "A":
		s.historyPrev()
	case "B":
		s.historyNext()
	case "C":
		s.move(min(s.cursor+1, len(s.line)))
	case "D":
		s.move(max(s.cursor-1, 0))
	case "H", "1~":
		s.move(0)
	case "F", "4~":
		s.move(len(s.line))
	case "3~":
		s.deleteForward()
	case "1;5D", "5D":
		s.move(s.wordLeft())
	case "1;5C", "5C":
		s.move(s.wordRight())
	case "3;5~":
		end := s.wordRight()
		s.line = append(s.line[:s.cursor], s.line[end:]...)
		s.dirty = true
	}
}

func (s *lineState) move(pos int) {
	if pos != s.cursor {
		s.cursor = pos
		s.dirty = true
	}
}

func (s *lineState) insert(r rune) {
	s.line = append(s.line, 0)
	copy(s.line[s.cursor+1:], s.line[s.cursor:])
	s.line[s.cursor] = r
	s.cursor++
	s.dirty = true
}

func (s *lineState) backspace() {
	if s.cursor == 0 {
		return
	}
	s.line = append(s.line[:s.cursor-1], s.line[s.cursor:]...)
	s.cursor--
	s.dirty = true
}

func (s *lineState) deleteForward() {
	if s.cursor >= len(s.line) {
		return
	}
	s.line = append(s.line[:s.cursor], s.line[s.cursor+1:]...)
	s.dirty = true
}

func isBlank(r rune) bool { return r == ' ' || r == '\t' }

func (s *lineState) wordLeft() int {
	i := s.cursor
	for i > 0 && isBlank(s.line[i-1]) {
		i--
	}
	for i > 0 && !isBlank(s.line[i-1]) {
		i--
	}
	return i
}

func (s *lineState) wordRight() int {
	i := s.cursor
	for i < len(s.line) && isBlank(s.line[i]) {
		i++
	}
	for i < len(s.line) && !isBlank(s.line[i]) {
		i++
	}
	return i
}

func (s *lineState) deleteWordBack() {
	start := s.wordLeft()
	if start == s.cursor {
		return
	}
	s.line = append(s.line[:start], s.line[s.cursor:]...)
	s.cursor = start
	s.dirty = true
}

func (s *lineState) setLine(text string) {
	s.line = append(s.line[:0], []rune(text)...)
	s.cursor = len(s.line)
	s.dirty = true
}

func (s *lineState) historyPrev() {
	if len(s.history) == 0 {
		return
	}
	if !s.browsing {
		s.draft = string(s.line)
		s.browsing = true
		s.histPos = len(s.history)
	}
	if s.histPos > 0 {
		s.histPos--
		s.setLine(s.history[s.histPos])
	}
}

func (s *lineState) historyNext() {
	if !s.browsing {
		return
	}
	if s.histPos < len(s.history)-1 {
		s.histPos++
		s.setLine(s.history[s.histPos])
		return
	}
	s.histPos = len(s.history)
	s.browsing = false
	s.setLine(s.draft)
}
