//go:build linux

package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// readLine edits in raw mode when stdin is a terminal.
func (e *lineEditor) readLine(prompt string) (string, error) {
	f, ok := e.in.(*os.File)
	if !ok || !stdinIsTTY() {
		_, _ = fmt.Fprint(e.out, prompt)
		return e.readPlain()
	}

	fd := int(f.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return "", err
	}
	raw := *oldState
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return "", err
	}
	defer func() { _ = unix.IoctlSetTermios(fd, unix.TCSETS, oldState) }()

	s := newLineState(e.history)
	_, _ = fmt.Fprint(e.out, prompt)
	var buf [16]byte
	for {
		n, err := f.Read(buf[:])
		if err != nil {
			return "", err
		}
		for _, b := range buf[:n] {
			switch s.feed(b) {
			case keySubmit:
				_, _ = fmt.Fprint(e.out, "\r\n")
				line := s.String()
				e.remember(line)
				return line, nil
			case keyInterrupt:
				_, _ = fmt.Fprint(e.out, "^C\r\n")
				return "", io.EOF
			case keyEOF:
				_, _ = fmt.Fprint(e.out, "\r\n")
				return "", io.EOF
			}
			if s.dirty {
				e.redraw(prompt, s)
				s.dirty = false
			}
		}
	}
}

func (e *lineEditor) redraw(prompt string, s *lineState) {
	_, _ = fmt.Fprintf(e.out, "\r%s%s\x1b[K", prompt, string(s.line))
	if s.cursor < len(s.line) {
		_, _ = fmt.Fprintf(e.out, "\r%s%s", prompt, string(s.line[:s.cursor]))
	}
}
