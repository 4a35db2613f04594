//go:build !linux

package main

import "fmt"

func (e *lineEditor) readLine(prompt string) (string, error) {
	_, _ = fmt.Fprint(e.out, prompt)
	line, err := e.readPlain()
	if err == nil {
		e.remember(line)
	}
	return line, err
}
