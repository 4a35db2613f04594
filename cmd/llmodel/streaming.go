package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

type StreamMode string

const (
	StreamInstant    StreamMode = "instant"
	StreamSmooth     StreamMode = "smooth"
	StreamTypewriter StreamMode = "typewriter"
	StreamQuiet      StreamMode = "quiet"
)

func parseStreamMode(s string) (StreamMode, error) {
	switch m := StreamMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return StreamInstant, nil
	case StreamInstant, StreamSmooth, StreamTypewriter, StreamQuiet:
		return m, nil
	default:
		return "", fmt.Errorf("unknown stream mode %q (expected instant, smooth, typewriter, or quiet)", s)
	}
}

// StreamWriter prints generated pieces as they arrive. Smooth mode batches
// pieces and flushes on a timer until Close.
type StreamWriter struct {
	mode StreamMode
	raw  bool
	out  *bufio.Writer

	mu        sync.Mutex
	text      strings.Builder
	batch     strings.Builder
	lastFlush time.Time
	interval  time.Duration
	batchSize int

	stop chan struct{}
	done chan struct{}
}

// NewStreamWriter writes to out. With raw set, control characters are
// escaped so output stays on one line.
func NewStreamWriter(out io.Writer, mode StreamMode, raw bool) *StreamWriter {
	w := &StreamWriter{
		mode:      mode,
		raw:       raw,
		out:       bufio.NewWriterSize(out, 4096),
		lastFlush: time.Now(),
		interval:  50 * time.Millisecond,
		batchSize: 5,
	}
	if mode == StreamSmooth {
		w.stop = make(chan struct{})
		w.done = make(chan struct{})
		go w.flushLoop()
	}
	return w
}

// Write is an inference.StreamFunc.
func (w *StreamWriter) Write(piece string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.text.WriteString(piece)
	switch w.mode {
	case StreamQuiet:
	case StreamSmooth:
		w.batch.WriteString(piece)
		words := strings.Count(w.batch.String(), " ") + 1
		if words >= w.batchSize || time.Since(w.lastFlush) >= w.interval {
			w.flushBatch()
		}
	case StreamTypewriter:
		for _, r := range piece {
			w.emit(string(r))
			_ = w.out.Flush()
		}
	default:
		w.emit(piece)
		_ = w.out.Flush()
	}
}

// Text is everything written so far.
func (w *StreamWriter) Text() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.text.String()
}

// Reset starts a new turn. Pending output is flushed first.
func (w *StreamWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finish()
	w.text.Reset()
}

// Close flushes pending output, stops the smooth-mode timer and returns
// the full text. Quiet mode prints everything here.
func (w *StreamWriter) Close() string {
	if w.stop != nil {
		close(w.stop)
		<-w.done
		w.stop = nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finish()
	return w.text.String()
}

// finish must be called with mu held.
func (w *StreamWriter) finish() {
	if w.mode == StreamQuiet {
		w.emit(w.text.String())
	}
	w.flushBatch()
	_ = w.out.Flush()
}

func (w *StreamWriter) emit(s string) {
	if w.raw {
		s = escapeRaw(s)
	}
	_, _ = w.out.WriteString(s)
}

// flushBatch must be called with mu held.
func (w *StreamWriter) flushBatch() {
	if w.batch.Len() == 0 {
		return
	}
	w.emit(w.batch.String())
	_ = w.out.Flush()
	w.batch.Reset()
	w.lastFlush = time.Now()
}

func (w *StreamWriter) flushLoop() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.mu.Lock()
			if time.Since(w.lastFlush) >= w.interval {
				w.flushBatch()
			}
			w.mu.Unlock()
		}
	}
}

func escapeRaw(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\\':
			b.WriteString(`\\`)
		default:
			if strconv.IsPrint(r) {
				b.WriteRune(r)
			} else {
				fmt.Fprintf(&b, `\u%04x`, r)
			}
		}
	}
	return b.String()
}
