package inference

import "time"

type StreamFunc func(token string)

// Request is one prompt/response turn against a Generator's PromptContext.
type Request struct {
	Prompt string

	// MaxTokens caps the response. Zero uses PromptContext.NPredict.
	MaxTokens int

	// Stop ends the response at the first occurrence of any sequence. The
	// sequence itself is not emitted.
	Stop []string

	EchoPrompt bool
}

type StopReason string

const (
	StopEndToken StopReason = "end_token"
	StopLength   StopReason = "length"
	StopSequence StopReason = "stop_sequence"
	StopCanceled StopReason = "canceled"
)

type Result struct {
	Text       string
	StopReason StopReason
	Stats      Stats
}

type Stats struct {
	PromptTokens    int
	TokensGenerated int
	TokensEvaluated int
	Recalculations  int
	Duration        time.Duration
	TPS             float64
}
