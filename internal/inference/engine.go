package inference

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samcharles93/llmodel/internal/logger"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

var (
	ErrNotLoaded     = errors.New("model is not loaded")
	ErrPromptTooLong = errors.New("prompt exceeds the context window")
	ErrEval          = errors.New("token evaluation failed")
	ErrContextFull   = errors.New("context window is full")
)

// Generator runs prompt/response turns for one conversation. History lives
// in Context, so consecutive turns continue the same sequence.
type Generator struct {
	Model   llmodel.LLModel
	Context *llmodel.PromptContext
	Log     logger.Logger

	stats Stats
}

func NewGenerator(m llmodel.LLModel, pc *llmodel.PromptContext) *Generator {
	if pc == nil {
		pc = llmodel.NewPromptContext()
	}
	return &Generator{Model: m, Context: pc, Log: logger.Default()}
}

// Run evaluates req.Prompt and samples a response. On error the partial
// result is still returned. NPast and Tokens only advance for tokens that
// were evaluated.
func (g *Generator) Run(ctx context.Context, req *Request, stream StreamFunc) (res *Result, err error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	res = &Result{}
	g.stats = Stats{}
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during generation: %v", rec)
		}
		g.stats.Duration = time.Since(start)
		if secs := g.stats.Duration.Seconds(); secs > 0 {
			g.stats.TPS = float64(g.stats.TokensGenerated) / secs
		}
		res.Stats = g.stats
	}()

	if err := ctx.Err(); err != nil {
		res.StopReason = StopCanceled
		return res, err
	}
	nCtx := g.Model.ContextLength()
	if nCtx <= 0 || !g.Model.IsModelLoaded() {
		return res, ErrNotLoaded
	}

	toks := g.Model.Tokenize(g.Context, req.Prompt)
	if int32(len(toks)) > nCtx {
		return res, fmt.Errorf("%w: %d tokens, window %d", ErrPromptTooLong, len(toks), nCtx)
	}
	g.stats.PromptTokens = len(toks)
	if req.EchoPrompt && stream != nil && req.Prompt != "" {
		stream(req.Prompt)
	}
	if err := g.eval(ctx, toks); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.StopReason = StopCanceled
		}
		return res, err
	}

	return res, g.respond(ctx, req, res, stream)
}

func (g *Generator) respond(ctx context.Context, req *Request, res *Result, stream StreamFunc) error {
	limit := req.MaxTokens
	if limit <= 0 {
		limit = int(g.Context.NPredict)
	}
	end := g.Model.EndTokens()

	var (
		sb   strings.Builder
		dec  PieceDecoder
		stop = newStopBuffer(req.Stop)
	)
	emit := func(s string) {
		if s == "" {
			return
		}
		sb.WriteString(s)
		if stream != nil {
			stream(s)
		}
	}
	defer func() { res.Text = sb.String() }()

	res.StopReason = StopLength
	for range limit {
		if err := ctx.Err(); err != nil {
			res.StopReason = StopCanceled
			emit(stop.Flush(dec.Flush()))
			return err
		}
		tok := g.Model.SampleToken(g.Context)
		if slices.Contains(end, tok) {
			res.StopReason = StopEndToken
			break
		}
		if err := g.eval(ctx, []llmodel.Token{tok}); err != nil {
			if ctx.Err() != nil {
				res.StopReason = StopCanceled
			}
			emit(stop.Flush(dec.Flush()))
			return err
		}
		g.stats.TokensGenerated++

		text, hit := stop.Push(dec.Push(g.Model.TokenToString(tok)))
		emit(text)
		if hit {
			res.StopReason = StopSequence
			return nil
		}
	}
	emit(stop.Flush(dec.Flush()))
	return nil
}

// Replay evaluates the history in Context again from position 0, for when
// the engine no longer holds it.
func (g *Generator) Replay(ctx context.Context) error {
	toks := slices.Clone(g.Context.Tokens)
	g.Context.Reset()
	g.stats = Stats{}
	return g.eval(ctx, toks)
}

// eval decodes toks in NBatch sized chunks. When a chunk would overflow the
// window, the oldest ContextErase fraction of history is dropped and the
// remainder evaluated again from position 0.
func (g *Generator) eval(ctx context.Context, toks []llmodel.Token) error {
	pc := g.Context
	nCtx := g.Model.ContextLength()
	batch := int(max(pc.NBatch, 1))
	for i := 0; i < len(toks); i += batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := toks[i:min(i+batch, len(toks))]
		if pc.NPast+int32(len(chunk)) > nCtx {
			if err := g.recalculate(ctx, int32(len(chunk))); err != nil {
				return err
			}
		}
		if !g.Model.EvalTokens(pc, chunk) {
			return fmt.Errorf("%w at n_past %d", ErrEval, pc.NPast)
		}
		pc.Accept(chunk...)
		g.stats.TokensEvaluated += len(chunk)
	}
	return nil
}

func (g *Generator) recalculate(ctx context.Context, need int32) error {
	pc := g.Context
	nCtx := g.Model.ContextLength()
	erase := max(int(float32(len(pc.Tokens))*pc.ContextErase), 1)
	erase = min(erase, len(pc.Tokens))
	kept := slices.Clone(pc.Tokens[erase:])
	if int32(len(kept))+need > nCtx {
		return fmt.Errorf("%w: %d tokens kept after erase, %d needed", ErrContextFull, len(kept), need)
	}

	g.log().Debug("recalculating context", "erased", erase, "kept", len(kept), "n_ctx", nCtx)
	pc.Reset()
	g.stats.Recalculations++

	batch := int(max(pc.NBatch, 1))
	for i := 0; i < len(kept); i += batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := kept[i:min(i+batch, len(kept))]
		if !g.Model.EvalTokens(pc, chunk) {
			return fmt.Errorf("%w while recalculating at n_past %d", ErrEval, pc.NPast)
		}
		pc.Accept(chunk...)
		g.stats.TokensEvaluated += len(chunk)
	}
	return nil
}

func (g *Generator) log() logger.Logger {
	if g.Log == nil {
		return logger.Default()
	}
	return g.Log
}
