package llamamodel

import (
	"github.com/samcharles93/llmodel/internal/backend"
	"github.com/samcharles93/llmodel/internal/engine"
	_ "github.com/samcharles93/llmodel/internal/engine/toy"
	"github.com/samcharles93/llmodel/internal/envconfig"
	"github.com/samcharles93/llmodel/internal/logger"
	"github.com/samcharles93/llmodel/internal/probe"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

func init() {
	backend.Register(backend.Implementation{
		ModelType:    ModelType,
		BuildVariant: buildVariant,
		MagicMatch:   probe.MagicMatch,
		Construct:    Construct,
	})
}

// Construct returns a new unloaded model on the default engine.
func Construct() llmodel.LLModel {
	log := logger.Default()
	e, err := engine.Default()
	if err != nil {
		log.Error("no inference engine available", "error", err)
		return New(WithLogger(log))
	}
	return ConstructWith(e, log)
}

// ConstructWith returns a new unloaded model on e, routing the engine's own
// log output through log.
func ConstructWith(e engine.Engine, log logger.Logger, opts ...Option) *Model {
	if sink, ok := e.(engine.LogSink); ok {
		sink.SetLogger(logger.EngineCallback(log, envconfig.Verbose()))
	}
	return New(append([]Option{WithEngine(e), WithLogger(log)}, opts...)...)
}
