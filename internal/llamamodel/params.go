package llamamodel

import (
	"runtime"

	"github.com/samcharles93/llmodel/internal/engine"
	"github.com/samcharles93/llmodel/internal/envconfig"
)

const (
	contextLength  = 2048
	maxAutoThreads = 4
)

// deriveParams computes load parameters. All layers are offloaded only when
// this model holds a device and the backend runs whole models on it. The
// thread count starts from the default on every load; SetThreadCount
// overrides it afterwards.
func (m *Model) deriveParams() (engine.ModelParams, engine.ContextParams, int32) {
	threads := defaultThreads()

	mp := engine.ModelParams{
		UseMmap:  true,
		UseMlock: runtime.GOOS == "darwin",
	}
	if m.ownsGPU && m.gpu.WholeModelOffload() {
		mp.NGPULayers = engine.AllLayers
		if d, ok := m.gpu.Active(); ok {
			mp.MainGPU = d.Index
		}
	}

	cp := engine.ContextParams{
		NCtx:         contextLength,
		KVType:       engine.KVF16,
		LogitsAll:    true,
		Threads:      threads,
		ThreadsBatch: threads,
	}
	return mp, cp, int32(threads)
}

func defaultThreads() int {
	if n := envconfig.NumThreads(); n > 0 {
		return int(n)
	}
	return min(maxAutoThreads, runtime.NumCPU())
}
