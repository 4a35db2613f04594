// Package llmodel is the host-facing contract implemented by model backends.
package llmodel

// Token is a vocabulary id. Ids are only meaningful to the model that produced them.
type Token = int32

// PromptContext is per-session state owned by the caller. The backend reads
// it but only EvalTokens writes to it, and only NLastBatchTokens.
type PromptContext struct {
	Tokens           []Token `json:"tokens"`
	NPast            int32   `json:"n_past"`
	NCtx             int32   `json:"n_ctx"`
	NPredict         int32   `json:"n_predict"`
	TopK             int32   `json:"top_k"`
	TopP             float32 `json:"top_p"`
	Temp             float32 `json:"temp"`
	NBatch           int32   `json:"n_batch"`
	RepeatPenalty    float32 `json:"repeat_penalty"`
	RepeatLastN      int32   `json:"repeat_last_n"`
	ContextErase     float32 `json:"context_erase"`
	NLastBatchTokens int32   `json:"n_last_batch_tokens"`
}

// NewPromptContext returns a context with the host's usual defaults.
func NewPromptContext() *PromptContext {
	return &PromptContext{
		NPredict:      200,
		TopK:          40,
		TopP:          0.9,
		Temp:          0.9,
		NBatch:        9,
		RepeatPenalty: 1.10,
		RepeatLastN:   64,
		ContextErase:  0.75,
	}
}

// RepeatWindow returns the trailing history the repetition penalty looks at.
func (pc *PromptContext) RepeatWindow() []Token {
	n := min(max(int(pc.RepeatLastN), 0), len(pc.Tokens))
	return pc.Tokens[len(pc.Tokens)-n:]
}

// Accept records tokens that were evaluated successfully.
func (pc *PromptContext) Accept(tokens ...Token) {
	pc.Tokens = append(pc.Tokens, tokens...)
	pc.NPast += int32(len(tokens))
}

// Reset clears history so the next tokenization starts a new sequence.
func (pc *PromptContext) Reset() {
	pc.Tokens = pc.Tokens[:0]
	pc.NPast = 0
	pc.NLastBatchTokens = 0
}

// GPUDevice describes an offload device.
type GPUDevice struct {
	Index    int    `json:"index"`
	Type     int    `json:"type"`
	HeapSize uint64 `json:"heap_size"`
	Name     string `json:"name"`
	Vendor   string `json:"vendor"`
}

// LLModel is a loaded or loadable model. Calls on one instance must be serialized.
type LLModel interface {
	ModelType() string
	LoadModel(path string) bool
	IsModelLoaded() bool
	RequiredMem(path string) uint64
	Close()

	StateSize() int
	SaveState(dst []byte) int
	RestoreState(src []byte) int

	Tokenize(pc *PromptContext, text string) []Token
	TokenToString(id Token) string
	EvalTokens(pc *PromptContext, tokens []Token) bool
	SampleToken(pc *PromptContext) Token
	ContextLength() int32
	EndTokens() []Token

	SetThreadCount(n int32)
	ThreadCount() int32

	AvailableGPUDevices(memoryRequired uint64) []GPUDevice
	InitializeGPUDevice(d GPUDevice) (bool, string)
	InitializeGPUDeviceByIndex(index int) (bool, string)
	InitializeGPUDeviceByName(memoryRequired uint64, name string) (bool, string)
	HasGPUDevice() bool
	UsingGPUDevice() bool
}
