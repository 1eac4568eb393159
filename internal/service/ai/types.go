package ai

import "context"

// Preset selects sampling for one kind of request.
type Preset string

const (
	PresetBatch       Preset = "batch"       // three varied picks
	PresetReplacement Preset = "replacement" // one pick, tighter
	PresetProbe       Preset = "probe"
)

// Sampling is shared by every provider. Zero fields keep the provider default.
type Sampling struct {
	Temperature float32
	TopP        float32
	TopK        int
	MaxTokens   int
}

var samplings = map[Preset]Sampling{
	PresetBatch:       {Temperature: 0.9, TopP: 0.95, TopK: 40, MaxTokens: 2048},
	PresetReplacement: {Temperature: 0.8, TopP: 0.95, TopK: 40, MaxTokens: 768},
	PresetProbe:       {Temperature: 0, MaxTokens: 8},
}

// SamplingFor returns the sampling of preset, or the batch sampling when unknown.
func SamplingFor(preset Preset) Sampling {
	if s, ok := samplings[preset]; ok {
		return s
	}
	return samplings[PresetBatch]
}

// Request is one completion call. An empty Model uses the provider default.
type Request struct {
	Prompt   string
	Model    string
	JSON     bool
	Sampling Sampling
}

// Completion is the text a provider produced and where it came from.
type Completion struct {
	Text     string
	Provider string
	Model    string
	Fallback bool
}

// Provider is one text-generation backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Completion, error)
}
