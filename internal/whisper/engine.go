package whisper

import "context"

// TranscriptionRequest is a single engine invocation against a file on disk.
type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	// Language is a whisper language code. Empty or "auto" lets the engine
	// detect the spoken language.
	Language string
	// FullPrecision keeps inference on the CPU fp32 path instead of the
	// GPU half-precision path.
	FullPrecision bool
}

type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

// EngineFunc adapts a plain function to the Engine interface.
type EngineFunc func(ctx context.Context, req TranscriptionRequest) (string, error)

func (f EngineFunc) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	return f(ctx, req)
}
