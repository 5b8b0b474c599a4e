package whisper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/brahmarsh1/shiksha/internal/download"
)

const (
	// AutoLanguage asks the engine to detect the spoken language.
	AutoLanguage = "auto"
	// SanskritLanguage is the whisper code for Sanskrit.
	SanskritLanguage = "sa"
)

// ErrModelUnavailable marks failures to bring a model up at startup.
var ErrModelUnavailable = errors.New("speech model unavailable")

// DownloadFunc fetches a model asset to its destination.
type DownloadFunc func(ctx context.Context, opts download.Options) error

type LoadOptions struct {
	// ModelRef is a registry name or a path to a ggml .bin file.
	ModelRef     string
	ModelDir     string
	AutoDownload bool
	NoProgress   bool

	// Engine defaults to the bundled whisper-cli engine.
	Engine   Engine
	Download DownloadFunc
	Logger   *zap.Logger
}

// Model is a loaded speech model. It is immutable after Load and may be
// shared by any number of concurrent callers.
type Model struct {
	name   string
	path   string
	engine Engine
}

// Options tune a single transcription.
type Options struct {
	Language      string
	FullPrecision bool
}

// Transcript is what the engine recognised in one audio file.
type Transcript struct {
	Text     string
	Language string
}

// Load resolves the model file, downloading it if permitted, and binds it to
// an engine. Every error wraps ErrModelUnavailable.
func Load(ctx context.Context, opts LoadOptions) (*Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolved, err := ResolveModel(opts.ModelRef, opts.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	if resolved.NeedsDownload {
		if !opts.AutoDownload {
			return nil, fmt.Errorf("%w: model %q is missing at %s; run `shiksha setup --model %s` or pass --auto-download", ErrModelUnavailable, resolved.Name, resolved.Path, resolved.Name)
		}

		fetch := opts.Download
		if fetch == nil {
			fetch = download.DownloadFile
		}

		logger.Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
		if err := fetch(ctx, download.Options{
			URL:            resolved.URL,
			Destination:    resolved.Path,
			ExpectedSHA256: resolved.SHA256,
			ChecksumURL:    resolved.SHA256URL,
			NoProgress:     opts.NoProgress,
			Logger:         logger,
		}); err != nil {
			return nil, fmt.Errorf("%w: download model %q: %w", ErrModelUnavailable, resolved.Name, err)
		}
	}

	engine := opts.Engine
	if engine == nil {
		bundled, err := NewBundledEngine(logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		engine = bundled
	}

	logger.Info("speech model loaded", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
	return NewModel(resolved.Name, resolved.Path, engine), nil
}

// NewModel binds an already present model file to an engine.
func NewModel(name, path string, engine Engine) *Model {
	return &Model{name: name, path: path, engine: engine}
}

func (m *Model) Name() string { return m.name }

func (m *Model) Path() string { return m.path }

// Transcribe runs the engine against audioPath. The language is passed on as
// given; empty or "auto" leaves detection to the engine.
func (m *Model) Transcribe(ctx context.Context, audioPath string, opts Options) (Transcript, error) {
	lang := opts.Language
	if lang == "" {
		lang = AutoLanguage
	}

	text, err := m.engine.Transcribe(ctx, TranscriptionRequest{
		AudioPath:     audioPath,
		ModelPath:     m.path,
		Language:      lang,
		FullPrecision: opts.FullPrecision,
	})
	if err != nil {
		return Transcript{}, err
	}

	return Transcript{Text: strings.TrimSpace(text), Language: lang}, nil
}
