// Package transcribe turns one uploaded audio file into text.
//
// Each call stages the upload in its own temp file, hands the path to the
// speech model and removes the file again before returning, whatever the
// outcome. The model is shared and never mutated, so a Service is safe for
// concurrent use.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/brahmarsh1/shiksha/internal/audio"
	"github.com/brahmarsh1/shiksha/internal/whisper"
)

// SanskritHint is the only language hint forwarded to the model.
const SanskritHint = whisper.SanskritLanguage

const sniffLen = 16

// SpeechModel is the file-based model contract; *whisper.Model satisfies it.
type SpeechModel interface {
	Transcribe(ctx context.Context, audioPath string, opts whisper.Options) (whisper.Transcript, error)
}

type Upload struct {
	// Filename is the client supplied name, only used to pick a suffix.
	Filename string
	Data     []byte
}

type Result struct {
	Text     string
	Language string
}

type Config struct {
	// StagingDir holds staged uploads. Empty means os.TempDir().
	StagingDir    string
	FullPrecision bool
	// MaxConcurrent bounds simultaneous model runs. Zero means unbounded.
	MaxConcurrent int64

	SilenceGate          bool
	SilenceThresholdDBFS float64

	// Converter transcodes containers whisper-cli cannot read. Defaults to
	// ffmpeg.
	Converter audio.Converter

	Logger *zap.Logger
}

type Service struct {
	model     SpeechModel
	cfg       Config
	sem       *semaphore.Weighted
	converter audio.Converter
	logger    *zap.Logger

	removeFile func(string) error
}

func New(model SpeechModel, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	converter := cfg.Converter
	if converter == nil {
		converter = audio.NewFFmpegConverter(logger)
	}

	s := &Service{
		model:      model,
		cfg:        cfg,
		converter:  converter,
		logger:     logger,
		removeFile: os.Remove,
	}
	if cfg.MaxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return s
}

// ForwardedLanguage returns the language passed to the model for a caller's
// hint: Sanskrit when asked for exactly, otherwise "" for auto-detection.
func ForwardedLanguage(hint string) string {
	if hint == SanskritHint {
		return SanskritHint
	}
	return ""
}

// Transcribe stages up, runs the model on it and deletes the staged file
// before returning. Model failures come back as *TranscriptionError. Once
// the model starts it runs to completion even if ctx is cancelled.
func (s *Service) Transcribe(ctx context.Context, up Upload, languageHint string) (Result, error) {
	if len(up.Data) == 0 {
		return Result{}, ErrEmptyUpload
	}

	lang := ForwardedLanguage(languageHint)

	if s.cfg.SilenceGate && s.isSilent(up) {
		if lang == "" {
			lang = whisper.AutoLanguage
		}
		return Result{Text: "", Language: lang}, nil
	}

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return Result{}, fmt.Errorf("wait for transcription slot: %w", err)
		}
		defer s.sem.Release(1)
	}

	path, err := s.stage(up)
	if err != nil {
		return Result{}, err
	}
	defer s.cleanup(path)

	runCtx := context.WithoutCancel(ctx)
	started := time.Now()

	if audio.NeedsConversion(audio.Sniff(sniffHead(up.Data))) {
		converted, err := s.convert(runCtx, path)
		if converted != "" {
			defer s.cleanup(converted)
		}
		if err != nil {
			s.logger.Warn("upload conversion failed", zap.String("staged", path), zap.Error(err))
			return Result{}, &TranscriptionError{Cause: err}
		}
		path = converted
	}

	transcript, err := s.model.Transcribe(runCtx, path, whisper.Options{
		Language:      lang,
		FullPrecision: s.cfg.FullPrecision,
	})
	if err != nil {
		s.logger.Warn("transcription failed", zap.String("staged", path), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return Result{}, &TranscriptionError{Cause: err}
	}

	text := transcript.Text
	if IsBlank(text) {
		// No speech is still a successful transcription.
		text = ""
	}

	s.logger.Info("transcription finished",
		zap.Int("bytes", len(up.Data)),
		zap.String("language", transcript.Language),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return Result{Text: text, Language: transcript.Language}, nil
}

func sniffHead(data []byte) []byte {
	if len(data) > sniffLen {
		return data[:sniffLen]
	}
	return data
}

func (s *Service) stage(up Upload) (string, error) {
	f, err := os.CreateTemp(s.cfg.StagingDir, "shiksha-upload-*"+audio.StagingExtension(up.Filename, sniffHead(up.Data)))
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	path := f.Name()

	if _, err := f.Write(up.Data); err != nil {
		_ = f.Close()
		s.cleanup(path)
		return "", fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		s.cleanup(path)
		return "", fmt.Errorf("close staging file: %w", err)
	}

	s.logger.Debug("staged upload", zap.String("path", path), zap.Int("bytes", len(up.Data)))
	return path, nil
}

// convert transcodes a staged upload into a sibling WAV file. The returned
// path is set whenever the file was created, so the caller can remove it even
// when conversion fails.
func (s *Service) convert(ctx context.Context, src string) (string, error) {
	f, err := os.CreateTemp(s.cfg.StagingDir, "shiksha-converted-*.wav")
	if err != nil {
		return "", fmt.Errorf("create conversion target: %w", err)
	}
	dst := f.Name()
	if err := f.Close(); err != nil {
		return dst, fmt.Errorf("close conversion target: %w", err)
	}

	started := time.Now()
	if err := s.converter.ToWAV(ctx, src, dst); err != nil {
		return dst, err
	}
	s.logger.Debug("converted upload to wav", zap.String("from", src), zap.String("to", dst), zap.Duration("elapsed", time.Since(started)))
	return dst, nil
}

// cleanup never fails the request; a leftover file is only worth a log line.
func (s *Service) cleanup(path string) {
	if err := s.removeFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("failed to remove staged upload", zap.String("path", path), zap.Error(err))
	}
}

func (s *Service) isSilent(up Upload) bool {
	if audio.Sniff(up.Data) != ".wav" {
		return false
	}

	silent, metrics, err := audio.IsSilentWAV(up.Data, s.cfg.SilenceThresholdDBFS)
	if err != nil {
		s.logger.Debug("silence gate analysis failed; continuing transcription", zap.Error(err))
		return false
	}
	if silent {
		s.logger.Info("audio considered silent; skipping transcription",
			zap.Float64("rms_dbfs", metrics.RMSdBFS),
			zap.Float64("peak_dbfs", metrics.PeakdBFS),
			zap.Float64("threshold_dbfs", s.cfg.SilenceThresholdDBFS),
		)
	}
	return silent
}
