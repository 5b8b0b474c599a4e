package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// whisper models expect 16 kHz mono input.
	targetSampleRate = 16000
	targetChannels   = 1
)

// Converter rewrites src as a PCM WAV file at dst.
type Converter interface {
	ToWAV(ctx context.Context, src, dst string) error
}

// ConverterFunc adapts a plain function to Converter.
type ConverterFunc func(ctx context.Context, src, dst string) error

func (f ConverterFunc) ToWAV(ctx context.Context, src, dst string) error {
	return f(ctx, src, dst)
}

// NeedsConversion reports whether a sniffed container has to be transcoded
// before whisper-cli can read it. whisper-cli reads WAV, MP3 and FLAC on its
// own; unrecognised bytes are left for the model to reject.
func NeedsConversion(sniffed string) bool {
	switch sniffed {
	case ".ogg", ".webm", ".m4a":
		return true
	default:
		return false
	}
}

// FFmpegConverter transcodes with the ffmpeg binary found on PATH, or
// Executable when set.
type FFmpegConverter struct {
	Executable string
	Logger     *zap.Logger
}

func NewFFmpegConverter(logger *zap.Logger) *FFmpegConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegConverter{Logger: logger}
}

func (c *FFmpegConverter) ToWAV(ctx context.Context, src, dst string) error {
	executable := c.Executable
	if executable == "" {
		path, err := exec.LookPath("ffmpeg")
		if err != nil {
			return fmt.Errorf("ffmpeg is required to decode this audio container: %w", err)
		}
		executable = path
	}

	args := ffmpegArgs(src, dst)
	cmd := exec.CommandContext(ctx, executable, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if c.Logger != nil {
		c.Logger.Debug("converting upload", zap.String("ffmpeg", executable), zap.Strings("args", args))
	}
	if err := cmd.Run(); err != nil {
		if detail := lastLine(stderr.String()); detail != "" {
			return fmt.Errorf("ffmpeg conversion failed: %w: %s", err, detail)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("ffmpeg conversion failed with exit code %d", exitErr.ExitCode())
		}
		return fmt.Errorf("ffmpeg conversion failed: %w", err)
	}
	return nil
}

func ffmpegArgs(src, dst string) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-ac", strconv.Itoa(targetChannels),
		"-ar", strconv.Itoa(targetSampleRate),
		"-c:a", "pcm_s16le",
		dst,
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
