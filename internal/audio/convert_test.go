package audio

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFakeFFmpeg(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestNeedsConversion(t *testing.T) {
	t.Parallel()

	for _, ext := range []string{".ogg", ".webm", ".m4a"} {
		require.Truef(t, NeedsConversion(ext), "%s should be transcoded", ext)
	}
	for _, ext := range []string{".wav", ".mp3", ".flac", ""} {
		require.Falsef(t, NeedsConversion(ext), "%q should go to the model as is", ext)
	}
}

func TestFFmpegArgsTargetWhisperInput(t *testing.T) {
	t.Parallel()

	args := ffmpegArgs("in.webm", "out.wav")
	require.Equal(t, []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", "in.webm",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"out.wav",
	}, args)
}

func TestFFmpegConverterWritesDestination(t *testing.T) {
	t.Parallel()

	// The last argument is the destination.
	fake := writeFakeFFmpeg(t, `for last; do :; done
printf 'RIFF' > "$last"
`)
	dir := t.TempDir()
	src := filepath.Join(dir, "in.webm")
	dst := filepath.Join(dir, "out.wav")
	require.NoError(t, os.WriteFile(src, []byte{0x1A, 0x45, 0xDF, 0xA3}, 0o600))

	conv := &FFmpegConverter{Executable: fake}
	require.NoError(t, conv.ToWAV(context.Background(), src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(got))
}

func TestFFmpegConverterReportsStderr(t *testing.T) {
	t.Parallel()

	fake := writeFakeFFmpeg(t, `echo "noise line" >&2
echo "Invalid data found when processing input" >&2
exit 1
`)

	conv := NewFFmpegConverter(nil)
	conv.Executable = fake
	err := conv.ToWAV(context.Background(), "in.ogg", filepath.Join(t.TempDir(), "out.wav"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "ffmpeg conversion failed")
	require.Contains(t, err.Error(), "Invalid data found when processing input")
	require.NotContains(t, err.Error(), "noise line")
}
