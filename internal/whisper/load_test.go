package whisper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brahmarsh1/shiksha/internal/download"
)

func TestLoadUsesPresentModelWithoutDownloading(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "ggml-tiny.bin"), []byte("x"), 0o644))

	model, err := Load(context.Background(), LoadOptions{
		ModelRef: "tiny",
		ModelDir: modelDir,
		Engine:   EngineFunc(func(context.Context, TranscriptionRequest) (string, error) { return "", nil }),
		Download: func(context.Context, download.Options) error {
			t.Fatal("download must not run for a present model")
			return nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, "tiny", model.Name())
	require.Equal(t, filepath.Join(modelDir, "ggml-tiny.bin"), model.Path())
}

func TestLoadDownloadsMissingModel(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	var got download.Options

	model, err := Load(context.Background(), LoadOptions{
		ModelDir:     modelDir,
		AutoDownload: true,
		Engine:       EngineFunc(func(context.Context, TranscriptionRequest) (string, error) { return "", nil }),
		Download: func(_ context.Context, opts download.Options) error {
			got = opts
			return nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, DefaultModel, model.Name())
	require.Equal(t, filepath.Join(modelDir, "ggml-base.bin"), got.Destination)
	require.Equal(t, modelBaseURL+"ggml-base.bin", got.URL)
	require.Len(t, got.ExpectedSHA256, 64)
}

func TestLoadFailsWhenModelMissingAndDownloadDisabled(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), LoadOptions{
		ModelRef: "small",
		ModelDir: t.TempDir(),
		Engine:   EngineFunc(func(context.Context, TranscriptionRequest) (string, error) { return "", nil }),
	})
	require.ErrorIs(t, err, ErrModelUnavailable)
	require.Contains(t, err.Error(), "shiksha setup --model small")
}

func TestLoadWrapsDownloadFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	_, err := Load(context.Background(), LoadOptions{
		ModelDir:     t.TempDir(),
		AutoDownload: true,
		Engine:       EngineFunc(func(context.Context, TranscriptionRequest) (string, error) { return "", nil }),
		Download:     func(context.Context, download.Options) error { return boom },
	})
	require.ErrorIs(t, err, ErrModelUnavailable)
	require.ErrorIs(t, err, boom)
}

func TestModelTranscribeForwardsLanguage(t *testing.T) {
	t.Parallel()

	var seen []TranscriptionRequest
	model := NewModel("base", "/models/ggml-base.bin", EngineFunc(func(_ context.Context, req TranscriptionRequest) (string, error) {
		seen = append(seen, req)
		return "  text \n", nil
	}))

	out, err := model.Transcribe(context.Background(), "/tmp/a.wav", Options{})
	require.NoError(t, err)
	require.Equal(t, Transcript{Text: "text", Language: AutoLanguage}, out)

	out, err = model.Transcribe(context.Background(), "/tmp/a.wav", Options{Language: SanskritLanguage, FullPrecision: true})
	require.NoError(t, err)
	require.Equal(t, SanskritLanguage, out.Language)

	require.Len(t, seen, 2)
	require.Equal(t, AutoLanguage, seen[0].Language)
	require.Equal(t, "/models/ggml-base.bin", seen[0].ModelPath)
	require.Equal(t, "/tmp/a.wav", seen[0].AudioPath)
	require.Equal(t, SanskritLanguage, seen[1].Language)
	require.True(t, seen[1].FullPrecision)
}

func TestModelTranscribeDoesNotRewriteLanguage(t *testing.T) {
	t.Parallel()

	var seen []string
	model := NewModel("base", "/models/ggml-base.bin", EngineFunc(func(_ context.Context, req TranscriptionRequest) (string, error) {
		seen = append(seen, req.Language)
		return "text", nil
	}))

	for _, lang := range []string{"SA", " sa ", "Auto"} {
		out, err := model.Transcribe(context.Background(), "/tmp/a.wav", Options{Language: lang})
		require.NoError(t, err)
		require.Equal(t, lang, out.Language)
	}
	require.Equal(t, []string{"SA", " sa ", "Auto"}, seen)
}
