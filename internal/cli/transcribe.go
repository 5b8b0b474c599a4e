package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brahmarsh1/shiksha/internal/download"
	"github.com/brahmarsh1/shiksha/internal/platform"
	"github.com/brahmarsh1/shiksha/internal/transcribe"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.transcribeFile(cmd.Context(), args[0], lang)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			if result.Text == "" {
				app.log().Warn(noSpeechHint())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "Language hint; \"sa\" selects Sanskrit, anything else auto-detects")
	bindTranscriptionFlags(cmd)
	return cmd
}

// transcribeFile runs a local file through the same staging lifecycle as an
// HTTP upload, so the original file is never handed to the model directly.
func (a *appState) transcribeFile(ctx context.Context, audioPath, lang string) (transcribe.Result, error) {
	audioPath = filepath.Clean(audioPath)
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("audio file not found: %w", err)
	}

	model, err := a.loadModelFn(ctx)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("load speech model: %w", err)
	}

	stagingDir, err := platform.ResolveStagingDir(a.cfg.StagingDir)
	if err != nil {
		return transcribe.Result{}, err
	}

	svc := transcribe.New(model, transcribe.Config{
		StagingDir:           stagingDir,
		FullPrecision:        a.cfg.FullPrecision,
		SilenceGate:          a.cfg.SilenceGate,
		SilenceThresholdDBFS: a.cfg.SilenceThresholdDBFS,
		Logger:               a.log(),
	})

	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("model", model.Name()), zap.String("lang", transcribe.ForwardedLanguage(lang)))
	stopSpinner := download.StartSpinner(a.progressEnabled(), "Transcribing")
	result, err := svc.Transcribe(ctx, transcribe.Upload{Filename: filepath.Base(audioPath), Data: data}, lang)
	stopSpinner()
	return result, err
}

func noSpeechHint() string {
	return "No speech detected. Check that the recording is not muted or silent, then try again."
}
