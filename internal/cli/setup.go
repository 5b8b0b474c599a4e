package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brahmarsh1/shiksha/internal/download"
	"github.com/brahmarsh1/shiksha/internal/whisper"
)

func newSetupCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download and verify speech model assets",
		Long:  "Download the model selected by --model into the model directory and verify its sha256, so serve can start offline.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.setupModel(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// setupModel installs a registry model, replacing a present copy whose
// checksum no longer matches.
func (a *appState) setupModel(ctx context.Context, out io.Writer) error {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return err
	}

	resolved, err := whisper.ResolveModel(a.cfg.Model, modelDir)
	if err != nil {
		return err
	}
	if resolved.IsCustomPath {
		return fmt.Errorf("setup expects a named model (%s); got custom path %s", modelNamesHint(), resolved.Path)
	}

	expected := resolved.SHA256
	if expected == "" && resolved.SHA256URL != "" {
		sum, err := download.ResolveExpectedChecksum(ctx, resolved.SHA256URL, filepath.Base(resolved.Path), nil)
		if err != nil {
			return fmt.Errorf("resolve checksum for model %s: %w", resolved.Name, err)
		}
		expected = sum
	}

	if !resolved.NeedsDownload && expected != "" {
		if err := download.VerifyFileChecksum(resolved.Path, expected); err != nil {
			a.log().Warn("model checksum verification failed; downloading fresh copy", zap.String("model", resolved.Name), zap.Error(err))
			resolved.NeedsDownload = true
		}
	}

	if !resolved.NeedsDownload {
		a.log().Info("model already present", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
		fmt.Fprintf(out, "Model %s already present at %s\n", resolved.Name, resolved.Path)
		return nil
	}

	a.log().Info("downloading model", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
	if err := download.DownloadFile(ctx, download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: expected,
		NoProgress:     a.cfg.NoProgress,
		Logger:         a.log(),
	}); err != nil {
		return fmt.Errorf("download model %s: %w", resolved.Name, err)
	}

	fmt.Fprintf(out, "Model %s installed at %s\n", resolved.Name, resolved.Path)
	return nil
}
