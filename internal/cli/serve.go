package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brahmarsh1/shiksha/internal/config"
	"github.com/brahmarsh1/shiksha/internal/httpapi"
	"github.com/brahmarsh1/shiksha/internal/platform"
	"github.com/brahmarsh1/shiksha/internal/transcribe"
)

func newServeCmd(app *appState) *cobra.Command {
	d := config.Defaults()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the speech model and serve POST /transcribe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.serve(cmd.Context())
		},
	}

	cmd.Flags().String(config.KeyAddr, d.Addr, "Listen address")
	cmd.Flags().String(config.KeyCORSOrigin, d.CORSOrigin, "Browser origin allowed to call the API")
	cmd.Flags().Int64(config.KeyMaxUploadMB, d.MaxUploadMB, "Largest accepted upload in MiB")
	cmd.Flags().Int64(config.KeyMaxConcurrent, d.MaxConcurrent, "Simultaneous model runs; 0 means unbounded")
	cmd.Flags().Duration(config.KeyShutdownTimeout, d.ShutdownTimeout, "Grace period for in-flight requests on shutdown")
	bindTranscriptionFlags(cmd)
	return cmd
}

// serve loads the model before binding the listener, so a model that cannot
// load never leaves a half-started server behind.
func (a *appState) serve(ctx context.Context) error {
	model, err := a.loadModelFn(ctx)
	if err != nil {
		return fmt.Errorf("load speech model: %w", err)
	}

	stagingDir, err := platform.ResolveStagingDir(a.cfg.StagingDir)
	if err != nil {
		return err
	}

	svc := transcribe.New(model, transcribe.Config{
		StagingDir:           stagingDir,
		FullPrecision:        a.cfg.FullPrecision,
		MaxConcurrent:        a.cfg.MaxConcurrent,
		SilenceGate:          a.cfg.SilenceGate,
		SilenceThresholdDBFS: a.cfg.SilenceThresholdDBFS,
		Logger:               a.log(),
	})

	if !a.cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(svc, httpapi.Options{
		CORSOrigin:     a.cfg.CORSOrigin,
		MaxUploadBytes: a.cfg.MaxUploadBytes(),
		ModelName:      model.Name(),
		Logger:         a.log(),
	})

	ln, err := a.listenFn(ctx, "tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	a.log().Info("serving",
		zap.String("addr", ln.Addr().String()),
		zap.String("model", model.Name()),
		zap.String("cors_origin", a.cfg.CORSOrigin),
		zap.String("staging_dir", stagingDir),
	)
	if a.readyFn != nil {
		a.readyFn(ln.Addr())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.log().Info("shutting down", zap.Duration("grace", a.cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
