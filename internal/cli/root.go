package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/brahmarsh1/shiksha/internal/config"
	"github.com/brahmarsh1/shiksha/internal/logging"
	"github.com/brahmarsh1/shiksha/internal/platform"
	"github.com/brahmarsh1/shiksha/internal/version"
	"github.com/brahmarsh1/shiksha/internal/whisper"
)

type appState struct {
	configFile string
	envFile    string

	cfg    config.Config
	logger *zap.Logger

	loadModelFn func(ctx context.Context) (*whisper.Model, error)
	listenFn    func(ctx context.Context, network, addr string) (net.Listener, error)
	// readyFn, when set, observes the bound address once serve is accepting.
	readyFn func(addr net.Addr)
}

func NewRootCmd() *cobra.Command {
	app := &appState{envFile: ".env"}
	app.loadModelFn = app.loadSpeechModel
	app.listenFn = func(ctx context.Context, network, addr string) (net.Listener, error) {
		var lc net.ListenConfig
		return lc.Listen(ctx, network, addr)
	}

	return newRootCmd(app)
}

func newRootCmd(app *appState) *cobra.Command {
	defaults := config.Defaults()

	cmd := &cobra.Command{
		Use:           "shiksha",
		Short:         "Transcribe speech, with Sanskrit support, over HTTP or from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		// NoArgs keeps flag parsing ahead of subcommand lookup, so
		// "--version --env-file x.env" is not read as a command named x.env.
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), config.WithConfigFile(app.configFile), config.WithEnvFile(app.envFile))
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{Verbose: cfg.Verbose, JSON: cfg.JSON})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.cfg = cfg
			app.logger = logger
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&app.configFile, "config", app.configFile, "Config file (yaml, toml or json)")
	pf.StringVar(&app.envFile, "env-file", app.envFile, "Dotenv file with SHIKSHA_* settings; ignored when missing")
	pf.Bool(config.KeyVerbose, defaults.Verbose, "Enable verbose logs")
	pf.Bool(config.KeyJSON, defaults.JSON, "Enable JSON logging")
	pf.Bool(config.KeyNoProgress, defaults.NoProgress, "Disable progress indicators")
	pf.String(config.KeyModel, defaults.Model, "Model name ("+modelNamesHint()+") or model file path")
	pf.String(config.KeyModelDir, defaults.ModelDir, "Directory where models are stored")
	pf.Bool(config.KeyAutoDownload, defaults.AutoDownload, "Automatically download missing models")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// bindTranscriptionFlags registers the settings shared by serve and transcribe.
func bindTranscriptionFlags(cmd *cobra.Command) {
	d := config.Defaults()
	cmd.Flags().String(config.KeyStagingDir, d.StagingDir, "Directory for staged uploads (default: system temp dir)")
	cmd.Flags().Bool(config.KeyFullPrecision, d.FullPrecision, "Run the model at full precision on CPU")
	cmd.Flags().Bool(config.KeySilenceGate, d.SilenceGate, "Detect near-silent WAV audio and skip transcription")
	cmd.Flags().Float64(config.KeySilenceDBFS, d.SilenceThresholdDBFS, "Silence gate threshold in dBFS")
}

func (a *appState) loadSpeechModel(ctx context.Context) (*whisper.Model, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return nil, err
	}

	return whisper.Load(ctx, whisper.LoadOptions{
		ModelRef:     a.cfg.Model,
		ModelDir:     modelDir,
		AutoDownload: a.cfg.AutoDownload,
		NoProgress:   a.cfg.NoProgress,
		Logger:       a.log(),
	})
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.cfg.ModelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.cfg.NoProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func modelNamesHint() string {
	return strings.Join(whisper.ModelNames(), "|")
}
