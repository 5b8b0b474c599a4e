package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/brahmarsh1/shiksha/internal/platform"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnginePathEnv overrides engine discovery with an explicit whisper-cli path.
const EnginePathEnv = "SHIKSHA_WHISPER_PATH"

// BundledEngine shells out to a whisper.cpp command line binary. It holds no
// per-call state and is safe for concurrent use.
type BundledEngine struct {
	Executable string
	// OutputDir receives whisper's transient .txt output. Defaults to os.TempDir().
	OutputDir string
	Logger    *zap.Logger
}

func NewBundledEngine(logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv(EnginePathEnv)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("%s is not executable: %w", EnginePathEnv, err)
		}
		return &BundledEngine{Executable: override, Logger: logger}, nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve shiksha executable path: %w", err)
	}

	enginePath, err := ResolveBundledEnginePath(self)
	if err != nil {
		return nil, err
	}

	return &BundledEngine{Executable: enginePath, Logger: logger}, nil
}

// ResolveBundledEnginePath looks for whisper-cli next to the given executable
// and falls back to $PATH.
func ResolveBundledEnginePath(selfExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	if onPath, err := exec.LookPath(engineBinaryName()); err == nil {
		return onPath, nil
	}

	return "", fmt.Errorf("whisper engine not found near %s or on PATH; install whisper.cpp or set %s", selfExecutable, EnginePathEnv)
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	name := engineBinaryName()
	hostTarget := fmt.Sprintf("%s_%s", runtime.GOOS, platform.NormalizeArch(runtime.GOARCH))

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", name),
		filepath.Join(binDir, "libexec", "whisper", name),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, name),
		filepath.Join(binDir, name),
	}
}

func (b *BundledEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return "", errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return "", errors.New("model path is required")
	}
	if err := ensureExecutable(b.Executable); err != nil {
		return "", fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	outDir := b.OutputDir
	if outDir == "" {
		outDir = os.TempDir()
	}
	// whisper-cli appends ".txt" to the -of base.
	outBase := filepath.Join(outDir, "shiksha-whisper-"+uuid.NewString())
	txtOut := outBase + ".txt"
	defer os.Remove(txtOut)

	args := buildArgs(req, outBase)

	cmd := exec.CommandContext(ctx, b.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	b.log().Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return "", describeRunError(b.Executable, err, strings.TrimSpace(stderr.String()))
	}

	content, err := os.ReadFile(txtOut)
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func buildArgs(req TranscriptionRequest, outBase string) []string {
	lang := req.Language
	if lang == "" {
		lang = AutoLanguage
	}

	args := []string{"-m", req.ModelPath, "-f", req.AudioPath, "-nt", "-otxt", "-of", outBase, "-l", lang}
	if req.FullPrecision {
		args = append(args, "-ng")
	}
	return args
}

func describeRunError(executable string, runErr error, stderr string) error {
	switch {
	case isMissingSharedLibraryError(stderr):
		return fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", executable, stderr)
	case isIllegalInstructionError(stderr) || isIllegalInstructionError(runErr.Error()):
		return fmt.Errorf("whisper engine crashed with an illegal CPU instruction; set %s to a whisper-cli binary built for this CPU", EnginePathEnv)
	case stderr == "":
		return fmt.Errorf("whisper transcribe failed: %w", runErr)
	default:
		return fmt.Errorf("whisper transcribe failed: %w (%s)", runErr, lastLine(stderr))
	}
}

func (b *BundledEngine) log() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(stderr)
	if value == "" {
		return false
	}

	for _, pattern := range []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	} {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}

// lastLine keeps error bodies short; whisper-cli prints its whole model
// banner to stderr before failing.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
