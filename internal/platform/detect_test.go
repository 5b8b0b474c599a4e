package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultModelDirFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		goos    string
		home    string
		xdg     string
		want    string
		wantErr bool
	}{
		{name: "linux with xdg", goos: "linux", home: "/home/dev", xdg: "/tmp/xdg-data", want: "/tmp/xdg-data/shiksha/models"},
		{name: "linux without xdg", goos: "linux", home: "/home/dev", want: "/home/dev/.local/share/shiksha/models"},
		{name: "macos", goos: "darwin", home: "/Users/dev", want: "/Users/dev/Library/Application Support/shiksha/models"},
		{name: "unsupported", goos: "windows", home: "/Users/dev", wantErr: true},
		{name: "empty home", goos: "linux", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir, err := DefaultModelDirFor(tt.goos, tt.home, tt.xdg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, dir)
		})
	}
}

func TestResolveModelDirOverride(t *testing.T) {
	t.Parallel()

	dir, err := ResolveModelDir("/srv/models/")
	require.NoError(t, err)
	require.Equal(t, filepath.Clean("/srv/models/"), dir)
}

func TestResolveStagingDir(t *testing.T) {
	t.Parallel()

	dir, err := ResolveStagingDir("")
	require.NoError(t, err)
	require.Equal(t, os.TempDir(), dir)

	override := filepath.Join(t.TempDir(), "uploads", "staging")
	dir, err = ResolveStagingDir(override)
	require.NoError(t, err)
	require.Equal(t, override, dir)

	info, err := os.Stat(override)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNormalizeArch(t *testing.T) {
	t.Parallel()

	require.Equal(t, "amd64", NormalizeArch("x86_64"))
	require.Equal(t, "arm64", NormalizeArch("aarch64"))
	require.Equal(t, "riscv64", NormalizeArch("riscv64"))
}
