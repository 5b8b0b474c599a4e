package version

import (
	"os/exec"
	"strings"
	"sync"
)

// Set at build time with -ldflags "-X".
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

type gitRunner func(args ...string) (string, error)

var resolved = sync.OnceValue(func() string {
	return resolveVersion(Version, runGit)
})

// Resolve returns the release version, suffixed with `git describe` output
// when running from a checkout that is not on a release tag. The result is
// computed once per process.
func Resolve() string {
	return resolved()
}

// UserAgent identifies outbound requests, e.g. model downloads.
func UserAgent() string {
	return "shiksha/" + Resolve()
}

func resolveVersion(base string, git gitRunner) string {
	if base == "" {
		base = "0.0.0"
	}

	if suffix := gitSuffix(base, git); suffix != "" {
		return base + "-" + suffix
	}
	return base
}

func gitSuffix(base string, git gitRunner) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(desc, "v"+base+"-")
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
