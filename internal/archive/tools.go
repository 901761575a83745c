package archive

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

// wellKnownDirs are searched after the configured path and $PATH
var wellKnownDirs = []string{"/usr/local/bin", "/opt/homebrew/bin", "/usr/bin"}

// Runner executes an external tool and captures its output
type Runner interface {
	Run(ctx context.Context, tool string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs tools with os/exec, killing them when ctx is done
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, tool string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Tools holds resolved paths to unar and lsar. An empty path means the
// tool was not found.
type Tools struct {
	Unar string
	Lsar string
}

// DiscoverTools resolves unar and lsar, preferring the configured paths
func DiscoverTools(unar, lsar string) Tools {
	return Tools{
		Unar: findTool(unar, "unar"),
		Lsar: findTool(lsar, "lsar"),
	}
}

// findTool returns the first executable among: configured, $PATH lookup
// of name, then name inside each well-known directory
func findTool(configured, name string) string {
	if configured != "" {
		if isExecutable(configured) {
			return configured
		}
		return ""
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	for _, dir := range wellKnownDirs {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate
		}
	}
	return ""
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
