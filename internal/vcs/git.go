package vcs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrExternalToolFailure is matched by every failed git invocation.
var ErrExternalToolFailure = errors.New("external tool failure")

// ToolError carries the arguments and combined output of a failed git run.
type ToolError struct {
	Args   []string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("vcs: git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ToolError) Unwrap() []error {
	return []error{ErrExternalToolFailure, e.Err}
}

// Git runs the git binary against one repository. It keeps no state
// between calls.
type Git struct {
	dir    string
	binary string
	config []string
	log    zerolog.Logger
}

// Option customizes a Git gateway.
type Option func(*Git)

// WithBinary overrides the git executable.
func WithBinary(binary string) Option {
	return func(g *Git) {
		if strings.TrimSpace(binary) != "" {
			g.binary = binary
		}
	}
}

// WithConfig passes key=value pairs to every invocation as `git -c`.
func WithConfig(pairs ...string) Option {
	return func(g *Git) {
		for _, pair := range pairs {
			if pair = strings.TrimSpace(pair); pair != "" {
				g.config = append(g.config, pair)
			}
		}
	}
}

// WithLogger logs each invocation at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Git) {
		g.log = log
	}
}

// New builds a gateway rooted at dir.
func New(dir string, opts ...Option) *Git {
	g := &Git{dir: dir, binary: "git", log: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dir returns the repository root commands run in.
func (g *Git) Dir() string {
	return g.dir
}

// run executes git and returns trimmed combined output.
func (g *Git) run(args ...string) (string, error) {
	full := make([]string, 0, len(args)+2*len(g.config))
	for _, pair := range g.config {
		full = append(full, "-c", pair)
	}
	full = append(full, args...)

	cmd := exec.Command(g.binary, full...)
	cmd.Dir = g.dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := strings.TrimSpace(out.String())
	g.log.Debug().Strs("args", args).Err(err).Msg("git")
	if err != nil {
		return output, &ToolError{Args: args, Output: output, Err: err}
	}
	return output, nil
}

// AddSubmodule runs `git submodule add <url> <path>`.
func (g *Git) AddSubmodule(url, path string) error {
	_, err := g.run("submodule", "add", url, filepath.ToSlash(path))
	return err
}

// RemoveCached drops path from the index, leaving the working tree alone.
func (g *Git) RemoveCached(path string) error {
	_, err := g.run("rm", "--cached", filepath.ToSlash(path))
	return err
}

// RemoveModuleMetadata deletes <git-dir>/modules/<path>.
func (g *Git) RemoveModuleMetadata(path string) error {
	gitDir, err := g.run("rev-parse", "--git-dir")
	if err != nil {
		return err
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(g.dir, gitDir)
	}
	target := filepath.Join(gitDir, "modules", filepath.FromSlash(path))
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("vcs: remove %s: %w", target, err)
	}
	return nil
}

// RemoveRegistrySection deletes the `submodule "<path>"` section from
// .gitmodules.
func (g *Git) RemoveRegistrySection(path string) error {
	_, err := g.run("config", "--file", RegistryFile, "--remove-section", "submodule."+filepath.ToSlash(path))
	return err
}

// Stage runs `git add <path>`.
func (g *Git) Stage(path string) error {
	_, err := g.run("add", filepath.ToSlash(path))
	return err
}

// Registry parses the repository's .gitmodules.
func (g *Git) Registry() (Registry, error) {
	return ReadRegistry(filepath.Join(g.dir, RegistryFile))
}
