// internal/dojo/manager.go
//
// Manager owns the lifecycle rules for a dojo repository: which files and
// directories make up each module and challenge, how they are created and
// torn down together, and how submodules are looked up through git.
//
// Manifests are never cached here. Callers load a *manifest.Dojo or
// *manifest.Module, pass it to an operation, and the operation saves it at
// a documented point.

package dojo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/kingrea/dojo-manager/internal/manifest"
	"github.com/kingrea/dojo-manager/internal/vcs"
)

// VersionControl is the slice of git the lifecycles need. *vcs.Git
// implements it.
type VersionControl interface {
	AddSubmodule(url, path string) error
	RemoveCached(path string) error
	RemoveModuleMetadata(path string) error
	RemoveRegistrySection(path string) error
	Stage(path string) error
	Registry() (vcs.Registry, error)
}

// Recorder receives every finished report, e.g. a journal.
type Recorder interface {
	Record(Report)
}

// Manager performs lifecycle operations against one repository root.
type Manager struct {
	root      string
	store     *manifest.Store
	vcs       VersionControl
	log       zerolog.Logger
	recorders []Recorder
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger attaches a diagnostic logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithStore overrides the manifest store.
func WithStore(store *manifest.Store) Option {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

// WithRecorder adds a recorder that sees every report.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorders = append(m.recorders, r)
		}
	}
}

// New builds a manager for the repository at root.
func New(root string, vc VersionControl, opts ...Option) *Manager {
	m := &Manager{
		root:  root,
		store: manifest.NewStore(),
		vcs:   vc,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the repository root.
func (m *Manager) Root() string {
	return m.root
}

// Store returns the manifest store used for loading and saving.
func (m *Manager) Store() *manifest.Store {
	return m.store
}

// LoadDojo loads the root manifest.
func (m *Manager) LoadDojo() (*manifest.Dojo, error) {
	return m.store.LoadDojo(m.root)
}

// LoadModule loads a module manifest by id.
func (m *Manager) LoadModule(id string) (*manifest.Module, error) {
	if err := validateSegment("module id", id); err != nil {
		return nil, err
	}
	return m.store.LoadModule(m.root, id)
}

// IsInitialized reports whether dojo.yml exists or any immediate
// subdirectory already contains a module manifest.
func (m *Manager) IsInitialized() (bool, error) {
	if exists(m.path(manifest.DojoFile)) {
		return true, nil
	}
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return false, fmt.Errorf("dojo: read %s: %w", m.root, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if exists(m.path(entry.Name(), manifest.ModuleFile)) {
			return true, nil
		}
	}
	return false, nil
}

// Initialize writes a fresh dojo.yml with an empty module list.
func (m *Manager) Initialize(req DojoRequest) (Report, error) {
	report := newReport("initialize dojo")
	req, err := req.normalized()
	if err != nil {
		return *report, err
	}
	initialized, err := m.IsInitialized()
	if err != nil {
		return *report, err
	}
	if initialized {
		return *report, fmt.Errorf("dojo: %s: %w", m.root, ErrAlreadyInitialized)
	}
	dojo, err := manifest.NewDojo(m.root, req.ID, req.Name, req.Type)
	if err != nil {
		return *report, err
	}
	report.run(fmt.Sprintf("Creating %s file", manifest.DojoFile), func() error {
		return m.store.Save(dojo.Document())
	})
	m.finish(report)
	return *report, nil
}

func (m *Manager) path(parts ...string) string {
	return filepath.Join(append([]string{m.root}, parts...)...)
}

// repoPath is the slash-separated path git and .gitmodules use.
func repoPath(parts ...string) string {
	return path.Join(parts...)
}

func (m *Manager) finish(report *Report) {
	for _, step := range report.Steps {
		if step.Status == StepFailed {
			m.log.Warn().Str("operation", report.Operation).Str("step", step.Name).Err(step.Err).Msg("step failed")
		}
	}
	m.log.Info().Str("operation", report.Operation).Int("steps", len(report.Steps)).Bool("failed", report.Failed()).Msg("operation finished")
	for _, r := range m.recorders {
		r.Record(*report)
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// makeDir creates one directory, classifying failures as already-exists or
// create-failed.
func makeDir(p string) error {
	if exists(p) {
		return fmt.Errorf("directory '%s': %w", p, ErrDirectoryAlreadyExists)
	}
	if err := os.Mkdir(p, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("directory '%s': %w", p, ErrDirectoryAlreadyExists)
		}
		return fmt.Errorf("directory '%s': %w: %w", p, ErrDirectoryCreateFailed, err)
	}
	return nil
}

func writeEmpty(p string) error {
	return os.WriteFile(p, []byte{}, 0o644)
}
