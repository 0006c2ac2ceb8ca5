package dojo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kingrea/dojo-manager/internal/vcs"
)

// fakeVCS mimics the side effects of git that the lifecycles rely on: add
// creates the directory and a registry section, remove-section drops it.
type fakeVCS struct {
	root       string
	submodules []vcs.Submodule
	calls      []string
	fail       map[string]error
	noRegistry bool
}

func newFakeVCS(root string) *fakeVCS {
	return &fakeVCS{root: root, fail: map[string]error{}}
}

func (f *fakeVCS) record(call string) error {
	f.calls = append(f.calls, call)
	if err, ok := f.fail[call]; ok {
		return err
	}
	return nil
}

func (f *fakeVCS) AddSubmodule(url, path string) error {
	if err := f.record("add " + path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(f.root, filepath.FromSlash(path)), 0o755); err != nil {
		return err
	}
	f.submodules = append(f.submodules, vcs.Submodule{Key: path, Path: path, URL: url})
	return nil
}

func (f *fakeVCS) RemoveCached(path string) error {
	return f.record("rm --cached " + path)
}

func (f *fakeVCS) RemoveModuleMetadata(path string) error {
	return f.record("rm metadata " + path)
}

func (f *fakeVCS) RemoveRegistrySection(path string) error {
	if err := f.record("remove-section " + path); err != nil {
		return err
	}
	kept := f.submodules[:0]
	found := false
	for _, sm := range f.submodules {
		if sm.Key == path {
			found = true
			continue
		}
		kept = append(kept, sm)
	}
	f.submodules = kept
	if !found {
		return fmt.Errorf("no such section: submodule.%s: %w", path, vcs.ErrExternalToolFailure)
	}
	return nil
}

func (f *fakeVCS) Stage(path string) error {
	return f.record("add " + path)
}

func (f *fakeVCS) Registry() (vcs.Registry, error) {
	if f.noRegistry {
		return vcs.Registry{}, fmt.Errorf("fake: %w", vcs.ErrRegistryUnavailable)
	}
	return vcs.Registry{Submodules: append([]vcs.Submodule(nil), f.submodules...)}, nil
}

func (f *fakeVCS) called(call string) bool {
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}
