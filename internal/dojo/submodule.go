package dojo

import (
	"fmt"
	"os"
	"path"

	"github.com/kingrea/dojo-manager/internal/vcs"
)

// AddSubmodule runs `git submodule add` for req.URL at
// <module>/<challenge>/<name>. An existing directory at that path makes this
// a no-op. A git failure is returned as ErrSubmoduleAddFailed and nothing
// is cleaned up.
func (m *Manager) AddSubmodule(req SubmoduleRequest) (Report, error) {
	report := newReport("add submodule")
	req, err := req.normalized()
	if err != nil {
		return *report, err
	}
	challengePath := repoPath(req.ModuleID, req.ChallengeID)
	if !isDir(m.path(req.ModuleID, req.ChallengeID)) {
		return *report, fmt.Errorf("dojo: challenge path '%s': %w", challengePath, ErrChallengePathNotFound)
	}

	target := repoPath(req.ModuleID, req.ChallengeID, req.Name)
	step := fmt.Sprintf("Adding submodule '%s' to '%s'", req.Name, challengePath)
	if exists(m.path(req.ModuleID, req.ChallengeID, req.Name)) {
		report.skip(step, fmt.Sprintf("submodule '%s' already exists in '%s'", req.Name, challengePath))
		m.finish(report)
		return *report, nil
	}
	if err := report.run(step, func() error { return m.vcs.AddSubmodule(req.URL, target) }); err != nil {
		m.finish(report)
		return *report, fmt.Errorf("dojo: %s: %w: %w", target, ErrSubmoduleAddFailed, err)
	}
	m.finish(report)
	return *report, nil
}

// DeleteSubmodules tears down the selected submodules of a challenge.
func (m *Manager) DeleteSubmodules(moduleID, challengeID string, sel Selector) (Report, error) {
	report := newReport("delete submodules")
	if err := validateSegment("module id", moduleID); err != nil {
		return *report, err
	}
	if err := validateSegment("challenge id", challengeID); err != nil {
		return *report, err
	}
	if !sel.All() {
		if err := validateSegment("submodule name", sel.Name()); err != nil {
			return *report, err
		}
	}
	if err := m.deleteSubmodules(report, moduleID, challengeID, sel); err != nil {
		report.fail(fmt.Sprintf("Locating challenge '%s'", repoPath(moduleID, challengeID)), err)
		m.finish(report)
		return *report, err
	}
	m.finish(report)
	return *report, nil
}

// deleteSubmodules appends one group of steps per target to report. The
// only error it returns is a missing challenge directory; everything else
// is recorded per step.
func (m *Manager) deleteSubmodules(report *Report, moduleID, challengeID string, sel Selector) error {
	challengePath := repoPath(moduleID, challengeID)
	if !isDir(m.path(moduleID, challengeID)) {
		return fmt.Errorf("dojo: challenge path '%s': %w", challengePath, ErrChallengePathNotFound)
	}

	var targets []string
	if sel.All() {
		names, err := m.Submodules(moduleID, challengeID)
		if err != nil {
			report.skip(fmt.Sprintf("Listing submodules in '%s'", challengePath), err.Error())
		}
		targets = names
	} else {
		targets = []string{sel.Name()}
	}

	for _, name := range targets {
		target := repoPath(moduleID, challengeID, name)
		dir := m.path(moduleID, challengeID, name)
		if !exists(dir) {
			report.fail(fmt.Sprintf("Deleting submodule '%s'", name),
				fmt.Errorf("submodule '%s' does not exist in '%s': %w", name, challengePath, ErrSubmoduleNotFound))
			continue
		}
		report.run(fmt.Sprintf("Removing '%s' from the git index", target), func() error {
			return m.vcs.RemoveCached(target)
		})
		report.run(fmt.Sprintf("Deleting directory '%s'", target), func() error {
			return os.RemoveAll(dir)
		})
		report.run(fmt.Sprintf("Deleting git metadata for '%s'", target), func() error {
			return m.vcs.RemoveModuleMetadata(target)
		})
		report.run(fmt.Sprintf("Removing '%s' from %s", target, vcs.RegistryFile), func() error {
			return m.vcs.RemoveRegistrySection(target)
		})
		report.run(fmt.Sprintf("Staging %s", vcs.RegistryFile), func() error {
			return m.vcs.Stage(vcs.RegistryFile)
		})
	}
	return nil
}

// Submodules lists the directory names of the submodules registered under
// a challenge, read from .gitmodules on every call. The slice is never nil;
// when the registry is missing or unreadable it is empty and the error
// explains why.
func (m *Manager) Submodules(moduleID, challengeID string) ([]string, error) {
	names := []string{}
	reg, err := m.vcs.Registry()
	if err != nil {
		m.log.Debug().Err(err).Msg("submodule registry unavailable")
		return names, err
	}
	for _, sm := range reg.Under(repoPath(moduleID, challengeID)) {
		if sm.Path == "" {
			continue
		}
		names = append(names, path.Base(sm.Path))
	}
	return names, nil
}
