package dojo

import (
	"fmt"
	"os"

	"github.com/kingrea/dojo-manager/internal/manifest"
)

// CreateChallenge adds a challenge directory with its DESCRIPTION.md and
// verify script, then appends the record to module.yml.
//
// As with modules, a directory failure is recorded but does not stop the
// record from being appended.
func (m *Manager) CreateChallenge(mod *manifest.Module, req ChallengeRequest) (Report, error) {
	report := newReport("create challenge")
	if err := req.validate(); err != nil {
		return *report, err
	}
	if err := manifest.CheckUnique("challenge", mod.Entries(), manifest.Entry{ID: req.ID, Name: req.Name}); err != nil {
		return *report, fmt.Errorf("dojo: %w", err)
	}
	record := manifest.Challenge{
		ID:              req.ID,
		Name:            req.Name,
		AllowPrivileged: req.AllowPrivileged,
		Extra:           req.Extra,
	}

	dir := m.path(mod.ID(), req.ID)
	report.run(fmt.Sprintf("Creating directory '%s'", req.ID), func() error {
		return makeDir(dir)
	})
	report.run(fmt.Sprintf("Creating %s file", manifest.DescriptionFile), func() error {
		return writeEmpty(m.path(mod.ID(), req.ID, manifest.DescriptionFile))
	})
	report.run(fmt.Sprintf("Creating %s file", VerifyFile), func() error {
		p := m.path(mod.ID(), req.ID, VerifyFile)
		if err := os.WriteFile(p, []byte(verifyTemplate), 0o755); err != nil {
			return err
		}
		// WriteFile leaves the mode of an existing file alone and is subject
		// to umask.
		return os.Chmod(p, 0o755)
	})
	report.run(fmt.Sprintf("Adding challenge to %s file", manifest.ModuleFile), func() error {
		if err := mod.AddChallenge(record); err != nil {
			return err
		}
		return m.store.Save(mod.Document())
	})
	m.finish(report)
	return *report, nil
}

// DeleteChallenge removes the challenge record from module.yml and, when the
// challenge directory exists, tears down every registered submodule before
// deleting the directory.
func (m *Manager) DeleteChallenge(mod *manifest.Module, id string) (Report, error) {
	report := newReport("delete challenge")
	if err := validateSegment("challenge id", id); err != nil {
		return *report, err
	}
	if !mod.RemoveChallenge(id) {
		report.skip(fmt.Sprintf("Removing challenge '%s' from %s", id, manifest.ModuleFile), "challenge is not listed")
	}

	dir := m.path(mod.ID(), id)
	if !exists(dir) {
		report.run(fmt.Sprintf("Saving %s file", manifest.ModuleFile), func() error {
			return m.store.Save(mod.Document())
		})
		report.skip(fmt.Sprintf("Deleting directory '%s'", id), "challenge directory does not exist")
		m.finish(report)
		return *report, nil
	}

	if err := m.deleteSubmodules(report, mod.ID(), id, AllSubmodules()); err != nil {
		report.fail(fmt.Sprintf("Deleting submodules of '%s'", id), err)
	}
	report.run(fmt.Sprintf("Saving %s file", manifest.ModuleFile), func() error {
		return m.store.Save(mod.Document())
	})
	report.run(fmt.Sprintf("Deleting directory '%s'", id), func() error {
		return os.RemoveAll(dir)
	})
	m.finish(report)
	return *report, nil
}
