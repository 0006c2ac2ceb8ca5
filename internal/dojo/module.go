package dojo

import (
	"fmt"
	"os"

	"github.com/kingrea/dojo-manager/internal/manifest"
)

// CreateModule adds a module directory, registers it in dojo.yml, and writes
// its module.yml and DESCRIPTION.md.
//
// Validation and the uniqueness check run before anything touches disk. After
// that every step is attempted even if an earlier one failed, so a directory
// failure still leaves the module registered in dojo.yml.
func (m *Manager) CreateModule(dojo *manifest.Dojo, req ModuleRequest) (Report, error) {
	report := newReport("create module")
	if err := req.validate(); err != nil {
		return *report, err
	}
	entry := manifest.Entry{ID: req.ID, Name: req.Name}
	if err := manifest.CheckUnique("module", dojo.Modules(), entry); err != nil {
		return *report, fmt.Errorf("dojo: %w", err)
	}

	dir := m.path(req.ID)
	report.run(fmt.Sprintf("Creating directory '%s'", req.ID), func() error {
		return makeDir(dir)
	})
	report.run(fmt.Sprintf("Adding module to %s file", manifest.DojoFile), func() error {
		if err := dojo.AddModule(entry); err != nil {
			return err
		}
		return m.store.Save(dojo.Document())
	})
	report.run(fmt.Sprintf("Creating %s file", manifest.ModuleFile), func() error {
		mod, err := manifest.NewModule(m.root, req.ID, req.Name)
		if err != nil {
			return err
		}
		return m.store.Save(mod.Document())
	})
	report.run(fmt.Sprintf("Creating %s file", manifest.DescriptionFile), func() error {
		return writeEmpty(m.path(req.ID, manifest.DescriptionFile))
	})
	m.finish(report)
	return *report, nil
}

// DeleteModule removes the module directory and its dojo.yml entry. A
// missing directory makes this a no-op.
//
// The directory is removed with a plain recursive delete. Submodules inside
// it are not torn down through git, so their .gitmodules sections and
// internal metadata are left behind.
func (m *Manager) DeleteModule(dojo *manifest.Dojo, id string) (Report, error) {
	report := newReport("delete module")
	if err := validateSegment("module id", id); err != nil {
		return *report, err
	}
	dir := m.path(id)
	if !exists(dir) {
		report.skip(fmt.Sprintf("Deleting directory '%s'", id), "module directory does not exist")
		m.finish(report)
		return *report, nil
	}
	report.run(fmt.Sprintf("Deleting directory '%s'", id), func() error {
		return os.RemoveAll(dir)
	})
	report.run(fmt.Sprintf("Removing module from %s file", manifest.DojoFile), func() error {
		dojo.RemoveModule(id)
		return m.store.Save(dojo.Document())
	})
	m.finish(report)
	return *report, nil
}
