package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/dojo-manager/internal/dojo"
	"github.com/kingrea/dojo-manager/internal/manifest"
)

const (
	selectAll  = "\x00all"
	typeCustom = "custom"
)

var (
	errNoModules    = errors.New("No modules in dojo to select from")
	errNoChallenges = errors.New("No challenges in module to select from")
	errNoSubmodules = errors.New("No submodules in challenge to select from")
)

// opFinishedMsg carries the outcome of a manager call back into Update.
type opFinishedMsg struct {
	report dojo.Report
	err    error
}

func finished(report dojo.Report, err error) tea.Msg {
	return opFinishedMsg{report: report, err: err}
}

func required(label string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

func gate(label string, defaultYes bool) *prompt {
	return &prompt{kind: promptConfirm, key: "confirm", label: label, defaultYes: defaultYes, gate: true}
}

func (a *App) initFlow() *flow {
	next := func(ans map[string]string) (*prompt, error) {
		if _, ok := ans["name"]; !ok {
			return &prompt{kind: promptText, key: "name", label: "Dojo name", validate: required("dojo name")}, nil
		}
		if _, ok := ans["type"]; !ok {
			choices := make([]choice, 0, len(dojo.DojoTypes)+1)
			for _, t := range dojo.DojoTypes {
				choices = append(choices, choice{label: titleCase(t), value: t})
			}
			choices = append(choices, choice{label: "Custom", value: typeCustom})
			return &prompt{kind: promptSelect, key: "type", label: "Dojo type", choices: choices}, nil
		}
		if _, ok := ans["custom"]; !ok && ans["type"] == typeCustom {
			return &prompt{kind: promptText, key: "custom", label: "Custom dojo type", validate: required("dojo type")}, nil
		}
		if _, ok := ans["confirm"]; !ok {
			return gate(fmt.Sprintf("Create %s for '%s' with ID '%s'?", manifest.DojoFile, ans["name"], dojo.Slugify(ans["name"])), true), nil
		}
		return nil, nil
	}
	run := func(ans map[string]string) tea.Msg {
		dojoType := ans["type"]
		if dojoType == typeCustom {
			dojoType = ans["custom"]
		}
		return finished(a.manager.Initialize(dojo.DojoRequest{
			ID:   dojo.Slugify(ans["name"]),
			Name: ans["name"],
			Type: dojoType,
		}))
	}
	return newFlow("Initialize Dojo", next, run)
}

// uniqueName validates a display name and the id derived from it against
// existing entries, loaded fresh on every attempt.
func uniqueName(kind string, existing func() ([]manifest.Entry, error)) func(string) error {
	return func(name string) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%s name is required", kind)
		}
		id := dojo.Slugify(name)
		if err := dojo.ValidateID(id); err != nil {
			return fmt.Errorf("'%s' cannot be used as a %s ID. Try a different name.", id, kind)
		}
		entries, err := existing()
		if err != nil {
			return err
		}
		if err := manifest.CheckUnique(kind, entries, manifest.Entry{ID: id, Name: name}); err != nil {
			return fmt.Errorf("%v. Try a different name.", err)
		}
		return nil
	}
}

func (a *App) moduleChoices() ([]choice, error) {
	d, err := a.manager.LoadDojo()
	if err != nil {
		return nil, err
	}
	modules := d.Modules()
	if len(modules) == 0 {
		return nil, errNoModules
	}
	out := make([]choice, len(modules))
	for i, m := range modules {
		out[i] = choice{label: fmt.Sprintf("%s (%s)", m.Name, m.ID), value: m.ID}
	}
	return out, nil
}

func (a *App) challengeChoices(moduleID string) ([]choice, error) {
	mod, err := a.manager.LoadModule(moduleID)
	if err != nil {
		return nil, err
	}
	entries := mod.Entries()
	if len(entries) == 0 {
		return nil, errNoChallenges
	}
	out := make([]choice, len(entries))
	for i, c := range entries {
		out[i] = choice{label: fmt.Sprintf("%s (%s)", c.Name, c.ID), value: c.ID}
	}
	return out, nil
}

// selectModule and selectChallenge return the next select prompt when the
// answer is still missing.
func (a *App) selectModule(ans map[string]string) (*prompt, error) {
	if _, ok := ans["module"]; ok {
		return nil, nil
	}
	choices, err := a.moduleChoices()
	if err != nil {
		return nil, err
	}
	return &prompt{kind: promptSelect, key: "module", label: "Select a module", choices: choices}, nil
}

func (a *App) selectChallenge(ans map[string]string) (*prompt, error) {
	if _, ok := ans["challenge"]; ok {
		return nil, nil
	}
	choices, err := a.challengeChoices(ans["module"])
	if err != nil {
		return nil, err
	}
	return &prompt{kind: promptSelect, key: "challenge", label: "Select a challenge", choices: choices}, nil
}

func (a *App) createModuleFlow() *flow {
	existing := func() ([]manifest.Entry, error) {
		d, err := a.manager.LoadDojo()
		if err != nil {
			return nil, err
		}
		return d.Modules(), nil
	}
	next := func(ans map[string]string) (*prompt, error) {
		if _, ok := ans["name"]; !ok {
			return &prompt{kind: promptText, key: "name", label: "Module name", validate: uniqueName("module", existing)}, nil
		}
		if _, ok := ans["confirm"]; !ok {
			return gate(fmt.Sprintf("Create module '%s' with ID '%s'?", ans["name"], dojo.Slugify(ans["name"])), true), nil
		}
		return nil, nil
	}
	run := func(ans map[string]string) tea.Msg {
		d, err := a.manager.LoadDojo()
		if err != nil {
			return finished(dojo.Report{Operation: "create module"}, err)
		}
		return finished(a.manager.CreateModule(d, dojo.ModuleRequest{ID: dojo.Slugify(ans["name"]), Name: ans["name"]}))
	}
	return newFlow("Create Module", next, run)
}

func (a *App) deleteModuleFlow() *flow {
	next := func(ans map[string]string) (*prompt, error) {
		if p, err := a.selectModule(ans); p != nil || err != nil {
			return p, err
		}
		if _, ok := ans["confirm"]; !ok {
			return gate(fmt.Sprintf("Delete module '%s' and everything in it?", ans["module"]), false), nil
		}
		return nil, nil
	}
	run := func(ans map[string]string) tea.Msg {
		d, err := a.manager.LoadDojo()
		if err != nil {
			return finished(dojo.Report{Operation: "delete module"}, err)
		}
		return finished(a.manager.DeleteModule(d, ans["module"]))
	}
	return newFlow("Delete Module", next, run)
}

func (a *App) createChallengeFlow() *flow {
	next := func(ans map[string]string) (*prompt, error) {
		if p, err := a.selectModule(ans); p != nil || err != nil {
			return p, err
		}
		if _, ok := ans["name"]; !ok {
			moduleID := ans["module"]
			existing := func() ([]manifest.Entry, error) {
				mod, err := a.manager.LoadModule(moduleID)
				if err != nil {
					return nil, err
				}
				return mod.Entries(), nil
			}
			return &prompt{kind: promptText, key: "name", label: "Challenge name", validate: uniqueName("challenge", existing)}, nil
		}
		if _, ok := ans["privileged"]; !ok {
			return &prompt{kind: promptConfirm, key: "privileged", label: "Allow privileged mode?"}, nil
		}
		if _, ok := ans["confirm"]; !ok {
			return gate(fmt.Sprintf("Create challenge '%s' with ID '%s' in '%s'?", ans["name"], dojo.Slugify(ans["name"]), ans["module"]), true), nil
		}
		return nil, nil
	}
	run := func(ans map[string]string) tea.Msg {
		mod, err := a.manager.LoadModule(ans["module"])
		if err != nil {
			return finished(dojo.Report{Operation: "create challenge"}, err)
		}
		return finished(a.manager.CreateChallenge(mod, dojo.ChallengeRequest{
			ID:              dojo.Slugify(ans["name"]),
			Name:            ans["name"],
			AllowPrivileged: ans["privileged"] == answerYes,
		}))
	}
	return newFlow("Create Challenge", next, run)
}

func (a *App) deleteChallengeFlow() *flow {
	next := func(ans map[string]string) (*prompt, error) {
		if p, err := a.selectModule(ans); p != nil || err != nil {
			return p, err
		}
		if p, err := a.selectChallenge(ans); p != nil || err != nil {
			return p, err
		}
		if _, ok := ans["confirm"]; !ok {
			return gate(fmt.Sprintf("Delete challenge '%s' from '%s'?", ans["challenge"], ans["module"]), false), nil
		}
		return nil, nil
	}
	run := func(ans map[string]string) tea.Msg {
		mod, err := a.manager.LoadModule(ans["module"])
		if err != nil {
			return finished(dojo.Report{Operation: "delete challenge"}, err)
		}
		return finished(a.manager.DeleteChallenge(mod, ans["challenge"]))
	}
	return newFlow("Delete Challenge", next, run)
}

func (a *App) addSubmoduleFlow() *flow {
	next := func(ans map[string]string) (*prompt, error) {
		if p, err := a.selectModule(ans); p != nil || err != nil {
			return p, err
		}
		if p, err := a.selectChallenge(ans); p != nil || err != nil {
			return p, err
		}
		if _, ok := ans["url"]; !ok {
			return &prompt{kind: promptText, key: "url", label: "Repository URL", validate: required("repository URL")}, nil
		}
		if _, ok := ans["name"]; !ok {
			return &prompt{
				kind:     promptText,
				key:      "name",
				label:    "Submodule name",
				initial:  dojo.SubmoduleNameFromURL(ans["url"]),
				validate: dojo.ValidateID,
			}, nil
		}
		if _, ok := ans["confirm"]; !ok {
			return gate(fmt.Sprintf("Add '%s' as '%s/%s/%s'?", ans["url"], ans["module"], ans["challenge"], ans["name"]), true), nil
		}
		return nil, nil
	}
	run := func(ans map[string]string) tea.Msg {
		return finished(a.manager.AddSubmodule(dojo.SubmoduleRequest{
			ModuleID:    ans["module"],
			ChallengeID: ans["challenge"],
			URL:         ans["url"],
			Name:        ans["name"],
		}))
	}
	return newFlow("Add Submodule", next, run)
}

func (a *App) deleteSubmoduleFlow() *flow {
	next := func(ans map[string]string) (*prompt, error) {
		if p, err := a.selectModule(ans); p != nil || err != nil {
			return p, err
		}
		if p, err := a.selectChallenge(ans); p != nil || err != nil {
			return p, err
		}
		if _, ok := ans["submodule"]; !ok {
			names, _ := a.manager.Submodules(ans["module"], ans["challenge"])
			if len(names) == 0 {
				return nil, errNoSubmodules
			}
			choices := []choice{{label: "All", value: selectAll}}
			for _, n := range names {
				choices = append(choices, choice{label: n, value: n})
			}
			return &prompt{kind: promptSelect, key: "submodule", label: "Select a submodule", choices: choices}, nil
		}
		if _, ok := ans["confirm"]; !ok {
			target := ans["submodule"]
			if target == selectAll {
				target = "all submodules"
			}
			return gate(fmt.Sprintf("Delete %s from '%s/%s'?", target, ans["module"], ans["challenge"]), false), nil
		}
		return nil, nil
	}
	run := func(ans map[string]string) tea.Msg {
		sel := dojo.NamedSubmodule(ans["submodule"])
		if ans["submodule"] == selectAll {
			sel = dojo.AllSubmodules()
		}
		return finished(a.manager.DeleteSubmodules(ans["module"], ans["challenge"], sel))
	}
	return newFlow("Delete Submodule", next, run)
}
