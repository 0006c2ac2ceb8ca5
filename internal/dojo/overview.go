package dojo

import "github.com/kingrea/dojo-manager/internal/manifest"

// Overview is a read-only snapshot of the whole repository.
type Overview struct {
	Dojo    *manifest.Dojo
	Modules []ModuleOverview
}

// ModuleOverview holds one module; Err is set when its manifest could not
// be loaded or decoded.
type ModuleOverview struct {
	Entry      manifest.Entry
	Module     *manifest.Module
	Challenges []ChallengeOverview
	Err        error
}

// ChallengeOverview pairs a challenge record with its registered submodules.
type ChallengeOverview struct {
	Challenge  manifest.Challenge
	Submodules []string
}

// Overview loads dojo.yml, every listed module manifest and each challenge's
// submodules. Only a missing or invalid dojo.yml fails the call.
func (m *Manager) Overview() (Overview, error) {
	dojo, err := m.LoadDojo()
	if err != nil {
		return Overview{}, err
	}
	out := Overview{Dojo: dojo}
	for _, entry := range dojo.Modules() {
		mo := ModuleOverview{Entry: entry}
		mod, err := m.LoadModule(entry.ID)
		if err != nil {
			mo.Err = err
			out.Modules = append(out.Modules, mo)
			continue
		}
		mo.Module = mod
		challenges, err := mod.Challenges()
		if err != nil {
			mo.Err = err
		}
		for _, c := range challenges {
			names, _ := m.Submodules(entry.ID, c.ID)
			mo.Challenges = append(mo.Challenges, ChallengeOverview{Challenge: c, Submodules: names})
		}
		out.Modules = append(out.Modules, mo)
	}
	return out, nil
}
