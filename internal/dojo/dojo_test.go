package dojo

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kingrea/dojo-manager/internal/manifest"
	"github.com/kingrea/dojo-manager/internal/vcs"
)

type memoryRecorder struct {
	reports []Report
}

func (r *memoryRecorder) Record(report Report) {
	r.reports = append(r.reports, report)
}

func newTestManager(t *testing.T) (string, *Manager, *fakeVCS) {
	t.Helper()
	root := t.TempDir()
	fake := newFakeVCS(root)
	m := New(root, fake)
	if _, err := m.Initialize(DojoRequest{ID: "intro-security", Name: "Intro Security"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return root, m, fake
}

func loadDojo(t *testing.T, m *Manager) *manifest.Dojo {
	t.Helper()
	d, err := m.LoadDojo()
	if err != nil {
		t.Fatalf("load dojo: %v", err)
	}
	return d
}

func loadModule(t *testing.T, m *Manager, id string) *manifest.Module {
	t.Helper()
	mod, err := m.LoadModule(id)
	if err != nil {
		t.Fatalf("load module %s: %v", id, err)
	}
	return mod
}

func mustCreateModule(t *testing.T, m *Manager, id, name string) {
	t.Helper()
	report, err := m.CreateModule(loadDojo(t, m), ModuleRequest{ID: id, Name: name})
	if err != nil {
		t.Fatalf("create module %s: %v", id, err)
	}
	if report.Failed() {
		t.Fatalf("create module %s failed: %v", id, report.Err())
	}
}

func mustCreateChallenge(t *testing.T, m *Manager, moduleID, id, name string) {
	t.Helper()
	report, err := m.CreateChallenge(loadModule(t, m, moduleID), ChallengeRequest{ID: id, Name: name})
	if err != nil {
		t.Fatalf("create challenge %s: %v", id, err)
	}
	if report.Failed() {
		t.Fatalf("create challenge %s failed: %v", id, report.Err())
	}
}

func TestInitializeRefusesInitializedRepository(t *testing.T) {
	root := t.TempDir()
	m := New(root, newFakeVCS(root))
	if err := os.MkdirAll(filepath.Join(root, "legacy"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "legacy", manifest.ModuleFile), []byte("name: Legacy\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ok, err := m.IsInitialized()
	if err != nil || !ok {
		t.Fatalf("IsInitialized = %v, %v; want true", ok, err)
	}
	if _, err := m.Initialize(DojoRequest{ID: "d", Name: "D"}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, manifest.DojoFile)); !os.IsNotExist(err) {
		t.Fatalf("dojo.yml must not be written, stat err = %v", err)
	}
}

func TestInitializeWritesTypeUnlessEmpty(t *testing.T) {
	root := t.TempDir()
	m := New(root, newFakeVCS(root))
	if _, err := m.Initialize(DojoRequest{ID: "ctf", Name: "CTF", Type: "Event"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := loadDojo(t, m).Type(); got != "event" {
		t.Fatalf("type = %q, want event", got)
	}
	if _, err := m.Initialize(DojoRequest{ID: "ctf", Name: "CTF"}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second initialize: expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestCreateModule(t *testing.T) {
	root, m, _ := newTestManager(t)
	mustCreateModule(t, m, "binary-exploitation", "Binary Exploitation")

	modules := loadDojo(t, m).Modules()
	want := []manifest.Entry{{ID: "binary-exploitation", Name: "Binary Exploitation"}}
	if !reflect.DeepEqual(modules, want) {
		t.Fatalf("modules = %+v, want %+v", modules, want)
	}
	mod := loadModule(t, m, "binary-exploitation")
	if mod.Name() != "Binary Exploitation" {
		t.Fatalf("module name = %q", mod.Name())
	}
	if got := len(mod.Entries()); got != 0 {
		t.Fatalf("expected empty challenge list, got %d", got)
	}
	if _, err := os.Stat(filepath.Join(root, "binary-exploitation", manifest.DescriptionFile)); err != nil {
		t.Fatalf("DESCRIPTION.md missing: %v", err)
	}
}

func TestCreateModuleRejectsDuplicateBeforeSideEffects(t *testing.T) {
	root, m, _ := newTestManager(t)
	mustCreateModule(t, m, "web", "Web")
	before, _ := os.ReadFile(filepath.Join(root, manifest.DojoFile))

	report, err := m.CreateModule(loadDojo(t, m), ModuleRequest{ID: "web-2", Name: "Web"})
	if !errors.Is(err, manifest.ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
	if len(report.Steps) != 0 {
		t.Fatalf("expected no steps, got %v", report.Lines())
	}
	if _, err := os.Stat(filepath.Join(root, "web-2")); !os.IsNotExist(err) {
		t.Fatalf("directory must not be created, stat err = %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(root, manifest.DojoFile))
	if string(before) != string(after) {
		t.Fatalf("dojo.yml changed on rejected create")
	}
}

func TestCreateModuleRegistersEvenWhenDirectoryExists(t *testing.T) {
	root, m, _ := newTestManager(t)
	if err := os.Mkdir(filepath.Join(root, "crypto"), 0o755); err != nil {
		t.Fatal(err)
	}
	report, err := m.CreateModule(loadDojo(t, m), ModuleRequest{ID: "crypto", Name: "Crypto"})
	if err != nil {
		t.Fatalf("create module: %v", err)
	}
	if !errors.Is(report.Err(), ErrDirectoryAlreadyExists) {
		t.Fatalf("expected ErrDirectoryAlreadyExists step, got %v", report.Err())
	}
	if report.Steps[0].Status != StepFailed {
		t.Fatalf("first step status = %s, want Error", report.Steps[0].Status)
	}
	if _, ok := loadDojo(t, m).Module("crypto"); !ok {
		t.Fatalf("module must still be registered in dojo.yml")
	}
	loadModule(t, m, "crypto")
}

func TestCreateModuleRejectsPathLikeID(t *testing.T) {
	_, m, _ := newTestManager(t)
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		if _, err := m.CreateModule(loadDojo(t, m), ModuleRequest{ID: id, Name: "X"}); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("id %q: expected ErrInvalidRequest, got %v", id, err)
		}
	}
}

func TestDeleteModuleMissingDirectoryIsNoop(t *testing.T) {
	root, m, _ := newTestManager(t)
	mustCreateModule(t, m, "web", "Web")
	if err := os.RemoveAll(filepath.Join(root, "web")); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(filepath.Join(root, manifest.DojoFile))

	report, err := m.DeleteModule(loadDojo(t, m), "web")
	if err != nil {
		t.Fatalf("delete module: %v", err)
	}
	if report.Failed() {
		t.Fatalf("no-op delete must not fail: %v", report.Err())
	}
	after, _ := os.ReadFile(filepath.Join(root, manifest.DojoFile))
	if string(before) != string(after) {
		t.Fatalf("dojo.yml changed on no-op delete")
	}
}

func TestDeleteModuleRemovesOnlyMatchingEntry(t *testing.T) {
	root, m, _ := newTestManager(t)
	mustCreateModule(t, m, "alpha", "Alpha")
	mustCreateModule(t, m, "beta", "Beta")
	mustCreateModule(t, m, "gamma", "Gamma")
	mustCreateChallenge(t, m, "beta", "one", "One")

	report, err := m.DeleteModule(loadDojo(t, m), "beta")
	if err != nil || report.Failed() {
		t.Fatalf("delete module: %v / %v", err, report.Err())
	}
	if _, err := os.Stat(filepath.Join(root, "beta")); !os.IsNotExist(err) {
		t.Fatalf("beta directory must be removed, stat err = %v", err)
	}
	want := []manifest.Entry{{ID: "alpha", Name: "Alpha"}, {ID: "gamma", Name: "Gamma"}}
	if got := loadDojo(t, m).Modules(); !reflect.DeepEqual(got, want) {
		t.Fatalf("modules = %+v, want %+v", got, want)
	}
}

func TestCreateChallengeWritesTemplateFiles(t *testing.T) {
	root, m, _ := newTestManager(t)
	mustCreateModule(t, m, "web", "Web")
	mustCreateChallenge(t, m, "web", "xss", "XSS")

	data, err := os.ReadFile(filepath.Join(root, "web", "xss", VerifyFile))
	if err != nil {
		t.Fatalf("read verify: %v", err)
	}
	if string(data) != VerifyTemplate() {
		t.Fatalf("verify content mismatch:\n%s", data)
	}
	info, err := os.Stat(filepath.Join(root, "web", "xss", VerifyFile))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Fatalf("verify must be executable, mode %v", info.Mode())
	}
	if _, err := os.Stat(filepath.Join(root, "web", "xss", manifest.DescriptionFile)); err != nil {
		t.Fatalf("challenge DESCRIPTION.md missing: %v", err)
	}
	c, ok := loadModule(t, m, "web").Challenge("xss")
	if !ok || c.Name != "XSS" || c.AllowPrivileged {
		t.Fatalf("unexpected challenge record %+v (found %v)", c, ok)
	}
}

func TestVerifyTemplateIsExact(t *testing.T) {
	want := `#!/usr/bin/exec-suid -- /usr/bin/python3.12 -I
import sys
sys.path.append('/challenge')

def print_flag():
    try:
        with open("/flag", "r") as f:
            print(f.read())
    except FileNotFoundError:
        print("Error: Flag file not found.")

# Add your imports and other code below here
`
	if VerifyTemplate() != want {
		t.Fatalf("template drifted:\n%q\nwant\n%q", VerifyTemplate(), want)
	}
}

func TestCreateChallengeRejectsDuplicateName(t *testing.T) {
	_, m, _ := newTestManager(t)
	mustCreateModule(t, m, "web", "Web")
	mustCreateChallenge(t, m, "web", "xss", "XSS")
	_, err := m.CreateChallenge(loadModule(t, m, "web"), ChallengeRequest{ID: "xss-2", Name: "XSS"})
	var dup *manifest.DuplicateError
	if !errors.As(err, &dup) || dup.Field != manifest.CollisionName {
		t.Fatalf("expected name collision, got %v", err)
	}
}

func TestChallengeCreateDeleteRoundTrip(t *testing.T) {
	root, m, fake := newTestManager(t)
	mustCreateModule(t, m, "web", "Web")
	mustCreateChallenge(t, m, "web", "sqli", "SQLi")
	before := loadModule(t, m, "web").Entries()

	mustCreateChallenge(t, m, "web", "xss", "XSS")
	if _, err := m.AddSubmodule(SubmoduleRequest{ModuleID: "web", ChallengeID: "xss", URL: "https://example.com/helper.git"}); err != nil {
		t.Fatalf("add submodule: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "web", "xss", "helper")); err != nil {
		t.Fatalf("submodule directory missing: %v", err)
	}

	report, err := m.DeleteChallenge(loadModule(t, m, "web"), "xss")
	if err != nil {
		t.Fatalf("delete challenge: %v", err)
	}
	if report.Failed() {
		t.Fatalf("delete challenge failed: %v", report.Err())
	}
	if got := loadModule(t, m, "web").Entries(); !reflect.DeepEqual(got, before) {
		t.Fatalf("challenges = %+v, want %+v", got, before)
	}
	if _, err := os.Stat(filepath.Join(root, "web", "xss")); !os.IsNotExist(err) {
		t.Fatalf("challenge directory must be removed, stat err = %v", err)
	}
	if !fake.called("rm --cached web/xss/helper") || !fake.called("remove-section web/xss/helper") {
		t.Fatalf("submodule teardown not delegated to git: %v", fake.calls)
	}
}

func TestDeleteChallengeWithoutDirectoryStillUnregisters(t *testing.T) {
	root, m, fake := newTestManager(t)
	mustCreateModule(t, m, "web", "Web")
	mustCreateChallenge(t, m, "web", "xss", "XSS")
	if err := os.RemoveAll(filepath.Join(root, "web", "xss")); err != nil {
		t.Fatal(err)
	}
	report, err := m.DeleteChallenge(loadModule(t, m, "web"), "xss")
	if err != nil {
		t.Fatalf("delete challenge: %v", err)
	}
	last := report.Steps[len(report.Steps)-1]
	if last.Status != StepSkipped {
		t.Fatalf("expected skipped directory step, got %s", last.Line())
	}
	if got := len(loadModule(t, m, "web").Entries()); got != 0 {
		t.Fatalf("expected record removed from module.yml, %d left", got)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("no git calls expected, got %v", fake.calls)
	}
}

func TestSubmodulesEnumeratePerChallenge(t *testing.T) {
	root := t.TempDir()
	fake := newFakeVCS(root)
	fake.submodules = []vcs.Submodule{
		{Key: "moduleA/chalX/sub1", Path: "moduleA/chalX/sub1"},
		{Key: "moduleB/chalY/sub2", Path: "moduleB/chalY/sub2"},
	}
	m := New(root, fake)
	got, err := m.Submodules("moduleA", "chalX")
	if err != nil || !reflect.DeepEqual(got, []string{"sub1"}) {
		t.Fatalf("moduleA/chalX = %v, %v; want [sub1]", got, err)
	}
	got, err = m.Submodules("moduleB", "chalY")
	if err != nil || !reflect.DeepEqual(got, []string{"sub2"}) {
		t.Fatalf("moduleB/chalY = %v, %v; want [sub2]", got, err)
	}
}

func TestSubmodulesWithoutRegistryIsEmpty(t *testing.T) {
	root := t.TempDir()
	fake := newFakeVCS(root)
	fake.noRegistry = true
	got, err := New(root, fake).Submodules("a", "b")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if !errors.Is(err, vcs.ErrRegistryUnavailable) {
		t.Fatalf("expected diagnostic ErrRegistryUnavailable, got %v", err)
	}
}

func TestDeleteAllSubmodulesEmptiesEnumeration(t *testing.T) {
	_, m, _ := newTestManager(t)
	mustCreateModule(t, m, "web", "Web")
	mustCreateChallenge(t, m, "web", "xss", "XSS")
	for _, url := range []string{"https://example.com/one.git", "https://example.com/two"} {
		if _, err := m.AddSubmodule(SubmoduleRequest{ModuleID: "web", ChallengeID: "xss", URL: url}); err != nil {
			t.Fatalf("add %s: %v", url, err)
		}
	}
	names, _ := m.Submodules("web", "xss")
	if !reflect.DeepEqual(names, []string{"one", "two"}) {
		t.Fatalf("submodules = %v, want [one two]", names)
	}
	report, err := m.DeleteSubmodules("web", "xss", AllSubmodules())
	if err != nil || report.Failed() {
		t.Fatalf("delete all: %v / %v", err, report.Err())
	}
	names, _ = m.Submodules("web", "xss")
	if len(names) != 0 {
		t.Fatalf("expected no submodules left, got %v", names)
	}
}

func TestDeleteSubmoduleStepsAreIndependent(t *testing.T) {
	root, m, fake := newTestManager(t)
	mustCreateModule(t, m, "web", "Web")
	mustCreateChallenge(t, m, "web", "xss", "XSS")
	if _, err := m.AddSubmodule(SubmoduleRequest{ModuleID: "web", ChallengeID: "xss", URL: "https://example.com/helper", Name: "helper"}); err != nil {
		t.Fatal(err)
	}
	fake.fail["rm --cached web/xss/helper"] = &vcs.ToolError{Args: []string{"rm"}, Err: errors.New("exit status 128")}

	report, err := m.DeleteSubmodules("web", "xss", NamedSubmodule("helper"))
	if err != nil {
		t.Fatalf("delete submodule: %v", err)
	}
	if !errors.Is(report.Err(), vcs.ErrExternalToolFailure) {
		t.Fatalf("expected ExternalToolFailure in report, got %v", report.Err())
	}
	if _, err := os.Stat(filepath.Join(root, "web", "xss", "helper")); !os.IsNotExist(err) {
		t.Fatalf("directory removal must still happen, stat err = %v", err)
	}
	if !fake.called("remove-section web/xss/helper") || !fake.called("add .gitmodules") {
		t.Fatalf("registry cleanup must still happen: %v", fake.calls)
	}
}

func TestDeleteSubmoduleErrors(t *testing.T) {
	_, m, fake := newTestManager(t)
	mustCreateModule(t, m, "web", "Web")
	mustCreateChallenge(t, m, "web", "xss", "XSS")

	if _, err := m.DeleteSubmodules("web", "nope", AllSubmodules()); !errors.Is(err, ErrChallengePathNotFound) {
		t.Fatalf("expected ErrChallengePathNotFound, got %v", err)
	}
	report, err := m.DeleteSubmodules("web", "xss", NamedSubmodule("ghost"))
	if err != nil {
		t.Fatalf("missing target must be reported per step, got %v", err)
	}
	if !errors.Is(report.Err(), ErrSubmoduleNotFound) {
		t.Fatalf("expected ErrSubmoduleNotFound, got %v", report.Err())
	}
	if len(fake.calls) != 0 {
		t.Fatalf("no git calls expected for a missing target, got %v", fake.calls)
	}
}

func TestAddSubmoduleOutcomes(t *testing.T) {
	root, m, fake := newTestManager(t)
	mustCreateModule(t, m, "web", "Web")
	mustCreateChallenge(t, m, "web", "xss", "XSS")

	if _, err := m.AddSubmodule(SubmoduleRequest{ModuleID: "web", ChallengeID: "nope", URL: "u/helper"}); !errors.Is(err, ErrChallengePathNotFound) {
		t.Fatalf("expected ErrChallengePathNotFound, got %v", err)
	}

	if err := os.Mkdir(filepath.Join(root, "web", "xss", "taken"), 0o755); err != nil {
		t.Fatal(err)
	}
	report, err := m.AddSubmodule(SubmoduleRequest{ModuleID: "web", ChallengeID: "xss", URL: "https://example.com/x", Name: "taken"})
	if err != nil || len(report.Steps) != 1 || report.Steps[0].Status != StepSkipped {
		t.Fatalf("expected skipped step, got %v / %v", err, report.Lines())
	}

	fake.fail["add web/xss/broken"] = &vcs.ToolError{Args: []string{"submodule", "add"}, Err: errors.New("exit status 128")}
	_, err = m.AddSubmodule(SubmoduleRequest{ModuleID: "web", ChallengeID: "xss", URL: "https://example.com/broken"})
	if !errors.Is(err, ErrSubmoduleAddFailed) || !errors.Is(err, vcs.ErrExternalToolFailure) {
		t.Fatalf("expected ErrSubmoduleAddFailed wrapping tool failure, got %v", err)
	}
}

func TestRecorderSeesReports(t *testing.T) {
	root := t.TempDir()
	rec := &memoryRecorder{}
	m := New(root, newFakeVCS(root), WithRecorder(rec))
	if _, err := m.Initialize(DojoRequest{ID: "d", Name: "D"}); err != nil {
		t.Fatal(err)
	}
	if len(rec.reports) != 1 || rec.reports[0].Operation != "initialize dojo" {
		t.Fatalf("unexpected recorded reports %+v", rec.reports)
	}
}

func TestMissingChallengePathIsRecorded(t *testing.T) {
	root := t.TempDir()
	rec := &memoryRecorder{}
	m := New(root, newFakeVCS(root), WithRecorder(rec))
	if _, err := m.Initialize(DojoRequest{ID: "d", Name: "D"}); err != nil {
		t.Fatal(err)
	}
	report, err := m.DeleteSubmodules("web", "nope", AllSubmodules())
	if !errors.Is(err, ErrChallengePathNotFound) {
		t.Fatalf("expected ErrChallengePathNotFound, got %v", err)
	}
	if !report.Failed() {
		t.Fatalf("expected a failed step in the report")
	}
	if len(rec.reports) != 2 || rec.reports[1].Operation != "delete submodules" || !rec.reports[1].Failed() {
		t.Fatalf("expected the failed deletion to be recorded, got %+v", rec.reports)
	}
}

func TestOverview(t *testing.T) {
	_, m, _ := newTestManager(t)
	mustCreateModule(t, m, "web", "Web")
	mustCreateChallenge(t, m, "web", "xss", "XSS")
	if _, err := m.AddSubmodule(SubmoduleRequest{ModuleID: "web", ChallengeID: "xss", URL: "https://example.com/helper"}); err != nil {
		t.Fatal(err)
	}
	ov, err := m.Overview()
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(ov.Modules) != 1 || len(ov.Modules[0].Challenges) != 1 {
		t.Fatalf("unexpected overview %+v", ov)
	}
	if got := ov.Modules[0].Challenges[0].Submodules; !reflect.DeepEqual(got, []string{"helper"}) {
		t.Fatalf("submodules = %v, want [helper]", got)
	}
}

func TestSlugifyAndSubmoduleName(t *testing.T) {
	if got := Slugify("Binary Exploitation"); got != "binary-exploitation" {
		t.Fatalf("Slugify = %q", got)
	}
	cases := map[string]string{
		"https://github.com/pwncollege/helper.git": "helper",
		"git@github.com:pwncollege/tools":          "tools",
		"https://example.com/repo/":                "repo",
	}
	for url, want := range cases {
		if got := SubmoduleNameFromURL(url); got != want {
			t.Fatalf("SubmoduleNameFromURL(%q) = %q, want %q", url, got, want)
		}
	}
}
