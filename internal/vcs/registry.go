package vcs

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// RegistryFile is git's submodule registry at the repository root.
const RegistryFile = ".gitmodules"

// ErrRegistryUnavailable is returned when .gitmodules is absent or cannot
// be parsed.
var ErrRegistryUnavailable = errors.New("submodule registry unavailable")

// Submodule is one `[submodule "<key>"]` section.
type Submodule struct {
	Key  string
	Path string
	URL  string
}

// Registry is a parsed .gitmodules file.
type Registry struct {
	Submodules []Submodule
}

// ReadRegistry parses the .gitmodules file at path.
func ReadRegistry(path string) (Registry, error) {
	if _, err := os.Stat(path); err != nil {
		return Registry{}, fmt.Errorf("vcs: %s: %w: %w", path, ErrRegistryUnavailable, err)
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return Registry{}, fmt.Errorf("vcs: parse %s: %w: %w", path, ErrRegistryUnavailable, err)
	}
	var reg Registry
	for _, section := range cfg.Sections() {
		key, ok := submoduleKey(section.Name())
		if !ok {
			continue
		}
		sm := Submodule{Key: key}
		if section.HasKey("path") {
			sm.Path = section.Key("path").String()
		}
		if section.HasKey("url") {
			sm.URL = section.Key("url").String()
		}
		reg.Submodules = append(reg.Submodules, sm)
	}
	return reg, nil
}

// Under returns the submodules whose section key lies below prefix.
func (r Registry) Under(prefix string) []Submodule {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	var out []Submodule
	for _, sm := range r.Submodules {
		if strings.HasPrefix(sm.Key, prefix) {
			out = append(out, sm)
		}
	}
	return out
}

// submoduleKey extracts <key> from a `submodule "<key>"` section name.
func submoduleKey(section string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(section), "submodule")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) >= 2 && strings.HasPrefix(rest, `"`) && strings.HasSuffix(rest, `"`) {
		rest = rest[1 : len(rest)-1]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
