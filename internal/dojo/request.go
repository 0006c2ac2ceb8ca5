package dojo

import (
	"fmt"
	"path"
	"strings"

	"github.com/kingrea/dojo-manager/internal/manifest"
)

// DojoTypes are the categories offered when initializing a dojo. Any other
// value is accepted as a custom type.
var DojoTypes = []string{"empty", "base", "class", "event"}

// DojoRequest describes a new root manifest.
type DojoRequest struct {
	ID   string
	Name string
	// Type is lower-cased; "" and "empty" leave the key out of dojo.yml.
	Type string
}

// ModuleRequest describes a new module.
type ModuleRequest struct {
	ID   string
	Name string
}

// ChallengeRequest describes a new challenge inside a module.
type ChallengeRequest struct {
	ID              string
	Name            string
	AllowPrivileged bool
	Extra           []manifest.Field
}

// SubmoduleRequest describes a submodule to add under a challenge.
type SubmoduleRequest struct {
	ModuleID    string
	ChallengeID string
	URL         string
	// Name defaults to the last segment of URL.
	Name string
}

// Selector picks which submodules of a challenge to delete.
type Selector struct {
	name string
	all  bool
}

// AllSubmodules selects every submodule registered under the challenge.
func AllSubmodules() Selector {
	return Selector{all: true}
}

// NamedSubmodule selects a single submodule by directory name.
func NamedSubmodule(name string) Selector {
	return Selector{name: name}
}

func (s Selector) All() bool    { return s.all }
func (s Selector) Name() string { return s.name }

func (s Selector) String() string {
	if s.all {
		return "all"
	}
	return s.name
}

// Slugify derives an id from a display name: lower-cased, spaces replaced
// by dashes.
func Slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// SubmoduleNameFromURL returns the default directory name for a submodule.
func SubmoduleNameFromURL(url string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(url), "/")
	if idx := strings.LastIndexAny(trimmed, "/:"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return strings.TrimSuffix(trimmed, ".git")
}

func (r DojoRequest) normalized() (DojoRequest, error) {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	if r.Type == "empty" {
		r.Type = ""
	}
	if r.ID == "" || r.Name == "" {
		return r, fmt.Errorf("dojo: id and name are required: %w", ErrInvalidRequest)
	}
	return r, nil
}

func (r ModuleRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("dojo: module name is required: %w", ErrInvalidRequest)
	}
	return validateSegment("module id", r.ID)
}

func (r ChallengeRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("dojo: challenge name is required: %w", ErrInvalidRequest)
	}
	return validateSegment("challenge id", r.ID)
}

func (r SubmoduleRequest) normalized() (SubmoduleRequest, error) {
	r.URL = strings.TrimSpace(r.URL)
	r.Name = strings.TrimSpace(r.Name)
	if r.URL == "" {
		return r, fmt.Errorf("dojo: submodule url is required: %w", ErrInvalidRequest)
	}
	if r.Name == "" {
		r.Name = SubmoduleNameFromURL(r.URL)
	}
	if err := validateSegment("module id", r.ModuleID); err != nil {
		return r, err
	}
	if err := validateSegment("challenge id", r.ChallengeID); err != nil {
		return r, err
	}
	return r, validateSegment("submodule name", r.Name)
}

// ValidateID reports whether id can name a module, challenge or submodule
// directory.
func ValidateID(id string) error {
	return validateSegment("id", id)
}

// validateSegment requires value to name exactly one directory.
func validateSegment(label, value string) error {
	switch {
	case value == "":
		return fmt.Errorf("dojo: %s is required: %w", label, ErrInvalidRequest)
	case value == "." || value == "..":
		return fmt.Errorf("dojo: %s %q is not a directory name: %w", label, value, ErrInvalidRequest)
	case strings.ContainsAny(value, `/\`) || path.Clean(value) != value:
		return fmt.Errorf("dojo: %s %q must be a single path segment: %w", label, value, ErrInvalidRequest)
	}
	return nil
}
