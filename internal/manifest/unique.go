package manifest

import (
	"errors"
	"fmt"
)

// ErrDuplicateEntry is matched by every uniqueness violation.
var ErrDuplicateEntry = errors.New("duplicate entry")

// Entry is the {id, name} pair every listed record carries.
type Entry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Collision names the field a duplicate matched on.
type Collision int

const (
	CollisionBoth Collision = iota
	CollisionID
	CollisionName
)

func (c Collision) String() string {
	switch c {
	case CollisionID:
		return "id"
	case CollisionName:
		return "name"
	default:
		return "id and name"
	}
}

// DuplicateError reports which field of a candidate collided with an
// existing entry.
type DuplicateError struct {
	Kind      string
	Candidate Entry
	Field     Collision
}

func (e *DuplicateError) Error() string {
	switch e.Field {
	case CollisionID:
		return fmt.Sprintf("a %s with ID '%s' already exists", e.Kind, e.Candidate.ID)
	case CollisionName:
		return fmt.Sprintf("a %s with name '%s' already exists", e.Kind, e.Candidate.Name)
	default:
		return fmt.Sprintf("a %s with ID '%s' and name '%s' already exists", e.Kind, e.Candidate.ID, e.Candidate.Name)
	}
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateEntry
}

// CheckUnique rejects candidate when an existing entry matches it on id or
// name. An exact match anywhere in the list wins over a partial one; partial
// matches are reported for the first entry that hits, id before name.
func CheckUnique(kind string, existing []Entry, candidate Entry) error {
	for _, item := range existing {
		if item == candidate {
			return &DuplicateError{Kind: kind, Candidate: candidate, Field: CollisionBoth}
		}
	}
	for _, item := range existing {
		if item.ID == candidate.ID {
			return &DuplicateError{Kind: kind, Candidate: candidate, Field: CollisionID}
		}
		if item.Name == candidate.Name {
			return &DuplicateError{Kind: kind, Candidate: candidate, Field: CollisionName}
		}
	}
	return nil
}
