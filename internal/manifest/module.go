package manifest

import (
	"fmt"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const challengesKey = "challenges"

// Module is a module manifest (<id>/module.yml). The id is the directory
// name and is not stored in the file.
type Module struct {
	id  string
	doc *Document
}

// NewModule builds a fresh manifest with an empty challenge list.
func NewModule(root, id, name string) (*Module, error) {
	doc := NewDocument(filepath.Join(root, id, ModuleFile))
	if err := doc.Set("name", name); err != nil {
		return nil, err
	}
	if _, err := doc.Sequence(challengesKey); err != nil {
		return nil, err
	}
	return &Module{id: id, doc: doc}, nil
}

// Document exposes the underlying document for saving.
func (m *Module) Document() *Document { return m.doc }

func (m *Module) ID() string   { return m.id }
func (m *Module) Name() string { return m.doc.String("name") }

// Entries lists the {id, name} of every challenge in order.
func (m *Module) Entries() []Entry {
	return entries(m.doc.Items(challengesKey))
}

// Challenges decodes every challenge record in order.
func (m *Module) Challenges() ([]Challenge, error) {
	items := m.doc.Items(challengesKey)
	out := make([]Challenge, 0, len(items))
	for i, item := range items {
		challenge, err := challengeFromNode(item)
		if err != nil {
			return nil, fmt.Errorf("manifest: %s challenges[%d]: %w", m.doc.path, i, err)
		}
		out = append(out, challenge)
	}
	return out, nil
}

// Challenge returns the record with the given id.
func (m *Module) Challenge(id string) (Challenge, bool) {
	for _, item := range m.doc.Items(challengesKey) {
		if scalarField(item, "id") != id {
			continue
		}
		challenge, err := challengeFromNode(item)
		if err != nil {
			return Challenge{}, false
		}
		return challenge, true
	}
	return Challenge{}, false
}

// AddChallenge appends a record, creating the challenge list if needed.
func (m *Module) AddChallenge(c Challenge) error {
	node, err := c.node()
	if err != nil {
		return err
	}
	return m.doc.Append(challengesKey, node)
}

// RemoveChallenge drops every record with the given id.
func (m *Module) RemoveChallenge(id string) bool {
	return m.doc.RemoveWhere(challengesKey, matchID(id)) > 0
}

// Field is one caller-supplied challenge key, kept in insertion order.
type Field struct {
	Key   string
	Value any
}

// Challenge is one record of a module's challenge list.
type Challenge struct {
	ID              string
	Name            string
	AllowPrivileged bool
	Extra           []Field
}

// Entry returns the {id, name} pair used for uniqueness checks.
func (c Challenge) Entry() Entry {
	return Entry{ID: c.ID, Name: c.Name}
}

var reservedChallengeKeys = map[string]struct{}{
	"id":               {},
	"name":             {},
	"allow_privileged": {},
}

func (c Challenge) node() (*yaml.Node, error) {
	id, err := encodeNode(c.ID)
	if err != nil {
		return nil, fmt.Errorf("manifest: encode challenge id: %w", err)
	}
	name, err := encodeNode(c.Name)
	if err != nil {
		return nil, fmt.Errorf("manifest: encode challenge name: %w", err)
	}
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content,
		scalar("id"), id,
		scalar("name"), name,
		scalar("allow_privileged"), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(c.AllowPrivileged)},
	)
	seen := map[string]struct{}{}
	for _, field := range c.Extra {
		if _, ok := reservedChallengeKeys[field.Key]; ok {
			return nil, fmt.Errorf("manifest: challenge field %q is reserved", field.Key)
		}
		if _, ok := seen[field.Key]; ok {
			return nil, fmt.Errorf("manifest: challenge field %q given twice", field.Key)
		}
		seen[field.Key] = struct{}{}
		value, err := encodeNode(field.Value)
		if err != nil {
			return nil, fmt.Errorf("manifest: encode challenge field %q: %w", field.Key, err)
		}
		m.Content = append(m.Content, scalar(field.Key), value)
	}
	return m, nil
}

func challengeFromNode(n *yaml.Node) (Challenge, error) {
	if n.Kind != yaml.MappingNode {
		return Challenge{}, fmt.Errorf("challenge is not a mapping")
	}
	var c Challenge
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i].Value, n.Content[i+1]
		switch key {
		case "id":
			c.ID = value.Value
		case "name":
			c.Name = value.Value
		case "allow_privileged":
			if err := value.Decode(&c.AllowPrivileged); err != nil {
				return Challenge{}, fmt.Errorf("allow_privileged: %w", err)
			}
		default:
			var decoded any
			if err := value.Decode(&decoded); err != nil {
				return Challenge{}, fmt.Errorf("%s: %w", key, err)
			}
			c.Extra = append(c.Extra, Field{Key: key, Value: decoded})
		}
	}
	return c, nil
}
