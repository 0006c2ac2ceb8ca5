package manifest

import (
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const modulesKey = "modules"

// Dojo is the root manifest (dojo.yml).
type Dojo struct {
	doc *Document
}

// NewDojo builds a fresh root manifest for the repository at root. An empty
// dojoType leaves the `type` key out.
func NewDojo(root, id, name, dojoType string) (*Dojo, error) {
	doc := NewDocument(filepath.Join(root, DojoFile))
	if err := doc.Set("id", id); err != nil {
		return nil, err
	}
	if err := doc.Set("name", name); err != nil {
		return nil, err
	}
	if dojoType != "" {
		if err := doc.Set("type", dojoType); err != nil {
			return nil, err
		}
	}
	if _, err := doc.Sequence(modulesKey); err != nil {
		return nil, err
	}
	return &Dojo{doc: doc}, nil
}

// Document exposes the underlying document for saving.
func (d *Dojo) Document() *Document { return d.doc }

func (d *Dojo) ID() string   { return d.doc.String("id") }
func (d *Dojo) Name() string { return d.doc.String("name") }
func (d *Dojo) Type() string { return d.doc.String("type") }

// Modules lists the module summaries in declaration order.
func (d *Dojo) Modules() []Entry {
	return entries(d.doc.Items(modulesKey))
}

// Module returns the summary with the given id.
func (d *Dojo) Module(id string) (Entry, bool) {
	for _, entry := range d.Modules() {
		if entry.ID == id {
			return entry, true
		}
	}
	return Entry{}, false
}

// AddModule appends a summary to the module list.
func (d *Dojo) AddModule(entry Entry) error {
	node, err := encodeNode(entry)
	if err != nil {
		return err
	}
	return d.doc.Append(modulesKey, node)
}

// RemoveModule drops every summary with the given id.
func (d *Dojo) RemoveModule(id string) bool {
	return d.doc.RemoveWhere(modulesKey, matchID(id)) > 0
}

func entries(items []*yaml.Node) []Entry {
	out := make([]Entry, 0, len(items))
	for _, item := range items {
		out = append(out, Entry{ID: scalarField(item, "id"), Name: scalarField(item, "name")})
	}
	return out
}

func matchID(id string) func(*yaml.Node) bool {
	return func(item *yaml.Node) bool {
		return scalarField(item, "id") == id
	}
}
