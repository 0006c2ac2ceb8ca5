// internal/manifest/document.go
//
// A Document is one YAML manifest held as a yaml.v3 node tree. Working on
// nodes instead of structs keeps key order and any keys this tool does not
// know about intact across load/save.

package manifest

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrManifestMissingOrInvalid is returned when a manifest file is absent,
// cannot be parsed, or parses to an empty document.
var ErrManifestMissingOrInvalid = errors.New("manifest missing or invalid")

// Document is an in-memory manifest bound to the file it came from.
type Document struct {
	path string
	root *yaml.Node
}

// NewDocument returns an empty mapping document that will be saved to path.
func NewDocument(path string) *Document {
	return &Document{
		path: path,
		root: &yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		},
	}
}

func parseDocument(path string, data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w: %w", path, ErrManifestMissingOrInvalid, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("manifest: %s is empty: %w", path, ErrManifestMissingOrInvalid)
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("manifest: %s is not a mapping: %w", path, ErrManifestMissingOrInvalid)
	}
	return &Document{path: path, root: &root}, nil
}

// Path returns the file backing this document.
func (d *Document) Path() string {
	return d.path
}

func (d *Document) mapping() *yaml.Node {
	return d.root.Content[0]
}

// Lookup returns the value node stored under key, or nil.
func (d *Document) Lookup(key string) *yaml.Node {
	return lookup(d.mapping(), key)
}

// String returns the scalar value under key, or "" when absent.
func (d *Document) String(key string) string {
	node := d.Lookup(key)
	if node == nil || node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return ""
	}
	return node.Value
}

// Set replaces the value under key, appending the key when it is new.
func (d *Document) Set(key string, value any) error {
	node, err := encodeNode(value)
	if err != nil {
		return fmt.Errorf("manifest: encode %s: %w", key, err)
	}
	m := d.mapping()
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = node
			return nil
		}
	}
	m.Content = append(m.Content, scalar(key), node)
	return nil
}

// Sequence returns the sequence under key, creating an empty one when the
// key is absent or null.
func (d *Document) Sequence(key string) (*yaml.Node, error) {
	node := d.Lookup(key)
	if node == nil || (node.Kind == yaml.ScalarNode && node.Tag == "!!null") {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		m := d.mapping()
		if node == nil {
			m.Content = append(m.Content, scalar(key), seq)
		} else {
			for i := 0; i+1 < len(m.Content); i += 2 {
				if m.Content[i].Value == key {
					m.Content[i+1] = seq
				}
			}
		}
		return seq, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("manifest: %s in %s is not a sequence", key, d.path)
	}
	return node, nil
}

// Append adds item to the end of the sequence under key.
func (d *Document) Append(key string, item *yaml.Node) error {
	seq, err := d.Sequence(key)
	if err != nil {
		return err
	}
	// `[]` parses as a flow sequence; block style keeps appended maps readable.
	seq.Style &^= yaml.FlowStyle
	seq.Content = append(seq.Content, item)
	return nil
}

// RemoveWhere drops every item of the sequence under key for which match
// returns true and reports how many were removed. Remaining items keep their
// order.
func (d *Document) RemoveWhere(key string, match func(*yaml.Node) bool) int {
	seq := d.Lookup(key)
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return 0
	}
	kept := seq.Content[:0]
	removed := 0
	for _, item := range seq.Content {
		if match(item) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	seq.Content = kept
	return removed
}

// Items returns the item nodes of the sequence under key.
func (d *Document) Items(key string) []*yaml.Node {
	seq := d.Lookup(key)
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nil
	}
	return seq.Content
}

func (d *Document) encode() ([]byte, error) {
	return marshalNode(d.root)
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalarField(m *yaml.Node, key string) string {
	node := lookup(m, key)
	if node == nil || node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return ""
	}
	return node.Value
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func encodeNode(value any) (*yaml.Node, error) {
	if node, ok := value.(*yaml.Node); ok {
		return node, nil
	}
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return nil, err
	}
	return &node, nil
}
