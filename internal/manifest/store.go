package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// File names that make up a dojo repository.
const (
	DojoFile        = "dojo.yml"
	ModuleFile      = "module.yml"
	DescriptionFile = "DESCRIPTION.md"
)

// Store loads and persists manifest documents. It holds no documents
// itself: callers own what Load returns and hand it back to Save.
type Store struct {
	log zerolog.Logger
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithLogger attaches a logger for load/save diagnostics.
func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore builds a store.
func NewStore(opts ...StoreOption) *Store {
	store := &Store{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Load reads and parses the manifest at path.
func (s *Store) Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w: %w", path, ErrManifestMissingOrInvalid, err)
	}
	doc, err := parseDocument(path, data)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("path", path).Msg("manifest loaded")
	return doc, nil
}

// Save overwrites the document's file with its full current contents.
// The write is not atomic.
func (s *Store) Save(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("manifest: nil document")
	}
	data, err := doc.encode()
	if err != nil {
		return fmt.Errorf("manifest: encode %s: %w", doc.path, err)
	}
	if err := os.WriteFile(doc.path, data, 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", doc.path, err)
	}
	s.log.Debug().Str("path", doc.path).Msg("manifest saved")
	return nil
}

// LoadDojo loads dojo.yml from the repository root.
func (s *Store) LoadDojo(root string) (*Dojo, error) {
	doc, err := s.Load(filepath.Join(root, DojoFile))
	if err != nil {
		return nil, err
	}
	return &Dojo{doc: doc}, nil
}

// LoadModule loads <root>/<id>/module.yml.
func (s *Store) LoadModule(root, id string) (*Module, error) {
	doc, err := s.Load(filepath.Join(root, id, ModuleFile))
	if err != nil {
		return nil, err
	}
	return &Module{id: id, doc: doc}, nil
}

func marshalNode(node *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
