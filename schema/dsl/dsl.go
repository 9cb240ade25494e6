package dsl

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/schema"
)

// Document is the top-level YAML layout.
type Document struct {
	Enums   map[string]map[string]uint64 `yaml:"enums"`
	Schemas []*SchemaDef                 `yaml:"schemas"`
}

// SchemaDef declares one schema.
type SchemaDef struct {
	Name    string      `yaml:"name"`
	Extends string      `yaml:"extends"`
	Fields  []*FieldDef `yaml:"fields"`
}

// FieldDef declares one field. Which keys apply depends on Type.
type FieldDef struct {
	Default     any        `yaml:"default"`
	Element     *FieldDef  `yaml:"element"`
	Until       *CanaryDef `yaml:"until"`
	Count       *int       `yaml:"count"`
	AtOffset    *int64     `yaml:"at_offset"`
	Size        *int       `yaml:"size"`
	DefaultCase *FieldDef  `yaml:"default_case"`
	Name        string     `yaml:"name"`
	Type        string     `yaml:"type"`
	Format      string     `yaml:"format"`
	Endian      string     `yaml:"endian"`
	SizeFrom    string     `yaml:"size_from"`
	CountFrom   string     `yaml:"count_from"`
	Equals      string     `yaml:"equals"`
	At          string     `yaml:"at"`
	Enum        string     `yaml:"enum"`
	Ref         string     `yaml:"ref"`
	Key         string     `yaml:"key"`
	Algorithm   string     `yaml:"algorithm"`
	Compliance  []string   `yaml:"compliance"`
	Over        []string   `yaml:"over"`
	Cases       []*CaseDef `yaml:"cases"`
	Magic       bool       `yaml:"magic"`
}

// CaseDef is one select table entry: a reference to a schema or an
// inline field.
type CaseDef struct {
	Value any       `yaml:"value"`
	Field *FieldDef `yaml:"field"`
	Ref   string    `yaml:"ref"`
}

// CanaryDef ends an array at the first element whose value (or the value
// at Path inside the element) equals Equals.
type CanaryDef struct {
	Equals any    `yaml:"equals"`
	Path   string `yaml:"path"`
}

// Registry holds compiled schemas by name.
type Registry struct {
	schemas map[string]*schema.Schema
	enums   map[string]*schema.Enum
	defs    map[string]*SchemaDef
	active  map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*schema.Schema),
		enums:   make(map[string]*schema.Enum),
		defs:    make(map[string]*SchemaDef),
		active:  make(map[string]bool),
	}
}

// Parse compiles a single YAML document into a new registry.
func Parse(data []byte) (*Registry, error) {
	r := NewRegistry()
	if err := r.Add(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Load compiles the YAML file at path into a new registry.
func Load(path string) (*Registry, error) {
	r := NewRegistry()
	if err := r.AddFile(path); err != nil {
		return nil, err
	}
	return r, nil
}

// AddFile compiles the YAML file at path into r.
func (r *Registry) AddFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Load("read "+path, err)
	}
	if err := r.Add(data); err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindOf(err), err, path)
	}
	return nil
}

// AddDir compiles every .yaml and .yml file in dir, in name order.
func (r *Registry) AddDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Load("read "+dir, err)
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if err := r.AddFile(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Add compiles one YAML document into r. Schemas may reference each other
// regardless of declaration order, and may reference schemas added
// earlier.
func (r *Registry) Add(data []byte) error {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Load("parse yaml", err)
	}
	for name, values := range doc.Enums {
		if _, dup := r.enums[name]; dup {
			return errors.Load(fmt.Sprintf("duplicate enum %q", name), nil)
		}
		r.enums[name] = schema.NewEnum(name, values)
	}
	pending := make([]string, 0, len(doc.Schemas))
	for _, def := range doc.Schemas {
		if def.Name == "" {
			return errors.Load("schema without name", nil)
		}
		if _, dup := r.defs[def.Name]; dup {
			return errors.Load(fmt.Sprintf("duplicate schema %q", def.Name), nil)
		}
		r.defs[def.Name] = def
		pending = append(pending, def.Name)
	}
	for _, name := range pending {
		if _, err := r.compile(name); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the compiled schema called name.
func (r *Registry) Lookup(name string) (*schema.Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Enum returns the enum called name.
func (r *Registry) Enum(name string) (*schema.Enum, bool) {
	e, ok := r.enums[name]
	return e, ok
}

// Names returns the compiled schema names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
