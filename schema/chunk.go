package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/stream"
	"go.uber.org/zap"
)

// Schema is an ordered list of field descriptors. A Chunk is one
// instantiation of a Schema.
type Schema struct {
	base     *Schema
	validate func(*Chunk) bool
	order    func(*Chunk) ([]string, error)
	name     string
	specs    []FieldSpec
}

// Define declares a schema. Duplicate or empty field names panic.
func Define(name string, specs ...FieldSpec) *Schema {
	s := &Schema{name: name}
	for _, spec := range specs {
		s.add(spec, false)
	}
	return s
}

func (s *Schema) add(spec FieldSpec, override bool) {
	if spec.name == "" || strings.Contains(spec.name, ".") {
		mustSchema(errors.Schema(fmt.Sprintf("invalid field name %q", spec.name)), s.name)
	}
	for i, existing := range s.specs {
		if existing.name != spec.name {
			continue
		}
		if !override {
			mustSchema(errors.Schema(fmt.Sprintf("duplicate field %q", spec.name)), s.name)
		}
		s.specs[i] = spec
		return
	}
	s.specs = append(s.specs, spec)
}

// Extend derives a schema whose fields are s's followed by specs. A spec
// that reuses a field name of s replaces that field in place. Hooks are
// inherited.
func (s *Schema) Extend(name string, specs ...FieldSpec) *Schema {
	d := &Schema{
		name:     name,
		base:     s,
		validate: s.validate,
		order:    s.order,
		specs:    append([]FieldSpec(nil), s.specs...),
	}
	own := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if own[spec.name] {
			mustSchema(errors.Schema(fmt.Sprintf("duplicate field %q", spec.name)), name)
		}
		own[spec.name] = true
		d.add(spec, true)
	}
	return d
}

// WithValidate installs a hook run after every unpack. A false result is
// a magic violation.
func (s *Schema) WithValidate(fn func(*Chunk) bool) *Schema {
	s.validate = fn
	return s
}

// WithOrder installs a hook returning the names of the fields to lay
// out, in order. It may only read ancestors that are already unpacked.
func (s *Schema) WithOrder(fn func(*Chunk) ([]string, error)) *Schema {
	s.order = fn
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Base returns the schema s extends, or nil.
func (s *Schema) Base() *Schema { return s.base }

// Is reports whether s is named name or extends a schema named name.
func (s *Schema) Is(name string) bool {
	for c := s; c != nil; c = c.base {
		if c.name == name {
			return true
		}
	}
	return false
}

// Specs returns the field descriptors in declaration order.
func (s *Schema) Specs() []FieldSpec {
	return append([]FieldSpec(nil), s.specs...)
}

// FieldNames returns the declared field names.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.specs))
	for i, spec := range s.specs {
		out[i] = spec.name
	}
	return out
}

// New instantiates a root chunk holding default values and lays it out
// from offset 0.
func (s *Schema) New(opts ...Option) (*Chunk, error) {
	o := applyOptions(opts)
	c := s.instance(s.name)
	c.compliance = o.Compliance
	if err := flush(c); err != nil {
		return nil, err
	}
	if _, err := c.Relayout(o.Offset); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNew is like New but panics on error.
func (s *Schema) MustNew(opts ...Option) *Chunk {
	c, err := s.New(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// instance builds a chunk rooted in its own tree. Pending write-backs are
// left for the caller to flush once the chunk sits in its final tree.
func (s *Schema) instance(name string) *Chunk {
	c := &Chunk{schema: s, index: make(map[string]int, len(s.specs))}
	c.init(c, name, nil)
	for _, spec := range s.specs {
		c.index[spec.name] = len(c.fields)
		c.fields = append(c.fields, NamedField{Name: spec.name, Field: spec.build(spec.name)})
	}
	bind(c, newTree(), 0)
	return c
}

// Embed declares a field holding a chunk of schema s.
func Embed(name string, s *Schema, opts ...FieldOption) FieldSpec {
	cfg := newConfig(opts)
	return FieldSpec{
		name: name,
		kind: "chunk",
		build: func(n string) Field {
			c := s.instance(n)
			c.init(c, n, cfg)
			return c
		},
	}
}

// NamedField pairs a child with its declared name.
type NamedField struct {
	Field Field
	Name  string
}

// Span is a laid-out byte range.
type Span struct {
	Offset int64 `json:"offset"`
	Size   int   `json:"size"`
}

// NamedSpan is a Span with its field name.
type NamedSpan struct {
	Name string `json:"name"`
	Span
}

// Chunk is a composite field: an ordered set of named children.
type Chunk struct {
	Base
	schema *Schema
	index  map[string]int
	fields []NamedField
}

// Schema returns the schema the chunk was built from.
func (c *Chunk) Schema() *Schema { return c.schema }

// Fields returns the children in declaration order.
func (c *Chunk) Fields() []NamedField {
	return append([]NamedField(nil), c.fields...)
}

// Ordered returns the children in layout order, applying the schema's
// order hook.
func (c *Chunk) Ordered() ([]NamedField, error) {
	if c.schema.order == nil {
		return c.fields, nil
	}
	names, err := c.schema.order(c)
	if err != nil {
		return nil, err
	}
	out := make([]NamedField, 0, len(names))
	for _, name := range names {
		i, ok := c.index[name]
		if !ok {
			return nil, errors.Schema(fmt.Sprintf("order hook returned unknown field %q", name))
		}
		out = append(out, c.fields[i])
	}
	return out, nil
}

// layout is Ordered falling back to declaration order for accessors that
// cannot report errors.
func (c *Chunk) layout() []NamedField {
	fields, err := c.Ordered()
	if err != nil {
		return c.fields
	}
	return fields
}

func (c *Chunk) children() []Field {
	out := make([]Field, len(c.fields))
	for i, nf := range c.fields {
		out[i] = nf.Field
	}
	return out
}

// Field returns the named child or nil.
func (c *Chunk) Field(name string) Field {
	i, ok := c.index[name]
	if !ok {
		return nil
	}
	return c.fields[i].Field
}

// Scalar returns the named integer child or nil. A checksum child is
// returned as its underlying integer.
func (c *Chunk) Scalar(name string) *ScalarField {
	switch f := c.Field(name).(type) {
	case *ScalarField:
		return f
	case *ChecksumField:
		return &f.ScalarField
	}
	return nil
}

// Bytes returns the named byte string child or nil.
func (c *Chunk) Bytes(name string) *BytesField {
	f, _ := c.Field(name).(*BytesField)
	return f
}

// Array returns the named array child or nil.
func (c *Chunk) Array(name string) *ArrayField {
	f, _ := c.Field(name).(*ArrayField)
	return f
}

// Chunk returns the named embedded chunk or nil.
func (c *Chunk) Chunk(name string) *Chunk {
	f, _ := c.Field(name).(*Chunk)
	return f
}

// Select returns the named select child or nil.
func (c *Chunk) Select(name string) *SelectField {
	f, _ := c.Field(name).(*SelectField)
	return f
}

// Checksum returns the named checksum child or nil.
func (c *Chunk) Checksum(name string) *ChecksumField {
	f, _ := c.Field(name).(*ChecksumField)
	return f
}

// Varint returns the named varint child or nil.
func (c *Chunk) Varint(name string) *VarintField {
	f, _ := c.Field(name).(*VarintField)
	return f
}

// Padding returns the named padding child or nil.
func (c *Chunk) Padding(name string) *PaddingField {
	f, _ := c.Field(name).(*PaddingField)
	return f
}

// Lookup walks a dotted path of child names and array indices below c.
func (c *Chunk) Lookup(path string) (Field, error) {
	if path == "" {
		return c, nil
	}
	t, err := Dep("$." + path).On(c).Resolve(c)
	if err != nil {
		return nil, err
	}
	if t.Attr != "" {
		return nil, errors.Unresolved(path, "path names an attribute, not a field")
	}
	return t.Field, nil
}

// Int resolves path and returns its integer value.
func (c *Chunk) Int(path string) (int64, error) {
	return Dep("$." + path).On(c).Value(c)
}

// Value returns the children's values keyed by name.
func (c *Chunk) Value() any {
	out := make(map[string]any, len(c.fields))
	for _, nf := range c.fields {
		out[nf.Name] = nf.Field.Value()
	}
	return out
}

// SetValue assigns children from a map keyed by field name.
func (c *Chunk) SetValue(v any) error {
	m, ok := v.(map[string]any)
	if !ok {
		return errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("cannot use %T as chunk value", v))
	}
	names := make([]string, 0, len(m))
	for name := range m {
		if c.Field(name) == nil {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		slices.Sort(names)
		return errors.Prepend(errors.InvalidInput(errors.PhaseValidate, "unknown field"), names[0])
	}
	// applied in declaration order
	for _, nf := range c.fields {
		val, ok := m[nf.Name]
		if !ok {
			continue
		}
		if err := nf.Field.SetValue(val); err != nil {
			return errors.Prepend(err, nf.Name)
		}
	}
	return nil
}

// Raw concatenates the children's raw bytes in layout order.
func (c *Chunk) Raw() []byte {
	var out []byte
	for _, nf := range c.layout() {
		out = append(out, nf.Field.Raw()...)
	}
	return out
}

// Size is the sum of the children's sizes.
func (c *Chunk) Size() int {
	n := 0
	for _, nf := range c.layout() {
		n += nf.Field.Size()
	}
	return n
}

// Layout maps each child name to its span.
func (c *Chunk) Layout() map[string]Span {
	out := make(map[string]Span, len(c.fields))
	for _, nf := range c.layout() {
		out[nf.Name] = Span{Offset: nf.Field.Offset(), Size: nf.Field.Size()}
	}
	return out
}

// LayoutList returns the children's spans in layout order.
func (c *Chunk) LayoutList() []NamedSpan {
	fields := c.layout()
	out := make([]NamedSpan, len(fields))
	for i, nf := range fields {
		out[i] = NamedSpan{Name: nf.Name, Span: Span{Offset: nf.Field.Offset(), Size: nf.Field.Size()}}
	}
	return out
}

// Relayout assigns offsets depth-first: each child starts where its
// previous sibling ends unless it carries an explicit offset.
func (c *Chunk) Relayout(offset int64) (int, error) {
	prev := c.phase
	c.phase = PhaseRelayouting
	c.offset = offset

	fields, err := c.Ordered()
	if err != nil {
		return 0, c.fail(err)
	}
	running := 0
	for _, nf := range fields {
		at := offset + int64(running)
		explicit, ok, err := nf.Field.base().explicitOffset()
		if err != nil {
			return 0, c.fail(errors.Prepend(err, nf.Name))
		}
		if ok {
			at = explicit
		}
		n, err := nf.Field.Relayout(at)
		if err != nil {
			return 0, c.fail(errors.Prepend(err, nf.Name))
		}
		running += n
	}
	c.phase = prev
	return running, nil
}

func (c *Chunk) Unpack(st *stream.Stream) error {
	c.phase = PhaseUnpacking
	c.offset = st.Tell()

	fields, err := c.Ordered()
	if err != nil {
		return c.fail(err)
	}
	for _, nf := range fields {
		f := nf.Field
		offset, ok, err := f.base().explicitOffset()
		if err != nil {
			return c.fail(errors.Prepend(err, nf.Name))
		}
		if ok {
			if err := st.SeekTo(offset); err != nil {
				return c.fail(errors.Prepend(errors.Wrap(errors.PhaseUnpack, errors.KindInvalidInput, err, "seek"), nf.Name))
			}
		} else {
			offset = st.Tell()
		}
		Logger().Debug("unpack field", zap.String("chunk", c.name), zap.String("field", nf.Name), zap.Int64("offset", offset))
		if err := f.Unpack(st); err != nil {
			return c.fail(errors.Prepend(err, nf.Name))
		}
		f.base().offset = offset
	}
	for _, nf := range fields {
		if sum, ok := nf.Field.(*ChecksumField); ok {
			if err := sum.verify(); err != nil {
				return c.fail(errors.Prepend(err, nf.Name))
			}
		}
	}

	if c.schema.validate != nil && !c.schema.validate(c) {
		err := errors.New(errors.PhaseValidate, errors.KindMagic).
			Detail("%s failed validation", c.schema.name).
			Build()
		if err := c.violation(err, ComplianceMagic); err != nil {
			return c.fail(err)
		}
	}
	c.phase = PhaseDone
	return nil
}

// Pack writes the chunk. A root chunk relays out first; nested chunks
// rely on the layout computed by their root.
func (c *Chunk) Pack(st *stream.Stream) error {
	return c.PackWith(st, PackOptions{SkipRelayout: c.Parent() != nil})
}

// PackWith writes every child at its offset.
func (c *Chunk) PackWith(st *stream.Stream, opts PackOptions) error {
	if !opts.SkipRelayout {
		start := c.offset
		if start < 0 {
			start = 0
		}
		if _, err := c.Relayout(start); err != nil {
			return err
		}
	}
	c.phase = PhasePacking

	fields, err := c.Ordered()
	if err != nil {
		return c.fail(err)
	}
	for _, nf := range fields {
		f := nf.Field
		if f.Offset() < 0 {
			return c.fail(errors.Prepend(errors.OffsetUnresolved(errors.PhasePack), nf.Name))
		}
		if err := st.SeekTo(f.Offset()); err != nil {
			return c.fail(errors.Prepend(errors.Wrap(errors.PhasePack, errors.KindInvalidInput, err, "seek"), nf.Name))
		}
		Logger().Debug("pack field", zap.String("chunk", c.name), zap.String("field", nf.Name), zap.Int64("offset", f.Offset()))
		if err := f.Pack(st); err != nil {
			return c.fail(errors.Prepend(err, nf.Name))
		}
	}
	c.phase = PhaseDone
	return nil
}
