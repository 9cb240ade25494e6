package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/abstruct/errors"
)

type scope uint8

const (
	scopeSibling scope = iota
	scopeRoot
	scopeClass
	scopeInstance
)

// Dependency is a path expression resolved against the current tree on
// every access.
//
//	.a.b      starts at the referencing field's enclosing chunk
//	a.b       starts at the root of the tree
//	@Type.a   starts at the nearest ancestor chunk of schema Type
//	$.a       starts at the field supplied with On
//
// Components name chunk children or array indices. A final size, offset
// or len component that names no child reads that attribute instead.
type Dependency struct {
	instance Field
	err      error
	expr     string
	class    string
	path     []string
	scope    scope
}

// Dep parses expr. Syntax errors surface when the dependency is resolved.
func Dep(expr string) *Dependency {
	d := &Dependency{expr: expr}
	rest := expr
	switch {
	case rest == "$":
		d.scope, rest = scopeInstance, ""
	case strings.HasPrefix(rest, "$."):
		d.scope, rest = scopeInstance, rest[2:]
	case strings.HasPrefix(rest, "@"):
		d.scope = scopeClass
		d.class, rest, _ = strings.Cut(rest[1:], ".")
		if d.class == "" {
			d.err = errors.Unresolved(expr, "missing schema name after @")
			return d
		}
	case strings.HasPrefix(rest, "."):
		d.scope, rest = scopeSibling, rest[1:]
	default:
		d.scope = scopeRoot
		if rest == "" {
			d.err = errors.Unresolved(expr, "empty expression")
			return d
		}
	}
	if rest != "" {
		d.path = strings.Split(rest, ".")
		for _, p := range d.path {
			if p == "" {
				d.err = errors.Unresolved(expr, "empty path component")
				return d
			}
		}
	}
	return d
}

// On binds an instance-scoped expression to f.
func (d *Dependency) On(f Field) *Dependency {
	c := *d
	c.instance = f
	return &c
}

// String returns the source expression.
func (d *Dependency) String() string { return d.expr }

// Err returns the parse error, if any.
func (d *Dependency) Err() error { return d.err }

// Target is the outcome of resolving a dependency.
type Target struct {
	Field Field
	// Attr is "size", "offset" or "len" when the last component read an
	// attribute of Field instead of naming a child.
	Attr string
	// Chain holds every field visited from the start to Field.
	Chain []Field
}

// Int returns the integer value at the target.
func (t Target) Int() (int64, error) {
	switch t.Attr {
	case "size":
		return int64(t.Field.Size()), nil
	case "offset":
		return t.Field.Offset(), nil
	case "len":
		switch f := t.Field.(type) {
		case *ArrayField:
			return int64(f.Len()), nil
		case *Chunk:
			return int64(len(f.fields)), nil
		}
		return int64(t.Field.Size()), nil
	}
	n, ok := numericOf(t.Field)
	if !ok {
		return 0, errors.New(errors.PhaseResolve, errors.KindUnresolved).
			Detail("field %q is not an integer", t.Field.Name()).
			Build()
	}
	return n.Int(), nil
}

// Resolve walks the expression from the referencing field.
func (d *Dependency) Resolve(from Field) (Target, error) {
	if d.err != nil {
		return Target{}, errors.Wrap(errors.PhaseResolve, errors.KindUnresolved, d.err, "invalid expression")
	}
	cur, err := d.start(from)
	if err != nil {
		return Target{}, err
	}
	chain := []Field{cur}
	for i, comp := range d.path {
		next, ok := child(cur, comp)
		if !ok {
			if i == len(d.path)-1 && isAttr(comp) {
				return Target{Field: cur, Attr: comp, Chain: chain}, nil
			}
			return Target{}, errors.Unresolved(d.expr, fmt.Sprintf("no field %q under %q", comp, cur.Name()))
		}
		cur = next
		chain = append(chain, cur)
	}
	return Target{Field: cur, Chain: chain}, nil
}

// Value resolves the expression to an integer.
func (d *Dependency) Value(from Field) (int64, error) {
	t, err := d.Resolve(from)
	if err != nil {
		return 0, err
	}
	return t.Int()
}

// Set writes v into the referenced integer field.
func (d *Dependency) Set(from Field, v int64) error {
	t, err := d.Resolve(from)
	if err != nil {
		return err
	}
	if t.Attr != "" {
		return errors.Unresolved(d.expr, t.Attr+" is read-only")
	}
	n, ok := numericOf(t.Field)
	if !ok {
		return errors.Unresolved(d.expr, fmt.Sprintf("field %q is not an integer", t.Field.Name()))
	}
	return n.SetInt(v)
}

// needsTree reports whether resolution starts from the referencing
// field's ancestors.
func (d *Dependency) needsTree() bool {
	return d.scope != scopeInstance
}

func (d *Dependency) start(from Field) (Field, error) {
	switch d.scope {
	case scopeInstance:
		if d.instance == nil {
			return nil, errors.Unresolved(d.expr, "no instance bound")
		}
		return d.instance, nil
	case scopeRoot:
		return from.base().Root(), nil
	case scopeClass:
		for p := from.Parent(); p != nil; p = p.Parent() {
			if c, ok := p.(*Chunk); ok && c.schema.Is(d.class) {
				return c, nil
			}
		}
		return nil, errors.Unresolved(d.expr, fmt.Sprintf("no enclosing %s", d.class))
	}
	p := from.Parent()
	for {
		switch p.(type) {
		case nil:
			return nil, errors.Unresolved(d.expr, fmt.Sprintf("field %q has no parent", from.Name()))
		case *ArrayField, *SelectField:
			p = p.Parent()
			continue
		}
		return p, nil
	}
}

func child(cur Field, comp string) (Field, bool) {
	switch c := cur.(type) {
	case *Chunk:
		f := c.Field(comp)
		return f, f != nil
	case *ArrayField:
		i, err := strconv.Atoi(comp)
		if err != nil || i < 0 || i >= len(c.elements) {
			return nil, false
		}
		return c.elements[i], true
	case *SelectField:
		if c.chosen == nil {
			return nil, false
		}
		return child(c.chosen, comp)
	}
	return nil, false
}

func isAttr(comp string) bool {
	return comp == "size" || comp == "offset" || comp == "len"
}

// numeric is implemented by integer-valued fields.
type numeric interface {
	Int() int64
	SetInt(v int64) error
}

func numericOf(f Field) (numeric, bool) {
	if s, ok := f.(*SelectField); ok {
		if s.chosen == nil {
			return nil, false
		}
		f = s.chosen
	}
	n, ok := f.(numeric)
	return n, ok
}

// binding is a dependency attached to a field attribute. While the field
// is detached, writes are cached and replayed on attach.
type binding struct {
	dep     *Dependency
	pending *int64
}

func bindTo(d *Dependency) *binding {
	if d == nil {
		return nil
	}
	return &binding{dep: d}
}

func (b *binding) get(from Field) (int64, error) {
	if b.dep.needsTree() && !from.base().attached() {
		if b.pending != nil {
			return *b.pending, nil
		}
		return 0, errors.Unresolved(b.dep.expr, fmt.Sprintf("field %q is detached", from.Name()))
	}
	v, err := b.dep.Value(from)
	if err != nil && b.pending != nil {
		return *b.pending, nil
	}
	return v, err
}

func (b *binding) set(from Field, v int64) error {
	if b.dep.needsTree() && !from.base().attached() {
		b.pending = &v
		return nil
	}
	if err := b.dep.Set(from, v); err != nil {
		b.pending = &v
		return err
	}
	b.pending = nil
	return nil
}

func (b *binding) discard() {
	if b != nil {
		b.pending = nil
	}
}

func (b *binding) flush(from Field) error {
	if b == nil || b.pending == nil || !from.base().attached() {
		return nil
	}
	v := *b.pending
	if err := b.dep.Set(from, v); err != nil {
		return err
	}
	b.pending = nil
	return nil
}
