package schema

import (
	"fmt"

	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/stream"
	"go.uber.org/zap"
)

// ArrayOption configures how an array finds its length.
type ArrayOption func(*arrayConfig)

type arrayConfig struct {
	countDep *Dependency
	canary   func(Field) bool
	field    []FieldOption
	count    int
}

// Count fixes the number of elements.
func Count(n int) ArrayOption {
	return func(c *arrayConfig) { c.count = n }
}

// CountFrom reads the number of elements from expr. Resizing the array
// writes the new count back.
func CountFrom(expr string) ArrayOption {
	return func(c *arrayConfig) { c.countDep = Dep(expr) }
}

// Canary stops unpacking after the first element for which fn returns
// true; that element is kept. A canary takes precedence over any count.
func Canary(fn func(Field) bool) ArrayOption {
	return func(c *arrayConfig) { c.canary = fn }
}

// ArrayWith applies field options (offset, compliance) to the array.
func ArrayWith(opts ...FieldOption) ArrayOption {
	return func(c *arrayConfig) { c.field = append(c.field, opts...) }
}

// ArrayField is a homogeneous sequence of element fields.
type ArrayField struct {
	Base
	count    *binding
	canary   func(Field) bool
	elem     FieldSpec
	elements []Field
	n        int
}

// Array declares a sequence of elem.
func Array(name string, elem FieldSpec, opts ...ArrayOption) FieldSpec {
	ac := &arrayConfig{count: -1}
	for _, opt := range opts {
		opt(ac)
	}
	if ac.countDep != nil {
		mustSchema(ac.countDep.Err(), name)
	}
	if ac.count < 0 && ac.countDep == nil && ac.canary == nil {
		mustSchema(errors.Schema("array needs Count, CountFrom or Canary"), name)
	}
	cfg := newConfig(ac.field)
	return FieldSpec{
		name: name,
		kind: "array",
		build: func(n string) Field {
			a := &ArrayField{elem: elem, n: ac.count, count: bindTo(ac.countDep), canary: ac.canary}
			a.init(a, n, cfg)
			if a.n > 0 && a.canary == nil {
				for range a.n {
					a.elements = append(a.elements, a.newElement())
				}
			}
			return a
		},
	}
}

// Elem returns the element descriptor.
func (a *ArrayField) Elem() FieldSpec { return a.elem }

// Len returns the number of elements.
func (a *ArrayField) Len() int { return len(a.elements) }

// Index returns the i-th element.
func (a *ArrayField) Index(i int) Field {
	if i < 0 || i >= len(a.elements) {
		return nil
	}
	return a.elements[i]
}

// Elements returns the elements in order.
func (a *ArrayField) Elements() []Field {
	return append([]Field(nil), a.elements...)
}

func (a *ArrayField) children() []Field { return a.elements }

func (a *ArrayField) Value() any { return a.Elements() }

// SetValue replaces the elements. Fields must come from the array's
// element descriptor, e.g. via Elem().New().
func (a *ArrayField) SetValue(v any) error {
	fields, ok := v.([]Field)
	if !ok {
		return errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("cannot use %T as array value", v))
	}
	for _, el := range a.elements {
		detach(el)
	}
	a.elements = a.elements[:0]
	for _, f := range fields {
		a.adopt(f)
	}
	return a.writeCount()
}

// Append adds a default element and returns it.
func (a *ArrayField) Append() (Field, error) {
	el := a.newElement()
	a.elements = append(a.elements, el)
	return el, a.writeCount()
}

// SetCount grows the array with default elements or truncates it.
func (a *ArrayField) SetCount(n int) error {
	if n < 0 {
		return errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("negative count %d", n))
	}
	a.resize(n)
	return a.writeCount()
}

// Truncate drops every element from index n on.
func (a *ArrayField) Truncate(n int) error {
	if n >= len(a.elements) {
		return nil
	}
	return a.SetCount(n)
}

func (a *ArrayField) writeCount() error {
	if a.count != nil {
		return a.count.set(a, int64(len(a.elements)))
	}
	if a.canary == nil {
		a.n = len(a.elements)
	}
	return nil
}

func (a *ArrayField) flush() error {
	return a.count.flush(a)
}

func (a *ArrayField) discard() { a.count.discard() }

func (a *ArrayField) newElement() Field {
	el := a.elem.New()
	if a.tree != nil {
		attach(el, a.tree, a.handle)
	}
	return el
}

func (a *ArrayField) adopt(f Field) {
	if f.base().tree != nil {
		detach(f)
	}
	if a.tree != nil {
		attach(f, a.tree, a.handle)
	}
	a.elements = append(a.elements, f)
}

func (a *ArrayField) resize(n int) {
	for len(a.elements) > n {
		last := a.elements[len(a.elements)-1]
		detach(last)
		a.elements = a.elements[:len(a.elements)-1]
	}
	for len(a.elements) < n {
		a.elements = append(a.elements, a.newElement())
	}
}

// want returns the element count the array must have, or -1 when the
// length is canary-driven.
func (a *ArrayField) want() (int, error) {
	if a.canary != nil {
		return -1, nil
	}
	if a.count == nil {
		return a.n, nil
	}
	v, err := a.count.get(a)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.InvalidInput(errors.PhaseResolve, fmt.Sprintf("negative count %d from %s", v, a.count.dep))
	}
	return int(v), nil
}

func (a *ArrayField) Raw() []byte {
	var out []byte
	for _, el := range a.elements {
		out = append(out, el.Raw()...)
	}
	return out
}

func (a *ArrayField) Size() int {
	n := 0
	for _, el := range a.elements {
		n += el.Size()
	}
	return n
}

func (a *ArrayField) Unpack(st *stream.Stream) error {
	a.phase = PhaseUnpacking
	a.offset = st.Tell()
	n, err := a.want()
	if err != nil {
		return a.fail(err)
	}
	for _, el := range a.elements {
		detach(el)
	}
	a.elements = a.elements[:0]

	for i := 0; n < 0 || i < n; i++ {
		el := a.elem.New()
		if a.tree != nil {
			attachDecoded(el, a.tree, a.handle)
		}
		offset := st.Tell()
		if err := el.Unpack(st); err != nil {
			return a.fail(errors.Prepend(err, itoa(i)))
		}
		el.base().offset = offset
		a.elements = append(a.elements, el)
		if a.canary == nil {
			continue
		}
		if a.canary(el) {
			break
		}
		// an element that reads nothing would repeat forever
		if st.Tell() == offset {
			if st.Remaining() == 0 {
				return a.fail(errors.Prepend(errors.Truncated(errors.PhaseUnpack, 1, 0, nil), itoa(i)))
			}
			return a.fail(errors.Prepend(errors.InvalidInput(errors.PhaseUnpack, "element consumed no bytes"), itoa(i)))
		}
	}
	if a.count == nil && a.canary == nil {
		a.n = len(a.elements)
	}
	Logger().Debug("unpacked array", zap.String("field", a.name), zap.Int("len", len(a.elements)))
	a.phase = PhaseDone
	return nil
}

// Relayout first syncs the element count with its dependency, then lays
// the elements out back to back.
func (a *ArrayField) Relayout(offset int64) (int, error) {
	a.offset = offset
	n, err := a.want()
	if err != nil {
		return 0, err
	}
	if n >= 0 && n != len(a.elements) {
		Logger().Debug("resizing array to dependency count",
			zap.String("field", a.name), zap.Int("from", len(a.elements)), zap.Int("to", n))
		a.resize(n)
	}
	running := 0
	for i, el := range a.elements {
		size, err := el.Relayout(offset + int64(running))
		if err != nil {
			return 0, errors.Prepend(err, itoa(i))
		}
		running += size
	}
	return running, nil
}

func (a *ArrayField) Pack(st *stream.Stream) error {
	a.phase = PhasePacking
	if a.offset >= 0 {
		if _, err := a.Relayout(a.offset); err != nil {
			return a.fail(err)
		}
	}
	for i, el := range a.elements {
		if el.Offset() < 0 {
			return a.fail(errors.Prepend(errors.OffsetUnresolved(errors.PhasePack), itoa(i)))
		}
		if err := st.SeekTo(el.Offset()); err != nil {
			return a.fail(errors.Prepend(errors.Wrap(errors.PhasePack, errors.KindInvalidInput, err, "seek"), itoa(i)))
		}
		if err := el.Pack(st); err != nil {
			return a.fail(errors.Prepend(err, itoa(i)))
		}
	}
	a.phase = PhaseDone
	return nil
}
