package schema

import (
	"fmt"
	"strings"

	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/stream"
	"go.uber.org/zap"
)

type defaultKey struct{}

// DefaultCase as a Table key matches any discriminator without an entry.
var DefaultCase any = defaultKey{}

// Table maps discriminator values to variant descriptors. Integer keys
// of any Go integer type and string or []byte keys are accepted.
type Table map[any]FieldSpec

// SelectField is a discriminated union: the concrete field is chosen
// from a table by the value of a discriminator.
type SelectField struct {
	Base
	chosenKey  any
	chosenCase any
	key        *Dependency
	chosen     Field
	table      map[any]FieldSpec
}

// SelectOn declares a union keyed by the field named key. A bare name
// refers to a sibling; a dependency expression (".a.b", "@T.a", "a.b")
// may be used instead.
func SelectOn(name, key string, table Table, opts ...FieldOption) FieldSpec {
	expr := key
	if !strings.HasPrefix(key, ".") && !strings.HasPrefix(key, "@") && !strings.HasPrefix(key, "$") && !strings.Contains(key, ".") {
		expr = "." + key
	}
	d := Dep(expr)
	mustSchema(d.Err(), name)

	normalized := make(map[any]FieldSpec, len(table))
	for k, spec := range table {
		nk, err := normalizeKey(k)
		mustSchema(err, name)
		normalized[nk] = spec
	}
	cfg := newConfig(opts)
	return FieldSpec{
		name: name,
		kind: "select",
		build: func(n string) Field {
			s := &SelectField{key: d, table: normalized}
			s.init(s, n, cfg)
			return s
		},
	}
}

func normalizeKey(k any) (any, error) {
	switch x := k.(type) {
	case defaultKey:
		return x, nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case uint64:
		return x, nil
	}
	v, err := toInt64(k)
	if err != nil {
		return nil, err
	}
	return uint64(v), nil
}

// Chosen returns the current variant, nil before one was selected.
func (s *SelectField) Chosen() Field { return s.chosen }

func (s *SelectField) children() []Field {
	if s.chosen == nil {
		return nil
	}
	return []Field{s.chosen}
}

// Discriminator returns the current discriminator value in table-key form.
func (s *SelectField) Discriminator() (any, error) {
	t, err := s.key.Resolve(s)
	if err != nil {
		return nil, err
	}
	if t.Attr != "" {
		v, err := t.Int()
		return uint64(v), err
	}
	switch f := t.Field.(type) {
	case *BytesField:
		return string(f.value), nil
	case *ScalarField:
		return f.value, nil
	case *VarintField:
		return f.value, nil
	case *SelectField:
		if n, ok := numericOf(f); ok {
			return uint64(n.Int()), nil
		}
	}
	return nil, errors.Unresolved(s.key.expr, fmt.Sprintf("field %q cannot discriminate", t.Field.Name()))
}

// caseOf returns the table key that key selects.
func (s *SelectField) caseOf(key any) (any, bool) {
	if _, ok := s.table[key]; ok {
		return key, true
	}
	if _, ok := s.table[defaultKey{}]; ok {
		return defaultKey{}, true
	}
	return nil, false
}

// choose instantiates the variant for the current discriminator.
func (s *SelectField) choose(decoding bool) error {
	key, err := s.Discriminator()
	if err != nil {
		return err
	}
	c, ok := s.caseOf(key)
	if !ok {
		return errors.InvalidDiscriminant(errors.PhaseUnpack, key)
	}
	if s.chosen != nil {
		detach(s.chosen)
	}
	f := s.table[c].build(s.name)
	switch {
	case s.tree == nil:
	case decoding:
		attachDecoded(f, s.tree, s.handle)
	default:
		attach(f, s.tree, s.handle)
	}
	s.chosen, s.chosenKey, s.chosenCase = f, key, c
	return nil
}

func (s *SelectField) Value() any {
	if s.chosen == nil {
		return nil
	}
	return s.chosen.Value()
}

func (s *SelectField) SetValue(v any) error {
	if s.chosen == nil {
		if err := s.choose(false); err != nil {
			return err
		}
	}
	return s.chosen.SetValue(v)
}

func (s *SelectField) Raw() []byte {
	if s.chosen == nil {
		return nil
	}
	return s.chosen.Raw()
}

func (s *SelectField) Size() int {
	if s.chosen == nil {
		return 0
	}
	return s.chosen.Size()
}

func (s *SelectField) Unpack(st *stream.Stream) error {
	s.phase = PhaseUnpacking
	s.offset = st.Tell()
	if err := s.choose(true); err != nil {
		return s.fail(err)
	}
	Logger().Debug("selected variant", zap.String("field", s.name), zap.Any("key", s.chosenKey))
	if err := s.chosen.Unpack(st); err != nil {
		return s.fail(err)
	}
	s.chosen.base().offset = s.offset
	s.phase = PhaseDone
	return nil
}

// Relayout switches variant when the discriminator now selects another
// table entry; otherwise the current variant is kept. A discriminator
// without an entry drops the variant so that packing fails.
func (s *SelectField) Relayout(offset int64) (int, error) {
	s.offset = offset
	key, err := s.Discriminator()
	if err != nil {
		return 0, err
	}
	c, ok := s.caseOf(key)
	switch {
	case !ok:
		if s.chosen != nil {
			detach(s.chosen)
		}
		s.chosen, s.chosenCase = nil, nil
	case s.chosen == nil || c != s.chosenCase:
		if err := s.choose(false); err != nil {
			return 0, err
		}
	}
	s.chosenKey = key
	if s.chosen == nil {
		return 0, nil
	}
	return s.chosen.Relayout(offset)
}

func (s *SelectField) Pack(st *stream.Stream) error {
	s.phase = PhasePacking
	if s.chosen == nil {
		key, _ := s.Discriminator()
		return s.fail(errors.InvalidDiscriminant(errors.PhasePack, key))
	}
	if err := s.chosen.Pack(st); err != nil {
		return s.fail(err)
	}
	s.phase = PhaseDone
	return nil
}
