package schema

import (
	"fmt"
	"math"
	"sort"

	"github.com/wippyai/abstruct/codec"
	"github.com/wippyai/abstruct/errors"
)

// FieldOption configures a field declaration.
type FieldOption func(*fieldConfig)

type fieldConfig struct {
	def           any
	equals        *Dependency
	at            *Dependency
	enum          *Enum
	fixedAt       int64
	hasDef        bool
	hasFixedAt    bool
	hasCompliance bool
	magic         bool
	compliance    Compliance
}

func newConfig(opts []FieldOption) *fieldConfig {
	cfg := &fieldConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Default sets the value a freshly instantiated field starts with. For
// Magic fields it is also the expected value.
func Default(v any) FieldOption {
	return func(c *fieldConfig) {
		c.def = v
		c.hasDef = true
	}
}

// EqualsTo binds an integer field's value to expr; the value is
// refreshed on every relayout.
func EqualsTo(expr string) FieldOption {
	return func(c *fieldConfig) { c.equals = Dep(expr) }
}

// At places the field at the offset read from expr instead of after its
// previous sibling.
func At(expr string) FieldOption {
	return func(c *fieldConfig) { c.at = Dep(expr) }
}

// AtOffset places the field at a fixed absolute offset.
func AtOffset(n int64) FieldOption {
	return func(c *fieldConfig) {
		c.fixedAt = n
		c.hasFixedAt = true
	}
}

// WithEnum restricts an integer field to the values of e.
func WithEnum(e *Enum) FieldOption {
	return func(c *fieldConfig) { c.enum = e }
}

// WithCompliance overrides the field's compliance flags.
func WithCompliance(flags Compliance) FieldOption {
	return func(c *fieldConfig) {
		c.compliance = flags
		c.hasCompliance = true
	}
}

// Magic marks the field's default as the only valid decoded value.
func Magic() FieldOption {
	return func(c *fieldConfig) { c.magic = true }
}

// FieldSpec is an immutable field descriptor. Each chunk instantiation
// builds fresh fields from its schema's specs.
type FieldSpec struct {
	build func(name string) Field
	name  string
	kind  string
}

// Name returns the declared field name.
func (fs FieldSpec) Name() string { return fs.name }

// Kind returns the descriptor kind, e.g. "scalar" or "array".
func (fs FieldSpec) Kind() string { return fs.kind }

// Named returns a copy of fs declared under another name.
func (fs FieldSpec) Named(name string) FieldSpec {
	fs.name = name
	return fs
}

// New builds a detached field.
func (fs FieldSpec) New() Field {
	return fs.build(fs.name)
}

// Enum maps integer values to symbolic names.
type Enum struct {
	names  map[uint64]string
	values map[string]uint64
	name   string
}

// NewEnum declares an enum type.
func NewEnum(name string, values map[string]uint64) *Enum {
	e := &Enum{
		name:   name,
		names:  make(map[uint64]string, len(values)),
		values: make(map[string]uint64, len(values)),
	}
	for k, v := range values {
		e.values[k] = v
		if prev, ok := e.names[v]; !ok || k < prev {
			e.names[v] = k
		}
	}
	return e
}

// TypeName returns the enum's declared name.
func (e *Enum) TypeName() string { return e.name }

// Lookup returns the symbolic name of v.
func (e *Enum) Lookup(v uint64) (string, bool) {
	n, ok := e.names[v]
	return n, ok
}

// Value returns the integer for a symbolic name.
func (e *Enum) Value(name string) (uint64, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Names returns the symbolic names ordered by value.
func (e *Enum) Names() []string {
	out := make([]string, 0, len(e.values))
	for k := range e.values {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		vi, vj := e.values[out[i]], e.values[out[j]]
		if vi != vj {
			return vi < vj
		}
		return out[i] < out[j]
	})
	return out
}

// toUint64 converts a Go value to the bit pattern of format f.
func toUint64(v any, f codec.Format, enum *Enum) (uint64, error) {
	switch x := v.(type) {
	case int:
		return fitSigned(int64(x), f)
	case int8:
		return fitSigned(int64(x), f)
	case int16:
		return fitSigned(int64(x), f)
	case int32:
		return fitSigned(int64(x), f)
	case int64:
		return fitSigned(x, f)
	case uint:
		return fitUnsigned(uint64(x), f)
	case uint8:
		return fitUnsigned(uint64(x), f)
	case uint16:
		return fitUnsigned(uint64(x), f)
	case uint32:
		return fitUnsigned(uint64(x), f)
	case uint64:
		return fitUnsigned(x, f)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		if len(x) != f.Size {
			return 0, errors.SizeMismatch(errors.PhaseValidate, f.Size, len(x))
		}
		return f.Decode(x)
	case string:
		if enum != nil {
			if n, ok := enum.Value(x); ok {
				return n, nil
			}
		}
		if len(x) == f.Size {
			return f.Decode([]byte(x))
		}
		return 0, errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("cannot use %q as %s", x, f))
	}
	return 0, errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("cannot use %T as %s", v, f))
}

func fitSigned(v int64, f codec.Format) (uint64, error) {
	if v < 0 {
		if f.Signed && (f.Size >= 8 || v >= -(int64(1)<<(8*f.Size-1))) {
			return f.Mask(uint64(v)), nil
		}
		return 0, errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("%d out of range for %s", v, f))
	}
	return fitUnsigned(uint64(v), f)
}

func fitUnsigned(v uint64, f codec.Format) (uint64, error) {
	limit := uint64(math.MaxUint64)
	if f.Size < 8 {
		limit = uint64(1)<<(8*f.Size) - 1
	}
	if f.Signed {
		limit >>= 1
	}
	if v > limit {
		return 0, errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("%d out of range for %s", v, f))
	}
	return v, nil
}

func toBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...), nil
	case string:
		return []byte(x), nil
	case nil:
		return nil, nil
	}
	return nil, errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("cannot use %T as bytes", v))
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("%d overflows int64", x))
		}
		return int64(x), nil
	}
	return 0, errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("cannot use %T as integer", v))
}

// mustSchema panics with a schema error. Declarations run at package
// init, so a bad declaration is a programming error.
func mustSchema(err error, name string) {
	if err == nil {
		return
	}
	panic(errors.Prepend(errors.Wrap(errors.PhaseSchema, errors.KindSchema, err, "invalid declaration"), name))
}
