package schema

import (
	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/stream"
	"go.uber.org/zap"
)

// Phase is the lifecycle state of a field.
type Phase uint8

const (
	PhaseInit Phase = iota
	PhaseUnpacking
	PhaseRelayouting
	PhasePacking
	PhaseDone
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseUnpacking:
		return "unpacking"
	case PhaseRelayouting:
		return "relayouting"
	case PhasePacking:
		return "packing"
	case PhaseDone:
		return "done"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// Compliance selects which format violations are fatal. Without a flag
// the violation is logged and the decoded value kept.
type Compliance uint8

const ComplianceNone Compliance = 0

const (
	ComplianceEnum Compliance = 1 << iota
	ComplianceMagic
	// ComplianceInherit defers to the parent field for flags not set here.
	ComplianceInherit
)

// Field is a node of a schema tree. Every leaf kind and every composite
// implements it.
type Field interface {
	Name() string
	// Offset is the absolute position in the stream, -1 until known.
	Offset() int64
	Size() int
	Raw() []byte
	Value() any
	SetValue(v any) error
	Phase() Phase
	Parent() Field
	Compliance() Compliance
	Unpack(st *stream.Stream) error
	Pack(st *stream.Stream) error
	// Relayout assigns offset to the field and its descendants and
	// returns the field size.
	Relayout(offset int64) (int, error)

	base() *Base
	children() []Field
}

// Base carries the state shared by all field kinds.
type Base struct {
	self       Field
	tree       *Tree
	at         *Dependency
	name       string
	fixedAt    int64
	offset     int64
	handle     Handle
	phase      Phase
	compliance Compliance
}

func (b *Base) init(self Field, name string, cfg *fieldConfig) {
	b.self = self
	b.name = name
	b.offset = -1
	b.fixedAt = -1
	b.compliance = ComplianceInherit
	if cfg == nil {
		return
	}
	if cfg.hasCompliance {
		b.compliance = cfg.compliance
	}
	b.at = cfg.at
	if cfg.hasFixedAt {
		b.fixedAt = cfg.fixedAt
	}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Offset() int64 { return b.offset }

func (b *Base) Phase() Phase { return b.phase }

func (b *Base) Compliance() Compliance { return b.compliance }

// SetCompliance replaces the field's compliance flags.
func (b *Base) SetCompliance(c Compliance) { b.compliance = c }

// Handle returns the field's handle in its tree, 0 when detached.
func (b *Base) Handle() Handle { return b.handle }

// Parent returns the enclosing field, nil for a root or detached field.
func (b *Base) Parent() Field {
	if b.tree == nil {
		return nil
	}
	return b.tree.parent(b.handle)
}

// Root returns the topmost ancestor.
func (b *Base) Root() Field {
	var f Field = b.self
	for p := f.Parent(); p != nil; p = f.Parent() {
		f = p
	}
	return f
}

func (b *Base) base() *Base { return b }

func (b *Base) children() []Field { return nil }

func (b *Base) attached() bool { return b.tree != nil }

// complies walks up through parents while the inherit flag is set.
func (b *Base) complies(flag Compliance) bool {
	var f Field = b.self
	for f != nil {
		c := f.Compliance()
		if c&flag != 0 {
			return true
		}
		if c&ComplianceInherit == 0 {
			return false
		}
		f = f.Parent()
	}
	return false
}

// violation returns err when flag is in effect, otherwise logs it.
func (b *Base) violation(err *errors.Error, flag Compliance) error {
	if b.complies(flag) {
		return err
	}
	Logger().Warn("format violation ignored",
		zap.String("field", b.name),
		zap.String("kind", string(err.Kind)),
		zap.String("detail", err.Detail))
	return nil
}

// explicitOffset reports an offset fixed by AtOffset or At.
func (b *Base) explicitOffset() (int64, bool, error) {
	if b.fixedAt >= 0 {
		return b.fixedAt, true, nil
	}
	if b.at == nil {
		return 0, false, nil
	}
	v, err := b.at.Value(b.self)
	if err != nil {
		return 0, true, err
	}
	return v, true, nil
}

func (b *Base) fail(err error) error {
	b.phase = PhaseError
	return err
}

// Children returns the direct descendants of f in layout order.
func Children(f Field) []Field {
	return f.children()
}

// Walk visits f and its descendants depth-first. path holds the names
// from f down to the visited field; array elements appear as indices.
func Walk(f Field, fn func(path []string, f Field) error) error {
	return walk(nil, f, fn)
}

func walk(path []string, f Field, fn func([]string, Field) error) error {
	if err := fn(path, f); err != nil {
		return err
	}
	if sel, ok := f.(*SelectField); ok {
		// the chosen variant stands in for the select itself
		if sel.chosen == nil {
			return nil
		}
		f = sel.chosen
	}
	_, isArray := f.(*ArrayField)
	for i, c := range f.children() {
		name := c.Name()
		if isArray {
			name = itoa(i)
		}
		if err := walk(append(path[:len(path):len(path)], name), c, fn); err != nil {
			return err
		}
	}
	return nil
}
