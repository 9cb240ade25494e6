package schema

import (
	"bytes"
	"fmt"

	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/stream"
	"go.uber.org/zap"
)

// BytesField is a contiguous byte string whose length is either fixed or
// read from a dependency.
type BytesField struct {
	Base
	length *binding
	value  []byte
	def    []byte
	n      int
	magic  bool
}

// Bytes declares a byte string of exactly n bytes.
func Bytes(name string, n int, opts ...FieldOption) FieldSpec {
	if n < 0 {
		mustSchema(errors.Schema(fmt.Sprintf("negative length %d", n)), name)
	}
	return newBytes(name, n, nil, opts)
}

// BytesLen declares a byte string whose length is the value of expr.
// Setting the value writes the new length back through expr.
func BytesLen(name, expr string, opts ...FieldOption) FieldSpec {
	d := Dep(expr)
	mustSchema(d.Err(), name)
	return newBytes(name, -1, d, opts)
}

func newBytes(name string, n int, length *Dependency, opts []FieldOption) FieldSpec {
	cfg := newConfig(opts)
	var def []byte
	if cfg.hasDef {
		v, err := toBytes(cfg.def)
		mustSchema(err, name)
		def = v
	} else if n > 0 {
		def = make([]byte, n)
	}
	if n >= 0 && len(def) != n {
		mustSchema(errors.SizeMismatch(errors.PhaseSchema, n, len(def)), name)
	}
	return FieldSpec{
		name: name,
		kind: "bytes",
		build: func(fname string) Field {
			b := &BytesField{n: n, def: def, magic: cfg.magic, length: bindTo(length)}
			b.init(b, fname, cfg)
			b.value = append([]byte(nil), def...)
			if b.length != nil && cfg.hasDef {
				_ = b.length.set(b, int64(len(def)))
			}
			return b
		},
	}
}

// Fixed reports the declared length, -1 when it is dependency-derived.
func (b *BytesField) Fixed() int { return b.n }

// Bytes returns the current content. The slice aliases the field.
func (b *BytesField) Bytes() []byte { return b.value }

func (b *BytesField) Value() any { return b.value }

// SetValue replaces the content. A fixed-length field rejects a value of
// another length; a dependency-sized field writes the new length back.
func (b *BytesField) SetValue(v any) error {
	data, err := toBytes(v)
	if err != nil {
		return err
	}
	if b.n >= 0 && len(data) != b.n {
		return errors.SizeMismatch(errors.PhaseValidate, b.n, len(data))
	}
	b.value = data
	if b.length != nil {
		return b.length.set(b, int64(len(data)))
	}
	return nil
}

func (b *BytesField) Raw() []byte { return b.value }

func (b *BytesField) Size() int { return len(b.value) }

func (b *BytesField) flush() error {
	return b.length.flush(b)
}

func (b *BytesField) discard() { b.length.discard() }

// want returns the length the field must have right now.
func (b *BytesField) want() (int, error) {
	if b.length == nil {
		return b.n, nil
	}
	v, err := b.length.get(b)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.InvalidInput(errors.PhaseResolve, fmt.Sprintf("negative length %d from %s", v, b.length.dep))
	}
	return int(v), nil
}

func (b *BytesField) Unpack(st *stream.Stream) error {
	b.phase = PhaseUnpacking
	b.offset = st.Tell()
	n, err := b.want()
	if err != nil {
		return b.fail(err)
	}
	raw, err := st.Read(n)
	if err != nil {
		return b.fail(errors.Truncated(errors.PhaseUnpack, n, len(raw), err))
	}
	b.value = raw
	if b.magic && !bytes.Equal(raw, b.def) {
		if err := b.violation(errors.Magic(errors.PhaseUnpack, fmt.Sprintf("%q", b.def), fmt.Sprintf("%q", raw)), ComplianceMagic); err != nil {
			return b.fail(err)
		}
	}
	Logger().Debug("unpacked bytes", zap.String("field", b.name), zap.Int64("offset", b.offset), zap.Int("size", n))
	b.phase = PhaseDone
	return nil
}

func (b *BytesField) Pack(st *stream.Stream) error {
	b.phase = PhasePacking
	if _, err := st.Write(b.value); err != nil {
		return b.fail(errors.Wrap(errors.PhasePack, errors.KindInvalidInput, err, "write"))
	}
	b.phase = PhaseDone
	return nil
}

// Relayout resizes the content to a changed dependency length, padding
// with zeros or truncating.
func (b *BytesField) Relayout(offset int64) (int, error) {
	b.offset = offset
	if b.length == nil {
		return len(b.value), nil
	}
	n, err := b.want()
	if err != nil {
		return 0, err
	}
	if n != len(b.value) {
		Logger().Debug("resizing bytes to dependency length",
			zap.String("field", b.name), zap.Int("from", len(b.value)), zap.Int("to", n))
		resized := make([]byte, n)
		copy(resized, b.value)
		b.value = resized
	}
	return n, nil
}

// PaddingField takes every remaining byte of the stream on unpack.
type PaddingField struct {
	Base
	value []byte
}

// Padding declares a fill-the-rest field.
func Padding(name string, opts ...FieldOption) FieldSpec {
	cfg := newConfig(opts)
	var def []byte
	if cfg.hasDef {
		v, err := toBytes(cfg.def)
		mustSchema(err, name)
		def = v
	}
	return FieldSpec{
		name: name,
		kind: "padding",
		build: func(fname string) Field {
			p := &PaddingField{value: append([]byte(nil), def...)}
			p.init(p, fname, cfg)
			return p
		},
	}
}

func (p *PaddingField) Value() any { return p.value }

func (p *PaddingField) SetValue(v any) error {
	data, err := toBytes(v)
	if err != nil {
		return err
	}
	p.value = data
	return nil
}

func (p *PaddingField) Raw() []byte { return p.value }

func (p *PaddingField) Size() int { return len(p.value) }

func (p *PaddingField) Unpack(st *stream.Stream) error {
	p.phase = PhaseUnpacking
	p.offset = st.Tell()
	rest, err := st.ReadAll()
	if err != nil {
		return p.fail(errors.Truncated(errors.PhaseUnpack, st.Remaining(), len(rest), err))
	}
	p.value = rest
	p.phase = PhaseDone
	return nil
}

func (p *PaddingField) Pack(st *stream.Stream) error {
	p.phase = PhasePacking
	if _, err := st.Write(p.value); err != nil {
		return p.fail(errors.Wrap(errors.PhasePack, errors.KindInvalidInput, err, "write"))
	}
	p.phase = PhaseDone
	return nil
}

func (p *PaddingField) Relayout(offset int64) (int, error) {
	p.offset = offset
	return len(p.value), nil
}
