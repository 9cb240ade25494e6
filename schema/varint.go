package schema

import (
	stderrors "errors"
	"io"

	"github.com/wippyai/abstruct/codec"
	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/stream"
)

// VarintField is a LEB128 integer; its size follows its value.
type VarintField struct {
	Base
	value  uint64
	signed bool
}

// Uvarint declares an unsigned LEB128 field.
func Uvarint(name string, opts ...FieldOption) FieldSpec {
	return newVarint(name, false, opts)
}

// Varint declares a signed LEB128 field.
func Varint(name string, opts ...FieldOption) FieldSpec {
	return newVarint(name, true, opts)
}

func newVarint(name string, signed bool, opts []FieldOption) FieldSpec {
	cfg := newConfig(opts)
	var def int64
	if cfg.hasDef {
		v, err := toInt64(cfg.def)
		mustSchema(err, name)
		def = v
	}
	return FieldSpec{
		name: name,
		kind: "varint",
		build: func(n string) Field {
			f := &VarintField{signed: signed}
			f.init(f, n, cfg)
			_ = f.SetInt(def)
			return f
		},
	}
}

// Signed reports whether the field uses the signed encoding.
func (v *VarintField) Signed() bool { return v.signed }

func (v *VarintField) Int() int64 { return int64(v.value) }

func (v *VarintField) Uint() uint64 { return v.value }

func (v *VarintField) SetInt(n int64) error {
	if !v.signed && n < 0 {
		return errors.InvalidInput(errors.PhaseValidate, "negative value for unsigned varint")
	}
	v.value = uint64(n)
	return nil
}

func (v *VarintField) Value() any {
	if v.signed {
		return int64(v.value)
	}
	return v.value
}

func (v *VarintField) SetValue(x any) error {
	if u, ok := x.(uint64); ok && !v.signed {
		v.value = u
		return nil
	}
	n, err := toInt64(x)
	if err != nil {
		return err
	}
	return v.SetInt(n)
}

func (v *VarintField) Raw() []byte {
	if v.signed {
		return codec.AppendVarint(nil, int64(v.value))
	}
	return codec.AppendUvarint(nil, v.value)
}

func (v *VarintField) Size() int {
	if v.signed {
		return codec.VarintSize(int64(v.value))
	}
	return codec.UvarintSize(v.value)
}

func (v *VarintField) Unpack(st *stream.Stream) error {
	v.phase = PhaseUnpacking
	v.offset = st.Tell()
	var err error
	if v.signed {
		var n int64
		n, err = codec.ReadVarint(st)
		v.value = uint64(n)
	} else {
		v.value, err = codec.ReadUvarint(st)
	}
	switch {
	case err == nil:
	case stderrors.Is(err, io.EOF):
		return v.fail(errors.Truncated(errors.PhaseUnpack, int(st.Tell()-v.offset)+1, int(st.Tell()-v.offset), err))
	default:
		return v.fail(errors.Wrap(errors.PhaseUnpack, errors.KindInvalidInput, err, "varint"))
	}
	v.phase = PhaseDone
	return nil
}

func (v *VarintField) Pack(st *stream.Stream) error {
	v.phase = PhasePacking
	if _, err := st.Write(v.Raw()); err != nil {
		return v.fail(errors.Wrap(errors.PhasePack, errors.KindInvalidInput, err, "write"))
	}
	v.phase = PhaseDone
	return nil
}

func (v *VarintField) Relayout(offset int64) (int, error) {
	v.offset = offset
	return v.Size(), nil
}
