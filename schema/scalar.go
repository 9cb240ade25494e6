package schema

import (
	"fmt"
	"strconv"

	"github.com/wippyai/abstruct/codec"
	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/stream"
	"go.uber.org/zap"
)

// ScalarField is a fixed-width integer field.
type ScalarField struct {
	Base
	enum   *Enum
	equals *Dependency
	format codec.Format
	value  uint64
	def    uint64
	magic  bool
}

// Scalar declares an integer field encoded with format.
func Scalar(name string, format codec.Format, opts ...FieldOption) FieldSpec {
	cfg := newConfig(opts)
	var def uint64
	if cfg.hasDef {
		v, err := toUint64(cfg.def, format, cfg.enum)
		mustSchema(err, name)
		def = v
	}
	return FieldSpec{
		name: name,
		kind: "scalar",
		build: func(n string) Field {
			s := &ScalarField{format: format, def: def, value: def, enum: cfg.enum, equals: cfg.equals, magic: cfg.magic}
			s.init(s, n, cfg)
			return s
		},
	}
}

// Struct declares an integer field from a struct-style format string,
// e.g. Struct("length", ">I").
func Struct(name, format string, opts ...FieldOption) FieldSpec {
	f, err := codec.ParseFormat(format)
	mustSchema(err, name)
	return Scalar(name, f, opts...)
}

func U8(name string, opts ...FieldOption) FieldSpec  { return Scalar(name, codec.U8, opts...) }
func U16(name string, opts ...FieldOption) FieldSpec { return Scalar(name, codec.U16, opts...) }
func U32(name string, opts ...FieldOption) FieldSpec { return Scalar(name, codec.U32, opts...) }
func U64(name string, opts ...FieldOption) FieldSpec { return Scalar(name, codec.U64, opts...) }
func I8(name string, opts ...FieldOption) FieldSpec  { return Scalar(name, codec.I8, opts...) }
func I16(name string, opts ...FieldOption) FieldSpec { return Scalar(name, codec.I16, opts...) }
func I32(name string, opts ...FieldOption) FieldSpec { return Scalar(name, codec.I32, opts...) }
func I64(name string, opts ...FieldOption) FieldSpec { return Scalar(name, codec.I64, opts...) }

// Char declares a single-byte character field.
func Char(name string, opts ...FieldOption) FieldSpec { return Scalar(name, codec.C, opts...) }

// Format returns the field's encoding.
func (s *ScalarField) Format() codec.Format { return s.format }

// Enum returns the field's enum, or nil.
func (s *ScalarField) Enum() *Enum { return s.enum }

// IsMagic reports whether the field only accepts its default.
func (s *ScalarField) IsMagic() bool { return s.magic }

// Default returns the declared default bit pattern.
func (s *ScalarField) Default() uint64 { return s.def }

// Uint returns the raw bit pattern.
func (s *ScalarField) Uint() uint64 { return s.value }

// Int returns the value as a signed integer. Signed formats are already
// sign-extended.
func (s *ScalarField) Int() int64 { return int64(s.value) }

// SetInt stores v, failing when it does not fit the format.
func (s *ScalarField) SetInt(v int64) error {
	u, err := fitSigned(v, s.format)
	if err != nil {
		return err
	}
	s.value = u
	return nil
}

// SetUint stores v, failing when it does not fit the format.
func (s *ScalarField) SetUint(v uint64) error {
	u, err := fitUnsigned(v, s.format)
	if err != nil {
		return err
	}
	s.value = u
	return nil
}

// Value returns int64 for signed formats and uint64 otherwise.
func (s *ScalarField) Value() any {
	if s.format.Signed {
		return int64(s.value)
	}
	return s.value
}

// SetValue accepts any Go integer, a byte string of the format width,
// or an enum name.
func (s *ScalarField) SetValue(v any) error {
	u, err := toUint64(v, s.format, s.enum)
	if err != nil {
		return err
	}
	s.value = u
	return nil
}

func (s *ScalarField) Raw() []byte { return s.format.Encode(s.value) }

// SetRaw decodes b into the field.
func (s *ScalarField) SetRaw(b []byte) error {
	if len(b) != s.format.Size {
		return errors.SizeMismatch(errors.PhaseValidate, s.format.Size, len(b))
	}
	v, err := s.format.Decode(b)
	if err != nil {
		return err
	}
	s.value = v
	return nil
}

func (s *ScalarField) Size() int { return s.format.Size }

// EnumName returns the symbolic name of the current value.
func (s *ScalarField) EnumName() (string, bool) {
	if s.enum == nil {
		return "", false
	}
	return s.enum.Lookup(s.value)
}

// String renders the value the way inspection output shows it.
func (s *ScalarField) String() string {
	if name, ok := s.EnumName(); ok {
		return fmt.Sprintf("%s (%#x)", name, s.value)
	}
	if s.format.Char {
		return strconv.QuoteToASCII(string(rune(byte(s.value))))
	}
	if s.format.Signed {
		return strconv.FormatInt(int64(s.value), 10)
	}
	return fmt.Sprintf("%d (%#x)", s.value, s.value)
}

func (s *ScalarField) Unpack(st *stream.Stream) error {
	s.phase = PhaseUnpacking
	s.offset = st.Tell()
	raw, err := st.Read(s.format.Size)
	if err != nil {
		return s.fail(errors.Truncated(errors.PhaseUnpack, s.format.Size, len(raw), err))
	}
	v, err := s.format.Decode(raw)
	if err != nil {
		return s.fail(errors.Wrap(errors.PhaseUnpack, errors.KindTruncated, err, "decode"))
	}
	s.value = v
	if err := s.check(); err != nil {
		return s.fail(err)
	}
	Logger().Debug("unpacked scalar", zap.String("field", s.name), zap.Int64("offset", s.offset), zap.Uint64("value", v))
	s.phase = PhaseDone
	return nil
}

// check applies enum and magic validation to the decoded value.
func (s *ScalarField) check() error {
	if s.enum != nil {
		if _, ok := s.enum.Lookup(s.value); !ok {
			if err := s.violation(errors.InvalidEnum(errors.PhaseUnpack, s.value, s.enum.name), ComplianceEnum); err != nil {
				return err
			}
		}
	}
	if s.magic && s.value != s.def {
		want := s.format.Encode(s.def)
		got := s.format.Encode(s.value)
		if err := s.violation(errors.Magic(errors.PhaseUnpack, fmt.Sprintf("%x", want), fmt.Sprintf("%x", got)), ComplianceMagic); err != nil {
			return err
		}
	}
	return nil
}

func (s *ScalarField) Pack(st *stream.Stream) error {
	s.phase = PhasePacking
	if _, err := st.Write(s.Raw()); err != nil {
		return s.fail(errors.Wrap(errors.PhasePack, errors.KindInvalidInput, err, "write"))
	}
	s.phase = PhaseDone
	return nil
}

func (s *ScalarField) Relayout(offset int64) (int, error) {
	s.offset = offset
	if s.equals != nil {
		v, err := s.equals.Value(s)
		if err != nil {
			return 0, err
		}
		if err := s.SetInt(v); err != nil {
			return 0, err
		}
	}
	return s.format.Size, nil
}
