package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned when fewer bytes than the format width are supplied.
var ErrTruncated = errors.New("codec: truncated input")

// ErrFormat is returned by ParseFormat for unknown format strings.
var ErrFormat = errors.New("codec: unknown format")

// Format describes a fixed-width integer encoding.
type Format struct {
	Order  binary.ByteOrder
	Size   int
	Signed bool
	Char   bool
}

// Little-endian presets. Use BigEndian() for network order.
var (
	U8  = Format{Size: 1, Order: binary.LittleEndian}
	U16 = Format{Size: 2, Order: binary.LittleEndian}
	U32 = Format{Size: 4, Order: binary.LittleEndian}
	U64 = Format{Size: 8, Order: binary.LittleEndian}
	I8  = Format{Size: 1, Signed: true, Order: binary.LittleEndian}
	I16 = Format{Size: 2, Signed: true, Order: binary.LittleEndian}
	I32 = Format{Size: 4, Signed: true, Order: binary.LittleEndian}
	I64 = Format{Size: 8, Signed: true, Order: binary.LittleEndian}
	C   = Format{Size: 1, Char: true, Order: binary.LittleEndian}
)

// BigEndian returns f with big-endian byte order.
func (f Format) BigEndian() Format {
	f.Order = binary.BigEndian
	return f
}

// LittleEndian returns f with little-endian byte order.
func (f Format) LittleEndian() Format {
	f.Order = binary.LittleEndian
	return f
}

func (f Format) order() binary.ByteOrder {
	if f.Order == nil {
		return binary.LittleEndian
	}
	return f.Order
}

// Decode reads a value from the first Size bytes of b. Signed formats are
// sign-extended into the returned bit pattern.
func (f Format) Decode(b []byte) (uint64, error) {
	if len(b) < f.Size {
		return 0, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrTruncated, f, f.Size, len(b))
	}
	var v uint64
	switch f.Size {
	case 1:
		v = uint64(b[0])
	case 2:
		v = uint64(f.order().Uint16(b))
	case 4:
		v = uint64(f.order().Uint32(b))
	case 8:
		v = f.order().Uint64(b)
	default:
		return 0, fmt.Errorf("%w: width %d", ErrFormat, f.Size)
	}
	if f.Signed && f.Size < 8 {
		shift := uint(64 - 8*f.Size)
		v = uint64(int64(v<<shift) >> shift)
	}
	return v, nil
}

// Int decodes b as a signed integer regardless of the format's signedness.
func (f Format) Int(b []byte) (int64, error) {
	v, err := f.Decode(b)
	return int64(v), err
}

// Encode returns the Size-byte encoding of v. Bits above the width are dropped.
func (f Format) Encode(v uint64) []byte {
	return f.Append(make([]byte, 0, f.Size), v)
}

// Append appends the encoding of v to dst.
func (f Format) Append(dst []byte, v uint64) []byte {
	var buf [8]byte
	switch f.Size {
	case 1:
		return append(dst, byte(v))
	case 2:
		f.order().PutUint16(buf[:], uint16(v))
	case 4:
		f.order().PutUint32(buf[:], uint32(v))
	case 8:
		f.order().PutUint64(buf[:], v)
	default:
		return dst
	}
	return append(dst, buf[:f.Size]...)
}

// Mask returns v truncated to the format width and, for signed formats,
// sign-extended back into 64 bits.
func (f Format) Mask(v uint64) uint64 {
	if f.Size >= 8 {
		return v
	}
	shift := uint(64 - 8*f.Size)
	if f.Signed {
		return uint64(int64(v<<shift) >> shift)
	}
	return v << shift >> shift
}

// String renders f as a struct-style format string.
func (f Format) String() string {
	prefix := "<"
	if f.order() == binary.BigEndian {
		prefix = ">"
	}
	if f.Char {
		return prefix + "c"
	}
	codes := map[int]string{1: "b", 2: "h", 4: "i", 8: "q"}
	c, ok := codes[f.Size]
	if !ok {
		return fmt.Sprintf("%s?%d", prefix, f.Size)
	}
	if !f.Signed {
		c = string(c[0] - 'a' + 'A')
	}
	return prefix + c
}

// ParseFormat parses a struct-style format string: an optional byte order
// prefix (<, >, !, =, @) followed by one of c b B h H i I l L q Q.
// Without a prefix the order is little endian.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return Format{}, fmt.Errorf("%w: empty", ErrFormat)
	}
	f := Format{Order: binary.LittleEndian}
	switch s[0] {
	case '<', '=', '@':
		s = s[1:]
	case '>', '!':
		f.Order = binary.BigEndian
		s = s[1:]
	}
	if len(s) != 1 {
		return Format{}, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	switch s[0] {
	case 'c':
		f.Size, f.Char = 1, true
	case 'b':
		f.Size, f.Signed = 1, true
	case 'B':
		f.Size = 1
	case 'h':
		f.Size, f.Signed = 2, true
	case 'H':
		f.Size = 2
	case 'i', 'l':
		f.Size, f.Signed = 4, true
	case 'I', 'L':
		f.Size = 4
	case 'q':
		f.Size, f.Signed = 8, true
	case 'Q':
		f.Size = 8
	default:
		return Format{}, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	return f, nil
}

// MustParseFormat is like ParseFormat but panics on error.
func MustParseFormat(s string) Format {
	f, err := ParseFormat(s)
	if err != nil {
		panic(err)
	}
	return f
}
