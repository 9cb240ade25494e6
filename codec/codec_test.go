package codec_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/wippyai/abstruct/codec"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in     string
		size   int
		signed bool
		big    bool
		str    string
	}{
		{"B", 1, false, false, "<B"},
		{"<b", 1, true, false, "<b"},
		{">H", 2, false, true, ">H"},
		{"!h", 2, true, true, ">h"},
		{"I", 4, false, false, "<I"},
		{"=l", 4, true, false, "<i"},
		{">Q", 8, false, true, ">Q"},
		{"q", 8, true, false, "<q"},
		{"c", 1, false, false, "<c"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := codec.ParseFormat(tt.in)
			if err != nil {
				t.Fatalf("ParseFormat(%q): %v", tt.in, err)
			}
			if f.Size != tt.size || f.Signed != tt.signed {
				t.Errorf("got size=%d signed=%v", f.Size, f.Signed)
			}
			if got := f.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
			if (f.Order == binary.BigEndian) != tt.big {
				t.Errorf("big endian = %v, want %v", f.Order == binary.BigEndian, tt.big)
			}
		})
	}

	for _, bad := range []string{"", "x", ">", "<II", "f"} {
		if _, err := codec.ParseFormat(bad); !errors.Is(err, codec.ErrFormat) {
			t.Errorf("ParseFormat(%q) err = %v, want ErrFormat", bad, err)
		}
	}
}

func TestFormatDecodeEncode(t *testing.T) {
	tests := []struct {
		name   string
		format codec.Format
		raw    []byte
		value  uint64
		signed int64
	}{
		{"u8", codec.U8, []byte{0xff}, 0xff, 255},
		{"i8 negative", codec.I8, []byte{0xff}, 0xffffffffffffffff, -1},
		{"u16 le", codec.U16, []byte{0x05, 0x00}, 5, 5},
		{"u16 be", codec.U16.BigEndian(), []byte{0x00, 0x05}, 5, 5},
		{"i16 be", codec.I16.BigEndian(), []byte{0xff, 0xfe}, 0xfffffffffffffffe, -2},
		{"u32 le", codec.U32, []byte{0x78, 0x56, 0x34, 0x12}, 0x12345678, 0x12345678},
		{"i32 min", codec.I32, []byte{0x00, 0x00, 0x00, 0x80}, 0xffffffff80000000, -2147483648},
		{"u64 be", codec.U64.BigEndian(), []byte{0, 0, 0, 0, 0, 0, 1, 0}, 256, 256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.format.Decode(tt.raw)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if v != tt.value {
				t.Errorf("Decode = %#x, want %#x", v, tt.value)
			}
			i, _ := tt.format.Int(tt.raw)
			if i != tt.signed {
				t.Errorf("Int = %d, want %d", i, tt.signed)
			}
			if got := tt.format.Encode(v); !bytes.Equal(got, tt.raw) {
				t.Errorf("Encode = %x, want %x", got, tt.raw)
			}
		})
	}
}

func TestFormatAppend(t *testing.T) {
	dst := []byte{0xaa}
	dst = codec.U16.BigEndian().Append(dst, 0x0102)
	dst = codec.U32.Append(dst, 0x03040506)
	dst = codec.U64.BigEndian().Append(dst, 7)
	want := []byte{0xaa, 0x01, 0x02, 0x06, 0x05, 0x04, 0x03, 0, 0, 0, 0, 0, 0, 0, 7}
	if !bytes.Equal(dst, want) {
		t.Fatalf("Append = %x, want %x", dst, want)
	}
	if got := (codec.Format{Size: 3}).Append([]byte{1}, 5); !bytes.Equal(got, []byte{1}) {
		t.Errorf("odd width Append = %x", got)
	}
}

func TestFormatTruncated(t *testing.T) {
	_, err := codec.U32.Decode([]byte{1, 2})
	if !errors.Is(err, codec.ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestFormatMask(t *testing.T) {
	if got := codec.U8.Mask(0x1ff); got != 0xff {
		t.Errorf("U8.Mask = %#x", got)
	}
	if got := codec.I8.Mask(0x80); int64(got) != -128 {
		t.Errorf("I8.Mask = %d", int64(got))
	}
	if got := codec.U64.Mask(1 << 63); got != 1<<63 {
		t.Errorf("U64.Mask = %#x", got)
	}
}

func TestUvarint(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   uint64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, 0xFFFFFFFFFFFFFFFF},
	}
	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			if got := codec.AppendUvarint(nil, tt.value); !bytes.Equal(got, tt.encoded) {
				t.Errorf("encode %d: got %x, want %x", tt.value, got, tt.encoded)
			}
			if n := codec.UvarintSize(tt.value); n != len(tt.encoded) {
				t.Errorf("UvarintSize(%d) = %d, want %d", tt.value, n, len(tt.encoded))
			}
			got, err := codec.ReadUvarint(bytes.NewReader(tt.encoded))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.value {
				t.Errorf("decode: got %d, want %d", got, tt.value)
			}
		})
	}
}

func TestVarint(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x3f}, 63},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0x40}, -64},
		{[]byte{0xbf, 0x7f}, -65},
		{[]byte{0x80, 0x7f}, -128},
	}
	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			if got := codec.AppendVarint(nil, tt.value); !bytes.Equal(got, tt.encoded) {
				t.Errorf("encode %d: got %x, want %x", tt.value, got, tt.encoded)
			}
			if n := codec.VarintSize(tt.value); n != len(tt.encoded) {
				t.Errorf("VarintSize(%d) = %d", tt.value, n)
			}
			got, err := codec.ReadVarint(bytes.NewReader(tt.encoded))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.value {
				t.Errorf("decode: got %d, want %d", got, tt.value)
			}
		})
	}
}

func TestUvarintOverflow(t *testing.T) {
	data := bytes.Repeat([]byte{0x80}, 11)
	if _, err := codec.ReadUvarint(bytes.NewReader(data)); !errors.Is(err, codec.ErrOverflow) {
		t.Fatalf("err = %v, want ErrOverflow", err)
	}
}
