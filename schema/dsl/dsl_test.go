package dsl_test

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/schema"
	"github.com/wippyai/abstruct/schema/dsl"
)

const records = `
enums:
  Kind:
    end: 0
    data: 1
    text: 2
schemas:
  - name: File
    fields:
      - {name: magic, type: bytes, size: 2, default: "RF", magic: true}
      - name: records
        type: array
        until: {path: kind, equals: 0}
        element: {type: chunk, ref: Record}
  - name: Record
    fields:
      - {name: kind, type: u8, enum: Kind}
      - {name: length, type: u16, endian: big}
      - {name: body, type: bytes, size_from: .length}
      - {name: crc, type: checksum, algorithm: xor8, format: "<B", over: [kind, length, body]}
`

func TestCompileAndUnpack(t *testing.T) {
	r, err := dsl.Parse([]byte(records))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := r.Names(); !reflect.DeepEqual(got, []string{"File", "Record"}) {
		t.Errorf("Names = %v", got)
	}
	file, ok := r.Lookup("File")
	if !ok {
		t.Fatal("File not compiled")
	}

	data := []byte{'R', 'F', 1, 0, 2, 'h', 'i', 2, 0, 0, 0, 0}
	c, err := schema.Unpack(file, data, schema.Strict())
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	recs := c.Array("records")
	if recs.Len() != 2 {
		t.Fatalf("records = %d, want 2", recs.Len())
	}
	first := recs.Index(0).(*schema.Chunk)
	if got := first.Bytes("body").Bytes(); string(got) != "hi" {
		t.Errorf("body = %q, want hi", got)
	}
	if name, _ := first.Scalar("kind").EnumName(); name != "data" {
		t.Errorf("kind = %q, want data", name)
	}

	if err := first.Bytes("body").SetValue("hey"); err != nil {
		t.Fatal(err)
	}
	out, err := schema.Pack(c)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if _, err := schema.Unpack(file, out, schema.Strict()); err != nil {
		t.Errorf("repacked file rejected: %v", err)
	}
	if want := []byte{'R', 'F', 1, 0, 3, 'h', 'e', 'y'}; !bytes.HasPrefix(out, want) {
		t.Errorf("Pack = %x, want prefix %x", out, want)
	}

	bad := append([]byte(nil), data...)
	bad[7] = 0x55
	if _, err := schema.Unpack(file, bad, schema.Strict()); errors.KindOf(err) != errors.KindMagic {
		t.Errorf("corrupted checksum: %v", err)
	}
}

const variants = `
schemas:
  - name: Pair
    fields:
      - {name: a, type: u8}
      - {name: b, type: u8}
  - name: Msg
    fields:
      - {name: tag, type: u8}
      - name: body
        type: select
        key: tag
        cases:
          - {value: 1, field: {type: int, format: ">H"}}
          - {value: 2, ref: Pair}
        default_case: {type: padding}
  - name: Wide
    extends: Pair
    fields:
      - {name: b, type: u32}
`

func TestSelectAndExtends(t *testing.T) {
	r, err := dsl.Parse([]byte(variants))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	msg, _ := r.Lookup("Msg")

	tests := []struct {
		name string
		data []byte
		want any
	}{
		{"inline", []byte{1, 0x01, 0x02}, uint64(0x0102)},
		{"default", []byte{9, 1, 2, 3}, []byte{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := schema.Unpack(msg, tt.data)
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if got := c.Select("body").Value(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("body = %#v, want %#v", got, tt.want)
			}
		})
	}

	c, err := schema.Unpack(msg, []byte{2, 7, 8})
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	pair, ok := c.Select("body").Chosen().(*schema.Chunk)
	if !ok || pair.Scalar("b").Uint() != 8 {
		t.Errorf("ref variant not decoded: %#v", c.Select("body").Value())
	}

	wide, _ := r.Lookup("Wide")
	if !wide.Is("Pair") || wide.MustNew().Size() != 5 {
		t.Error("extends did not override b")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		kind errors.Kind
		path []string
	}{
		{
			name: "unknown type",
			yaml: "schemas: [{name: Bad, fields: [{name: x, type: float}]}]",
			kind: errors.KindSchema,
			path: []string{"Bad", "x"},
		},
		{
			name: "unknown ref",
			yaml: "schemas: [{name: Bad, fields: [{name: y, type: chunk, ref: Nope}]}]",
			kind: errors.KindSchema,
			path: []string{"Bad", "y"},
		},
		{
			name: "self reference",
			yaml: "schemas: [{name: Loop, fields: [{name: z, type: chunk, ref: Loop}]}]",
			kind: errors.KindSchema,
			path: []string{"Loop", "z"},
		},
		{
			name: "array without length",
			yaml: "schemas: [{name: Bad, fields: [{name: a, type: array, element: {type: u8}}]}]",
			kind: errors.KindSchema,
			path: []string{"Bad", "a", "a"},
		},
		{
			name: "duplicate field",
			yaml: "schemas: [{name: Dup, fields: [{name: a, type: u8}, {name: a, type: u8}]}]",
			kind: errors.KindSchema,
			path: []string{"Dup"},
		},
		{
			name: "unknown enum",
			yaml: "schemas: [{name: Bad, fields: [{name: e, type: u8, enum: Missing}]}]",
			kind: errors.KindSchema,
			path: []string{"Bad", "e"},
		},
		{
			name: "invalid yaml",
			yaml: "schemas: [",
			kind: errors.KindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dsl.Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.KindOf(err) != tt.kind {
				t.Errorf("kind = %q, want %q (%v)", errors.KindOf(err), tt.kind, err)
			}
			if tt.path != nil && !reflect.DeepEqual(errors.PathOf(err), tt.path) {
				t.Errorf("path = %v, want %v", errors.PathOf(err), tt.path)
			}
		})
	}
}

func TestAddDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.yaml":    "schemas: [{name: A, fields: [{name: x, type: u8}]}]",
		"b.yml":     "schemas: [{name: B, fields: [{name: inner, type: chunk, ref: A}]}]",
		"notes.txt": "not a schema",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	r := dsl.NewRegistry()
	if err := r.AddDir(dir); err != nil {
		t.Fatalf("AddDir: %v", err)
	}
	if got := r.Names(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("Names = %v", got)
	}
	if err := r.AddDir(dir); errors.KindOf(err) != errors.KindInvalidInput {
		t.Errorf("re-adding duplicates: %v", err)
	}

	if _, err := dsl.Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
