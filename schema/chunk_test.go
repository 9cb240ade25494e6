package schema_test

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/schema"
	"github.com/wippyai/abstruct/stream"
)

var blob = schema.Define("Blob",
	schema.U32("length"),
	schema.BytesLen("data", ".length"),
)

var header = schema.Define("Header",
	schema.U8("a"),
	schema.U16("b"),
	schema.Bytes("c", 3),
	schema.U32("d"),
)

func TestUnpackPackRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		s    *schema.Schema
		data []byte
	}{
		{"blob", blob, []byte{5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o'}},
		{"empty blob", blob, []byte{0, 0, 0, 0}},
		{"header", header, []byte{1, 2, 3, 'x', 'y', 'z', 4, 5, 6, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := schema.Unpack(tt.s, tt.data)
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if c.Size() != len(tt.data) {
				t.Errorf("Size = %d, want %d", c.Size(), len(tt.data))
			}
			if !bytes.Equal(c.Raw(), tt.data) {
				t.Errorf("Raw = %x, want %x", c.Raw(), tt.data)
			}
			out, err := schema.Pack(c)
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			if !bytes.Equal(out, tt.data) {
				t.Errorf("Pack = %x, want %x", out, tt.data)
			}
		})
	}
}

func TestPackIdempotent(t *testing.T) {
	c, err := schema.Unpack(blob, []byte{3, 0, 0, 0, 'a', 'b', 'c'})
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	first, err := schema.Pack(c)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	again, err := schema.Unpack(blob, first)
	if err != nil {
		t.Fatalf("Unpack packed: %v", err)
	}
	second, err := schema.Pack(again)
	if err != nil {
		t.Fatalf("Pack again: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("second pack %x differs from first %x", second, first)
	}
}

func TestOffsetsAreContiguous(t *testing.T) {
	c := header.MustNew()
	want := []schema.NamedSpan{
		{Name: "a", Span: schema.Span{Offset: 0, Size: 1}},
		{Name: "b", Span: schema.Span{Offset: 1, Size: 2}},
		{Name: "c", Span: schema.Span{Offset: 3, Size: 3}},
		{Name: "d", Span: schema.Span{Offset: 6, Size: 4}},
	}
	if got := c.LayoutList(); !reflect.DeepEqual(got, want) {
		t.Errorf("LayoutList = %+v, want %+v", got, want)
	}
	if c.Size() != 10 {
		t.Errorf("Size = %d, want 10", c.Size())
	}
	if got := c.Layout()["d"]; got.Offset != 6 {
		t.Errorf("Layout[d].Offset = %d, want 6", got.Offset)
	}
}

func TestRelayoutIdempotent(t *testing.T) {
	c, err := schema.Unpack(blob, []byte{2, 0, 0, 0, 'h', 'i'})
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	n1, err := c.Relayout(0)
	if err != nil {
		t.Fatalf("Relayout: %v", err)
	}
	layout1, raw1 := c.LayoutList(), c.Raw()
	n2, err := c.Relayout(0)
	if err != nil {
		t.Fatalf("Relayout: %v", err)
	}
	if n1 != n2 {
		t.Errorf("sizes differ: %d then %d", n1, n2)
	}
	if !reflect.DeepEqual(layout1, c.LayoutList()) {
		t.Errorf("layout changed: %+v then %+v", layout1, c.LayoutList())
	}
	if !bytes.Equal(raw1, c.Raw()) {
		t.Errorf("raw changed: %x then %x", raw1, c.Raw())
	}
}

func TestLengthFollowsData(t *testing.T) {
	c := blob.MustNew()
	if err := c.Bytes("data").SetValue([]byte("hello")); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if got := c.Scalar("length").Uint(); got != 5 {
		t.Errorf("length = %d, want 5", got)
	}
	out, err := schema.Pack(c)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if want := []byte{5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o'}; !bytes.Equal(out, want) {
		t.Errorf("Pack = %x, want %x", out, want)
	}

	// shrinking the length truncates the data on the next pack
	if err := c.Scalar("length").SetInt(2); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	out, err = schema.Pack(c)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if want := []byte{2, 0, 0, 0, 'h', 'e'}; !bytes.Equal(out, want) {
		t.Errorf("Pack = %x, want %x", out, want)
	}

	if err := c.Scalar("length").SetInt(4); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if _, err := c.Relayout(0); err != nil {
		t.Fatalf("Relayout: %v", err)
	}
	if got := c.Bytes("data").Bytes(); !bytes.Equal(got, []byte{'h', 'e', 0, 0}) {
		t.Errorf("data = %q, want zero padded", got)
	}
}

func TestFixedBytesRejectsWrongLength(t *testing.T) {
	c := header.MustNew()
	err := c.Bytes("c").SetValue("toolong")
	if errors.KindOf(err) != errors.KindSizeMismatch {
		t.Fatalf("SetValue error = %v, want size mismatch", err)
	}
}

func TestChunkValue(t *testing.T) {
	c := header.MustNew()
	err := c.SetValue(map[string]any{"a": 7, "b": uint16(0x0102), "c": "abc"})
	if err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	v := c.Value().(map[string]any)
	if v["a"] != uint64(7) {
		t.Errorf("a = %v, want 7", v["a"])
	}
	if !bytes.Equal(v["c"].([]byte), []byte("abc")) {
		t.Errorf("c = %v, want abc", v["c"])
	}

	err = c.SetValue(map[string]any{"a": 300})
	if errors.KindOf(err) != errors.KindInvalidInput {
		t.Fatalf("out of range error = %v", err)
	}
	if path := errors.PathOf(err); !reflect.DeepEqual(path, []string{"a"}) {
		t.Errorf("path = %v, want [a]", path)
	}

	err = c.SetValue(map[string]any{"nope": 1})
	if path := errors.PathOf(err); !reflect.DeepEqual(path, []string{"nope"}) {
		t.Errorf("unknown field path = %v, want [nope]", path)
	}
}

var inner = schema.Define("Inner",
	schema.U8("x"),
	schema.U32("y"),
)

var outer = schema.Define("Outer",
	schema.U8("version"),
	schema.Embed("inner", inner),
)

func TestUnpackErrorPath(t *testing.T) {
	c, err := schema.Unpack(outer, []byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.KindOf(err) != errors.KindTruncated {
		t.Errorf("kind = %s, want truncated", errors.KindOf(err))
	}
	if path := errors.PathOf(err); !reflect.DeepEqual(path, []string{"inner", "y"}) {
		t.Errorf("path = %v, want [inner y]", path)
	}
	if c == nil {
		t.Fatal("partial tree not returned")
	}
	if got := c.Chunk("inner").Scalar("x").Uint(); got != 2 {
		t.Errorf("partial inner.x = %d, want 2", got)
	}
	if c.Phase() != schema.PhaseError {
		t.Errorf("phase = %s, want error", c.Phase())
	}
}

func TestExtend(t *testing.T) {
	base := schema.Define("Base", schema.U8("kind"), schema.U16("value"))
	derived := base.Extend("Derived", schema.U32("value"), schema.U8("extra"))

	if got, want := derived.FieldNames(), []string{"kind", "value", "extra"}; !reflect.DeepEqual(got, want) {
		t.Errorf("FieldNames = %v, want %v", got, want)
	}
	if !derived.Is("Base") || !derived.Is("Derived") || derived.Is("Other") {
		t.Error("Is does not follow the base chain")
	}
	c := derived.MustNew()
	if c.Size() != 6 {
		t.Errorf("Size = %d, want 6", c.Size())
	}
	if got := base.MustNew().Size(); got != 3 {
		t.Errorf("base Size = %d, want 3", got)
	}
}

func TestOrderHook(t *testing.T) {
	swapped := schema.Define("Swapped", schema.U8("a"), schema.U8("b")).
		WithOrder(func(*schema.Chunk) ([]string, error) { return []string{"b", "a"}, nil })

	c, err := schema.Unpack(swapped, []byte{1, 2})
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if c.Scalar("b").Uint() != 1 || c.Scalar("a").Uint() != 2 {
		t.Errorf("a=%d b=%d, want a=2 b=1", c.Scalar("a").Uint(), c.Scalar("b").Uint())
	}
	out, err := schema.Pack(c)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !bytes.Equal(out, []byte{1, 2}) {
		t.Errorf("Pack = %x, want 0102", out)
	}

	broken := schema.Define("Broken", schema.U8("a")).
		WithOrder(func(*schema.Chunk) ([]string, error) { return []string{"zzz"}, nil })
	if _, err := schema.Unpack(broken, []byte{1}); errors.KindOf(err) != errors.KindSchema {
		t.Errorf("unknown field in order: %v", err)
	}
}

func TestExplicitOffset(t *testing.T) {
	dir := schema.Define("Dir",
		schema.U8("off"),
		schema.U8("len"),
		schema.Bytes("x", 2, schema.At(".off")),
	)
	data := []byte{4, 2, 0, 0, 'h', 'i'}
	c, err := schema.Unpack(dir, data)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got := c.Bytes("x").Bytes(); string(got) != "hi" {
		t.Errorf("x = %q, want hi", got)
	}
	if got := c.Field("x").Offset(); got != 4 {
		t.Errorf("x offset = %d, want 4", got)
	}
	out, err := schema.Pack(c)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("Pack = %x, want %x", out, data)
	}

	fixed := schema.Define("Fixed", schema.U8("a"), schema.U8("b", schema.AtOffset(3)))
	out, err = schema.Pack(fixed.MustNew())
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(out) != 4 {
		t.Errorf("packed %d bytes, want 4", len(out))
	}
}

func TestPackUnresolvedOffset(t *testing.T) {
	c := schema.Embed("blob", blob).New().(*schema.Chunk)
	err := c.PackWith(stream.NewBuffer(), schema.PackOptions{SkipRelayout: true})
	if errors.KindOf(err) != errors.KindOffsetUnresolved {
		t.Fatalf("error = %v, want offset_unresolved", err)
	}
	if path := errors.PathOf(err); !reflect.DeepEqual(path, []string{"length"}) {
		t.Errorf("path = %v, want [length]", path)
	}
}

func TestUnresolvedDependency(t *testing.T) {
	bad := schema.Define("Bad", schema.BytesLen("data", ".missing"))
	_, err := bad.New()
	if errors.KindOf(err) != errors.KindUnresolved {
		t.Fatalf("error = %v, want unresolved", err)
	}
	if path := errors.PathOf(err); !reflect.DeepEqual(path, []string{"data"}) {
		t.Errorf("path = %v, want [data]", path)
	}
}

func TestEqualsToSize(t *testing.T) {
	sized := schema.Define("Sized",
		schema.U8("magic"),
		schema.U16("total", schema.EqualsTo(".size")),
		schema.BytesLen("body", ".magic"),
	)
	c := sized.MustNew()
	if got := c.Scalar("total").Uint(); got != 3 {
		t.Errorf("total = %d, want 3", got)
	}
	if err := c.Bytes("body").SetValue("hello"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	out, err := schema.Pack(c)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if want := []byte{5, 8, 0, 'h', 'e', 'l', 'l', 'o'}; !bytes.Equal(out, want) {
		t.Errorf("Pack = %x, want %x", out, want)
	}
}

func TestLookup(t *testing.T) {
	c := header.MustNew()
	f, err := c.Lookup("b")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if f.Name() != "b" {
		t.Errorf("Lookup(b).Name() = %q", f.Name())
	}
	if n, err := c.Int("c.size"); err != nil || n != 3 {
		t.Errorf("Int(c.size) = %d, %v", n, err)
	}
	if n, err := c.Int("d.offset"); err != nil || n != 6 {
		t.Errorf("Int(d.offset) = %d, %v", n, err)
	}
	if _, err := c.Lookup("c.size"); errors.KindOf(err) != errors.KindUnresolved {
		t.Errorf("Lookup of attribute: %v", err)
	}
	if _, err := c.Lookup("zzz"); errors.KindOf(err) != errors.KindUnresolved {
		t.Errorf("Lookup of missing: %v", err)
	}
}

func TestVarintAndPadding(t *testing.T) {
	rec := schema.Define("Rec",
		schema.Uvarint("n"),
		schema.BytesLen("data", ".n"),
		schema.Padding("rest"),
	)
	payload := bytes.Repeat([]byte{'a'}, 200)
	data := append([]byte{0xc8, 0x01}, payload...)
	data = append(data, 9, 9)

	c, err := schema.Unpack(rec, data)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got := c.Varint("n").Uint(); got != 200 {
		t.Errorf("n = %d, want 200", got)
	}
	if got := c.Padding("rest").Raw(); !bytes.Equal(got, []byte{9, 9}) {
		t.Errorf("rest = %x, want 0909", got)
	}

	if err := c.Bytes("data").SetValue("tiny"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	out, err := schema.Pack(c)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if want := []byte{4, 't', 'i', 'n', 'y', 9, 9}; !bytes.Equal(out, want) {
		t.Errorf("Pack = %x, want %x", out, want)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(path, []byte{3, 0, 0, 0, 'a', 'b', 'c'}, 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := schema.Open(blob, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := c.Bytes("data").Bytes(); string(got) != "abc" {
		t.Errorf("data = %q, want abc", got)
	}

	if _, err := schema.Open(blob, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStartAt(t *testing.T) {
	data := []byte{0xff, 0xff, 1, 0, 0, 0, 'z'}
	c, err := schema.Unpack(blob, data, schema.StartAt(2))
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if c.Offset() != 2 || c.Field("data").Offset() != 6 {
		t.Errorf("offsets = %d, %d, want 2, 6", c.Offset(), c.Field("data").Offset())
	}
}

func TestWalk(t *testing.T) {
	c := outer.MustNew()
	var paths []string
	err := schema.Walk(c, func(path []string, f schema.Field) error {
		paths = append(paths, filepath.Join(append([]string{"/"}, path...)...))
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"/", "/version", "/inner", "/inner/x", "/inner/y"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestEmbeddedDefaultWritesRootLength(t *testing.T) {
	body := schema.Define("Body",
		schema.U8("length"),
		schema.BytesLen("data", "length", schema.Default("ABC")),
	)
	doc := schema.Define("Doc",
		schema.U32("length"),
		schema.Embed("body", body),
	)

	c := doc.MustNew()
	if got := c.Scalar("length").Uint(); got != 3 {
		t.Errorf("root length = %d, want 3", got)
	}
	b := c.Chunk("body")
	if got := b.Scalar("length").Uint(); got != 0 {
		t.Errorf("body length = %d, want 0", got)
	}
	if got := b.Bytes("data").Bytes(); string(got) != "ABC" {
		t.Errorf("data = %q, want ABC", got)
	}
	out, err := schema.Pack(c)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if want := []byte{3, 0, 0, 0, 0, 'A', 'B', 'C'}; !bytes.Equal(out, want) {
		t.Errorf("Pack = %x, want %x", out, want)
	}

	decoded, err := schema.Unpack(doc, []byte{2, 0, 0, 0, 7, 'h', 'i'})
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got := decoded.Scalar("length").Uint(); got != 2 {
		t.Errorf("decoded root length = %d, want 2", got)
	}
	if got := decoded.Chunk("body").Bytes("data").Bytes(); string(got) != "hi" {
		t.Errorf("decoded data = %q, want hi", got)
	}
}

func TestArrayElementDefaultWritesRootLength(t *testing.T) {
	item := schema.Define("Item",
		schema.BytesLen("data", "size", schema.Default("xy")),
	)
	doc := schema.Define("Sized",
		schema.U8("size"),
		schema.U8("count"),
		schema.Array("items", schema.Embed("item", item), schema.CountFrom(".count")),
	)
	c := doc.MustNew()
	if _, err := c.Array("items").Append(); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := c.Scalar("size").Uint(); got != 2 {
		t.Errorf("size = %d, want 2", got)
	}
	if got := c.Scalar("count").Uint(); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
	out, err := schema.Pack(c)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if want := []byte{2, 1, 'x', 'y'}; !bytes.Equal(out, want) {
		t.Errorf("Pack = %x, want %x", out, want)
	}
}

func TestSetValueDeclarationOrder(t *testing.T) {
	for range 20 {
		c := blob.MustNew()
		if err := c.SetValue(map[string]any{"data": "ab", "length": 9}); err != nil {
			t.Fatalf("SetValue: %v", err)
		}
		if got := c.Scalar("length").Uint(); got != 2 {
			t.Fatalf("length = %d, want 2", got)
		}
	}

	c := blob.MustNew()
	err := c.SetValue(map[string]any{"zz": 1, "yy": 2, "data": "ab"})
	if path := errors.PathOf(err); !reflect.DeepEqual(path, []string{"yy"}) {
		t.Errorf("unknown field path = %v, want [yy]", path)
	}
	if got := c.Bytes("data").Bytes(); len(got) != 0 {
		t.Errorf("data = %q, want nothing assigned", got)
	}
}

func TestPhaseLifecycle(t *testing.T) {
	c := blob.MustNew()
	if c.Phase() != schema.PhaseInit {
		t.Errorf("new phase = %s, want init", c.Phase())
	}
	if got := c.Field("data").Phase(); got != schema.PhaseInit {
		t.Errorf("new data phase = %s, want init", got)
	}
	if _, err := schema.Pack(c); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if c.Phase() != schema.PhaseDone {
		t.Errorf("packed phase = %s, want done", c.Phase())
	}
	if got := c.Field("length").Phase(); got != schema.PhaseDone {
		t.Errorf("packed length phase = %s, want done", got)
	}

	d, err := schema.Unpack(blob, []byte{1, 0, 0, 0, 'x'})
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if d.Phase() != schema.PhaseDone {
		t.Errorf("unpacked phase = %s, want done", d.Phase())
	}
	if got := d.Field("data").Phase(); got != schema.PhaseDone {
		t.Errorf("unpacked data phase = %s, want done", got)
	}
	if _, err := d.Relayout(0); err != nil {
		t.Fatalf("Relayout: %v", err)
	}
	if d.Phase() != schema.PhaseDone {
		t.Errorf("phase after relayout = %s, want done", d.Phase())
	}
}
