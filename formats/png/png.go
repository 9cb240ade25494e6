// Package png declares the PNG container: the signature followed by
// length-prefixed, CRC-protected chunks up to IEND.
package png

import (
	"fmt"

	"github.com/wippyai/abstruct/codec"
	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/schema"
)

// Signature opens every PNG file.
var Signature = []byte("\x89PNG\r\n\x1a\n")

// ColorType is the IHDR colour type.
var ColorType = schema.NewEnum("ColorType", map[string]uint64{
	"GRAYSCALE":       0,
	"RGB":             2,
	"RGB_PALETTE":     3,
	"GRAYSCALE_ALPHA": 4,
	"RGBA":            6,
})

var (
	Header = schema.Define("PNGHeader",
		schema.Bytes("magic", len(Signature), schema.Default(Signature), schema.Magic()),
	)

	// Chunk is one length/type/data/crc record. The CRC covers type and
	// data and is recomputed on pack.
	Chunk = schema.Define("PNGChunk",
		schema.Struct("length", ">I"),
		schema.Bytes("type", 4, schema.Default("IEND")),
		schema.BytesLen("data", ".length"),
		schema.Checksum("crc", codec.U32.BigEndian(), []string{"type", "data"}, schema.CRC32),
	)

	IHDR = schema.Define("IHDRData",
		schema.Struct("width", ">I"),
		schema.Struct("height", ">I"),
		schema.U8("depth"),
		schema.U8("color", schema.WithEnum(ColorType)),
		schema.U8("compression"),
		schema.U8("filter"),
		schema.U8("interlace"),
	)

	PLTEEntry = schema.Define("PLTEEntry",
		schema.U8("r"),
		schema.U8("g"),
		schema.U8("b"),
	)

	File = schema.Define("PNGFile",
		schema.Embed("header", Header),
		schema.Array("chunks", schema.Embed("chunk", Chunk), schema.Canary(isEnd)),
	)
)

func isEnd(f schema.Field) bool {
	c, ok := f.(*schema.Chunk)
	return ok && Type(c) == "IEND"
}

// Type returns the four-letter type of a PNGChunk.
func Type(c *schema.Chunk) string {
	return string(c.Bytes("type").Bytes())
}

// IsCritical reports whether a chunk must be understood by decoders:
// critical chunk types start with an upper-case letter.
func IsCritical(c *schema.Chunk) bool {
	t := c.Bytes("type").Bytes()
	return len(t) == 4 && t[0]&0x20 == 0
}

// Find returns the first chunk of type typ in a PNGFile.
func Find(file *schema.Chunk, typ string) (*schema.Chunk, bool) {
	for _, el := range file.Array("chunks").Elements() {
		c := el.(*schema.Chunk)
		if Type(c) == typ {
			return c, true
		}
	}
	return nil, false
}

// ImageHeader decodes the IHDR chunk of a PNGFile.
func ImageHeader(file *schema.Chunk, opts ...schema.Option) (*schema.Chunk, error) {
	c, ok := Find(file, "IHDR")
	if !ok {
		return nil, errors.Unresolved("chunks", "no IHDR chunk")
	}
	return schema.Unpack(IHDR, c.Bytes("data").Bytes(), opts...)
}

// Palette decodes the PLTE chunk of a PNGFile into its entries.
func Palette(file *schema.Chunk) ([]*schema.Chunk, error) {
	c, ok := Find(file, "PLTE")
	if !ok {
		return nil, nil
	}
	data := c.Bytes("data").Bytes()
	if len(data)%3 != 0 {
		return nil, errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("PLTE length %d is not a multiple of 3", len(data)))
	}
	out := make([]*schema.Chunk, 0, len(data)/3)
	for i := 0; i < len(data); i += 3 {
		e, err := schema.Unpack(PLTEEntry, data[i:i+3])
		if err != nil {
			return nil, errors.Prepend(err, fmt.Sprint(i/3))
		}
		out = append(out, e)
	}
	return out, nil
}

// Insert adds a chunk of type typ before the trailing IEND chunk, or at
// the end when there is none.
func Insert(file *schema.Chunk, typ string, data []byte) (*schema.Chunk, error) {
	if len(typ) != 4 {
		return nil, errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("chunk type %q is not four bytes", typ))
	}
	chunks := file.Array("chunks")
	el := chunks.Elem().New().(*schema.Chunk)
	if err := el.Bytes("type").SetValue(typ); err != nil {
		return nil, err
	}
	if err := el.Bytes("data").SetValue(data); err != nil {
		return nil, err
	}
	list := chunks.Elements()
	at := len(list)
	if at > 0 && isEnd(list[at-1]) {
		at--
	}
	list = append(list[:at], append([]schema.Field{el}, list[at:]...)...)
	if err := chunks.SetValue(list); err != nil {
		return nil, err
	}
	return el, nil
}
