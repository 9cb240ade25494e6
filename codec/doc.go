// Package codec implements the primitive encodings used by schema fields:
// fixed-width integers described by struct-style format strings and
// LEB128 variable-width integers.
//
//	f := codec.MustParseFormat(">H")
//	v, err := f.Decode([]byte{0x00, 0x05}) // 5
//	b := f.Encode(5)                        // 00 05
package codec
