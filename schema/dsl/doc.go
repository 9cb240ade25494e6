// Package dsl compiles YAML schema declarations into schema.Schema
// values, so formats can be described without Go code.
//
//	enums:
//	  Kind: {data: 1, text: 2}
//	schemas:
//	  - name: Record
//	    fields:
//	      - {name: kind, type: u8, enum: Kind}
//	      - {name: length, type: u16, endian: big}
//	      - {name: body, type: bytes, size_from: .length}
//	      - {name: crc, type: checksum, over: [kind, length, body]}
//
// Field types are u8..u64, i8..i64, char, int (with a struct-style
// format), bytes, padding, uvarint, varint, chunk, array, select and
// checksum. Schemas may reference one another in any order.
package dsl
