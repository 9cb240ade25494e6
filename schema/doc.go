// Package schema describes binary formats as trees of typed fields and
// converts between such trees and bytes in both directions.
//
// A Schema is an ordered list of field descriptors:
//
//	var Blob = schema.Define("Blob",
//		schema.U32("length"),
//		schema.BytesLen("data", ".length"),
//	)
//
// Unpack reads a tree from bytes, Pack writes it back. Between the two,
// values may be changed freely: lengths, counts and offsets that other
// fields depend on are kept consistent by Relayout, which runs before
// every root pack.
//
// Dependencies are path expressions resolved through the live tree on
// every access:
//
//	.a.b      sibling of the referencing field
//	a.b       from the root
//	@Type.a   from the nearest enclosing chunk of schema Type
//	$.a       from a field bound with Dependency.On
//
// Magic values, enums, checksums and validate hooks report violations
// according to the compliance flags in effect. A violation without the
// matching flag is logged and the decoded value kept.
package schema
