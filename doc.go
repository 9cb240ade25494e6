// Package abstruct decodes and re-encodes binary file formats described
// declaratively, as trees of typed fields.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	abstruct/            Root package, documentation only
//	├── schema/          Field kinds, schemas, dependencies, unpack/relayout/pack
//	│   └── dsl/         YAML schema declarations compiled into schemas
//	├── codec/           Fixed-width integer formats and LEB128 varints
//	├── stream/          Seekable byte stream over a buffer or a mapped file
//	├── errors/          Structured error types carrying phase, kind and field path
//	├── formats/         Built-in format registry and detection
//	│   ├── png/         PNG signature and chunk list
//	│   ├── elf/         ELF headers, section and segment tables, symbols
//	│   ├── zip/         ZIP local, central directory and end records
//	│   └── stk500/      STK500v2 programmer packets
//	└── cmd/abstruct/    Command line inspector
//
// # Quick Start
//
// Decode a PNG file, change a chunk and write it back:
//
//	file, err := schema.Open(png.File, "image.png", schema.Strict())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := png.Insert(file, "tEXt", []byte("Comment\x00hello")); err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := schema.Pack(file)
//
// Lengths, counts and checksums that depend on the changed data are
// recomputed by the pack pass.
//
// # Declaring Formats
//
// A format is a set of schemas built from field constructors:
//
//	var Record = schema.Define("Record",
//	    schema.U8("kind", schema.WithEnum(Kinds)),
//	    schema.Struct("length", ">H"),
//	    schema.BytesLen("body", ".length"),
//	    schema.Checksum("crc", codec.U8, []string{"kind", "length", "body"}, schema.XOR8),
//	)
//
// The same declaration can be written in YAML and compiled with package dsl.
//
// # Compliance
//
// Decoding is lenient by default: a wrong magic value, an unknown enum value
// or a checksum mismatch is logged through zap and the decoded value kept.
// Strict turns these violations into errors.
//
// # Thread Safety
//
// Schemas are immutable after declaration and safe for concurrent use. A
// decoded tree is NOT thread-safe and should be used by a single goroutine,
// or access must be synchronized.
package abstruct
