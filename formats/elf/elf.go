// Package elf declares the Executable and Linkable Format: the file
// header, the section and segment header tables, and symbol entries.
//
// Address-sized fields (Elf_Addr, Elf_Off, Elf_Xword) are four bytes wide
// in ELFCLASS32 files and eight in ELFCLASS64 ones; they are unions keyed
// by EI_CLASS. Only little-endian (ELFDATA2LSB) files are described.
package elf

import (
	"fmt"

	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/schema"
)

// fileClass reaches the identification of the enclosing ElfFile from any
// header table entry.
const fileClass = "@ElfFile.header.e_ident.EI_CLASS"

var classDep = schema.Dep(fileClass)

// sized declares a field whose width follows the ELF class found at key.
func sized(name, key string, opts ...schema.FieldOption) schema.FieldSpec {
	return schema.SelectOn(name, key, schema.Table{
		Class32: schema.U32(name, opts...),
		Class64: schema.U64(name, opts...),
	})
}

var (
	Ident = schema.Define("ElfIdent",
		schema.Char("EI_MAG0", schema.Default("\x7f"), schema.Magic()),
		schema.Char("EI_MAG1", schema.Default("E"), schema.Magic()),
		schema.Char("EI_MAG2", schema.Default("L"), schema.Magic()),
		schema.Char("EI_MAG3", schema.Default("F"), schema.Magic()),
		schema.U8("EI_CLASS", schema.Default(Class32), schema.WithEnum(Class)),
		schema.U8("EI_DATA", schema.Default(DataLSB), schema.WithEnum(Data)),
		schema.U8("EI_VERSION", schema.Default(1)),
		schema.U8("EI_OSABI", schema.WithEnum(OSABI)),
		schema.U8("EI_ABIVERSION"),
		schema.Bytes("EI_PAD", 7),
	).WithValidate(func(c *schema.Chunk) bool {
		return c.Scalar("EI_DATA").Uint() == DataLSB
	})

	Header = schema.Define("ElfHeader",
		schema.Embed("e_ident", Ident),
		schema.U16("e_type", schema.Default("ET_EXEC"), schema.WithEnum(Type)),
		schema.U16("e_machine", schema.Default("EM_386"), schema.WithEnum(Machine)),
		schema.U32("e_version", schema.Default("EV_CURRENT"), schema.WithEnum(Version)),
		sized("e_entry", ".e_ident.EI_CLASS"),
		sized("e_phoff", ".e_ident.EI_CLASS"),
		sized("e_shoff", ".e_ident.EI_CLASS"),
		schema.U32("e_flags"),
		schema.U16("e_ehsize", schema.EqualsTo(".size")),
		schema.U16("e_phentsize"),
		schema.U16("e_phnum"),
		schema.U16("e_shentsize"),
		schema.U16("e_shnum"),
		schema.U16("e_shstrndx"),
	)

	SectionHeader = schema.Define("SectionHeader",
		schema.U32("sh_name"),
		schema.U32("sh_type", schema.Default("SHT_NULL"), schema.WithEnum(SectionType)),
		sized("sh_flags", fileClass),
		sized("sh_addr", fileClass),
		sized("sh_offset", fileClass),
		sized("sh_size", fileClass),
		schema.U32("sh_link"),
		schema.U32("sh_info"),
		sized("sh_addralign", fileClass),
		sized("sh_entsize", fileClass),
	)

	// SegmentHeader moves p_flags up to second place in ELFCLASS64
	// files.
	SegmentHeader = schema.Define("SegmentHeader",
		schema.U32("p_type", schema.Default("PT_NULL"), schema.WithEnum(SegmentType)),
		sized("p_offset", fileClass),
		sized("p_vaddr", fileClass),
		sized("p_paddr", fileClass),
		sized("p_filesz", fileClass),
		sized("p_memsz", fileClass),
		schema.U32("p_flags"),
		sized("p_align", fileClass),
	).WithOrder(segmentOrder)

	File = schema.Define("ElfFile",
		schema.Embed("header", Header),
		schema.Array("sections_header", schema.Embed("section", SectionHeader),
			schema.CountFrom(".header.e_shnum"),
			schema.ArrayWith(schema.At(".header.e_shoff"))),
		schema.Array("segments_header", schema.Embed("segment", SegmentHeader),
			schema.CountFrom(".header.e_phnum"),
			schema.ArrayWith(schema.At(".header.e_phoff"))),
	)
)

var segment64 = []string{"p_type", "p_flags", "p_offset", "p_vaddr", "p_paddr", "p_filesz", "p_memsz", "p_align"}

func segmentOrder(c *schema.Chunk) ([]string, error) {
	class, err := classDep.Value(c)
	if err != nil {
		return nil, err
	}
	switch class {
	case Class32:
		return c.Schema().FieldNames(), nil
	case Class64:
		return segment64, nil
	}
	return nil, errors.Unrecoverable(errors.PhaseResolve, fmt.Sprintf("unknown ELF class %d", class))
}

// Symbol tables use a different field order per class, so each class has
// its own entry schema.
var (
	Symbol32 = schema.Define("Elf32_Sym",
		schema.U32("st_name"),
		schema.U32("st_value"),
		schema.U32("st_size"),
		schema.U8("st_info"),
		schema.U8("st_other"),
		schema.U16("st_shndx"),
	)

	Symbol64 = schema.Define("Elf64_Sym",
		schema.U32("st_name"),
		schema.U8("st_info"),
		schema.U8("st_other"),
		schema.U16("st_shndx"),
		schema.U64("st_value"),
		schema.U64("st_size"),
	)
)

// Entry sizes of the header tables per class.
var entrySizes = map[uint64]struct{ segment, section, symbol int }{
	Class32: {32, 40, 16},
	Class64: {56, 64, 24},
}
