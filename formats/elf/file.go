package elf

import (
	"bytes"
	"fmt"

	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/schema"
)

// NewFile returns an empty ElfFile of the given class with the table
// entry sizes filled in.
func NewFile(class uint64) (*schema.Chunk, error) {
	sizes, ok := entrySizes[class]
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf("unknown ELF class %d", class))
	}
	f, err := File.New()
	if err != nil {
		return nil, err
	}
	h := f.Chunk("header")
	if err := h.Chunk("e_ident").Scalar("EI_CLASS").SetUint(class); err != nil {
		return nil, err
	}
	// switch the address-sized unions to the new class
	if _, err := f.Relayout(0); err != nil {
		return nil, err
	}
	if err := h.Scalar("e_phentsize").SetInt(int64(sizes.segment)); err != nil {
		return nil, err
	}
	if err := h.Scalar("e_shentsize").SetInt(int64(sizes.section)); err != nil {
		return nil, err
	}
	return f, nil
}

// Compact places the segment header table right after the file header
// and the section header table right after it.
func Compact(f *schema.Chunk) error {
	if _, err := f.Relayout(0); err != nil {
		return err
	}
	h := f.Chunk("header")
	segments, sections := f.Array("segments_header"), f.Array("sections_header")

	at := int64(h.Size())
	phoff, shoff := int64(0), int64(0)
	if segments.Len() > 0 {
		phoff = at
		at += int64(segments.Size())
	}
	if sections.Len() > 0 {
		shoff = at
	}
	if err := h.Select("e_phoff").SetValue(phoff); err != nil {
		return errors.Prepend(errors.Prepend(err, "e_phoff"), "header")
	}
	if err := h.Select("e_shoff").SetValue(shoff); err != nil {
		return errors.Prepend(errors.Prepend(err, "e_shoff"), "header")
	}
	return nil
}

// ClassOf returns EI_CLASS of an ElfFile.
func ClassOf(f *schema.Chunk) uint64 {
	return f.Chunk("header").Chunk("e_ident").Scalar("EI_CLASS").Uint()
}

// Section returns the bytes of section i, read from raw, the file the
// ElfFile was decoded from. SHT_NOBITS sections have no bytes.
func Section(f *schema.Chunk, raw []byte, i int) ([]byte, error) {
	path := fmt.Sprintf("sections_header.%d", i)
	sh, err := f.Lookup(path)
	if err != nil {
		return nil, err
	}
	hdr := sh.(*schema.Chunk)
	if t, _ := hdr.Scalar("sh_type").EnumName(); t == "SHT_NOBITS" {
		return nil, nil
	}
	off, err := hdr.Int("sh_offset")
	if err != nil {
		return nil, err
	}
	size, err := hdr.Int("sh_size")
	if err != nil {
		return nil, err
	}
	if off < 0 || size < 0 || off+size > int64(len(raw)) {
		return nil, errors.Prepend(errors.Truncated(errors.PhaseUnpack, int(size), max(len(raw)-int(off), 0), nil), path)
	}
	return raw[off : off+size], nil
}

// SectionNames returns the name of every section, looked up in the
// section name string table (e_shstrndx).
func SectionNames(f *schema.Chunk, raw []byte) ([]string, error) {
	n := f.Array("sections_header").Len()
	if n == 0 {
		return nil, nil
	}
	strtab, err := Section(f, raw, int(f.Chunk("header").Scalar("e_shstrndx").Uint()))
	if err != nil {
		return nil, err
	}
	names := make([]string, n)
	for i, el := range f.Array("sections_header").Elements() {
		names[i] = cstring(strtab, el.(*schema.Chunk).Scalar("sh_name").Uint())
	}
	return names, nil
}

// SectionByName returns the index and bytes of the first section called
// name.
func SectionByName(f *schema.Chunk, raw []byte, name string) (int, []byte, error) {
	names, err := SectionNames(f, raw)
	if err != nil {
		return -1, nil, err
	}
	for i, n := range names {
		if n == name {
			data, err := Section(f, raw, i)
			return i, data, err
		}
	}
	return -1, nil, errors.Unresolved(name, "no such section")
}

// Symbol is a decoded symbol table entry with its resolved name.
type Symbol struct {
	Entry *schema.Chunk
	Name  string
}

// Symbols decodes the symbol table called table (".symtab" or ".dynsym"),
// naming entries through the string table its sh_link points at.
func Symbols(f *schema.Chunk, raw []byte, table string) ([]Symbol, error) {
	class := ClassOf(f)
	sizes, ok := entrySizes[class]
	if !ok {
		return nil, errors.Unrecoverable(errors.PhaseResolve, fmt.Sprintf("unknown ELF class %d", class))
	}
	entry := Symbol32
	if class == Class64 {
		entry = Symbol64
	}

	i, data, err := SectionByName(f, raw, table)
	if err != nil {
		return nil, err
	}
	link, err := f.Int(fmt.Sprintf("sections_header.%d.sh_link", i))
	if err != nil {
		return nil, err
	}
	strtab, err := Section(f, raw, int(link))
	if err != nil {
		return nil, err
	}

	out := make([]Symbol, 0, len(data)/sizes.symbol)
	for off := 0; off+sizes.symbol <= len(data); off += sizes.symbol {
		sym, err := schema.Unpack(entry, data[off:off+sizes.symbol])
		if err != nil {
			return out, errors.Prepend(err, fmt.Sprint(len(out)))
		}
		out = append(out, Symbol{Entry: sym, Name: cstring(strtab, sym.Scalar("st_name").Uint())})
	}
	return out, nil
}

// Bind and Kind split st_info.
func Bind(sym *schema.Chunk) uint64 { return sym.Scalar("st_info").Uint() >> 4 }
func Kind(sym *schema.Chunk) uint64 { return sym.Scalar("st_info").Uint() & 0xf }

func cstring(tab []byte, off uint64) string {
	if off >= uint64(len(tab)) {
		return ""
	}
	s := tab[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
