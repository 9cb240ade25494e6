package elf

import "github.com/wippyai/abstruct/schema"

const (
	ClassNone = 0
	Class32   = 1
	Class64   = 2

	DataLSB = 1
	DataMSB = 2
)

var Class = schema.NewEnum("ElfEIClass", map[string]uint64{
	"ELFCLASSNONE": ClassNone,
	"ELFCLASS32":   Class32,
	"ELFCLASS64":   Class64,
})

var Data = schema.NewEnum("ElfEIData", map[string]uint64{
	"ELFDATANONE": 0,
	"ELFDATA2LSB": DataLSB,
	"ELFDATA2MSB": DataMSB,
})

var OSABI = schema.NewEnum("ElfOsABI", map[string]uint64{
	"ELFOSABI_NONE":     0,
	"ELFOSABI_HPUX":     1,
	"ELFOSABI_NETBSD":   2,
	"ELFOSABI_GNU":      3,
	"ELFOSABI_SOLARIS":  6,
	"ELFOSABI_AIX":      7,
	"ELFOSABI_IRIX":     8,
	"ELFOSABI_FREEBSD":  9,
	"ELFOSABI_TRU64":    10,
	"ELFOSABI_MODESTO":  11,
	"ELFOSABI_OPENBSD":  12,
	"ELFOSABI_OPENVMS":  13,
	"ELFOSABI_NSK":      14,
	"ELFOSABI_AROS":     15,
	"ELFOSABI_FENIXOS":  16,
	"ELFOSABI_CLOUDABI": 17,
	"ELFOSABI_OPENVOS":  18,
})

var Type = schema.NewEnum("ElfType", map[string]uint64{
	"ET_NONE":   0,
	"ET_REL":    1,
	"ET_EXEC":   2,
	"ET_DYN":    3,
	"ET_CORE":   4,
	"ET_LOPROC": 0xff00,
	"ET_HIPROC": 0xffff,
})

var Machine = schema.NewEnum("ElfMachine", map[string]uint64{
	"EM_NONE":      0,
	"EM_M32":       1,
	"EM_SPARC":     2,
	"EM_386":       3,
	"EM_68K":       4,
	"EM_88K":       5,
	"EM_860":       7,
	"EM_MIPS":      8,
	"EM_PPC":       20,
	"EM_PPC64":     21,
	"EM_S390":      22,
	"EM_ARM":       40,
	"EM_X86_64":    62,
	"EM_AARCH64":   183,
	"EM_RISCV":     243,
	"EM_LOONGARCH": 258,
})

var Version = schema.NewEnum("ElfVersion", map[string]uint64{
	"EV_NONE":    0,
	"EV_CURRENT": 1,
})

var SegmentType = schema.NewEnum("ElfSegmentType", map[string]uint64{
	"PT_NULL":         0,
	"PT_LOAD":         1,
	"PT_DYNAMIC":      2,
	"PT_INTERP":       3,
	"PT_NOTE":         4,
	"PT_SHLIB":        5,
	"PT_PHDR":         6,
	"PT_TLS":          7,
	"PT_LOOS":         0x60000000,
	"PT_SUNW_UNWIND":  0x6464e550,
	"PT_GNU_EH_FRAME": 0x6474e550,
	"PT_GNU_STACK":    0x6474e551,
	"PT_GNU_RELRO":    0x6474e552,
	"PT_GNU_PROPERTY": 0x6474e553,
	"PT_SUNWBSS":      0x6ffffffa,
	"PT_SUNWSTACK":    0x6ffffffb,
	"PT_SUNWDTRACE":   0x6ffffffc,
	"PT_SUNWCAP":      0x6ffffffd,
	"PT_HIOS":         0x6fffffff,
	"PT_LOPROC":       0x70000000,
	"PT_HIPROC":       0x7fffffff,
})

// Segment permission bits, combined in p_flags.
const (
	PF_X = 0x1
	PF_W = 0x2
	PF_R = 0x4
)

var SectionType = schema.NewEnum("ElfSectionType", map[string]uint64{
	"SHT_NULL":          0,
	"SHT_PROGBITS":      1,
	"SHT_SYMTAB":        2,
	"SHT_STRTAB":        3,
	"SHT_RELA":          4,
	"SHT_HASH":          5,
	"SHT_DYNAMIC":       6,
	"SHT_NOTE":          7,
	"SHT_NOBITS":        8,
	"SHT_REL":           9,
	"SHT_SHLIB":         10,
	"SHT_DYNSYM":        11,
	"SHT_INIT_ARRAY":    14,
	"SHT_FINI_ARRAY":    15,
	"SHT_PREINIT_ARRAY": 16,
	"SHT_GROUP":         17,
	"SHT_SYMTAB_SHNDX":  18,
	"SHT_GNU_HASH":      0x6ffffff6,
	"SHT_GNU_VERDEF":    0x6ffffffd,
	"SHT_GNU_VERNEED":   0x6ffffffe,
	"SHT_GNU_VERSYM":    0x6fffffff,
	"SHT_LOPROC":        0x70000000,
	"SHT_HIPROC":        0x7fffffff,
	"SHT_LOUSER":        0x80000000,
	"SHT_HIUSER":        0xffffffff,
})

// Section attribute bits, combined in sh_flags.
const (
	SHF_WRITE     = 0x1
	SHF_ALLOC     = 0x2
	SHF_EXECINSTR = 0x4
)

var SymbolBind = schema.NewEnum("ElfSymbolBindType", map[string]uint64{
	"STB_LOCAL":  0,
	"STB_GLOBAL": 1,
	"STB_WEAK":   2,
})

var SymbolType = schema.NewEnum("ElfSymbolType", map[string]uint64{
	"STT_NOTYPE":  0,
	"STT_OBJECT":  1,
	"STT_FUNC":    2,
	"STT_SECTION": 3,
	"STT_FILE":    4,
	"STT_COMMON":  5,
	"STT_TLS":     6,
})
