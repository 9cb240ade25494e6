// Package formats lists the built-in format declarations and detects
// which one a file holds.
package formats

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wippyai/abstruct/formats/elf"
	"github.com/wippyai/abstruct/formats/png"
	"github.com/wippyai/abstruct/formats/stk500"
	"github.com/wippyai/abstruct/formats/zip"
	"github.com/wippyai/abstruct/schema"
)

// Format describes a top-level schema the tools can decode.
type Format struct {
	Root        *schema.Schema
	Name        string
	Description string
	Magic       []byte
	Extensions  []string
}

var builtin = []Format{
	{
		Name:        "png",
		Description: "Portable Network Graphics image",
		Root:        png.File,
		Magic:       png.Signature,
		Extensions:  []string{".png"},
	},
	{
		Name:        "elf",
		Description: "Executable and Linkable Format, little-endian",
		Root:        elf.File,
		Magic:       []byte("\x7fELF"),
		Extensions:  []string{".elf", ".so", ".o"},
	},
	{
		Name:        "zip-local",
		Description: "ZIP local file entry",
		Root:        zip.LocalFile,
		Magic:       zip.LocalSignature,
		Extensions:  []string{".zip", ".jar", ".apk"},
	},
	{
		Name:        "stk500",
		Description: "STK500v2 programmer packet",
		Root:        stk500.Packet,
	},
}

// All returns the built-in formats sorted by name.
func All() []Format {
	out := append([]Format(nil), builtin...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the built-in format names in sorted order.
func Names() []string {
	all := All()
	out := make([]string, len(all))
	for i, f := range all {
		out[i] = f.Name
	}
	return out
}

// Lookup finds a format by name, ignoring case.
func Lookup(name string) (Format, bool) {
	for _, f := range builtin {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Format{}, false
}

// Detect picks a format by the magic at the start of data, then by the
// extension of path.
func Detect(path string, data []byte) (Format, bool) {
	for _, f := range builtin {
		if len(f.Magic) > 0 && bytes.HasPrefix(data, f.Magic) {
			return f, true
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return Format{}, false
	}
	for _, f := range builtin {
		for _, e := range f.Extensions {
			if e == ext {
				return f, true
			}
		}
	}
	return Format{}, false
}
