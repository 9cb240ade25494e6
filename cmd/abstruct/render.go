package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	gojson "github.com/goccy/go-json"

	"github.com/wippyai/abstruct/schema"
)

var (
	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	offsetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	badStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// row is one field of a decoded tree, flattened for display.
type row struct {
	field  schema.Field
	path   []string
	name   string
	kind   string
	value  string
	offset int64
	size   int
	// bad marks a checksum that does not match its data.
	bad    bool
	branch bool
}

func (r row) depth() int { return len(r.path) }

func (r row) dotted() string { return strings.Join(r.path, ".") }

// rows flattens root depth-first. preview caps how many bytes of a byte
// field are shown.
func rows(root schema.Field, preview int) []row {
	var out []row
	_ = schema.Walk(root, func(path []string, f schema.Field) error {
		name := f.Name()
		if len(path) > 0 {
			name = path[len(path)-1]
		}
		r := row{
			field:  f,
			path:   append([]string(nil), path...),
			name:   name,
			kind:   kindOf(f),
			offset: f.Offset(),
			size:   f.Size(),
		}
		r.value, r.bad = valueOf(f, preview)
		r.branch = isBranch(f)
		out = append(out, r)
		return nil
	})
	return out
}

// isBranch reports whether Walk descends below f.
func isBranch(f schema.Field) bool {
	if sel, ok := f.(*schema.SelectField); ok {
		if sel.Chosen() == nil {
			return false
		}
		f = sel.Chosen()
	}
	return len(schema.Children(f)) > 0
}

func kindOf(f schema.Field) string {
	switch v := f.(type) {
	case *schema.Chunk:
		return v.Schema().Name()
	case *schema.ArrayField:
		return fmt.Sprintf("array[%d]", v.Len())
	case *schema.SelectField:
		if v.Chosen() == nil {
			return "select"
		}
		return "select/" + kindOf(v.Chosen())
	case *schema.ChecksumField:
		return "checksum " + v.Format().String()
	case *schema.ScalarField:
		if e := v.Enum(); e != nil {
			return e.TypeName()
		}
		return v.Format().String()
	case *schema.BytesField:
		return "bytes"
	case *schema.PaddingField:
		return "padding"
	case *schema.VarintField:
		if v.Signed() {
			return "varint"
		}
		return "uvarint"
	}
	return fmt.Sprintf("%T", f)
}

// valueOf renders the value of a leaf. bad reports a checksum mismatch.
func valueOf(f schema.Field, preview int) (value string, bad bool) {
	switch v := f.(type) {
	case *schema.SelectField:
		if v.Chosen() == nil {
			return "", false
		}
		return valueOf(v.Chosen(), preview)
	case *schema.ChecksumField:
		ok, err := v.Verify()
		switch {
		case err != nil:
			return v.ScalarField.String() + " (unverifiable)", true
		case !ok:
			want, _ := v.Compute()
			return fmt.Sprintf("%s (expected %#x)", v.ScalarField.String(), want), true
		}
		return v.ScalarField.String(), false
	case *schema.ScalarField:
		return v.String(), false
	case *schema.BytesField:
		return bytesPreview(v.Bytes(), preview), false
	case *schema.PaddingField:
		return bytesPreview(v.Raw(), preview), false
	case *schema.VarintField:
		return fmt.Sprint(v.Value()), false
	}
	return "", false
}

func bytesPreview(b []byte, limit int) string {
	shown := b
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	s := hex.EncodeToString(shown)
	if len(shown) < len(b) {
		s += "..."
	}
	if printable(shown) && len(shown) > 0 {
		s += fmt.Sprintf(" %q", shown)
	}
	return s
}

func printable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// printer writes rows as an indented table, styled when color is set.
type printer struct {
	w     io.Writer
	color bool
}

func (p printer) paint(st lipgloss.Style, s string) string {
	if !p.color || s == "" {
		return s
	}
	return st.Render(s)
}

func (p printer) tree(rs []row) error {
	width := 0
	for _, r := range rs {
		width = max(width, 2*r.depth()+len(r.name))
	}
	for _, r := range rs {
		label := strings.Repeat("  ", r.depth()) + r.name
		label += strings.Repeat(" ", width-len(label))
		value := r.value
		if r.bad {
			value = p.paint(badStyle, value)
		}
		line := fmt.Sprintf("%s  %s  %s  %s",
			p.paint(nameStyle, label),
			p.paint(offsetStyle, fmt.Sprintf("@%-6d %6d", r.offset, r.size)),
			p.paint(kindStyle, r.kind),
			value)
		if _, err := fmt.Fprintln(p.w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

func (p printer) spans(spans []schema.NamedSpan) error {
	width := 0
	for _, s := range spans {
		width = max(width, len(s.Name))
	}
	for _, s := range spans {
		end := s.Offset + int64(s.Size)
		if _, err := fmt.Fprintf(p.w, "%-*s  %#08x..%#08x  %d\n", width, s.Name, s.Offset, end, s.Size); err != nil {
			return err
		}
	}
	return nil
}

// node is the JSON form of a decoded field.
type node struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Offset   int64  `json:"offset"`
	Size     int    `json:"size"`
	Value    any    `json:"value,omitempty"`
	Enum     string `json:"enum,omitempty"`
	Children []node `json:"children,omitempty"`
}

func toNode(name string, f schema.Field) node {
	n := node{Name: name, Type: kindOf(f), Offset: f.Offset(), Size: f.Size()}
	if sel, ok := f.(*schema.SelectField); ok && sel.Chosen() != nil {
		f = sel.Chosen()
	}
	switch v := f.(type) {
	case *schema.ChecksumField:
		n.Value = v.Uint()
	case *schema.ScalarField:
		if v.Format().Signed {
			n.Value = v.Int()
		} else {
			n.Value = v.Uint()
		}
		n.Enum, _ = v.EnumName()
	case *schema.BytesField:
		n.Value = hex.EncodeToString(v.Bytes())
	case *schema.PaddingField:
		n.Value = hex.EncodeToString(v.Raw())
	case *schema.VarintField:
		n.Value = v.Value()
	}
	_, isArray := f.(*schema.ArrayField)
	for i, c := range schema.Children(f) {
		cname := c.Name()
		if isArray {
			cname = fmt.Sprint(i)
		}
		n.Children = append(n.Children, toNode(cname, c))
	}
	return n
}

func writeJSON(w io.Writer, root schema.Field) error {
	data, err := gojson.MarshalIndent(toNode(root.Name(), root), "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
