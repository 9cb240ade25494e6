package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/abstruct/schema"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type browseState int

const (
	stateTree browseState = iota
	stateFilter
	stateDetail
)

// browser is a bubbletea model over a decoded tree. Composite rows fold
// and unfold; "/" filters rows by path.
type browser struct {
	err      error
	filename string
	all      []row
	visible  []int
	folded   map[string]bool
	filter   textinput.Model
	cursor   int
	height   int
	state    browseState
}

func newBrowser(filename string, root schema.Field, decodeErr error, preview int) *browser {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "path substring"
	ti.Width = 40

	b := &browser{
		err:      decodeErr,
		filename: filename,
		all:      rows(root, preview),
		folded:   make(map[string]bool),
		filter:   ti,
		height:   20,
	}
	// start with everything below the first level folded
	for _, r := range b.all {
		if r.depth() >= 1 && r.branch {
			b.folded[r.dotted()] = true
		}
	}
	b.refresh()
	return b
}

// refresh recomputes which rows are shown.
func (b *browser) refresh() {
	query := strings.ToLower(b.filter.Value())
	b.visible = b.visible[:0]
	for i, r := range b.all {
		if query != "" {
			if strings.Contains(strings.ToLower(r.dotted()), query) {
				b.visible = append(b.visible, i)
			}
			continue
		}
		if !b.hidden(r) {
			b.visible = append(b.visible, i)
		}
	}
	b.cursor = min(b.cursor, max(len(b.visible)-1, 0))
}

// hidden reports whether any ancestor of r is folded.
func (b *browser) hidden(r row) bool {
	for i := 1; i < len(r.path); i++ {
		if b.folded[strings.Join(r.path[:i], ".")] {
			return true
		}
	}
	return false
}

func (b *browser) current() (row, bool) {
	if len(b.visible) == 0 {
		return row{}, false
	}
	return b.all[b.visible[b.cursor]], true
}

func (b *browser) Init() tea.Cmd { return nil }

func (b *browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.height = max(msg.Height-6, 3)

	case tea.KeyMsg:
		if b.state == stateFilter {
			return b.updateFilter(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return b, tea.Quit

		case "up", "k":
			if b.cursor > 0 {
				b.cursor--
			}

		case "down", "j":
			if b.cursor < len(b.visible)-1 {
				b.cursor++
			}

		case "enter", " ":
			switch b.state {
			case stateTree:
				b.toggle()
			case stateDetail:
				b.state = stateTree
			}

		case "right", "l":
			b.setFold(false)

		case "left", "h":
			b.setFold(true)

		case "d":
			if b.state == stateTree {
				b.state = stateDetail
			}

		case "/":
			b.state = stateFilter
			b.filter.Focus()
			return b, textinput.Blink

		case "esc":
			b.state = stateTree
		}
	}
	return b, nil
}

func (b *browser) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return b, tea.Quit
	case "enter":
		b.filter.Blur()
		b.state = stateTree
		return b, nil
	case "esc":
		b.filter.Blur()
		b.filter.SetValue("")
		b.state = stateTree
		b.refresh()
		return b, nil
	}
	var cmd tea.Cmd
	b.filter, cmd = b.filter.Update(msg)
	b.refresh()
	return b, cmd
}

func (b *browser) toggle() {
	r, ok := b.current()
	if !ok || !r.branch {
		return
	}
	b.setFold(!b.folded[r.dotted()])
}

func (b *browser) setFold(fold bool) {
	r, ok := b.current()
	if !ok || r.depth() == 0 || !r.branch {
		return
	}
	b.folded[r.dotted()] = fold
	b.refresh()
}

func (b *browser) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("abstruct"))
	s.WriteString(" ")
	s.WriteString(b.filename)
	s.WriteString("\n")
	if b.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", b.err)))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	switch b.state {
	case stateDetail:
		b.viewDetail(&s)
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("enter back • q quit"))
	default:
		b.viewTree(&s)
		s.WriteString("\n")
		if b.state == stateFilter {
			s.WriteString(b.filter.View())
		} else {
			s.WriteString(helpStyle.Render("↑/↓ move • enter fold • d detail • / filter • q quit"))
		}
	}
	return s.String()
}

func (b *browser) viewTree(s *strings.Builder) {
	// keep the cursor inside the window
	start := max(0, b.cursor-b.height+1)
	end := min(len(b.visible), start+b.height)
	for i := start; i < end; i++ {
		r := b.all[b.visible[i]]
		marker := "  "
		if r.branch {
			marker = "▾ "
			if b.folded[r.dotted()] {
				marker = "▸ "
			}
		}
		line := fmt.Sprintf("%s%s%s  %s  %s",
			strings.Repeat("  ", r.depth()), marker, r.name, r.kind, r.value)
		switch {
		case i == b.cursor:
			s.WriteString(selectedStyle.Render(line))
		case r.bad:
			s.WriteString(errorStyle.Render(line))
		default:
			s.WriteString(line)
		}
		s.WriteString("\n")
	}
}

func (b *browser) viewDetail(s *strings.Builder) {
	r, ok := b.current()
	if !ok {
		return
	}
	path := r.dotted()
	if path == "" {
		path = r.name
	}
	fmt.Fprintf(s, "path    %s\n", nameStyle.Render(path))
	fmt.Fprintf(s, "type    %s\n", kindStyle.Render(r.kind))
	fmt.Fprintf(s, "offset  %d (%#x)\n", r.offset, r.offset)
	fmt.Fprintf(s, "size    %d\n", r.size)
	if r.value != "" {
		fmt.Fprintf(s, "value   %s\n", r.value)
	}
	if c, ok := r.field.(*schema.Chunk); ok {
		s.WriteString("\n")
		for _, span := range c.LayoutList() {
			fmt.Fprintf(s, "  %-20s @%d +%d\n", span.Name, span.Offset, span.Size)
		}
		return
	}
	s.WriteString("\n")
	s.WriteString(hex.Dump(r.field.Raw()))
}

func runBrowser(filename string, root schema.Field, decodeErr error, preview int) error {
	p := tea.NewProgram(newBrowser(filename, root, decodeErr, preview), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
