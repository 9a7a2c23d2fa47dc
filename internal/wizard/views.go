package wizard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles carries the lipgloss styles for one rendering mode. Basic mode
// (serial consoles, -ascii) uses unstyled text and ASCII furniture so the
// output survives dumb terminals.
type Styles struct {
	Title    lipgloss.Style
	Prompt   lipgloss.Style
	Selected lipgloss.Style
	Hint     lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style

	// Rule is the horizontal separator under the title.
	Rule string
	// Pointer marks the selected option.
	Pointer string
}

// RichStyles is the styling for capable terminals.
func RichStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170")),
		Prompt:   lipgloss.NewStyle(),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Hint:     lipgloss.NewStyle().Faint(true),
		Status:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Rule:     strings.Repeat("─", 40),
		Pointer:  "▸",
	}
}

// BasicStyles is the plain-text styling for serial consoles and -ascii.
func BasicStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title:    plain,
		Prompt:   plain,
		Selected: plain,
		Hint:     plain,
		Status:   plain,
		Error:    plain,
		Rule:     strings.Repeat("=", 40),
		Pointer:  ">",
	}
}

// screenView is what wizard stages build for display. The program owns key
// routing and calls handleKey for anything that is not global navigation.
type screenView interface {
	title() string
	render(st Styles) string
	handleKey(key string)
}

// textView is a single-line text prompt. The stage keeps a pointer to it and
// reads value back on commit; onEdit fires after every mutation.
type textView struct {
	name   string
	prompt string
	hint   string
	value  string
	pos    int
	masked bool
	onEdit func(value string)
}

func newTextView(name, prompt, initial string) *textView {
	return &textView{name: name, prompt: prompt, value: initial, pos: runeLen(initial)}
}

func (v *textView) title() string { return v.name }

func (v *textView) render(st Styles) string {
	var b strings.Builder
	b.WriteString("  " + st.Prompt.Render(v.prompt) + "\n\n")
	shown := v.value
	if v.masked {
		shown = strings.Repeat("*", runeLen(v.value))
	}
	b.WriteString(fmt.Sprintf("  > %s\n", renderCursor(shown, v.pos)))
	if v.hint != "" {
		b.WriteString("\n  " + st.Hint.Render(v.hint) + "\n")
	}
	return b.String()
}

func (v *textView) handleKey(key string) {
	before := v.value
	switch key {
	case "left":
		if v.pos > 0 {
			v.pos--
		}
	case "right":
		if v.pos < runeLen(v.value) {
			v.pos++
		}
	case "home", "ctrl+a":
		v.pos = 0
	case "end", "ctrl+e":
		v.pos = runeLen(v.value)
	case "backspace":
		if v.pos > 0 {
			v.value = runeDeleteAt(v.value, v.pos)
			v.pos--
		}
	case "alt+backspace":
		v.value, v.pos = deleteWordAt(v.value, v.pos)
	case "tab", "shift+tab", "up", "down":
		// ignore
	default:
		v.value = runeInsertAt(v.value, v.pos, key)
		v.pos += runeLen(key)
	}
	if v.value != before && v.onEdit != nil {
		v.onEdit(v.value)
	}
}

// option is one entry of a selectView.
type option struct {
	label string
	value string
	desc  string
}

// selectView is a vertical pick list.
type selectView struct {
	name    string
	prompt  string
	options []option
	cursor  int
}

func (v *selectView) title() string { return v.name }

func (v *selectView) render(st Styles) string {
	var b strings.Builder
	b.WriteString("  " + st.Prompt.Render(v.prompt) + "\n\n")
	for i, opt := range v.options {
		line := opt.label
		if opt.desc != "" {
			line += "  " + st.Hint.Render(opt.desc)
		}
		if i == v.cursor {
			b.WriteString(fmt.Sprintf("  %s %s\n", st.Pointer, st.Selected.Render(line)))
		} else {
			b.WriteString(fmt.Sprintf("    %s\n", line))
		}
	}
	return b.String()
}

func (v *selectView) handleKey(key string) {
	switch key {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(v.options)-1 {
			v.cursor++
		}
	}
}

func (v *selectView) selected() option {
	if len(v.options) == 0 {
		return option{}
	}
	return v.options[v.cursor]
}

// reviewView is a read-only summary screen.
type reviewView struct {
	name  string
	lines []string
	note  string
}

func (v *reviewView) title() string { return v.name }

func (v *reviewView) render(st Styles) string {
	var b strings.Builder
	for _, line := range v.lines {
		b.WriteString("  " + line + "\n")
	}
	if v.note != "" {
		b.WriteString("\n  " + st.Hint.Render(v.note) + "\n")
	}
	return b.String()
}

func (v *reviewView) handleKey(string) {}
