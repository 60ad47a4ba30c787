// Package render draws the geometry computed by the views as terminal
// text, one character per pixel column.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/langtech/transcriber/swimlane"
	"github.com/langtech/transcriber/textedit"
	"github.com/langtech/transcriber/waveform"
)

type Styles struct {
	Frame    lipgloss.Style
	Title    lipgloss.Style
	Wave     lipgloss.Style
	Ruler    lipgloss.Style
	Region   lipgloss.Style
	Chip     lipgloss.Style
	Selected lipgloss.Style
	Label    lipgloss.Style
	Focused  lipgloss.Style
	Muted    lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Frame:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Wave:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Ruler:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Region:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Chip:     lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		Label:    lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("7")),
		Focused:  lipgloss.NewStyle().Bold(true).Reverse(true),
		Muted:    lipgloss.NewStyle().Faint(true),
	}
}

// Sink turns views into text.
type Sink struct {
	st Styles
}

func New() *Sink { return &Sink{st: DefaultStyles()} }

func NewWithStyles(st Styles) *Sink { return &Sink{st: st} }

// level maps an amplitude to a row, 0 at the top.
func level(v int8, rows int) int {
	r := (127 - int(v)) * rows / 256
	if r < 0 {
		return 0
	}
	if r >= rows {
		return rows - 1
	}
	return r
}

// Envelope draws the amplitude columns rows lines high.
func Envelope(cols []waveform.Column, rows int) []string {
	if rows < 1 {
		rows = 1
	}
	grid := make([][]rune, rows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", len(cols)))
	}
	for x, c := range cols {
		top, bot := level(c.Max, rows), level(c.Min, rows)
		for r := top; r <= bot; r++ {
			grid[r][x] = '█'
		}
	}
	out := make([]string, rows)
	for r, line := range grid {
		out[r] = string(line)
	}
	return out
}

// Ruler draws the tick line and the label line of cols.
func Ruler(cols []waveform.Column) (ticks, labels string) {
	t := []rune(strings.Repeat(" ", len(cols)))
	l := []rune(strings.Repeat(" ", len(cols)))
	free := 0
	for x, c := range cols {
		switch c.Tick {
		case waveform.MajorTick:
			t[x] = '|'
		case waveform.MinorTick:
			t[x] = '\''
		}
		if c.Label == "" || x < free {
			continue
		}
		for i, ch := range c.Label {
			if x+i < len(l) {
				l[x+i] = ch
			}
		}
		free = x + len(c.Label) + 1
	}
	return string(t), string(l)
}

// Waveform renders the canvas of w with its ruler on top.
func (s *Sink) Waveform(w *waveform.Waveform, rows int) string {
	if !w.Ready() {
		return s.st.Muted.Render("(no window)")
	}
	cols := w.Canvas()
	ticks, labels := Ruler(cols)
	lines := []string{s.st.Ruler.Render(labels), s.st.Ruler.Render(ticks)}
	for _, line := range Envelope(cols, rows) {
		lines = append(lines, s.st.Wave.Render(line))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Span draws a region geometry as a line of width columns.
func Span(g waveform.Geometry, width int) string {
	line := []rune(strings.Repeat(" ", width))
	if !g.Visible {
		return string(line)
	}
	for x := g.Left; x < g.Left+g.Width && x < width; x++ {
		if x >= 0 {
			line[x] = '─'
		}
	}
	if g.Bordered {
		if !g.OpenLeft && g.Left >= 0 && g.Left < width {
			line[g.Left] = '['
		}
		if end := g.Left + g.Width - 1; !g.OpenRight && end >= 0 && end < width {
			line[end] = ']'
		}
	}
	return string(line)
}

// Regions renders the selection and the cursor of r.
func (s *Sink) Regions(r *waveform.Rich) string {
	sel := []rune(Span(r.Geometry(r.SelectionID()), r.Width()))
	if cg := r.Geometry(r.CursorID()); cg.Visible && cg.Left < len(sel) {
		sel[cg.Left] = '^'
	}
	return s.st.Region.Render(string(sel))
}

// Chips draws lane chips on a line of width columns.
func Chips(chips []swimlane.Chip, width int) string {
	line := []rune(strings.Repeat("·", width))
	for _, c := range chips {
		fill := '▒'
		if c.Selected {
			fill = '█'
		}
		for x := c.Left; x < c.Left+c.Width && x < width; x++ {
			if x >= 0 {
				line[x] = fill
			}
		}
		if c.OpenLeft && c.Left >= 0 && c.Left < width {
			line[c.Left] = '<'
		}
		if end := c.Left + c.Width - 1; c.OpenRight && end >= 0 && end < width {
			line[end] = '>'
		}
	}
	return string(line)
}

// Lane renders one lane behind a label.
func (s *Sink) Lane(label string, l *swimlane.Lane) string {
	style := s.st.Chip
	if _, ok := l.SelectedRow(); ok {
		style = s.st.Selected
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, s.st.Label.Render(label), style.Render(Chips(l.Chips(), l.Width())))
}

// Stack renders every lane of st, one per speaker.
func (s *Sink) Stack(st *swimlane.Stack) string {
	var lines []string
	for _, sp := range st.Speakers() {
		lines = append(lines, s.Lane(sp, st.Lane(sp)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Scrollbar draws the thumb of sb on a track of width columns.
func Scrollbar(value, max, thumb float64, widthPx, width int) string {
	if widthPx <= 0 || width <= 0 {
		return ""
	}
	scale := float64(width) / float64(widthPx)
	tw := int(thumb*scale + 0.5)
	if tw < 1 {
		tw = 1
	}
	if tw > width {
		tw = width
	}
	left := 0
	if max > 0 {
		left = int(value/max*float64(width-tw) + 0.5)
	}
	return strings.Repeat("─", left) + strings.Repeat("━", tw) + strings.Repeat("─", width-tw-left)
}

func (s *Sink) Scrollbar(sb *waveform.Scrollbar, width int) string {
	return s.st.Ruler.Render(Scrollbar(sb.Value(), sb.Max(), sb.ThumbWidth(), sb.Width(), width))
}

// Entry formats one transcript line.
func Entry(e textedit.Entry) string {
	line := fmt.Sprintf("%8.3f %8.3f  %-10s %s", e.Offset, e.Offset+e.Length, e.Speaker, e.Transcript)
	if e.Translation != "" {
		line += " / " + e.Translation
	}
	return line
}

// Text renders a transcript list with the focused entry highlighted.
func (s *Sink) Text(entries []textedit.Entry) string {
	if len(entries) == 0 {
		return s.st.Muted.Render("(empty transcript)")
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		if e.Focused {
			lines[i] = s.st.Focused.Render(Entry(e))
		} else {
			lines[i] = Entry(e)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Frame boxes parts under a title.
func (s *Sink) Frame(title string, parts ...string) string {
	body := lipgloss.JoinVertical(lipgloss.Left, append([]string{s.st.Title.Render(title)}, parts...)...)
	return s.st.Frame.Render(body)
}
