package formatter

import "github.com/charmbracelet/lipgloss"

// Styles is the palette used by the CLI.
var Styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	Title lipgloss.Style
	OK    lipgloss.Style
	Err   lipgloss.Style
	Warn  lipgloss.Style
	Help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		Title: NewBold(t).MarginBottom(1),
		OK:    NewBold(s),
		Err:   NewBold(e),
		Warn:  NewStyle(w),
		Help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Status renders a transfer status in its palette color.
func (p *Palette) Status(s string) string {
	switch s {
	case "success":
		return p.OK.Render(s)
	case "partial":
		return p.Warn.Render(s)
	default:
		return p.Err.Render(s)
	}
}
