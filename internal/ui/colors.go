package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"github.com/mark-c-hall/posterpalette/internal/palette"
)

// Default colors before any palette has been extracted.
var defaultPalette = palette.Palette{
	Background: "#1a1a1a",
	Hover:      "#333333",
	Button:     "#7D56F4",
	DarkOne:    "#262626",
	DarkTwo:    "#3a3a3a",
	LightOne:   "#f0f0f0",
	LightTwo:   "#a0a0a0",
}

const errorColor = "#FF5F5F"

// Styles is the stylesheet the view renders with. Each field follows one of
// the theme's custom properties.
type Styles struct {
	app      lipgloss.Style
	title    lipgloss.Style
	status   lipgloss.Style
	button   lipgloss.Style
	panel    lipgloss.Style
	muted    lipgloss.Style
	err      lipgloss.Style
	selected lipgloss.Style
	normal   lipgloss.Style
	colors   palette.Palette
}

// NewStyles builds styles from the applied theme, or the defaults when the
// theme is still unset.
func NewStyles(t *palette.Theme) Styles {
	p := defaultPalette
	if t != nil {
		if current, ok := t.Palette(); ok {
			p = current
		}
	}

	return Styles{
		app:      lipgloss.NewStyle().Background(lipgloss.Color(p.Background)).Padding(1, 2),
		title:    NewBold(p.LightOne).Background(lipgloss.Color(p.DarkOne)).Padding(0, 1),
		status:   NewStyle(p.LightTwo),
		button:   NewBold(p.LightOne).Background(lipgloss.Color(p.Button)).Padding(0, 1),
		panel:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(p.DarkTwo)).Padding(0, 1),
		muted:    NewEm(p.LightTwo),
		err:      NewBold(errorColor),
		selected: NewBold(p.LightOne).Background(lipgloss.Color(p.Hover)),
		normal:   NewStyle(p.LightTwo),
		colors:   p,
	}
}

// Delegate renders list items in the theme colors.
func (s Styles) Delegate() list.DefaultDelegate {
	d := list.NewDefaultDelegate()
	d.Styles.NormalTitle = d.Styles.NormalTitle.Foreground(lipgloss.Color(s.colors.LightOne))
	d.Styles.NormalDesc = d.Styles.NormalDesc.Foreground(lipgloss.Color(s.colors.LightTwo))
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.
		Foreground(lipgloss.Color(s.colors.Button)).
		BorderForeground(lipgloss.Color(s.colors.Button))
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.
		Foreground(lipgloss.Color(s.colors.LightTwo)).
		BorderForeground(lipgloss.Color(s.colors.Button))
	return d
}

// Swatch renders a two-cell block of color.
func Swatch(hex string) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render("  ")
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
