package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// deskTheme задаёт светлую палитру консоли администрирования.
type deskTheme struct {
	base fyne.Theme
}

func newDeskTheme() fyne.Theme {
	return &deskTheme{base: theme.LightTheme()}
}

func (t *deskTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.NRGBA{R: 246, G: 247, B: 251, A: 255}
	case theme.ColorNameButton, theme.ColorNamePrimary:
		return color.NRGBA{R: 30, G: 100, B: 196, A: 255}
	case theme.ColorNameForeground:
		return color.NRGBA{R: 24, G: 27, B: 36, A: 255}
	case theme.ColorNameInputBackground:
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	case theme.ColorNameDisabled:
		return color.NRGBA{R: 178, G: 182, B: 192, A: 255}
	default:
		return t.base.Color(name, variant)
	}
}

func (t *deskTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.base.Font(style)
}

func (t *deskTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.base.Icon(name)
}

func (t *deskTheme) Size(name fyne.ThemeSizeName) float32 {
	return t.base.Size(name)
}
