package app

import (
	"image/color"

	"slide-editor/pkg/colorutil"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// SlideEditorTheme is a dark slate theme with a blue accent.
type SlideEditorTheme struct{}

var _ fyne.Theme = (*SlideEditorTheme)(nil)

func (t *SlideEditorTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return colorutil.Primary
	case theme.ColorNameBackground:
		return colorutil.Workspace
	case theme.ColorNameSelection:
		return colorutil.WithAlpha(colorutil.Primary, 0x60)
	case theme.ColorNameFocus:
		return colorutil.WithAlpha(colorutil.Accent, 0x80)
	case theme.ColorNameScrollBar:
		return color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	default:
		return theme.DefaultTheme().Color(name, theme.VariantDark)
	}
}

func (t *SlideEditorTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *SlideEditorTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *SlideEditorTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameScrollBar:
		return 12
	case theme.SizeNameScrollBarSmall:
		return 8
	default:
		return theme.DefaultTheme().Size(name)
	}
}
