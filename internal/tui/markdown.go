package tui

import "github.com/charmbracelet/glamour"

// RenderMarkdown renders md for the terminal, falling back to the raw text
// when the renderer cannot be built.
func RenderMarkdown(md string, width int) string {
	if width < 20 {
		width = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}
