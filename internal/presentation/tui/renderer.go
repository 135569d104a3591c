package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a markdown to ANSI renderer for operator notes.
// The style follows the terminal background.
func NewRenderer() (func(string) (string, error), error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}
