package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the REPL banner to w.
func PrintBanner(w io.Writer, version, threadID string) {
	out := termenv.NewOutput(w)
	lines := []struct{ text, color string }{
		{"     _      _     _ _", "#818cf8"},
		{"  __| | ___| |__ (_) |_ ___  _ __", "#a78bfa"},
		{" / _` |/ _ \\ '_ \\| | __/ _ \\| '__|", "#c084fc"},
		{"| (_| |  __/ |_) | | || (_) | |", "#e879f9"},
		{" \\__,_|\\___|_.__/|_|\\__\\___/|_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String(fmt.Sprintf("  v%s  thread %s  (exit, quit, /new)", version, threadID)).Faint())
	fmt.Fprintln(w)
}
