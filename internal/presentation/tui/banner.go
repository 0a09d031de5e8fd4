package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the umlsync banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"                 _                       ", "#38bdf8"},
		{"  _   _ _ __ ___ | |___ _   _ _ __   ___ ", "#22d3ee"},
		{" | | | | '_ ` _ \\| / __| | | | '_ \\ / __|", "#2dd4bf"},
		{" | |_| | | | | | | \\__ \\ |_| | | | | (__ ", "#34d399"},
		{"  \\__,_|_| |_| |_|_|___/\\__, |_| |_|\\___|", "#4ade80"},
		{"                        |___/            ", "#a3e635"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	}
	fmt.Fprintln(w)
}
