package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"   __                                       ", "#38bdf8"},
	{"  / _| ___  _ __ ___ _ __ ___   __ _ _ __   ", "#22d3ee"},
	{" | |_ / _ \\| '__/ _ \\ '_ ` _ \\ / _` | '_ \\  ", "#2dd4bf"},
	{" |  _| (_) | | |  __/ | | | | | (_| | | | | ", "#34d399"},
	{" |_|  \\___/|_|  \\___|_| |_| |_|\\__,_|_| |_| ", "#4ade80"},
}

// PrintBanner writes the foreman banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  machine orchestration v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
