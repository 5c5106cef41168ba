package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the playbook banner, coloured for the detected terminal profile.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"        _             _                 _    ", "#ef5350"},
		{"  _ __ | | __ _ _   _| |__   ___   ___ | | __", "#f06292"},
		{" | '_ \\| |/ _` | | | | '_ \\ / _ \\ / _ \\| |/ /", "#ba68c8"},
		{" | |_) | | (_| | |_| | |_) | (_) | (_) |   < ", "#9575cd"},
		{" | .__/|_|\\__,_|\\__, |_.__/ \\___/ \\___/|_|\\_\\", "#7986cb"},
		{" |_|            |___/                        ", "#64b5f6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
