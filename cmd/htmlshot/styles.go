package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color Palette
var (
	salmonPink = lipgloss.Color("#FFB3BA") // errors and headers
	mintGreen  = lipgloss.Color("#A8E6CF") // success
	mutedGray  = lipgloss.Color("#6B7280") // secondary text
	skyBlue    = lipgloss.Color("#A0C4FF") // file paths
)

type styles struct {
	header lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	muted  lipgloss.Style
	path   lipgloss.Style
}

// newStyles builds styles for w. Color is only used when w is a terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Foreground(salmonPink).Bold(true),
		ok:     r.NewStyle().Foreground(mintGreen),
		err:    r.NewStyle().Foreground(salmonPink),
		muted:  r.NewStyle().Foreground(mutedGray),
		path:   r.NewStyle().Foreground(skyBlue),
	}
}
