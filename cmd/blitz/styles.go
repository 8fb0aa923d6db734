package main

import "github.com/charmbracelet/lipgloss"

// Color palette for terminal output. The single source of truth for all
// blitz CLI colors.
var (
	salmonPink  = lipgloss.Color("#FFB3BA") // primary accent / errors
	mintGreen   = lipgloss.Color("#A8E6CF") // success states
	mutedGray   = lipgloss.Color("#6B7280") // secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // primary text
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	successStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	keyStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	valueStyle = lipgloss.NewStyle().
			Foreground(brightWhite)
)
