package ui

import "github.com/charmbracelet/lipgloss"

// 256-color palette codes.
const (
	ColorAccent    = "39"  // headers, active stage, progress bar
	ColorAccentDim = "31"  // completed stages
	ColorGray      = "245" // labels
	ColorDarkGray  = "238" // borders, pending stages
	ColorRed       = "196"
	ColorYellow    = "220"
	ColorGreen     = "78"
)

// Styles holds all UI styles for TUI rendering.
type Styles struct {
	Header   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Stage    lipgloss.Style
	Active   lipgloss.Style
	Progress lipgloss.Style

	Border lipgloss.Style
	Label  lipgloss.Style
}

// DefaultStyles returns styled components for TUI mode.
func DefaultStyles() Styles {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return Styles{
		Header:   fg(ColorAccent).Bold(true),
		Success:  fg(ColorGreen),
		Warning:  fg(ColorYellow),
		Error:    fg(ColorRed),
		Dim:      fg(ColorDarkGray),
		Stage:    fg(ColorAccentDim),
		Active:   fg(ColorAccent).Bold(true),
		Progress: fg(ColorAccent),
		Border:   fg(ColorDarkGray),
		Label:    fg(ColorGray),
	}
}

// NoColorStyles returns unstyled components.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, Success: plain, Warning: plain, Error: plain, Dim: plain,
		Stage: plain, Active: plain, Progress: plain, Border: plain, Label: plain,
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
