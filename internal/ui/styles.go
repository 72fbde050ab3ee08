package ui

import "github.com/charmbracelet/lipgloss"

// Color palette. One accent color, grays for everything else.
const (
	ColorTeal     = "37"  // Primary accent
	ColorTealDim  = "30"  // Completed stages
	ColorWhite    = "255" // Headers, important text
	ColorGray     = "245" // Secondary text, labels
	ColorDarkGray = "238" // Box borders, separators
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds all UI styles for TUI rendering.
type Styles struct {
	// Text styles
	Header   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Stage    lipgloss.Style
	Active   lipgloss.Style
	Progress lipgloss.Style

	// Panel/layout styles
	Border lipgloss.Style
	Panel  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
}

// DefaultStyles returns styled components for TUI mode.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorTeal)),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTeal)),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Stage:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTealDim)),
		Active:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorTeal)),
		Progress: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTeal)),

		// Panel/layout styles
		Border: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorDarkGray)).
			Padding(0, 1),
		Label: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Value: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle(),
		Success:  lipgloss.NewStyle(),
		Warning:  lipgloss.NewStyle(),
		Error:    lipgloss.NewStyle(),
		Dim:      lipgloss.NewStyle(),
		Stage:    lipgloss.NewStyle(),
		Active:   lipgloss.NewStyle(),
		Progress: lipgloss.NewStyle(),
		Border:   lipgloss.NewStyle(),
		Panel:    lipgloss.NewStyle(),
		Label:    lipgloss.NewStyle(),
		Value:    lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
