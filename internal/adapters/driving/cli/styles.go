package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// Palette used for terminal output.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
)

// statusStyle returns the style used to render a document status.
func statusStyle(status domain.DocumentStatus) lipgloss.Style {
	switch status {
	case domain.StatusIndexed:
		return successStyle
	case domain.StatusUnchanged, domain.StatusPending:
		return mutedStyle
	case domain.StatusCancelled, domain.StatusRejected:
		return warningStyle
	default:
		return errorStyle
	}
}
