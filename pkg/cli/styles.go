package cli

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPrimary = lipgloss.Color("#F38020")
	ColorSuccess = lipgloss.Color("#22C55E")
	ColorWarning = lipgloss.Color("#F59E0B")
	ColorError   = lipgloss.Color("#EF4444")
	ColorInfo    = lipgloss.Color("#3B82F6")
	ColorSubtle  = lipgloss.Color("#6B7280")
)

const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "!"
	SymbolInfo    = "→"
	SymbolBullet  = "•"
)

// Status lines
var (
	BrandStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	InfoStyle    = lipgloss.NewStyle().Foreground(ColorInfo)
	HintStyle    = lipgloss.NewStyle().Foreground(ColorSubtle).Italic(true)

	BoldStyle = lipgloss.NewStyle().Bold(true)
	DimStyle  = lipgloss.NewStyle().Foreground(ColorSubtle)
	CodeStyle = lipgloss.NewStyle().Foreground(ColorPrimary)

	// KeyStyle labels the summary lines under a listing (Total, Next cursor)
	KeyStyle = lipgloss.NewStyle().Foreground(ColorSubtle).Width(12)
)

// Tables
var (
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorSubtle).PaddingRight(2)
	TableCellStyle   = lipgloss.NewStyle().PaddingRight(2)

	// MissingCellStyle renders "-" and "?" placeholders for values that were not fetched
	MissingCellStyle = TableCellStyle.Foreground(ColorSubtle)
)
