package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

var (
	// styleTitle for main headings.
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// styleDim for secondary/muted text.
	styleDim = lipgloss.NewStyle().Foreground(colorDim)

	// styleWarn for warnings.
	styleWarn = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconOK      = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconErr     = lipgloss.NewStyle().Foreground(colorRed)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
)

// printSuccess writes a green check line to stderr.
func printSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", styleIconOK.Render("✓"), fmt.Sprintf(format, args...))
}

// printError writes a red cross line to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", styleIconErr.Render("✗"), fmt.Sprintf(format, args...))
}

// printWarn writes an amber warning line to stderr.
func printWarn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", styleWarn.Render("!"), fmt.Sprintf(format, args...))
}
