package internal

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	consoleInfoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39"))

	consoleSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42")).
				Bold(true)

	consoleWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214")).
				Bold(true)

	consoleErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true)
)

// Console writes styled status lines for commands. It is passed to the
// code that needs to report progress rather than living as a hidden
// global, so tests can capture output.
type Console struct {
	out io.Writer
}

// NewConsole returns a Console writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleTo returns a Console writing to w.
func NewConsoleTo(w io.Writer) *Console {
	return &Console{out: w}
}

// Info prints an informational status line.
func (c *Console) Info(format string, args ...interface{}) {
	fmt.Fprintln(c.out, consoleInfoStyle.Render(fmt.Sprintf(format, args...)))
}

// Success prints a success status line.
func (c *Console) Success(format string, args ...interface{}) {
	fmt.Fprintln(c.out, consoleSuccessStyle.Render(fmt.Sprintf(format, args...)))
}

// Warning prints a warning status line.
func (c *Console) Warning(format string, args ...interface{}) {
	fmt.Fprintln(c.out, consoleWarningStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error status line.
func (c *Console) Error(format string, args ...interface{}) {
	fmt.Fprintln(c.out, consoleErrorStyle.Render(fmt.Sprintf(format, args...)))
}
