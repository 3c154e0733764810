package printer

import (
	"os"

	"github.com/fatih/color"
)

type ColorPrinter struct {
	Success func(format string, a ...interface{}) string
	Error   func(format string, a ...interface{}) string
	Warning func(format string, a ...interface{}) string
	Info    func(format string, a ...interface{}) string
	Debug   func(format string, a ...interface{}) string
	Bold    func(format string, a ...interface{}) string
}

func NewColorPrinter() *ColorPrinter {
	// fatih/color honors NO_COLOR on its own, but the snapshot is taken at
	// package init; re-check here so tests that set the variable late still
	// get plain output.
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
	return &ColorPrinter{
		Success: color.New(color.FgGreen).SprintfFunc(),
		Error:   color.New(color.FgRed).SprintfFunc(),
		Warning: color.New(color.FgYellow).SprintfFunc(),
		Info:    color.New(color.FgBlue).SprintfFunc(),
		Debug:   color.New(color.FgCyan).SprintfFunc(),
		Bold:    color.New(color.Bold).SprintfFunc(),
	}
}
