package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/fatih/color"
)

// Out and ErrOut are where status output goes. Tests replace them.
var (
	Out    io.Writer = os.Stdout
	ErrOut io.Writer = os.Stderr
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// ShowCommands lists the commands about to run, or only suggested on a dry
// run.
func ShowCommands(commands []string, dryRun bool) {
	cyan := color.New(color.FgCyan, color.Bold)
	if dryRun {
		cyan.Fprintln(Out, "(Dry Run) The LLM suggested these commands:")
	} else {
		cyan.Fprintln(Out, "You are about to run the following commands:")
	}
	for _, command := range commands {
		fmt.Fprintf(Out, "  $ %s\n", command)
	}
	fmt.Fprintln(Out)
}

// CopyCommands puts the commands on the clipboard, one per line.
func CopyCommands(commands []string) error {
	if err := writeClipboard(strings.Join(commands, "\n")); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(Out, "✓ %s\n", message)
}

// ShowError displays an error message
func ShowError(message string) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(ErrOut, "✗ %s\n", message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(ErrOut, "! %s\n", message)
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	blue := color.New(color.FgBlue)
	blue.Fprintln(Out, message)
}

// ShowProgress displays a transient status line on ErrOut, keeping Out for
// command output.
func ShowProgress(message string) {
	gray := color.New(color.FgHiBlack)
	gray.Fprintln(ErrOut, message)
}

// ShowSection displays a section header
func ShowSection(title string) {
	bold := color.New(color.FgCyan, color.Bold)
	bold.Fprintf(Out, "\n%s\n%s\n", title, strings.Repeat("─", len([]rune(title))))
}

// ModelRow is one line of the model listing.
type ModelRow struct {
	Name      string
	Available bool
	Hint      string
}

// ShowModels prints the model table used by --list-models.
func ShowModels(configPath string, rows []ModelRow) {
	fmt.Fprintln(Out, "Available models:")
	fmt.Fprintf(Out, "Models can be configured via %s\n\n", configPath)

	width := 0
	for _, row := range rows {
		width = max(width, len(row.Name))
	}
	const statusWidth = len("NOT AVAILABLE")

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)
	for _, row := range rows {
		fmt.Fprintf(Out, "%-*s", width+2, row.Name)
		if row.Available {
			green.Fprintf(Out, "%*s", statusWidth, "OK")
		} else {
			gray.Fprintf(Out, "%*s", statusWidth, "NOT AVAILABLE")
		}
		fmt.Fprintf(Out, " | %s\n", row.Hint)
	}
}

// HistoryRow is one line of the history listing.
type HistoryRow struct {
	Timestamp time.Time
	Request   string
	Model     string
	Outcome   string
	Commands  []string
}

// ShowHistory prints recent dispatches, newest first.
func ShowHistory(rows []HistoryRow) {
	if len(rows) == 0 {
		ShowInfo("No history yet.")
		return
	}

	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)
	for _, row := range rows {
		cyan.Fprintf(Out, "%s", row.Request)
		gray.Fprintf(Out, "  (%s ago, %s, %s)\n", FormatAge(row.Timestamp), row.Model, row.Outcome)
		for _, command := range row.Commands {
			fmt.Fprintf(Out, "  $ %s\n", command)
		}
		fmt.Fprintln(Out)
	}
}

// FormatAge formats how long ago t was, e.g. "5 minutes"
func FormatAge(t time.Time) string {
	return formatDuration(time.Since(t))
}

func formatDuration(duration time.Duration) string {
	switch {
	case duration < time.Minute:
		return "moments"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "minute")
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hour")
	default:
		return plural(int(duration.Hours()/24), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
