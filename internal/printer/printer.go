// Package printer renders game output for the terminal: colored status
// lines, turn banners, scoreboard rows and structured error reports.
package printer

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Color stays on for piped output so game transcripts keep their markers.
// Setting NO_COLOR disables it.
func init() {
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	red     = color.New(color.FgRed, color.Bold)
	cyan    = color.New(color.FgCyan)
	magenta = color.New(color.FgMagenta)
)

// Success prints a green checkmarked line for an accepted move or result.
func Success(format string, a ...any) {
	green.Printf("✓ %s", fmt.Sprintf(format, a...))
}

// Info prints narration in the default color.
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a rejected move or degraded condition in yellow.
func Warning(format string, a ...any) {
	yellow.Printf("⚠️  %s", fmt.Sprintf(format, a...))
}

// Step prints one step of a multi-step operation, such as repair playback.
func Step(format string, a ...any) {
	cyan.Printf("→ %s", fmt.Sprintf(format, a...))
}

// Turn prints the banner for the player about to act.
func Turn(turn int, playerName string) {
	cyan.Printf("── turn %d: %s ──\n", turn, playerName)
}

// Hint prints a hint or suggestion line in magenta.
func Hint(format string, a ...any) {
	magenta.Printf("★ %s", fmt.Sprintf(format, a...))
}

// Score prints one scoreboard row; rank is 1-based.
func Score(rank int, name string, score int) {
	fmt.Printf("  %d. %-20s %d\n", rank, name, score)
}

// Error reports a failure to stderr: a red title, an explanation, and
// optional numbered suggestions. The returned error carries only the title;
// cobra runs with SilenceErrors so it is not printed a second time.
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	fmt.Fprintf(os.Stderr, "%s\n", explanation)

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(os.Stderr, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(os.Stderr, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, s)
		}
	}
	return fmt.Errorf("%s", title)
}

// Println prints a plain uncolored line.
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints plain uncolored formatted output.
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}
