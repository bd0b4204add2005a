package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/levchenko/complychat/internal/backend"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// useColor reports whether ANSI escapes should be emitted. Both the
// --no-color flag and the NO_COLOR convention (https://no-color.org)
// disable them.
func useColor() bool {
	if noColor {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return true
}

func colorize(color, text string) string {
	if !useColor() {
		return text
	}
	return color + text + colorReset
}

// printMark writes one status line to stderr, prefixed with a colored glyph.
// Status output goes to stderr so transcripts and listings on stdout stay
// pipeable.
func printMark(color, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printMark(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { printMark(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { printMark(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { printMark(colorCyan, "→", format, args...) }

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

// printMessage renders one transcript message: role header, body, and the
// assessment extras an assistant answer carries.
func printMessage(cmd *cobra.Command, m backend.Message) {
	out := cmd.OutOrStdout()

	switch m.Role {
	case backend.RoleUser:
		fmt.Fprintf(out, "%s %s\n", colorize(colorBold, "you:"), m.Content)
	case backend.RoleAssistant:
		header := colorize(colorCyan, "assistant:")
		if m.Status != "" {
			header += " " + statusBadge(m.Status)
		}
		fmt.Fprintf(out, "%s\n%s\n", header, m.Content)
		if len(m.Sources) > 0 {
			fmt.Fprintln(out, colorize(colorBold, "Sources:"))
			for _, s := range m.Sources {
				fmt.Fprintf(out, "  - %s (%.0f%%)\n", s.DocumentName, s.RelevanceScore*100)
			}
		}
		if len(m.FollowUpQuestions) > 0 {
			fmt.Fprintln(out, colorize(colorBold, "You could also ask:"))
			for _, q := range m.FollowUpQuestions {
				fmt.Fprintf(out, "  - %s\n", q)
			}
		}
	default:
		fmt.Fprintln(out, colorize(colorYellow, m.Content))
	}
	fmt.Fprintln(out)
}

func statusBadge(status string) string {
	switch strings.ToLower(status) {
	case "compliant":
		return colorize(colorGreen, "["+status+"]")
	case "non-compliant":
		return colorize(colorRed, "["+status+"]")
	default:
		return colorize(colorYellow, "["+status+"]")
	}
}
