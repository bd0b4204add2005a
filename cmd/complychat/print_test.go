package main

import (
	"strings"
	"testing"
)

func TestColorize_Enabled(t *testing.T) {
	noColor = false
	t.Cleanup(func() { noColor = false })

	got := colorize(colorGreen, "ok")
	if !strings.HasPrefix(got, colorGreen) || !strings.HasSuffix(got, colorReset) {
		t.Errorf("colorize = %q, want ANSI-wrapped text", got)
	}
}

func TestColorize_NoColorFlag(t *testing.T) {
	noColor = true
	t.Cleanup(func() { noColor = false })

	if got := colorize(colorGreen, "ok"); got != "ok" {
		t.Errorf("colorize with --no-color = %q, want plain text", got)
	}
}

func TestColorize_NoColorEnv(t *testing.T) {
	noColor = false
	t.Cleanup(func() { noColor = false })
	t.Setenv("NO_COLOR", "1")

	if got := colorize(colorGreen, "ok"); got != "ok" {
		t.Errorf("colorize with NO_COLOR set = %q, want plain text", got)
	}
}

func TestStatusBadge(t *testing.T) {
	noColor = false
	t.Cleanup(func() { noColor = false })

	if got := statusBadge("Compliant"); !strings.Contains(got, colorGreen) {
		t.Errorf("Compliant badge = %q, want green", got)
	}
	if got := statusBadge("Non-Compliant"); !strings.Contains(got, colorRed) {
		t.Errorf("Non-Compliant badge = %q, want red", got)
	}
	if got := statusBadge("Partially Compliant"); !strings.Contains(got, colorYellow) {
		t.Errorf("Partially Compliant badge = %q, want yellow", got)
	}
}
