// Package style renders wowplug's run output for the terminal.
package style

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/wowplug/wowplug/pkg/types"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	actionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	nameStyle    = lipgloss.NewStyle().Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// useColor reports whether styled output should be emitted.
func useColor() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

func render(s lipgloss.Style, text string) string {
	if !useColor() {
		return text
	}
	return s.Render(text)
}

// RenderReport formats a run report, one line per plan entry, followed
// by a summary line.
func RenderReport(report *types.Report) string {
	var b strings.Builder

	b.WriteString(render(headerStyle, "sync report"))
	b.WriteString("\n")

	failures := 0
	for _, e := range report.Entries {
		outcome := render(successStyle, "ok")
		if e.Outcome == types.OutcomeFailed {
			outcome = render(failedStyle, "failed")
			failures++
		}
		line := fmt.Sprintf("%-8s %-14s %s",
			outcome,
			render(actionStyle, string(e.Action)),
			render(nameStyle, e.Name))
		if e.Detail != "" {
			line += " " + render(detailStyle, "("+e.Detail+")")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	summary := fmt.Sprintf("%d addons, %d failed", len(report.Entries), failures)
	if failures > 0 {
		b.WriteString(render(failedStyle, summary))
	} else {
		b.WriteString(render(successStyle, summary))
	}
	b.WriteString("\n")
	return b.String()
}

// RenderScan formats the scanner's inventory the way wowplug prints it
// after a scan.
func RenderScan(records []types.AddonRecord) string {
	var b strings.Builder
	b.WriteString(render(headerStyle, fmt.Sprintf("%-4s %-24s %s", "#", "Version", "Name")))
	b.WriteString("\n")
	for i, r := range records {
		fp := r.Fingerprint
		if fp == "" {
			fp = "N/A"
		}
		b.WriteString(fmt.Sprintf("%-4d %-24s %s\n", i, fp, render(nameStyle, r.Name)))
	}
	return b.String()
}
