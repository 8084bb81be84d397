// Package render draws the status store as terminal banners.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"mentorlounge/shared/model"
)

var (
	borderASCII = lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}

	bannerStyle = lipgloss.NewStyle().Border(borderASCII).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	statusColors = map[model.BuildStatus]lipgloss.Color{
		model.StatusIdle:       lipgloss.Color("244"),
		model.StatusQueued:     lipgloss.Color("33"),
		model.StatusInProgress: lipgloss.Color("33"),
		model.StatusWarning:    lipgloss.Color("3"),
		model.StatusCompleted:  lipgloss.Color("2"),
		model.StatusFailed:     lipgloss.Color("1"),
	}
)

// Banner renders one block describing the snapshot's status.
func Banner(snap model.Snapshot) string {
	var title string
	var lines []string

	switch snap.Status {
	case model.StatusQueued:
		title = "Plan build queued"
		lines = append(lines, orDefault(snap.Message, "Waiting for a mentor to pick this up."))
	case model.StatusInProgress:
		title = "Building your plan"
		lines = append(lines, orDefault(snap.Message, "Working on it."))
		if n := len(snap.Steps); n > 0 {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("step %d: %s", n, snap.Steps[n-1].Step)))
		}
	case model.StatusWarning:
		title = "Taking longer than expected"
		lines = append(lines, orDefault(snap.Message, "Still working on it."))
	case model.StatusCompleted:
		title = "Plan ready"
		if snap.ResultTitle != "" {
			title = "Plan ready: " + snap.ResultTitle
		}
		if snap.Message != "" {
			lines = append(lines, snap.Message)
		}
		if snap.ResultID != "" {
			lines = append(lines, mutedStyle.Render("result "+snap.ResultID))
		}
	case model.StatusFailed:
		title = "Plan build failed"
		lines = append(lines, orDefault(snap.Message, "Something went wrong."))
	default:
		title = "No plan build in progress"
	}

	body := titleStyle.Foreground(statusColors[snap.Status]).Render(title)
	if len(lines) > 0 {
		body += "\n" + strings.Join(lines, "\n")
	}
	return bannerStyle.BorderForeground(statusColors[snap.Status]).Render(body)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
