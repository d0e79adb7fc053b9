package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pablolion/acd/internal/session"
)

// Status colors for the non-interactive list/status output, following the
// teacher's lipgloss color-table-per-state pattern (tui/internal/theme).
var (
	colorAttention = lipgloss.Color("#dc2626")
	colorWorking   = lipgloss.Color("#2563eb")
	colorQuestion  = lipgloss.Color("#d97706")
	colorClosed    = lipgloss.Color("#6b7280")
	colorDimmed    = lipgloss.Color("#6b7280")
	colorBright    = lipgloss.Color("#f9fafb")
	colorHealthy   = lipgloss.Color("#22c55e")
)

func statusColor(s session.Status) lipgloss.Color {
	switch s {
	case session.Attention:
		return colorAttention
	case session.Working:
		return colorWorking
	case session.Question:
		return colorQuestion
	case session.Closed:
		return colorClosed
	default:
		return colorDimmed
	}
}

func statusBadge(s session.Status) string {
	return lipgloss.NewStyle().Bold(true).Foreground(statusColor(s)).Render(s.String())
}

var styleHeader = lipgloss.NewStyle().Bold(true).Foreground(colorBright)
var styleDimmed = lipgloss.NewStyle().Foreground(colorDimmed)
var styleHealthy = lipgloss.NewStyle().Foreground(colorHealthy)
