// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vulnfinder/vulnfinder/pkg/probe"
	"github.com/vulnfinder/vulnfinder/pkg/scan"
)

const (
	dashboardWidth = 64
	activityLines  = 8
	barWidth       = 40
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(dashboardWidth)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")).
			Bold(true)

	barFillStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	counterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	openLogStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	matchLogStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	faintLogStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Dashboard repaints a bordered progress panel in place on every event. It
// assumes an ANSI terminal; use PlainPrinter for anything else.
type Dashboard struct {
	w        io.Writer
	activity []string
	painted  int
}

// NewDashboard creates a dashboard writing to w.
func NewDashboard(w io.Writer) *Dashboard {
	return &Dashboard{w: w}
}

// OnEvent implements engine.EventSink.
func (d *Dashboard) OnEvent(ev scan.Event) {
	switch ev.Kind {
	case scan.EventProbeCompleted:
		if ev.Outcome.Status == probe.StatusOpen {
			d.log(openLogStyle.Render(fmt.Sprintf("open  %s:%d", ev.Outcome.Host, ev.Outcome.Port)))
		}
	case scan.EventMatchFound:
		m := ev.Match
		d.log(matchLogStyle.Render(fmt.Sprintf("match %s:%d %s", m.Host, m.Port, m.Match.CVEID)))
	case scan.EventScanFinished:
		d.log(faintLogStyle.Render("scan finished"))
	}
	d.paint(ev.Counters)
}

func (d *Dashboard) log(line string) {
	d.activity = append(d.activity, line)
	if len(d.activity) > activityLines {
		d.activity = d.activity[len(d.activity)-activityLines:]
	}
}

// paint erases the previous frame and draws the current one.
func (d *Dashboard) paint(c scan.Counters) {
	if d.painted > 0 {
		fmt.Fprintf(d.w, "\x1b[%dA\x1b[J", d.painted)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("vulnfinder"))
	b.WriteByte('\n')
	b.WriteString(renderBar(c))
	b.WriteByte('\n')
	b.WriteString(counterStyle.Render(fmt.Sprintf(
		"hosts %d  probes %d/%d  open %d  matches %d  errors %d",
		c.TotalHosts, c.Completed, c.TotalTasks, c.Open, c.Matches, c.Errors)))

	if len(d.activity) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(d.activity, "\n"))
	}

	frame := frameStyle.Render(b.String())
	fmt.Fprintln(d.w, frame)
	d.painted = strings.Count(frame, "\n") + 1
}

func renderBar(c scan.Counters) string {
	filled := 0
	if c.TotalTasks > 0 {
		filled = c.Completed * barWidth / c.TotalTasks
	}
	if filled > barWidth {
		filled = barWidth
	}
	pct := 0
	if c.TotalTasks > 0 {
		pct = c.Completed * 100 / c.TotalTasks
	}
	return barFillStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", barWidth-filled)) +
		fmt.Sprintf(" %3d%%", pct)
}
