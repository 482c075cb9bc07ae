// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package ui renders live scan progress: a styled terminal dashboard for
// interactive runs and a plain line printer for everything else. Both are
// pure event consumers with no knowledge of the engine.
package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/vulnfinder/vulnfinder/pkg/probe"
	"github.com/vulnfinder/vulnfinder/pkg/scan"
)

var (
	openStyle  = color.New(color.FgGreen)
	matchStyle = color.New(color.FgRed, color.Bold)
	faintStyle = color.New(color.Faint)
)

// PlainPrinter logs open ports and CVE matches as single lines, suitable for
// pipes and CI logs. Progress ticks print at most every tickEvery completions
// to keep output bounded.
type PlainPrinter struct {
	w         io.Writer
	tickEvery int
	lastTick  int
}

// NewPlainPrinter creates a printer writing to w.
func NewPlainPrinter(w io.Writer) *PlainPrinter {
	return &PlainPrinter{w: w, tickEvery: 50}
}

// OnEvent implements engine.EventSink.
func (p *PlainPrinter) OnEvent(ev scan.Event) {
	switch ev.Kind {
	case scan.EventProbeCompleted:
		if ev.Outcome.Status == probe.StatusOpen {
			openStyle.Fprintf(p.w, "open  %s:%d", ev.Outcome.Host, ev.Outcome.Port)
			if ev.Outcome.Evidence != "" {
				faintStyle.Fprintf(p.w, "  %s", ev.Outcome.Evidence)
			}
			fmt.Fprintln(p.w)
		}
	case scan.EventMatchFound:
		m := ev.Match
		matchStyle.Fprintf(p.w, "match %s:%d %s %s %s", m.Host, m.Port,
			m.Fingerprint.Product, m.Fingerprint.Version, m.Match.CVEID)
		if m.Match.CVSS != nil {
			fmt.Fprintf(p.w, " (CVSS %.1f)", *m.Match.CVSS)
		}
		fmt.Fprintln(p.w)
	case scan.EventProgressTick:
		c := ev.Counters
		if c.Completed-p.lastTick >= p.tickEvery || c.Completed == c.TotalTasks {
			p.lastTick = c.Completed
			faintStyle.Fprintf(p.w, "progress %d/%d probes, %d open, %d matches\n",
				c.Completed, c.TotalTasks, c.Open, c.Matches)
		}
	case scan.EventScanFinished:
		c := ev.Counters
		fmt.Fprintf(p.w, "done: %d probes, %d open, %d matches, %d errors\n",
			c.Completed, c.Open, c.Matches, c.Errors)
	}
}
