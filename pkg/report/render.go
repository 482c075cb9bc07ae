// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package report renders scan reports as text, JSON, or YAML and writes
// report artifacts to disk.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/vulnfinder/vulnfinder/pkg/cvedb"
	"github.com/vulnfinder/vulnfinder/pkg/probe"
	"github.com/vulnfinder/vulnfinder/pkg/scan"
)

// Format selects a report serialization.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a user-supplied format name onto a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "table":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected text, json, or yaml)", name)
	}
}

// Options controls text rendering.
type Options struct {
	// ShowEvidence includes the raw sanitized banner line per open port.
	ShowEvidence bool
	// ShowClosed includes closed and filtered ports, normally elided.
	ShowClosed bool
}

// Render writes the report to w in the requested format.
func Render(w io.Writer, r *scan.Report, format Format, opts Options) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(r)
	default:
		return renderText(w, r, opts)
	}
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	hostColor   = color.New(color.FgWhite, color.Bold)
	openColor   = color.New(color.FgGreen)
	cveColor    = color.New(color.FgRed, color.Bold)
	dimColor    = color.New(color.Faint)
)

func renderText(w io.Writer, r *scan.Report, opts Options) error {
	headerColor.Fprintf(w, "Scan %s\n", r.RunID)
	fmt.Fprintf(w, "%d hosts, %d ports probed, %d open, %d CVE matches, %d errors\n\n",
		r.Counters.TotalHosts, r.Counters.Completed, r.Counters.Open,
		r.Counters.Matches, r.Counters.Errors)

	for _, host := range r.Hosts {
		if !opts.ShowClosed && !hostHasOpenPorts(host) {
			continue
		}
		hostColor.Fprintf(w, "%s\n", host.Host)

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  PORT\tSTATUS\tSERVICE\tPRODUCT\tVERSION\tCVES")
		for _, p := range host.Ports {
			if !opts.ShowClosed && p.Status != probe.StatusOpen {
				continue
			}
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\t%d\n",
				p.Port, statusLabel(p.Status), p.Service, orDash(p.Product),
				orDash(p.Version), len(p.Matches))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		for _, p := range host.Ports {
			for _, m := range p.Matches {
				renderMatch(w, p.Port, m)
			}
			if opts.ShowEvidence && p.Evidence != "" {
				dimColor.Fprintf(w, "  %d evidence: %s\n", p.Port, p.Evidence)
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

func renderMatch(w io.Writer, port int, m cvedb.Match) {
	cveColor.Fprintf(w, "  %d %s", port, m.CVEID)
	if m.CVSS != nil {
		fmt.Fprintf(w, " (CVSS %.1f)", *m.CVSS)
	}
	if m.Mode == cvedb.ModeLexical {
		dimColor.Fprint(w, " [low confidence]")
	}
	fmt.Fprintln(w)
	if m.Summary != "" {
		fmt.Fprintf(w, "      %s\n", m.Summary)
	}
	if m.Remediation != "" {
		fmt.Fprintf(w, "      remediation: %s\n", m.Remediation)
	}
	for _, ref := range m.References {
		dimColor.Fprintf(w, "      %s\n", ref)
	}
}

func statusLabel(s probe.Status) string {
	if s == probe.StatusOpen {
		return openColor.Sprint("open")
	}
	return s.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func hostHasOpenPorts(h scan.HostReport) bool {
	for _, p := range h.Ports {
		if p.Status == probe.StatusOpen {
			return true
		}
	}
	return false
}
