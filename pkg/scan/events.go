// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package scan schedules probe tasks over a bounded worker pool, streams
// progress events, and aggregates outcomes into a final report.
package scan

import (
	"github.com/vulnfinder/vulnfinder/pkg/cvedb"
	"github.com/vulnfinder/vulnfinder/pkg/fingerprint"
	"github.com/vulnfinder/vulnfinder/pkg/probe"
)

// EventKind discriminates the events emitted while a scan runs.
type EventKind uint8

const (
	// EventProbeCompleted carries one finished probe outcome.
	EventProbeCompleted EventKind = iota
	// EventMatchFound carries one CVE correlation hit.
	EventMatchFound
	// EventProgressTick carries a counters snapshot.
	EventProgressTick
	// EventScanFinished carries the final report and closes the stream.
	EventScanFinished
)

func (k EventKind) String() string {
	switch k {
	case EventProbeCompleted:
		return "probe_completed"
	case EventMatchFound:
		return "match_found"
	case EventProgressTick:
		return "progress_tick"
	case EventScanFinished:
		return "scan_finished"
	default:
		return "unknown"
	}
}

// Counters is a monotonic snapshot of scan progress. Completed never exceeds
// TotalTasks and every snapshot dominates the previous one.
type Counters struct {
	TotalHosts int `json:"total_hosts"`
	TotalTasks int `json:"total_tasks"`
	Completed  int `json:"completed"`
	Open       int `json:"open"`
	Matches    int `json:"matches"`
	Errors     int `json:"errors"`
}

// MatchResult ties one CVE match to the service it was observed on.
type MatchResult struct {
	Host        string                  `json:"host"`
	Port        int                     `json:"port"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Match       cvedb.Match             `json:"match"`
}

// Event is one element of the scan event stream. Exactly one payload field is
// set, selected by Kind; Counters is valid on every event.
type Event struct {
	Kind     EventKind
	Outcome  *probe.Outcome
	Match    *MatchResult
	Counters Counters
	Report   *Report
}
