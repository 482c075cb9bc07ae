// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package scan

import (
	"sort"
	"time"

	"github.com/vulnfinder/vulnfinder/pkg/probe"
)

// Aggregator folds the scan event stream into a Report. It is order
// independent: feeding it any permutation of the same events yields the same
// report, and a match arriving before its probe outcome is handled.
//
// Aggregator is not safe for concurrent use; the scheduler feeds it from a
// single goroutine.
type Aggregator struct {
	hosts    map[string]map[int]*PortReport
	counters Counters
	started  time.Time
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		hosts:   make(map[string]map[int]*PortReport),
		started: time.Now(),
	}
}

// Observe consumes one event. ScanFinished events are ignored; the aggregator
// produces the report, it does not consume one.
func (a *Aggregator) Observe(ev Event) {
	switch ev.Kind {
	case EventProbeCompleted:
		a.observeOutcome(ev.Outcome)
	case EventMatchFound:
		a.observeMatch(ev.Match)
	}
}

// Counters returns the current counters snapshot. TotalHosts and TotalTasks
// are set by the scheduler via SetTotals.
func (a *Aggregator) Counters() Counters {
	return a.counters
}

// SetTotals records the task universe so progress snapshots carry it.
func (a *Aggregator) SetTotals(hosts, tasks int) {
	a.counters.TotalHosts = hosts
	a.counters.TotalTasks = tasks
}

func (a *Aggregator) port(host string, port int) *PortReport {
	byPort, ok := a.hosts[host]
	if !ok {
		byPort = make(map[int]*PortReport)
		a.hosts[host] = byPort
	}
	pr, ok := byPort[port]
	if !ok {
		pr = &PortReport{Port: port}
		byPort[port] = pr
	}
	return pr
}

func (a *Aggregator) observeOutcome(out *probe.Outcome) {
	if out == nil {
		return
	}
	pr := a.port(out.Host, out.Port)
	pr.Status = out.Status
	pr.Evidence = out.Evidence
	pr.Reason = out.Reason

	a.counters.Completed++
	switch out.Status {
	case probe.StatusOpen:
		a.counters.Open++
	case probe.StatusError:
		a.counters.Errors++
	}
}

func (a *Aggregator) observeMatch(m *MatchResult) {
	if m == nil {
		return
	}
	pr := a.port(m.Host, m.Port)
	pr.Service = m.Fingerprint.Service
	pr.Product = m.Fingerprint.Product
	pr.Version = m.Fingerprint.Version
	pr.Matches = append(pr.Matches, m.Match)
	a.counters.Matches++
}

// ObserveFingerprint records service identity for an open port that produced
// no CVE matches, so reports still show what was detected.
func (a *Aggregator) ObserveFingerprint(host string, port int, service, product, version string) {
	pr := a.port(host, port)
	pr.Service = service
	pr.Product = product
	pr.Version = version
}

// Finalize produces the report: hosts sorted lexically, ports ascending,
// matches sorted by CVE ID so the report is stable under event reordering.
func (a *Aggregator) Finalize() *Report {
	report := &Report{
		StartedAt:  a.started,
		FinishedAt: time.Now(),
		Counters:   a.counters,
	}

	hostNames := make([]string, 0, len(a.hosts))
	for h := range a.hosts {
		hostNames = append(hostNames, h)
	}
	sort.Strings(hostNames)

	for _, h := range hostNames {
		byPort := a.hosts[h]
		ports := make([]int, 0, len(byPort))
		for p := range byPort {
			ports = append(ports, p)
		}
		sort.Ints(ports)

		hr := HostReport{Host: h, Ports: make([]PortReport, 0, len(ports))}
		for _, p := range ports {
			pr := *byPort[p]
			sort.Slice(pr.Matches, func(i, j int) bool {
				return pr.Matches[i].CVEID < pr.Matches[j].CVEID
			})
			hr.Ports = append(hr.Ports, pr)
		}
		report.Hosts = append(report.Hosts, hr)
	}
	return report
}
