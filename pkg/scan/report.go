// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package scan

import (
	"time"

	"github.com/vulnfinder/vulnfinder/pkg/cvedb"
	"github.com/vulnfinder/vulnfinder/pkg/probe"
)

// Report is the final artifact of a scan run: per-host, per-port results
// grouped and sorted, plus run-level counters.
type Report struct {
	RunID      string       `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
	Hosts      []HostReport `json:"hosts" yaml:"hosts"`
	Counters   Counters     `json:"counters" yaml:"counters"`
}

// HostReport groups one host's port results, ports ascending.
type HostReport struct {
	Host  string       `json:"host" yaml:"host"`
	Ports []PortReport `json:"ports" yaml:"ports"`
}

// PortReport is everything observed about one (host, port) pair.
type PortReport struct {
	Port     int           `json:"port" yaml:"port"`
	Status   probe.Status  `json:"status" yaml:"status"`
	Service  string        `json:"service,omitempty" yaml:"service,omitempty"`
	Product  string        `json:"product,omitempty" yaml:"product,omitempty"`
	Version  string        `json:"version,omitempty" yaml:"version,omitempty"`
	Evidence string        `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Reason   string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Matches  []cvedb.Match `json:"matches,omitempty" yaml:"matches,omitempty"`
}
