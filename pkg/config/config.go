// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package config loads application configuration by layering hardcoded
// defaults, an optional YAML config file, and command-line flags, in that
// precedence order.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config is the full application configuration tree.
type Config struct {
	Log  LogConfig  `koanf:"log"`
	Scan ScanConfig `koanf:"scan"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `koanf:"level"`
}

// ScanConfig holds defaults for scan runs; flags override per invocation.
type ScanConfig struct {
	Ports       string        `koanf:"ports"`
	PortsFile   string        `koanf:"ports_file"`
	Timeout     time.Duration `koanf:"timeout"`
	Concurrency int           `koanf:"concurrency"`
	Evidence    bool          `koanf:"evidence"`
	CVEDB       string        `koanf:"cve_db"`
	Output      string        `koanf:"output"`
	Format      string        `koanf:"format"`
}

// DefaultConfig returns the baseline configuration before any file or flag
// overrides.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Scan: ScanConfig{
			Timeout:     2 * time.Second,
			Concurrency: 64,
			Format:      "text",
		},
	}
}

func defaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":        def.Log.Level,
		"scan.ports":       def.Scan.Ports,
		"scan.ports_file":  def.Scan.PortsFile,
		"scan.timeout":     def.Scan.Timeout,
		"scan.concurrency": def.Scan.Concurrency,
		"scan.evidence":    def.Scan.Evidence,
		"scan.cve_db":      def.Scan.CVEDB,
		"scan.output":      def.Scan.Output,
		"scan.format":      def.Scan.Format,
	}
}

// Manager loads and serves the merged configuration.
type Manager struct {
	k   *koanf.Koanf
	mu  sync.RWMutex
	cfg Config
}

// NewManager creates an empty Manager; call Load before Get.
func NewManager() *Manager {
	return &Manager{k: koanf.New(".")}
}

// Load merges defaults, the optional config file, and flags. A missing
// explicit config file is an error; a missing default path is not.
func (m *Manager) Load(flags *pflag.FlagSet, configFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.k.Load(confmap.Provider(defaultConfigAsMap(), "."), nil); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return fmt.Errorf("config file %s: %w", configFile, err)
		}
		if err := m.k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return fmt.Errorf("parse config file %s: %w", configFile, err)
		}
	}

	if flags != nil {
		if err := m.k.Load(posflag.Provider(flags, ".", m.k), nil); err != nil {
			return fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := m.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	m.cfg = cfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}
