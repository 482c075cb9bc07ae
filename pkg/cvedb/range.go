// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cvedb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Mode records which comparison produced a match. Lexical matches carry less
// confidence than semver matches and are flagged as such in reports.
type Mode string

const (
	// ModeSemver means both sides parsed as semantic versions.
	ModeSemver Mode = "semver"
	// ModeLexical means the component-wise fallback comparison was used.
	ModeLexical Mode = "lexical"
)

// ErrUnparsableRange marks a version range string the matcher cannot
// evaluate. Entries carrying one are skipped at load time.
var ErrUnparsableRange = errors.New("unparsable version range")

var rangeOps = []string{"<=", ">=", "==", "<", ">", "="}

// ValidateRange checks that every constraint in a comma-separated range has
// a recognizable shape. "any" is a valid range that matches everything.
func ValidateRange(rng string) error {
	if strings.TrimSpace(rng) == "" {
		return fmt.Errorf("%w: empty range", ErrUnparsableRange)
	}
	if strings.EqualFold(strings.TrimSpace(rng), "any") {
		return nil
	}
	for _, cond := range splitConditions(rng) {
		if _, rhs := splitOp(cond); rhs == "" {
			return fmt.Errorf("%w: %q", ErrUnparsableRange, cond)
		}
	}
	return nil
}

// VersionInRange reports whether version satisfies every constraint in the
// comma-separated range (logical AND), and which comparison mode decided it.
//
// Semver comparison is used when the observed version parses as a semantic
// version (after normalization) and the range carries multiple constraints,
// the shape CVE bound pairs take (">=8.0.0,<8.9.0"). Everything else falls
// back to a deterministic component-wise comparison: versions split on
// non-alphanumeric boundaries, corresponding components compare numerically
// when both are pure integers and case-insensitively otherwise, and missing
// trailing components count as zero. The fallback has known limitations on
// purely textual components ("rc1" vs "beta2" is string order, nothing
// more), which is why lexical matches are reported as lower confidence.
func VersionInRange(version, rng string) (bool, Mode) {
	if looksLikeSemver(version) && strings.Contains(rng, ",") {
		return semverMatch(version, rng), ModeSemver
	}
	return lexicalMatch(version, rng), ModeLexical
}

// normalizeSemver pads a version to three numeric components and strips a
// leading "v" so strings like "8.5" or "v1.2" parse as semver.
func normalizeSemver(v string) string {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(v), "v"), ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return strings.Join(parts[:3], ".")
}

func looksLikeSemver(version string) bool {
	_, err := semver.StrictNewVersion(normalizeSemver(version))
	return err == nil
}

func semverMatch(version, rng string) bool {
	v, err := semver.StrictNewVersion(normalizeSemver(version))
	if err != nil {
		return false
	}

	for _, cond := range splitConditions(rng) {
		op, rhs := splitOp(cond)
		other, err := semver.StrictNewVersion(normalizeSemver(rhs))
		if err != nil {
			return false
		}
		var ok bool
		switch op {
		case "<":
			ok = v.LessThan(other)
		case "<=":
			ok = !v.GreaterThan(other)
		case ">":
			ok = v.GreaterThan(other)
		case ">=":
			ok = !v.LessThan(other)
		case "=", "==":
			ok = v.Equal(other)
		}
		if !ok {
			return false
		}
	}
	return true
}

func lexicalMatch(version, rng string) bool {
	if strings.EqualFold(strings.TrimSpace(rng), "any") {
		return true
	}

	for _, cond := range splitConditions(rng) {
		op, rhs := splitOp(cond)
		if rhs == "" {
			return false
		}
		cmp := lexicalCompare(version, rhs)
		var ok bool
		switch op {
		case "<":
			ok = cmp < 0
		case "<=":
			ok = cmp <= 0
		case ">":
			ok = cmp > 0
		case ">=":
			ok = cmp >= 0
		case "=", "==":
			ok = cmp == 0
		}
		if !ok {
			return false
		}
	}
	return true
}

// lexicalCompare orders two version strings component-wise. Components are
// maximal alphanumeric runs; a missing trailing component counts as "0".
func lexicalCompare(a, b string) int {
	as := splitComponents(a)
	bs := splitComponents(b)

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		ac, bc := "0", "0"
		if i < len(as) {
			ac = as[i]
		}
		if i < len(bs) {
			bc = bs[i]
		}
		if c := compareComponent(ac, bc); c != 0 {
			return c
		}
	}
	return 0
}

// compareComponent compares numerically when both sides are pure integers,
// lexicographically otherwise.
func compareComponent(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func splitComponents(v string) []string {
	return strings.FieldsFunc(strings.ToLower(v), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

func splitConditions(rng string) []string {
	var out []string
	for _, cond := range strings.Split(rng, ",") {
		cond = strings.TrimSpace(cond)
		if cond != "" {
			out = append(out, cond)
		}
	}
	return out
}

// splitOp peels a leading comparison operator off a constraint; a bare
// version token means equality.
func splitOp(cond string) (op, rhs string) {
	for _, candidate := range rangeOps {
		if strings.HasPrefix(cond, candidate) {
			return candidate, strings.TrimSpace(strings.TrimPrefix(cond, candidate))
		}
	}
	return "=", strings.TrimSpace(cond)
}
