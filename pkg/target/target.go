// Package target expands user-supplied target specifications (single IPs,
// CIDR blocks, IPv4 ranges, hostnames) into concrete host addresses.
package target

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// MaxHosts caps how many hosts a single specification may expand to.
const MaxHosts = 4096

var (
	// ErrInvalidTarget is returned when a specification is neither a
	// parseable IP/CIDR/range nor a plausible hostname.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrTargetTooLarge is returned when a CIDR or range expands beyond MaxHosts.
	ErrTargetTooLarge = errors.New("target expands beyond host cap")
)

// LookupFunc resolves a hostname to one or more addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// Expand turns a target specification into an ordered, deduplicated list of
// hosts. CIDR blocks yield their usable addresses in ascending order; for
// IPv4 prefixes of /30 and wider the network and broadcast addresses are
// excluded, while /31 and /32 keep every address. Hostnames pass through
// syntactically validated; resolve them with Resolve before scanning.
func Expand(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: empty specification", ErrInvalidTarget)
	}

	if ip := net.ParseIP(spec); ip != nil {
		return []string{ip.String()}, nil
	}

	if strings.Contains(spec, "/") {
		return expandCIDR(spec)
	}

	// Only treat "a-b" as a range when both endpoints parse as IPs;
	// hostnames may legally contain hyphens.
	if isIPRange(spec) {
		return expandRange(spec)
	}

	if isValidHostname(spec) {
		return []string{spec}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, spec)
}

func expandCIDR(spec string) ([]string, error) {
	_, ipNet, err := net.ParseCIDR(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, spec)
	}

	ones, bits := ipNet.Mask.Size()
	skipEdges := bits == 32 && ones < 31

	var out []string
	ip := make(net.IP, len(ipNet.IP))
	copy(ip, ipNet.IP.Mask(ipNet.Mask))

	for ; ipNet.Contains(ip); incIP(ip) {
		if skipEdges && (ip.Equal(networkAddr(ipNet)) || ip.Equal(broadcastAddr(ipNet))) {
			continue
		}
		out = append(out, ip.String())
		if len(out) > MaxHosts {
			return nil, fmt.Errorf("%w: %s expands beyond %d hosts", ErrTargetTooLarge, spec, MaxHosts)
		}
		if isAllOnes(ip) {
			break
		}
	}
	return dedupe(out), nil
}

func isIPRange(spec string) bool {
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return false
	}
	return net.ParseIP(strings.TrimSpace(parts[0])) != nil &&
		net.ParseIP(strings.TrimSpace(parts[1])) != nil
}

func expandRange(spec string) ([]string, error) {
	parts := strings.SplitN(spec, "-", 2)
	start := net.ParseIP(strings.TrimSpace(parts[0]))
	end := net.ParseIP(strings.TrimSpace(parts[1]))

	s4, e4 := start.To4(), end.To4()
	if s4 == nil || e4 == nil {
		return nil, fmt.Errorf("%w: IP ranges support IPv4 only", ErrInvalidTarget)
	}

	sv := ipv4ToUint(s4)
	ev := ipv4ToUint(e4)
	if sv > ev {
		return nil, fmt.Errorf("%w: range start must be <= range end", ErrInvalidTarget)
	}
	if ev-sv+1 > MaxHosts {
		return nil, fmt.Errorf("%w: %s expands beyond %d hosts", ErrTargetTooLarge, spec, MaxHosts)
	}

	out := make([]string, 0, ev-sv+1)
	for v := sv; v <= ev; v++ {
		out = append(out, uintToIPv4(v).String())
		if v == ev {
			break
		}
	}
	return dedupe(out), nil
}

// Resolve replaces any hostname in hosts with all of its resolved addresses,
// ascending and deduplicated. Every resolved address is scanned, not just the
// first one. Literal IPs pass through untouched.
func Resolve(ctx context.Context, hosts []string, lookup LookupFunc) ([]string, error) {
	if lookup == nil {
		lookup = func(ctx context.Context, host string) ([]string, error) {
			return net.DefaultResolver.LookupHost(ctx, host)
		}
	}

	var out []string
	for _, h := range hosts {
		if net.ParseIP(h) != nil {
			out = append(out, h)
			continue
		}
		addrs, err := lookup(ctx, h)
		if err != nil || len(addrs) == 0 {
			return nil, fmt.Errorf("%w: cannot resolve %s", ErrInvalidTarget, h)
		}
		sort.Strings(addrs)
		out = append(out, addrs...)
	}
	return dedupe(out), nil
}

func isValidHostname(value string) bool {
	if value == "" || len(value) > 253 {
		return false
	}
	for _, label := range strings.Split(value, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, c := range label {
			if !isAlnum(c) && c != '-' {
				return false
			}
		}
	}
	return true
}

func isAlnum(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// incIP increments an IP address in place (works for IPv4 and IPv6).
func incIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}

func isAllOnes(ip net.IP) bool {
	for _, b := range ip {
		if b != 0xff {
			return false
		}
	}
	return true
}

func networkAddr(ipNet *net.IPNet) net.IP {
	return ipNet.IP.Mask(ipNet.Mask)
}

func broadcastAddr(ipNet *net.IPNet) net.IP {
	ip4 := ipNet.IP.To4()
	out := make(net.IP, net.IPv4len)
	for i := 0; i < net.IPv4len; i++ {
		out[i] = ip4[i] | ^ipNet.Mask[i]
	}
	return out
}

func ipv4ToUint(ip net.IP) uint32 {
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uintToIPv4(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func dedupe(hosts []string) []string {
	seen := make(map[string]bool, len(hosts))
	out := hosts[:0]
	for _, h := range hosts {
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
