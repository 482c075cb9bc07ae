// Package fingerprint derives a (service, product, version) triple from the
// evidence string of an open-port probe, falling back to port-number
// heuristics when the banner is silent or unrecognized.
package fingerprint

import (
	"strings"
)

// Fingerprint identifies a listening service well enough for CVE matching.
// Product and Version may be empty when only the port heuristic applied.
type Fingerprint struct {
	Service string `json:"service"`
	Product string `json:"product,omitempty"`
	Version string `json:"version,omitempty"`
}

// commonServices maps well-known ports to service labels for the heuristic
// fallback.
var commonServices = map[int]string{
	21:   "ftp",
	22:   "ssh",
	23:   "telnet",
	25:   "smtp",
	53:   "dns",
	80:   "http",
	110:  "pop3",
	143:  "imap",
	443:  "https",
	445:  "smb",
	3306: "mysql",
	3389: "rdp",
	5432: "postgresql",
	8080: "http",
	8443: "https",
}

// FromEvidence identifies the service behind an open port. Banner evidence
// wins over the port heuristic; an unidentifiable banner still yields the
// generic per-port service label.
func FromEvidence(port int, evidence string) Fingerprint {
	evidence = strings.TrimSpace(evidence)

	if fp, ok := sshFingerprint(evidence); ok {
		return fp
	}
	if fp, ok := httpFingerprint(evidence); ok {
		return fp
	}

	return Fingerprint{Service: ServiceForPort(port)}
}

// ServiceForPort returns the common service label for a port, or "tcp" when
// the port is not well known.
func ServiceForPort(port int) string {
	if svc, ok := commonServices[port]; ok {
		return svc
	}
	return "tcp"
}

// sshFingerprint parses a banner like "SSH-2.0-OpenSSH_8.5p1 Ubuntu-1" into
// product "OpenSSH" and a three-component version suitable for semver
// comparison ("8.5.1"). Portable-release suffixes ("p1") become the patch
// component.
func sshFingerprint(banner string) (Fingerprint, bool) {
	if !strings.HasPrefix(banner, "SSH-") {
		return Fingerprint{}, false
	}

	fp := Fingerprint{Service: "ssh"}

	parts := strings.SplitN(banner, "-", 3)
	if len(parts) < 3 {
		return fp, true
	}
	software := strings.Fields(parts[2])
	if len(software) == 0 {
		return fp, true
	}

	ident := software[0]
	if product, raw, found := strings.Cut(ident, "_"); found {
		fp.Product = product
		fp.Version = normalizeSSHVersion(raw)
	} else {
		fp.Product = ident
	}
	return fp, true
}

// normalizeSSHVersion rewrites "8.4p1" as "8.4.1" and "9.7" as "9.7.0" so
// OpenSSH versions order correctly under semver. Non-numeric forms yield "".
func normalizeSSHVersion(raw string) string {
	numeric, patch, found := strings.Cut(raw, "p")
	if !found {
		patch = "0"
	}

	major, minor, found := strings.Cut(numeric, ".")
	if !found {
		minor = "0"
	}

	if !allDigits(major) || !allDigits(minor) || !allDigits(patch) {
		return ""
	}
	return major + "." + minor + "." + patch
}

// httpFingerprint pulls product/version from a Server header inside raw HTTP
// response evidence, e.g. "Server: nginx/1.18.0".
func httpFingerprint(evidence string) (Fingerprint, bool) {
	if !strings.HasPrefix(evidence, "HTTP/") {
		return Fingerprint{}, false
	}

	fp := Fingerprint{Service: "http"}

	lower := strings.ToLower(evidence)
	idx := strings.Index(lower, "server:")
	if idx < 0 {
		return fp, true
	}

	value := evidence[idx+len("server:"):]
	// Evidence is a sanitized single line; the header value runs until the
	// next double space left behind by the original CRLF.
	if end := strings.Index(value, "  "); end >= 0 {
		value = value[:end]
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fp, true
	}

	if product, version, found := strings.Cut(value, "/"); found {
		fp.Product = strings.TrimSpace(product)
		fp.Version = strings.TrimSpace(version)
		if i := strings.IndexByte(fp.Version, ' '); i >= 0 {
			fp.Version = fp.Version[:i]
		}
	} else {
		fp.Product = value
	}
	return fp, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
