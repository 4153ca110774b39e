// Package origin validates browser Origin headers for the websocket upgrade
// and the snapshot API.
package origin

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Normalize validates a browser Origin header and returns it in canonical
// scheme://host[:port] form plus the host[:port] part for same-host checks.
// The special value "null" (sandboxed frames, file:// pages) is passed
// through as-is.
func Normalize(header string) (normalized, host string, ok bool) {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return "", "", false
	}
	if trimmed == "null" {
		return "null", "", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host, ok = canonicalHost(u.Host, scheme)
	if !ok {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// IsAllowed reports whether a normalized origin may access the server.
//
// With a non-empty allowlist, entries are either "*" or normalized origins.
// With an empty allowlist the policy is same-host: the origin's host[:port]
// must equal the request's Host header. Scheme is deliberately not compared
// because a TLS-terminating proxy in front of the server makes the request
// look like HTTP while the browser origin is HTTPS.
func IsAllowed(normalized, originHost, requestHost string, allowlist []string) bool {
	if len(allowlist) > 0 {
		for _, allowed := range allowlist {
			if allowed == "*" || allowed == normalized {
				return true
			}
		}
		return false
	}

	var scheme string
	switch {
	case strings.HasPrefix(normalized, "https://"):
		scheme = "https"
	case strings.HasPrefix(normalized, "http://"):
		scheme = "http"
	default:
		// "null" never matches a host-based request.
		return false
	}

	reqHost, ok := canonicalHost(strings.TrimSpace(requestHost), scheme)
	if !ok {
		return false
	}
	return originHost == reqHost
}

// canonicalHost lowercases the hostname, validates the port and strips it
// when it is the scheme default, so "https://a.example:443" and
// "https://a.example" compare equal.
func canonicalHost(rawHost, scheme string) (string, bool) {
	if rawHost == "" {
		return "", false
	}

	hostname, portStr, err := net.SplitHostPort(strings.ToLower(rawHost))
	if err != nil {
		// No port present; SplitHostPort rejects that form.
		hostname = strings.ToLower(rawHost)
		portStr = ""
		if strings.HasPrefix(hostname, "[") && strings.HasSuffix(hostname, "]") {
			hostname = hostname[1 : len(hostname)-1]
		} else if strings.Contains(hostname, ":") {
			// Unbracketed IPv6 literal is not a valid authority.
			return "", false
		}
	}
	if hostname == "" {
		return "", false
	}

	port := 0
	if portStr != "" {
		n, err := strconv.Atoi(portStr)
		if err != nil || n <= 0 || n > 65535 {
			return "", false
		}
		port = n
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		port = 0
	}

	host := hostname
	if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	if port != 0 {
		host += ":" + strconv.Itoa(port)
	}
	return host, true
}
