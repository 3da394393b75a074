package quota

import (
	"net"
	"strings"
)

// UnknownOrigin buckets requests whose network origin could not be
// determined. Such requests are still rate limited, just collectively.
const UnknownOrigin = "unknown-ip"

// OriginKey derives the origin quota key from the forwarded-address
// chain, preferring the first usable X-Forwarded-For hop, then
// X-Real-IP, then the transport remote address. It never fails: an
// undeterminable origin lands in the shared UnknownOrigin bucket.
func OriginKey(forwardedFor, realIP, remoteAddr string) string {
	for _, hop := range strings.Split(forwardedFor, ",") {
		if ip := parseIP(hop); ip != "" {
			return ip
		}
	}
	if ip := parseIP(realIP); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		if ip := parseIP(host); ip != "" {
			return ip
		}
	}
	if ip := parseIP(remoteAddr); ip != "" {
		return ip
	}
	return UnknownOrigin
}

func parseIP(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	ip := net.ParseIP(trimmed)
	if ip == nil {
		return ""
	}
	return ip.String()
}
