package utils

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var trackingPrefixes = []string{"utm_"}

var trackingKeys = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"dclid":   {},
	"msclkid": {},
	"yclid":   {},
	"igshid":  {},
	"mc_cid":  {},
	"mc_eid":  {},
}

func IsTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if _, ok := trackingKeys[key]; ok {
		return true
	}
	for _, prefix := range trackingPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// StripTracking removes tracking query parameters and keeps the remaining
// ones in their original order and encoding. Unparseable input is returned
// trimmed but otherwise untouched.
func StripTracking(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}

	parts := strings.Split(u.RawQuery, "&")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		key := part
		if i := strings.IndexByte(part, '='); i >= 0 {
			key = part[:i]
		}
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if IsTrackingParam(key) {
			continue
		}
		kept = append(kept, part)
	}

	u.RawQuery = strings.Join(kept, "&")
	u.ForceQuery = false
	return u.String()
}

func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Hostname returns the lowercased host of raw without port, or "".
// ConsentHosts serve cookie and consent interstitials rather than articles.
var ConsentHosts = []string{
	"consent.google.com",
	"consent.youtube.com",
	"consent.yahoo.com",
	"myprivacy.dpgmedia.nl",
	"myprivacy.dpgmedia.be",
}

// HostIn reports whether the host of raw equals one of hosts or is a
// subdomain of one.
func HostIn(raw string, hosts []string) bool {
	host := Hostname(raw)
	if host == "" {
		return false
	}
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func Hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// SourceHost returns the registrable domain of the link ("nos.nl" for
// "https://www.nos.nl/artikel/1"). Hosts without a known public suffix
// fall back to the hostname with a leading "www." removed.
func SourceHost(raw string) string {
	host := Hostname(raw)
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return domain
	}
	return strings.TrimPrefix(host, "www.")
}

// ResolveReference resolves ref against base, returning "" when either fails to parse.
func ResolveReference(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return r.String()
	}
	return b.ResolveReference(r).String()
}
