package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// binaryExtensions are rejected outright; they never contain
// documentation text.
var binaryExtensions = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".svg": true, ".css": true, ".js": true,
	".ico": true, ".woff": true, ".woff2": true, ".ttf": true,
	".eot": true,
}

// NormalizeURL canonicalises a URL: lowercase scheme and host, fragment
// stripped, trailing slash removed except at the root, query preserved.
// Relative references are resolved against base when given. Non-HTTP(S)
// schemes and binary file extensions are rejected.
func NormalizeURL(raw string, base *url.URL) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}

	if ext := strings.ToLower(path.Ext(u.Path)); binaryExtensions[ext] {
		return "", fmt.Errorf("binary extension %q in %q", ext, raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.Path == "" {
		u.Path = "/"
	} else if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// hostAllowed reports whether host equals one of the allowed hosts or is
// a subdomain of one.
func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, a := range allowed {
		a = strings.ToLower(a)
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

// matchPattern applies the configured URL pattern: empty or "*" match
// everything, patterns with wildcards match glob-style, anything else
// matches by substring.
func matchPattern(pattern, rawURL string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if strings.ContainsAny(pattern, "*?") {
		ok, err := path.Match(pattern, rawURL)
		return err == nil && ok
	}
	return strings.Contains(rawURL, pattern)
}
