package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const keyLength = sha256.Size * 2

// DefaultHeaderWhitelist lists the headers that participate in key derivation
// when no whitelist is configured.
var DefaultHeaderWhitelist = []string{"Accept"}

// Request describes an image request. Only the method, the URL and the
// whitelisted headers contribute to its cache key.
type Request struct {
	Method string
	URL    string
	Header http.Header
}

// NewRequest creates a GET request for rawURL.
func NewRequest(rawURL string) Request {
	return Request{Method: http.MethodGet, URL: rawURL}
}

// RequestFromHTTP builds a Request from an outgoing HTTP request.
func RequestFromHTTP(r *http.Request) Request {
	if r == nil || r.URL == nil {
		return Request{}
	}
	return Request{
		Method: r.Method,
		URL:    r.URL.String(),
		Header: r.Header,
	}
}

// Keyer derives cache keys from requests.
//
// Contract:
// - Determinism: requests that differ only in ignored headers, header order or
// query parameter order must produce the same key.
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Derive returns ErrInvalidRequest when the URL is not absolute.
type Keyer interface {
	// Derive computes the key for req.
	Derive(req Request) (Key, error)
}

// DefaultKeyer generates SHA-256 keys over a canonical request serialization.
type DefaultKeyer struct {
	headers []string
}

// NewKeyer creates a keyer that includes the given headers in the key.
// With no headers, DefaultHeaderWhitelist is used.
func NewKeyer(headers ...string) *DefaultKeyer {
	if len(headers) == 0 {
		headers = DefaultHeaderWhitelist
	}
	seen := make(map[string]bool, len(headers))
	canonical := make([]string, 0, len(headers))
	for _, h := range headers {
		name := http.CanonicalHeaderKey(strings.TrimSpace(h))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		canonical = append(canonical, name)
	}
	sort.Strings(canonical)
	return &DefaultKeyer{headers: canonical}
}

// Headers returns the canonical header whitelist.
func (k *DefaultKeyer) Headers() []string {
	out := make([]string, len(k.headers))
	copy(out, k.headers)
	return out
}

// Derive generates a deterministic cache key.
// Format: hex(SHA-256("m=<METHOD>\nu=<url>\nh=<Name>:<values>\n..."))
func (k *DefaultKeyer) Derive(req Request) (Key, error) {
	canonical, err := k.Canonical(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return Key(hex.EncodeToString(sum[:])), nil
}

// Canonical returns the serialization that Derive hashes.
func (k *DefaultKeyer) Canonical(req Request) (string, error) {
	normalized, err := normalizeURL(req.URL)
	if err != nil {
		return "", err
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	var b strings.Builder
	b.Grow(len(method) + len(normalized) + 16*len(k.headers))
	b.WriteString("m=")
	b.WriteString(method)
	b.WriteString("\nu=")
	b.WriteString(normalized)
	for _, name := range k.headers {
		value := headerValue(req.Header, name)
		if value == "" {
			continue
		}
		b.WriteString("\nh=")
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(value)
	}
	b.WriteByte('\n')
	return b.String(), nil
}

// normalizeURL produces a canonical absolute URL: lowercase scheme and host,
// default ports dropped, fragment dropped, query parameters sorted.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: missing url", ErrInvalidRequest)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: url %q is not absolute", ErrInvalidRequest, raw)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteByte('@')
	}
	b.WriteString(host)
	b.WriteString(path)

	if u.RawQuery != "" {
		query, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		for _, values := range query {
			sort.Strings(values)
		}
		// url.Values.Encode sorts by key.
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String(), nil
}

func headerValue(h http.Header, name string) string {
	if h == nil {
		return ""
	}
	values := h.Values(name)
	if len(values) == 0 {
		return ""
	}
	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			trimmed = append(trimmed, v)
		}
	}
	return strings.Join(trimmed, ",")
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
