// Package security validates that outbound destinations resolve to public
// network addresses before the relay touches them.
package security

import (
	"fmt"
	"net"
	"net/url"

	"github.com/Coayer/podcast-proxy/internal/security/netutil"
)

type Reason string

const (
	ReasonInvalidURL        Reason = "invalid URL"
	ReasonUnresolvableHost  Reason = "unresolvable host"
	ReasonUnsafeDestination Reason = "unsafe destination"
)

// ValidationError reports why a destination was rejected. The full detail is
// for server-side logs only; clients get a short fixed message.
type ValidationError struct {
	Reason Reason
	URL    string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.URL)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks that rawURL is a well-formed http(s) URL whose host
// currently resolves exclusively to public addresses. The resolved addresses
// are returned so callers can pin the subsequent connection. This is a
// point-in-time verdict and is never cached.
func Validate(rawURL string) ([]net.IP, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ValidationError{Reason: ReasonInvalidURL, URL: rawURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ValidationError{Reason: ReasonInvalidURL, URL: rawURL, Err: fmt.Errorf("scheme %q not allowed", u.Scheme)}
	}
	if u.Hostname() == "" {
		return nil, &ValidationError{Reason: ReasonInvalidURL, URL: rawURL, Err: fmt.Errorf("empty host")}
	}

	addrs, err := ResolvePublic(u.Hostname())
	if err != nil {
		if verr, ok := err.(*ValidationError); ok {
			return nil, &ValidationError{Reason: verr.Reason, URL: rawURL, Err: verr.Err}
		}
		return nil, err
	}
	return addrs, nil
}

// ResolvePublic resolves host and rejects it unless every address is public.
// It is used both for the pre-fetch check and for per-dial pinning.
func ResolvePublic(host string) ([]net.IP, error) {
	if netutil.IsBlockedHostname(host) {
		return nil, &ValidationError{Reason: ReasonUnsafeDestination, URL: host, Err: fmt.Errorf("denylisted hostname")}
	}

	if ip := net.ParseIP(host); ip != nil {
		if netutil.IsPrivateIP(ip) {
			return nil, &ValidationError{Reason: ReasonUnsafeDestination, URL: host, Err: fmt.Errorf("address %s is private or reserved", ip)}
		}
		return []net.IP{ip}, nil
	}

	addrs, err := net.LookupIP(host)
	if err != nil || len(addrs) == 0 {
		return nil, &ValidationError{Reason: ReasonUnresolvableHost, URL: host, Err: err}
	}
	for _, a := range addrs {
		if netutil.IsPrivateIP(a) {
			return nil, &ValidationError{Reason: ReasonUnsafeDestination, URL: host, Err: fmt.Errorf("resolves to private or reserved address %s", a)}
		}
	}
	return addrs, nil
}
