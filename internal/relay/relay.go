// internal/relay/relay.go
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/Coayer/podcast-proxy/internal/security"
	"github.com/Coayer/podcast-proxy/internal/sniff"
	xproxy "golang.org/x/net/proxy"
)

// UpstreamError reports a transport failure or a non-2xx origin response.
// StatusCode is zero when the origin never answered.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream request failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type Config struct {
	// ProxyURL is an optional egress proxy for upstream fetches. http,
	// https and socks5 schemes are supported.
	ProxyURL string
	// SafetyCheck gates content sniffing on streamed media.
	SafetyCheck bool
	// MaxStreamBytes caps the declared size of streamed media.
	MaxStreamBytes int64
	// MaxFeedBytes caps fetched feed documents.
	MaxFeedBytes int64
}

const (
	defaultMaxStreamBytes = 300_000_000 // 300MB, matching podcast app limits
	defaultMaxFeedBytes   = 50_000_000  // archive feeds of long-running shows run into tens of MB
)

// Relay fetches validated upstream URLs and forwards bytes to clients.
type Relay struct {
	client       *http.Client
	logger       *log.Logger
	safetyCheck  bool
	maxBytes     int64
	maxFeedBytes int64

	// overridden in tests to reach httptest servers on loopback
	validate func(string) ([]net.IP, error)
	resolve  func(string) ([]net.IP, error)
}

func New(logger *log.Logger, cfg Config) (*Relay, error) {
	transport := &http.Transport{
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	r := &Relay{
		logger:       logger,
		safetyCheck:  cfg.SafetyCheck,
		maxBytes:     cfg.MaxStreamBytes,
		maxFeedBytes: cfg.MaxFeedBytes,
		validate:     security.Validate,
		resolve:      security.ResolvePublic,
	}
	if r.maxBytes == 0 {
		r.maxBytes = defaultMaxStreamBytes
	}
	if r.maxFeedBytes == 0 {
		r.maxFeedBytes = defaultMaxFeedBytes
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if cfg.ProxyURL != "" {
		u, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid egress proxy URL: %w", err)
		}
		switch u.Scheme {
		case "socks5", "socks5h":
			pd, err := xproxy.FromURL(u, dialer)
			if err != nil {
				return nil, fmt.Errorf("egress proxy setup failed: %w", err)
			}
			cd, ok := pd.(xproxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("egress proxy %s does not support context dialing", u.Scheme)
			}
			transport.DialContext = cd.DialContext
		default:
			// The egress proxy resolves destinations itself; address
			// pinning does not apply on this path.
			transport.Proxy = http.ProxyURL(u)
			transport.DialContext = dialer.DialContext
		}
	} else {
		transport.DialContext = r.pinnedDialContext(dialer)
	}

	r.client = &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}
	return r, nil
}

// pinnedDialContext re-resolves and re-checks the destination on every dial,
// including redirect hops, then connects to a vetted address. This closes the
// gap between the pre-fetch DNS check and the actual connection.
func (r *Relay) pinnedDialContext(dialer *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		addrs, err := r.resolve(host)
		if err != nil {
			return nil, err
		}
		var lastErr error
		for _, ip := range addrs {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}

// fetch validates the target, filters the inbound headers and issues a
// streaming GET bound to ctx so a client disconnect aborts the upstream read.
func (r *Relay) fetch(ctx context.Context, target string, clientHeaders http.Header) (*http.Response, error) {
	if _, err := r.validate(target); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &security.ValidationError{Reason: security.ReasonInvalidURL, URL: target, Err: err}
	}
	if clientHeaders != nil {
		req.Header = FilterRequestHeaders(clientHeaders)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "podcast-proxy/1.0")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		var verr *security.ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, &UpstreamError{Err: err}
	}
	return resp, nil
}

// FetchDocument retrieves a complete document of a type in allowed, bounded
// by the configured feed cap. Used for feed retrieval, never for media.
func (r *Relay) FetchDocument(ctx context.Context, target string, allowed []string) ([]byte, error) {
	maxBytes := r.maxFeedBytes
	resp, err := r.fetch(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Err: fmt.Errorf("fetching %s", target)}
	}

	prefix := make([]byte, sniff.PrefixSize)
	n, err := io.ReadFull(resp.Body, prefix)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, &UpstreamError{Err: err}
	}
	prefix = prefix[:n]

	if err := sniff.Check(resp.ContentLength, prefix, allowed, maxBytes); err != nil {
		return nil, err
	}

	rest, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes-int64(n)+1))
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	if int64(n)+int64(len(rest)) > maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", sniff.ErrTooLarge, maxBytes)
	}
	return append(prefix, rest...), nil
}

// Stream relays target to the client. The sniff gate holds back the first
// byte until the prefix has been classified; afterwards bytes flow to the
// client in upstream arrival order through a bounded pump, so a slow client
// naturally backpressures the upstream pull. skipSniff is set when the source
// already vouched for the content (resolved platform audio URLs).
func (r *Relay) Stream(w http.ResponseWriter, req *http.Request, target string, skipSniff bool) {
	resp, err := r.fetch(req.Context(), target, req.Header)
	if err != nil {
		var verr *security.ValidationError
		if errors.As(err, &verr) {
			r.logger.Printf("Rejected stream target %s: %v", target, verr)
			http.Error(w, "Invalid stream file", http.StatusForbidden)
			return
		}
		r.logger.Printf("Error streaming %s: %v", target, err)
		http.Error(w, "An internal server error occurred", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		r.logger.Printf("Upstream error for %s: status %d", target, resp.StatusCode)
		http.Error(w, "Failed to stream from upstream server", resp.StatusCode)
		return
	}

	var prefix []byte
	checkable := resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent
	if r.safetyCheck && !skipSniff && checkable {
		// The size check applies to every origin; the carve-out covers
		// the type check only.
		if err := sniff.CheckSize(resp.ContentLength, r.maxBytes); err != nil {
			r.logger.Printf("Safety check failed for %s: %v", target, err)
			http.Error(w, "Invalid stream file", http.StatusForbidden)
			return
		}

		if !exemptTarget(target) {
			buf := make([]byte, sniff.PrefixSize)
			n, rerr := io.ReadFull(resp.Body, buf)
			if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
				r.logger.Printf("Error reading prefix of %s: %v", target, rerr)
				http.Error(w, "An internal server error occurred", http.StatusInternalServerError)
				return
			}
			prefix = buf[:n]

			if err := sniff.CheckType(prefix, sniff.AudioTypes); err != nil {
				r.logger.Printf("Safety check failed for %s: %v", target, err)
				http.Error(w, "Invalid stream file", http.StatusForbidden)
				return
			}
		}
	}

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if len(prefix) > 0 {
		if _, err := w.Write(prefix); err != nil {
			return
		}
	}
	if err := pump(w, resp.Body); err != nil {
		// Headers are gone; nothing to send. Client disconnects land here too.
		r.logger.Printf("Stream of %s ended early: %v", target, err)
	}
}

// pump copies in fixed-size chunks, flushing each one so long-lived audio
// streams are not held back by response buffering.
func pump(w http.ResponseWriter, body io.Reader) error {
	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 8192)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func exemptTarget(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return sniff.Exempt(u)
}
