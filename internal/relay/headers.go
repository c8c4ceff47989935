package relay

import "net/http"

// Fronting infrastructure (Cloudflare and friends) injects request headers
// that break some upstream origins. Only player-relevant headers are
// forwarded, which keeps range-seeking working without leaking internals.
var forwardedRequestHeaders = []string{
	"User-Agent",
	"Accept-Encoding",
	"Accept",
	"Connection",
	"Range",
	"Icy-Metadata",
}

// Response headers propagated back to the client. Range and type headers
// matter to players; everything else stays behind the relay.
var forwardedResponseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Cache-Control",
	"ETag",
	"Last-Modified",
}

// FilterRequestHeaders retains only the fixed allow-list of request headers.
func FilterRequestHeaders(headers http.Header) http.Header {
	filtered := make(http.Header, len(forwardedRequestHeaders))
	for _, name := range forwardedRequestHeaders {
		if values, ok := headers[http.CanonicalHeaderKey(name)]; ok {
			filtered[http.CanonicalHeaderKey(name)] = values
		}
	}
	return filtered
}

func copyResponseHeaders(dst, src http.Header) {
	for _, name := range forwardedResponseHeaders {
		if values, ok := src[http.CanonicalHeaderKey(name)]; ok {
			dst[http.CanonicalHeaderKey(name)] = values
		}
	}
}
