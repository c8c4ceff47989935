// internal/server/handlers.go
package server

import (
	"net/http"
	"strings"

	"github.com/Coayer/podcast-proxy/internal/feed"
	"github.com/Coayer/podcast-proxy/internal/sniff"
	"github.com/Coayer/podcast-proxy/internal/token"
	"github.com/Coayer/podcast-proxy/internal/video"
)

const (
	channelFeedURL = "https://www.youtube.com/feeds/videos.xml?channel_id="

	xmlDeclaration = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"
)

// handleFeed fetches an upstream feed, rewrites its enclosures through the
// proxy and serves the result as RSS. Paths of the form
// /feed/youtube/{channelID} are treated as platform channel feeds and
// converted from Atom; anything else is proxied as
// https://{path-after-/feed/}.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/feed/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	var feedURL string
	youtube := false
	if channelID, ok := strings.CutPrefix(rest, "youtube/"); ok {
		feedURL = channelFeedURL + channelID
		youtube = true
	} else {
		feedURL = "https://" + rest
		if r.URL.RawQuery != "" {
			feedURL += "?" + r.URL.RawQuery
		}
	}

	raw, err := s.fetcher.FetchDocument(r.Context(), feedURL, sniff.FeedTypes)
	if err != nil {
		s.logger.Printf("Error fetching feed %s: %v", feedURL, err)
		http.Error(w, "Failed to fetch feed", http.StatusInternalServerError)
		return
	}

	rewriter := feed.NewRewriter(baseURL(r), r.URL.RequestURI())
	var rewritten []byte
	if youtube {
		rewritten, err = rewriter.YouTubeRSS(raw)
	} else {
		rewritten, err = rewriter.RewriteEnclosures(raw)
	}
	if err != nil {
		s.logger.Printf("Error rewriting feed %s: %v", feedURL, err)
		http.Error(w, "Failed to rewrite feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(xmlDeclaration))
	w.Write(rewritten)
}

// handleStream decodes the opaque stream token and relays the named media.
// Platform watch URLs are resolved through the video adapter; everything
// else goes straight to the relay.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	tok := strings.TrimPrefix(r.URL.Path, "/stream/")
	target, err := token.Decode(tok)
	if err != nil {
		s.logger.Printf("Error decoding stream token: %v", err)
		http.Error(w, "An internal server error occurred", http.StatusInternalServerError)
		return
	}

	if video.IsWatchURL(target) {
		s.streamVideo(w, r, target)
		return
	}
	s.streams.Stream(w, r, target, false)
}

func (s *Server) streamVideo(w http.ResponseWriter, r *http.Request, watchURL string) {
	src, err := s.video.Resolve(r.Context(), watchURL)
	if err != nil {
		s.logger.Printf("Error resolving audio for %s: %v", watchURL, err)
		http.Error(w, "An internal server error occurred", http.StatusInternalServerError)
		return
	}
	if src.Path != "" {
		w.Header().Set("Content-Type", "audio/mp4")
		http.ServeFile(w, r, src.Path)
		return
	}
	// Direct CDN URLs come from the platform resolver, not the feed, so
	// the content type check is skipped.
	s.streams.Stream(w, r, src.URL, true)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.ServeFileFS(w, r, webContent, "static/index.html")
}

// baseURL reconstructs the externally visible base URL for this request,
// honoring reverse proxy headers.
func baseURL(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		if r.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return proto + "://" + host
}
