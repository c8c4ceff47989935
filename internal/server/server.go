// internal/server/server.go
package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/http"

	"github.com/Coayer/podcast-proxy/internal/config"
	"github.com/Coayer/podcast-proxy/internal/relay"
	"github.com/Coayer/podcast-proxy/internal/video"
)

//go:embed web/static
var rawContent embed.FS

// webContent holds the virtual filesystem for web assets.
var webContent fs.FS

func init() {
	var err error
	webContent, err = fs.Sub(rawContent, "web")
	if err != nil {
		panic(fmt.Sprintf("failed to create virtual filesystem for web content: %v", err))
	}
}

// documentFetcher fetches a bounded upstream document after safety checks.
type documentFetcher interface {
	FetchDocument(ctx context.Context, target string, allowed []string) ([]byte, error)
}

// streamer relays an upstream media response to the client.
type streamer interface {
	Stream(w http.ResponseWriter, req *http.Request, target string, skipSniff bool)
}

// audioResolver turns a platform watch URL into a playable audio source.
type audioResolver interface {
	Resolve(ctx context.Context, watchURL string) (video.AudioSource, error)
}

type Server struct {
	logger  *log.Logger
	fetcher documentFetcher
	streams streamer
	video   audioResolver
	config  config.Config
}

func NewServer(logger *log.Logger, r *relay.Relay, v *video.Adapter, cfg config.Config) *Server {
	return &Server{
		logger:  logger,
		fetcher: r,
		streams: r,
		video:   v,
		config:  cfg,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	fileServer := http.FileServer(http.FS(webContent))
	mux.Handle("/static/", fileServer)

	mux.HandleFunc("/feed/", s.handleFeed)
	mux.HandleFunc("/stream/", s.handleStream)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/healthz/", s.handleHealthz)
	mux.HandleFunc("/", s.handleIndex)

	return s.logMiddleware(gzipMiddleware(mux))
}

func (s *Server) Start(addr string) error {
	s.logger.Printf("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Routes())
}
