package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Coayer/podcast-proxy/internal/config"
	"github.com/Coayer/podcast-proxy/internal/relay"
	"github.com/Coayer/podcast-proxy/internal/server"
	"github.com/Coayer/podcast-proxy/internal/video"
)

var (
	// Version will be set during build
	Version = "dev"

	port     = flag.Int("port", 0, "Port to run the server on (default: 8080 or PORT)")
	cacheDir = flag.String("cache", "", "Path to the audio cache directory (default: cache or CACHE_DIR)")
	proxyURL = flag.String("proxy", "", "Egress proxy URL for upstream requests (default: EXTERNAL_PROXY)")
	version  = flag.Bool("version", false, "Print version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("podcast-proxy version %s\n", Version)
		return
	}

	logger := log.New(os.Stdout, "podcast-proxy: ", log.LstdFlags|log.Lshortfile)

	cfg := config.GetConfig()
	if *port > 0 {
		cfg.Port = *port
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}
	if *proxyURL != "" {
		cfg.ExternalProxy = *proxyURL
	}

	logger.Printf("Starting podcast-proxy v%s", Version)
	logger.Printf("Port: %d", cfg.Port)
	logger.Printf("Audio cache: %s", cfg.CacheDir)
	if cfg.ExternalProxy != "" {
		logger.Printf("Egress proxy: %s", cfg.ExternalProxy)
	}
	if !cfg.SafetyCheck {
		logger.Printf("WARNING: upstream safety checks are disabled")
	}

	r, err := relay.New(logger, relay.Config{
		ProxyURL:    cfg.ExternalProxy,
		SafetyCheck: cfg.SafetyCheck,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize relay: %v", err)
	}

	adapter, err := video.NewAdapter(logger, video.NewYTDLPExtractor(), video.Config{
		CacheDir: cfg.CacheDir,
		Download: cfg.DownloadAudio,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize audio cache: %v", err)
	}
	defer adapter.Close()

	if count, bytes, err := adapter.Stats(); err == nil {
		logger.Printf("Audio cache: %d files, %.1f MB", count, float64(bytes)/(1<<20))
	}

	srv := server.NewServer(logger, r, adapter, cfg)
	if err := srv.Start(cfg.GetAddress()); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}
