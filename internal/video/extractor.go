// Package video resolves platform watch URLs to playable audio, caching the
// results in memory (resolved URLs) or on disk (downloaded tracks).
package video

import (
	"context"
	"fmt"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// Extractor is the external metadata/download collaborator: resolve a watch
// URL to either a direct audio URL or a downloaded local audio file.
type Extractor interface {
	// ResolveURL returns a direct, streamable audio URL for the video.
	// Platform CDN URLs expire, so results must not be reused past a TTL.
	ResolveURL(ctx context.Context, watchURL string) (string, error)
	// Download fetches the best audio-only track to destPath.
	Download(ctx context.Context, watchURL, destPath string) error
}

const audioFormat = "bestaudio[ext=m4a]"

type ytdlpExtractor struct{}

// NewYTDLPExtractor returns the production Extractor backed by yt-dlp.
func NewYTDLPExtractor() Extractor {
	return ytdlpExtractor{}
}

func (ytdlpExtractor) ResolveURL(ctx context.Context, watchURL string) (string, error) {
	dl := ytdlp.New().
		Format(audioFormat).
		NoPlaylist().
		SkipDownload().
		Print("urls")

	result, err := dl.Run(ctx, watchURL)
	if err != nil {
		return "", fmt.Errorf("resolving audio URL for %s: %w", watchURL, err)
	}

	resolved, _, _ := strings.Cut(strings.TrimSpace(result.Stdout), "\n")
	if resolved == "" {
		return "", fmt.Errorf("no audio URL reported for %s", watchURL)
	}
	return resolved, nil
}

func (ytdlpExtractor) Download(ctx context.Context, watchURL, destPath string) error {
	dl := ytdlp.New().
		Format(audioFormat).
		NoPlaylist().
		ForceOverwrites().
		Output(destPath)

	if _, err := dl.Run(ctx, watchURL); err != nil {
		return fmt.Errorf("downloading audio for %s: %w", watchURL, err)
	}
	return nil
}
