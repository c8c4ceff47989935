package video

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// AudioSource is a playable result: exactly one of URL or Path is set.
type AudioSource struct {
	URL  string // direct CDN audio URL
	Path string // local cache file
}

type Config struct {
	CacheDir string
	// Download selects the download-and-cache strategy instead of
	// resolving direct URLs.
	Download bool
	// TTL bounds reuse of resolved URLs. Defaults to one hour, inside the
	// validity window of platform CDN URLs.
	TTL time.Duration
}

// Adapter caches audio sources for watch URLs. Resolved URLs live in a TTL
// cache; downloaded files are content-addressed by video id and never
// evicted. First-time resolutions are single-flighted per key.
type Adapter struct {
	extractor Extractor
	logger    *log.Logger
	cacheDir  string
	download  bool
	urls      *gocache.Cache
	flights   singleflight.Group
	index     *Index
}

func NewAdapter(logger *log.Logger, extractor Extractor, cfg Config) (*Adapter, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio cache directory: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}

	index, err := OpenIndex(filepath.Join(cfg.CacheDir, "index.db"), logger)
	if err != nil {
		return nil, err
	}
	if err := index.Reconcile(cfg.CacheDir); err != nil {
		return nil, err
	}

	return &Adapter{
		extractor: extractor,
		logger:    logger,
		cacheDir:  cfg.CacheDir,
		download:  cfg.Download,
		urls:      gocache.New(ttl, 10*time.Minute),
		index:     index,
	}, nil
}

// Close releases the cache index. Cached audio files persist on disk.
func (a *Adapter) Close() error {
	return a.index.Close()
}

// Stats reports the number and total size of cached audio files.
func (a *Adapter) Stats() (int, int64, error) {
	return a.index.Stats()
}

// IsWatchURL reports whether rawURL is a platform watch URL handled by the
// adapter rather than the generic relay.
func IsWatchURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Hostname() == "www.youtube.com"
}

// VideoID extracts the platform video identifier from a watch URL.
func VideoID(watchURL string) (string, error) {
	u, err := url.Parse(watchURL)
	if err != nil {
		return "", fmt.Errorf("invalid watch URL %q: %w", watchURL, err)
	}
	id := u.Query().Get("v")
	if id == "" {
		return "", fmt.Errorf("watch URL %q has no video id", watchURL)
	}
	return id, nil
}

// Resolve returns a playable audio source for watchURL, consulting the
// caches first. The result is never sniffed; the platform's own URL is
// trusted as the source.
func (a *Adapter) Resolve(ctx context.Context, watchURL string) (AudioSource, error) {
	id, err := VideoID(watchURL)
	if err != nil {
		return AudioSource{}, err
	}
	if a.download {
		return a.resolveFile(ctx, id, watchURL)
	}
	return a.resolveDirect(ctx, watchURL)
}

func (a *Adapter) resolveDirect(ctx context.Context, watchURL string) (AudioSource, error) {
	if cached, ok := a.urls.Get(watchURL); ok {
		return AudioSource{URL: cached.(string)}, nil
	}

	resolved, err, _ := a.flights.Do("url:"+watchURL, func() (interface{}, error) {
		if cached, ok := a.urls.Get(watchURL); ok {
			return cached.(string), nil
		}
		a.logger.Printf("Resolving audio URL for %s", watchURL)
		direct, err := a.extractor.ResolveURL(ctx, watchURL)
		if err != nil {
			return nil, err
		}
		a.urls.Set(watchURL, direct, gocache.DefaultExpiration)
		return direct, nil
	})
	if err != nil {
		return AudioSource{}, err
	}
	return AudioSource{URL: resolved.(string)}, nil
}

func (a *Adapter) resolveFile(ctx context.Context, id, watchURL string) (AudioSource, error) {
	cachePath := filepath.Join(a.cacheDir, id+".m4a")
	if _, err := os.Stat(cachePath); err == nil {
		a.index.Touch(id)
		return AudioSource{Path: cachePath}, nil
	}

	_, err, _ := a.flights.Do("file:"+id, func() (interface{}, error) {
		// Another flight may have landed while this one queued.
		if _, err := os.Stat(cachePath); err == nil {
			return nil, nil
		}
		a.logger.Printf("Cache miss for %s. Downloading to %s", watchURL, cachePath)
		if err := a.downloadAtomic(ctx, id, watchURL, cachePath); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return AudioSource{}, err
	}
	return AudioSource{Path: cachePath}, nil
}

// downloadAtomic downloads into a scratch directory and renames the finished
// file into place, so concurrent readers never observe a partial write.
func (a *Adapter) downloadAtomic(ctx context.Context, id, watchURL, cachePath string) error {
	scratch, err := os.MkdirTemp(a.cacheDir, id+"-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	tmpPath := filepath.Join(scratch, id+".m4a")
	if err := a.extractor.Download(ctx, watchURL, tmpPath); err != nil {
		return err
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return fmt.Errorf("download produced no file: %w", err)
	}
	if err := os.Rename(tmpPath, cachePath); err != nil {
		return fmt.Errorf("failed to move download into cache: %w", err)
	}

	if err := a.index.Record(id, filepath.Base(cachePath), info.Size()); err != nil {
		a.logger.Printf("Error recording cache entry for %s: %v", id, err)
	}
	return nil
}
