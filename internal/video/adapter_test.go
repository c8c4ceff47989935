package video

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeExtractor struct {
	resolveURLs int32
	downloads   int32
	resolveErr  error
	downloadErr error
	delay       time.Duration
}

func (f *fakeExtractor) ResolveURL(ctx context.Context, watchURL string) (string, error) {
	atomic.AddInt32(&f.resolveURLs, 1)
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return "https://cdn.example.com/audio?sig=abc", nil
}

func (f *fakeExtractor) Download(ctx context.Context, watchURL, destPath string) error {
	atomic.AddInt32(&f.downloads, 1)
	if f.downloadErr != nil {
		return f.downloadErr
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return os.WriteFile(destPath, []byte("m4a-bytes"), 0644)
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestAdapter(t *testing.T, extractor Extractor, download bool) *Adapter {
	t.Helper()
	a, err := NewAdapter(testLogger(), extractor, Config{
		CacheDir: t.TempDir(),
		Download: download,
	})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?v=abc123&t=42s", "abc123", false},
		{"https://www.youtube.com/watch", "", true},
		{"://bad", "", true},
	}
	for _, tt := range tests {
		got, err := VideoID(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("VideoID(%q): expected error, got %q", tt.url, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("VideoID(%q): %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("VideoID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestIsWatchURL(t *testing.T) {
	if !IsWatchURL("https://www.youtube.com/watch?v=abc") {
		t.Error("expected platform watch URL to be recognized")
	}
	if IsWatchURL("https://feeds.example.com/podcast.rss") {
		t.Error("ordinary feed URL misclassified as watch URL")
	}
	if IsWatchURL("https://www.youtube.com.evil.com/watch?v=abc") {
		t.Error("lookalike host misclassified as watch URL")
	}
}

func TestResolveDirectCachesURL(t *testing.T) {
	extractor := &fakeExtractor{}
	a := newTestAdapter(t, extractor, false)

	watchURL := "https://www.youtube.com/watch?v=abc123"
	for i := 0; i < 3; i++ {
		src, err := a.Resolve(context.Background(), watchURL)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if src.URL != "https://cdn.example.com/audio?sig=abc" {
			t.Fatalf("unexpected source URL %q", src.URL)
		}
		if src.Path != "" {
			t.Fatalf("direct resolution should not produce a path, got %q", src.Path)
		}
	}
	if n := atomic.LoadInt32(&extractor.resolveURLs); n != 1 {
		t.Errorf("expected 1 extractor call for 3 resolutions, got %d", n)
	}
}

func TestResolveDirectError(t *testing.T) {
	extractor := &fakeExtractor{resolveErr: fmt.Errorf("video unavailable")}
	a := newTestAdapter(t, extractor, false)

	if _, err := a.Resolve(context.Background(), "https://www.youtube.com/watch?v=abc123"); err == nil {
		t.Fatal("expected error from failing extractor")
	}
	// Failures must not be cached.
	a.Resolve(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if n := atomic.LoadInt32(&extractor.resolveURLs); n != 2 {
		t.Errorf("expected failed resolution to be retried, got %d calls", n)
	}
}

func TestResolveFileDownloadsOnce(t *testing.T) {
	extractor := &fakeExtractor{}
	a := newTestAdapter(t, extractor, true)

	watchURL := "https://www.youtube.com/watch?v=abc123"
	src, err := a.Resolve(context.Background(), watchURL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if src.Path == "" {
		t.Fatal("expected a cache file path")
	}
	data, err := os.ReadFile(src.Path)
	if err != nil {
		t.Fatalf("reading cache file: %v", err)
	}
	if string(data) != "m4a-bytes" {
		t.Errorf("unexpected cache file contents %q", data)
	}

	if _, err := a.Resolve(context.Background(), watchURL); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if n := atomic.LoadInt32(&extractor.downloads); n != 1 {
		t.Errorf("expected 1 download for 2 resolutions, got %d", n)
	}
}

func TestResolveFileConcurrent(t *testing.T) {
	extractor := &fakeExtractor{delay: 50 * time.Millisecond}
	a := newTestAdapter(t, extractor, true)

	watchURL := "https://www.youtube.com/watch?v=abc123"
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src, err := a.Resolve(context.Background(), watchURL)
			if err != nil {
				errs <- err
				return
			}
			data, err := os.ReadFile(src.Path)
			if err != nil {
				errs <- err
				return
			}
			if string(data) != "m4a-bytes" {
				errs <- fmt.Errorf("partial or corrupt cache file: %q", data)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if n := atomic.LoadInt32(&extractor.downloads); n != 1 {
		t.Errorf("expected concurrent resolutions to share 1 download, got %d", n)
	}
}

func TestResolveFileDownloadFailureLeavesNoFile(t *testing.T) {
	extractor := &fakeExtractor{downloadErr: fmt.Errorf("network down")}
	a := newTestAdapter(t, extractor, true)

	if _, err := a.Resolve(context.Background(), "https://www.youtube.com/watch?v=abc123"); err == nil {
		t.Fatal("expected error from failing download")
	}
	if _, err := os.Stat(filepath.Join(a.cacheDir, "abc123.m4a")); !os.IsNotExist(err) {
		t.Error("failed download left a cache file behind")
	}
}
