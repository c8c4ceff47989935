// internal/video/index.go
// Bookkeeping for the on-disk audio cache.
package video

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS audio_cache (
    video_id TEXT PRIMARY KEY,
    file_name TEXT NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_access TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Index tracks cached audio files so startup can report cache contents and
// reconcile rows against files that appeared or vanished out of band.
type Index struct {
	db     *sql.DB
	logger *log.Logger
}

func OpenIndex(path string, logger *log.Logger) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache index: %w", err)
	}
	return &Index{db: db, logger: logger}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// Record upserts a cache entry after a completed download.
func (ix *Index) Record(videoID, fileName string, sizeBytes int64) error {
	_, err := ix.db.Exec(`
        INSERT INTO audio_cache (video_id, file_name, size_bytes)
        VALUES (?, ?, ?)
        ON CONFLICT(video_id) DO UPDATE SET
            file_name = excluded.file_name,
            size_bytes = excluded.size_bytes,
            last_access = CURRENT_TIMESTAMP`,
		videoID, fileName, sizeBytes)
	if err != nil {
		return fmt.Errorf("failed to record cache entry: %w", err)
	}
	return nil
}

// Touch bumps last_access on a cache hit. Failures are logged, not returned;
// serving the file matters more than the bookkeeping.
func (ix *Index) Touch(videoID string) {
	_, err := ix.db.Exec(
		"UPDATE audio_cache SET last_access = CURRENT_TIMESTAMP WHERE video_id = ?",
		videoID)
	if err != nil {
		ix.logger.Printf("Error touching cache entry %s: %v", videoID, err)
	}
}

// Reconcile aligns the index with dir: rows whose files are gone are
// removed, and untracked audio files gain rows.
func (ix *Index) Reconcile(dir string) error {
	rows, err := ix.db.Query("SELECT video_id, file_name FROM audio_cache")
	if err != nil {
		return fmt.Errorf("failed to scan cache index: %w", err)
	}
	tracked := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return err
		}
		tracked[id] = name
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for id, name := range tracked {
		if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
			ix.logger.Printf("Cache file %s missing. Dropping index entry", name)
			if _, err := ix.db.Exec("DELETE FROM audio_cache WHERE video_id = ?", id); err != nil {
				return err
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to scan cache directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".m4a") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".m4a")
		if _, ok := tracked[id]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		ix.logger.Printf("Found untracked cache file %s. Indexing", entry.Name())
		if err := ix.Record(id, entry.Name(), info.Size()); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns the number of cached files and their total size in bytes.
func (ix *Index) Stats() (int, int64, error) {
	var count int
	var bytes int64
	err := ix.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM audio_cache").
		Scan(&count, &bytes)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return count, bytes, nil
}
