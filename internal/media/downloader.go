package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-telegram/bot"
)

const downloadTimeout = 30 * time.Second

// Downloader fetches Telegram files into a local scratch directory. The
// files are transient: callers must invoke the returned cleanup once the
// inference call has completed, success or not.
type Downloader struct {
	dir        string
	maxSize    int64
	log        *slog.Logger
	httpClient *http.Client
}

// NewDownloader creates a downloader writing into dir, creating it if
// needed. maxSize caps a single download in bytes.
func NewDownloader(dir string, maxSize int64, log *slog.Logger) (*Downloader, error) {
	if dir == "" {
		return nil, fmt.Errorf("media directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory %s: %w", dir, err)
	}

	return &Downloader{
		dir:        dir,
		maxSize:    maxSize,
		log:        log.With("component", "media_downloader"),
		httpClient: &http.Client{},
	}, nil
}

// Dir returns the scratch directory path.
func (d *Downloader) Dir() string {
	return d.dir
}

// Fetch resolves the attachment's file ID through the Telegram API and
// downloads the content into the scratch directory. It returns the local
// path, the detected MIME type, and a cleanup func that removes the file.
// Cleanup is safe to call exactly once on every exit path.
func (d *Downloader) Fetch(ctx context.Context, b *bot.Bot, att Attachment) (path, mimeType string, cleanup func(), err error) {
	if att.FileID == "" {
		return "", "", nil, fmt.Errorf("empty file ID for %s attachment", att.Kind)
	}

	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	fileObj, err := b.GetFile(dlCtx, &bot.GetFileParams{FileID: att.FileID})
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to get file info from Telegram: %w", err)
	}
	if fileObj.FilePath == "" {
		return "", "", nil, fmt.Errorf("empty file path returned from Telegram for file ID %s", att.FileID)
	}

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, b.FileDownloadLink(fileObj), nil)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", nil, fmt.Errorf("unexpected status %d downloading file ID %s", resp.StatusCode, att.FileID)
	}

	path = filepath.Join(d.dir, att.localName())
	out, err := os.Create(path)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to create local file %s: %w", path, err)
	}

	// Read one byte past the cap so an oversized file is an error, not a
	// silently truncated upload.
	written, err := io.Copy(out, io.LimitReader(resp.Body, d.maxSize+1))
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		d.remove(path)
		return "", "", nil, fmt.Errorf("failed to write local file %s: %w", path, err)
	}
	if written > d.maxSize {
		d.remove(path)
		return "", "", nil, fmt.Errorf("file ID %s exceeds download limit of %d bytes", att.FileID, d.maxSize)
	}
	if written == 0 {
		d.remove(path)
		return "", "", nil, fmt.Errorf("received empty file for file ID %s", att.FileID)
	}

	mimeType = detectMIME(path, att)

	d.log.DebugContext(ctx, "Downloaded attachment",
		"kind", att.Kind, "file_id", att.FileID, "path", path, "bytes", written, "mime_type", mimeType)

	cleanup = func() { d.remove(path) }
	return path, mimeType, cleanup, nil
}

func (d *Downloader) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.log.Warn("Failed to remove transient media file", "path", path, "error", err)
	}
}

// Sweep removes files in the scratch directory older than maxAge. Normal
// operation deletes every download after its inference call; the sweep only
// catches leftovers from crashes mid-call.
func (d *Downloader) Sweep(maxAge time.Duration) error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("failed to read media directory %s: %w", d.dir, err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(d.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			d.log.Warn("Failed to remove stale media file", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		d.log.Info("Swept stale media files", "removed", removed, "max_age", maxAge)
	}
	return nil
}

// detectMIME sniffs the file's content, falling back to kind-based defaults
// when sniffing is inconclusive.
func detectMIME(path string, att Attachment) string {
	buf := make([]byte, 512)
	f, err := os.Open(path)
	if err == nil {
		n, _ := f.Read(buf)
		_ = f.Close()
		if n > 0 {
			if mt := http.DetectContentType(buf[:n]); mt != "application/octet-stream" {
				return mt
			}
		}
	}

	switch att.Kind {
	case KindImage:
		return "image/jpeg"
	case KindVoice:
		return "audio/ogg"
	}
	return "application/octet-stream"
}
