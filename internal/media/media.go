// Package media stores uploaded photos and videos on local disk and serves
// them back by name.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/posoja/internal/imaging"
)

// Store persists an uploaded object and returns the URL it is served at.
type Store interface {
	Store(ctx context.Context, data []byte, filename string) (string, error)
}

var (
	// ErrUnsupported is returned for content that is neither an accepted
	// image nor an accepted video.
	ErrUnsupported = errors.New("unsupported media type")
	// ErrTooLarge is returned when the upload exceeds the configured limit.
	ErrTooLarge = errors.New("media too large")
	// ErrNotFound is returned by Open for unknown or malformed names.
	ErrNotFound = errors.New("media not found")
)

var videoExt = map[string]string{
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

var extMIME = map[string]string{
	".jpg":  imaging.OutputMIME,
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

// DiskStore writes media under a directory using random uuid names.
type DiskStore struct {
	dir       string
	urlPrefix string
	maxBytes  int64
	image     imaging.Options
	log       *slog.Logger
}

// Options configures a DiskStore.
type Options struct {
	Dir       string
	URLPrefix string
	MaxBytes  int64
	Image     imaging.Options
}

// NewDiskStore creates the directory if needed and returns a store.
func NewDiskStore(opts Options, log *slog.Logger) (*DiskStore, error) {
	if opts.Dir == "" {
		return nil, errors.New("media directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	if opts.URLPrefix == "" {
		opts.URLPrefix = "/api/media/"
	}
	if !strings.HasSuffix(opts.URLPrefix, "/") {
		opts.URLPrefix += "/"
	}
	return &DiskStore{
		dir:       opts.Dir,
		urlPrefix: opts.URLPrefix,
		maxBytes:  opts.MaxBytes,
		image:     opts.Image,
		log:       log,
	}, nil
}

// Store normalises images to JPEG and keeps videos as uploaded. The
// filename is only consulted when the content cannot be sniffed.
func (s *DiskStore) Store(ctx context.Context, data []byte, filename string) (string, error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var ext string
	switch {
	case imaging.IsImage(data):
		processed, err := imaging.Process(data, s.image)
		if err != nil {
			return "", err
		}
		data, ext = processed, ".jpg"
	default:
		mime := detectVideo(data, filename)
		var ok bool
		if ext, ok = videoExt[mime]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnsupported, mime)
		}
	}

	name := uuid.NewString() + ext
	if err := s.write(name, data); err != nil {
		return "", err
	}

	s.log.Debug("media stored", "name", name, "bytes", len(data))
	return s.urlPrefix + name, nil
}

func detectVideo(data []byte, filename string) string {
	mime := http.DetectContentType(data)
	if _, ok := videoExt[mime]; ok {
		return mime
	}
	// QuickTime is not sniffed by net/http.
	if strings.EqualFold(filepath.Ext(filename), ".mov") && len(data) > 12 && string(data[4:8]) == "ftyp" {
		return "video/quicktime"
	}
	return mime
}

// write stores data atomically through a temp file in the same directory.
func (s *DiskStore) write(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing media: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("renaming media: %w", err)
	}
	return nil
}

// Open returns a stored object and its MIME type. Names that were not
// produced by Store are rejected, so paths never escape the directory.
func (s *DiskStore) Open(name string) (io.ReadSeekCloser, string, error) {
	ext := filepath.Ext(name)
	mime, ok := extMIME[ext]
	if !ok {
		return nil, "", ErrNotFound
	}
	if _, err := uuid.Parse(strings.TrimSuffix(name, ext)); err != nil {
		return nil, "", ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("opening media: %w", err)
	}
	return f, mime, nil
}
