package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrFileTooLarge is returned by Save when the stream exceeds the size limit
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// ErrOutsideRoot is returned for URLs that do not resolve inside the storage root
var ErrOutsideRoot = errors.New("path is outside storage root")

// LocalStorage keeps property images on the local filesystem under
// <root>/<propertyID>/<filename> and exposes them as <publicPrefix>/<propertyID>/<filename>.
type LocalStorage struct {
	root         string
	publicPrefix string
	maxSize      int64
	now          func() time.Time
}

// NewLocalStorage creates the root directory if needed
func NewLocalStorage(root, publicPrefix string, maxSize int64) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", root, err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir %s: %w", root, err)
	}
	return &LocalStorage{
		root:         absRoot,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		maxSize:      maxSize,
		now:          time.Now,
	}, nil
}

// Root returns the absolute storage directory
func (s *LocalStorage) Root() string {
	return s.root
}

// PublicPrefix returns the URL prefix stored images are served under
func (s *LocalStorage) PublicPrefix() string {
	return s.publicPrefix
}

// Save streams r to a new file for propertyID and returns its public URL.
// The file is written to a temp name first and renamed once complete.
func (s *LocalStorage) Save(ctx context.Context, propertyID, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !isSafeSegment(propertyID) {
		return "", fmt.Errorf("invalid property id %q", propertyID)
	}

	dir := filepath.Join(s.root, propertyID)
	name := s.generateName(originalName)
	fullPath := filepath.Join(dir, name)
	tmpPath := fullPath + ".tmp"

	f, err := createInDir(dir, tmpPath)
	if err != nil {
		return "", err
	}

	// one extra byte tells us the limit was exceeded
	written, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if err == nil && written > s.maxSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		if errors.Is(err, ErrFileTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename file: %w", err)
	}

	return path.Join(s.publicPrefix, propertyID, name), nil
}

// Remove deletes the file behind url. A file that is already gone is not an error.
func (s *LocalStorage) Remove(url string) error {
	fullPath, err := s.resolve(url)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", url, err)
	}
	return nil
}

// createAttempts bounds retries when the directory is pruned between mkdir and open
const createAttempts = 3

// createInDir creates dir if needed and opens a new file at p inside it
func createInDir(dir, p string) (*os.File, error) {
	var lastErr error
	for i := 0; i < createAttempts; i++ {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			lastErr = fmt.Errorf("failed to create directory: %w", err)
			continue
		}
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		lastErr = fmt.Errorf("failed to create file: %w", err)
		if !os.IsNotExist(err) {
			break
		}
	}
	return nil, lastErr
}

// PruneEmptyDirs removes property directories that are empty and were last
// modified before cutoff. Files are never deleted here.
func (s *LocalStorage) PruneEmptyDirs(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("failed to read storage dir: %w", err)
	}

	pruned := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		// os.Remove refuses non-empty directories, so a concurrent upload keeps its dir
		if err := os.Remove(filepath.Join(s.root, e.Name())); err == nil {
			pruned++
		}
	}
	return pruned, nil
}

// StoredFile describes a file found by Walk
type StoredFile struct {
	URL     string
	ModTime time.Time
	Size    int64
}

// Walk calls fn for every stored image file. Temp files are skipped.
func (s *LocalStorage) Walk(ctx context.Context, fn func(StoredFile) error) error {
	return filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".tmp") {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		return fn(StoredFile{
			URL:     path.Join(s.publicPrefix, filepath.ToSlash(rel)),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	})
}

// resolve maps a public URL back to a path inside the root
func (s *LocalStorage) resolve(url string) (string, error) {
	prefix := s.publicPrefix + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, url)
	}
	rel := strings.TrimPrefix(url, prefix)

	fullPath := filepath.Join(s.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(fullPath, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, url)
	}
	return fullPath, nil
}

// generateName builds <unix-millis>_<token>_<sanitized-basename>
func (s *LocalStorage) generateName(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.Trim(sanitize(strings.TrimSuffix(base, filepath.Ext(base))), ".")
	if len(stem) > 50 {
		stem = stem[:50]
	}
	if stem == "" {
		stem = "image"
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d_%s_%s%s", s.now().UnixMilli(), token, stem, sanitize(ext))
}

// sanitize keeps ASCII letters, digits, dot, dash and underscore
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}

func isSafeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
