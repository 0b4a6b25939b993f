// Package filesystem gives the rest of the service access to files under the
// media library root and nowhere else.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/amaumene/storarr/internal/utils"
	"github.com/rs/zerolog"
)

var (
	// ErrUnauthorized marks operations refused because of their target path
	ErrUnauthorized = errors.New("unauthorized")

	// ErrOutsideLibrary is returned for any path that escapes the library root
	ErrOutsideLibrary = fmt.Errorf("%w: path is outside the media library", ErrUnauthorized)

	// ErrNotConfigured is returned when no library root is set
	ErrNotConfigured = errors.New("media library path not configured")
)

// PlaceholderExtension marks a file as a streamed placeholder even when it is not a link
const PlaceholderExtension = ".strm"

// VideoExtensions are the file extensions tracked by the library scan
var VideoExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".wmv":  true,
	".strm": true,
}

// IsVideoFile reports whether path has a tracked extension
func IsVideoFile(path string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Entry is one file found by Scan
type Entry struct {
	Path      string
	IsSymlink bool
	Size      int64
}

// Library is the filesystem scoped to one media root
type Library struct {
	root   string
	logger zerolog.Logger
}

// New creates a Library rooted at root
func New(root string, logger zerolog.Logger) (*Library, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrNotConfigured
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library root: %w", err)
	}
	return &Library{root: filepath.Clean(abs), logger: logger}, nil
}

// Root returns the cleaned absolute library root
func (l *Library) Root() string {
	return l.root
}

// Resolve returns the cleaned absolute form of path, or ErrOutsideLibrary if
// it escapes the root. Relative paths are taken relative to the root.
func (l *Library) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path: %w", ErrOutsideLibrary)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	clean := filepath.Clean(path)
	if !utils.HasPathPrefix(clean, l.root) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideLibrary)
	}
	return clean, nil
}

// Exists reports whether something (including a dangling link) exists at path
func (l *Library) Exists(path string) (bool, error) {
	resolved, err := l.Resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Lstat(resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", resolved, err)
	}
	return true, nil
}

// IsSymlink reports whether path is a link or a placeholder file
func (l *Library) IsSymlink(path string) (bool, error) {
	resolved, err := l.Resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Lstat(resolved)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", resolved, err)
	}
	return isSymlink(resolved, info), nil
}

// Size returns the size of the file behind path. Links report their target's
// size, or their own when the target is unreachable.
func (l *Library) Size(path string) (int64, error) {
	resolved, err := l.Resolve(path)
	if err != nil {
		return 0, err
	}
	return fileSize(resolved)
}

// Delete removes a file, a link or an empty directory. It never recurses.
func (l *Library) Delete(path string) error {
	resolved, err := l.Resolve(path)
	if err != nil {
		return err
	}
	if resolved == l.root {
		return fmt.Errorf("refusing to delete library root: %w", ErrUnauthorized)
	}
	if err := os.Remove(resolved); err != nil {
		return fmt.Errorf("failed to delete %s: %w", resolved, err)
	}
	l.logger.Debug().Str("path", resolved).Msg("Deleted file")
	return nil
}

// Scan walks the library and returns every tracked video file. Linked
// directories are not followed. Unreadable entries are logged and skipped.
func (l *Library) Scan(ctx context.Context) ([]Entry, error) {
	if _, err := os.Stat(l.root); err != nil {
		return nil, fmt.Errorf("failed to open library root: %w", err)
	}

	var entries []Entry
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			l.logger.Warn().Err(walkErr).Str("path", path).Msg("Skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsVideoFile(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Skipping file")
			return nil
		}
		size, err := fileSize(path)
		if err != nil {
			size = info.Size()
		}
		entries = append(entries, Entry{
			Path:      path,
			IsSymlink: isSymlink(path, info),
			Size:      size,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan library: %w", err)
	}
	return entries, nil
}

func isSymlink(path string, info fs.FileInfo) bool {
	return info.Mode()&fs.ModeSymlink != 0 ||
		strings.EqualFold(filepath.Ext(path), PlaceholderExtension)
}

func fileSize(path string) (int64, error) {
	if info, err := os.Stat(path); err == nil {
		return info.Size(), nil
	}
	info, err := os.Lstat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.Size(), nil
}
