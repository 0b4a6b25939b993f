package utils

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/amaumene/storarr/internal/models"
	"golang.org/x/text/cases"
)

var episodeRegex = regexp.MustCompile(`(?i)S(\d{1,2})E(\d{1,2})`)

// NormalizeSlashes converts backslashes to forward slashes and trims trailing separators
func NormalizeSlashes(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// FoldPath returns a case-folded, slash-normalized key for case-insensitive path comparison
func FoldPath(p string) string {
	return cases.Fold().String(NormalizeSlashes(p))
}

// SamePath reports whether two paths refer to the same file ignoring case and separator style
func SamePath(a, b string) bool {
	return FoldPath(a) == FoldPath(b)
}

// SameFileName reports whether two paths end in the same file name ignoring case
func SameFileName(a, b string) bool {
	return path.Base(FoldPath(a)) == path.Base(FoldPath(b))
}

// HasPathPrefix reports whether p equals prefix or lives below it, ignoring case
func HasPathPrefix(p, prefix string) bool {
	fp, fprefix := FoldPath(p), FoldPath(prefix)
	if fprefix == "/" {
		return strings.HasPrefix(fp, "/")
	}
	return fp == fprefix || strings.HasPrefix(fp, fprefix+"/")
}

// RelativeLibraryPath returns the lowercase path of fullPath relative to the
// library root. Paths outside the library keep only their last two components,
// which is how catalog entries rooted on another mount still line up with ours.
func RelativeLibraryPath(fullPath, libraryRoot string) string {
	p := FoldPath(fullPath)
	root := FoldPath(libraryRoot)

	if root != "" && HasPathPrefix(p, root) {
		return strings.TrimLeft(p[len(root):], "/")
	}

	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, "/")
}

// DetectMediaType guesses the media type from the directory names in the path
func DetectMediaType(p string) models.MediaType {
	lower := "/" + strings.Trim(FoldPath(p), "/") + "/"
	switch {
	case strings.Contains(lower, "/anime/"):
		return models.MediaTypeAnime
	case strings.Contains(lower, "/tv/"), strings.Contains(lower, "/series/"):
		return models.MediaTypeSeries
	default:
		return models.MediaTypeMovie
	}
}

// ParseEpisode extracts season and episode numbers from a file name.
// Both are nil when the name carries no SxxEyy marker.
func ParseEpisode(filePath string) (*int, *int) {
	name := path.Base(NormalizeSlashes(filePath))
	name = strings.TrimSuffix(name, path.Ext(name))

	matches := episodeRegex.FindStringSubmatch(name)
	if matches == nil {
		return nil, nil
	}
	season, _ := strconv.Atoi(matches[1])
	episode, _ := strconv.Atoi(matches[2])
	return &season, &episode
}

// TitleFromPath returns the file name without its extension
func TitleFromPath(filePath string) string {
	name := path.Base(NormalizeSlashes(filePath))
	return strings.TrimSuffix(name, path.Ext(name))
}
