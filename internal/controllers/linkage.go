package controllers

import (
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/amaumene/storarr/internal/models"
	"github.com/amaumene/storarr/internal/utils"
)

// Folder names shorter than this never take part in fuzzy linkage
const minFuzzyNameLength = 6

type catalogEntry struct {
	kind   models.MediaType // Series or Movie
	id     int
	title  string
	tvdbID int
	tmdbID int
	path   string // as reported upstream
	rel    string // relative to the library root, folded
}

// linkTo copies the entry's identity onto item. An item filed under the
// wrong kind by the directory heuristic takes the catalog's kind.
func (e *catalogEntry) linkTo(item *models.MediaItem) {
	id := e.id
	if e.kind == models.MediaTypeSeries {
		item.SonarrID = &id
		if e.tvdbID > 0 {
			tvdb := e.tvdbID
			item.TvdbID = &tvdb
		}
		if !item.Type.IsEpisodic() {
			item.Type = models.MediaTypeSeries
		}
	} else {
		item.RadarrID = &id
		if item.Type.IsEpisodic() {
			item.Type = models.MediaTypeMovie
		}
	}
	if e.tmdbID > 0 {
		tmdb := e.tmdbID
		item.TmdbID = &tmdb
	}
	if e.title != "" {
		item.Title = e.title
	}
}

// catalogIndex maps library-relative folders to catalog entries
type catalogIndex struct {
	series []catalogEntry
	movies []catalogEntry
}

func newCatalogIndex(root string, entries []catalogEntry) *catalogIndex {
	idx := &catalogIndex{}
	for _, e := range entries {
		e.rel = utils.RelativeLibraryPath(e.path, root)
		if e.rel == "" {
			continue
		}
		if e.kind == models.MediaTypeSeries {
			idx.series = append(idx.series, e)
		} else {
			idx.movies = append(idx.movies, e)
		}
	}
	// longest prefix first
	for _, list := range [][]catalogEntry{idx.series, idx.movies} {
		sort.SliceStable(list, func(i, j int) bool { return len(list[i].rel) > len(list[j].rel) })
	}
	return idx
}

func (idx *catalogIndex) size() int {
	return len(idx.series) + len(idx.movies)
}

// match finds the catalog entry owning relFile, a folded library-relative
// path. The kind's own catalog is tried first, then the other kind's, then a
// fuzzy folder-name comparison across both.
func (idx *catalogIndex) match(relFile string, t models.MediaType) *catalogEntry {
	own, other := idx.movies, idx.series
	if t.IsEpisodic() {
		own, other = idx.series, idx.movies
	}
	if e := longestPrefix(own, relFile); e != nil {
		return e
	}
	if e := longestPrefix(other, relFile); e != nil {
		return e
	}
	return idx.fuzzy(relFile)
}

func longestPrefix(entries []catalogEntry, relFile string) *catalogEntry {
	for i := range entries {
		if utils.HasPathPrefix(relFile, entries[i].rel) {
			return &entries[i]
		}
	}
	return nil
}

// fuzzy compares each catalog folder name with the directories of relFile,
// tolerating a single edit. Only a unique match links.
func (idx *catalogIndex) fuzzy(relFile string) *catalogEntry {
	dirs := strings.Split(path.Dir(relFile), "/")

	var found *catalogEntry
	for _, list := range [][]catalogEntry{idx.series, idx.movies} {
		for i := range list {
			name := path.Base(list[i].rel)
			if utf8.RuneCountInString(name) < minFuzzyNameLength {
				continue
			}
			for _, dir := range dirs {
				if utf8.RuneCountInString(dir) < minFuzzyNameLength {
					continue
				}
				if levenshtein.ComputeDistance(name, dir) <= 1 {
					if found != nil && (found.kind != list[i].kind || found.id != list[i].id) {
						return nil
					}
					found = &list[i]
					break
				}
			}
		}
	}
	return found
}
