package slcatalog

import (
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// File is one discovered snapshot file with its parsed release date.
type File struct {
	Path        string
	Name        string
	ReleaseDate time.Time
}

// Loader discovers and decodes Preparations XML snapshots from a directory
// tree (typically one subdirectory per year).
type Loader struct {
	Dir    string
	Logger *zap.Logger
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string, logger *zap.Logger) *Loader {
	return &Loader{Dir: dir, Logger: logger}
}

// Discover walks the snapshot directory and returns all Preparations-*.xml
// files sorted by release date. Files whose release date cannot be read are
// skipped with a warning.
func (l *Loader) Discover() ([]File, error) {
	var files []File
	err := filepath.WalkDir(l.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasPrefix(name, "Preparations-") || !strings.HasSuffix(name, ".xml") {
			return nil
		}
		release, rerr := l.readReleaseDate(path)
		if rerr != nil {
			l.Logger.Warn("Skipping snapshot file without readable release date",
				zap.String("file", name), zap.Error(rerr))
			return nil
		}
		files = append(files, File{Path: path, Name: name, ReleaseDate: release})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking snapshot dir %s: %w", l.Dir, err)
	}

	// Sequence numbers follow publication date, not discovery order.
	sort.Slice(files, func(i, j int) bool {
		if files[i].ReleaseDate.Equal(files[j].ReleaseDate) {
			return files[i].Name < files[j].Name
		}
		return files[i].ReleaseDate.Before(files[j].ReleaseDate)
	})
	return files, nil
}

// Load decodes one snapshot file completely.
func (l *Loader) Load(f File) (*Document, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", f.Name, err)
	}
	defer fh.Close()

	var doc Document
	if err := xml.NewDecoder(fh).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", f.Name, err)
	}
	return &doc, nil
}

// readReleaseDate pulls the ReleaseDate attribute off the root element
// without decoding the whole file.
func (l *Loader) readReleaseDate(path string) (time.Time, error) {
	fh, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer fh.Close()

	dec := xml.NewDecoder(fh)
	for {
		tok, err := dec.Token()
		if err != nil {
			return time.Time{}, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "ReleaseDate" {
				return ParseReleaseDate(attr.Value)
			}
		}
		return time.Time{}, fmt.Errorf("root element %s has no ReleaseDate", start.Name.Local)
	}
}

// ParseReleaseDate accepts the Swiss dd.mm.yyyy format and ISO dates.
func ParseReleaseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"02.01.2006", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized release date %q", s)
}
