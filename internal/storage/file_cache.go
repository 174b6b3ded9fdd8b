package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/seen"
)

// SeenStore loads and persists a category's seen state.
type SeenStore interface {
	Load(ctx context.Context, category string) (seen.State, error)
	Persist(ctx context.Context, category string, state seen.State) error
}

// seenFile is the on-disk JSON layout of one category's seen state.
type seenFile struct {
	Links   []string `json:"links"`
	Titles  []string `json:"titles"`
	Updated string   `json:"updated"`
}

// FileSeenStore keeps one JSON file per category in a directory.
type FileSeenStore struct {
	dir string
}

var _ SeenStore = (*FileSeenStore)(nil)

// NewFileSeenStore creates a file-backed store rooted at dir.
func NewFileSeenStore(dir string) *FileSeenStore {
	return &FileSeenStore{dir: dir}
}

// Path returns the file used for a category.
func (fs *FileSeenStore) Path(category string) string {
	return filepath.Join(fs.dir, "seen-"+safeName(category)+".json")
}

// Load reads the category's state. A missing, empty or corrupt file yields
// an empty state; Load never fails.
func (fs *FileSeenStore) Load(_ context.Context, category string) (seen.State, error) {
	path := fs.Path(category)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("seen file unreadable, starting empty", "category", category, "path", path, "error", err)
		}
		return seen.New(nil, nil, time.Time{}), nil
	}
	if len(data) == 0 {
		return seen.New(nil, nil, time.Time{}), nil
	}

	var f seenFile
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warn("seen file corrupt, starting empty", "category", category, "path", path, "error", err)
		return seen.New(nil, nil, time.Time{}), nil
	}

	var updated time.Time
	if f.Updated != "" {
		if t, err := time.Parse(time.RFC3339, f.Updated); err == nil {
			updated = t
		}
	}

	state := seen.New(f.Links, f.Titles, updated)
	logger.Debug("seen state loaded", "category", category, "links", len(f.Links), "titles", len(f.Titles))
	return state, nil
}

// Persist atomically replaces the category's file with state.
func (fs *FileSeenStore) Persist(_ context.Context, category string, state seen.State) error {
	f := seenFile{
		Links:  state.Links(),
		Titles: state.Titles(),
	}
	if !state.Updated().IsZero() {
		f.Updated = state.Updated().UTC().Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "persist seen", Category: category, Err: err}
	}
	if err := WriteFileAtomic(fs.Path(category), data, 0o644); err != nil {
		return &PersistenceError{Op: "persist seen", Category: category, Err: err}
	}
	return nil
}

// safeName maps a category key to a file-name token. Lowercase letters,
// digits and '-' pass through; every other byte becomes '_' plus two hex
// digits, so distinct keys never share a file.
func safeName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String()
}
