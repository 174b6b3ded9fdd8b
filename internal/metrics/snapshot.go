package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/storage"
)

const (
	LatestFile  = "latest.json"
	DailyPrefix = "metrics-"
	DailyLayout = "2006-01-02"
)

// DailyFile names the snapshot for the UTC day a run started.
func DailyFile(s Summary) string {
	return DailyPrefix + s.StartedAt.UTC().Format(DailyLayout) + ".json"
}

// SnapshotWriter persists summaries as a daily file plus a rolling latest.json.
type SnapshotWriter struct {
	dir string
}

func NewSnapshotWriter(dir string) *SnapshotWriter {
	return &SnapshotWriter{dir: dir}
}

// Write stores s atomically in both files.
func (w *SnapshotWriter) Write(s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return &storage.PersistenceError{Op: "write metrics", Err: fmt.Errorf("encode summary: %w", err)}
	}
	data = append(data, '\n')

	for _, name := range []string{DailyFile(s), LatestFile} {
		path := filepath.Join(w.dir, name)
		if err := storage.WriteFileAtomic(path, data, 0o644); err != nil {
			return &storage.PersistenceError{Op: "write metrics", Err: err}
		}
		logger.Debug("metrics snapshot written", "path", path)
	}
	return nil
}

// ReadSummary loads a snapshot written by Write. Older snapshots that name
// the on-topic count aiStrictCount are read as well.
func ReadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, err
	}
	var in struct {
		Summary
		LegacyStrictCount *int `json:"aiStrictCount"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return Summary{}, fmt.Errorf("decode %s: %w", path, err)
	}
	s := in.Summary
	if in.LegacyStrictCount != nil && s.StrictCount == 0 {
		s.StrictCount = *in.LegacyStrictCount
	}
	return s, nil
}
