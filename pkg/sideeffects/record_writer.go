package sideeffects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

var ErrBadCollectionName = errors.New("collection name must be alphanumeric with dashes or underscores")

var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// FileRecordWriter appends records as JSON lines, one file per collection.
// Appends within a process are serialized by a mutex; the file is opened with
// O_APPEND so concurrent processes interleave whole lines.
type FileRecordWriter struct {
	root string
	mu   sync.Mutex
}

func NewFileRecordWriter(root string) (*FileRecordWriter, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create record directory %q: %w", root, err)
	}

	return &FileRecordWriter{root: root}, nil
}

func (w *FileRecordWriter) Write(_ context.Context, collection string, record map[string]any) error {
	if !collectionNamePattern.MatchString(collection) {
		return fmt.Errorf("%w: %q", ErrBadCollectionName, collection)
	}

	entry := make(map[string]any, len(record)+1)
	for k, v := range record {
		entry[k] = v
	}

	entry["_written_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.root, collection+".jsonl")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open collection %q: %w", collection, err)
	}

	defer func() {
		_ = file.Close()
	}()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}

	return nil
}
