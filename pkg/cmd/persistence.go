// Package cmd holds shared bootstrap helpers for the flowgrid binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/persistence/file"
	"github.com/flowgrid/flowgrid/pkg/persistence/memory"
	"github.com/flowgrid/flowgrid/pkg/persistence/postgresql"
)

// NewPersistence selects the adapter from the URL scheme: memory://,
// file://<dir>, or postgres://. Anything without a recognized scheme is
// treated as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case databaseURL == "" || strings.HasPrefix(databaseURL, "memory://"):
		return memory.NewPersistence(), nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL)
	}
}
