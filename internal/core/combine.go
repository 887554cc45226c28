package core

import (
	"context"

	"github.com/JonMunkholm/astroapi/internal/source"
)

// Combine extracts every path with the same configuration, stacks the
// results and removes duplicate rows, keeping the first occurrence.
//
// The result has the sorted union of the per-file columns; a column a file
// does not expose is filled with 0 for that file's rows. A failure on any
// file fails the whole call and no partial table is returned.
func Combine(ctx context.Context, r source.Reader, paths []string, cfg ProjectConfig, opts ...ExtractOption) (*Table, error) {
	parts := make([]*Table, 0, len(paths))
	for _, path := range paths {
		t, err := ExtractTable(ctx, r, path, cfg, opts...)
		if err != nil {
			return nil, err
		}
		parts = append(parts, t)
	}

	combined := Concat(parts...)
	combined.Dedup()
	return combined, nil
}
