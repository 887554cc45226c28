package core

// validation.go checks project input before anything is read or stored.

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/astroapi/internal/source"
)

// ValidatePaths checks that every path has a supported extension and that
// the set does not mix observation and simulation files. existing lists the
// paths already in the project, which take part in the mixing check.
func ValidatePaths(paths, existing []string) error {
	var invalid []string
	kinds := make(map[source.Kind]struct{})

	for _, p := range paths {
		kind, err := source.KindOf(p)
		if err != nil {
			invalid = append(invalid, filepath.Base(p))
			continue
		}
		kinds[kind] = struct{}{}
	}
	if len(invalid) > 0 {
		return &InvalidFileExtensionError{Files: invalid, Allowed: source.AllowedExtensions()}
	}

	for _, p := range existing {
		if kind, err := source.KindOf(p); err == nil {
			kinds[kind] = struct{}{}
		}
	}
	if len(kinds) > 1 {
		names := make([]string, 0, len(kinds))
		for k := range kinds {
			names = append(names, string(k))
		}
		sort.Strings(names)
		return &MixedFileTypesError{Kinds: names}
	}
	return nil
}

// ValidateMeta checks the descriptive fields of a project.
func ValidateMeta(meta ProjectMeta) error {
	if strings.TrimSpace(meta.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return nil
}
