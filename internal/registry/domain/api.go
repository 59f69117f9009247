// Package domain provides the pure domain layer for the API registry with no
// infrastructure dependencies.
//
// It defines the Api record, its fixed binary encoding, the ApiRepository
// persistence interface and the registry error taxonomy. Identity is never
// part of a record: a record is always addressed by the name it is stored
// under.
package domain

import "slices"

// Api is a named configuration unit.
type Api struct {
	// ClientLimit is the maximum number of clients. Zero means no explicit limit.
	ClientLimit uint16

	// ProtectedPaths are the paths that require authentication.
	// Order is preserved and duplicates are allowed.
	ProtectedPaths []string

	// UnprotectedPaths are the paths reachable without authentication.
	UnprotectedPaths []string
}

// Default returns the record used when no explicit record is supplied.
func Default() Api {
	return Api{
		ClientLimit:      0,
		ProtectedPaths:   []string{},
		UnprotectedPaths: []string{},
	}
}

// Equal reports whether two records hold the same values.
// A nil path list and an empty path list are equal.
func (a Api) Equal(other Api) bool {
	return a.ClientLimit == other.ClientLimit &&
		slices.Equal(a.ProtectedPaths, other.ProtectedPaths) &&
		slices.Equal(a.UnprotectedPaths, other.UnprotectedPaths)
}

// Clone returns a deep copy so callers cannot mutate cached records.
func (a Api) Clone() Api {
	return Api{
		ClientLimit:      a.ClientLimit,
		ProtectedPaths:   cloneOrEmpty(a.ProtectedPaths),
		UnprotectedPaths: cloneOrEmpty(a.UnprotectedPaths),
	}
}

func cloneOrEmpty(paths []string) []string {
	if len(paths) == 0 {
		return []string{}
	}
	return slices.Clone(paths)
}

// ValidateName checks that name can be used as a registry key.
// Any non-empty string is accepted; the bytes are used verbatim.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	return nil
}
