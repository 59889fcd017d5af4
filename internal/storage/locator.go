package storage

import "strings"

// DriveLocatorPrefix tags a document's storage path as a Google Drive file id.
// Paths without the prefix are object keys in the platform store.
const DriveLocatorPrefix = "gdrive:"

// LocatorKind discriminates the two storage backends a document can live on.
type LocatorKind int

const (
	// KindInternal marks a key in the platform object store.
	KindInternal LocatorKind = iota
	// KindExternal marks a file held in the owner's Google Drive.
	KindExternal
)

// Locator is the resolved form of a document's storage path. Exactly one of
// RawPath and FileID is meaningful, selected by Kind.
type Locator struct {
	Kind    LocatorKind
	RawPath string
	FileID  string
}

// ResolveLocator inspects a storage path once and dispatches on its prefix.
// Permission synchronization only ever applies to the External variant.
func ResolveLocator(path string) Locator {
	if id, ok := strings.CutPrefix(path, DriveLocatorPrefix); ok {
		return Locator{Kind: KindExternal, FileID: id}
	}
	return Locator{Kind: KindInternal, RawPath: path}
}

// IsDrivePath reports whether the storage path points at a Drive file.
func IsDrivePath(path string) bool {
	return strings.HasPrefix(path, DriveLocatorPrefix)
}
