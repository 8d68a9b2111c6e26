package scan

import "time"

// FileEntry is one candidate file as reported by the external scanner.
// The core never walks directories itself; it trusts the scanner's
// (path, size, modification time) tuples.
type FileEntry struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Identity returns the cache identity for the entry.
func (e FileEntry) Identity() FileIdentity {
	return FileIdentity{
		Path:    e.Path,
		Size:    e.Size,
		ModTime: e.ModTime.UnixNano(),
	}
}

// FileIdentity identifies a file version for caching purposes. Two
// identities are equal iff path, size and modification time all match;
// any change in size or modification time invalidates cached data for
// the path. ModTime is kept as Unix nanoseconds so the identity is a
// comparable value usable as a map key.
type FileIdentity struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mod_time"`
}
