package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdentityChangesWithModTime(t *testing.T) {
	entry := FileEntry{Path: "/samples/kick.wav", Size: 4096, ModTime: time.Unix(1700000000, 0)}
	id := entry.Identity()

	touched := entry
	touched.ModTime = entry.ModTime.Add(time.Nanosecond)

	assert.NotEqual(t, id, touched.Identity())
	assert.Equal(t, id, entry.Identity())
}

func TestIdentityUsableAsMapKey(t *testing.T) {
	a := FileEntry{Path: "/a.wav", Size: 1, ModTime: time.Unix(1, 0)}
	b := FileEntry{Path: "/a.wav", Size: 1, ModTime: time.Unix(1, 0)}

	seen := map[FileIdentity]int{a.Identity(): 1}
	assert.Equal(t, 1, seen[b.Identity()])
}
