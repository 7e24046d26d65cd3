package rocks

import (
	"io/fs"
	"path"
	"strings"
)

// ContentSource answers existence questions about the template tree. Names
// are slash-separated and relative to the template root. The resolver only
// talks to this interface, so the tree can live on disk, in an embed.FS or
// anywhere else an fs.FS can reach.
type ContentSource interface {
	// Exists reports whether name is a regular file.
	Exists(name string) bool
	// Glob returns the names matching pattern, as fs.Glob.
	Glob(pattern string) ([]string, error)
}

// FSContent is a ContentSource over an fs.FS.
type FSContent struct {
	fsys fs.FS
}

// NewFSContent wraps fsys.
func NewFSContent(fsys fs.FS) *FSContent {
	return &FSContent{fsys: fsys}
}

func (c *FSContent) Exists(name string) bool {
	name, ok := cleanName(name)
	if !ok {
		return false
	}
	info, err := fs.Stat(c.fsys, name)
	return err == nil && info.Mode().IsRegular()
}

func (c *FSContent) Glob(pattern string) ([]string, error) {
	return fs.Glob(c.fsys, pattern)
}

// cleanName normalizes a request-derived name and rejects anything that
// would escape the root.
func cleanName(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	name = path.Clean(strings.TrimPrefix(name, "/"))
	if !fs.ValidPath(name) || name == "." {
		return "", false
	}
	return name, true
}
