// Package webroot resolves request targets to files below a directory.
package webroot

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"strings"
)

const (
	indexFile       = "index.html"
	defaultMimeType = "application/octet-stream"
)

var (
	ErrWebrootNotFound = errors.New("webroot does not exist or is not a directory")
	ErrNotFound        = errors.New("file not found")
	ErrReadFailure     = errors.New("file could not be read")
)

// Root is an open webroot. Lookups cannot leave the directory, through
// ".." or through symlinks.
type Root struct {
	dir  string
	root *os.Root
}

func Open(dir string) (*Root, error) {
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrWebrootNotFound, dir)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open webroot %s: %w", dir, err)
	}
	return &Root{dir: dir, root: root}, nil
}

func (r *Root) Dir() string {
	return r.dir
}

func (r *Root) Close() error {
	return r.root.Close()
}

// Resolve returns the content and MIME type of the file a request target
// names. A target ending in "/" names the index.html of that directory.
// Missing files, directories and targets escaping the root are
// ErrNotFound; everything that fails after the file was found is
// ErrReadFailure.
func (r *Root) Resolve(target string) ([]byte, string, error) {
	name := relativePath(target)

	f, err := r.root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, "", fmt.Errorf("%w: %s: %v", ErrReadFailure, target, err)
		}
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrReadFailure, target, err)
	}
	if fi.IsDir() {
		return nil, "", fmt.Errorf("%w: %s is a directory", ErrNotFound, target)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrReadFailure, target, err)
	}
	return data, MimeType(name), nil
}

// relativePath turns a request target into a slash separated path
// relative to the root.
func relativePath(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	if strings.HasSuffix(target, "/") {
		target += indexFile
	}
	name := strings.TrimLeft(target, "/")
	if name == "" {
		return "."
	}
	return name
}

// MimeType guesses the content type from the file extension.
func MimeType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return defaultMimeType
}
