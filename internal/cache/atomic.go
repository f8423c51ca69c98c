package cache

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// tempPrefix marks in-flight writes; readers and listings skip these files
const tempPrefix = ".tmp-"

// writeFileAtomic writes path through a temp file in the same directory and
// renames it into place, so readers see either the old or the new content.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "cache: create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return eris.Wrap(err, "cache: create temp file")
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eris.Wrap(err, "cache: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eris.Wrap(err, "cache: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return eris.Wrap(err, "cache: close temp file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return eris.Wrapf(err, "cache: rename into %s", path)
	}
	return nil
}

// safeName maps a key component to a single path element
func safeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "__").Replace(s)
	if s == "" || s == "." {
		return "_"
	}
	return s
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}
