package cache

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"ratiofetcher/internal/model"
)

const blobExt = ".json"

// FileBlobStore keeps one JSON envelope per key at <dir>/<code>/<hash>.json
type FileBlobStore struct {
	dir string
}

// NewFileBlobStore creates the base directory if needed
func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if dir == "" {
		return nil, eris.New("cache: blob directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create blob directory %s", dir)
	}
	return &FileBlobStore{dir: dir}, nil
}

func (s *FileBlobStore) path(key model.CacheKey) string {
	return filepath.Join(s.dir, safeName(key.Code), safeName(key.Hash)+blobExt)
}

// Get reads and decodes the envelope for key
func (s *FileBlobStore) Get(_ context.Context, key model.CacheKey) (*Entry, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "cache: read blob %s", key)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, eris.Wrapf(err, "cache: decode blob %s", key)
	}
	return &e, nil
}

// Put writes the envelope atomically
func (s *FileBlobStore) Put(_ context.Context, key model.CacheKey, entry Entry) error {
	return writeFileAtomic(s.path(key), func(w io.Writer) error {
		if err := json.NewEncoder(w).Encode(entry); err != nil {
			return eris.Wrapf(err, "cache: encode blob %s", key)
		}
		return nil
	})
}

// Delete removes the blob for key. No error if not found.
func (s *FileBlobStore) Delete(_ context.Context, key model.CacheKey) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "cache: delete blob %s", key)
	}
	return nil
}

// DeleteCode removes the directory holding every blob of code
func (s *FileBlobStore) DeleteCode(_ context.Context, code string) (int, error) {
	dir := filepath.Join(s.dir, safeName(code))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, eris.Wrapf(err, "cache: list blobs of %s", code)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), blobExt) && !isTemp(e.Name()) {
			n++
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, eris.Wrapf(err, "cache: delete blobs of %s", code)
	}
	return n, nil
}

// List walks every stored blob. Unreadable envelopes are listed with a zero
// CreatedAt so they count as expired.
func (s *FileBlobStore) List(_ context.Context) ([]BlobInfo, error) {
	var infos []BlobInfo
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || isTemp(d.Name()) || !strings.HasSuffix(d.Name(), blobExt) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}

		info := BlobInfo{
			Key: model.CacheKey{
				Code: filepath.Base(filepath.Dir(path)),
				Hash: strings.TrimSuffix(d.Name(), blobExt),
			},
			Size: fi.Size(),
		}
		if data, err := os.ReadFile(path); err == nil {
			var head struct {
				CreatedAt json.RawMessage `json:"created_at"`
			}
			if json.Unmarshal(data, &head) == nil {
				_ = info.CreatedAt.UnmarshalJSON(head.CreatedAt)
			}
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "cache: walk blob directory")
	}
	return infos, nil
}

// Close is a no-op
func (s *FileBlobStore) Close() error {
	return nil
}
