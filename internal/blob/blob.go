// Package blob is the filesystem object store behind avatars, status
// images, and stickers. Objects are addressed by URL path under
// /files/, mirroring their location under the upload root.
package blob

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// URLPrefix is the public path objects are served under.
const URLPrefix = "/files/"

const copyChunkSize = 64 * 1024

// ProgressFunc receives upload progress in percent. Values never
// decrease and the final call is exactly 100.
type ProgressFunc func(percent int)

// Store reads and writes objects under a single root directory.
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Store{root: dir, logger: logger}, nil
}

// Root returns the upload root directory, for serving.
func (s *Store) Root() string { return s.root }

// SaveAvatar stores an avatar image for a phone key and returns its URL.
func (s *Store) SaveAvatar(phoneKey, filename string, r io.Reader, size int64, progress ProgressFunc) (string, error) {
	rel := path.Join("users", phoneKey, "avatars", sanitize(filename))
	return s.save(rel, r, size, progress)
}

// SaveStatusImage stores an admin status image, timestamp-prefixed so
// names never collide, and returns its URL.
func (s *Store) SaveStatusImage(filename string, r io.Reader, size int64, progress ProgressFunc) (string, error) {
	rel := path.Join("adminStatuses", fmt.Sprintf("%d_%s", time.Now().UnixMilli(), sanitize(filename)))
	return s.save(rel, r, size, progress)
}

// SaveSticker stores a sticker image under its pack and returns its URL.
func (s *Store) SaveSticker(packID, filename string, r io.Reader, size int64, progress ProgressFunc) (string, error) {
	rel := path.Join("stickers", sanitize(packID), sanitize(filename))
	return s.save(rel, r, size, progress)
}

// save copies r to rel in chunks, validating that the content is an
// image and reporting progress. The destination is written atomically
// via a temp file.
func (s *Store) save(rel string, r io.Reader, size int64, progress ProgressFunc) (string, error) {
	if progress == nil {
		progress = func(int) {}
	}
	dst := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if ct := http.DetectContentType(head); !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("unsupported content type %s, only images are accepted", ct)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	written := int64(0)
	last := 0
	report := func() {
		if size <= 0 {
			return
		}
		pct := int(written * 100 / size)
		if pct > 99 {
			pct = 99 // 100 is reserved for completion
		}
		if pct > last {
			last = pct
			progress(pct)
		}
	}

	if _, err := tmp.Write(head); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	written += int64(len(head))
	report()

	buf := make([]byte, copyChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				return "", fmt.Errorf("write object: %w", werr)
			}
			written += int64(n)
			report()
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", fmt.Errorf("read upload: %w", rerr)
		}
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("finalize object: %w", err)
	}
	progress(100)
	return URLPrefix + rel, nil
}

// LatestAvatar returns the URL of the most recently stored avatar for
// phoneKey, or "" when none exists.
func (s *Store) LatestAvatar(phoneKey string) string {
	dir := filepath.Join(s.root, "users", phoneKey, "avatars")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return ""
	}
	return URLPrefix + path.Join("users", phoneKey, "avatars", newest)
}

// RemoveURL deletes the object behind a /files/ URL. Unknown URLs and
// already-missing objects are reported as errors.
func (s *Store) RemoveURL(url string) error {
	rel, ok := strings.CutPrefix(url, URLPrefix)
	if !ok || rel == "" {
		return fmt.Errorf("not a stored object url: %s", url)
	}
	rel = path.Clean(rel)
	if strings.HasPrefix(rel, "..") {
		return fmt.Errorf("invalid object path %s", rel)
	}
	return os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
}

// sanitize reduces an untrusted filename to its base name.
func sanitize(name string) string {
	name = filepath.Base(filepath.Clean(name))
	if name == "." || name == string(filepath.Separator) {
		return "file"
	}
	return name
}
