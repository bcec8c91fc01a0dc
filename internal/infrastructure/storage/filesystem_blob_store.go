package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

const DefaultPublicPath = "/blobs"

var keyPattern = regexp.MustCompile(`^[0-9a-f]{64}\.(jpeg|png|gif|webp)$`)

// FilesystemBlobStore writes images to the local disk under content-derived
// keys and references them by a public url prefix.
type FilesystemBlobStore struct {
	baseDir   string
	publicURL string
}

var _ repositories.BlobStore = (*FilesystemBlobStore)(nil)

// NewFilesystemBlobStore creates a store rooted at baseDir. publicURL is the
// prefix stored references carry, e.g. "/blobs" or
// "https://img.example.com/blobs".
func NewFilesystemBlobStore(baseDir, publicURL string) (*FilesystemBlobStore, error) {
	if baseDir == "" {
		baseDir = "data/blobs"
	}
	if publicURL == "" {
		publicURL = DefaultPublicPath
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FilesystemBlobStore{baseDir: baseDir, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

// Put stores data and returns its reference. Identical bytes map to the
// same key, so repeated writes are idempotent.
func (s *FilesystemBlobStore) Put(ctx context.Context, data []byte, mimeType string) (valueobjects.ImageRef, error) {
	img, err := valueobjects.NewImageData(data, mimeType)
	if err != nil {
		return "", fmt.Errorf("invalid blob: %w", err)
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:]) + "." + string(img.Format())
	path := filepath.Join(s.baseDir, key)

	if _, err := os.Stat(path); err == nil {
		return s.refFor(key), nil
	}

	tmp, err := os.CreateTemp(s.baseDir, "tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename blob: %w", err)
	}

	return s.refFor(key), nil
}

func (s *FilesystemBlobStore) Open(ctx context.Context, ref valueobjects.ImageRef) (*valueobjects.ImageData, error) {
	key, ok := s.keyFor(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a stored blob", repositories.ErrNotFound, ref)
	}

	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %s", repositories.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}

	return valueobjects.NewImageData(data, "")
}

func (s *FilesystemBlobStore) Owns(ref valueobjects.ImageRef) bool {
	_, ok := s.keyFor(ref)
	return ok
}

// Path returns the file backing key. Keys that could escape the base
// directory are rejected.
func (s *FilesystemBlobStore) Path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: invalid blob key %q", repositories.ErrNotFound, key)
	}
	return filepath.Join(s.baseDir, key), nil
}

func (s *FilesystemBlobStore) refFor(key string) valueobjects.ImageRef {
	return valueobjects.ImageRef(s.publicURL + "/" + key)
}

func (s *FilesystemBlobStore) keyFor(ref valueobjects.ImageRef) (string, bool) {
	key, ok := strings.CutPrefix(ref.String(), s.publicURL+"/")
	if !ok || !keyPattern.MatchString(key) {
		return "", false
	}
	return key, true
}
