package images

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

const DefaultCacheSize = 256

// Downloader fetches and decodes a remote image.
type Downloader interface {
	Get(ctx context.Context, url string) (*valueobjects.ImageData, error)
}

// Resolver loads the bytes behind an image reference: inline data urls,
// blobs in the local store and remote http(s) urls. Stored and remote
// images are kept in an LRU cache since generation reads the same base
// image repeatedly.
type Resolver struct {
	blobs      repositories.BlobStore
	downloader Downloader
	cache      *lru.Cache[valueobjects.ImageRef, *valueobjects.ImageData]
}

var _ repositories.ImageResolver = (*Resolver)(nil)

func NewResolver(blobs repositories.BlobStore, downloader Downloader, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	cache, err := lru.New[valueobjects.ImageRef, *valueobjects.ImageData](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}

	return &Resolver{
		blobs:      blobs,
		downloader: downloader,
		cache:      cache,
	}, nil
}

func (r *Resolver) Resolve(ctx context.Context, ref valueobjects.ImageRef) (*valueobjects.ImageData, error) {
	if ref.IsZero() {
		return nil, fmt.Errorf("empty image reference")
	}

	if ref.IsDataURL() {
		return valueobjects.ParseDataURL(ref)
	}

	if img, ok := r.cache.Get(ref); ok {
		return img, nil
	}

	var (
		img *valueobjects.ImageData
		err error
	)
	switch s := ref.String(); {
	case r.blobs != nil && r.blobs.Owns(ref):
		img, err = r.blobs.Open(ctx, ref)
	case r.downloader != nil && (strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")):
		img, err = r.downloader.Get(ctx, s)
	default:
		return nil, fmt.Errorf("%w: cannot resolve image reference %q", repositories.ErrNotFound, truncate(s, 80))
	}
	if err != nil {
		return nil, err
	}

	r.cache.Add(ref, img)
	return img, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
