// Package imageloader prefetches remote images through a shared pool of at
// most N concurrent fetches. Concurrent requests for the same url share one
// fetch, and resolved urls are cached for the lifetime of the Loader.
package imageloader

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

const DefaultLimit = 6

var ErrClosed = errors.New("image loader is closed")

// Fetcher makes an image available, returning nil once it has been
// retrieved and decoded.
type Fetcher interface {
	Fetch(ctx context.Context, url string) error
}

type FetcherFunc func(ctx context.Context, url string) error

func (f FetcherFunc) Fetch(ctx context.Context, url string) error {
	return f(ctx, url)
}

// Rewriter maps a source url to the url actually fetched, e.g. a CDN
// mirror. The rewritten url is what Load returns.
type Rewriter func(url string) string

// PrefixRewriter replaces a leading origin with a CDN base url. Urls that
// do not start with from are returned unchanged.
func PrefixRewriter(from, to string) Rewriter {
	if from == "" || to == "" {
		return nil
	}
	return func(url string) string {
		if rest, ok := strings.CutPrefix(url, from); ok {
			return strings.TrimSuffix(to, "/") + "/" + strings.TrimPrefix(rest, "/")
		}
		return url
	}
}

// Observer receives loader events. Implementations must be safe for
// concurrent use.
type Observer interface {
	CacheHit()
	Deduplicated()
	FetchFinished(d time.Duration, err error)
	QueueDepth(active, queued int)
}

type Config struct {
	// Limit is the maximum number of concurrent fetches. Defaults to
	// DefaultLimit.
	Limit    int
	Fetcher  Fetcher
	Rewrite  Rewriter
	Observer Observer
}

// Stats is a point-in-time view of the loader.
type Stats struct {
	Limit     int
	Active    int
	Queued    int
	InFlight  int
	Cached    int
	Fetches   int64
	Failures  int64
	CacheHits int64
	Deduped   int64
}

// call is one in-flight url. done is closed once resolved or err is set.
type call struct {
	url      string
	done     chan struct{}
	resolved string
	err      error
}

type Loader struct {
	limit    int
	fetcher  Fetcher
	rewrite  Rewriter
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	cache    map[string]string
	inflight map[string]*call
	queue    []*call
	active   int

	fetches   int64
	failures  int64
	cacheHits int64
	deduped   int64
}

func New(cfg Config) *Loader {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewHTTPFetcher(nil, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		limit:    cfg.Limit,
		fetcher:  cfg.Fetcher,
		rewrite:  cfg.Rewrite,
		observer: cfg.Observer,
		ctx:      ctx,
		cancel:   cancel,
		cache:    make(map[string]string),
		inflight: make(map[string]*call),
	}
}

// Load returns the resolved url for url, fetching it at most once across
// all concurrent callers. A cancelled ctx stops the wait only; the fetch
// still completes and populates the cache.
func (l *Loader) Load(ctx context.Context, url string) (string, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return "", ErrClosed
	}

	if resolved, ok := l.cache[url]; ok {
		l.cacheHits++
		l.mu.Unlock()
		if l.observer != nil {
			l.observer.CacheHit()
		}
		return resolved, nil
	}

	c, ok := l.inflight[url]
	if ok {
		l.deduped++
	} else {
		c = &call{url: url, done: make(chan struct{})}
		l.inflight[url] = c
		l.queue = append(l.queue, c)
		l.scheduleLocked()
	}
	l.mu.Unlock()

	if ok && l.observer != nil {
		l.observer.Deduplicated()
	}

	select {
	case <-c.done:
		return c.resolved, c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// scheduleLocked starts queued calls in FIFO order while below the limit.
func (l *Loader) scheduleLocked() {
	for l.active < l.limit && len(l.queue) > 0 {
		c := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.active++
		l.fetches++
		go l.run(c)
	}
	if l.observer != nil {
		l.observer.QueueDepth(l.active, len(l.queue))
	}
}

func (l *Loader) run(c *call) {
	target := c.url
	if l.rewrite != nil {
		target = l.rewrite(c.url)
	}

	start := time.Now()
	err := l.fetcher.Fetch(l.ctx, target)
	if l.observer != nil {
		l.observer.FetchFinished(time.Since(start), err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		l.failures++
		c.err = err
	} else {
		c.resolved = target
		if !l.closed {
			l.cache[c.url] = target
		}
	}
	delete(l.inflight, c.url)
	l.active--
	close(c.done)

	l.scheduleLocked()
}

func (l *Loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Limit:     l.limit,
		Active:    l.active,
		Queued:    len(l.queue),
		InFlight:  len(l.inflight),
		Cached:    len(l.cache),
		Fetches:   l.fetches,
		Failures:  l.failures,
		CacheHits: l.cacheHits,
		Deduped:   l.deduped,
	}
}

// Close cancels running fetches, fails queued ones and drops the cache.
func (l *Loader) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	queued := l.queue
	l.queue = nil
	for _, c := range queued {
		delete(l.inflight, c.url)
	}
	l.cache = make(map[string]string)
	l.mu.Unlock()

	for _, c := range queued {
		c.err = ErrClosed
		close(c.done)
	}
	l.cancel()
	return nil
}
