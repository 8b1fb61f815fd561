// Package loader fetches form schema documents from disk, an fs.FS or HTTP.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-formchat/pkg/jsonschema"
	"github.com/goliatone/go-formchat/pkg/schema"
)

// Loader implements jsonschema.Loader. Concurrent loads of the same source
// share one fetch; with caching enabled later loads reuse the payload.
type Loader struct {
	fs       fs.FS
	http     *http.Client
	timeout  time.Duration
	maxBytes int64
	cache    bool

	group singleflight.Group
	mu    sync.RWMutex
	docs  map[string][]byte
}

var _ jsonschema.Loader = (*Loader)(nil)

// New constructs a Loader from options.
func New(options jsonschema.LoaderOptions) *Loader {
	timeout := options.RequestTimeout

	var client *http.Client
	switch {
	case options.HTTPClient != nil:
		clone := *options.HTTPClient
		if timeout > 0 && clone.Timeout == 0 {
			clone.Timeout = timeout
		}
		client = &clone
	case options.AllowHTTPFallback:
		client = &http.Client{Timeout: timeout}
	}

	maxBytes := options.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxRemoteBytes
	}
	return &Loader{
		fs:       options.FileSystem,
		http:     client,
		timeout:  timeout,
		maxBytes: maxBytes,
		cache:    options.Cache,
		docs:     map[string][]byte{},
	}
}

// Load fetches src and wraps the payload in a Document.
func (l *Loader) Load(ctx context.Context, src schema.Source) (schema.Document, error) {
	if src == nil {
		return schema.Document{}, errors.New("loader: source is nil")
	}
	key := string(src.Kind()) + ":" + src.Location()

	if data, ok := l.cached(key); ok {
		return schema.NewDocument(src, data)
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		data, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		if l.cache {
			l.mu.Lock()
			l.docs[key] = data
			l.mu.Unlock()
		}
		return data, nil
	})
	if err != nil {
		return schema.Document{}, fmt.Errorf("loader: %s: %w", src.Location(), err)
	}
	return schema.NewDocument(src, v.([]byte))
}

// Forget drops the cached payload of src.
func (l *Loader) Forget(src schema.Source) {
	if src == nil {
		return
	}
	l.mu.Lock()
	delete(l.docs, string(src.Kind())+":"+src.Location())
	l.mu.Unlock()
}

func (l *Loader) cached(key string) ([]byte, bool) {
	if !l.cache {
		return nil, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	data, ok := l.docs[key]
	return data, ok
}

func (l *Loader) fetch(ctx context.Context, src schema.Source) ([]byte, error) {
	switch src.Kind() {
	case schema.SourceKindFile:
		return loadFile(ctx, src.Location())
	case schema.SourceKindFS:
		return loadFromFS(ctx, l.fs, src.Location())
	case schema.SourceKindURL:
		if l.http == nil {
			return nil, errors.New("http support disabled")
		}
		return loadHTTP(ctx, l.http, src.Location(), l.timeout, l.maxBytes)
	default:
		return nil, fmt.Errorf("unsupported source kind %q", src.Kind())
	}
}
