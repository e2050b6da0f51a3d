// Package pool implements the lazy backend: each class is described by a
// YAML unit resource fetched through class loading on first use.
//
// The unit for "demo.Person" lives at "demo/Person.unit.yaml":
//
//	kind: class
//	super: demo.Base
//	fields:
//	  - name: id
//	    type: int64
//	    annotations:
//	      - type: demo.Id
//
// Raw bytes are kept in a bounded LRU cache keyed by capability and path.
// Class-reference values are handed to conversion as lazy Handles that
// load nothing until Resolve is called.
package pool

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"reflect"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/values"
)

const (
	// BackendName identifies the pool backend.
	BackendName = "pool"

	// Ext is the resource suffix of unit documents.
	Ext = ".unit.yaml"

	// DefaultCacheSize bounds the number of cached unit documents.
	DefaultCacheSize = 256
)

// cacheKey identifies cached bytes. Only comparable capabilities are
// cached; see cacheable.
type cacheKey struct {
	loading backend.ClassLoading
	path    string
}

// cacheable reports whether loading can be part of a cache key. A
// capability holding a func, map or slice cannot, and its resources are
// fetched on every build.
func cacheable(loading backend.ClassLoading) bool {
	return reflect.ValueOf(loading).Comparable()
}

// Stats counts resource fetches.
type Stats struct {
	Hits   int64
	Misses int64
}

// Backend reads unit resources lazily.
type Backend struct {
	cache  *lru.Cache[cacheKey, []byte]
	hits   atomic.Int64
	misses atomic.Int64
}

var _ backend.Backend = (*Backend)(nil)

// New returns a pool backend caching up to size unit documents. A
// non-positive size selects DefaultCacheSize.
func New(size int) (*Backend, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("unit cache: %w", err)
	}
	return &Backend{cache: cache}, nil
}

// Name implements backend.Backend.
func (*Backend) Name() string { return BackendName }

// Stats returns the cache counters.
func (b *Backend) Stats() Stats {
	return Stats{Hits: b.hits.Load(), Misses: b.misses.Load()}
}

// BuildClass implements backend.Backend.
func (b *Backend) BuildClass(name string, bc backend.BuildContext) (*ir.ClassRecord, error) {
	loading := bc.ClassLoading()
	data, err := b.fetch(name, loading, bc.Logger())
	if err != nil {
		return nil, err
	}

	var u backend.Unit
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, &backend.IOError{Class: name, Path: backend.ResourcePath(name, Ext), Err: err}
	}
	if u.Name != "" && u.Name != name {
		return nil, &backend.IOError{
			Class: name,
			Path:  backend.ResourcePath(name, Ext),
			Err:   fmt.Errorf("unit declares name %q", u.Name),
		}
	}
	u.Name = name
	u.NormalizeUsages()

	rec, err := backend.BuildUnit(&u, bc, strategies(loading))
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", name, err)
	}
	return rec, nil
}

func (b *Backend) fetch(name string, loading backend.ClassLoading, log *zap.Logger) ([]byte, error) {
	path := backend.ResourcePath(name, Ext)
	key := cacheKey{loading: loading, path: path}
	useCache := cacheable(loading)
	if useCache {
		if data, ok := b.cache.Get(key); ok {
			b.hits.Add(1)
			return data, nil
		}
	}
	b.misses.Add(1)

	rc, err := loading.LocateResource(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, backend.NotFound(name)
		}
		return nil, &backend.IOError{Class: name, Path: path, Err: err}
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, &backend.IOError{Class: name, Path: path, Err: err}
	}
	data := buf.Bytes()
	if useCache {
		b.cache.Add(key, data)
	}
	log.Debug("unit fetched", zap.String("class", name), zap.String("path", path),
		zap.Int("bytes", len(data)), zap.Bool("cached", useCache))
	return data, nil
}

// Handle is a lazy class reference. Building it loads nothing.
type Handle struct {
	name    string
	loading backend.ClassLoading
}

// TypeName implements values.Named.
func (h Handle) TypeName() string { return h.name }

// Resolve loads the referenced program unit.
func (h Handle) Resolve() (reflect.Type, error) {
	return h.loading.ClassForName(h.name)
}

func strategies(loading backend.ClassLoading) values.Strategies {
	handles := values.ExtractorFunc(func(usage values.RawUsage, attr ir.AttributeRecord) (any, bool, error) {
		raw, ok, err := backend.UnitExtractor.Extract(usage, attr)
		if err != nil || !ok {
			return raw, ok, err
		}
		if name, isName := raw.(string); isName {
			return Handle{name: name, loading: loading}, true, nil
		}
		return raw, true, nil
	})

	extractors := make(map[ir.ValueKind]values.Extractor, len(ir.ValidValueKinds))
	for kind := range ir.ValidValueKinds {
		extractors[kind] = backend.UnitExtractor
	}
	extractors[ir.KindClass] = handles
	s, err := values.NewStrategies(extractors)
	if err != nil {
		// Every kind has an extractor above.
		panic(err)
	}
	return s
}
