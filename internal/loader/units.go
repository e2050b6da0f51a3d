// Package loader provides the default class-loading capability: a set of
// Go types registered under fully-qualified names plus a file system of
// byte resources.
package loader

import (
	"fmt"
	"io"
	"io/fs"
	"reflect"
	"sort"
	"sync"

	"github.com/roach88/classmodel/internal/backend"
)

// Units is a concurrency-safe registry of named program units.
type Units struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
	names map[reflect.Type]string
	fsys  fs.FS
}

// New creates an empty registry reading resources from fsys. fsys may be
// nil when no byte resources are needed.
func New(fsys fs.FS) *Units {
	return &Units{
		types: make(map[string]reflect.Type),
		names: make(map[reflect.Type]string),
		fsys:  fsys,
	}
}

// Register records the type of sample under name. Pass a nil pointer to
// an interface, e.g. (*Named)(nil), to register an interface type.
func (u *Units) Register(name string, sample any) *Units {
	t := reflect.TypeOf(sample)
	if t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Interface {
		t = t.Elem()
	}
	return u.RegisterType(name, t)
}

// RegisterType records t under name. Re-registering a name replaces it.
func (u *Units) RegisterType(name string, t reflect.Type) *Units {
	if t == nil {
		panic(fmt.Sprintf("loader: nil type for %s", name))
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if old, ok := u.types[name]; ok {
		delete(u.names, old)
	}
	u.types[name] = t
	u.names[t] = name
	return u
}

// ClassForName implements backend.ClassLoading.
func (u *Units) ClassForName(name string) (reflect.Type, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	t, ok := u.types[name]
	if !ok {
		return nil, backend.NotFound(name)
	}
	return t, nil
}

// NameOf implements backend.TypeNamer.
func (u *Units) NameOf(t reflect.Type) (string, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	name, ok := u.names[t]
	return name, ok
}

// Names lists registered names in sorted order.
func (u *Units) Names() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	names := make([]string, 0, len(u.types))
	for n := range u.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LocateResource implements backend.ClassLoading.
func (u *Units) LocateResource(path string) (io.ReadCloser, error) {
	if u.fsys == nil {
		return nil, fmt.Errorf("locate %s: %w", path, fs.ErrNotExist)
	}
	return u.fsys.Open(path)
}

// WithResources returns a new registry sharing the registered types but
// reading resources from fsys.
func (u *Units) WithResources(fsys fs.FS) *Units {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := New(fsys)
	for n, t := range u.types {
		out.types[n] = t
		out.names[t] = n
	}
	return out
}
