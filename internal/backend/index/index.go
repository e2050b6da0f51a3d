package index

import (
	"fmt"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/values"
)

// BackendName identifies the index backend.
const BackendName = "index"

// Backend builds class records from a compiled Index. Any number of
// contexts may share one Backend.
type Backend struct {
	ix *Index
	s  values.Strategies
}

var _ backend.Backend = (*Backend)(nil)

// New returns a backend reading from ix.
func New(ix *Index) *Backend {
	return &Backend{ix: ix, s: values.Uniform(backend.UnitExtractor)}
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return BackendName }

// Index returns the index the backend reads.
func (b *Backend) Index() *Index { return b.ix }

// BuildClass implements backend.Backend. The CUE value is decoded under
// the index lock; conversion runs unlocked because it may resolve other
// classes through bc.
func (b *Backend) BuildClass(name string, bc backend.BuildContext) (*ir.ClassRecord, error) {
	u, err := b.ix.unit(name)
	if err != nil {
		return nil, err
	}
	rec, err := backend.BuildUnit(u, bc, b.s)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", name, err)
	}
	return rec, nil
}

// Unit decodes the unit indexed under name.
func (ix *Index) Unit(name string) (*backend.Unit, error) {
	return ix.unit(name)
}

func (ix *Index) unit(name string) (*backend.Unit, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	v, ok := ix.lookup(name)
	if !ok {
		return nil, backend.NotFound(name)
	}
	u, err := decodeUnit(name, v)
	if err != nil {
		return nil, &backend.IOError{Class: name, Err: err}
	}
	return u, nil
}
