// Package index implements the offline-index backend: a structural index
// written in CUE, compiled once and shared by any number of contexts.
//
// An index document maps class names to unit descriptions:
//
//	classes: "demo.Person": {
//		super: "demo.Base"
//		fields: [{name: "id", type: "int64", annotations: [{type: "demo.Id"}]}]
//	}
//
// The index never touches class loading; class-reference values are names.
package index

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSrc string

// Index is a compiled structural index. It is safe for concurrent use.
type Index struct {
	mu      sync.Mutex
	classes cue.Value
	names   []string
}

// Compile compiles one CUE document into an index. filename is used in
// error positions only.
func Compile(src []byte, filename string) (*Index, error) {
	ctx := cuecontext.New()
	doc := ctx.CompileBytes(src, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return build(ctx, doc)
}

// Load compiles the CUE package in dir into an index.
func Load(dir string) (*Index, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("index directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("index directory: %s is not a directory", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	doc := ctx.BuildInstance(inst)
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return build(ctx, doc)
}

func build(ctx *cue.Context, doc cue.Value) (*Index, error) {
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("index schema: %w", err)
	}
	v := schema.Unify(doc)
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	ix := &Index{classes: v.LookupPath(cue.ParsePath("classes"))}
	if !ix.classes.Exists() {
		return ix, nil
	}
	iter, err := ix.classes.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		ix.names = append(ix.names, iter.Selector().Unquoted())
	}
	sort.Strings(ix.names)
	return ix, nil
}

// Names lists the indexed class names in sorted order.
func (ix *Index) Names() []string {
	return append([]string(nil), ix.names...)
}

// Has reports whether name is indexed.
func (ix *Index) Has(name string) bool {
	i := sort.SearchStrings(ix.names, name)
	return i < len(ix.names) && ix.names[i] == name
}

// lookup returns the CUE value describing name. Callers hold ix.mu.
func (ix *Index) lookup(name string) (cue.Value, bool) {
	if !ix.Has(name) {
		return cue.Value{}, false
	}
	v := ix.classes.LookupPath(cue.MakePath(cue.Str(name)))
	return v, v.Exists()
}

// CompileError is a CUE failure with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
