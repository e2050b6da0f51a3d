package model

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/modelerr"
)

// ClassRegistry resolves class names into ClassDetails and caches them
// for the lifetime of its context.
//
// First resolution of a name requested from outside any build is
// coalesced, so concurrent callers share one backend build. Nested
// lookups made by a backend while building are never coalesced; they
// carry the resolution chain instead and fail on re-entry.
type ClassRegistry struct {
	ctx *Context
	log *zap.Logger

	mu           sync.RWMutex
	byName       map[string]*ClassDetails
	order        []*ClassDetails
	implementors map[string][]string

	flights singleflight.Group
}

func newClassRegistry(ctx *Context, trackImplementors bool) *ClassRegistry {
	r := &ClassRegistry{
		ctx:    ctx,
		log:    ctx.log.Named("classes"),
		byName: make(map[string]*ClassDetails),
	}
	if trackImplementors {
		r.implementors = make(map[string][]string)
	}
	return r
}

// ResolveClass returns the description of name, building it through the
// active backend on first use. Later calls return the same pointer.
func (r *ClassRegistry) ResolveClass(name string) (*ClassDetails, error) {
	return r.resolve(name, nil)
}

// FindClass returns a cached description. It never calls the backend.
func (r *ClassRegistry) FindClass(name string) (*ClassDetails, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Classes lists every resolved class in resolution order.
func (r *ClassRegistry) Classes() []*ClassDetails {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*ClassDetails(nil), r.order...)
}

// Len returns the number of resolved classes.
func (r *ClassRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// TracksImplementors reports whether the direct-implementors index is on.
func (r *ClassRegistry) TracksImplementors() bool {
	return r.implementors != nil
}

// DirectImplementors returns the sorted names of resolved classes that
// declare name as their supertype or as an implemented interface. It is
// always empty when tracking is disabled.
func (r *ClassRegistry) DirectImplementors(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]string(nil), r.implementors[name]...)
	sort.Strings(out)
	return out
}

func (r *ClassRegistry) resolve(name string, chain []string) (*ClassDetails, error) {
	if c, ok := r.FindClass(name); ok {
		return c, nil
	}
	for _, n := range chain {
		if n == name {
			return nil, modelerr.Cycle(name, chain)
		}
	}
	if len(chain) > 0 {
		return r.build(name, chain)
	}

	v, err, _ := r.flights.Do(name, func() (any, error) {
		return r.build(name, nil)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ClassDetails), nil
}

func (r *ClassRegistry) build(name string, chain []string) (*ClassDetails, error) {
	if c, ok := r.FindClass(name); ok {
		return c, nil
	}

	start := time.Now()
	res := r.ctx.resolver(append(append([]string(nil), chain...), name))
	rec, err := r.ctx.backend.BuildClass(name, res)
	if err != nil {
		return nil, classifyBuildError(name, err)
	}
	if rec.Name != name {
		return nil, modelerr.BackendIO(name, fmt.Errorf("backend %s built %q", r.ctx.backend.Name(), rec.Name))
	}

	c, err := r.materialize(rec, res)
	if err != nil {
		return nil, err
	}
	c = r.publish(c)
	r.log.Debug("resolved class",
		zap.String("class", name),
		zap.String("backend", r.ctx.backend.Name()),
		zap.Duration("took", time.Since(start)),
	)
	return c, nil
}

// classifyBuildError maps backend failures onto the error taxonomy.
// Model errors raised by nested lookups pass through unchanged.
func classifyBuildError(name string, err error) error {
	var me *modelerr.Error
	switch {
	case errors.As(err, &me):
		return err
	case errors.Is(err, backend.ErrClassNotFound):
		return modelerr.UnknownClass(name, err)
	default:
		return modelerr.BackendIO(name, err)
	}
}

// publish stores c unless another build won the race, and updates the
// implementors index under the same lock.
func (r *ClassRegistry) publish(c *ClassDetails) *ClassDetails {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[c.Name()]; ok {
		return existing
	}
	r.byName[c.Name()] = c
	r.order = append(r.order, c)
	if r.implementors != nil {
		if c.rec.Super != nil && c.rec.Super.Name != "" {
			r.implementors[c.rec.Super.Name] = append(r.implementors[c.rec.Super.Name], c.Name())
		}
		for _, iface := range c.rec.Interfaces {
			if iface.Name != "" {
				r.implementors[iface.Name] = append(r.implementors[iface.Name], c.Name())
			}
		}
	}
	return c
}

// materialize turns a record into a ClassDetails, resolving the
// descriptor of every usage and folding repeated usages of repeatable
// annotations into their container.
func (r *ClassRegistry) materialize(rec *ir.ClassRecord, res *resolution) (*ClassDetails, error) {
	c := &ClassDetails{ctx: r.ctx, rec: rec}

	usages, err := r.usages(rec.Annotations, res)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", rec.Name, err)
	}
	for _, u := range usages {
		c.usages.put(u.bind(c))
	}

	for _, m := range rec.Fields {
		f := &FieldDetails{member{owner: c, rec: m}}
		if err := r.attach(&f.member, f, m.Annotations, res); err != nil {
			return nil, err
		}
		c.fields = append(c.fields, f)
	}
	for _, m := range rec.Methods {
		md := &MethodDetails{member{owner: c, rec: m}}
		if err := r.attach(&md.member, md, m.Annotations, res); err != nil {
			return nil, err
		}
		c.methods = append(c.methods, md)
	}
	for _, m := range rec.RecordComponents {
		rc := &RecordComponentDetails{member{owner: c, rec: m}}
		if err := r.attach(&rc.member, rc, m.Annotations, res); err != nil {
			return nil, err
		}
		c.components = append(c.components, rc)
	}

	// The cells own usages from here on.
	stripped := *rec
	stripped.Annotations = nil
	stripped.Fields = stripMembers(rec.Fields)
	stripped.Methods = stripMembers(rec.Methods)
	stripped.RecordComponents = stripMembers(rec.RecordComponents)
	c.rec = &stripped
	return c, nil
}

func stripMembers(ms []ir.MemberRecord) []ir.MemberRecord {
	if ms == nil {
		return nil
	}
	out := make([]ir.MemberRecord, len(ms))
	for i, m := range ms {
		m.Annotations = nil
		out[i] = m
	}
	return out
}

func (r *ClassRegistry) attach(m *member, self AnnotationTarget, recs []ir.UsageRecord, res *resolution) error {
	usages, err := r.usages(recs, res)
	if err != nil {
		return fmt.Errorf("%s: %w", self.TargetName(), err)
	}
	for _, u := range usages {
		m.usages.put(u.bind(self))
	}
	return nil
}

// usages resolves the descriptors of recs and folds repeatable groups.
func (r *ClassRegistry) usages(recs []ir.UsageRecord, res *resolution) ([]*AnnotationUsage, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	counts := make(map[string]int, len(recs))
	for _, u := range recs {
		counts[u.Type]++
	}

	reg := r.ctx.descriptors
	var out []*AnnotationUsage
	folded := make(map[string]bool)
	for _, u := range recs {
		d, err := reg.resolve(u.Type, res.chain)
		if err != nil {
			return nil, err
		}
		if counts[u.Type] == 1 || !d.IsRepeatable() {
			out = append(out, newUsage(d, reg, nil, u.Values))
			continue
		}
		if folded[u.Type] {
			continue
		}
		folded[u.Type] = true

		container, err := reg.resolve(d.Container(), res.chain)
		if err != nil {
			return nil, err
		}
		var items ir.Array
		for _, x := range recs {
			if x.Type == u.Type {
				items = append(items, ir.Nested{Type: x.Type, Values: x.Values.Clone()})
			}
		}
		out = append(out, newUsage(container, reg, nil, ir.Values{"value": items}))
	}
	return out, nil
}

// DynamicClass collects the structure of a class with no program unit.
// The first rejected usage is kept and reported by CreateDynamicClass.
type DynamicClass struct {
	rec ir.ClassRecord
	err error
}

// SetSuper declares the supertype.
func (b *DynamicClass) SetSuper(t *ir.TypeRef) *DynamicClass {
	b.rec.Super = t
	return b
}

// AddInterface declares an implemented interface.
func (b *DynamicClass) AddInterface(t *ir.TypeRef) *DynamicClass {
	b.rec.Interfaces = append(b.rec.Interfaces, t)
	return b
}

// AddField declares a field. Usages of repeatable annotations are
// rejected; attach their container instead.
func (b *DynamicClass) AddField(name string, t *ir.TypeRef, usages ...*AnnotationUsage) *DynamicClass {
	if !b.accept(b.rec.Name+"#"+name, usages) {
		return b
	}
	b.rec.Fields = append(b.rec.Fields, ir.MemberRecord{
		Name: name, Kind: ir.MemberField, Type: t, Visibility: ir.VisibilityPublic,
		Annotations: usageRecords(usages),
	})
	return b
}

// AddMethod declares a method. Usages follow the AddField rules.
func (b *DynamicClass) AddMethod(name string, returns *ir.TypeRef, params []*ir.TypeRef, usages ...*AnnotationUsage) *DynamicClass {
	if !b.accept(b.rec.Name+"#"+name, usages) {
		return b
	}
	b.rec.Methods = append(b.rec.Methods, ir.MemberRecord{
		Name: name, Kind: ir.MemberMethod, Type: returns, Parameters: params, Visibility: ir.VisibilityPublic,
		Annotations: usageRecords(usages),
	})
	return b
}

// AddAnnotationUsage attaches a class-level usage.
func (b *DynamicClass) AddAnnotationUsage(u *AnnotationUsage) *DynamicClass {
	if !b.accept(b.rec.Name, []*AnnotationUsage{u}) {
		return b
	}
	b.rec.Annotations = append(b.rec.Annotations, u.Record())
	return b
}

// accept reports whether usages may be attached to target, recording the
// first failure.
func (b *DynamicClass) accept(target string, usages []*AnnotationUsage) bool {
	if b.err != nil {
		return false
	}
	for _, u := range usages {
		if u == nil {
			b.err = fmt.Errorf("%s: nil annotation usage", target)
			return false
		}
		if d := u.Descriptor(); d.IsRepeatable() {
			b.err = modelerr.RepeatableMisuse(d.Name(), target, d.Container())
			return false
		}
	}
	return true
}

func usageRecords(usages []*AnnotationUsage) []ir.UsageRecord {
	var out []ir.UsageRecord
	for _, u := range usages {
		out = append(out, u.Record())
	}
	return out
}

// CreateDynamicClass defines a class that has no backing program unit.
// define fills in its structure before the class is published. The name
// must not already be resolved.
func (r *ClassRegistry) CreateDynamicClass(name string, kind ir.ClassKind, define func(*DynamicClass)) (*ClassDetails, error) {
	if !ir.ValidClassKinds[kind] {
		return nil, fmt.Errorf("invalid class kind %q", kind)
	}
	if _, ok := r.FindClass(name); ok {
		return nil, fmt.Errorf("class %s already exists", name)
	}
	b := &DynamicClass{rec: ir.ClassRecord{
		Name: name, Kind: kind, Visibility: ir.VisibilityPublic, Dynamic: true,
	}}
	if define != nil {
		define(b)
	}
	if b.err != nil {
		return nil, b.err
	}
	rec := b.rec
	c, err := r.materialize(&rec, r.ctx.resolver([]string{name}))
	if err != nil {
		return nil, err
	}
	if got := r.publish(c); got != c {
		return nil, fmt.Errorf("class %s already exists", name)
	}
	r.log.Debug("created dynamic class", zap.String("class", name))
	return c, nil
}
