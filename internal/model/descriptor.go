package model

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/modelerr"
	"github.com/roach88/classmodel/internal/values"
)

// AttributeDescriptor is one declared attribute of an annotation type.
type AttributeDescriptor = ir.AttributeRecord

// AnnotationDescriptor is the schema of an annotation type.
type AnnotationDescriptor struct {
	rec   ir.DescriptorRecord
	index map[string]int
}

func newDescriptor(rec ir.DescriptorRecord) (*AnnotationDescriptor, error) {
	if rec.Name == "" {
		return nil, fmt.Errorf("descriptor without a name")
	}
	if rec.Repeatable && rec.Container == "" {
		return nil, fmt.Errorf("repeatable annotation %s declares no container", rec.Name)
	}
	d := &AnnotationDescriptor{rec: rec, index: make(map[string]int, len(rec.Attributes))}
	for i, a := range rec.Attributes {
		if _, dup := d.index[a.Name]; dup {
			return nil, fmt.Errorf("annotation %s declares attribute %s twice", rec.Name, a.Name)
		}
		d.index[a.Name] = i
	}
	return d, nil
}

// Name returns the annotation identity.
func (d *AnnotationDescriptor) Name() string { return d.rec.Name }

// Attributes returns the declared attributes in order.
func (d *AnnotationDescriptor) Attributes() []AttributeDescriptor {
	return append([]AttributeDescriptor(nil), d.rec.Attributes...)
}

// Attribute returns the attribute called name, failing with
// unknown-attribute when it is not declared.
func (d *AnnotationDescriptor) Attribute(name string) (AttributeDescriptor, error) {
	i, ok := d.index[name]
	if !ok {
		return AttributeDescriptor{}, modelerr.UnknownAttribute(d.rec.Name, name)
	}
	return d.rec.Attributes[i], nil
}

// IsRepeatable reports whether the annotation may repeat on one target.
func (d *AnnotationDescriptor) IsRepeatable() bool { return d.rec.Repeatable }

// Container names the container annotation of a repeatable annotation.
func (d *AnnotationDescriptor) Container() string { return d.rec.Container }

// IsInherited reports whether class usages apply to subclasses.
func (d *AnnotationDescriptor) IsInherited() bool { return d.rec.Inherited }

// MetaAnnotations returns the usages declared on the annotation type.
func (d *AnnotationDescriptor) MetaAnnotations() []ir.UsageRecord {
	return append([]ir.UsageRecord(nil), d.rec.MetaAnnotations...)
}

// Record returns the storable form of the descriptor.
func (d *AnnotationDescriptor) Record() ir.DescriptorRecord { return d.rec }

// DescriptorRegistry resolves and caches annotation descriptors.
type DescriptorRegistry struct {
	ctx *Context
	log *zap.Logger

	mu     sync.RWMutex
	byName map[string]*AnnotationDescriptor
}

func newDescriptorRegistry(ctx *Context) *DescriptorRegistry {
	r := &DescriptorRegistry{
		ctx:    ctx,
		log:    ctx.log.Named("descriptors"),
		byName: make(map[string]*AnnotationDescriptor),
	}
	for _, rec := range ir.BuiltinDescriptors() {
		if _, err := r.RegisterDescriptor(rec); err != nil {
			panic(err)
		}
	}
	return r
}

// ResolveDescriptor returns the descriptor of annotation type name,
// building it through the active backend on first use.
func (r *DescriptorRegistry) ResolveDescriptor(name string) (*AnnotationDescriptor, error) {
	return r.resolve(name, nil)
}

// FindDescriptor returns a cached descriptor without resolving.
func (r *DescriptorRegistry) FindDescriptor(name string) (*AnnotationDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// RegisterDescriptor installs rec, replacing any descriptor of the same
// name. It is how priming contributions and restored snapshots populate
// the registry.
func (r *DescriptorRegistry) RegisterDescriptor(rec ir.DescriptorRecord) (*AnnotationDescriptor, error) {
	d, err := newDescriptor(rec)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.byName[rec.Name] = d
	r.mu.Unlock()
	return d, nil
}

// Descriptors lists every known descriptor sorted by name.
func (r *DescriptorRegistry) Descriptors() []*AnnotationDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AnnotationDescriptor, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// RepeatableContainer returns the container descriptor of repeatable
// annotation name, or nil when name is not repeatable.
func (r *DescriptorRegistry) RepeatableContainer(name string) (*AnnotationDescriptor, error) {
	d, err := r.ResolveDescriptor(name)
	if err != nil {
		return nil, err
	}
	if !d.IsRepeatable() {
		return nil, nil
	}
	return r.ResolveDescriptor(d.Container())
}

// MetaAnnotationClosure returns every annotation type reachable through
// meta-annotations of name, excluding name itself, in discovery order.
func (r *DescriptorRegistry) MetaAnnotationClosure(name string) ([]string, error) {
	d, err := r.ResolveDescriptor(name)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{name: true}
	var out []string
	queue := []*AnnotationDescriptor{d}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, u := range cur.rec.MetaAnnotations {
			if seen[u.Type] {
				continue
			}
			seen[u.Type] = true
			out = append(out, u.Type)
			next, err := r.ResolveDescriptor(u.Type)
			if err != nil {
				return nil, err
			}
			queue = append(queue, next)
		}
	}
	return out, nil
}

// NewUsage creates a detached usage of annotation name from plain Go
// values, e.g. map[string]any{"length": 40}. Nested usages are given as
// values.MapUsage. Omitted attributes read as their defaults.
func (r *DescriptorRegistry) NewUsage(name string, vals map[string]any) (*AnnotationUsage, error) {
	d, err := r.ResolveDescriptor(name)
	if err != nil {
		return nil, err
	}
	rec, err := values.MapStrategies().Usage(values.MapUsage{Type: name, Values: vals}, r.ctx.resolver(nil))
	if err != nil {
		return nil, err
	}
	return newUsage(d, r, nil, rec.Values), nil
}

// usageOf wraps a stored usage record in a detached usage.
func (r *DescriptorRegistry) usageOf(n ir.Nested) (*AnnotationUsage, error) {
	d, err := r.ResolveDescriptor(n.Type)
	if err != nil {
		return nil, err
	}
	return newUsage(d, r, nil, n.Values), nil
}

func (r *DescriptorRegistry) resolve(name string, chain []string) (*AnnotationDescriptor, error) {
	if d, ok := r.FindDescriptor(name); ok {
		return d, nil
	}

	cd, err := r.ctx.classes.resolve(name, chain)
	if err != nil {
		return nil, err
	}
	if cd.Kind() != ir.AnnotationClass {
		return nil, modelerr.IllegalCast(name, "annotation type")
	}

	rec, err := r.describe(cd, chain)
	if err != nil {
		return nil, err
	}
	d, err := newDescriptor(rec)
	if err != nil {
		return nil, modelerr.BackendIO(name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[name]; ok {
		return existing, nil
	}
	r.byName[name] = d
	r.log.Debug("resolved descriptor", zap.String("annotation", name), zap.Int("attributes", len(rec.Attributes)))
	return d, nil
}

// describe derives a descriptor record from an annotation class: its
// attribute methods and its meta-annotations.
func (r *DescriptorRegistry) describe(cd *ClassDetails, chain []string) (ir.DescriptorRecord, error) {
	attrs, err := backend.AttributeMembers(cd.rec.Methods, r.ctx.resolver(chain))
	if err != nil {
		return ir.DescriptorRecord{}, fmt.Errorf("describe %s: %w", cd.Name(), err)
	}
	rec := ir.DescriptorRecord{
		Name:            cd.Name(),
		Attributes:      attrs,
		MetaAnnotations: cd.usages.records(),
	}
	for _, u := range rec.MetaAnnotations {
		switch u.Type {
		case ir.RepeatableAnnotation:
			ref, ok := u.Values["value"].(ir.ClassRef)
			if !ok {
				return ir.DescriptorRecord{}, modelerr.InvalidValue(ir.RepeatableAnnotation, "value", "container of %s missing", cd.Name())
			}
			rec.Repeatable = true
			rec.Container = ref.Name
		case ir.InheritedAnnotation:
			rec.Inherited = true
		}
	}
	return rec, nil
}
