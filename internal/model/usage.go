package model

import (
	"sync"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/modelerr"
)

// AnnotationUsage is one annotation attached to a target. It holds only
// the explicitly supplied values; every other declared attribute reads as
// the descriptor's default. Usages are immutable.
type AnnotationUsage struct {
	descriptor  *AnnotationDescriptor
	descriptors *DescriptorRegistry
	target      AnnotationTarget
	values      ir.Values
}

func newUsage(d *AnnotationDescriptor, reg *DescriptorRegistry, target AnnotationTarget, vals ir.Values) *AnnotationUsage {
	return &AnnotationUsage{descriptor: d, descriptors: reg, target: target, values: vals.Clone()}
}

// Name returns the annotation identity.
func (u *AnnotationUsage) Name() string { return u.descriptor.Name() }

// Descriptor returns the annotation descriptor.
func (u *AnnotationUsage) Descriptor() *AnnotationDescriptor { return u.descriptor }

// Target returns the annotated element, or nil for nested usages and
// usages not yet attached.
func (u *AnnotationUsage) Target() AnnotationTarget { return u.target }

// AttributeValue returns the value of attribute name: the explicit value
// if supplied, otherwise the declared default. Undeclared names fail with
// unknown-attribute.
func (u *AnnotationUsage) AttributeValue(name string) (ir.Value, error) {
	attr, err := u.descriptor.Attribute(name)
	if err != nil {
		return nil, err
	}
	if v, ok := u.values[name]; ok {
		return v, nil
	}
	if attr.Default == nil {
		return nil, modelerr.MissingAttribute(u.Name(), name)
	}
	return attr.Default, nil
}

// IsExplicit reports whether name was supplied by the usage itself.
func (u *AnnotationUsage) IsExplicit(name string) bool {
	_, ok := u.values[name]
	return ok
}

// ExplicitValues returns a copy of the explicitly supplied values.
func (u *AnnotationUsage) ExplicitValues() ir.Values {
	return u.values.Clone()
}

// Values returns every declared attribute with defaults applied.
func (u *AnnotationUsage) Values() (ir.Values, error) {
	out := make(ir.Values, len(u.descriptor.rec.Attributes))
	for _, a := range u.descriptor.rec.Attributes {
		v, err := u.AttributeValue(a.Name)
		if err != nil {
			return nil, err
		}
		out[a.Name] = v
	}
	return out, nil
}

// String returns a string attribute.
func (u *AnnotationUsage) String(name string) (string, error) {
	v, err := u.typed(name, ir.KindString)
	if err != nil {
		return "", err
	}
	return string(v.(ir.String)), nil
}

// Bool returns a bool attribute.
func (u *AnnotationUsage) Bool(name string) (bool, error) {
	v, err := u.typed(name, ir.KindBool)
	if err != nil {
		return false, err
	}
	return bool(v.(ir.Bool)), nil
}

// Int returns an integer attribute.
func (u *AnnotationUsage) Int(name string) (int64, error) {
	v, err := u.typed(name, ir.KindInt)
	if err != nil {
		return 0, err
	}
	return int64(v.(ir.Int)), nil
}

// ClassName returns the class named by a class-reference attribute.
func (u *AnnotationUsage) ClassName(name string) (string, error) {
	v, err := u.typed(name, ir.KindClass)
	if err != nil {
		return "", err
	}
	return v.(ir.ClassRef).Name, nil
}

// Nested returns a nested annotation attribute as a usage.
func (u *AnnotationUsage) Nested(name string) (*AnnotationUsage, error) {
	v, err := u.typed(name, ir.KindAnnotation)
	if err != nil {
		return nil, err
	}
	return u.descriptors.usageOf(v.(ir.Nested))
}

// NestedArray returns an array-of-annotations attribute as usages.
func (u *AnnotationUsage) NestedArray(name string) ([]*AnnotationUsage, error) {
	v, err := u.typed(name, ir.KindArray)
	if err != nil {
		return nil, err
	}
	arr := v.(ir.Array)
	out := make([]*AnnotationUsage, 0, len(arr))
	for _, item := range arr {
		n, ok := item.(ir.Nested)
		if !ok {
			return nil, modelerr.IllegalCast(u.Name()+"."+name, "annotation array")
		}
		nu, err := u.descriptors.usageOf(n)
		if err != nil {
			return nil, err
		}
		out = append(out, nu)
	}
	return out, nil
}

func (u *AnnotationUsage) typed(name string, kind ir.ValueKind) (ir.Value, error) {
	v, err := u.AttributeValue(name)
	if err != nil {
		return nil, err
	}
	if v.Kind() != kind {
		return nil, modelerr.IllegalCast(u.Name()+"."+name, string(kind))
	}
	return v, nil
}

// Record returns the storable form of the usage.
func (u *AnnotationUsage) Record() ir.UsageRecord {
	return ir.UsageRecord{Type: u.Name(), Values: u.values.Clone()}
}

// bind returns a copy of u attached to target.
func (u *AnnotationUsage) bind(target AnnotationTarget) *AnnotationUsage {
	return &AnnotationUsage{descriptor: u.descriptor, descriptors: u.descriptors, target: target, values: u.values}
}

// usageCell maps annotation identity to usage, preserving first-insertion
// order. Writes replace in place.
type usageCell struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]*AnnotationUsage
}

func (c *usageCell) put(u *AnnotationUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byName == nil {
		c.byName = make(map[string]*AnnotationUsage)
	}
	name := u.Name()
	if _, ok := c.byName[name]; !ok {
		c.order = append(c.order, name)
	}
	c.byName[name] = u
}

func (c *usageCell) remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byName[name]; !ok {
		return false
	}
	delete(c.byName, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *usageCell) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.byName = nil
}

func (c *usageCell) get(name string) (*AnnotationUsage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.byName[name]
	return u, ok
}

func (c *usageCell) list() []*AnnotationUsage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*AnnotationUsage, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.byName[n])
	}
	return out
}

func (c *usageCell) records() []ir.UsageRecord {
	usages := c.list()
	if len(usages) == 0 {
		return nil
	}
	out := make([]ir.UsageRecord, len(usages))
	for i, u := range usages {
		out[i] = u.Record()
	}
	return out
}
