package values

import (
	"fmt"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/modelerr"
)

// RawUsage is an annotation usage in a backend's native form.
type RawUsage interface {
	// AnnotationType names the annotation type of the usage.
	AnnotationType() string

	// AttributeNames lists the attributes the usage supplies explicitly.
	AttributeNames() []string
}

// Extractor pulls the raw value of one attribute out of a backend usage.
// present is false when the usage omits the attribute; the caller then
// falls back to the attribute's default and the converter is not invoked.
type Extractor interface {
	Extract(usage RawUsage, attr ir.AttributeRecord) (raw any, present bool, err error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(usage RawUsage, attr ir.AttributeRecord) (any, bool, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(usage RawUsage, attr ir.AttributeRecord) (any, bool, error) {
	return f(usage, attr)
}

// Strategy pairs the converter and extractor used for one value kind.
type Strategy struct {
	Converter Converter
	Extractor Extractor
}

// Strategies holds one Strategy per value kind.
type Strategies map[ir.ValueKind]Strategy

// Context carries what converters need while converting one usage.
type Context struct {
	// Annotation names the annotation type being converted, for errors.
	Annotation string

	Resolver   Resolver
	Strategies Strategies
}

// NewStrategies pairs the default converters with per-kind extractors.
// Every value kind must have an extractor.
func NewStrategies(extractors map[ir.ValueKind]Extractor) (Strategies, error) {
	s := make(Strategies, len(ir.ValidValueKinds))
	for kind, conv := range DefaultConverters() {
		ex, ok := extractors[kind]
		if !ok {
			return nil, fmt.Errorf("no extractor for value kind %s", kind)
		}
		s[kind] = Strategy{Converter: conv, Extractor: ex}
	}
	return s, nil
}

// Uniform pairs the default converters with a single extractor used for
// every kind.
func Uniform(ex Extractor) Strategies {
	s := make(Strategies, len(ir.ValidValueKinds))
	for kind, conv := range DefaultConverters() {
		s[kind] = Strategy{Converter: conv, Extractor: ex}
	}
	return s
}

// Convert converts a raw value for attr with the converter of attr.Kind.
func (s Strategies) Convert(raw any, annotation string, attr ir.AttributeRecord, r Resolver) (ir.Value, error) {
	st, ok := s[attr.Kind]
	if !ok || st.Converter == nil {
		return nil, fmt.Errorf("no converter for value kind %q", attr.Kind)
	}
	cx := &Context{Annotation: annotation, Resolver: r, Strategies: s}
	return st.Converter.Convert(raw, attr, cx)
}

// Value extracts and converts one attribute of usage. present is false
// when the usage omits it.
func (s Strategies) Value(usage RawUsage, attr ir.AttributeRecord, r Resolver) (ir.Value, bool, error) {
	st, ok := s[attr.Kind]
	if !ok || st.Extractor == nil {
		return nil, false, fmt.Errorf("no extractor for value kind %q", attr.Kind)
	}
	raw, present, err := st.Extractor.Extract(usage, attr)
	if err != nil {
		return nil, false, fmt.Errorf("extract %s.%s: %w", usage.AnnotationType(), attr.Name, err)
	}
	if !present {
		return nil, false, nil
	}
	v, err := s.Convert(raw, usage.AnnotationType(), attr, r)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Usage converts a whole backend usage into a record holding only the
// explicitly supplied values. Supplying an undeclared attribute fails with
// unknown-attribute; omitting one without a default fails with
// missing-attribute.
func (s Strategies) Usage(usage RawUsage, r Resolver) (ir.UsageRecord, error) {
	name := usage.AnnotationType()
	desc, err := r.Descriptor(name)
	if err != nil {
		return ir.UsageRecord{}, err
	}

	declared := make(map[string]bool, len(desc.Attributes))
	for _, a := range desc.Attributes {
		declared[a.Name] = true
	}
	for _, n := range usage.AttributeNames() {
		if !declared[n] {
			return ir.UsageRecord{}, modelerr.UnknownAttribute(name, n)
		}
	}

	rec := ir.UsageRecord{Type: name}
	for _, attr := range desc.Attributes {
		v, present, err := s.Value(usage, attr, r)
		if err != nil {
			return ir.UsageRecord{}, err
		}
		if !present {
			if attr.Default == nil {
				return ir.UsageRecord{}, modelerr.MissingAttribute(name, attr.Name)
			}
			continue
		}
		if rec.Values == nil {
			rec.Values = make(ir.Values, len(desc.Attributes))
		}
		rec.Values[attr.Name] = v
	}
	return rec, nil
}
