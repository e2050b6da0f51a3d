package ir

import (
	"encoding/json"
	"fmt"
)

// ClassKind distinguishes ordinary classes from interfaces, records,
// enums and annotation types.
type ClassKind string

const (
	OrdinaryClass   ClassKind = "class"
	InterfaceClass  ClassKind = "interface"
	RecordClass     ClassKind = "record"
	EnumClass       ClassKind = "enum"
	AnnotationClass ClassKind = "annotation"
)

// ValidClassKinds defines allowed class kinds.
var ValidClassKinds = map[ClassKind]bool{
	OrdinaryClass:   true,
	InterfaceClass:  true,
	RecordClass:     true,
	EnumClass:       true,
	AnnotationClass: true,
}

// Visibility of a class or member.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPackage   Visibility = "package"
	VisibilityPrivate   Visibility = "private"
)

// ValidVisibilities defines allowed visibilities.
var ValidVisibilities = map[Visibility]bool{
	VisibilityPublic:    true,
	VisibilityProtected: true,
	VisibilityPackage:   true,
	VisibilityPrivate:   true,
}

// Modifier names a declaration modifier.
type Modifier string

const (
	ModifierStatic    Modifier = "static"
	ModifierFinal     Modifier = "final"
	ModifierAbstract  Modifier = "abstract"
	ModifierTransient Modifier = "transient"
	ModifierVolatile  Modifier = "volatile"
	ModifierSynthetic Modifier = "synthetic"
)

// ValidModifiers defines allowed modifiers.
var ValidModifiers = map[Modifier]bool{
	ModifierStatic:    true,
	ModifierFinal:     true,
	ModifierAbstract:  true,
	ModifierTransient: true,
	ModifierVolatile:  true,
	ModifierSynthetic: true,
}

// MemberKind distinguishes member records.
type MemberKind string

const (
	MemberField           MemberKind = "field"
	MemberMethod          MemberKind = "method"
	MemberRecordComponent MemberKind = "record_component"
)

// ClassRecord is the backend-neutral structural record of one class.
// Backends produce it; snapshots persist it. Other classes are referenced
// by name only.
type ClassRecord struct {
	Name             string         `json:"name"`
	Kind             ClassKind      `json:"kind"`
	Visibility       Visibility     `json:"visibility,omitempty"`
	Modifiers        []Modifier     `json:"modifiers,omitempty"`
	Super            *TypeRef       `json:"super,omitempty"`
	Interfaces       []*TypeRef     `json:"interfaces,omitempty"`
	TypeParameters   []*TypeRef     `json:"type_parameters,omitempty"`
	Fields           []MemberRecord `json:"fields,omitempty"`
	Methods          []MemberRecord `json:"methods,omitempty"`
	RecordComponents []MemberRecord `json:"record_components,omitempty"`
	EnumConstants    []string       `json:"enum_constants,omitempty"`
	Annotations      []UsageRecord  `json:"annotations,omitempty"`
	Dynamic          bool           `json:"dynamic,omitempty"`
}

// MemberRecord describes a field, method or record component.
// Default is set only on attribute methods of annotation types.
type MemberRecord struct {
	Name        string        `json:"name"`
	Kind        MemberKind    `json:"kind"`
	Type        *TypeRef      `json:"type"`
	Parameters  []*TypeRef    `json:"parameters,omitempty"`
	Visibility  Visibility    `json:"visibility,omitempty"`
	Modifiers   []Modifier    `json:"modifiers,omitempty"`
	Annotations []UsageRecord `json:"annotations,omitempty"`
	Default     Value         `json:"-"`
}

type memberRecordJSON MemberRecord

// MarshalJSON encodes Default through its value envelope.
func (m MemberRecord) MarshalJSON() ([]byte, error) {
	def, err := marshalOptionalValue(m.Default)
	if err != nil {
		return nil, fmt.Errorf("member %s default: %w", m.Name, err)
	}
	return json.Marshal(struct {
		memberRecordJSON
		Default json.RawMessage `json:"default,omitempty"`
	}{memberRecordJSON(m), def})
}

// UnmarshalJSON decodes Default from its value envelope.
func (m *MemberRecord) UnmarshalJSON(data []byte) error {
	var aux struct {
		memberRecordJSON
		Default json.RawMessage `json:"default,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = MemberRecord(aux.memberRecordJSON)
	def, err := unmarshalOptionalValue(aux.Default)
	if err != nil {
		return fmt.Errorf("member %s default: %w", m.Name, err)
	}
	m.Default = def
	return nil
}

// HasModifier reports whether the member carries mod.
func (m MemberRecord) HasModifier(mod Modifier) bool {
	for _, x := range m.Modifiers {
		if x == mod {
			return true
		}
	}
	return false
}

// UsageRecord is one annotation usage with its explicitly supplied values.
type UsageRecord struct {
	Type   string `json:"type"`
	Values Values `json:"values,omitempty"`
}

// DescriptorRecord describes an annotation type.
type DescriptorRecord struct {
	Name            string            `json:"name"`
	Attributes      []AttributeRecord `json:"attributes,omitempty"`
	Repeatable      bool              `json:"repeatable,omitempty"`
	Container       string            `json:"container,omitempty"`
	Inherited       bool              `json:"inherited,omitempty"`
	MetaAnnotations []UsageRecord     `json:"meta_annotations,omitempty"`
}

// AttributeRecord is one declared attribute of an annotation type.
type AttributeRecord struct {
	Name    string    `json:"name"`
	Kind    ValueKind `json:"kind"`
	Type    *TypeRef  `json:"type"`
	Default Value     `json:"-"`
}

type attributeRecordJSON AttributeRecord

// MarshalJSON encodes Default through its value envelope.
func (a AttributeRecord) MarshalJSON() ([]byte, error) {
	def, err := marshalOptionalValue(a.Default)
	if err != nil {
		return nil, fmt.Errorf("attribute %s default: %w", a.Name, err)
	}
	return json.Marshal(struct {
		attributeRecordJSON
		Default json.RawMessage `json:"default,omitempty"`
	}{attributeRecordJSON(a), def})
}

// UnmarshalJSON decodes Default from its value envelope.
func (a *AttributeRecord) UnmarshalJSON(data []byte) error {
	var aux struct {
		attributeRecordJSON
		Default json.RawMessage `json:"default,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = AttributeRecord(aux.attributeRecordJSON)
	def, err := unmarshalOptionalValue(aux.Default)
	if err != nil {
		return fmt.Errorf("attribute %s default: %w", a.Name, err)
	}
	a.Default = def
	return nil
}

func marshalOptionalValue(v Value) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return MarshalValue(v)
}

func unmarshalOptionalValue(raw json.RawMessage) (Value, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return UnmarshalValue(raw)
}

// Well-known meta annotations understood by the descriptor registry.
const (
	RepeatableAnnotation = "classmodel.Repeatable"
	InheritedAnnotation  = "classmodel.Inherited"
)

// BuiltinDescriptors returns the descriptor records every registry starts
// with.
func BuiltinDescriptors() []DescriptorRecord {
	return []DescriptorRecord{
		{
			Name: RepeatableAnnotation,
			Attributes: []AttributeRecord{
				{Name: "value", Kind: KindClass, Type: ClassType(ClassReferenceName)},
			},
		},
		{Name: InheritedAnnotation},
	}
}
