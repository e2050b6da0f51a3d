package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrDecode             = "E100" // entry cannot be decoded
	ErrInvalidType        = "E101" // type text does not parse
	ErrDuplicateMember    = "E102" // duplicate member name
	ErrMisplacedDefault   = "E103" // default outside an annotation attribute
	ErrMisplacedConstants = "E104" // enumConstants on a non-enum
	ErrMisplacedComponent = "E105" // recordComponents on a non-record
	ErrMissingType        = "E106" // field or component without a type
	ErrSupertypeCycle     = "E107" // class is its own supertype
	ErrMissingUsageType   = "E108" // annotation usage without a type
)

// ValidationError is one structural problem in an index entry.
type ValidationError struct {
	Class   string `json:"class"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Class, e.Field, e.Message)
}

// Validate checks every indexed entry without resolving annotation
// descriptors. It returns all problems found, sorted by class.
func (ix *Index) Validate() []ValidationError {
	var errs []ValidationError
	graph := make(map[string][]string)

	for _, name := range ix.Names() {
		u, err := ix.unit(name)
		if err != nil {
			errs = append(errs, ValidationError{Class: name, Field: "class", Message: err.Error(), Code: ErrDecode})
			continue
		}
		errs = append(errs, validateUnit(u)...)

		for _, text := range append([]string{u.Super}, u.Interfaces...) {
			if text == "" {
				continue
			}
			if t, err := ir.ParseTypeRef(text, typeScope(u)); err == nil && t.Kind != ir.TypeVariable {
				graph[name] = append(graph[name], t.Name)
			}
		}
	}

	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			sort.Strings(scc)
			errs = append(errs, ValidationError{
				Class:   scc[0],
				Field:   "super",
				Message: "supertype cycle: " + strings.Join(scc, " -> "),
				Code:    ErrSupertypeCycle,
			})
		}
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Class < errs[j].Class })
	return errs
}

func typeScope(u *backend.Unit) ir.TypeScope {
	scope := ir.TypeScope{}
	for _, text := range u.TypeParameters {
		if tp, err := ir.ParseTypeParameter(text, scope); err == nil {
			scope[tp.Name] = true
		}
	}
	return scope
}

func validateUnit(u *backend.Unit) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Class: u.Name, Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	scope := ir.TypeScope{}
	for i, text := range u.TypeParameters {
		tp, err := ir.ParseTypeParameter(text, scope)
		if err != nil {
			add(fmt.Sprintf("typeParameters[%d]", i), ErrInvalidType, "%v", err)
			continue
		}
		scope[tp.Name] = true
	}
	checkType := func(field, text string) {
		if _, err := ir.ParseTypeRef(text, scope); err != nil {
			add(field, ErrInvalidType, "%v", err)
		}
	}
	if u.Super != "" {
		checkType("super", u.Super)
	}
	for i, text := range u.Interfaces {
		checkType(fmt.Sprintf("interfaces[%d]", i), text)
	}

	kind := ir.ClassKind(u.Kind)
	if len(u.EnumConstants) > 0 && kind != ir.EnumClass {
		add("enumConstants", ErrMisplacedConstants, "only enums declare constants")
	}
	if len(u.RecordComponents) > 0 && kind != ir.RecordClass {
		add("recordComponents", ErrMisplacedComponent, "only records declare components")
	}
	checkUsages := func(field string, us []*backend.UnitUsage) {
		for i, usage := range us {
			if usage == nil || usage.Type == "" {
				add(fmt.Sprintf("%s[%d]", field, i), ErrMissingUsageType, "annotation usage without a type")
			}
		}
	}
	checkUsages("annotations", u.Annotations)

	for _, group := range []struct {
		field   string
		members []backend.UnitMember
	}{
		{"fields", u.Fields},
		{"methods", u.Methods},
		{"recordComponents", u.RecordComponents},
	} {
		seen := make(map[string]bool)
		for i, m := range group.members {
			field := fmt.Sprintf("%s[%d]", group.field, i)
			// Methods may overload; only fields and components must be unique.
			if group.field != "methods" {
				if seen[m.Name] {
					add(field, ErrDuplicateMember, "duplicate member %q", m.Name)
				}
				seen[m.Name] = true
			}
			text := m.Type
			if group.field == "methods" {
				text = m.Returns
			}
			switch {
			case text != "":
				checkType(field+".type", text)
			case group.field != "methods":
				add(field, ErrMissingType, "member %q has no type", m.Name)
			}
			for j, p := range m.Parameters {
				checkType(fmt.Sprintf("%s.parameters[%d]", field, j), p)
			}
			if m.Default != nil && (kind != ir.AnnotationClass || group.field != "methods") {
				add(field, ErrMisplacedDefault, "default is only allowed on annotation attributes")
			}
			checkUsages(field+".annotations", m.Annotations)
		}
	}
	return errs
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(graph map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

func hasSelfLoop(node string, graph map[string][]string) bool {
	for _, n := range graph[node] {
		if n == node {
			return true
		}
	}
	return false
}
