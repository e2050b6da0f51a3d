package values

import (
	"fmt"
	"sort"

	"github.com/roach88/classmodel/internal/ir"
)

// MapUsage is an in-memory raw usage holding plain Go values, e.g. for
// usages created programmatically on dynamic classes.
type MapUsage struct {
	Type   string
	Values map[string]any
}

// AnnotationType implements RawUsage.
func (u MapUsage) AnnotationType() string { return u.Type }

// AttributeNames implements RawUsage.
func (u MapUsage) AttributeNames() []string {
	names := make([]string, 0, len(u.Values))
	for k := range u.Values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MapExtractor reads attributes from a MapUsage.
var MapExtractor = ExtractorFunc(func(usage RawUsage, attr ir.AttributeRecord) (any, bool, error) {
	mu, ok := usage.(MapUsage)
	if !ok {
		return nil, false, fmt.Errorf("expected MapUsage, got %T", usage)
	}
	v, ok := mu.Values[attr.Name]
	return v, ok, nil
})

// MapStrategies converts MapUsage values with the default converters.
func MapStrategies() Strategies {
	return Uniform(MapExtractor)
}
