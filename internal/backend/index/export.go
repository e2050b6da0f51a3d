package index

import (
	"fmt"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"

	"github.com/roach88/classmodel/internal/ir"
)

// Export renders class records as an index document that Compile accepts.
// Types degraded to "other" keep their description and may not parse back.
func Export(recs []ir.ClassRecord) ([]byte, error) {
	classes := make(map[string]any, len(recs))
	for _, rec := range recs {
		classes[rec.Name] = exportClass(rec)
	}

	ctx := cuecontext.New()
	v := ctx.Encode(map[string]any{"classes": classes})
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	out, err := format.Node(v.Syntax())
	if err != nil {
		return nil, fmt.Errorf("format index: %w", err)
	}
	return out, nil
}

func exportClass(rec ir.ClassRecord) map[string]any {
	out := map[string]any{"kind": string(rec.Kind)}
	if rec.Visibility != "" {
		out["visibility"] = string(rec.Visibility)
	}
	if len(rec.Modifiers) > 0 {
		out["modifiers"] = exportModifiers(rec.Modifiers)
	}
	if rec.Super != nil {
		out["super"] = rec.Super.String()
	}
	putTypes(out, "interfaces", rec.Interfaces)
	putTypes(out, "typeParameters", rec.TypeParameters)
	// Record fields are derived from the components on compile.
	if rec.Kind != ir.RecordClass {
		putMembers(out, "fields", rec.Fields)
	}
	putMembers(out, "methods", rec.Methods)
	putMembers(out, "recordComponents", rec.RecordComponents)
	if len(rec.EnumConstants) > 0 {
		out["enumConstants"] = rec.EnumConstants
	}
	if len(rec.Annotations) > 0 {
		out["annotations"] = exportUsages(rec.Annotations)
	}
	return out
}

func putTypes(out map[string]any, key string, ts []*ir.TypeRef) {
	if len(ts) == 0 {
		return
	}
	texts := make([]string, len(ts))
	for i, t := range ts {
		texts[i] = t.String()
	}
	out[key] = texts
}

func putMembers(out map[string]any, key string, ms []ir.MemberRecord) {
	if len(ms) == 0 {
		return
	}
	list := make([]any, len(ms))
	for i, m := range ms {
		list[i] = exportMember(m)
	}
	out[key] = list
}

func exportMember(m ir.MemberRecord) map[string]any {
	out := map[string]any{"name": m.Name}
	if m.Kind == ir.MemberMethod {
		if !m.Type.IsVoid() {
			out["returns"] = m.Type.String()
		}
	} else {
		out["type"] = m.Type.String()
	}
	putTypes(out, "parameters", m.Parameters)
	if m.Visibility != "" {
		out["visibility"] = string(m.Visibility)
	}
	if len(m.Modifiers) > 0 {
		out["modifiers"] = exportModifiers(m.Modifiers)
	}
	if len(m.Annotations) > 0 {
		out["annotations"] = exportUsages(m.Annotations)
	}
	if m.Default != nil {
		out["default"] = exportValue(m.Default)
	}
	return out
}

func exportModifiers(mods []ir.Modifier) []string {
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = string(m)
	}
	return out
}

func exportUsages(us []ir.UsageRecord) []any {
	out := make([]any, len(us))
	for i, u := range us {
		out[i] = exportUsage(u.Type, u.Values)
	}
	return out
}

func exportUsage(typ string, vals ir.Values) map[string]any {
	out := map[string]any{"type": typ}
	if len(vals) > 0 {
		m := make(map[string]any, len(vals))
		for k, v := range vals {
			m[k] = exportValue(v)
		}
		out["values"] = m
	}
	return out
}

func exportValue(v ir.Value) any {
	switch x := v.(type) {
	case ir.String:
		return string(x)
	case ir.Bool:
		return bool(x)
	case ir.Int:
		return int64(x)
	case ir.Float:
		return float64(x)
	case ir.EnumConst:
		return x.Type + "." + x.Name
	case ir.ClassRef:
		return x.Name
	case ir.Nested:
		return exportUsage(x.Type, x.Values)
	case ir.Array:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = exportValue(e)
		}
		return out
	}
	return nil
}
