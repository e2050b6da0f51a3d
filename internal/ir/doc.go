// Package ir provides the backend-neutral representation shared by every
// part of classmodel: type references, canonical annotation attribute values
// and the identity-keyed structural records that backends produce and
// snapshots persist.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal, which keeps it
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Records reference other classes by name only, never by pointer
//   - Values are a sealed set (String, Bool, Int, Float, EnumConst,
//     ClassRef, Nested, Array) with a self-describing JSON encoding
//   - All JSON tags use snake_case
//   - Hashing always goes through MarshalCanonical (RFC 8785)
package ir
