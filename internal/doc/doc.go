// Package doc provides the generic structured document tree shared by frames,
// reels and cut registers.
//
// Documents are decoded from JSON or YAML into a sealed Value tree (Null,
// String, Int, Float, Bool, Array, Object). Object keys have no inherent
// order; every serializer in this package emits keys in canonical order so
// that identical content always produces byte-identical output.
//
// This package imports nothing internal. All other internal packages build on
// it.
package doc
