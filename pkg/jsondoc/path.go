package jsondoc

import (
	"strings"

	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/values"
)

// splitPath turns a dot-separated path ("a.b.c") into its segments. The
// empty path addresses the whole document.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// pathGet resolves path within root, addressing nested Object fields
// only (spec §4.5 addresses "paths within a document"; arrays are
// opaque leaf values, not indexable path segments).
func pathGet(root values.Value, path string) (values.Value, bool) {
	segs := splitPath(path)
	cur := root
	for _, seg := range segs {
		v, ok := cur.Get(seg)
		if !ok {
			return values.Null(), false
		}
		cur = v
	}
	return cur, true
}

// pathSet returns a copy of root with path set to newValue, creating
// intermediate Object levels as needed. Fails with InvalidPath if an
// intermediate segment already holds a non-Object, non-absent value.
func pathSet(root values.Value, path string, newValue values.Value) (values.Value, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return newValue, nil
	}
	return setRecursive(root, segs, newValue)
}

func setRecursive(node values.Value, segs []string, newValue values.Value) (values.Value, error) {
	if node.IsNull() {
		node = values.Object(nil)
	}
	if node.Kind() != values.KindObject {
		return values.Value{}, dberrors.InvalidPath("path segment traverses a non-object value")
	}
	if len(segs) == 1 {
		return node.WithField(segs[0], newValue), nil
	}
	child, _ := node.Get(segs[0])
	updatedChild, err := setRecursive(child, segs[1:], newValue)
	if err != nil {
		return values.Value{}, err
	}
	return node.WithField(segs[0], updatedChild), nil
}

// pathDelete returns a copy of root with path removed. Deleting a path
// whose parent does not exist is a no-op (idempotent, matching the
// engine's general delete-is-not-an-error convention on already-absent
// state).
func pathDelete(root values.Value, path string) (values.Value, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return values.Object(nil), nil
	}
	return deleteRecursive(root, segs)
}

func deleteRecursive(node values.Value, segs []string) (values.Value, error) {
	if node.Kind() != values.KindObject {
		return node, nil
	}
	if len(segs) == 1 {
		return node.WithoutField(segs[0]), nil
	}
	child, ok := node.Get(segs[0])
	if !ok {
		return node, nil
	}
	updatedChild, err := deleteRecursive(child, segs[1:])
	if err != nil {
		return values.Value{}, err
	}
	return node.WithField(segs[0], updatedChild), nil
}

// deepMerge implements spec §4.5's merge: "deep merge for objects;
// replace otherwise" — two Objects merge field-by-field recursively,
// any other pairing of kinds (including Object-over-non-Object) simply
// replaces base with overlay.
func deepMerge(base, overlay values.Value) values.Value {
	if base.Kind() != values.KindObject || overlay.Kind() != values.KindObject {
		return overlay
	}
	result := base
	fields, _ := overlay.AsObject()
	for _, f := range fields {
		existing, ok := result.Get(f.Key)
		if ok {
			result = result.WithField(f.Key, deepMerge(existing, f.Value))
		} else {
			result = result.WithField(f.Key, f.Value)
		}
	}
	return result
}
