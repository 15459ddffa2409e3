// Package compose flattens `allOf` compositions in schema documents into a
// single object by deep merging their members.
//
// Only the structural shape is merged. Members lose their `title`, and no
// attempt is made to reconcile conflicting constraints: later members win.
// Traversal below a node follows exactly one keyword, checked in order:
// `allOf`, then `properties`, then `items`.
package compose

import "github.com/authzed/jsonschemas/pkg/schemadoc"

const (
	keyAllOf      = "allOf"
	keyProperties = "properties"
	keyItems      = "items"
	keyTitle      = "title"
)

// MergeCompositions returns a copy of doc with every reachable `allOf`
// merged away. The input is never modified.
func MergeCompositions(doc any) any {
	return traverse(schemadoc.DeepCopy(doc))
}

// traverse works in place on a document it owns.
func traverse(node any) any {
	obj, ok := node.(map[string]any)
	if !ok {
		return node
	}

	if members, ok := obj[keyAllOf]; ok {
		merged := obj
		if list, ok := members.([]any); ok {
			for _, member := range list {
				fragment, ok := member.(map[string]any)
				if !ok {
					continue
				}

				delete(fragment, keyTitle)
				if _, nested := fragment[keyAllOf]; nested {
					fragment = traverse(fragment).(map[string]any)
				}
				merged = mergeObjects(merged, fragment)
			}
		}

		delete(merged, keyAllOf)
		return traverse(merged)
	}

	if properties, ok := obj[keyProperties]; ok {
		if properties, ok := properties.(map[string]any); ok {
			for name, property := range properties {
				properties[name] = traverse(property)
			}
		}
		return obj
	}

	if items, ok := obj[keyItems]; ok {
		obj[keyItems] = traverse(items)
	}
	return obj
}

// mergeObjects merges fragment into acc and returns acc. A non-empty object
// in the fragment is merged into the accumulated value for its key, which is
// treated as empty if it is missing or not an object. Any other fragment
// value replaces the accumulated one.
func mergeObjects(acc, fragment map[string]any) map[string]any {
	for key, value := range fragment {
		if sub, ok := value.(map[string]any); ok && len(sub) > 0 {
			existing, ok := acc[key].(map[string]any)
			if !ok {
				existing = map[string]any{}
			}
			acc[key] = mergeObjects(existing, sub)
			continue
		}
		acc[key] = value
	}
	return acc
}
