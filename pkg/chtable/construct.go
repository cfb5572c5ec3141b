// construct.go supplements Table with idiomatic-Go substitutes for
// iterator-pair range constructors: building a table directly from a slice
// or map of entries.
//
// © 2025 chtable authors. MIT License.
package chtable

// FromSlice builds a new Table from a slice of key/value pairs. Later
// duplicates in entries do not overwrite earlier ones, matching Emplace's
// try-insert semantics.
func FromSlice[K comparable, V any](entries []Entry[K, V], policy ShardsPolicy, opts ...Option[K, V]) (*Table[K, V], error) {
	t, err := WithCapacity[K, V](len(entries), policy, opts...)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, err := t.Emplace(e.Key, e.Value); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FromMap builds a new Table from a plain Go map.
func FromMap[K comparable, V any](m map[K]V, policy ShardsPolicy, opts ...Option[K, V]) (*Table[K, V], error) {
	t, err := WithCapacity[K, V](len(m), policy, opts...)
	if err != nil {
		return nil, err
	}
	for k, v := range m {
		if _, err := t.Emplace(k, v); err != nil {
			return nil, err
		}
	}
	return t, nil
}
