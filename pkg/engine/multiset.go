package engine

import "sort"

// Multiset counts desired or deployed instances by ConfigKey for a single
// service. It is the common currency the planner diffs and the inventory
// layer builds. A multiset is append-only while it is being constructed and
// read-only thereafter; counts never go negative because no operation
// removes from the set.
type Multiset struct {
	counts map[ConfigKey]int
	order  []ConfigKey
}

// NewMultiset returns an empty multiset.
func NewMultiset() *Multiset {
	return &Multiset{counts: make(map[ConfigKey]int)}
}

// Increment adds one instance of key.
func (m *Multiset) Increment(key ConfigKey) {
	m.Add(key, 1)
}

// Add adds n instances of key. n must not be negative.
func (m *Multiset) Add(key ConfigKey, n int) {
	if n < 0 {
		panic("engine: negative multiset increment")
	}
	if _, ok := m.counts[key]; !ok {
		m.order = append(m.order, key)
	}
	m.counts[key] += n
}

// Count returns the count for key, zero if absent.
func (m *Multiset) Count(key ConfigKey) int {
	return m.counts[key]
}

// Contains reports whether key is present.
func (m *Multiset) Contains(key ConfigKey) bool {
	_, ok := m.counts[key]
	return ok
}

// Keys returns the keys in insertion order.
func (m *Multiset) Keys() []ConfigKey {
	out := make([]ConfigKey, len(m.order))
	copy(out, m.order)
	return out
}

// SortedKeys returns the keys ordered by shard, then image.
func (m *Multiset) SortedKeys() []ConfigKey {
	out := m.Keys()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Compare(out[j]) < 0
	})
	return out
}

// Each calls fn for every (key, count) pair in insertion order.
func (m *Multiset) Each(fn func(key ConfigKey, count int)) {
	for _, key := range m.order {
		fn(key, m.counts[key])
	}
}

// Len returns the number of distinct keys.
func (m *Multiset) Len() int {
	return len(m.counts)
}

// Total returns the total instance count across all keys.
func (m *Multiset) Total() int {
	n := 0
	for _, c := range m.counts {
		n += c
	}
	return n
}

// Equal reports whether m and o hold the same keys with the same counts,
// regardless of insertion order.
func (m *Multiset) Equal(o *Multiset) bool {
	if m.Len() != o.Len() {
		return false
	}
	for key, count := range m.counts {
		if o.counts[key] != count {
			return false
		}
	}
	return true
}

// Export renders the multiset as a nested plain structure keyed
// progressively by each key field and ending in {image: count}. Sharded
// services produce {shard: {image: count}}; unsharded services produce
// {image: count}. This is the shape desired-configuration files use.
func (m *Multiset) Export(sharded bool) map[string]any {
	out := make(map[string]any)
	for _, key := range m.SortedKeys() {
		count := m.counts[key]
		if !sharded {
			out[key.Image] = count
			continue
		}
		images, ok := out[key.Shard].(map[string]any)
		if !ok {
			images = make(map[string]any)
			out[key.Shard] = images
		}
		images[key.Image] = count
	}
	return out
}
