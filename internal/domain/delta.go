package domain

import "sort"

// SetDelta computes the declarative reconciliation delta between the current
// and desired sets: what must be added and what must be removed so that
// current becomes desired. Output is sorted for deterministic application.
func SetDelta(current, desired []string) (toAdd, toRemove []string) {
	have := toSet(current)
	want := toSet(desired)

	for item := range want {
		if !have[item] {
			toAdd = append(toAdd, item)
		}
	}
	for item := range have {
		if !want[item] {
			toRemove = append(toRemove, item)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}

// ExplicitDelta filters caller-supplied add/remove lists against the current
// set: adds already present and removes already absent drop out, so applying
// the result is always a real change. Anything not mentioned is untouched.
func ExplicitDelta(current, add, remove []string) (toAdd, toRemove []string) {
	have := toSet(current)

	seen := map[string]bool{}
	for _, item := range add {
		if !have[item] && !seen[item] {
			toAdd = append(toAdd, item)
			seen[item] = true
		}
	}
	seen = map[string]bool{}
	for _, item := range remove {
		if have[item] && !seen[item] {
			toRemove = append(toRemove, item)
			seen[item] = true
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}

// ApplySetDelta returns the current set with the delta applied, sorted.
func ApplySetDelta(current, toAdd, toRemove []string) []string {
	result := toSet(current)
	for _, item := range toAdd {
		result[item] = true
	}
	for _, item := range toRemove {
		delete(result, item)
	}

	out := make([]string, 0, len(result))
	for item := range result {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
