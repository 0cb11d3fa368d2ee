package domain

import (
	"reflect"
	"testing"
)

func TestSetDelta(t *testing.T) {
	toAdd, toRemove := SetDelta([]string{"a", "b", "c"}, []string{"b", "c", "d"})

	if !reflect.DeepEqual(toAdd, []string{"d"}) {
		t.Errorf("expected toAdd [d], got %v", toAdd)
	}
	if !reflect.DeepEqual(toRemove, []string{"a"}) {
		t.Errorf("expected toRemove [a], got %v", toRemove)
	}
}

func TestSetDeltaIdentical(t *testing.T) {
	toAdd, toRemove := SetDelta([]string{"a", "b"}, []string{"b", "a"})

	if len(toAdd) != 0 || len(toRemove) != 0 {
		t.Errorf("expected empty delta, got add=%v remove=%v", toAdd, toRemove)
	}
}

func TestSetDeltaEmptyDesired(t *testing.T) {
	toAdd, toRemove := SetDelta([]string{"a", "b"}, []string{})

	if len(toAdd) != 0 {
		t.Errorf("expected no additions, got %v", toAdd)
	}
	if !reflect.DeepEqual(toRemove, []string{"a", "b"}) {
		t.Errorf("expected everything removed, got %v", toRemove)
	}
}

func TestExplicitDeltaFiltersNoOps(t *testing.T) {
	toAdd, toRemove := ExplicitDelta(
		[]string{"a", "b"},
		[]string{"b", "c"}, // b already present
		[]string{"a", "z"}, // z already absent
	)

	if !reflect.DeepEqual(toAdd, []string{"c"}) {
		t.Errorf("expected toAdd [c], got %v", toAdd)
	}
	if !reflect.DeepEqual(toRemove, []string{"a"}) {
		t.Errorf("expected toRemove [a], got %v", toRemove)
	}
}

func TestExplicitDeltaDeduplicates(t *testing.T) {
	toAdd, toRemove := ExplicitDelta(nil, []string{"x", "x", "y"}, nil)

	if !reflect.DeepEqual(toAdd, []string{"x", "y"}) {
		t.Errorf("expected toAdd [x y], got %v", toAdd)
	}
	if len(toRemove) != 0 {
		t.Errorf("expected no removals, got %v", toRemove)
	}
}

func TestApplySetDelta(t *testing.T) {
	result := ApplySetDelta([]string{"a", "b"}, []string{"c"}, []string{"a"})

	if !reflect.DeepEqual(result, []string{"b", "c"}) {
		t.Errorf("expected [b c], got %v", result)
	}
}

func TestApplySetDeltaRoundTrip(t *testing.T) {
	current := []string{"10.0.0.2", "10.0.0.3"}
	desired := []string{"10.0.0.1", "10.0.0.3"}

	toAdd, toRemove := SetDelta(current, desired)
	result := ApplySetDelta(current, toAdd, toRemove)

	if !reflect.DeepEqual(result, desired) {
		t.Errorf("expected %v after applying delta, got %v", desired, result)
	}
}
