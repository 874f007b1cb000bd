package domain

import (
	"reflect"
	"testing"
)

func TestNormalizeIDs(t *testing.T) {
	got := NormalizeIDs([]string{"b", "", "a", "b"})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected normalized ids %v", got)
	}
	got = NormalizeIDs([]string{" a", "a ", "\tb\n"})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("expected whitespace trimmed before dedup, got %v", got)
	}
	if NormalizeIDs([]string{"", "  "}) != nil {
		t.Fatalf("expected nil for empty result")
	}
}

func TestAddRemoveID(t *testing.T) {
	ids := AddID(nil, "b")
	ids = AddID(ids, "a")
	ids = AddID(ids, "a")
	if !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Fatalf("unexpected ids after add %v", ids)
	}
	ids = RemoveID(ids, "a")
	ids = RemoveID(ids, "missing")
	if !reflect.DeepEqual(ids, []string{"b"}) {
		t.Fatalf("unexpected ids after remove %v", ids)
	}
	if RemoveID(ids, "b") != nil {
		t.Fatalf("expected nil once the last id is removed")
	}
}

func TestDiffIDs(t *testing.T) {
	added, removed := DiffIDs([]string{"a", "b"}, []string{"b", "c", "d"})
	if !reflect.DeepEqual(added, []string{"c", "d"}) || !reflect.DeepEqual(removed, []string{"a"}) {
		t.Fatalf("unexpected diff added=%v removed=%v", added, removed)
	}
}
