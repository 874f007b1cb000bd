package domain

import (
	"sort"
	"strings"
)

// NormalizeIDs trims surrounding whitespace, drops duplicates and empty
// entries and returns the ids sorted.
// A nil or empty input yields nil.
func NormalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// ContainsID reports whether id is present in ids.
func ContainsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// AddID returns ids with id added, keeping the set sorted.
func AddID(ids []string, id string) []string {
	if ContainsID(ids, id) {
		return NormalizeIDs(ids)
	}
	return NormalizeIDs(append(append([]string(nil), ids...), id))
}

// RemoveID returns ids without id.
func RemoveID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return NormalizeIDs(out)
}

// DiffIDs returns the ids present only in next (added) and only in prev
// (removed). Both results are sorted.
func DiffIDs(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		prevSet[id] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, id := range next {
		nextSet[id] = struct{}{}
	}
	for id := range nextSet {
		if _, ok := prevSet[id]; !ok && id != "" {
			added = append(added, id)
		}
	}
	for id := range prevSet {
		if _, ok := nextSet[id]; !ok && id != "" {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// StringPtr returns a pointer to a copy of s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
