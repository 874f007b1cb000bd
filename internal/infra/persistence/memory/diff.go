package memory

import "sort"

// SnapshotDiff lists the members a durable backend must write or remove to
// apply one committed transaction.
type SnapshotDiff struct {
	Upserts []Member
	Deletes []string
}

// Empty reports whether the diff carries no work.
func (d SnapshotDiff) Empty() bool {
	return len(d.Upserts) == 0 && len(d.Deletes) == 0
}

// diffChanges derives the diff from the changes a transaction recorded: the
// final row of every member it touched, and the ids it removed that existed
// before it began. Results are sorted by id so backends write rows in a
// stable order.
func diffChanges(prev, next memoryState, changes []Change) SnapshotDiff {
	var diff SnapshotDiff
	seen := make(map[string]struct{}, len(changes))
	for _, change := range changes {
		id := changedMemberID(change)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if m, ok := next.members[id]; ok {
			diff.Upserts = append(diff.Upserts, m.Clone())
			continue
		}
		if _, ok := prev.members[id]; ok {
			diff.Deletes = append(diff.Deletes, id)
		}
	}
	sort.Slice(diff.Upserts, func(i, j int) bool { return diff.Upserts[i].ID < diff.Upserts[j].ID })
	sort.Strings(diff.Deletes)
	return diff
}

func changedMemberID(change Change) string {
	if m, ok := change.MemberAfter(); ok {
		return m.ID
	}
	if m, ok := change.MemberBefore(); ok {
		return m.ID
	}
	return ""
}
