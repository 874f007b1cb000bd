package domain

import "sort"

// RelationshipType distinguishes the two kinds of family edge.
type RelationshipType string

// Supported relationship kinds.
const (
	RelationshipParent RelationshipType = "parent"
	RelationshipSpouse RelationshipType = "spouse"
)

// RelationshipRecord is the edge-list view of the graph. For parent records
// Member1ID is the parent and Member2ID the child; spouse records order the
// pair lexically so each marriage projects to exactly one record.
type RelationshipRecord struct {
	ID               string           `json:"id"`
	Member1ID        string           `json:"member1_id"`
	Member2ID        string           `json:"member2_id"`
	RelationshipType RelationshipType `json:"relationship_type"`
}

// ParentRecordID returns the deterministic identifier of a parent edge.
func ParentRecordID(parentID, childID string) string {
	return "parent:" + parentID + ":" + childID
}

// SpouseRecordID returns the deterministic identifier of a spouse edge.
func SpouseRecordID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "spouse:" + a + ":" + b
}

// NewParentRecord builds the record for parent -> child.
func NewParentRecord(parentID, childID string) RelationshipRecord {
	return RelationshipRecord{
		ID:               ParentRecordID(parentID, childID),
		Member1ID:        parentID,
		Member2ID:        childID,
		RelationshipType: RelationshipParent,
	}
}

// NewSpouseRecord builds the record for the marriage of a and b.
func NewSpouseRecord(a, b string) RelationshipRecord {
	if b < a {
		a, b = b, a
	}
	return RelationshipRecord{
		ID:               SpouseRecordID(a, b),
		Member1ID:        a,
		Member2ID:        b,
		RelationshipType: RelationshipSpouse,
	}
}

// Involves reports whether id is either endpoint of the record.
func (r RelationshipRecord) Involves(id string) bool {
	return r.Member1ID == id || r.Member2ID == id
}

// ProjectRelationships derives the relationship records implied by the
// members' edge fields. Parent records come from ParentIDs; a spouse record
// is emitted only for mutual pointers. The result is sorted by ID.
func ProjectRelationships(members []Member) []RelationshipRecord {
	index := make(map[string]Member, len(members))
	for _, m := range members {
		index[m.ID] = m
	}
	seen := make(map[string]struct{})
	var out []RelationshipRecord
	add := func(rec RelationshipRecord) {
		if _, ok := seen[rec.ID]; ok {
			return
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	for _, m := range members {
		for _, parentID := range m.ParentIDs {
			add(NewParentRecord(parentID, m.ID))
		}
		if !m.HasSpouse() {
			continue
		}
		spouse, ok := index[*m.SpouseID]
		if ok && spouse.SpouseIs(m.ID) {
			add(NewSpouseRecord(m.ID, spouse.ID))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RelationshipsFor filters records to those touching id.
func RelationshipsFor(records []RelationshipRecord, id string) []RelationshipRecord {
	var out []RelationshipRecord
	for _, rec := range records {
		if rec.Involves(id) {
			out = append(out, rec)
		}
	}
	return out
}
