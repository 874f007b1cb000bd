// Package domain defines the persistent family-graph entities, value types,
// error taxonomy and rule evaluation primitives used by famgraph.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityMember identifies a person record in the family graph.
	EntityMember EntityType = "member"
	// EntityRelationship identifies a projected relationship record.
	EntityRelationship EntityType = "relationship"
)

// Gender enumerates the accepted member genders.
type Gender string

// Canonical genders.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether g is one of the canonical genders.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time-of-day component. It is stored at
// midnight UTC and serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate builds a Date from its calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected %s", s, DateLayout)
	}
	return Date{Time: t.UTC()}, nil
}

// String renders the date as YYYY-MM-DD, or an empty string for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON accepts YYYY-MM-DD strings and null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member represents one person in the family graph.
//
// ParentIDs, ChildrenIDs and SpouseID are owned by the relationship engine;
// ChildrenIDs is never written from client input. Version increases by one on
// every committed write and backs compare-and-swap updates.
type Member struct {
	Base
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	BirthDate   Date     `json:"birth_date"`
	DeathDate   *Date    `json:"death_date,omitempty"`
	Gender      Gender   `json:"gender"`
	Generation  int      `json:"generation"`
	ParentIDs   []string `json:"parent_ids"`
	ChildrenIDs []string `json:"children_ids"`
	SpouseID    *string  `json:"spouse_id"`
	PhotoURL    string   `json:"photo_url,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	Version     int64    `json:"version"`
}

// FullName joins first and last name.
func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// HasSpouse reports whether the member currently references a spouse.
func (m Member) HasSpouse() bool {
	return m.SpouseID != nil && *m.SpouseID != ""
}

// SpouseIs reports whether the member's spouse pointer equals id.
func (m Member) SpouseIs(id string) bool {
	return m.HasSpouse() && *m.SpouseID == id
}

// Clone returns a deep copy so callers never share slices or pointers with
// store-owned state.
func (m Member) Clone() Member {
	cp := m
	if m.ParentIDs != nil {
		cp.ParentIDs = append([]string(nil), m.ParentIDs...)
	}
	if m.ChildrenIDs != nil {
		cp.ChildrenIDs = append([]string(nil), m.ChildrenIDs...)
	}
	if m.SpouseID != nil {
		id := *m.SpouseID
		cp.SpouseID = &id
	}
	if m.DeathDate != nil {
		d := *m.DeathDate
		cp.DeathDate = &d
	}
	return cp
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// MemberBefore returns the member snapshot preceding the change, if any.
func (c Change) MemberBefore() (Member, bool) {
	m, ok := c.Before.(Member)
	return m, ok
}

// MemberAfter returns the member snapshot following the change, if any.
func (c Change) MemberAfter() (Member, bool) {
	m, ok := c.After.(Member)
	return m, ok
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Blocking returns only the violations that block a commit.
func (r Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	blocking := e.Result.Blocking()
	if len(blocking) == 0 {
		return "transaction blocked by rules"
	}
	msgs := make([]string, 0, len(blocking))
	for _, v := range blocking {
		msgs = append(msgs, v.Rule+": "+v.Message)
	}
	return "transaction blocked by rules: " + strings.Join(msgs, "; ")
}
