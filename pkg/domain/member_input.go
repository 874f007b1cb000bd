package domain

import (
	"encoding/json"
	"strings"
)

// MemberInput carries the client-writable fields of a new member. Pointer
// fields distinguish "missing" from zero values for required-field checks.
type MemberInput struct {
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	BirthDate  *Date    `json:"birth_date"`
	DeathDate  *Date    `json:"death_date,omitempty"`
	Gender     Gender   `json:"gender"`
	Generation *int     `json:"generation"`
	ParentIDs  []string `json:"parent_ids,omitempty"`
	SpouseID   *string  `json:"spouse_id,omitempty"`
	PhotoURL   string   `json:"photo_url,omitempty"`
	Bio        string   `json:"bio,omitempty"`
}

// Validate checks required fields and field-level constraints. Every problem
// is reported in a single ValidationError.
func (in MemberInput) Validate() error {
	var verr ValidationError
	if strings.TrimSpace(in.FirstName) == "" {
		verr.Add("first_name", "is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		verr.Add("last_name", "is required")
	}
	if in.BirthDate == nil || in.BirthDate.IsZero() {
		verr.Add("birth_date", "is required")
	}
	switch {
	case in.Gender == "":
		verr.Add("gender", "is required")
	case !in.Gender.Valid():
		verr.Add("gender", "must be one of male, female, other")
	}
	switch {
	case in.Generation == nil:
		verr.Add("generation", "is required")
	case *in.Generation < 1:
		verr.Add("generation", "must be at least 1")
	}
	if in.BirthDate != nil && in.DeathDate != nil && !in.DeathDate.IsZero() && in.DeathDate.Before(in.BirthDate.Time) {
		verr.Add("death_date", "must not precede birth_date")
	}
	for _, id := range in.ParentIDs {
		if strings.TrimSpace(id) == "" {
			verr.Add("parent_ids", "must not contain empty ids")
			break
		}
	}
	if in.SpouseID != nil && strings.TrimSpace(*in.SpouseID) == "" {
		verr.Add("spouse_id", "must not be empty")
	}
	return verr.OrNil()
}

// Member converts the input into a member record without edges; the
// relationship engine wires ParentIDs and SpouseID separately.
func (in MemberInput) Member() Member {
	m := Member{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Gender:    in.Gender,
		PhotoURL:  in.PhotoURL,
		Bio:       in.Bio,
	}
	if in.BirthDate != nil {
		m.BirthDate = *in.BirthDate
	}
	if in.DeathDate != nil && !in.DeathDate.IsZero() {
		d := *in.DeathDate
		m.DeathDate = &d
	}
	if in.Generation != nil {
		m.Generation = *in.Generation
	}
	return m
}

// Optional is a tri-state JSON field: absent (Set=false), explicit null
// (Set=true, Value=nil) or a value.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some builds an Optional carrying v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null builds an Optional that explicitly clears the field.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON marks the field as present and decodes null as a clear.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON renders null for absent or cleared values.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// MemberPatch is a partial MemberInput. Nil pointers leave fields unchanged;
// Optional fields may also clear a value. ChildrenIDs is deliberately absent.
type MemberPatch struct {
	FirstName       *string          `json:"first_name,omitempty"`
	LastName        *string          `json:"last_name,omitempty"`
	BirthDate       *Date            `json:"birth_date,omitempty"`
	DeathDate       Optional[Date]   `json:"death_date"`
	Gender          *Gender          `json:"gender,omitempty"`
	Generation      *int             `json:"generation,omitempty"`
	ParentIDs       *[]string        `json:"parent_ids,omitempty"`
	SpouseID        Optional[string] `json:"spouse_id"`
	PhotoURL        *string          `json:"photo_url,omitempty"`
	Bio             *string          `json:"bio,omitempty"`
	ExpectedVersion *int64           `json:"expected_version,omitempty"`
}

// ValidateFor checks the patch against the member it targets: field-level
// constraints plus self-references.
func (p MemberPatch) ValidateFor(id string) error {
	var verr ValidationError
	if p.FirstName != nil && strings.TrimSpace(*p.FirstName) == "" {
		verr.Add("first_name", "must not be empty")
	}
	if p.LastName != nil && strings.TrimSpace(*p.LastName) == "" {
		verr.Add("last_name", "must not be empty")
	}
	if p.BirthDate != nil && p.BirthDate.IsZero() {
		verr.Add("birth_date", "must not be empty")
	}
	if p.Gender != nil && !p.Gender.Valid() {
		verr.Add("gender", "must be one of male, female, other")
	}
	if p.Generation != nil && *p.Generation < 1 {
		verr.Add("generation", "must be at least 1")
	}
	if p.ParentIDs != nil {
		for _, parentID := range *p.ParentIDs {
			if strings.TrimSpace(parentID) == "" {
				verr.Add("parent_ids", "must not contain empty ids")
				break
			}
			if strings.TrimSpace(parentID) == id {
				verr.Add("parent_ids", "member cannot be its own parent")
				break
			}
		}
	}
	if p.SpouseID.Value != nil {
		switch strings.TrimSpace(*p.SpouseID.Value) {
		case "":
			verr.Add("spouse_id", "must not be empty")
		case id:
			verr.Add("spouse_id", "member cannot be its own spouse")
		}
	}
	return verr.OrNil()
}

// Apply returns a copy of m with the patch applied. Edge fields are copied
// as requested; the relationship engine is responsible for the neighbours.
func (p MemberPatch) Apply(m Member) Member {
	next := m.Clone()
	if p.FirstName != nil {
		next.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		next.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.BirthDate != nil {
		next.BirthDate = *p.BirthDate
	}
	if p.DeathDate.Set {
		if p.DeathDate.Value == nil || p.DeathDate.Value.IsZero() {
			next.DeathDate = nil
		} else {
			d := *p.DeathDate.Value
			next.DeathDate = &d
		}
	}
	if p.Gender != nil {
		next.Gender = *p.Gender
	}
	if p.Generation != nil {
		next.Generation = *p.Generation
	}
	if p.ParentIDs != nil {
		next.ParentIDs = NormalizeIDs(*p.ParentIDs)
	}
	if p.SpouseID.Set {
		if p.SpouseID.Value == nil {
			next.SpouseID = nil
		} else {
			next.SpouseID = StringPtr(strings.TrimSpace(*p.SpouseID.Value))
		}
	}
	if p.PhotoURL != nil {
		next.PhotoURL = *p.PhotoURL
	}
	if p.Bio != nil {
		next.Bio = *p.Bio
	}
	return next
}

// ValidateMember checks the record-level constraints that span fields.
func ValidateMember(m Member) error {
	var verr ValidationError
	if strings.TrimSpace(m.FirstName) == "" {
		verr.Add("first_name", "is required")
	}
	if strings.TrimSpace(m.LastName) == "" {
		verr.Add("last_name", "is required")
	}
	if m.BirthDate.IsZero() {
		verr.Add("birth_date", "is required")
	}
	if !m.Gender.Valid() {
		verr.Add("gender", "must be one of male, female, other")
	}
	if m.Generation < 1 {
		verr.Add("generation", "must be at least 1")
	}
	if m.DeathDate != nil && !m.BirthDate.IsZero() && m.DeathDate.Before(m.BirthDate.Time) {
		verr.Add("death_date", "must not precede birth_date")
	}
	return verr.OrNil()
}
