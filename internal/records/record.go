// Package records manages the student and staff records that card templates
// are rendered against. The card core treats records as read-only input.
package records

import "strings"

// Record type discriminator values.
const (
	TypeStudent = "student"
	TypeStaff   = "staff"
)

// Well-known field keys. Everything is stored lower-cased.
const (
	KeyType        = "type"
	KeyName        = "name"
	KeyAdmissionNo = "admission_no"
	KeyEmployeeID  = "employee_id"
	KeyClass       = "class"
	KeyPhotoURL    = "photo_url"
)

// Record is a flat field map for one person. Keys are lower-cased on the way
// in so template bookmarks resolve case-insensitively.
type Record map[string]string

// NewRecord lower-cases all keys of the raw map.
func NewRecord(raw map[string]string) Record {
	r := make(Record, len(raw))
	for k, v := range raw {
		r[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return r
}

// Lookup resolves a value by key, case-insensitively, distinguishing a
// stored empty value from an absent key.
func (r Record) Lookup(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r[strings.ToLower(strings.TrimSpace(key))]
	return v, ok
}

// Field looks up a value by key, case-insensitively. Missing keys yield the
// empty string.
func (r Record) Field(key string) string {
	v, _ := r.Lookup(key)
	return v
}

// Type returns the record's discriminator, empty when unset.
func (r Record) Type() string { return r.Field(KeyType) }

// ID returns the record's natural identifier: admission number for students,
// employee id for staff.
func (r Record) ID() string {
	switch r.Type() {
	case TypeStudent:
		return r.Field(KeyAdmissionNo)
	case TypeStaff:
		return r.Field(KeyEmployeeID)
	}
	return ""
}

// Clone returns an independent copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
