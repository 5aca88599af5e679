package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no record exists for the requested id.
	ErrNotFound = errors.New("records: record not found")
	// ErrInvalidRecord is returned for writes that fail validation.
	ErrInvalidRecord = errors.New("records: invalid record")
)

// Query narrows a record listing. Zero values match everything.
type Query struct {
	Type  string
	Class string
	Limit int
}

// Repository is the record storage contract. Implementations must treat a
// returned Record as immutable once handed out.
type Repository interface {
	List(ctx context.Context, q Query) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Put(ctx context.Context, id string, rec Record) error
	Delete(ctx context.Context, id string) error
}

// ValidateRecord enforces the minimal shape a stored record must carry.
func ValidateRecord(rec Record) error {
	switch rec.Type() {
	case TypeStudent:
		if strings.TrimSpace(rec.Field(KeyAdmissionNo)) == "" {
			return fmt.Errorf("%w: student record missing admission number", ErrInvalidRecord)
		}
	case TypeStaff:
		if strings.TrimSpace(rec.Field(KeyEmployeeID)) == "" {
			return fmt.Errorf("%w: staff record missing employee id", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: unknown record type %q", ErrInvalidRecord, rec.Type())
	}
	if strings.TrimSpace(rec.Field(KeyName)) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRecord)
	}
	return nil
}
