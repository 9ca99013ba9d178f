package schema

import (
	"time"

	"github.com/arthurcm/sitegen/internal/domain"
)

// Record is a validated record. Values have the Go type matching their
// field kind; absent optional fields have no key.
type Record map[string]any

// String returns a string or URL field
func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}

// Time returns a date field and whether it was set
func (r Record) Time(name string) (time.Time, bool) {
	t, ok := r[name].(time.Time)
	return t, ok
}

// Bool returns a boolean field
func (r Record) Bool(name string) bool {
	b, _ := r[name].(bool)
	return b
}

// Reference returns a reference field
func (r Record) Reference(name string) domain.Reference {
	ref, _ := r[name].(domain.Reference)
	return ref
}

// References returns a reference list field, never nil
func (r Record) References(name string) []domain.Reference {
	refs, _ := r[name].([]domain.Reference)
	if refs == nil {
		return []domain.Reference{}
	}
	return refs
}
