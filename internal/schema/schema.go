// Package schema declares the shape of content records and validates raw
// decoded data against it.
package schema

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
)

// Kind is the expected type of a field
type Kind int

const (
	KindString Kind = iota
	KindURL
	KindDate
	KindBool
	KindReference
	KindReferenceList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindURL:
		return "url"
	case KindDate:
		return "date"
	case KindBool:
		return "boolean"
	case KindReference:
		return "reference"
	case KindReferenceList:
		return "reference list"
	default:
		return "unknown"
	}
}

// Field declares one named field. Target is the referenced collection for
// reference kinds.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Target   string
}

// Schema is the set of fields of one collection
type Schema struct {
	Collection string
	Fields     []Field
}

// Validator holds every declared schema so references can be checked
// against the declared collections.
type Validator struct {
	schemas map[string]Schema
}

// NewValidator creates a validator for the given schemas
func NewValidator(schemas ...Schema) *Validator {
	v := &Validator{schemas: make(map[string]Schema, len(schemas))}
	for _, s := range schemas {
		v.schemas[s.Collection] = s
	}
	return v
}

// Declared reports whether a collection has a schema
func (v *Validator) Declared(collection string) bool {
	_, ok := v.schemas[collection]
	return ok
}

// Validate checks raw against the collection's schema. Every field is checked;
// the returned *errors.ValidationError lists all violations. Keys not declared
// by the schema are dropped from the record.
func (v *Validator) Validate(collection, entry string, raw map[string]any) (Record, error) {
	s, ok := v.schemas[collection]
	if !ok {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("collection %q has no schema", collection))
	}

	rec := make(Record, len(s.Fields))
	var violations []apperrors.FieldError
	for _, f := range s.Fields {
		value, present := raw[f.Name]
		if !present || value == nil {
			if f.Required {
				violations = append(violations, apperrors.FieldError{Field: f.Name, Reason: "required field is missing"})
			}
			continue
		}

		coerced, reason := v.coerce(f, value)
		if reason != "" {
			violations = append(violations, apperrors.FieldError{Field: f.Name, Reason: reason})
			continue
		}
		rec[f.Name] = coerced
	}

	if len(violations) > 0 {
		return nil, &apperrors.ValidationError{Collection: collection, Entry: entry, Fields: violations}
	}
	return rec, nil
}

func (v *Validator) coerce(f Field, value any) (any, string) {
	switch f.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, expected("string", value)
		}
		return s, ""

	case KindURL:
		s, ok := value.(string)
		if !ok {
			return nil, expected("string", value)
		}
		if err := checkURL(s); err != nil {
			return nil, err.Error()
		}
		return s, ""

	case KindDate:
		switch t := value.(type) {
		case time.Time:
			return t, ""
		case string:
			parsed, err := dateparse.ParseIn(strings.TrimSpace(t), time.UTC)
			if err != nil {
				return nil, fmt.Sprintf("invalid date %q", t)
			}
			return parsed, ""
		default:
			return nil, expected("date", value)
		}

	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, expected("boolean", value)
		}
		return b, ""

	case KindReference:
		if !v.Declared(f.Target) {
			return nil, fmt.Sprintf("references undeclared collection %q", f.Target)
		}
		return toReference(f.Target, value)

	case KindReferenceList:
		if !v.Declared(f.Target) {
			return nil, fmt.Sprintf("references undeclared collection %q", f.Target)
		}
		items, ok := value.([]any)
		if !ok {
			return nil, expected("list", value)
		}
		refs := make([]domain.Reference, 0, len(items))
		var reasons []string
		for i, item := range items {
			ref, reason := toReference(f.Target, item)
			if reason != "" {
				reasons = append(reasons, fmt.Sprintf("[%d] %s", i, reason))
				continue
			}
			refs = append(refs, ref.(domain.Reference))
		}
		if len(reasons) > 0 {
			return nil, strings.Join(reasons, ", ")
		}
		return refs, ""
	}
	return nil, fmt.Sprintf("unsupported field kind %s", f.Kind)
}

// toReference accepts a bare id or a {collection, id} object
func toReference(target string, value any) (any, string) {
	switch r := value.(type) {
	case string:
		if r == "" {
			return nil, "empty reference id"
		}
		return domain.Reference{Collection: target, ID: r}, ""
	case map[string]any:
		id, _ := r["id"].(string)
		if id == "" {
			id, _ = r["slug"].(string)
		}
		if id == "" {
			return nil, "reference object has no id"
		}
		if c, ok := r["collection"].(string); ok && c != target {
			return nil, fmt.Sprintf("reference to collection %q, expected %q", c, target)
		}
		return domain.Reference{Collection: target, ID: id}, ""
	default:
		return nil, expected("reference", value)
	}
}

func checkURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid URL %q: must be absolute", raw)
	}
	return nil
}

func expected(want string, got any) string {
	return fmt.Sprintf("expected %s, got %T", want, got)
}
