package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	apperrors "github.com/arthurcm/sitegen/internal/errors"
	"github.com/arthurcm/sitegen/internal/schema"
)

// ParseFunc splits a source file into raw fields and body text
type ParseFunc func(data []byte) (map[string]any, string, error)

// Source locates the files of a collection: a glob Pattern relative to Base
type Source struct {
	Base    string
	Pattern string
}

// Definition describes how to load one collection
type Definition struct {
	Name   string
	Source Source
	Parse  ParseFunc
	// IDField names an optional field that overrides the path-derived id.
	IDField string
}

// Entry is a validated source record before it is decoded
type Entry struct {
	ID   string
	Path string
	Data schema.Record
	Body string
}

// Collection is an immutable, ordered set of typed records
type Collection[T any] struct {
	name  string
	ids   []string
	items map[string]*T
}

// Name returns the collection name
func (c *Collection[T]) Name() string { return c.name }

// Len returns the number of records
func (c *Collection[T]) Len() int { return len(c.ids) }

// Get returns the record with the given id. Callers must not mutate it.
func (c *Collection[T]) Get(id string) (*T, error) {
	item, ok := c.items[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s/%s", c.name, id))
	}
	return item, nil
}

// All returns every record in source enumeration order
func (c *Collection[T]) All() []*T {
	all := make([]*T, 0, len(c.ids))
	for _, id := range c.ids {
		all = append(all, c.items[id])
	}
	return all
}

// IDs returns record ids in source enumeration order
func (c *Collection[T]) IDs() []string {
	return append([]string(nil), c.ids...)
}

func (c *Collection[T]) lookup(id string) (any, error) {
	item, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (c *Collection[T]) values() []any {
	all := make([]any, 0, len(c.ids))
	for _, id := range c.ids {
		all = append(all, c.items[id])
	}
	return all
}

// LoadCollection reads every file matching def.Source from fsys, validates it
// and decodes it. If any record fails, no collection is returned and the
// error is an *errors.CollectionError listing every failing record.
func LoadCollection[T any](fsys fs.FS, v *schema.Validator, def Definition, decode func(Entry) *T) (*Collection[T], error) {
	paths, err := match(fsys, def.Source)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("list %s sources", def.Name), err)
	}

	col := &Collection[T]{
		name:  def.Name,
		items: make(map[string]*T, len(paths)),
	}
	origins := make(map[string]string, len(paths))
	var invalid []*apperrors.ValidationError

	for _, p := range paths {
		id := deriveID(p)

		data, err := fs.ReadFile(fsys, path.Join(def.Source.Base, p))
		if err != nil {
			invalid = append(invalid, sourceError(def.Name, id, err))
			continue
		}
		raw, body, err := def.Parse(data)
		if err != nil {
			invalid = append(invalid, sourceError(def.Name, id, err))
			continue
		}

		rec, err := v.Validate(def.Name, id, raw)
		if err != nil {
			vErr, ok := err.(*apperrors.ValidationError)
			if !ok {
				return nil, err
			}
			invalid = append(invalid, vErr)
			continue
		}

		if def.IDField != "" {
			if override := normalizeID(strings.Trim(rec.String(def.IDField), "/")); override != "" {
				id = override
			}
		}
		if first, dup := origins[id]; dup {
			invalid = append(invalid, &apperrors.ValidationError{
				Collection: def.Name,
				Entry:      id,
				Fields: []apperrors.FieldError{{
					Field:  "id",
					Reason: fmt.Sprintf("duplicate id, %s and %s", first, p),
				}},
			})
			continue
		}
		origins[id] = p

		col.ids = append(col.ids, id)
		col.items[id] = decode(Entry{ID: id, Path: p, Data: rec, Body: body})
	}

	if len(invalid) > 0 {
		return nil, &apperrors.CollectionError{Collection: def.Name, Records: invalid}
	}
	return col, nil
}

func match(fsys fs.FS, src Source) ([]string, error) {
	base := src.Base
	if base == "" {
		base = "."
	}
	sub, err := fs.Sub(fsys, base)
	if err != nil {
		return nil, err
	}
	paths, err := doublestar.Glob(sub, src.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// deriveID turns a path relative to the collection base into a stable slug:
// extension dropped, lower-cased, whitespace collapsed to dashes.
func deriveID(p string) string {
	return normalizeID(strings.TrimSuffix(p, path.Ext(p)))
}

// normalizeID lower-cases each slash-separated segment of p and collapses
// its whitespace to dashes.
func normalizeID(p string) string {
	lower := cases.Lower(language.Und)
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = strings.Join(strings.Fields(lower.String(s)), "-")
	}
	return strings.Join(segments, "/")
}

func sourceError(collection, id string, err error) *apperrors.ValidationError {
	return &apperrors.ValidationError{
		Collection: collection,
		Entry:      id,
		Fields:     []apperrors.FieldError{{Field: "(source)", Reason: err.Error()}},
	}
}

var yamlFrontMatter = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

// ParseMarkdown reads a YAML front matter block followed by a markdown body
func ParseMarkdown(data []byte) (map[string]any, string, error) {
	raw := map[string]any{}
	body, err := frontmatter.Parse(bytes.NewReader(data), &raw, yamlFrontMatter)
	if err != nil {
		return nil, "", fmt.Errorf("front matter: %w", err)
	}
	return raw, strings.TrimSpace(string(body)), nil
}

// ParseData reads a JSON object or a YAML mapping
func ParseData(data []byte) (map[string]any, string, error) {
	raw := map[string]any{}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, "", fmt.Errorf("decode json: %w", err)
		}
		return raw, "", nil
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}
	return raw, "", nil
}
