package schema

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed fields.toml
var defaultFields []byte

// Field describes one slot in the structured assessment output.
type Field struct {
	ID       string `toml:"id"`
	Category string `toml:"category"`
	Label    string `toml:"label"`
	Required bool   `toml:"required"`
}

type fieldsFile struct {
	Fields []Field `toml:"field"`
}

// Registry is the immutable set of known assessment fields.
type Registry struct {
	fields []Field
	byID   map[string]Field
}

// Default returns the registry built from the embedded field list.
func Default() (*Registry, error) {
	return parse(defaultFields)
}

// LoadFile builds a registry from a TOML file, falling back to the embedded
// default when path is empty.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Registry, error) {
	var file fieldsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(file.Fields) == 0 {
		return nil, fmt.Errorf("schema defines no fields")
	}

	byID := make(map[string]Field, len(file.Fields))
	for _, f := range file.Fields {
		id := strings.TrimSpace(f.ID)
		if id == "" {
			return nil, fmt.Errorf("schema field with empty id")
		}
		if f.Category == "" {
			return nil, fmt.Errorf("schema field %q has no category", id)
		}
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("schema field %q defined twice", id)
		}
		byID[id] = f
	}
	return &Registry{fields: file.Fields, byID: byID}, nil
}

// Lookup returns the field definition for an identifier.
func (r *Registry) Lookup(fieldID string) (Field, bool) {
	f, ok := r.byID[fieldID]
	return f, ok
}

// Contains reports whether the identifier names a known field.
func (r *Registry) Contains(fieldID string) bool {
	_, ok := r.byID[fieldID]
	return ok
}

// FieldIDs returns all field identifiers in registry order.
func (r *Registry) FieldIDs() []string {
	ids := make([]string, 0, len(r.fields))
	for _, f := range r.fields {
		ids = append(ids, f.ID)
	}
	return ids
}

// Fields returns all field definitions in registry order.
func (r *Registry) Fields() []Field {
	cp := make([]Field, len(r.fields))
	copy(cp, r.fields)
	return cp
}

// Len returns the number of registered fields.
func (r *Registry) Len() int {
	return len(r.fields)
}

// RequiredCount returns the number of fields marked required.
func (r *Registry) RequiredCount() int {
	count := 0
	for _, f := range r.fields {
		if f.Required {
			count++
		}
	}
	return count
}

// CategoryOf returns the category for a field identifier, or "" when unknown.
func (r *Registry) CategoryOf(fieldID string) string {
	if f, ok := r.byID[fieldID]; ok {
		return f.Category
	}
	return ""
}

// Categories returns the distinct categories in first-appearance order.
func (r *Registry) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range r.fields {
		if _, ok := seen[f.Category]; ok {
			continue
		}
		seen[f.Category] = struct{}{}
		out = append(out, f.Category)
	}
	return out
}
