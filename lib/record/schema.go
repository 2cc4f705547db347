// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"
)

// FieldType is a primitive schema type.
type FieldType string

const (
	TypeInt     FieldType = "int"
	TypeLong    FieldType = "long"
	TypeFloat   FieldType = "float"
	TypeDouble  FieldType = "double"
	TypeString  FieldType = "string"
	TypeBoolean FieldType = "boolean"
	TypeBytes   FieldType = "bytes"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeInt, TypeLong, TypeFloat, TypeDouble, TypeString, TypeBoolean, TypeBytes:
		return true
	}
	return false
}

// Field is one named, typed schema field.
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
	Doc  string    `json:"doc,omitempty"`
}

// Schema describes a record: an ordered list of required fields.
type Schema struct {
	Type      string  `json:"type"`
	Name      string  `json:"name"`
	Namespace string  `json:"namespace,omitempty"`
	Doc       string  `json:"doc,omitempty"`
	Fields    []Field `json:"fields"`
}

// ParseSchema parses a JSON or JSONC schema document and validates it.
func ParseSchema(data []byte) (Schema, error) {
	var schema Schema
	if err := json.Unmarshal(jsonc.ToJSON(data), &schema); err != nil {
		return Schema{}, fmt.Errorf("parsing schema: %w", err)
	}
	if err := schema.Validate(); err != nil {
		return Schema{}, err
	}
	return schema, nil
}

// LoadSchema reads and parses a schema file.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("reading schema: %w", err)
	}
	schema, err := ParseSchema(data)
	if err != nil {
		return Schema{}, fmt.Errorf("%s: %w", path, err)
	}
	return schema, nil
}

// Validate checks that the schema is a record with uniquely named
// fields of known types.
func (s Schema) Validate() error {
	var errs []error
	if s.Type != "record" {
		errs = append(errs, fmt.Errorf("schema type must be \"record\", got %q", s.Type))
	}
	if s.Name == "" {
		errs = append(errs, errors.New("schema name is required"))
	}
	if len(s.Fields) == 0 {
		errs = append(errs, fmt.Errorf("schema %s has no fields", s.FullName()))
	}
	seen := make(map[string]bool, len(s.Fields))
	for i, field := range s.Fields {
		if field.Name == "" {
			errs = append(errs, fmt.Errorf("schema %s: field %d has no name", s.FullName(), i))
			continue
		}
		if seen[field.Name] {
			errs = append(errs, fmt.Errorf("schema %s: duplicate field %q", s.FullName(), field.Name))
		}
		seen[field.Name] = true
		if !field.Type.valid() {
			errs = append(errs, fmt.Errorf("schema %s: field %q has unsupported type %q", s.FullName(), field.Name, field.Type))
		}
	}
	return errors.Join(errs...)
}

// FullName returns namespace.name, or just name without a namespace.
func (s Schema) FullName() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "." + s.Name
}

// canonical is the parsing canonical form: full name and the ordered
// (name, type) list. Documentation does not affect the encoding, so it
// does not affect the fingerprint either.
func (s Schema) canonical() []byte {
	type canonicalField struct {
		Name string    `json:"name"`
		Type FieldType `json:"type"`
	}
	form := struct {
		Name   string           `json:"name"`
		Fields []canonicalField `json:"fields"`
	}{Name: s.FullName()}
	for _, field := range s.Fields {
		form.Fields = append(form.Fields, canonicalField{Name: field.Name, Type: field.Type})
	}
	// Marshaling a struct of strings cannot fail.
	data, _ := json.Marshal(form)
	return data
}

// Fingerprint returns a short hex digest of the schema's canonical
// form.
func (s Schema) Fingerprint() string {
	sum := blake3.Sum256(s.canonical())
	return hex.EncodeToString(sum[:8])
}

func pairFingerprint(key, value Schema) string {
	hasher := blake3.New()
	hasher.Write(key.canonical())
	hasher.Write([]byte{0})
	hasher.Write(value.canonical())
	return hex.EncodeToString(hasher.Sum(nil)[:8])
}
