package models

import "strings"

// CustomObjectSuffix marks user-defined CRM objects
const CustomObjectSuffix = "__c"

// FieldMeta describes one field of a CRM object.
type FieldMeta struct {
	Name string `json:"name"`
	// NativeType is the describe "type" tag: id, string, boolean, int, double, date, datetime, ...
	NativeType string `json:"type"`
	Label      string `json:"label,omitempty"`
	Nillable   bool   `json:"nillable"`
}

// ObjectDescriptor is the metadata of a CRM object as returned by describe.
type ObjectDescriptor struct {
	Name     string      `json:"name"`
	Label    string      `json:"label,omitempty"`
	IsCustom bool        `json:"custom"`
	Fields   []FieldMeta `json:"fields"`
}

// IsCustomObject reports whether name follows the custom object naming convention.
// The check is case-sensitive.
func IsCustomObject(name string) bool {
	return strings.HasSuffix(name, CustomObjectSuffix)
}

// NewObjectDescriptor builds a descriptor, deriving IsCustom from the name
func NewObjectDescriptor(name string, fields []FieldMeta) *ObjectDescriptor {
	return &ObjectDescriptor{
		Name:     name,
		IsCustom: IsCustomObject(name),
		Fields:   fields,
	}
}

// FieldNames returns the field names in describe order
func (d *ObjectDescriptor) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// HasField reports whether the object has a field called name
func (d *ObjectDescriptor) HasField(name string) bool {
	for _, f := range d.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
