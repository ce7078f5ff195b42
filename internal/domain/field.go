package domain

import (
	"fmt"
	"strings"
)

// Field names an editable site field.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldNotes       Field = "notes"
	FieldCoordinates Field = "coordinates"
)

// Fields lists every editable field in write-back order.
var Fields = []Field{FieldName, FieldDescription, FieldNotes, FieldCoordinates}

// ParseField maps a user supplied name to a Field
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Fields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}
