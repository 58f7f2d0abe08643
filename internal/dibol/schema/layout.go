// Package schema provides the record layout model for DIBOL table definition
// (.DEF) files and the parser that produces it.
package schema

import (
	"fmt"
)

// FieldType is the one-letter DIBOL storage class of a field.
type FieldType byte

const (
	// Alpha is a space padded character field.
	Alpha FieldType = 'A'
	// Decimal is a zero padded numeric field with an implied scale.
	Decimal FieldType = 'D'
	// Overlay is a field that redefines storage of another field.
	Overlay FieldType = 'X'
)

// String returns the one-letter code.
func (t FieldType) String() string {
	return string(rune(t))
}

// MarshalText encodes the type as its one-letter code.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte{byte(t)}, nil
}

// UnmarshalText decodes a one-letter code.
func (t *FieldType) UnmarshalText(b []byte) error {
	if len(b) != 1 {
		return fmt.Errorf("invalid field type %q", b)
	}
	switch ft := FieldType(b[0]); ft {
	case Alpha, Decimal, Overlay:
		*t = ft
		return nil
	default:
		return fmt.Errorf("invalid field type %q", b)
	}
}

// Field describes a single column range of a fixed-width record.
type Field struct {
	Name     string    `json:"field_name" yaml:"field_name"`
	Type     FieldType `json:"data_type" yaml:"data_type"`
	Length   int       `json:"length" yaml:"length"`
	Decimals int       `json:"decimals" yaml:"decimals"`

	// Start and End are 1-based inclusive byte columns. Both are zero when the
	// definition did not annotate a position.
	Start int `json:"start_pos" yaml:"start_pos"`
	End   int `json:"end_pos" yaml:"end_pos"`

	Comment string `json:"comment" yaml:"comment"`
}

// HasPosition reports whether the field carries a usable column range.
func (f Field) HasPosition() bool {
	return f.Start > 0 && f.End >= f.Start
}

// Record describes one record layout of a definition file.
type Record struct {
	Name      string  `json:"record_name" yaml:"record_name"`
	IsOverlay bool    `json:"is_overlay" yaml:"is_overlay"`
	DeviceNo  *int    `json:"device_no" yaml:"device_no"`
	Fields    []Field `json:"fields" yaml:"fields"`
}

// TotalLength returns the highest end column of any field.
func (r Record) TotalLength() int {
	total := 0
	for _, f := range r.Fields {
		if f.End > total {
			total = f.End
		}
	}
	return total
}
