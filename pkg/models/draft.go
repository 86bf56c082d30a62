package models

import (
	"slices"
	"time"
)

// FieldKind discriminates the value shapes an intake field can hold.
type FieldKind string

const (
	FieldKindText FieldKind = "text" // Single-line or free-text value
	FieldKindSet  FieldKind = "set"  // Multi-select option set
)

// FieldValue is one answer in the intake form. Exactly one of Text or
// Options is meaningful, selected by Kind.
type FieldValue struct {
	Kind    FieldKind `json:"kind"`
	Text    string    `json:"text,omitempty"`
	Options []string  `json:"options,omitempty"`
}

// TextValue builds a free-text field value.
func TextValue(text string) FieldValue {
	return FieldValue{Kind: FieldKindText, Text: text}
}

// SetValue builds a multi-select field value.
func SetValue(options ...string) FieldValue {
	return FieldValue{Kind: FieldKindSet, Options: options}
}

// IsEmpty reports whether the field holds no answer.
func (v FieldValue) IsEmpty() bool {
	switch v.Kind {
	case FieldKindSet:
		return len(v.Options) == 0
	default:
		return v.Text == ""
	}
}

// Equal compares two field values, treating option order as significant.
func (v FieldValue) Equal(other FieldValue) bool {
	return v.Kind == other.Kind &&
		v.Text == other.Text &&
		slices.Equal(v.Options, other.Options)
}

// FieldMap holds all intake answers keyed by field name. Unset fields are
// simply absent; readers treat absence as the empty value for the field's kind.
type FieldMap map[string]FieldValue

// Clone returns a deep copy so callers can snapshot in-memory form state.
func (m FieldMap) Clone() FieldMap {
	if m == nil {
		return nil
	}

	clone := make(FieldMap, len(m))
	for name, value := range m {
		value.Options = slices.Clone(value.Options)
		clone[name] = value
	}

	return clone
}

// Equal compares two field maps entry by entry.
func (m FieldMap) Equal(other FieldMap) bool {
	if len(m) != len(other) {
		return false
	}

	for name, value := range m {
		otherValue, ok := other[name]
		if !ok || !value.Equal(otherValue) {
			return false
		}
	}

	return true
}

// DraftRecord is a saved snapshot of in-progress intake state. A record is
// written atomically: one local file write or one remote call, never a
// partial update.
type DraftRecord struct {
	FormID       string    `json:"form_id"       validate:"required"`
	AssessmentID string    `json:"assessment_id,omitempty"`
	StepIndex    int       `json:"current_step"  validate:"min=0"`
	Fields       FieldMap  `json:"form_data"`
	SavedAt      time.Time `json:"saved_at"`
}

// DraftSummary is the index entry kept per saved draft so listings never
// need to scan and parse every stored record.
type DraftSummary struct {
	FormID       string    `json:"form_id"`
	AssessmentID string    `json:"assessment_id,omitempty"`
	StepIndex    int       `json:"current_step"`
	SavedAt      time.Time `json:"saved_at"`
}

// Summary projects the record into its index entry.
func (d *DraftRecord) Summary() DraftSummary {
	return DraftSummary{
		FormID:       d.FormID,
		AssessmentID: d.AssessmentID,
		StepIndex:    d.StepIndex,
		SavedAt:      d.SavedAt,
	}
}
