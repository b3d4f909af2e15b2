// Package grade stores the component grades of students and computes subject averages from them.
package grade

import (
	"math"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/truonghoc/backend/core"
)

// Component types
const (
	TypeRegular = "regular"
	TypeMidterm = "midterm"
	TypeFinal   = "final"
	TypeSummary = "summary"
)

const (
	MinValue = 0
	MaxValue = 10
)

var (
	Types = []string{TypeRegular, TypeMidterm, TypeFinal, TypeSummary}

	ErrNotFound        = core.NewNotFoundError("grade component not found")
	ErrComponentExists = core.NewBusinessRuleError("this grade component already exists for the student and subject")
	ErrPeriodClosed    = core.NewBusinessRuleError("the reporting period is closed; grades can only be corrected")
	ErrNotAStudent     = errors.New("user is not a student")

	gradeTag  = "grade"
	gradeText = "must be between 0 and 10 with at most one decimal"

	componentTypeTag  = "component_type"
	componentTypeText = "must be one of regular, midterm, final or summary"
)

// Component is one score of a student in a subject for a reporting period.
// A nil Value is a placeholder for a score not entered yet.
type Component struct {
	ID                string    `json:"id"`
	ReportingPeriodID string    `json:"reporting_period_id"`
	StudentID         string    `json:"student_id"`
	SubjectID         string    `json:"subject_id"`
	Type              string    `json:"component_type"`
	Value             *float64  `json:"value"`
	EnteredBy         string    `json:"entered_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsUnique reports whether at most one component of this type may exist per (student, subject, period).
func (c Component) IsUnique() bool {
	return c.Type != TypeRegular
}

// Correction is the audit record of a change made to a component of a closed period.
type Correction struct {
	ID          string    `json:"id"`
	ComponentID string    `json:"component_id"`
	OldValue    *float64  `json:"old_value"`
	NewValue    *float64  `json:"new_value"`
	Reason      string    `json:"reason"`
	CorrectedBy string    `json:"corrected_by"`
	CorrectedAt time.Time `json:"corrected_at"`
}

type NewComponent struct {
	ReportingPeriodID string   `json:"reporting_period_id" validate:"required,uuid"`
	StudentID         string   `json:"student_id" validate:"required,uuid"`
	SubjectID         string   `json:"subject_id" validate:"required,uuid"`
	Type              string   `json:"component_type" validate:"required,component_type"`
	Value             *float64 `json:"value" validate:"omitempty,grade"`
}

func (nc *NewComponent) Validate(validate *validator.Validate) error {
	nc.Type = core.CleanString(nc.Type, true /* lower */)
	return validate.Struct(nc)
}

type UpdateComponent struct {
	Value *float64 `json:"value" validate:"omitempty,grade"`
}

func (uc *UpdateComponent) Validate(validate *validator.Validate) error {
	return validate.Struct(uc)
}

type NewCorrection struct {
	Value  *float64 `json:"value" validate:"omitempty,grade"`
	Reason string   `json:"reason" validate:"required,max=500"`
}

func (nc *NewCorrection) Validate(validate *validator.Validate) error {
	nc.Reason = core.CleanString(nc.Reason)
	return validate.Struct(nc)
}

type QueryFilter struct {
	ReportingPeriodID string
	StudentID         string
	SubjectID         string
	Type              string
}

// InitValidators registers the grade validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	core.RegisterCustomTranslation(validate, translator, gradeTag, gradeText)

	_ = validate.RegisterValidation(componentTypeTag, componentTypeValidation)
	core.RegisterCustomTranslation(validate, translator, componentTypeTag, componentTypeText)
}

// IsValidValue reports whether v is a score on the 0-10 scale with at most one decimal.
func IsValidValue(v float64) bool {
	if math.IsNaN(v) || v < MinValue || v > MaxValue {
		return false
	}
	return math.Abs(v-RoundHalfUp(v, 1)) < 1e-9
}

func gradeValidation(fl validator.FieldLevel) bool {
	return IsValidValue(fl.Field().Float())
}

func componentTypeValidation(fl validator.FieldLevel) bool {
	typ := fl.Field().String()
	for _, t := range Types {
		if typ == t {
			return true
		}
	}
	return false
}
