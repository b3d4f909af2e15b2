// Package improvement runs the grade improvement workflow: admins open improvement windows
// on a reporting period, students file one request per subject and window, admins resolve them.
package improvement

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/truonghoc/backend/core"
)

// Request statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var (
	ErrPeriodNotFound  = core.NewNotFoundError("improvement period not found")
	ErrRequestNotFound = core.NewNotFoundError("improvement request not found")

	ErrEndsAfterParent  = core.NewBusinessRuleError("improvement window must close before the reporting period closes")
	ErrPeriodOverlaps   = core.NewBusinessRuleError("improvement window overlaps an active window for this reporting period")
	ErrWindowClosed     = core.NewBusinessRuleError("improvement window is not active or has expired")
	ErrDuplicateRequest = core.NewBusinessRuleError("a request for this subject already exists in this improvement window")
	ErrAlreadyResolved  = core.NewBusinessRuleError("request has already been resolved")

	resolutionStatusTag  = "resolution_status"
	resolutionStatusText = "must be one of approved or rejected"

	rejectionCommentTag  = "rejection_comment"
	rejectionCommentText = "a comment is required when rejecting a request"
)

// Period is an improvement window, nested in a reporting period, during which students may file requests.
type Period struct {
	ID                string    `json:"id"`
	ReportingPeriodID string    `json:"reporting_period_id"`
	StartDate         core.Date `json:"start_date"`
	EndDate           core.Date `json:"end_date"`
	IsActive          bool      `json:"is_active"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
}

// IsOpenOn reports whether requests may be filed on day.
func (p Period) IsOpenOn(day core.Date) bool {
	return p.IsActive && day.Between(p.StartDate, p.EndDate)
}

// PeriodDetail is a Period with the names of its reporting period and creator resolved for display.
type PeriodDetail struct {
	Period
	ReportingPeriodName string `json:"reporting_period_name"`
	CreatedByName       string `json:"created_by_name"`
}

type Request struct {
	ID                  string     `json:"id"`
	ImprovementPeriodID string     `json:"improvement_period_id"`
	StudentID           string     `json:"student_id"`
	SubjectID           string     `json:"subject_id"`
	Reason              string     `json:"reason"`
	Status              string     `json:"status"`
	AdminComment        string     `json:"admin_comment"`
	ReviewedBy          string     `json:"reviewed_by"`
	ReviewedAt          *time.Time `json:"reviewed_at"`
	CreatedAt           time.Time  `json:"created_at"`
}

func (r Request) IsPending() bool { return r.Status == StatusPending }

type NewPeriod struct {
	ReportingPeriodID string    `json:"reporting_period_id" validate:"required,uuid"`
	StartDate         core.Date `json:"start_date"`
	EndDate           core.Date `json:"end_date"`
}

func (np *NewPeriod) Validate(validate *validator.Validate) error {
	if err := validate.Struct(np); err != nil {
		return err
	}
	return core.ValidateDateRange(np.StartDate, np.EndDate)
}

type NewRequest struct {
	ImprovementPeriodID string `json:"improvement_period_id" validate:"required,uuid"`
	SubjectID           string `json:"subject_id" validate:"required,uuid"`
	Reason              string `json:"reason" validate:"max=1000"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.Reason = core.CleanString(nr.Reason)
	return validate.Struct(nr)
}

// Resolution is the decision of an admin on a pending request.
type Resolution struct {
	Status       string `json:"status" validate:"required,resolution_status"`
	AdminComment string `json:"admin_comment" validate:"max=1000"`
}

func (res *Resolution) Validate(validate *validator.Validate) error {
	res.Status = core.CleanString(res.Status, true /* lower */)
	res.AdminComment = core.CleanString(res.AdminComment)
	return validate.Struct(res)
}

type PeriodFilter struct {
	ReportingPeriodID string
	IsActive          *bool
	OpenOn            core.Date // active periods whose window contains this day
}

type RequestFilter struct {
	ImprovementPeriodID string
	StudentID           string
	SubjectID           string
	Status              string
}

// InitValidators registers the improvement validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(resolutionStatusTag, resolutionStatusValidation)
	core.RegisterCustomTranslation(validate, translator, resolutionStatusTag, resolutionStatusText)

	validate.RegisterStructValidation(resolutionStructValidation, Resolution{})
	core.RegisterCustomTranslation(validate, translator, rejectionCommentTag, rejectionCommentText)
}

func resolutionStatusValidation(fl validator.FieldLevel) bool {
	status := fl.Field().String()
	return status == StatusApproved || status == StatusRejected
}

// resolutionStructValidation requires a comment on rejections.
func resolutionStructValidation(sl validator.StructLevel) {
	if res, ok := sl.Current().Interface().(Resolution); ok {
		if res.Status == StatusRejected && res.AdminComment == "" {
			sl.ReportError(res.AdminComment, "admin_comment", "AdminComment", rejectionCommentTag, "")
		}
	}
}
