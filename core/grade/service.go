package grade

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/period"
	"github.com/truonghoc/backend/core/subject"
	"github.com/truonghoc/backend/core/user"
)

type (
	Repository interface {
		CreateComponent(ctx context.Context, c Component) (Component, error)
		GetComponent(ctx context.Context, id string) (Component, error)
		QueryComponents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Component, error)
		UpdateComponent(ctx context.Context, c Component) (Component, error)
		DeleteComponent(ctx context.Context, id string) error
		// CorrectComponent updates the component and records the correction atomically.
		CorrectComponent(ctx context.Context, c Component, corr Correction) (Component, Correction, error)
		QueryCorrections(ctx context.Context, componentID string) ([]Correction, error)
	}

	Service interface {
		EnterComponent(ctx context.Context, actor user.AuthContext, nc NewComponent) (Component, error)
		UpdateComponent(ctx context.Context, actor user.AuthContext, id string, uc UpdateComponent) (Component, error)
		DeleteComponent(ctx context.Context, actor user.AuthContext, id string) error
		CorrectComponent(ctx context.Context, actor user.AuthContext, id string, nc NewCorrection) (Component, Correction, error)
		GetComponent(ctx context.Context, actor user.AuthContext, id string) (Component, error)
		ListComponents(ctx context.Context, actor user.AuthContext, filter *QueryFilter, ordering []core.DBOrdering) ([]Component, error)
		ListCorrections(ctx context.Context, actor user.AuthContext, componentID string) ([]Correction, error)
		StudentReport(ctx context.Context, actor user.AuthContext, periodID, studentID string) (StudentReport, error)
		HomeroomSummary(ctx context.Context, actor user.AuthContext, periodID, studentID string) (HomeroomSummary, error)
	}

	service struct {
		repo     Repository
		periods  period.Repository
		subjects subject.Repository
		users    user.Repository
	}
)

type (
	// StudentReport is the detailed-grade view of a student for one reporting period.
	StudentReport struct {
		ReportingPeriodID   string          `json:"reporting_period_id"`
		ReportingPeriodName string          `json:"reporting_period_name"`
		StudentID           string          `json:"student_id"`
		StudentName         string          `json:"student_name"`
		Subjects            []SubjectReport `json:"subjects"`
	}

	SubjectReport struct {
		SubjectID   string      `json:"subject_id"`
		SubjectName string      `json:"subject_name"`
		Components  []Component `json:"components"`
		Average     *float64    `json:"average"`
	}

	// HomeroomSummary is what the homeroom teacher submits: midterm, final and their mean per subject.
	HomeroomSummary struct {
		ReportingPeriodID   string         `json:"reporting_period_id"`
		ReportingPeriodName string         `json:"reporting_period_name"`
		StudentID           string         `json:"student_id"`
		StudentName         string         `json:"student_name"`
		Subjects            []HomeroomLine `json:"subjects"`
	}

	HomeroomLine struct {
		SubjectID   string   `json:"subject_id"`
		SubjectName string   `json:"subject_name"`
		Midterm     *float64 `json:"midterm"`
		Final       *float64 `json:"final"`
		Average     *float64 `json:"average"`
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, periods period.Repository, subjects subject.Repository, users user.Repository) Service {
	return &service{
		repo:     repo,
		periods:  periods,
		subjects: subjects,
		users:    users,
	}
}

func (svc *service) EnterComponent(ctx context.Context, actor user.AuthContext, nc NewComponent) (Component, error) {
	if err := actor.RequireStaff(); err != nil {
		return Component{}, err
	}
	if _, err := svc.openPeriod(ctx, nc.ReportingPeriodID); err != nil {
		return Component{}, err
	}
	if _, err := svc.subjects.GetSubject(ctx, nc.SubjectID); err != nil {
		if core.IsNotFound(err) {
			return Component{}, core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: err.Error()})
		}
		return Component{}, errors.Wrap(err, "getting subject")
	}
	if err := svc.checkStudent(ctx, nc.StudentID); err != nil {
		return Component{}, err
	}

	c := Component{
		ReportingPeriodID: nc.ReportingPeriodID,
		StudentID:         nc.StudentID,
		SubjectID:         nc.SubjectID,
		Type:              nc.Type,
		Value:             nc.Value,
		EnteredBy:         actor.UserID,
	}
	if c.IsUnique() {
		existing, err := svc.repo.QueryComponents(ctx, &QueryFilter{
			ReportingPeriodID: c.ReportingPeriodID,
			StudentID:         c.StudentID,
			SubjectID:         c.SubjectID,
			Type:              c.Type,
		}, nil)
		if err != nil {
			return Component{}, errors.Wrap(err, "querying components")
		}
		if len(existing) > 0 {
			return Component{}, ErrComponentExists
		}
	}

	now := core.NowFunc().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c, err := svc.repo.CreateComponent(ctx, c)
	if core.IsBusinessRule(err) {
		return Component{}, err
	}
	return c, errors.Wrap(err, "creating component")
}

func (svc *service) UpdateComponent(ctx context.Context, actor user.AuthContext, id string, uc UpdateComponent) (Component, error) {
	if err := actor.RequireStaff(); err != nil {
		return Component{}, err
	}
	c, err := svc.repo.GetComponent(ctx, id)
	if err != nil {
		return Component{}, err
	}
	if _, err = svc.openPeriod(ctx, c.ReportingPeriodID); err != nil {
		return Component{}, err
	}
	c.Value = uc.Value
	c.EnteredBy = actor.UserID
	c.UpdatedAt = core.NowFunc().UTC()
	c, err = svc.repo.UpdateComponent(ctx, c)
	return c, errors.Wrap(err, "updating component")
}

func (svc *service) DeleteComponent(ctx context.Context, actor user.AuthContext, id string) error {
	if err := actor.RequireStaff(); err != nil {
		return err
	}
	c, err := svc.repo.GetComponent(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.openPeriod(ctx, c.ReportingPeriodID); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteComponent(ctx, id), "deleting component")
}

// CorrectComponent changes the value of a component whatever the state of its period and keeps an audit record.
func (svc *service) CorrectComponent(ctx context.Context, actor user.AuthContext, id string, nc NewCorrection) (Component, Correction, error) {
	if err := actor.RequireAdmin(); err != nil {
		return Component{}, Correction{}, err
	}
	c, err := svc.repo.GetComponent(ctx, id)
	if err != nil {
		return Component{}, Correction{}, err
	}

	now := core.NowFunc().UTC()
	corr := Correction{
		ComponentID: c.ID,
		OldValue:    c.Value,
		NewValue:    nc.Value,
		Reason:      nc.Reason,
		CorrectedBy: actor.UserID,
		CorrectedAt: now,
	}
	c.Value = nc.Value
	c.UpdatedAt = now
	c, corr, err = svc.repo.CorrectComponent(ctx, c, corr)
	if err != nil {
		return Component{}, Correction{}, errors.Wrap(err, "correcting component")
	}
	return c, corr, nil
}

func (svc *service) GetComponent(ctx context.Context, actor user.AuthContext, id string) (Component, error) {
	if !actor.IsAuthenticated() {
		return Component{}, core.ErrUnauthorized
	}
	c, err := svc.repo.GetComponent(ctx, id)
	if err != nil {
		return Component{}, err
	}
	if !canSeeStudent(actor, c.StudentID) {
		return Component{}, ErrNotFound
	}
	return c, nil
}

// ListComponents lists the components matching filter. Students only ever get their own.
func (svc *service) ListComponents(ctx context.Context, actor user.AuthContext, filter *QueryFilter, ordering []core.DBOrdering) ([]Component, error) {
	if !actor.IsAuthenticated() {
		return nil, core.ErrUnauthorized
	}
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		filter.StudentID = actor.UserID
	}
	return svc.repo.QueryComponents(ctx, filter, ordering)
}

func (svc *service) ListCorrections(ctx context.Context, actor user.AuthContext, componentID string) ([]Correction, error) {
	if err := actor.RequireStaff(); err != nil {
		return nil, err
	}
	if _, err := svc.repo.GetComponent(ctx, componentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryCorrections(ctx, componentID)
}

// StudentReport builds the detailed-grade view, with the weighted average of each subject.
func (svc *service) StudentReport(ctx context.Context, actor user.AuthContext, periodID, studentID string) (StudentReport, error) {
	sheet, err := svc.gradeSheet(ctx, actor, periodID, studentID)
	if err != nil {
		return StudentReport{}, err
	}

	rep := StudentReport{
		ReportingPeriodID:   sheet.period.ID,
		ReportingPeriodName: sheet.period.Name,
		StudentID:           sheet.student.ID,
		StudentName:         sheet.student.Name,
		Subjects:            make([]SubjectReport, 0, len(sheet.subjects)),
	}
	for _, sub := range sheet.subjects {
		comps := sheet.components[sub.ID]
		sr := SubjectReport{SubjectID: sub.ID, SubjectName: sub.Name, Components: comps}
		if avg, ok := ComputeSubjectAverage(comps); ok {
			sr.Average = &avg
		}
		rep.Subjects = append(rep.Subjects, sr)
	}
	return rep, nil
}

// HomeroomSummary builds the homeroom-submission view, only made of midterm and final grades.
func (svc *service) HomeroomSummary(ctx context.Context, actor user.AuthContext, periodID, studentID string) (HomeroomSummary, error) {
	sheet, err := svc.gradeSheet(ctx, actor, periodID, studentID)
	if err != nil {
		return HomeroomSummary{}, err
	}

	sum := HomeroomSummary{
		ReportingPeriodID:   sheet.period.ID,
		ReportingPeriodName: sheet.period.Name,
		StudentID:           sheet.student.ID,
		StudentName:         sheet.student.Name,
		Subjects:            make([]HomeroomLine, 0, len(sheet.subjects)),
	}
	for _, sub := range sheet.subjects {
		comps := sheet.components[sub.ID]
		line := HomeroomLine{SubjectID: sub.ID, SubjectName: sub.Name}
		for _, c := range comps {
			switch c.Type {
			case TypeMidterm:
				line.Midterm = c.Value
			case TypeFinal:
				line.Final = c.Value
			}
		}
		if avg, ok := ComputeMidtermFinalAverage(comps); ok {
			line.Average = &avg
		}
		sum.Subjects = append(sum.Subjects, line)
	}
	return sum, nil
}

type gradeSheet struct {
	period     period.ReportingPeriod
	student    user.User
	subjects   []subject.Subject
	components map[string][]Component // {subjectID: components}
}

// gradeSheet loads the components of a student for a period, grouped by subject sorted by name.
func (svc *service) gradeSheet(ctx context.Context, actor user.AuthContext, periodID, studentID string) (gradeSheet, error) {
	if !actor.IsAuthenticated() {
		return gradeSheet{}, core.ErrUnauthorized
	}
	if !canSeeStudent(actor, studentID) {
		return gradeSheet{}, core.ErrForbidden
	}

	var (
		sheet gradeSheet
		err   error
	)
	if sheet.period, err = svc.periods.GetPeriod(ctx, periodID); err != nil {
		return gradeSheet{}, err
	}
	if sheet.student, err = svc.users.GetUser(ctx, user.GetFilter{ID: studentID}); err != nil {
		return gradeSheet{}, err
	}

	comps, err := svc.repo.QueryComponents(ctx, &QueryFilter{
		ReportingPeriodID: periodID,
		StudentID:         studentID,
	}, []core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return gradeSheet{}, errors.Wrap(err, "querying components")
	}

	sheet.components = make(map[string][]Component)
	subjectIDs := make([]string, 0, 8)
	for _, c := range comps {
		if _, ok := sheet.components[c.SubjectID]; !ok {
			subjectIDs = append(subjectIDs, c.SubjectID)
		}
		sheet.components[c.SubjectID] = append(sheet.components[c.SubjectID], c)
	}
	if len(subjectIDs) > 0 {
		if sheet.subjects, err = svc.subjects.GetSubjectsByID(ctx, subjectIDs...); err != nil {
			return gradeSheet{}, errors.Wrap(err, "getting subjects")
		}
	}
	sort.Slice(sheet.subjects, func(i, j int) bool {
		return sheet.subjects[i].Name < sheet.subjects[j].Name
	})
	return sheet, nil
}

func (svc *service) openPeriod(ctx context.Context, id string) (period.ReportingPeriod, error) {
	p, err := svc.periods.GetPeriod(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return p, core.NewValidationError(err, core.FieldError{Field: "reporting_period_id", Error: err.Error()})
		}
		return p, errors.Wrap(err, "getting reporting period")
	}
	if p.IsClosed {
		return p, ErrPeriodClosed
	}
	return p, nil
}

func (svc *service) checkStudent(ctx context.Context, id string) error {
	usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: id})
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return errors.Wrap(err, "getting student")
	}
	if !usr.IsStudent() {
		return core.NewValidationError(ErrNotAStudent, core.FieldError{Field: "student_id", Error: ErrNotAStudent.Error()})
	}
	return nil
}

func canSeeStudent(actor user.AuthContext, studentID string) bool {
	return actor.IsTeacher() || actor.IsAdmin() || actor.UserID == studentID
}
