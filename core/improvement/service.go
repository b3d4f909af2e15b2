package improvement

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/period"
	"github.com/truonghoc/backend/core/subject"
	"github.com/truonghoc/backend/core/user"
)

const resolvedTemplate = "improvement_resolved"

type (
	Repository interface {
		CreatePeriod(ctx context.Context, p Period) (Period, error)
		GetPeriod(ctx context.Context, id string) (Period, error)
		QueryPeriods(ctx context.Context, filter *PeriodFilter, ordering []core.DBOrdering) ([]Period, error)
		UpdatePeriod(ctx context.Context, p Period) (Period, error)
		// HasOverlappingPeriod reports whether an active period of the reporting period shares a day with [start, end].
		HasOverlappingPeriod(ctx context.Context, reportingPeriodID string, start, end core.Date) (bool, error)

		CreateRequest(ctx context.Context, r Request) (Request, error)
		GetRequest(ctx context.Context, id string) (Request, error)
		QueryRequests(ctx context.Context, filter *RequestFilter, ordering []core.DBOrdering) ([]Request, error)
		RequestExists(ctx context.Context, periodID, studentID, subjectID string) (bool, error)
		// ResolveRequest saves the resolution of r only if it is still pending; ErrAlreadyResolved otherwise.
		ResolveRequest(ctx context.Context, r Request) (Request, error)
	}

	Service interface {
		CreatePeriod(ctx context.Context, actor user.AuthContext, np NewPeriod) (PeriodDetail, error)
		DeactivatePeriod(ctx context.Context, actor user.AuthContext, id string) (PeriodDetail, error)
		GetPeriod(ctx context.Context, actor user.AuthContext, id string) (PeriodDetail, error)
		QueryPeriods(ctx context.Context, actor user.AuthContext, filter *PeriodFilter, ordering []core.DBOrdering) ([]PeriodDetail, error)

		FileRequest(ctx context.Context, actor user.AuthContext, nr NewRequest) (Request, error)
		ResolveRequest(ctx context.Context, actor user.AuthContext, id string, res Resolution) (Request, error)
		GetRequest(ctx context.Context, actor user.AuthContext, id string) (Request, error)
		QueryRequests(ctx context.Context, actor user.AuthContext, filter *RequestFilter, ordering []core.DBOrdering) ([]Request, error)
	}

	ServiceDeps struct {
		Conf     *core.Config
		Logger   core.Logger
		Mailer   core.EmailService
		Repo     Repository
		Periods  period.Repository
		Subjects subject.Repository
		Users    user.Repository
	}

	service struct {
		conf     *core.Config
		logger   core.Logger
		mailer   core.EmailService
		repo     Repository
		periods  period.Repository
		subjects subject.Repository
		users    user.Repository
	}

	// resolutionNotice is the data of the email sent to a student once their request is resolved.
	resolutionNotice struct {
		RequestID           string
		StudentName         string
		SubjectName         string
		ReportingPeriodName string
		Status              string
		AdminComment        string
	}
)

var _ Service = (*service)(nil)

func NewService(deps ServiceDeps) Service {
	return &service{
		conf:     deps.Conf,
		logger:   deps.Logger,
		mailer:   deps.Mailer,
		repo:     deps.Repo,
		periods:  deps.Periods,
		subjects: deps.Subjects,
		users:    deps.Users,
	}
}

func (svc *service) CreatePeriod(ctx context.Context, actor user.AuthContext, np NewPeriod) (PeriodDetail, error) {
	if err := actor.RequireAdmin(); err != nil {
		return PeriodDetail{}, err
	}

	parent, err := svc.periods.GetPeriod(ctx, np.ReportingPeriodID)
	if err != nil {
		if core.IsNotFound(err) {
			return PeriodDetail{}, core.NewValidationError(err, core.FieldError{Field: "reporting_period_id", Error: err.Error()})
		}
		return PeriodDetail{}, errors.Wrap(err, "getting reporting period")
	}
	if !np.EndDate.Before(parent.EndDate) {
		return PeriodDetail{}, ErrEndsAfterParent
	}

	overlaps, err := svc.repo.HasOverlappingPeriod(ctx, parent.ID, np.StartDate, np.EndDate)
	if err != nil {
		return PeriodDetail{}, errors.Wrap(err, "checking overlapping periods")
	}
	if overlaps {
		return PeriodDetail{}, ErrPeriodOverlaps
	}

	p, err := svc.repo.CreatePeriod(ctx, Period{
		ReportingPeriodID: parent.ID,
		StartDate:         np.StartDate,
		EndDate:           np.EndDate,
		IsActive:          true,
		CreatedBy:         actor.UserID,
		CreatedAt:         core.NowFunc().UTC(),
	})
	if err != nil {
		if core.IsBusinessRule(err) {
			return PeriodDetail{}, err
		}
		return PeriodDetail{}, errors.Wrap(err, "creating improvement period")
	}

	details, err := svc.details(ctx, p)
	if err != nil {
		return PeriodDetail{}, err
	}
	return details[0], nil
}

// DeactivatePeriod closes the window for good. Deactivating an inactive period is a no-op.
func (svc *service) DeactivatePeriod(ctx context.Context, actor user.AuthContext, id string) (PeriodDetail, error) {
	if err := actor.RequireAdmin(); err != nil {
		return PeriodDetail{}, err
	}
	p, err := svc.repo.GetPeriod(ctx, id)
	if err != nil {
		return PeriodDetail{}, err
	}
	if p.IsActive {
		p.IsActive = false
		if p, err = svc.repo.UpdatePeriod(ctx, p); err != nil {
			return PeriodDetail{}, errors.Wrap(err, "deactivating improvement period")
		}
	}

	details, err := svc.details(ctx, p)
	if err != nil {
		return PeriodDetail{}, err
	}
	return details[0], nil
}

func (svc *service) GetPeriod(ctx context.Context, actor user.AuthContext, id string) (PeriodDetail, error) {
	if !actor.IsAuthenticated() {
		return PeriodDetail{}, core.ErrUnauthorized
	}
	p, err := svc.repo.GetPeriod(ctx, id)
	if err != nil {
		return PeriodDetail{}, err
	}

	details, err := svc.details(ctx, p)
	if err != nil {
		return PeriodDetail{}, err
	}
	return details[0], nil
}

func (svc *service) QueryPeriods(ctx context.Context, actor user.AuthContext, filter *PeriodFilter, ordering []core.DBOrdering) ([]PeriodDetail, error) {
	if !actor.IsAuthenticated() {
		return nil, core.ErrUnauthorized
	}
	periods, err := svc.repo.QueryPeriods(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying improvement periods")
	}
	return svc.details(ctx, periods...)
}

func (svc *service) FileRequest(ctx context.Context, actor user.AuthContext, nr NewRequest) (Request, error) {
	if err := actor.RequireStudent(); err != nil {
		return Request{}, err
	}

	p, err := svc.repo.GetPeriod(ctx, nr.ImprovementPeriodID)
	if err != nil {
		if core.IsNotFound(err) {
			return Request{}, core.NewValidationError(err, core.FieldError{Field: "improvement_period_id", Error: err.Error()})
		}
		return Request{}, errors.Wrap(err, "getting improvement period")
	}
	if !p.IsOpenOn(svc.conf.Today()) {
		return Request{}, ErrWindowClosed
	}

	if _, err = svc.subjects.GetSubject(ctx, nr.SubjectID); err != nil {
		if core.IsNotFound(err) {
			return Request{}, core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: err.Error()})
		}
		return Request{}, errors.Wrap(err, "getting subject")
	}

	exists, err := svc.repo.RequestExists(ctx, p.ID, actor.UserID, nr.SubjectID)
	if err != nil {
		return Request{}, errors.Wrap(err, "checking existing requests")
	}
	if exists {
		return Request{}, ErrDuplicateRequest
	}

	req, err := svc.repo.CreateRequest(ctx, Request{
		ImprovementPeriodID: p.ID,
		StudentID:           actor.UserID,
		SubjectID:           nr.SubjectID,
		Reason:              nr.Reason,
		Status:              StatusPending,
		CreatedAt:           core.NowFunc().UTC(),
	})
	if err != nil {
		if core.IsBusinessRule(err) {
			return Request{}, err
		}
		return Request{}, errors.Wrap(err, "creating improvement request")
	}
	return req, nil
}

// ResolveRequest approves or rejects a pending request, then notifies the student by email.
func (svc *service) ResolveRequest(ctx context.Context, actor user.AuthContext, id string, res Resolution) (Request, error) {
	if err := actor.RequireAdmin(); err != nil {
		return Request{}, err
	}
	res.Status = core.CleanString(res.Status, true /* lower */)
	res.AdminComment = core.CleanString(res.AdminComment)
	switch {
	case res.Status != StatusApproved && res.Status != StatusRejected:
		err := errors.New(resolutionStatusText)
		return Request{}, core.NewValidationError(err, core.FieldError{Field: "status", Error: err.Error()})
	case res.Status == StatusRejected && res.AdminComment == "":
		err := errors.New(rejectionCommentText)
		return Request{}, core.NewValidationError(err, core.FieldError{Field: "admin_comment", Error: err.Error()})
	}

	req, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !req.IsPending() {
		return Request{}, ErrAlreadyResolved
	}

	now := core.NowFunc().UTC()
	req.Status = res.Status
	req.AdminComment = res.AdminComment
	req.ReviewedBy = actor.UserID
	req.ReviewedAt = &now
	if req, err = svc.repo.ResolveRequest(ctx, req); err != nil {
		if core.IsBusinessRule(err) {
			return Request{}, err
		}
		return Request{}, errors.Wrap(err, "resolving improvement request")
	}

	svc.notifyResolution(ctx, req)
	return req, nil
}

func (svc *service) GetRequest(ctx context.Context, actor user.AuthContext, id string) (Request, error) {
	if !actor.IsAuthenticated() {
		return Request{}, core.ErrUnauthorized
	}
	req, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !(actor.IsAdmin() || actor.IsTeacher()) && req.StudentID != actor.UserID {
		return Request{}, ErrRequestNotFound
	}
	return req, nil
}

// QueryRequests lists the requests matching filter. Students only ever get their own.
func (svc *service) QueryRequests(ctx context.Context, actor user.AuthContext, filter *RequestFilter, ordering []core.DBOrdering) ([]Request, error) {
	if !actor.IsAuthenticated() {
		return nil, core.ErrUnauthorized
	}
	if filter == nil {
		filter = new(RequestFilter)
	}
	if !(actor.IsAdmin() || actor.IsTeacher()) {
		filter.StudentID = actor.UserID
	}
	return svc.repo.QueryRequests(ctx, filter, ordering)
}

// details resolves the reporting period and creator names of periods.
func (svc *service) details(ctx context.Context, periods ...Period) ([]PeriodDetail, error) {
	details := make([]PeriodDetail, 0, len(periods))
	if len(periods) == 0 {
		return details, nil
	}

	parentNames := make(map[string]string)
	creatorIDs := make([]string, 0, len(periods))
	for _, p := range periods {
		if _, ok := parentNames[p.ReportingPeriodID]; !ok {
			parent, err := svc.periods.GetPeriod(ctx, p.ReportingPeriodID)
			if err != nil && !core.IsNotFound(err) {
				return nil, errors.Wrap(err, "getting reporting period")
			}
			parentNames[p.ReportingPeriodID] = parent.Name
		}
		creatorIDs = append(creatorIDs, p.CreatedBy)
	}
	creatorNames, err := user.NamesByID(ctx, svc.users, creatorIDs...)
	if err != nil {
		return nil, err
	}

	for _, p := range periods {
		details = append(details, PeriodDetail{
			Period:              p,
			ReportingPeriodName: parentNames[p.ReportingPeriodID],
			CreatedByName:       creatorNames[p.CreatedBy],
		})
	}
	return details, nil
}

// notifyResolution emails the student about the decision. Failures are logged and never undo the resolution.
func (svc *service) notifyResolution(ctx context.Context, req Request) {
	if svc.mailer == nil {
		return
	}
	fail := func(msg string, err error) {
		if svc.logger != nil {
			svc.logger.Error(fmt.Sprintf("notifying resolution of request %s: %s: %v", req.ID, msg, err), err)
		}
	}

	student, err := svc.users.GetUser(ctx, user.GetFilter{ID: req.StudentID})
	if err != nil {
		fail("getting student", err)
		return
	}
	if student.Email == "" {
		return
	}

	notice := resolutionNotice{
		RequestID:    req.ID,
		StudentName:  student.Name,
		Status:       req.Status,
		AdminComment: req.AdminComment,
	}
	if sub, err := svc.subjects.GetSubject(ctx, req.SubjectID); err == nil {
		notice.SubjectName = sub.Name
	}
	if p, err := svc.repo.GetPeriod(ctx, req.ImprovementPeriodID); err == nil {
		if parent, err := svc.periods.GetPeriod(ctx, p.ReportingPeriodID); err == nil {
			notice.ReportingPeriodName = parent.Name
		}
	}

	svc.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      fmt.Sprintf("Your grade improvement request was %s", req.Status),
		TemplateName: resolvedTemplate,
		TemplateData: notice,
	})
}
