// Package period manages grade-reporting periods: the windows, e.g. a semester segment,
// during which grades are collected and published.
package period

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/user"
)

var (
	ErrNotFound      = core.NewNotFoundError("reporting period not found")
	ErrAlreadyClosed = core.NewBusinessRuleError("reporting period is already closed")
)

type ReportingPeriod struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
	IsClosed  bool      `json:"is_closed"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type NewReportingPeriod struct {
	Name      string    `json:"name" validate:"required,max=128"`
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
}

func (np *NewReportingPeriod) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	if err := validate.Struct(np); err != nil {
		return err
	}
	return core.ValidateDateRange(np.StartDate, np.EndDate)
}

type QueryFilter struct {
	IsClosed *bool
}

type (
	Repository interface {
		CreatePeriod(ctx context.Context, p ReportingPeriod) (ReportingPeriod, error)
		GetPeriod(ctx context.Context, id string) (ReportingPeriod, error)
		QueryPeriods(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]ReportingPeriod, error)
		UpdatePeriod(ctx context.Context, p ReportingPeriod) (ReportingPeriod, error)
	}

	Service interface {
		Create(ctx context.Context, actor user.AuthContext, np NewReportingPeriod) (ReportingPeriod, error)
		Get(ctx context.Context, id string) (ReportingPeriod, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]ReportingPeriod, error)
		Close(ctx context.Context, actor user.AuthContext, id string) (ReportingPeriod, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, actor user.AuthContext, np NewReportingPeriod) (ReportingPeriod, error) {
	if err := actor.RequireAdmin(); err != nil {
		return ReportingPeriod{}, err
	}
	p, err := svc.repo.CreatePeriod(ctx, ReportingPeriod{
		Name:      np.Name,
		StartDate: np.StartDate,
		EndDate:   np.EndDate,
		CreatedBy: actor.UserID,
		CreatedAt: core.NowFunc().UTC(),
	})
	return p, errors.Wrap(err, "creating reporting period")
}

func (svc *service) Get(ctx context.Context, id string) (ReportingPeriod, error) {
	return svc.repo.GetPeriod(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]ReportingPeriod, error) {
	return svc.repo.QueryPeriods(ctx, filter, ordering)
}

// Close freezes the period's grades. It cannot be undone.
func (svc *service) Close(ctx context.Context, actor user.AuthContext, id string) (ReportingPeriod, error) {
	if err := actor.RequireAdmin(); err != nil {
		return ReportingPeriod{}, err
	}
	p, err := svc.repo.GetPeriod(ctx, id)
	if err != nil {
		return ReportingPeriod{}, err
	}
	if p.IsClosed {
		return ReportingPeriod{}, ErrAlreadyClosed
	}
	p.IsClosed = true
	p, err = svc.repo.UpdatePeriod(ctx, p)
	return p, errors.Wrap(err, "closing reporting period")
}
