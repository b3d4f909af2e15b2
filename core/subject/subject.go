// Package subject keeps the registry of taught subjects that grades and improvement requests refer to.
package subject

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/user"
)

var (
	ErrNotFound   = core.NewNotFoundError("subject not found")
	ErrCodeExists = errors.New("a subject with this code already exists")
)

type Subject struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type NewSubject struct {
	Code string `json:"code" validate:"required,max=32,alphanum_"`
	Name string `json:"name" validate:"required,max=128"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Code = core.CleanString(ns.Code, true /* lower */)
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

type QueryFilter struct {
	Search string
}

type (
	Repository interface {
		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		GetSubjectByCode(ctx context.Context, code string) (Subject, error)
		GetSubjectsByID(ctx context.Context, ids ...string) ([]Subject, error)
		QuerySubjects(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Subject, error)
	}

	Service interface {
		Create(ctx context.Context, actor user.AuthContext, ns NewSubject) (Subject, error)
		Get(ctx context.Context, id string) (Subject, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Subject, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, actor user.AuthContext, ns NewSubject) (Subject, error) {
	if err := actor.RequireAdmin(); err != nil {
		return Subject{}, err
	}
	if _, err := svc.repo.GetSubjectByCode(ctx, ns.Code); err == nil {
		return Subject{}, core.NewValidationError(ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	} else if err != ErrNotFound {
		return Subject{}, errors.Wrap(err, "checking subject code")
	}

	sub, err := svc.repo.CreateSubject(ctx, Subject{
		Code:      ns.Code,
		Name:      ns.Name,
		CreatedAt: core.NowFunc().UTC(),
	})
	if err == ErrCodeExists {
		return Subject{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
	}
	return sub, errors.Wrap(err, "creating subject")
}

func (svc *service) Get(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, filter, ordering)
}

// NamesByID maps the given subject IDs to their names. Unknown IDs are left out.
func NamesByID(ctx context.Context, repo Repository, ids ...string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	subs, err := repo.GetSubjectsByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "getting subjects by ID")
	}
	for _, s := range subs {
		names[s.ID] = s.Name
	}
	return names, nil
}
