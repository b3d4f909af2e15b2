package period_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/period"
	"github.com/truonghoc/backend/core/user"
	"github.com/truonghoc/backend/storage/database/inmem"
)

func TestNewReportingPeriod_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	np := period.NewReportingPeriod{Name: "  Semester 1 ", StartDate: core.NewDate(2024, time.January, 1), EndDate: core.NewDate(2024, time.May, 31)}
	require.NoError(t, np.Validate(validate))
	assert.Equal(t, "Semester 1", np.Name)

	np.EndDate = core.NewDate(2023, time.December, 31)
	var vErr *core.ValidationError
	require.ErrorAs(t, np.Validate(validate), &vErr)
	assert.Equal(t, "end_date", vErr.Fields[0].Field)

	np.Name = ""
	var fErrs validator.ValidationErrors
	require.ErrorAs(t, np.Validate(validate), &fErrs)
	assert.Equal(t, "name", fErrs[0].Field())
}

func TestService_Close(t *testing.T) {
	svc := period.NewService(inmemdb.NewPeriodRepository(inmemdb.Open()))
	ctx := context.Background()
	admin := user.AuthContext{UserID: "a", Roles: []string{user.RoleAdmin}}
	teacher := user.AuthContext{UserID: "t", Roles: []string{user.RoleTeacher}}

	np := period.NewReportingPeriod{Name: "Semester 1", StartDate: core.NewDate(2024, time.January, 1), EndDate: core.NewDate(2024, time.May, 31)}
	_, err := svc.Create(ctx, teacher, np)
	assert.Equal(t, core.ErrForbidden, err)

	p, err := svc.Create(ctx, admin, np)
	require.NoError(t, err)
	assert.False(t, p.IsClosed)
	assert.Equal(t, "a", p.CreatedBy)

	_, err = svc.Close(ctx, teacher, p.ID)
	assert.Equal(t, core.ErrForbidden, err)

	closed, err := svc.Close(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)

	_, err = svc.Close(ctx, admin, p.ID)
	assert.Equal(t, period.ErrAlreadyClosed, err)

	_, err = svc.Close(ctx, admin, "unknown")
	assert.Equal(t, period.ErrNotFound, err)

	isClosed := true
	got, err := svc.Query(ctx, &period.QueryFilter{IsClosed: &isClosed}, nil)
	require.NoError(t, err)
	assert.Equal(t, []period.ReportingPeriod{closed}, got)
}
