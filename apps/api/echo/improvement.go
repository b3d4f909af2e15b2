package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/improvement"
)

type improvementApi struct {
	svc      improvement.Service
	validate *validator.Validate
}

func registerImprovementAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := improvementApi{svc: deps.ImprovementSvc, validate: deps.Validate}

	pg := g.Group("/improvement-periods", jwt)
	pg.POST("", api.createPeriod)
	pg.GET("", api.queryPeriods)
	pg.GET("/:id", api.retrievePeriod)
	pg.POST("/:id/deactivate", api.deactivatePeriod)

	rg := g.Group("/improvement-requests", jwt)
	rg.POST("", api.fileRequest)
	rg.GET("", api.queryRequests)
	rg.GET("/:id", api.retrieveRequest)
	rg.POST("/:id/resolve", api.resolveRequest)
}

// Periods

func (api *improvementApi) createPeriod(ctx echo.Context) error {
	var data improvement.NewPeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.CreatePeriod(ctx.Request().Context(), getAuthContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating improvement period")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *improvementApi) queryPeriods(ctx echo.Context) error {
	isActive, err := queryBool(ctx, "is_active")
	if err != nil {
		return err
	}
	openOn, err := queryDate(ctx, "open_on")
	if err != nil {
		return err
	}
	filter := &improvement.PeriodFilter{
		ReportingPeriodID: ctx.QueryParam("reporting_period_id"),
		IsActive:          isActive,
		OpenOn:            openOn,
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	periods, err := api.svc.QueryPeriods(ctx.Request().Context(), getAuthContext(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying improvement periods")
	}
	if periods == nil {
		periods = []improvement.PeriodDetail{}
	}
	return ctx.JSON(http.StatusOK, periods)
}

func (api *improvementApi) retrievePeriod(ctx echo.Context) error {
	p, err := api.svc.GetPeriod(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting improvement period")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *improvementApi) deactivatePeriod(ctx echo.Context) error {
	p, err := api.svc.DeactivatePeriod(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deactivating improvement period")
	}
	return ctx.JSON(http.StatusOK, p)
}

// Requests

func (api *improvementApi) fileRequest(ctx echo.Context) error {
	var data improvement.NewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.FileRequest(ctx.Request().Context(), getAuthContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "filing improvement request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *improvementApi) queryRequests(ctx echo.Context) error {
	filter := &improvement.RequestFilter{
		ImprovementPeriodID: ctx.QueryParam("improvement_period_id"),
		StudentID:           ctx.QueryParam("student_id"),
		SubjectID:           ctx.QueryParam("subject_id"),
		Status:              core.CleanString(ctx.QueryParam("status"), true /* lower */),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	reqs, err := api.svc.QueryRequests(ctx.Request().Context(), getAuthContext(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying improvement requests")
	}
	if reqs == nil {
		reqs = []improvement.Request{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *improvementApi) retrieveRequest(ctx echo.Context) error {
	req, err := api.svc.GetRequest(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting improvement request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *improvementApi) resolveRequest(ctx echo.Context) error {
	var data improvement.Resolution
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Resolution")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.ResolveRequest(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "resolving improvement request")
	}
	return ctx.JSON(http.StatusOK, req)
}
