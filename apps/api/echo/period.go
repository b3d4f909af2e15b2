package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/truonghoc/backend/core/period"
)

type periodApi struct {
	svc      period.Service
	validate *validator.Validate
}

func registerPeriodAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := periodApi{svc: deps.PeriodSvc, validate: deps.Validate}

	pg := g.Group("/reporting-periods", jwt)
	pg.POST("", api.create)
	pg.GET("", api.query)
	pg.GET("/:id", api.retrieve)
	pg.POST("/:id/close", api.close)
}

func (api *periodApi) create(ctx echo.Context) error {
	var data period.NewReportingPeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReportingPeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), getAuthContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating reporting period")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *periodApi) query(ctx echo.Context) error {
	isClosed, err := queryBool(ctx, "is_closed")
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	periods, err := api.svc.Query(ctx.Request().Context(), &period.QueryFilter{IsClosed: isClosed}, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying reporting periods")
	}
	if periods == nil {
		periods = []period.ReportingPeriod{}
	}
	return ctx.JSON(http.StatusOK, periods)
}

func (api *periodApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting reporting period")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *periodApi) close(ctx echo.Context) error {
	p, err := api.svc.Close(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "closing reporting period")
	}
	return ctx.JSON(http.StatusOK, p)
}
