package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/grade"
)

type gradeApi struct {
	svc      grade.Service
	validate *validator.Validate
}

type correctionResponse struct {
	Component  grade.Component  `json:"component"`
	Correction grade.Correction `json:"correction"`
}

func registerGradeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := gradeApi{svc: deps.GradeSvc, validate: deps.Validate}

	gg := g.Group("/grades", jwt)
	gg.POST("", api.create)
	gg.GET("", api.query)
	gg.GET("/:id", api.retrieve)
	gg.PUT("/:id", api.update)
	gg.DELETE("/:id", api.delete)
	gg.POST("/:id/correction", api.correct)
	gg.GET("/:id/corrections", api.queryCorrections)

	// reports
	rg := g.Group("/reporting-periods/:id/students/:student_id", jwt)
	rg.GET("/report", api.studentReport)
	rg.GET("/homeroom", api.homeroomSummary)
}

func (api *gradeApi) create(ctx echo.Context) error {
	var data grade.NewComponent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComponent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.EnterComponent(ctx.Request().Context(), getAuthContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "entering grade component")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *gradeApi) query(ctx echo.Context) error {
	filter := &grade.QueryFilter{
		ReportingPeriodID: ctx.QueryParam("reporting_period_id"),
		StudentID:         ctx.QueryParam("student_id"),
		SubjectID:         ctx.QueryParam("subject_id"),
		Type:              core.CleanString(ctx.QueryParam("component_type"), true /* lower */),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	comps, err := api.svc.ListComponents(ctx.Request().Context(), getAuthContext(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying grade components")
	}
	if comps == nil {
		comps = []grade.Component{}
	}
	return ctx.JSON(http.StatusOK, comps)
}

func (api *gradeApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.GetComponent(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting grade component")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *gradeApi) update(ctx echo.Context) error {
	var data grade.UpdateComponent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateComponent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.UpdateComponent(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating grade component")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *gradeApi) delete(ctx echo.Context) error {
	if err := api.svc.DeleteComponent(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting grade component")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradeApi) correct(ctx echo.Context) error {
	var data grade.NewCorrection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCorrection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, corr, err := api.svc.CorrectComponent(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "correcting grade component")
	}
	return ctx.JSON(http.StatusOK, correctionResponse{Component: c, Correction: corr})
}

func (api *gradeApi) queryCorrections(ctx echo.Context) error {
	corrs, err := api.svc.ListCorrections(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying grade corrections")
	}
	if corrs == nil {
		corrs = []grade.Correction{}
	}
	return ctx.JSON(http.StatusOK, corrs)
}

func (api *gradeApi) studentReport(ctx echo.Context) error {
	rep, err := api.svc.StudentReport(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id"), ctx.Param("student_id"))
	if err != nil {
		return errors.Wrap(err, "building student report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *gradeApi) homeroomSummary(ctx echo.Context) error {
	sum, err := api.svc.HomeroomSummary(ctx.Request().Context(), getAuthContext(ctx), ctx.Param("id"), ctx.Param("student_id"))
	if err != nil {
		return errors.Wrap(err, "building homeroom summary")
	}
	return ctx.JSON(http.StatusOK, sum)
}
