package echoapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core/integration"
)

type integrationApi struct {
	svc      *integration.Service
	validate *validator.Validate
}

func registerIntegrationAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := integrationApi{svc: deps.IntegrationSvc, validate: deps.Validate}

	ig := g.Group("/integrations", authed)
	ig.GET("", api.query)
	ig.POST("", api.create)
	ig.GET("/:id", api.retrieve)
	ig.PUT("/:id", api.update)
	ig.PATCH("/:id", api.update)
	ig.DELETE("/:id", api.destroy)
	ig.POST("/:id/configure_zoom", api.configure(integration.Zoom))
	ig.POST("/:id/configure_google_classroom", api.configure(integration.GoogleClassroom))

	cg := g.Group("/course-integrations", authed)
	cg.GET("", api.queryCourseIntegrations)
	cg.POST("", api.createCourseIntegration)
	cg.GET("/:id", api.retrieveCourseIntegration)
	cg.DELETE("/:id", api.destroyCourseIntegration)

	zg := g.Group("/zoom-meetings", authed)
	zg.GET("", api.queryMeetings)
	zg.POST("", api.createMeeting)
	zg.GET("/:id", api.retrieveMeeting)
	zg.DELETE("/:id", api.destroyMeeting)
}

// LMS integrations

func (api *integrationApi) query(ctx echo.Context) error {
	lis, err := api.svc.ListIntegrations(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "listing integrations")
	}
	if lis == nil {
		lis = []integration.LMSIntegration{}
	}
	return ctx.JSON(http.StatusOK, lis)
}

func (api *integrationApi) create(ctx echo.Context) error {
	var data integration.NewLMSIntegration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLMSIntegration")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	li, err := api.svc.CreateIntegration(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating integration")
	}
	return ctx.JSON(http.StatusCreated, li)
}

func (api *integrationApi) retrieve(ctx echo.Context) error {
	li, err := api.svc.GetIntegration(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting integration")
	}
	return ctx.JSON(http.StatusOK, li)
}

func (api *integrationApi) update(ctx echo.Context) error {
	var data integration.UpdateLMSIntegration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLMSIntegration")
	}
	li, err := api.svc.UpdateIntegration(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating integration")
	}
	return ctx.JSON(http.StatusOK, li)
}

func (api *integrationApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteIntegration(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting integration")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *integrationApi) configure(typ integration.Type) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		settings := map[string]interface{}{}
		if err := json.NewDecoder(ctx.Request().Body).Decode(&settings); err != nil && err != io.EOF {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid settings").SetInternal(err)
		}
		li, err := api.svc.Configure(ctx.Request().Context(), actor(ctx), ctx.Param("id"), typ, settings)
		if err != nil {
			return errors.Wrapf(err, "configuring %s integration", typ)
		}
		return ctx.JSON(http.StatusOK, li)
	}
}

// Course integrations

func (api *integrationApi) queryCourseIntegrations(ctx echo.Context) error {
	cis, err := api.svc.ListCourseIntegrations(ctx.Request().Context(), actor(ctx), ctx.QueryParam("course"))
	if err != nil {
		return errors.Wrap(err, "listing course integrations")
	}
	if cis == nil {
		cis = []integration.CourseIntegration{}
	}
	return ctx.JSON(http.StatusOK, cis)
}

func (api *integrationApi) createCourseIntegration(ctx echo.Context) error {
	var data integration.NewCourseIntegration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourseIntegration")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	ci, err := api.svc.CreateCourseIntegration(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating course integration")
	}
	return ctx.JSON(http.StatusCreated, ci)
}

func (api *integrationApi) retrieveCourseIntegration(ctx echo.Context) error {
	ci, err := api.svc.GetCourseIntegration(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course integration")
	}
	return ctx.JSON(http.StatusOK, ci)
}

func (api *integrationApi) destroyCourseIntegration(ctx echo.Context) error {
	if err := api.svc.DeleteCourseIntegration(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course integration")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Zoom meetings

func (api *integrationApi) queryMeetings(ctx echo.Context) error {
	meetings, err := api.svc.ListMeetings(ctx.Request().Context(), actor(ctx), ctx.QueryParam("course"))
	if err != nil {
		return errors.Wrap(err, "listing meetings")
	}
	if meetings == nil {
		meetings = []integration.ZoomMeeting{}
	}
	return ctx.JSON(http.StatusOK, meetings)
}

func (api *integrationApi) createMeeting(ctx echo.Context) error {
	var data integration.NewZoomMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewZoomMeeting")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	meeting, err := api.svc.CreateMeeting(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating meeting")
	}
	return ctx.JSON(http.StatusCreated, meeting)
}

func (api *integrationApi) retrieveMeeting(ctx echo.Context) error {
	meeting, err := api.svc.GetMeeting(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting meeting")
	}
	return ctx.JSON(http.StatusOK, meeting)
}

func (api *integrationApi) destroyMeeting(ctx echo.Context) error {
	if err := api.svc.DeleteMeeting(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting meeting")
	}
	return ctx.NoContent(http.StatusNoContent)
}
