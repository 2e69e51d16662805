package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core/analytics"
)

type analyticsApi struct {
	svc *analytics.Service
}

func registerAnalyticsAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := analyticsApi{svc: deps.AnalyticsSvc}

	ag := g.Group("/analytics", authed)
	ag.GET("/instructor", api.instructor)
	ag.GET("/platform", api.platform)
}

func (api *analyticsApi) instructor(ctx echo.Context) error {
	summary, err := api.svc.InstructorSummary(ctx.Request().Context(), actor(ctx), ctx.QueryParam("instructor_id"))
	if err != nil {
		return errors.Wrap(err, "summarizing instructor analytics")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *analyticsApi) platform(ctx echo.Context) error {
	stats, err := api.svc.PlatformSummary(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "summarizing platform analytics")
	}
	return ctx.JSON(http.StatusOK, stats)
}
