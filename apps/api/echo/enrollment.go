package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core/enrollment"
)

type enrollmentApi struct {
	svc      *enrollment.Service
	validate *validator.Validate
}

func registerEnrollmentAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := enrollmentApi{svc: deps.EnrollmentSvc, validate: deps.Validate}

	eg := g.Group("/enrollments", authed)
	eg.GET("", api.query)
	eg.POST("", api.enroll)
	eg.GET("/completed-lessons", api.completedLessons)
	eg.GET("/:id", api.retrieve)

	wg := g.Group("/wishlist", authed)
	wg.GET("", api.queryWishlist)
	wg.POST("", api.addToWishlist)
	wg.DELETE("/:course", api.removeFromWishlist)
}

type CourseRequest struct {
	Course string `json:"course" validate:"required"`
}

func (cr CourseRequest) Validate(validate *validator.Validate) error { return validate.Struct(cr) }

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	var data CourseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	enr, err := api.svc.Enroll(ctx.Request().Context(), actor(ctx), data.Course)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	enrs, err := api.svc.ListEnrollments(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	if enrs == nil {
		enrs = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	detail, err := api.svc.GetEnrollment(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *enrollmentApi) completedLessons(ctx echo.Context) error {
	ids, err := api.svc.CompletedLessonIDs(ctx.Request().Context(), actor(ctx).ID)
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	return ctx.JSON(http.StatusOK, ids)
}

func (api *enrollmentApi) queryWishlist(ctx echo.Context) error {
	items, err := api.svc.ListWishlist(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "listing wishlist")
	}
	if items == nil {
		items = []enrollment.WishlistItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *enrollmentApi) addToWishlist(ctx echo.Context) error {
	var data CourseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	item, err := api.svc.AddToWishlist(ctx.Request().Context(), actor(ctx), data.Course)
	if err != nil {
		return errors.Wrap(err, "adding to wishlist")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *enrollmentApi) removeFromWishlist(ctx echo.Context) error {
	if err := api.svc.RemoveFromWishlist(ctx.Request().Context(), actor(ctx), ctx.Param("course")); err != nil {
		return errors.Wrap(err, "removing from wishlist")
	}
	return ctx.NoContent(http.StatusNoContent)
}
