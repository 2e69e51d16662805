package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core/grading"
)

type gradingApi struct {
	svc      *grading.Service
	validate *validator.Validate
}

func registerGradingAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := gradingApi{svc: deps.GradingSvc, validate: deps.Validate}

	ag := g.Group("/assignment-submissions", authed)
	ag.GET("", api.queryAssignmentSubmissions)
	ag.POST("", api.submitAssignment)
	ag.GET("/:id", api.retrieveAssignmentSubmission)
	ag.POST("/:id/grade", api.grade)
	ag.POST("/:id/set_status", api.setStatus)

	qg := g.Group("/quiz-submissions", authed)
	qg.GET("", api.queryQuizSubmissions)
	qg.POST("", api.submitQuiz)
	qg.GET("/:id", api.retrieveQuizSubmission)
}

type StatusRequest struct {
	Status grading.SubmissionStatus `json:"status"`
}

// Assignment submissions

func (api *gradingApi) submitAssignment(ctx echo.Context) error {
	var data grading.NewAssignmentSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignmentSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sub, err := api.svc.SubmitAssignment(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *gradingApi) queryAssignmentSubmissions(ctx echo.Context) error {
	subs, err := api.svc.ListAssignmentSubmissions(ctx.Request().Context(), actor(ctx), ctx.QueryParam("assignment"))
	if err != nil {
		return errors.Wrap(err, "listing assignment submissions")
	}
	if subs == nil {
		subs = []grading.AssignmentSubmission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *gradingApi) retrieveAssignmentSubmission(ctx echo.Context) error {
	sub, err := api.svc.GetAssignmentSubmission(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *gradingApi) grade(ctx echo.Context) error {
	var data grading.Grade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Grade")
	}
	sub, err := api.svc.GradeSubmission(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *gradingApi) setStatus(ctx echo.Context) error {
	var data StatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}
	sub, err := api.svc.SetSubmissionStatus(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting submission status")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// Quiz submissions

func (api *gradingApi) submitQuiz(ctx echo.Context) error {
	var data grading.NewQuizSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuizSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sub, err := api.svc.SubmitQuiz(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *gradingApi) queryQuizSubmissions(ctx echo.Context) error {
	subs, err := api.svc.ListQuizSubmissions(ctx.Request().Context(), actor(ctx), ctx.QueryParam("quiz"))
	if err != nil {
		return errors.Wrap(err, "listing quiz submissions")
	}
	if subs == nil {
		subs = []grading.QuizSubmission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *gradingApi) retrieveQuizSubmission(ctx echo.Context) error {
	sub, err := api.svc.GetQuizSubmission(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting quiz submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}
