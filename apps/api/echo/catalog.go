package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/enrollment"
)

type catalogApi struct {
	svc         *catalog.Service
	enrollments *enrollment.Service
	validate    *validator.Validate
}

func registerCatalogAPI(g *echo.Group, authed, optional echo.MiddlewareFunc, deps *Deps) {
	api := catalogApi{
		svc:         deps.CatalogSvc,
		enrollments: deps.EnrollmentSvc,
		validate:    deps.Validate,
	}

	cg := g.Group("/courses")
	cg.GET("", api.queryCourses, optional)
	cg.GET("/:id", api.retrieveCourse, optional)
	cg.POST("", api.createCourse, authed)
	cg.PUT("/:id", api.updateCourse, authed)
	cg.PATCH("/:id", api.updateCourse, authed)
	cg.DELETE("/:id", api.destroyCourse, authed)

	mg := g.Group("/modules")
	mg.GET("", api.queryModules, optional)
	mg.GET("/:id", api.retrieveModule, optional)
	mg.POST("", api.createModule, authed)
	mg.PUT("/:id", api.updateModule, authed)
	mg.PATCH("/:id", api.updateModule, authed)
	mg.DELETE("/:id", api.destroyModule, authed)

	lg := g.Group("/lessons", authed)
	lg.GET("", api.queryLessons)
	lg.GET("/:id", api.retrieveLesson)
	lg.POST("", api.createLesson)
	lg.PUT("/:id", api.updateLesson)
	lg.PATCH("/:id", api.updateLesson)
	lg.DELETE("/:id", api.destroyLesson)
	lg.POST("/:id/complete", api.completeLesson)
	lg.POST("/:id/uncomplete", api.uncompleteLesson)

	ag := g.Group("/assignments", authed)
	ag.GET("", api.queryAssignments)
	ag.GET("/:id", api.retrieveAssignment)
	ag.POST("", api.createAssignment)
	ag.PUT("/:id", api.updateAssignment)
	ag.PATCH("/:id", api.updateAssignment)
	ag.DELETE("/:id", api.destroyAssignment)

	qg := g.Group("/quizzes", authed)
	qg.GET("", api.queryQuizzes)
	qg.GET("/:id", api.retrieveQuiz)
	qg.POST("", api.createQuiz)
	qg.PUT("/:id", api.updateQuiz)
	qg.PATCH("/:id", api.updateQuiz)
	qg.DELETE("/:id", api.destroyQuiz)

	bg := g.Group("/question-bank", authed)
	bg.GET("", api.queryBank)
	bg.GET("/:id", api.retrieveBankEntry)
	bg.POST("", api.createBankEntry)
	bg.PUT("/:id", api.updateBankEntry)
	bg.PATCH("/:id", api.updateBankEntry)
	bg.DELETE("/:id", api.destroyBankEntry)
}

// CourseView is a course with the acting student's relationship to it.
type CourseView struct {
	catalog.Course
	IsEnrolled   bool `json:"is_enrolled"`
	IsInWishlist bool `json:"is_in_wishlist"`
}

type CourseTreeView struct {
	catalog.CourseTree
	IsEnrolled   bool `json:"is_enrolled"`
	IsInWishlist bool `json:"is_in_wishlist"`
}

type LessonView struct {
	catalog.Lesson
	IsCompleted bool `json:"is_completed"`
}

// courseFlags returns the enrolled & wishlisted course sets of the acting user.
func (api *catalogApi) courseFlags(ctx echo.Context) (enrolled, wished map[string]bool, err error) {
	enrolled, wished = map[string]bool{}, map[string]bool{}
	a := actor(ctx)
	if !a.IsAuthenticated() {
		return enrolled, wished, nil
	}
	rctx := ctx.Request().Context()
	ids, err := api.enrollments.EnrolledCourseIDs(rctx, a.ID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "getting enrolled courses")
	}
	for _, id := range ids {
		enrolled[id] = true
	}
	if ids, err = api.enrollments.WishlistCourseIDs(rctx, a.ID); err != nil {
		return nil, nil, errors.Wrap(err, "getting wishlist")
	}
	for _, id := range ids {
		wished[id] = true
	}
	return enrolled, wished, nil
}

func (api *catalogApi) completedLessons(ctx echo.Context) (map[string]bool, error) {
	done := map[string]bool{}
	a := actor(ctx)
	if !a.IsStudent() {
		return done, nil
	}
	ids, err := api.enrollments.CompletedLessonIDs(ctx.Request().Context(), a.ID)
	if err != nil {
		return nil, errors.Wrap(err, "getting completed lessons")
	}
	for _, id := range ids {
		done[id] = true
	}
	return done, nil
}

// Courses

func (api *catalogApi) queryCourses(ctx echo.Context) error {
	filter := catalog.CourseFilter{
		InstructorID: ctx.QueryParam("instructor"),
		Category:     ctx.QueryParam("category"),
		Search:       ctx.QueryParam("search"),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, catalog.CourseOrderings...)

	courses, err := api.svc.ListCourses(ctx.Request().Context(), actor(ctx), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	enrolled, wished, err := api.courseFlags(ctx)
	if err != nil {
		return err
	}
	views := make([]CourseView, 0, len(courses))
	for _, c := range courses {
		views = append(views, CourseView{Course: c, IsEnrolled: enrolled[c.ID], IsInWishlist: wished[c.ID]})
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *catalogApi) retrieveCourse(ctx echo.Context) error {
	tree, err := api.svc.GetCourseTree(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	enrolled, wished, err := api.courseFlags(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CourseTreeView{
		CourseTree:   tree,
		IsEnrolled:   enrolled[tree.ID],
		IsInWishlist: wished[tree.ID],
	})
}

func (api *catalogApi) createCourse(ctx echo.Context) error {
	var data catalog.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	course, err := api.svc.CreateCourse(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (api *catalogApi) updateCourse(ctx echo.Context) error {
	var data catalog.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	course, err := api.svc.UpdateCourse(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *catalogApi) destroyCourse(ctx echo.Context) error {
	if err := api.svc.DeleteCourse(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Modules

func (api *catalogApi) queryModules(ctx echo.Context) error {
	modules, err := api.svc.ListModules(ctx.Request().Context(), actor(ctx), ctx.QueryParam("course"))
	if err != nil {
		return errors.Wrap(err, "listing modules")
	}
	if modules == nil {
		modules = []catalog.Module{}
	}
	return ctx.JSON(http.StatusOK, modules)
}

func (api *catalogApi) retrieveModule(ctx echo.Context) error {
	module, err := api.svc.GetModule(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting module")
	}
	return ctx.JSON(http.StatusOK, module)
}

func (api *catalogApi) createModule(ctx echo.Context) error {
	var data catalog.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	module, err := api.svc.CreateModule(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, module)
}

func (api *catalogApi) updateModule(ctx echo.Context) error {
	var data catalog.UpdateModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	module, err := api.svc.UpdateModule(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, module)
}

func (api *catalogApi) destroyModule(ctx echo.Context) error {
	if err := api.svc.DeleteModule(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Lessons

func (api *catalogApi) queryLessons(ctx echo.Context) error {
	lessons, err := api.svc.ListLessons(ctx.Request().Context(), actor(ctx), ctx.QueryParam("module"))
	if err != nil {
		return errors.Wrap(err, "listing lessons")
	}
	done, err := api.completedLessons(ctx)
	if err != nil {
		return err
	}
	views := make([]LessonView, 0, len(lessons))
	for _, l := range lessons {
		views = append(views, LessonView{Lesson: l, IsCompleted: done[l.ID]})
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *catalogApi) retrieveLesson(ctx echo.Context) error {
	lesson, err := api.svc.GetLesson(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting lesson")
	}
	done, err := api.completedLessons(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LessonView{Lesson: lesson, IsCompleted: done[lesson.ID]})
}

func (api *catalogApi) createLesson(ctx echo.Context) error {
	var data catalog.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	lesson, err := api.svc.CreateLesson(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, lesson)
}

func (api *catalogApi) updateLesson(ctx echo.Context) error {
	var data catalog.UpdateLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	lesson, err := api.svc.UpdateLesson(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, lesson)
}

func (api *catalogApi) destroyLesson(ctx echo.Context) error {
	if err := api.svc.DeleteLesson(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) completeLesson(ctx echo.Context) error {
	res, err := api.enrollments.CompleteLesson(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *catalogApi) uncompleteLesson(ctx echo.Context) error {
	res, err := api.enrollments.UncompleteLesson(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "uncompleting lesson")
	}
	return ctx.JSON(http.StatusOK, res)
}

// Assignments

func (api *catalogApi) queryAssignments(ctx echo.Context) error {
	assignments, err := api.svc.ListAssignments(ctx.Request().Context(), actor(ctx), ctx.QueryParam("module"))
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	if assignments == nil {
		assignments = []catalog.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *catalogApi) retrieveAssignment(ctx echo.Context) error {
	assignment, _, err := api.svc.GetAssignment(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, assignment)
}

func (api *catalogApi) createAssignment(ctx echo.Context) error {
	var data catalog.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	assignment, err := api.svc.CreateAssignment(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, assignment)
}

func (api *catalogApi) updateAssignment(ctx echo.Context) error {
	var data catalog.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	assignment, err := api.svc.UpdateAssignment(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, assignment)
}

func (api *catalogApi) destroyAssignment(ctx echo.Context) error {
	if err := api.svc.DeleteAssignment(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Quizzes

func (api *catalogApi) queryQuizzes(ctx echo.Context) error {
	quizzes, err := api.svc.ListQuizzes(ctx.Request().Context(), actor(ctx), ctx.QueryParam("module"))
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	if quizzes == nil {
		quizzes = []catalog.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *catalogApi) retrieveQuiz(ctx echo.Context) error {
	a := actor(ctx)
	quiz, course, err := api.svc.GetQuiz(ctx.Request().Context(), a, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	if course.ManageableBy(a) {
		return ctx.JSON(http.StatusOK, quiz)
	}
	return ctx.JSON(http.StatusOK, quiz.Public())
}

func (api *catalogApi) createQuiz(ctx echo.Context) error {
	var data catalog.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	quiz, err := api.svc.CreateQuiz(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, quiz)
}

func (api *catalogApi) updateQuiz(ctx echo.Context) error {
	var data catalog.UpdateQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	quiz, err := api.svc.UpdateQuiz(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, quiz)
}

func (api *catalogApi) destroyQuiz(ctx echo.Context) error {
	if err := api.svc.DeleteQuiz(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Question bank

func (api *catalogApi) queryBank(ctx echo.Context) error {
	filter := catalog.BankFilter{
		CourseID: ctx.QueryParam("course"),
		Search:   ctx.QueryParam("search"),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, catalog.BankOrderings...)

	entries, err := api.svc.ListBankEntries(ctx.Request().Context(), actor(ctx), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "listing question bank")
	}
	if entries == nil {
		entries = []catalog.BankEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *catalogApi) retrieveBankEntry(ctx echo.Context) error {
	entry, err := api.svc.GetBankEntry(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting question")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *catalogApi) createBankEntry(ctx echo.Context) error {
	var data catalog.NewBankEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBankEntry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	entry, err := api.svc.CreateBankEntry(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *catalogApi) updateBankEntry(ctx echo.Context) error {
	var data catalog.UpdateBankEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBankEntry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	entry, err := api.svc.UpdateBankEntry(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *catalogApi) destroyBankEntry(ctx echo.Context) error {
	if err := api.svc.DeleteBankEntry(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}
