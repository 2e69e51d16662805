package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
)

var (
	// errors
	ErrCourseNotFound     = core.NewNotFoundError("course")
	ErrModuleNotFound     = core.NewNotFoundError("module")
	ErrLessonNotFound     = core.NewNotFoundError("lesson")
	ErrAssignmentNotFound = core.NewNotFoundError("assignment")
	ErrQuizNotFound       = core.NewNotFoundError("quiz")
	ErrBankEntryNotFound  = core.NewNotFoundError("question")
	// ErrDuplicateOrder is returned by the store when an `order` is already taken among siblings.
	ErrDuplicateOrder = errors.New("this order is already used")
)

// Orderings
var (
	CourseOrderings = []string{"title", "category", "price", "status", "created_at", "updated_at"}
	BankOrderings   = []string{"title", "points", "created_at", "updated_at"}
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, filter CourseFilter, ordering ...core.DBOrdering) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		CreateModule(ctx context.Context, m Module) (Module, error)
		GetModule(ctx context.Context, id string) (Module, error)
		QueryModules(ctx context.Context, filter ContentFilter) ([]Module, error)
		UpdateModule(ctx context.Context, m Module) (Module, error)
		DeleteModule(ctx context.Context, id string) error

		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		QueryLessons(ctx context.Context, filter ContentFilter) ([]Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error
		// CountPublishedLessons counts the published lessons of all the course's modules.
		CountPublishedLessons(ctx context.Context, courseID string) (int, error)

		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		QueryAssignments(ctx context.Context, filter ContentFilter) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error

		// CreateQuiz stores the quiz with its questions & choices.
		CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		// GetQuiz returns the quiz with its questions (by order) & choices.
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		// QueryQuizzes returns quizzes without their questions.
		QueryQuizzes(ctx context.Context, filter ContentFilter) ([]Quiz, error)
		// UpdateQuiz updates the quiz and, when q.Questions is not nil, replaces all its questions.
		UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		DeleteQuiz(ctx context.Context, id string) error

		CreateBankEntry(ctx context.Context, e BankEntry) (BankEntry, error)
		GetBankEntry(ctx context.Context, id string) (BankEntry, error)
		QueryBankEntries(ctx context.Context, filter BankFilter, ordering ...core.DBOrdering) ([]BankEntry, error)
		UpdateBankEntry(ctx context.Context, e BankEntry) (BankEntry, error)
		DeleteBankEntry(ctx context.Context, id string) error
	}

	// EnrollmentLookup tells which courses a student is enrolled in.
	EnrollmentLookup interface {
		EnrolledCourseIDs(ctx context.Context, studentID string) ([]string, error)
	}

	Service struct {
		repo        Repository
		enrollments EnrollmentLookup
	}
)

func NewService(repo Repository, enrollments EnrollmentLookup) *Service {
	return &Service{repo: repo, enrollments: enrollments}
}

func (svc *Service) orderErr(err error, msg string) error {
	if errors.Cause(err) == ErrDuplicateOrder {
		return core.NewValidationError(err, core.FieldError{Field: "order", Error: err.Error()})
	}
	return errors.Wrap(err, msg)
}

// Courses

// ListCourses returns the courses visible to a, matching the filter.
func (svc *Service) ListCourses(ctx context.Context, a access.Actor, filter CourseFilter, ordering ...core.DBOrdering) ([]Course, error) {
	filter.Clean()
	if !access.Can(a, access.ViewAllContent) {
		filter.PublishedOnly = true
		if access.Can(a, access.AuthorCourses) {
			filter.OrOwnedBy = a.ID
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	courses, err := svc.repo.QueryCourses(ctx, filter, core.AllowedOrderings(ordering, CourseOrderings...)...)
	return courses, errors.Wrap(err, "querying courses")
}

// GetCourse returns the course if a can see it.
func (svc *Service) GetCourse(ctx context.Context, a access.Actor, id string) (Course, error) {
	course, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !course.VisibleTo(a) {
		return Course{}, ErrCourseNotFound
	}
	return course, nil
}

// OwnedCourseIDs returns the IDs of the courses taught by instructorID.
func (svc *Service) OwnedCourseIDs(ctx context.Context, instructorID string) ([]string, error) {
	courses, err := svc.repo.QueryCourses(ctx, CourseFilter{InstructorID: instructorID})
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// GetCourseTree returns the course with its modules, lessons, assignments and quizzes.
func (svc *Service) GetCourseTree(ctx context.Context, a access.Actor, id string) (CourseTree, error) {
	course, err := svc.GetCourse(ctx, a, id)
	if err != nil {
		return CourseTree{}, err
	}

	courseFilter := ContentFilter{CourseID: course.ID}
	modules, err := svc.repo.QueryModules(ctx, courseFilter)
	if err != nil {
		return CourseTree{}, errors.Wrap(err, "querying modules")
	}
	lessonFilter := courseFilter
	lessonFilter.PublishedOnly = !svc.seesUnpublished(a, course)
	lessons, err := svc.repo.QueryLessons(ctx, lessonFilter)
	if err != nil {
		return CourseTree{}, errors.Wrap(err, "querying lessons")
	}
	assignments, err := svc.repo.QueryAssignments(ctx, courseFilter)
	if err != nil {
		return CourseTree{}, errors.Wrap(err, "querying assignments")
	}
	quizzes, err := svc.repo.QueryQuizzes(ctx, courseFilter)
	if err != nil {
		return CourseTree{}, errors.Wrap(err, "querying quizzes")
	}

	tree := CourseTree{Course: course, Modules: make([]ModuleTree, 0, len(modules))}
	idx := make(map[string]int, len(modules))
	for i, m := range modules {
		idx[m.ID] = i
		tree.Modules = append(tree.Modules, ModuleTree{
			Module:      m,
			Lessons:     []Lesson{},
			Assignments: []Assignment{},
			Quizzes:     []Quiz{},
		})
	}
	for _, l := range lessons {
		if i, ok := idx[l.ModuleID]; ok {
			tree.Modules[i].Lessons = append(tree.Modules[i].Lessons, l)
		}
	}
	for _, as := range assignments {
		if i, ok := idx[as.ModuleID]; ok {
			tree.Modules[i].Assignments = append(tree.Modules[i].Assignments, as)
		}
	}
	for _, q := range quizzes {
		if i, ok := idx[q.ModuleID]; ok {
			tree.Modules[i].Quizzes = append(tree.Modules[i].Quizzes, q)
		}
	}
	return tree, nil
}

func (svc *Service) CreateCourse(ctx context.Context, a access.Actor, nc NewCourse) (Course, error) {
	if err := access.Require(a, access.AuthorCourses, "Only instructors can create courses."); err != nil {
		return Course{}, err
	}
	now := time.Now().UTC()
	course, err := svc.repo.CreateCourse(ctx, Course{
		ID:             uuid.New().String(),
		InstructorID:   a.ID,
		Title:          nc.Title,
		Description:    nc.Description,
		Category:       nc.Category,
		Status:         nc.Status,
		Price:          nc.Price,
		EstimatedHours: nc.EstimatedHours,
		Prerequisites:  nc.Prerequisites,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	return course, errors.Wrap(err, "creating course")
}

func (svc *Service) UpdateCourse(ctx context.Context, a access.Actor, id string, uc UpdateCourse) (Course, error) {
	course, err := svc.GetCourse(ctx, a, id)
	if err != nil {
		return Course{}, err
	}
	if !course.ManageableBy(a) {
		return Course{}, core.NewPermissionError("You do not have permission to modify this course.")
	}
	uc.apply(&course)
	course.UpdatedAt = time.Now().UTC()
	course, err = svc.repo.UpdateCourse(ctx, course)
	return course, errors.Wrap(err, "updating course")
}

func (svc *Service) DeleteCourse(ctx context.Context, a access.Actor, id string) error {
	course, err := svc.GetCourse(ctx, a, id)
	if err != nil {
		return err
	}
	if !course.ManageableBy(a) {
		return core.NewPermissionError("You do not have permission to delete this course.")
	}
	return errors.Wrap(svc.repo.DeleteCourse(ctx, course.ID), "deleting course")
}

// content helpers

// ModuleCourse returns the module and the course it belongs to, without visibility checks.
func (svc *Service) ModuleCourse(ctx context.Context, moduleID string) (Module, Course, error) {
	module, err := svc.repo.GetModule(ctx, moduleID)
	if err != nil {
		return Module{}, Course{}, err
	}
	course, err := svc.repo.GetCourse(ctx, module.CourseID)
	if err != nil {
		return Module{}, Course{}, errors.Wrap(err, "getting module course")
	}
	return module, course, nil
}

// seesUnpublished reports whether a may see the unpublished lessons of the course.
func (svc *Service) seesUnpublished(a access.Actor, course Course) bool {
	return course.ManageableBy(a) || access.Can(a, access.BrowseUnpublished)
}

// visibleCourseIDs returns nil when a sees every course.
func (svc *Service) visibleCourseIDs(ctx context.Context, a access.Actor) ([]string, error) {
	if access.Can(a, access.ViewAllContent) {
		return nil, nil
	}
	courses, err := svc.ListCourses(ctx, a, CourseFilter{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// workCourseIDs scopes assignments & quizzes: students only see those of the courses they are
// enrolled in, others those of the courses visible to them. nil means unscoped.
func (svc *Service) workCourseIDs(ctx context.Context, a access.Actor) ([]string, error) {
	if a.IsStudent() {
		ids, err := svc.enrollments.EnrolledCourseIDs(ctx, a.ID)
		if err != nil {
			return nil, errors.Wrap(err, "getting enrolled courses")
		}
		if ids == nil {
			ids = []string{}
		}
		return ids, nil
	}
	return svc.visibleCourseIDs(ctx, a)
}

func (svc *Service) canSeeWork(ctx context.Context, a access.Actor, course Course) (bool, error) {
	ids, err := svc.workCourseIDs(ctx, a)
	if err != nil {
		return false, err
	}
	return ids == nil || contains(ids, course.ID), nil
}

// Modules

func (svc *Service) ListModules(ctx context.Context, a access.Actor, courseID string) ([]Module, error) {
	ids, err := svc.visibleCourseIDs(ctx, a)
	if err != nil {
		return nil, err
	}
	modules, err := svc.repo.QueryModules(ctx, ContentFilter{CourseIDs: ids, CourseID: courseID})
	return modules, errors.Wrap(err, "querying modules")
}

func (svc *Service) GetModule(ctx context.Context, a access.Actor, id string) (Module, error) {
	module, course, err := svc.ModuleCourse(ctx, id)
	if err != nil {
		return Module{}, err
	}
	if !course.VisibleTo(a) {
		return Module{}, ErrModuleNotFound
	}
	return module, nil
}

func (svc *Service) CreateModule(ctx context.Context, a access.Actor, nm NewModule) (Module, error) {
	course, err := svc.GetCourse(ctx, a, nm.CourseID)
	if err != nil {
		if core.IsNotFound(err) {
			return Module{}, core.NewFieldError("course_id", err.Error())
		}
		return Module{}, err
	}
	if !course.ManageableBy(a) {
		return Module{}, core.NewPermissionError("You do not have permission to add modules to this course.")
	}
	if nm.Order == 0 {
		siblings, err := svc.repo.QueryModules(ctx, ContentFilter{CourseID: course.ID})
		if err != nil {
			return Module{}, errors.Wrap(err, "querying modules")
		}
		nm.Order = nextOrder(len(siblings), func(i int) int { return siblings[i].Order })
	}
	now := time.Now().UTC()
	module, err := svc.repo.CreateModule(ctx, Module{
		ID:          uuid.New().String(),
		CourseID:    course.ID,
		Title:       core.CleanString(nm.Title),
		Description: nm.Description,
		Order:       nm.Order,
		ReleaseDate: nm.ReleaseDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Module{}, svc.orderErr(err, "creating module")
	}
	return module, nil
}

func (svc *Service) UpdateModule(ctx context.Context, a access.Actor, id string, um UpdateModule) (Module, error) {
	module, course, err := svc.ModuleCourse(ctx, id)
	if err != nil {
		return Module{}, err
	}
	if !course.VisibleTo(a) {
		return Module{}, ErrModuleNotFound
	}
	if !course.ManageableBy(a) {
		return Module{}, core.NewPermissionError("You do not have permission to modify this module.")
	}
	um.apply(&module)
	module.UpdatedAt = time.Now().UTC()
	if module, err = svc.repo.UpdateModule(ctx, module); err != nil {
		return Module{}, svc.orderErr(err, "updating module")
	}
	return module, nil
}

func (svc *Service) DeleteModule(ctx context.Context, a access.Actor, id string) error {
	module, course, err := svc.ModuleCourse(ctx, id)
	if err != nil {
		return err
	}
	if !course.VisibleTo(a) {
		return ErrModuleNotFound
	}
	if !course.ManageableBy(a) {
		return core.NewPermissionError("You do not have permission to delete this module.")
	}
	return errors.Wrap(svc.repo.DeleteModule(ctx, module.ID), "deleting module")
}

// Lessons

// LessonCourse returns the lesson and the course it belongs to, if a can see the lesson.
func (svc *Service) LessonCourse(ctx context.Context, a access.Actor, lessonID string) (Lesson, Course, error) {
	lesson, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return Lesson{}, Course{}, err
	}
	_, course, err := svc.ModuleCourse(ctx, lesson.ModuleID)
	if err != nil {
		return Lesson{}, Course{}, err
	}
	if !course.VisibleTo(a) || (!lesson.IsPublished && !svc.seesUnpublished(a, course)) {
		return Lesson{}, Course{}, ErrLessonNotFound
	}
	return lesson, course, nil
}

func (svc *Service) ListLessons(ctx context.Context, a access.Actor, moduleID string) ([]Lesson, error) {
	ids, err := svc.visibleCourseIDs(ctx, a)
	if err != nil {
		return nil, err
	}
	filter := ContentFilter{CourseIDs: ids, ModuleID: moduleID, PublishedOnly: !access.Can(a, access.BrowseUnpublished)}
	lessons, err := svc.repo.QueryLessons(ctx, filter)
	return lessons, errors.Wrap(err, "querying lessons")
}

func (svc *Service) GetLesson(ctx context.Context, a access.Actor, id string) (Lesson, error) {
	lesson, _, err := svc.LessonCourse(ctx, a, id)
	return lesson, err
}

// CountPublishedLessons counts the published lessons of the course.
func (svc *Service) CountPublishedLessons(ctx context.Context, courseID string) (int, error) {
	n, err := svc.repo.CountPublishedLessons(ctx, courseID)
	return n, errors.Wrap(err, "counting published lessons")
}

func (svc *Service) CreateLesson(ctx context.Context, a access.Actor, nl NewLesson) (Lesson, error) {
	module, course, err := svc.ModuleCourse(ctx, nl.ModuleID)
	if err != nil || !course.VisibleTo(a) {
		if err == nil || core.IsNotFound(err) {
			return Lesson{}, core.NewFieldError("module_id", ErrModuleNotFound.Error())
		}
		return Lesson{}, err
	}
	if !course.ManageableBy(a) {
		return Lesson{}, core.NewPermissionError("You do not have permission to add lessons to this module.")
	}
	if nl.Order == 0 {
		siblings, err := svc.repo.QueryLessons(ctx, ContentFilter{ModuleID: module.ID})
		if err != nil {
			return Lesson{}, errors.Wrap(err, "querying lessons")
		}
		nl.Order = nextOrder(len(siblings), func(i int) int { return siblings[i].Order })
	}
	now := time.Now().UTC()
	lesson := Lesson{
		ID:              uuid.New().String(),
		ModuleID:        module.ID,
		Title:           core.CleanString(nl.Title),
		Overview:        nl.Overview,
		Content:         nl.Content,
		VideoURL:        nl.VideoURL,
		ResourceLink:    nl.ResourceLink,
		Order:           nl.Order,
		DurationMinutes: nl.DurationMinutes,
		IsPublished:     true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if nl.IsPublished != nil {
		lesson.IsPublished = *nl.IsPublished
	}
	if lesson, err = svc.repo.CreateLesson(ctx, lesson); err != nil {
		return Lesson{}, svc.orderErr(err, "creating lesson")
	}
	return lesson, nil
}

func (svc *Service) UpdateLesson(ctx context.Context, a access.Actor, id string, ul UpdateLesson) (Lesson, error) {
	lesson, course, err := svc.LessonCourse(ctx, a, id)
	if err != nil {
		return Lesson{}, err
	}
	if !course.ManageableBy(a) {
		return Lesson{}, core.NewPermissionError("You do not have permission to modify this lesson.")
	}
	ul.apply(&lesson)
	lesson.UpdatedAt = time.Now().UTC()
	if lesson, err = svc.repo.UpdateLesson(ctx, lesson); err != nil {
		return Lesson{}, svc.orderErr(err, "updating lesson")
	}
	return lesson, nil
}

func (svc *Service) DeleteLesson(ctx context.Context, a access.Actor, id string) error {
	lesson, course, err := svc.LessonCourse(ctx, a, id)
	if err != nil {
		return err
	}
	if !course.ManageableBy(a) {
		return core.NewPermissionError("You do not have permission to delete this lesson.")
	}
	return errors.Wrap(svc.repo.DeleteLesson(ctx, lesson.ID), "deleting lesson")
}

// Assignments

// AssignmentCourse returns the assignment and its course, without visibility checks.
func (svc *Service) AssignmentCourse(ctx context.Context, assignmentID string) (Assignment, Course, error) {
	assignment, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, Course{}, err
	}
	_, course, err := svc.ModuleCourse(ctx, assignment.ModuleID)
	if err != nil {
		return Assignment{}, Course{}, err
	}
	return assignment, course, nil
}

func (svc *Service) ListAssignments(ctx context.Context, a access.Actor, moduleID string) ([]Assignment, error) {
	ids, err := svc.workCourseIDs(ctx, a)
	if err != nil {
		return nil, err
	}
	assignments, err := svc.repo.QueryAssignments(ctx, ContentFilter{CourseIDs: ids, ModuleID: moduleID})
	return assignments, errors.Wrap(err, "querying assignments")
}

func (svc *Service) GetAssignment(ctx context.Context, a access.Actor, id string) (Assignment, Course, error) {
	assignment, course, err := svc.AssignmentCourse(ctx, id)
	if err != nil {
		return Assignment{}, Course{}, err
	}
	ok, err := svc.canSeeWork(ctx, a, course)
	if err != nil {
		return Assignment{}, Course{}, err
	}
	if !ok {
		return Assignment{}, Course{}, ErrAssignmentNotFound
	}
	return assignment, course, nil
}

func (svc *Service) CreateAssignment(ctx context.Context, a access.Actor, na NewAssignment) (Assignment, error) {
	module, course, err := svc.ModuleCourse(ctx, na.ModuleID)
	if err != nil || !course.VisibleTo(a) {
		if err == nil || core.IsNotFound(err) {
			return Assignment{}, core.NewFieldError("module_id", ErrModuleNotFound.Error())
		}
		return Assignment{}, err
	}
	if !course.ManageableBy(a) {
		return Assignment{}, core.NewPermissionError("You do not have permission to add assignments to this module.")
	}
	now := time.Now().UTC()
	assignment := Assignment{
		ID:                uuid.New().String(),
		ModuleID:          module.ID,
		Title:             core.CleanString(na.Title),
		Instructions:      na.Instructions,
		DueDate:           utcTime(na.DueDate),
		MaxPoints:         100,
		AllowResubmission: na.AllowResubmission,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if na.MaxPoints != nil {
		assignment.MaxPoints = *na.MaxPoints
	}
	assignment, err = svc.repo.CreateAssignment(ctx, assignment)
	return assignment, errors.Wrap(err, "creating assignment")
}

func (svc *Service) UpdateAssignment(ctx context.Context, a access.Actor, id string, ua UpdateAssignment) (Assignment, error) {
	assignment, course, err := svc.GetAssignment(ctx, a, id)
	if err != nil {
		return Assignment{}, err
	}
	if !course.ManageableBy(a) {
		return Assignment{}, core.NewPermissionError("You do not have permission to modify this assignment.")
	}
	ua.apply(&assignment)
	assignment.DueDate = utcTime(assignment.DueDate)
	assignment.UpdatedAt = time.Now().UTC()
	assignment, err = svc.repo.UpdateAssignment(ctx, assignment)
	return assignment, errors.Wrap(err, "updating assignment")
}

func (svc *Service) DeleteAssignment(ctx context.Context, a access.Actor, id string) error {
	assignment, course, err := svc.GetAssignment(ctx, a, id)
	if err != nil {
		return err
	}
	if !course.ManageableBy(a) {
		return core.NewPermissionError("You do not have permission to delete this assignment.")
	}
	return errors.Wrap(svc.repo.DeleteAssignment(ctx, assignment.ID), "deleting assignment")
}

// Quizzes

// QuizCourse returns the quiz (with questions & choices) and its course, without visibility checks.
func (svc *Service) QuizCourse(ctx context.Context, quizID string) (Quiz, Course, error) {
	quiz, err := svc.repo.GetQuiz(ctx, quizID)
	if err != nil {
		return Quiz{}, Course{}, err
	}
	_, course, err := svc.ModuleCourse(ctx, quiz.ModuleID)
	if err != nil {
		return Quiz{}, Course{}, err
	}
	return quiz, course, nil
}

func (svc *Service) ListQuizzes(ctx context.Context, a access.Actor, moduleID string) ([]Quiz, error) {
	ids, err := svc.workCourseIDs(ctx, a)
	if err != nil {
		return nil, err
	}
	quizzes, err := svc.repo.QueryQuizzes(ctx, ContentFilter{CourseIDs: ids, ModuleID: moduleID})
	return quizzes, errors.Wrap(err, "querying quizzes")
}

func (svc *Service) GetQuiz(ctx context.Context, a access.Actor, id string) (Quiz, Course, error) {
	quiz, course, err := svc.QuizCourse(ctx, id)
	if err != nil {
		return Quiz{}, Course{}, err
	}
	ok, err := svc.canSeeWork(ctx, a, course)
	if err != nil {
		return Quiz{}, Course{}, err
	}
	if !ok {
		return Quiz{}, Course{}, ErrQuizNotFound
	}
	return quiz, course, nil
}

func (svc *Service) CreateQuiz(ctx context.Context, a access.Actor, nq NewQuiz) (Quiz, error) {
	module, course, err := svc.ModuleCourse(ctx, nq.ModuleID)
	if err != nil || !course.VisibleTo(a) {
		if err == nil || core.IsNotFound(err) {
			return Quiz{}, core.NewFieldError("module_id", ErrModuleNotFound.Error())
		}
		return Quiz{}, err
	}
	if !course.ManageableBy(a) {
		return Quiz{}, core.NewPermissionError("You do not have permission to add quizzes to this module.")
	}

	now := time.Now().UTC()
	quiz := Quiz{
		ID:               uuid.New().String(),
		ModuleID:         module.ID,
		Title:            core.CleanString(nq.Title),
		Description:      nq.Description,
		TimeLimitMinutes: nq.TimeLimitMinutes,
		AttemptsAllowed:  1,
		PassingScore:     70,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if nq.AttemptsAllowed != nil {
		quiz.AttemptsAllowed = *nq.AttemptsAllowed
	}
	if nq.PassingScore != nil {
		quiz.PassingScore = *nq.PassingScore
	}
	if quiz.Questions, err = buildQuestions(quiz.ID, nq.Questions); err != nil {
		return Quiz{}, err
	}
	quiz, err = svc.repo.CreateQuiz(ctx, quiz)
	return quiz, errors.Wrap(err, "creating quiz")
}

func (svc *Service) UpdateQuiz(ctx context.Context, a access.Actor, id string, uq UpdateQuiz) (Quiz, error) {
	quiz, course, err := svc.GetQuiz(ctx, a, id)
	if err != nil {
		return Quiz{}, err
	}
	if !course.ManageableBy(a) {
		return Quiz{}, core.NewPermissionError("You do not have permission to modify this quiz.")
	}
	uq.apply(&quiz)
	quiz.UpdatedAt = time.Now().UTC()
	if len(uq.Questions) > 0 {
		if quiz.Questions, err = buildQuestions(quiz.ID, uq.Questions); err != nil {
			return Quiz{}, err
		}
	} else {
		quiz.Questions = nil // keep the stored ones
	}
	quiz, err = svc.repo.UpdateQuiz(ctx, quiz)
	return quiz, errors.Wrap(err, "updating quiz")
}

func (svc *Service) DeleteQuiz(ctx context.Context, a access.Actor, id string) error {
	quiz, course, err := svc.GetQuiz(ctx, a, id)
	if err != nil {
		return err
	}
	if !course.ManageableBy(a) {
		return core.NewPermissionError("You do not have permission to delete this quiz.")
	}
	return errors.Wrap(svc.repo.DeleteQuiz(ctx, quiz.ID), "deleting quiz")
}

// buildQuestions turns the quiz payload into questions. Missing orders follow the payload order.
func buildQuestions(quizID string, nqs []NewQuestion) ([]Question, error) {
	questions := make([]Question, 0, len(nqs))
	seen := make(map[int]bool, len(nqs))
	for i, nq := range nqs {
		qn := Question{
			ID:      uuid.New().String(),
			QuizID:  quizID,
			Prompt:  nq.Prompt,
			Type:    nq.Type,
			Order:   nq.Order,
			Points:  1,
			Choices: make([]Choice, 0, len(nq.Choices)),
		}
		if qn.Order == 0 {
			qn.Order = i + 1
		}
		if seen[qn.Order] {
			msg := fmt.Sprintf("question order %d is used more than once", qn.Order)
			return nil, core.NewFieldError("questions", msg)
		}
		seen[qn.Order] = true
		if nq.Points != nil {
			qn.Points = *nq.Points
		}
		for _, nc := range nq.Choices {
			qn.Choices = append(qn.Choices, Choice{
				ID:         uuid.New().String(),
				QuestionID: qn.ID,
				Text:       nc.Text,
				IsCorrect:  nc.IsCorrect,
			})
		}
		questions = append(questions, qn)
	}
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].Order < questions[j].Order })
	return questions, nil
}

// Question bank

func (svc *Service) checkBankCourse(ctx context.Context, a access.Actor, courseID null.String, msg string) error {
	if !courseID.Valid {
		return nil
	}
	course, err := svc.repo.GetCourse(ctx, courseID.String)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("course_id", err.Error())
		}
		return errors.Wrap(err, "getting course")
	}
	if !course.ManageableBy(a) {
		return core.NewPermissionError(msg)
	}
	return nil
}

func (svc *Service) ListBankEntries(ctx context.Context, a access.Actor, filter BankFilter, ordering ...core.DBOrdering) ([]BankEntry, error) {
	filter.Search = core.CleanString(filter.Search)
	if !access.Can(a, access.ViewAllContent) {
		filter.OwnerID = a.ID
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "updated_at"}}
	}
	entries, err := svc.repo.QueryBankEntries(ctx, filter, core.AllowedOrderings(ordering, BankOrderings...)...)
	return entries, errors.Wrap(err, "querying question bank")
}

func (svc *Service) GetBankEntry(ctx context.Context, a access.Actor, id string) (BankEntry, error) {
	entry, err := svc.repo.GetBankEntry(ctx, id)
	if err != nil {
		return BankEntry{}, err
	}
	if !access.IsOwnerOrAdmin(a, entry.OwnerID) {
		return BankEntry{}, ErrBankEntryNotFound
	}
	return entry, nil
}

func (svc *Service) CreateBankEntry(ctx context.Context, a access.Actor, nb NewBankEntry) (BankEntry, error) {
	if err := access.Require(a, access.AuthorCourses, "Only instructors can save questions."); err != nil {
		return BankEntry{}, err
	}
	courseID := null.NewString(nb.CourseID, nb.CourseID != "")
	if err := svc.checkBankCourse(ctx, a, courseID, "You do not have permission to save questions for this course."); err != nil {
		return BankEntry{}, err
	}
	now := time.Now().UTC()
	entry := BankEntry{
		ID:        uuid.New().String(),
		OwnerID:   a.ID,
		CourseID:  courseID,
		Title:     core.CleanString(nb.Title),
		Prompt:    nb.Prompt,
		Type:      nb.Type,
		Points:    1,
		Choices:   nb.Choices,
		Tags:      nb.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nb.Points != nil {
		entry.Points = *nb.Points
	}
	if entry.Choices == nil {
		entry.Choices = BankChoices{}
	}
	entry, err := svc.repo.CreateBankEntry(ctx, entry)
	return entry, errors.Wrap(err, "creating question")
}

func (svc *Service) UpdateBankEntry(ctx context.Context, a access.Actor, id string, ub UpdateBankEntry) (BankEntry, error) {
	entry, err := svc.GetBankEntry(ctx, a, id)
	if err != nil {
		return BankEntry{}, err
	}
	ub.apply(&entry)
	if err = validateBankEntry(entry); err != nil {
		return BankEntry{}, err
	}
	if err = svc.checkBankCourse(ctx, a, entry.CourseID, "You do not have permission to assign this course."); err != nil {
		return BankEntry{}, err
	}
	entry.UpdatedAt = time.Now().UTC()
	entry, err = svc.repo.UpdateBankEntry(ctx, entry)
	return entry, errors.Wrap(err, "updating question")
}

func (svc *Service) DeleteBankEntry(ctx context.Context, a access.Actor, id string) error {
	entry, err := svc.GetBankEntry(ctx, a, id)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteBankEntry(ctx, entry.ID), "deleting question")
}

// nextOrder returns the order following the highest of n siblings.
func nextOrder(n int, order func(i int) int) int {
	max := 0
	for i := 0; i < n; i++ {
		if o := order(i); o > max {
			max = o
		}
	}
	return max + 1
}

func utcTime(t null.Time) null.Time {
	if t.Valid {
		t.Time = t.Time.UTC()
	}
	return t
}
