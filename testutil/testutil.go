// Package testutil wires the services on the in-memory store and creates fixtures for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/assets"
	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/analytics"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/enrollment"
	"github.com/trezcool/somesha/core/grading"
	"github.com/trezcool/somesha/core/integration"
	"github.com/trezcool/somesha/core/messaging"
	"github.com/trezcool/somesha/core/user"
	cachesvc "github.com/trezcool/somesha/services/cache"
	emailsvc "github.com/trezcool/somesha/services/email"
	eventsvc "github.com/trezcool/somesha/services/events"
	logsvc "github.com/trezcool/somesha/services/logger"
	inmemdb "github.com/trezcool/somesha/storage/database/inmem"
)

// Password satisfies the password policy.
const Password = "Xy7#kLm9!qWz"

type Env struct {
	Conf   *core.Config
	Logger core.Logger
	DB     *inmemdb.DB

	UserRepo        user.Repository
	CatalogRepo     catalog.Repository
	EnrollmentRepo  enrollment.Repository
	GradingRepo     grading.Repository
	MessagingRepo   messaging.Repository
	IntegrationRepo integration.Repository

	Mail   *emailsvc.ConsoleService
	Events *eventsvc.Recorder
	Cache  *cachesvc.MemoryCache

	UserSvc        *user.Service
	CatalogSvc     *catalog.Service
	EnrollmentSvc  *enrollment.Service
	GradingSvc     *grading.Service
	MessagingSvc   *messaging.Service
	IntegrationSvc *integration.Service
	AnalyticsSvc   *analytics.Service
}

// NewEnv returns the services backed by a fresh in-memory store.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	db := inmemdb.NewDB()
	core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, true, logger)

	env := &Env{
		Conf:            conf,
		Logger:          logger,
		DB:              db,
		UserRepo:        inmemdb.NewUserRepository(db),
		CatalogRepo:     inmemdb.NewCatalogRepository(db),
		EnrollmentRepo:  inmemdb.NewEnrollmentRepository(db),
		GradingRepo:     inmemdb.NewGradingRepository(db),
		MessagingRepo:   inmemdb.NewMessagingRepository(db),
		IntegrationRepo: inmemdb.NewIntegrationRepository(db),
		Mail:            emailsvc.NewConsoleServiceMock(conf, logger),
		Events:          eventsvc.NewRecorder(),
		Cache:           cachesvc.NewMemoryCache(),
	}

	env.UserSvc = user.NewService(env.UserRepo, env.Mail, conf)
	env.CatalogSvc = catalog.NewService(env.CatalogRepo, env.EnrollmentRepo)
	env.EnrollmentSvc = enrollment.NewService(env.EnrollmentRepo, env.CatalogSvc, env.Events, logger)
	env.GradingSvc = grading.NewService(env.GradingRepo, env.CatalogSvc, env.UserSvc, env.Mail, env.Events, logger)
	env.MessagingSvc = messaging.NewService(env.MessagingRepo, env.CatalogSvc, env.EnrollmentSvc, env.Events, logger)
	env.IntegrationSvc = integration.NewService(env.IntegrationRepo, env.CatalogSvc, env.EnrollmentSvc)
	env.AnalyticsSvc = analytics.NewService(inmemdb.NewAnalyticsSource(db), env.UserSvc, env.Cache, time.Minute, logger)
	return env
}

// Fixtures

func CreateUser(t *testing.T, repo user.Repository, name, uname, email string, role user.Role, isActive bool, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) Student(t *testing.T, uname string) user.User {
	return CreateUser(t, env.UserRepo, "Student "+uname, uname, uname+"@test.cd", user.RoleStudent, true)
}

func (env *Env) Instructor(t *testing.T, uname string) user.User {
	return CreateUser(t, env.UserRepo, "Instructor "+uname, uname, uname+"@test.cd", user.RoleInstructor, true)
}

func (env *Env) Admin(t *testing.T, uname string) user.User {
	return CreateUser(t, env.UserRepo, "Admin "+uname, uname, uname+"@test.cd", user.RoleAdmin, true)
}

func CreateCourse(t *testing.T, repo catalog.Repository, instructor user.User, title string, status catalog.CourseStatus, price float64) catalog.Course {
	t.Helper()
	now := time.Now().UTC()
	c, err := repo.CreateCourse(context.Background(), catalog.Course{
		ID:           uuid.New().String(),
		InstructorID: instructor.ID,
		Title:        title,
		Description:  title + " description",
		Category:     "Programming",
		Status:       status,
		Price:        price,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

func CreateModule(t *testing.T, repo catalog.Repository, course catalog.Course, order int) catalog.Module {
	t.Helper()
	now := time.Now().UTC()
	m, err := repo.CreateModule(context.Background(), catalog.Module{
		ID:        uuid.New().String(),
		CourseID:  course.ID,
		Title:     "Module",
		Order:     order,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return m
}

func CreateLesson(t *testing.T, repo catalog.Repository, module catalog.Module, order int, published bool) catalog.Lesson {
	t.Helper()
	now := time.Now().UTC()
	l, err := repo.CreateLesson(context.Background(), catalog.Lesson{
		ID:          uuid.New().String(),
		ModuleID:    module.ID,
		Title:       "Lesson",
		Order:       order,
		IsPublished: published,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return l
}

func CreateAssignment(t *testing.T, repo catalog.Repository, module catalog.Module, dueDate null.Time) catalog.Assignment {
	t.Helper()
	now := time.Now().UTC()
	a, err := repo.CreateAssignment(context.Background(), catalog.Assignment{
		ID:        uuid.New().String(),
		ModuleID:  module.ID,
		Title:     "Assignment",
		DueDate:   dueDate,
		MaxPoints: 100,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}

// QuestionSpec describes a question: selectable questions get one correct and one wrong choice.
type QuestionSpec struct {
	Type   catalog.QuestionType
	Points int
}

// CreateQuiz creates a quiz with the given questions; see CorrectChoice & WrongChoice.
func CreateQuiz(t *testing.T, repo catalog.Repository, module catalog.Module, attempts, passing int, specs ...QuestionSpec) catalog.Quiz {
	t.Helper()
	now := time.Now().UTC()
	q := catalog.Quiz{
		ID:              uuid.New().String(),
		ModuleID:        module.ID,
		Title:           "Quiz",
		AttemptsAllowed: attempts,
		PassingScore:    passing,
		CreatedAt:       now,
		UpdatedAt:       now,
		Questions:       make([]catalog.Question, 0, len(specs)),
	}
	for i, spec := range specs {
		qn := catalog.Question{
			ID:     uuid.New().String(),
			QuizID: q.ID,
			Prompt: "Question",
			Type:   spec.Type,
			Order:  i + 1,
			Points: spec.Points,
		}
		if spec.Type.Selectable() {
			qn.Choices = []catalog.Choice{
				{ID: uuid.New().String(), QuestionID: qn.ID, Text: "right", IsCorrect: true},
				{ID: uuid.New().String(), QuestionID: qn.ID, Text: "wrong"},
			}
		}
		q.Questions = append(q.Questions, qn)
	}
	q, err := repo.CreateQuiz(context.Background(), q)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return q
}

// CorrectChoice returns the ID of the question's correct choice.
func CorrectChoice(qn catalog.Question) *string {
	for _, c := range qn.Choices {
		if c.IsCorrect {
			id := c.ID
			return &id
		}
	}
	return nil
}

// WrongChoice returns the ID of one of the question's incorrect choices.
func WrongChoice(qn catalog.Question) *string {
	for _, c := range qn.Choices {
		if !c.IsCorrect {
			id := c.ID
			return &id
		}
	}
	return nil
}

func Enroll(t *testing.T, repo enrollment.Repository, student user.User, course catalog.Course) enrollment.Enrollment {
	t.Helper()
	e, err := repo.CreateEnrollment(context.Background(), enrollment.Enrollment{
		ID:         uuid.New().String(),
		StudentID:  student.ID,
		CourseID:   course.ID,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return e
}
