package sqlxrepos_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/enrollment"
	"github.com/trezcool/somesha/core/grading"
	"github.com/trezcool/somesha/core/user"
	emailsvc "github.com/trezcool/somesha/services/email"
	eventsvc "github.com/trezcool/somesha/services/events"
	logsvc "github.com/trezcool/somesha/services/logger"
	"github.com/trezcool/somesha/storage/database"
	sqlxrepos "github.com/trezcool/somesha/storage/database/sqlx"
	"github.com/trezcool/somesha/testutil"
)

var tables = []string{
	"zoom_meetings", "course_integrations", "lms_integrations",
	"message_reads", "messages", "participants", "conversations",
	"answers", "quiz_submissions", "assignment_submissions",
	"wishlist", "lesson_progress", "enrollments",
	"bank_entries", "choices", "questions", "quizzes", "assignments", "lessons", "modules", "courses",
	"users",
}

// prepareDB connects to $TEST_DATABASE_URL, migrates it and empties every table.
func prepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB, "up"))
	_, err = db.Exec("TRUNCATE " + strings.Join(tables, ", ") + " CASCADE")
	require.NoError(t, err)
	return db
}

type services struct {
	users      user.Repository
	catalog    catalog.Repository
	enrollment enrollment.Repository
	grading    grading.Repository

	userSvc       *user.Service
	catalogSvc    *catalog.Service
	enrollmentSvc *enrollment.Service
	gradingSvc    *grading.Service
}

func newServices(t *testing.T) services {
	db := prepareDB(t)
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	mail := emailsvc.NewConsoleServiceMock(conf, logger)
	events := eventsvc.NewRecorder()

	s := services{
		users:      sqlxrepos.NewUserRepository(db),
		catalog:    sqlxrepos.NewCatalogRepository(db),
		enrollment: sqlxrepos.NewEnrollmentRepository(db),
		grading:    sqlxrepos.NewGradingRepository(db),
	}
	s.userSvc = user.NewService(s.users, mail, conf)
	s.catalogSvc = catalog.NewService(s.catalog, s.enrollment)
	s.enrollmentSvc = enrollment.NewService(s.enrollment, s.catalogSvc, events, logger)
	s.gradingSvc = grading.NewService(s.grading, s.catalogSvc, s.userSvc, mail, events, logger)
	return s
}

func TestUserRepository_uniqueness(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)
	awe := testutil.CreateUser(t, s.users, "Awe", "awe", "awe@test.cd", user.RoleStudent, true)

	assert.Equal(t, user.ErrUsernameExists, s.users.CheckUniqueness(ctx, "awe", "other@test.cd"))
	assert.Equal(t, user.ErrEmailExists, s.users.CheckUniqueness(ctx, "other", "awe@test.cd"))
	assert.NoError(t, s.users.CheckUniqueness(ctx, "awe", "awe@test.cd", awe.ID))

	got, err := s.userSvc.GetByUsernameOrEmail(ctx, " AWE@test.cd ")
	require.NoError(t, err)
	assert.Equal(t, awe.ID, got.ID)

	_, err = s.userSvc.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestEnrollmentRepository_progress(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)
	teach := testutil.CreateUser(t, s.users, "Teach", "teach", "teach@test.cd", user.RoleInstructor, true)
	aliceUsr := testutil.CreateUser(t, s.users, "Alice", "alice", "alice@test.cd", user.RoleStudent, true)
	alice := access.NewActor(aliceUsr)

	course := testutil.CreateCourse(t, s.catalog, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, s.catalog, course, 1)
	l1 := testutil.CreateLesson(t, s.catalog, module, 1, true)
	testutil.CreateLesson(t, s.catalog, module, 2, true)
	testutil.CreateLesson(t, s.catalog, module, 3, false)

	_, err := s.enrollmentSvc.Enroll(ctx, alice, course.ID)
	require.NoError(t, err)
	_, err = s.enrollmentSvc.Enroll(ctx, alice, course.ID)
	assert.True(t, core.IsValidationError(err), "got %v", err)

	done, err := s.enrollmentSvc.CompleteLesson(ctx, alice, l1.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.Equal(t, 50, done.Enrollment.Progress)

	again, err := s.enrollmentSvc.CompleteLesson(ctx, alice, l1.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, again.Enrollment.Progress)
}

func TestGradingRepository_attempts(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)
	teach := testutil.CreateUser(t, s.users, "Teach", "teach", "teach@test.cd", user.RoleInstructor, true)
	alice := access.NewActor(testutil.CreateUser(t, s.users, "Alice", "alice", "alice@test.cd", user.RoleStudent, true))

	course := testutil.CreateCourse(t, s.catalog, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, s.catalog, course, 1)
	quiz := testutil.CreateQuiz(t, s.catalog, module, 3, 50, testutil.QuestionSpec{Type: catalog.TrueFalse, Points: 1})

	const tries = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
	)
	for i := 0; i < tries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := s.gradingSvc.SubmitQuiz(ctx, alice, grading.NewQuizSubmission{QuizID: quiz.ID})
			if err != nil {
				return
			}
			mu.Lock()
			numbers = append(numbers, sub.AttemptNumber)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{1, 2, 3}, numbers)
	n, err := s.grading.CountQuizAttempts(ctx, quiz.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestGradingRepository_assignmentSubmission(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)
	teach := testutil.CreateUser(t, s.users, "Teach", "teach", "teach@test.cd", user.RoleInstructor, true)
	alice := access.NewActor(testutil.CreateUser(t, s.users, "Alice", "alice", "alice@test.cd", user.RoleStudent, true))

	course := testutil.CreateCourse(t, s.catalog, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, s.catalog, course, 1)
	assignment := testutil.CreateAssignment(t, s.catalog, module, null.TimeFrom(time.Now().Add(-time.Hour)))

	sub, err := s.gradingSvc.SubmitAssignment(ctx, alice, grading.NewAssignmentSubmission{AssignmentID: assignment.ID})
	require.NoError(t, err)
	assert.True(t, sub.IsLate)

	_, err = s.gradingSvc.SubmitAssignment(ctx, alice, grading.NewAssignmentSubmission{AssignmentID: assignment.ID})
	assert.True(t, core.IsValidationError(err), "got %v", err)
}
