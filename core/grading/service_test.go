package grading_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/grading"
	"github.com/trezcool/somesha/testutil"
)

func TestService_SubmitQuiz_attempts(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teach := env.Instructor(t, "teach")
	alice := access.NewActor(env.Student(t, "alice"))

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, env.CatalogRepo, course, 1)
	quiz := testutil.CreateQuiz(t, env.CatalogRepo, module, 2, 60, testutil.QuestionSpec{Type: catalog.TrueFalse, Points: 1})
	qn := quiz.Questions[0]

	first, err := env.GradingSvc.SubmitQuiz(ctx, alice, grading.NewQuizSubmission{
		QuizID:  quiz.ID,
		Answers: map[string]grading.AnswerPayload{qn.ID: {Choice: testutil.WrongChoice(qn)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.AttemptNumber)
	assert.False(t, first.Passed)

	second, err := env.GradingSvc.SubmitQuiz(ctx, alice, grading.NewQuizSubmission{
		QuizID:  quiz.ID,
		Answers: map[string]grading.AnswerPayload{qn.ID: {Choice: testutil.CorrectChoice(qn)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.AttemptNumber)
	assert.Equal(t, float64(100), second.Score)
	assert.True(t, second.Passed)

	_, err = env.GradingSvc.SubmitQuiz(ctx, alice, grading.NewQuizSubmission{QuizID: quiz.ID})
	assert.True(t, core.IsPermissionError(err), "got %v", err)

	stored, err := env.GradingSvc.GetQuizSubmission(ctx, alice, second.ID)
	require.NoError(t, err)
	require.Len(t, stored.Answers, 1)
	assert.True(t, stored.Answers[0].IsCorrect)

	assert.Equal(t, []string{"quiz.submitted", "quiz.submitted"}, env.Events.Types())
}

func TestService_SubmitQuiz_concurrent(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teach := env.Instructor(t, "teach")
	alice := access.NewActor(env.Student(t, "alice"))

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, env.CatalogRepo, course, 1)
	quiz := testutil.CreateQuiz(t, env.CatalogRepo, module, 3, 70, testutil.QuestionSpec{Type: catalog.MultipleChoice, Points: 2})

	const tries = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
		refused int
	)
	for i := 0; i < tries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := env.GradingSvc.SubmitQuiz(ctx, alice, grading.NewQuizSubmission{QuizID: quiz.ID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if core.IsPermissionError(err) {
					refused++
				}
				return
			}
			numbers = append(numbers, sub.AttemptNumber)
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{1, 2, 3}, numbers)
	assert.Equal(t, tries-3, refused)
}

// racingRepo loses every race for an attempt number.
type racingRepo struct {
	grading.Repository
}

func (r racingRepo) WithinTx(ctx context.Context, fn func(tx grading.Repository) error) error {
	return r.Repository.WithinTx(ctx, func(tx grading.Repository) error {
		return fn(racingRepo{tx})
	})
}

func (racingRepo) CreateQuizSubmission(context.Context, grading.QuizSubmission) (grading.QuizSubmission, error) {
	return grading.QuizSubmission{}, grading.ErrAttemptExists
}

func TestService_SubmitQuiz_conflict(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teach := env.Instructor(t, "teach")
	alice := access.NewActor(env.Student(t, "alice"))

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, env.CatalogRepo, course, 1)
	quiz := testutil.CreateQuiz(t, env.CatalogRepo, module, 1, 70)

	svc := grading.NewService(racingRepo{env.GradingRepo}, env.CatalogSvc, env.UserSvc, env.Mail, env.Events, env.Logger)
	_, err := svc.SubmitQuiz(ctx, alice, grading.NewQuizSubmission{QuizID: quiz.ID})
	assert.True(t, core.IsConflict(err), "got %v", err)
	assert.Empty(t, env.Events.Types())

	n, err := env.GradingRepo.CountQuizAttempts(ctx, quiz.ID, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_SubmitAssignment(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teach := env.Instructor(t, "teach")
	admin := access.NewActor(env.Admin(t, "admin"))
	aliceUsr := env.Student(t, "alice")
	alice := access.NewActor(aliceUsr)
	bob := access.NewActor(env.Student(t, "bob"))

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, env.CatalogRepo, course, 1)
	past := testutil.CreateAssignment(t, env.CatalogRepo, module, null.TimeFrom(time.Now().Add(-time.Hour)))
	future := testutil.CreateAssignment(t, env.CatalogRepo, module, null.TimeFrom(time.Now().Add(time.Hour)))

	t.Run("lateness", func(t *testing.T) {
		late, err := env.GradingSvc.SubmitAssignment(ctx, alice, grading.NewAssignmentSubmission{AssignmentID: past.ID})
		require.NoError(t, err)
		assert.True(t, late.IsLate)
		assert.Equal(t, grading.StatusSubmitted, late.Status)

		onTime, err := env.GradingSvc.SubmitAssignment(ctx, alice, grading.NewAssignmentSubmission{AssignmentID: future.ID})
		require.NoError(t, err)
		assert.False(t, onTime.IsLate)
	})

	t.Run("once per student", func(t *testing.T) {
		_, err := env.GradingSvc.SubmitAssignment(ctx, alice, grading.NewAssignmentSubmission{AssignmentID: future.ID})
		assert.True(t, core.IsValidationError(err), "got %v", err)
	})

	t.Run("on behalf", func(t *testing.T) {
		_, err := env.GradingSvc.SubmitAssignment(ctx, admin, grading.NewAssignmentSubmission{AssignmentID: future.ID})
		assert.True(t, core.IsValidationError(err), "student_id is required, got %v", err)

		sub, err := env.GradingSvc.SubmitAssignment(ctx, admin, grading.NewAssignmentSubmission{
			AssignmentID: future.ID,
			StudentID:    bob.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, bob.ID, sub.StudentID)
	})

	t.Run("instructors cannot submit", func(t *testing.T) {
		_, err := env.GradingSvc.SubmitAssignment(ctx, access.NewActor(teach), grading.NewAssignmentSubmission{AssignmentID: future.ID})
		assert.True(t, core.IsPermissionError(err), "got %v", err)
	})

	t.Run("grade", func(t *testing.T) {
		subs, err := env.GradingSvc.ListAssignmentSubmissions(ctx, alice, past.ID)
		require.NoError(t, err)
		require.Len(t, subs, 1)

		score := 42.0
		graded, err := env.GradingSvc.GradeSubmission(ctx, access.NewActor(teach), subs[0].ID, grading.Grade{Grade: &score, Status: grading.StatusReturned})
		require.NoError(t, err)
		assert.Equal(t, grading.StatusReturned, graded.Status)
		assert.Equal(t, null.Float64From(42), graded.Grade)
		assert.Equal(t, null.StringFrom(teach.ID), graded.ReviewedBy)
		assert.True(t, graded.ReviewedAt.Valid)
		assert.True(t, graded.IsLate)

		sent := env.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, aliceUsr.Email, sent[0].To[0].Address)

		_, err = env.GradingSvc.GradeSubmission(ctx, admin, subs[0].ID, grading.Grade{Grade: &score})
		assert.NoError(t, err, "admins grade any submission")
	})
}
