package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/grading"
	"github.com/trezcool/somesha/testutil"
)

func Test_gradingApi_quizSubmissions(t *testing.T) {
	srv, env := setup(t)
	teach := env.Instructor(t, "teach")
	alice := env.Student(t, "alice")
	bob := env.Student(t, "bob")

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, env.CatalogRepo, course, 1)
	quiz := testutil.CreateQuiz(t, env.CatalogRepo, module, 1, 50,
		testutil.QuestionSpec{Type: catalog.MultipleChoice, Points: 5},
		testutil.QuestionSpec{Type: catalog.MultipleChoice, Points: 10},
	)
	q1, q2 := quiz.Questions[0], quiz.Questions[1]

	body := []byte(`{"quiz":"` + quiz.ID + `","answers":{` +
		`"` + q1.ID + `":{"choice":"` + *testutil.CorrectChoice(q1) + `"},` +
		`"` + q2.ID + `":{"choice":"` + *testutil.WrongChoice(q2) + `"}}}`)
	aliceToken := getToken(t, srv, alice)

	var sub grading.QuizSubmission
	t.Run("first attempt", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/quiz-submissions", aliceToken, body)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		decode(t, rec, &sub)
		assert.Equal(t, 1, sub.AttemptNumber)
		assert.Equal(t, 33.33, sub.Score)
		assert.False(t, sub.Passed)
		require.Len(t, sub.Answers, 2)
		assert.True(t, sub.Answers[0].IsCorrect)
		assert.Equal(t, float64(5), sub.Answers[0].PointsAwarded)
		assert.False(t, sub.Answers[1].IsCorrect)
		assert.Contains(t, env.Events.Types(), "quiz.submitted")
	})

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "attempts exhausted",
			method:   http.MethodPost,
			path:     "/v1/quiz-submissions",
			token:    aliceToken,
			body:     body,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "You have reached the maximum number of attempts for this quiz."}),
		},
		{
			name:     "instructors cannot submit",
			method:   http.MethodPost,
			path:     "/v1/quiz-submissions",
			token:    getToken(t, srv, teach),
			body:     body,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "Only students can submit quizzes."}),
		},
		{
			name:     "unknown quiz",
			method:   http.MethodPost,
			path:     "/v1/quiz-submissions",
			token:    getToken(t, srv, bob),
			body:     []byte(`{"quiz":"` + module.ID + `","answers":{}}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"quiz":"quiz not found"}`),
		},
		{
			name:     "missing quiz",
			method:   http.MethodPost,
			path:     "/v1/quiz-submissions",
			token:    getToken(t, srv, bob),
			body:     []byte(`{"answers":{}}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"quiz":"this field is required"}`),
		},
		{
			name:     "others cannot see the submission",
			method:   http.MethodGet,
			path:     "/v1/quiz-submissions/" + sub.ID,
			token:    getToken(t, srv, bob),
			wantCode: http.StatusNotFound,
		},
	})

	t.Run("instructor sees submission without answers", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/quiz-submissions/"+sub.ID, getToken(t, srv, teach))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got grading.QuizSubmission
		decode(t, rec, &got)
		assert.Equal(t, sub.ID, got.ID)
		assert.Empty(t, got.Answers)
	})

	t.Run("listings", func(t *testing.T) {
		for _, tc := range []struct {
			token string
			want  int
		}{
			{aliceToken, 1},
			{getToken(t, srv, bob), 0},
			{getToken(t, srv, teach), 1},
		} {
			req, rec := newAuthRequest(http.MethodGet, "/v1/quiz-submissions?quiz="+quiz.ID, tc.token)
			srv.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
			var subs []grading.QuizSubmission
			decode(t, rec, &subs)
			assert.Len(t, subs, tc.want)
		}
	})
}

func Test_gradingApi_assignmentSubmissions(t *testing.T) {
	srv, env := setup(t)
	teach := env.Instructor(t, "teach")
	other := env.Instructor(t, "other")
	alice := env.Student(t, "alice")
	bob := env.Student(t, "bob")

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, env.CatalogRepo, course, 1)
	past := testutil.CreateAssignment(t, env.CatalogRepo, module, null.TimeFrom(time.Now().Add(-24*time.Hour)))
	open := testutil.CreateAssignment(t, env.CatalogRepo, module, null.Time{})

	aliceToken := getToken(t, srv, alice)
	teachToken := getToken(t, srv, teach)

	submit := func(t *testing.T, token string, assignment catalog.Assignment) grading.AssignmentSubmission {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignment-submissions", token,
			[]byte(`{"assignment_id":"`+assignment.ID+`","text_response":"my work"}`))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var sub grading.AssignmentSubmission
		decode(t, rec, &sub)
		return sub
	}

	late := submit(t, aliceToken, past)
	assert.True(t, late.IsLate)
	assert.Equal(t, grading.StatusSubmitted, late.Status)

	onTime := submit(t, getToken(t, srv, bob), open)
	assert.False(t, onTime.IsLate)

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "duplicate",
			method:   http.MethodPost,
			path:     "/v1/assignment-submissions",
			token:    aliceToken,
			body:     []byte(`{"assignment_id":"` + past.ID + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "You have already submitted this assignment."}),
		},
		{
			name:     "student cannot grade",
			method:   http.MethodPost,
			path:     "/v1/assignment-submissions/" + late.ID + "/grade",
			token:    aliceToken,
			body:     []byte(`{"grade":100}`),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "other instructor cannot see",
			method:   http.MethodPost,
			path:     "/v1/assignment-submissions/" + late.ID + "/grade",
			token:    getToken(t, srv, other),
			body:     []byte(`{"grade":100}`),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "grade is required",
			method:   http.MethodPost,
			path:     "/v1/assignment-submissions/" + late.ID + "/grade",
			token:    teachToken,
			body:     []byte(`{"feedback":"ok"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"grade":"Grade is required."}`),
		},
		{
			name:     "invalid status",
			method:   http.MethodPost,
			path:     "/v1/assignment-submissions/" + late.ID + "/set_status",
			token:    teachToken,
			body:     []byte(`{"status":"lost"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"status":"Invalid status."}`),
		},
		{
			name:     "student sees own only",
			method:   http.MethodGet,
			path:     "/v1/assignment-submissions/" + onTime.ID,
			token:    aliceToken,
			wantCode: http.StatusNotFound,
		},
	})

	t.Run("set status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignment-submissions/"+onTime.ID+"/set_status", teachToken,
			[]byte(`{"status":"in_review"}`))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sub grading.AssignmentSubmission
		decode(t, rec, &sub)
		assert.Equal(t, grading.StatusInReview, sub.Status)
		assert.Equal(t, teach.ID, sub.ReviewedBy.String)
	})

	t.Run("grade", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignment-submissions/"+late.ID+"/grade", teachToken,
			[]byte(`{"grade":85.5,"feedback":"Good job"}`))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var sub grading.AssignmentSubmission
		decode(t, rec, &sub)
		assert.Equal(t, grading.StatusGraded, sub.Status)
		assert.Equal(t, 85.5, sub.Grade.Float64)
		assert.Equal(t, "Good job", sub.Feedback)
		assert.Equal(t, teach.ID, sub.ReviewedBy.String)
		assert.True(t, sub.ReviewedAt.Valid)
		assert.True(t, sub.IsLate)

		sent := env.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, alice.Email, sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "85.50 / 100")
	})

	t.Run("listings", func(t *testing.T) {
		for _, tc := range []struct {
			token string
			want  int
		}{
			{aliceToken, 1},
			{teachToken, 2},
			{getToken(t, srv, other), 0},
		} {
			req, rec := newAuthRequest(http.MethodGet, "/v1/assignment-submissions", tc.token)
			srv.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
			var subs []grading.AssignmentSubmission
			decode(t, rec, &subs)
			assert.Len(t, subs, tc.want)
		}
	})
}
