package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/testutil"
)

func Test_catalogApi_courses(t *testing.T) {
	srv, env := setup(t)
	teach := env.Instructor(t, "teach")
	other := env.Instructor(t, "other")
	alice := env.Student(t, "alice")
	admin := env.Admin(t, "admin")

	published := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	draft := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 201", catalog.StatusDraft, 10)
	testutil.Enroll(t, env.EnrollmentRepo, alice, published)

	teachToken := getToken(t, srv, teach)

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "anonymous sees published",
			method:   http.MethodGet,
			path:     "/v1/courses",
			wantCode: http.StatusOK,
			wantData: marshalObj(t, []CourseView{{Course: published}}),
		},
		{
			name:     "student flags",
			method:   http.MethodGet,
			path:     "/v1/courses",
			token:    getToken(t, srv, alice),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, []CourseView{{Course: published, IsEnrolled: true}}),
		},
		{
			name:     "owner sees own draft",
			method:   http.MethodGet,
			path:     "/v1/courses",
			token:    teachToken,
			wantCode: http.StatusOK,
			wantData: marshalObj(t, []CourseView{{Course: published}, {Course: draft}}),
		},
		{
			name:     "other instructor does not",
			method:   http.MethodGet,
			path:     "/v1/courses/" + draft.ID,
			token:    getToken(t, srv, other),
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "course not found"}),
		},
		{
			name:     "admin sees draft",
			method:   http.MethodGet,
			path:     "/v1/courses?search=201",
			token:    getToken(t, srv, admin),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, []CourseView{{Course: draft}}),
		},
		{
			name:     "student cannot create",
			method:   http.MethodPost,
			path:     "/v1/courses",
			token:    getToken(t, srv, alice),
			body:     []byte(`{"title":"Mine","description":"desc"}`),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "Only instructors can create courses."}),
		},
		{
			name:     "missing title",
			method:   http.MethodPost,
			path:     "/v1/courses",
			token:    teachToken,
			body:     []byte(`{"description":"desc"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title":"this field is required"}`),
		},
		{
			name:     "other instructor cannot update",
			method:   http.MethodPatch,
			path:     "/v1/courses/" + published.ID,
			token:    getToken(t, srv, other),
			body:     []byte(`{"title":"Hijacked"}`),
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("create defaults to draft", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", teachToken, []byte(`{"title":"  Rust  ","description":"desc","price":5}`))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var course catalog.Course
		decode(t, rec, &course)
		assert.Equal(t, "Rust", course.Title)
		assert.Equal(t, catalog.StatusDraft, course.Status)
		assert.Equal(t, teach.ID, course.InstructorID)

		// drafts are hidden from anonymous users
		req, rec = newRequest(http.MethodGet, "/v1/courses/"+course.ID)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("publish", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/courses/"+draft.ID, teachToken, []byte(`{"status":"published"}`))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		req, rec = newRequest(http.MethodGet, "/v1/courses/"+draft.ID)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/courses/"+draft.ID, teachToken, []byte(`{"status":"gone"}`))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_catalogApi_courseTree(t *testing.T) {
	srv, env := setup(t)
	teach := env.Instructor(t, "teach")
	alice := env.Student(t, "alice")

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, env.CatalogRepo, course, 1)
	shown := testutil.CreateLesson(t, env.CatalogRepo, module, 1, true)
	hidden := testutil.CreateLesson(t, env.CatalogRepo, module, 2, false)

	lessonIDs := func(token string) []string {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+course.ID, token)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var tree CourseTreeView
		decode(t, rec, &tree)
		require.Len(t, tree.Modules, 1)
		ids := make([]string, 0)
		for _, l := range tree.Modules[0].Lessons {
			ids = append(ids, l.ID)
		}
		return ids
	}

	assert.Equal(t, []string{shown.ID}, lessonIDs(""))
	assert.Equal(t, []string{shown.ID}, lessonIDs(getToken(t, srv, alice)))
	assert.Equal(t, []string{shown.ID, hidden.ID}, lessonIDs(getToken(t, srv, teach)))

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "lessons need authentication",
			method:   http.MethodGet,
			path:     "/v1/lessons/" + shown.ID,
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, errMissingToken),
		},
		{
			name:     "student cannot see unpublished lesson",
			method:   http.MethodGet,
			path:     "/v1/lessons/" + hidden.ID,
			token:    getToken(t, srv, alice),
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "lesson not found"}),
		},
		{
			name:     "duplicate module order",
			method:   http.MethodPost,
			path:     "/v1/modules",
			token:    getToken(t, srv, teach),
			body:     []byte(`{"course_id":"` + course.ID + `","title":"Again","order":1}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"order":"this order is already used"}`),
		},
		{
			name:     "modules are public",
			method:   http.MethodGet,
			path:     "/v1/modules?course=" + course.ID,
			wantCode: http.StatusOK,
			wantData: marshalObj(t, []catalog.Module{module}),
		},
	})
}

func Test_catalogApi_quiz(t *testing.T) {
	srv, env := setup(t)
	teach := env.Instructor(t, "teach")
	alice := env.Student(t, "alice")
	bob := env.Student(t, "bob")

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, env.CatalogRepo, course, 1)
	quiz := testutil.CreateQuiz(t, env.CatalogRepo, module, 1, 50,
		testutil.QuestionSpec{Type: catalog.MultipleChoice, Points: 5},
		testutil.QuestionSpec{Type: catalog.TrueFalse, Points: 10},
	)
	testutil.Enroll(t, env.EnrollmentRepo, alice, course)

	t.Run("student gets public view", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/quizzes/"+quiz.ID, getToken(t, srv, alice))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "is_correct")

		var got catalog.PublicQuiz
		decode(t, rec, &got)
		require.Len(t, got.Questions, 2)
		assert.Len(t, got.Questions[0].Choices, 2)
	})

	t.Run("instructor gets answers", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/quizzes/"+quiz.ID, getToken(t, srv, teach))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "is_correct")
	})

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "not enrolled",
			method:   http.MethodGet,
			path:     "/v1/quizzes/" + quiz.ID,
			token:    getToken(t, srv, bob),
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "quiz not found"}),
		},
		{
			name:     "not enrolled list",
			method:   http.MethodGet,
			path:     "/v1/quizzes",
			token:    getToken(t, srv, bob),
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
		{
			name:     "invalid question type",
			method:   http.MethodPost,
			path:     "/v1/quizzes",
			token:    getToken(t, srv, teach),
			body:     []byte(`{"module_id":"` + module.ID + `","title":"Q","questions":[{"prompt":"?","question_type":"essay"}]}`),
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("create", func(t *testing.T) {
		body := []byte(`{"module_id":"` + module.ID + `","title":"Quiz 2","questions":[` +
			`{"prompt":"2+2?","question_type":"multiple_choice","points":2,"choices":[{"text":"4","is_correct":true},{"text":"5"}]},` +
			`{"prompt":"Explain","question_type":"short_answer"}]}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/quizzes", getToken(t, srv, teach), body)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got catalog.Quiz
		decode(t, rec, &got)
		assert.Equal(t, 1, got.AttemptsAllowed)
		assert.Equal(t, 70, got.PassingScore)
		require.Len(t, got.Questions, 2)
		assert.Equal(t, 3, got.TotalPoints())
	})
}

func Test_catalogApi_lessonCompletion(t *testing.T) {
	srv, env := setup(t)
	teach := env.Instructor(t, "teach")
	alice := env.Student(t, "alice")
	bob := env.Student(t, "bob")

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, env.CatalogRepo, course, 1)
	lessons := []catalog.Lesson{
		testutil.CreateLesson(t, env.CatalogRepo, module, 1, true),
		testutil.CreateLesson(t, env.CatalogRepo, module, 2, true),
		testutil.CreateLesson(t, env.CatalogRepo, module, 3, true),
	}
	testutil.CreateLesson(t, env.CatalogRepo, module, 4, false)
	testutil.Enroll(t, env.EnrollmentRepo, alice, course)
	aliceToken := getToken(t, srv, alice)

	complete := func(t *testing.T, lesson catalog.Lesson, action string) completionResp {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/"+lesson.ID+"/"+action, aliceToken)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res completionResp
		decode(t, rec, &res)
		return res
	}

	res := complete(t, lessons[0], "complete")
	assert.True(t, res.Completed)
	assert.Equal(t, 33, res.Enrollment.Progress)

	// completing twice changes nothing
	res = complete(t, lessons[0], "complete")
	assert.Equal(t, 33, res.Enrollment.Progress)

	res = complete(t, lessons[1], "complete")
	assert.Equal(t, 66, res.Enrollment.Progress)

	res = complete(t, lessons[2], "complete")
	assert.Equal(t, 100, res.Enrollment.Progress)

	res = complete(t, lessons[1], "uncomplete")
	assert.False(t, res.Completed)
	assert.Equal(t, 66, res.Enrollment.Progress)

	t.Run("lesson flags", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/lessons?module="+module.ID, aliceToken)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var views []LessonView
		decode(t, rec, &views)
		require.Len(t, views, 3)
		done := map[string]bool{}
		for _, v := range views {
			done[v.ID] = v.IsCompleted
		}
		assert.Equal(t, map[string]bool{lessons[0].ID: true, lessons[1].ID: false, lessons[2].ID: true}, done)
	})

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "not enrolled",
			method:   http.MethodPost,
			path:     "/v1/lessons/" + lessons[0].ID + "/complete",
			token:    getToken(t, srv, bob),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "You are not enrolled in this course."}),
		},
		{
			name:     "unknown lesson",
			method:   http.MethodPost,
			path:     "/v1/lessons/" + module.ID + "/complete",
			token:    aliceToken,
			wantCode: http.StatusNotFound,
		},
	})
}

type completionResp struct {
	Completed  bool `json:"completed"`
	Enrollment struct {
		Progress int `json:"progress"`
	} `json:"enrollment"`
}
