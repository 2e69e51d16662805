package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somesha/core/analytics"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/testutil"
)

func Test_analyticsApi(t *testing.T) {
	srv, env := setup(t)
	teach := env.Instructor(t, "teach")
	other := env.Instructor(t, "other")
	admin := env.Admin(t, "admin")
	alice := env.Student(t, "alice")
	bob := env.Student(t, "bob")

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 20)
	testutil.CreateCourse(t, env.CatalogRepo, other, "Rust 101", catalog.StatusPublished, 10)
	testutil.Enroll(t, env.EnrollmentRepo, alice, course)
	testutil.Enroll(t, env.EnrollmentRepo, bob, course)

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "students are refused",
			method:   http.MethodGet,
			path:     "/v1/analytics/instructor",
			token:    getToken(t, srv, alice),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "Only instructors or admins can view instructor analytics."}),
		},
		{
			name:     "platform is admin only",
			method:   http.MethodGet,
			path:     "/v1/analytics/platform",
			token:    getToken(t, srv, teach),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown instructor",
			method:   http.MethodGet,
			path:     "/v1/analytics/instructor?instructor_id=" + alice.ID,
			token:    getToken(t, srv, admin),
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "instructor not found"}),
		},
	})

	t.Run("instructor", func(t *testing.T) {
		// instructors only ever get their own courses
		req, rec := newAuthRequest(http.MethodGet, "/v1/analytics/instructor?instructor_id="+other.ID, getToken(t, srv, teach))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var summary analytics.InstructorSummary
		decode(t, rec, &summary)
		assert.Equal(t, 1, summary.TotalCourses)
		assert.Equal(t, 2, summary.TotalEnrollments)
		assert.Equal(t, float64(40), summary.TotalRevenue)
		require.Len(t, summary.Courses, 1)
		assert.Equal(t, course.ID, summary.Courses[0].ID)
	})

	t.Run("platform", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/analytics/platform", getToken(t, srv, admin))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var stats analytics.PlatformStats
		decode(t, rec, &stats)
		assert.Equal(t, 5, stats.TotalUsers)
		assert.Equal(t, 2, stats.TotalStudents)
		assert.Equal(t, 3, stats.TotalInstructors)
		assert.Equal(t, 2, stats.TotalCourses)
		assert.Equal(t, 2, stats.TotalEnrollments)
		assert.Equal(t, float64(40), stats.EstimatedRevenue)
		assert.Equal(t, []analytics.CategoryStats{{Category: "Programming", CourseCount: 2, Enrollments: 2}}, stats.CategoryBreakdown)
	})
}
