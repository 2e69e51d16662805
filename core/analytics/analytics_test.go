package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/user"
	cachesvc "github.com/trezcool/somesha/services/cache"
	logsvc "github.com/trezcool/somesha/services/logger"
)

func TestSummarize(t *testing.T) {
	stats := []CourseStats{
		{
			Course:                catalog.Course{ID: "go", Title: "Go", Price: 19.99},
			Enrollments:           3,
			CompletedEnrollments:  1,
			ProgressSum:           160,
			QuizScoreSum:          150,
			QuizSubmissions:       2,
			AssignmentSubmissions: 4,
		},
		{
			Course:      catalog.Course{ID: "rust", Title: "Rust", Price: 10},
			Enrollments: 1,
		},
		{Course: catalog.Course{ID: "empty", Title: "Empty"}},
	}

	got := Summarize(stats)
	assert.Equal(t, 3, got.TotalCourses)
	assert.Equal(t, 4, got.TotalEnrollments)
	assert.Equal(t, 69.97, got.TotalRevenue)
	assert.Equal(t, 11.11, got.AverageCompletionRate) // (33.33 + 0 + 0) / 3
	assert.Equal(t, float64(75), got.AverageQuizScore)
	require.Len(t, got.Courses, 3)

	assert.Equal(t, CourseSummary{
		ID:                    "go",
		Title:                 "Go",
		Enrollments:           3,
		CompletionRate:        33.33,
		AverageProgress:       53.33,
		AverageQuizScore:      75,
		AssignmentSubmissions: 4,
		QuizSubmissions:       2,
		Revenue:               59.97,
	}, got.Courses[0])
	assert.Zero(t, got.Courses[2].CompletionRate)

	empty := Summarize(nil)
	assert.Zero(t, empty.AverageCompletionRate)
	assert.NotNil(t, empty.Courses)
}

func TestTopCategories(t *testing.T) {
	cats := []CategoryStats{
		{Category: "b", Enrollments: 1},
		{Category: "a", Enrollments: 1},
		{Category: "c", Enrollments: 5},
	}
	assert.Equal(t, []CategoryStats{
		{Category: "c", Enrollments: 5},
		{Category: "a", Enrollments: 1},
	}, TopCategories(cats, 2))
	assert.Equal(t, "b", cats[0].Category, "input is left untouched")
	assert.Empty(t, TopCategories(nil, 10))
}

type countingSource struct {
	calls    int
	platform PlatformStats
	courses  []CourseStats
}

func (s *countingSource) CourseStats(_ context.Context, _ string) ([]CourseStats, error) {
	s.calls++
	return s.courses, nil
}

func (s *countingSource) PlatformStats(context.Context) (PlatformStats, error) {
	s.calls++
	return s.platform, nil
}

type users map[string]user.User

func (u users) GetByID(_ context.Context, id string) (user.User, error) {
	if usr, ok := u[id]; ok {
		return usr, nil
	}
	return user.User{}, core.NewNotFoundError("user")
}

func TestService_PlatformSummary_cached(t *testing.T) {
	ctx := context.Background()
	admin := access.Actor{ID: "admin", Role: user.RoleAdmin}
	src := &countingSource{platform: PlatformStats{TotalUsers: 3, EstimatedRevenue: 10.005}}
	svc := NewService(src, users{}, cachesvc.NewMemoryCache(), time.Minute, logsvc.NewNopLogger())

	first, err := svc.PlatformSummary(ctx, admin)
	require.NoError(t, err)
	second, err := svc.PlatformSummary(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 3, second.TotalUsers)
	assert.Equal(t, 1, src.calls)

	_, err = svc.PlatformSummary(ctx, access.Actor{ID: "i", Role: user.RoleInstructor})
	assert.True(t, core.IsPermissionError(err), "got %v", err)

	uncached := NewService(src, users{}, nil, 0, logsvc.NewNopLogger())
	_, err = uncached.PlatformSummary(ctx, admin)
	require.NoError(t, err)
	_, err = uncached.PlatformSummary(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestService_InstructorSummary(t *testing.T) {
	ctx := context.Background()
	us := users{
		"teach": {ID: "teach", Role: user.RoleInstructor},
		"alice": {ID: "alice", Role: user.RoleStudent},
	}
	src := &countingSource{courses: []CourseStats{{Course: catalog.Course{ID: "go"}, Enrollments: 2}}}
	svc := NewService(src, us, cachesvc.NewMemoryCache(), time.Minute, logsvc.NewNopLogger())
	admin := access.Actor{ID: "admin", Role: user.RoleAdmin}

	tests := []struct {
		name         string
		actor        access.Actor
		instructorID string
		wantErr      error
		wantPerm     bool
	}{
		{name: "student", actor: access.Actor{ID: "alice", Role: user.RoleStudent}, wantPerm: true},
		{name: "anonymous", actor: access.Actor{}, wantPerm: true},
		{name: "admin names a student", actor: admin, instructorID: "alice", wantErr: ErrInstructorNotFound},
		{name: "admin names nobody known", actor: admin, instructorID: "ghost", wantErr: ErrInstructorNotFound},
		{name: "admin names an instructor", actor: admin, instructorID: "teach"},
		{name: "admin, all courses", actor: admin},
		{name: "instructor", actor: access.Actor{ID: "teach", Role: user.RoleInstructor}, instructorID: "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := svc.InstructorSummary(ctx, tt.actor, tt.instructorID)
			switch {
			case tt.wantPerm:
				assert.True(t, core.IsPermissionError(err), "got %v", err)
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, 2, summary.TotalEnrollments)
			}
		})
	}
	// "teach" was computed once, then served from cache for the instructor itself
	assert.Equal(t, 2, src.calls)
}
