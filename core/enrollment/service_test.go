package enrollment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/enrollment"
	"github.com/trezcool/somesha/testutil"
)

func TestService_Enroll(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teach := env.Instructor(t, "teach")
	alice := access.NewActor(env.Student(t, "alice"))

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	draft := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 201", catalog.StatusDraft, 0)

	enr, err := env.EnrollmentSvc.Enroll(ctx, alice, course.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, enr.StudentID)
	assert.Zero(t, enr.Progress)

	_, err = env.EnrollmentSvc.Enroll(ctx, alice, course.ID)
	assert.True(t, core.IsValidationError(err), "got %v", err)

	_, err = env.EnrollmentSvc.Enroll(ctx, alice, draft.ID)
	assert.True(t, core.IsNotFound(err), "got %v", err)

	_, err = env.EnrollmentSvc.Enroll(ctx, access.Actor{}, course.ID)
	assert.True(t, core.IsPermissionError(err), "got %v", err)

	ok, err := env.EnrollmentSvc.IsEnrolled(ctx, alice.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := env.EnrollmentSvc.CourseStudentIDs(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, ids)

	assert.Equal(t, []string{"enrollment.created"}, env.Events.Types())
}

func TestService_CompleteLesson(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teach := env.Instructor(t, "teach")
	aliceUsr := env.Student(t, "alice")
	alice := access.NewActor(aliceUsr)

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, env.CatalogRepo, course, 1)
	l1 := testutil.CreateLesson(t, env.CatalogRepo, module, 1, true)
	l2 := testutil.CreateLesson(t, env.CatalogRepo, module, 2, true)

	_, err := env.EnrollmentSvc.CompleteLesson(ctx, alice, l1.ID)
	assert.Equal(t, enrollment.ErrNotEnrolled, err)

	testutil.Enroll(t, env.EnrollmentRepo, aliceUsr, course)

	done, err := env.EnrollmentSvc.CompleteLesson(ctx, alice, l1.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.Equal(t, 50, done.Enrollment.Progress)
	assert.True(t, done.Enrollment.LastAccessed.Valid)
	assert.Equal(t, []string{"lesson.completed", "enrollment.progress_updated"}, env.Events.Types())

	t.Run("idempotent", func(t *testing.T) {
		env.Events.Reset()
		again, err := env.EnrollmentSvc.CompleteLesson(ctx, alice, l1.ID)
		require.NoError(t, err)
		assert.Equal(t, 50, again.Enrollment.Progress)
		assert.Empty(t, env.Events.Types())

		ids, err := env.EnrollmentSvc.CompletedLessonIDs(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{l1.ID}, ids)
	})

	t.Run("clamped to 100", func(t *testing.T) {
		done, err := env.EnrollmentSvc.CompleteLesson(ctx, alice, l2.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, done.Enrollment.Progress)

		l2.IsPublished = false
		_, err = env.CatalogRepo.UpdateLesson(ctx, l2)
		require.NoError(t, err)

		enr, err := env.EnrollmentSvc.Recalculate(ctx, done.Enrollment)
		require.NoError(t, err)
		assert.Equal(t, 100, enr.Progress)
	})

	t.Run("uncomplete", func(t *testing.T) {
		env.Events.Reset()
		undone, err := env.EnrollmentSvc.UncompleteLesson(ctx, alice, l1.ID)
		require.NoError(t, err)
		assert.False(t, undone.Completed)
		assert.Equal(t, 100, undone.Enrollment.Progress, "l2 still counts against 1 published lesson")
		assert.Equal(t, []string{"lesson.uncompleted"}, env.Events.Types())

		env.Events.Reset()
		_, err = env.EnrollmentSvc.UncompleteLesson(ctx, alice, l1.ID)
		require.NoError(t, err)
		assert.Empty(t, env.Events.Types())
	})
}

func TestService_GetEnrollment(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teach := env.Instructor(t, "teach")
	aliceUsr := env.Student(t, "alice")
	bob := access.NewActor(env.Student(t, "bob"))

	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)
	enr := testutil.Enroll(t, env.EnrollmentRepo, aliceUsr, course)

	detail, err := env.EnrollmentSvc.GetEnrollment(ctx, access.NewActor(aliceUsr), enr.ID)
	require.NoError(t, err)
	assert.Equal(t, enr.ID, detail.ID)
	assert.Empty(t, detail.LessonProgress)

	_, err = env.EnrollmentSvc.GetEnrollment(ctx, bob, enr.ID)
	assert.Equal(t, enrollment.ErrNotFound, err)
}

func TestService_Wishlist(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teach := env.Instructor(t, "teach")
	alice := access.NewActor(env.Student(t, "alice"))
	course := testutil.CreateCourse(t, env.CatalogRepo, teach, "Go 101", catalog.StatusPublished, 0)

	_, err := env.EnrollmentSvc.AddToWishlist(ctx, access.Actor{}, course.ID)
	assert.True(t, core.IsPermissionError(err), "got %v", err)

	item, err := env.EnrollmentSvc.AddToWishlist(ctx, alice, course.ID)
	require.NoError(t, err)
	assert.Equal(t, course.ID, item.CourseID)

	_, err = env.EnrollmentSvc.AddToWishlist(ctx, alice, course.ID)
	assert.True(t, core.IsValidationError(err), "got %v", err)

	ids, err := env.EnrollmentSvc.WishlistCourseIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{course.ID}, ids)

	require.NoError(t, env.EnrollmentSvc.RemoveFromWishlist(ctx, alice, course.ID))
	items, err := env.EnrollmentSvc.ListWishlist(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, items)
}
