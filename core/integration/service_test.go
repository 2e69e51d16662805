package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/integration"
	"github.com/trezcool/somesha/testutil"
)

func TestType_IsValid(t *testing.T) {
	for _, typ := range integration.AllTypes {
		assert.True(t, typ.IsValid(), typ)
	}
	assert.False(t, integration.Type("myspace").IsValid())
	assert.False(t, integration.Type("").IsValid())
}

func TestService_Configure(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teach := access.NewActor(env.Instructor(t, "teach"))
	other := access.NewActor(env.Instructor(t, "other"))

	inactive := false
	li, err := env.IntegrationSvc.CreateIntegration(ctx, teach, integration.NewLMSIntegration{Type: integration.GoogleClassroom, IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, li.IsActive)
	assert.JSONEq(t, `{}`, string(li.Settings.JSON))

	_, err = env.IntegrationSvc.CreateIntegration(ctx, teach, integration.NewLMSIntegration{Type: integration.GoogleClassroom})
	assert.Equal(t, integration.ErrIntegrationExists, err)

	_, err = env.IntegrationSvc.Configure(ctx, other, li.ID, integration.GoogleClassroom, map[string]interface{}{"classroom_id": "x"})
	assert.True(t, core.IsPermissionError(err), "got %v", err)

	_, err = env.IntegrationSvc.Configure(ctx, teach, li.ID, integration.Zoom, map[string]interface{}{"api_key": "x"})
	assert.True(t, core.IsValidationError(err), "got %v", err)

	_, err = env.IntegrationSvc.Configure(ctx, teach, li.ID, integration.GoogleClassroom, map[string]interface{}{
		"classroom_id": "c-1",
		"client_id":    "id",
		"api_key":      "not a classroom setting",
	})
	require.NoError(t, err)

	li, err = env.IntegrationSvc.Configure(ctx, teach, li.ID, integration.GoogleClassroom, map[string]interface{}{"classroom_id": "c-2"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"classroom_id":"c-2","client_id":"id"}`, string(li.Settings.JSON))

	active := true
	li, err = env.IntegrationSvc.UpdateIntegration(ctx, teach, li.ID, integration.UpdateLMSIntegration{IsActive: &active})
	require.NoError(t, err)
	assert.True(t, li.IsActive)

	lis, err := env.IntegrationSvc.ListIntegrations(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, lis)
}

func TestService_meetings(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teachUsr := env.Instructor(t, "teach")
	teach := access.NewActor(teachUsr)
	admin := access.NewActor(env.Admin(t, "admin"))
	aliceUsr := env.Student(t, "alice")
	alice := access.NewActor(aliceUsr)

	course := testutil.CreateCourse(t, env.CatalogRepo, teachUsr, "Go 101", catalog.StatusPublished, 0)
	module := testutil.CreateModule(t, env.CatalogRepo, course, 1)
	lesson := testutil.CreateLesson(t, env.CatalogRepo, module, 1, true)
	testutil.Enroll(t, env.EnrollmentRepo, aliceUsr, course)

	canvas, err := env.IntegrationSvc.CreateIntegration(ctx, teach, integration.NewLMSIntegration{Type: integration.Canvas})
	require.NoError(t, err)
	zoom, err := env.IntegrationSvc.CreateIntegration(ctx, teach, integration.NewLMSIntegration{Type: integration.Zoom})
	require.NoError(t, err)

	start := time.Date(2030, 1, 10, 15, 0, 0, 0, time.UTC)
	_, err = env.IntegrationSvc.CreateMeeting(ctx, teach, integration.NewZoomMeeting{IntegrationID: canvas.ID, Topic: "x", StartTime: start})
	assert.True(t, core.IsPermissionError(err), "only zoom integrations schedule meetings, got %v", err)

	m, err := env.IntegrationSvc.CreateMeeting(ctx, teach, integration.NewZoomMeeting{
		IntegrationID:   zoom.ID,
		LessonID:        lesson.ID,
		Topic:           "Live coding",
		StartTime:       start,
		DurationMinutes: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, course.ID, m.CourseID.String, "course derived from the lesson")
	assert.Equal(t, 90, m.DurationMinutes)
	assert.Contains(t, m.JoinURL, m.MeetingID)

	got, err := env.IntegrationSvc.GetMeeting(ctx, alice, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	personal, err := env.IntegrationSvc.CreateMeeting(ctx, teach, integration.NewZoomMeeting{IntegrationID: zoom.ID, Topic: "1:1", StartTime: start})
	require.NoError(t, err)
	_, err = env.IntegrationSvc.GetMeeting(ctx, alice, personal.ID)
	assert.Equal(t, integration.ErrMeetingNotFound, err, "meetings without a course stay private")

	ms, err := env.IntegrationSvc.ListMeetings(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, ms, 2)

	require.NoError(t, env.IntegrationSvc.DeleteMeeting(ctx, admin, personal.ID))
}
