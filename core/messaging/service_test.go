package messaging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/messaging"
	"github.com/trezcool/somesha/testutil"
)

func participantIDs(d messaging.ConversationDetail) []string {
	ids := make([]string, 0, len(d.Participants))
	for _, p := range d.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

func TestService_CreateConversation(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teachUsr := env.Instructor(t, "teach")
	teach := access.NewActor(teachUsr)
	other := access.NewActor(env.Instructor(t, "other"))
	admin := access.NewActor(env.Admin(t, "admin"))
	aliceUsr := env.Student(t, "alice")
	bobUsr := env.Student(t, "bob")

	course := testutil.CreateCourse(t, env.CatalogRepo, teachUsr, "Go 101", catalog.StatusPublished, 0)
	testutil.Enroll(t, env.EnrollmentRepo, aliceUsr, course)
	testutil.Enroll(t, env.EnrollmentRepo, bobUsr, course)

	t.Run("instructor broadcasts to the course", func(t *testing.T) {
		conv, err := env.MessagingSvc.CreateConversation(ctx, teach, messaging.NewConversation{
			Title:                 "Announcements",
			CourseID:              course.ID,
			IncludeCourseStudents: true,
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{teach.ID, aliceUsr.ID, bobUsr.ID}, participantIDs(conv))
		assert.Nil(t, conv.LastMessage)
	})

	t.Run("only the course instructor", func(t *testing.T) {
		_, err := env.MessagingSvc.CreateConversation(ctx, other, messaging.NewConversation{CourseID: course.ID})
		assert.True(t, core.IsPermissionError(err), "got %v", err)
	})

	t.Run("admins bring the instructor in", func(t *testing.T) {
		conv, err := env.MessagingSvc.CreateConversation(ctx, admin, messaging.NewConversation{
			CourseID:       course.ID,
			ParticipantIDs: []string{aliceUsr.ID, aliceUsr.ID},
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{admin.ID, teach.ID, aliceUsr.ID}, participantIDs(conv))
	})

	t.Run("students do not broadcast", func(t *testing.T) {
		conv, err := env.MessagingSvc.CreateConversation(ctx, access.NewActor(aliceUsr), messaging.NewConversation{
			CourseID:              course.ID,
			IncludeCourseStudents: true,
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{aliceUsr.ID, teach.ID}, participantIDs(conv))
	})

	t.Run("without a course", func(t *testing.T) {
		conv, err := env.MessagingSvc.CreateConversation(ctx, access.NewActor(bobUsr), messaging.NewConversation{
			ParticipantIDs: []string{aliceUsr.ID},
		})
		require.NoError(t, err)
		assert.False(t, conv.CourseID.Valid)
		assert.ElementsMatch(t, []string{bobUsr.ID, aliceUsr.ID}, participantIDs(conv))
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := env.MessagingSvc.CreateConversation(ctx, access.Actor{}, messaging.NewConversation{})
		assert.True(t, core.IsPermissionError(err), "got %v", err)
	})

	convs, err := env.MessagingSvc.ListConversations(ctx, access.NewActor(bobUsr))
	require.NoError(t, err)
	assert.Len(t, convs, 2)

	convs, err = env.MessagingSvc.ListConversations(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, convs, 4)
}

func TestService_messages(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	alice := access.NewActor(env.Student(t, "alice"))
	bob := access.NewActor(env.Student(t, "bob"))
	eve := access.NewActor(env.Student(t, "eve"))
	admin := access.NewActor(env.Admin(t, "admin"))

	conv, err := env.MessagingSvc.CreateConversation(ctx, alice, messaging.NewConversation{ParticipantIDs: []string{bob.ID}})
	require.NoError(t, err)

	_, err = env.MessagingSvc.SendMessage(ctx, alice, messaging.NewMessage{ConversationID: alice.ID, Body: "lost"})
	assert.True(t, core.IsValidationError(err), "got %v", err)

	msg, err := env.MessagingSvc.SendMessage(ctx, alice, messaging.NewMessage{ConversationID: conv.ID, Body: "Hi Bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"message.sent"}, env.Events.Types())

	_, err = env.MessagingSvc.GetMessage(ctx, eve, msg.ID)
	assert.Equal(t, messaging.ErrMessageNotFound, err)

	_, _, err = env.MessagingSvc.MarkRead(ctx, admin, msg.ID)
	assert.True(t, core.IsPermissionError(err), "moderators do not leave receipts, got %v", err)

	_, created, err := env.MessagingSvc.MarkRead(ctx, alice, msg.ID)
	require.NoError(t, err)
	assert.False(t, created, "senders have read their own messages")

	d, err := env.MessagingSvc.GetConversation(ctx, bob, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.UnreadCount)

	edited, err := env.MessagingSvc.EditMessage(ctx, admin, msg.ID, messaging.UpdateMessage{Body: "[removed]"})
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)

	err = env.MessagingSvc.DeleteMessage(ctx, bob, msg.ID)
	assert.True(t, core.IsPermissionError(err), "got %v", err)
	require.NoError(t, env.MessagingSvc.DeleteMessage(ctx, alice, msg.ID))

	msgs, err := env.MessagingSvc.ListMessages(ctx, bob, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
