package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/user"
)

func TestCourse_VisibleTo(t *testing.T) {
	owner := access.Actor{ID: "owner", Role: user.RoleInstructor}
	other := access.Actor{ID: "other", Role: user.RoleInstructor}
	student := access.Actor{ID: "student", Role: user.RoleStudent}
	admin := access.Actor{ID: "admin", Role: user.RoleAdmin}

	tests := []struct {
		status CourseStatus
		actor  access.Actor
		want   bool
	}{
		{StatusPublished, access.Actor{}, true},
		{StatusPublished, student, true},
		{StatusDraft, access.Actor{}, false},
		{StatusDraft, student, false},
		{StatusDraft, other, false},
		{StatusDraft, owner, true},
		{StatusDraft, admin, true},
		{StatusArchived, other, false},
		{StatusArchived, owner, true},
	}
	for _, tt := range tests {
		c := Course{InstructorID: owner.ID, Status: tt.status}
		assert.Equal(t, tt.want, c.VisibleTo(tt.actor), "%s course, actor %q", tt.status, tt.actor.ID)
	}
}

func TestQuiz_Public(t *testing.T) {
	q := Quiz{
		ID: "quiz",
		Questions: []Question{
			{ID: "q1", Points: 2, Choices: []Choice{{ID: "c1", Text: "yes", IsCorrect: true}, {ID: "c2", Text: "no"}}},
			{ID: "q2", Points: 3, Type: ShortAnswer},
		},
	}
	assert.Equal(t, 5, q.TotalPoints())

	pub := q.Public()
	require.Len(t, pub.Questions, 2)
	assert.Equal(t, []PublicChoice{{ID: "c1", Text: "yes"}, {ID: "c2", Text: "no"}}, pub.Questions[0].Choices)
	assert.Empty(t, pub.Questions[1].Choices)
	assert.NotNil(t, pub.Questions[1].Choices)
}

func TestQuestion_Choice(t *testing.T) {
	qn := Question{Choices: []Choice{{ID: "a"}, {ID: "b", IsCorrect: true}}}
	c, ok := qn.Choice("b")
	assert.True(t, ok)
	assert.True(t, c.IsCorrect)
	_, ok = qn.Choice("z")
	assert.False(t, ok)
}

func TestBuildQuestions(t *testing.T) {
	three := 3
	qs, err := buildQuestions("quiz", []NewQuestion{
		{Prompt: "second", Type: TrueFalse, Order: 2, Choices: []NewChoice{{Text: "True", IsCorrect: true}, {Text: "False"}}},
		{Prompt: "first", Type: ShortAnswer, Order: 1, Points: &three},
		{Prompt: "third", Type: MultipleChoice},
	})
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.Equal(t, "first", qs[0].Prompt)
	assert.Equal(t, 3, qs[0].Points)
	assert.Equal(t, "second", qs[1].Prompt)
	assert.Equal(t, 1, qs[1].Points)
	assert.Equal(t, 3, qs[2].Order)
	for _, c := range qs[1].Choices {
		assert.Equal(t, qs[1].ID, c.QuestionID)
	}

	_, err = buildQuestions("quiz", []NewQuestion{{Prompt: "a", Order: 1}, {Prompt: "b", Order: 1}})
	assert.True(t, core.IsValidationError(err), "got %v", err)
}

func TestNextOrder(t *testing.T) {
	orders := []int{3, 1, 7}
	assert.Equal(t, 8, nextOrder(len(orders), func(i int) int { return orders[i] }))
	assert.Equal(t, 1, nextOrder(0, nil))
}
