package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/user"
)

func TestCan(t *testing.T) {
	student := Actor{ID: "s", Role: user.RoleStudent}
	instructor := Actor{ID: "i", Role: user.RoleInstructor}
	admin := Actor{ID: "a", Role: user.RoleAdmin}

	tests := []struct {
		name  string
		actor Actor
		capa  Capability
		want  bool
	}{
		{name: "anonymous can't enroll", actor: Actor{}, capa: Enroll, want: false},
		{name: "unknown role has nothing", actor: Actor{ID: "x", Role: "superuser"}, capa: Enroll, want: false},
		{name: "student submits work", actor: student, capa: SubmitWork, want: true},
		{name: "instructor can't submit work", actor: instructor, capa: SubmitWork, want: false},
		{name: "admin can't submit work", actor: admin, capa: SubmitWork, want: false},
		{name: "admin submits on behalf", actor: admin, capa: SubmitOnBehalf, want: true},
		{name: "student can't grade", actor: student, capa: GradeSubmissions, want: false},
		{name: "instructor grades", actor: instructor, capa: GradeSubmissions, want: true},
		{name: "student can't author", actor: student, capa: AuthorCourses, want: false},
		{name: "instructor authors", actor: instructor, capa: AuthorCourses, want: true},
		{name: "instructor can't override", actor: instructor, capa: OverrideOwnership, want: false},
		{name: "admin overrides", actor: admin, capa: OverrideOwnership, want: true},
		{name: "only admin views platform stats", actor: instructor, capa: ViewPlatformStats, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Can(tc.actor, tc.capa))
		})
	}
}

func TestRequire(t *testing.T) {
	err := Require(Actor{ID: "i", Role: user.RoleInstructor}, SubmitWork, "Only students can submit quizzes.")
	assert.True(t, core.IsPermissionError(err))
	assert.EqualError(t, err, "Only students can submit quizzes.")

	assert.NoError(t, Require(Actor{ID: "s", Role: user.RoleStudent}, SubmitWork, "nope"))
}

func TestRequireOwnerOrAdmin(t *testing.T) {
	owner := Actor{ID: "owner", Role: user.RoleInstructor}
	other := Actor{ID: "other", Role: user.RoleInstructor}
	admin := Actor{ID: "admin", Role: user.RoleAdmin}

	assert.NoError(t, RequireOwnerOrAdmin(owner, "owner", "denied"))
	assert.NoError(t, RequireOwnerOrAdmin(admin, "owner", "denied"))
	assert.True(t, core.IsPermissionError(RequireOwnerOrAdmin(other, "owner", "denied")))
	assert.True(t, core.IsPermissionError(RequireOwnerOrAdmin(Actor{}, "", "denied")))
}
