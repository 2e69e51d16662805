// Package access derives what an actor may do from its role.
//
// Every mutating operation checks a Capability through Can / Require instead of comparing role
// strings, so the role -> capability table below is the single place permissions are defined.
package access

import (
	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/user"
)

// Actor is the authenticated identity an operation runs for. The zero Actor is anonymous.
type Actor struct {
	ID   string
	Role user.Role
}

func NewActor(usr user.User) Actor {
	return Actor{ID: usr.ID, Role: usr.Role}
}

func (a Actor) IsAuthenticated() bool { return a.ID != "" && a.Role.IsValid() }
func (a Actor) IsAdmin() bool         { return a.Role == user.RoleAdmin }
func (a Actor) IsInstructor() bool    { return a.Role == user.RoleInstructor }
func (a Actor) IsStudent() bool       { return a.Role == user.RoleStudent }

type Capability string

// Capabilities
const (
	// AuthorCourses allows creating courses (owned by the actor) and question bank entries.
	AuthorCourses Capability = "author_courses"
	// OverrideOwnership allows acting on resources owned by someone else.
	OverrideOwnership Capability = "override_ownership"
	// ViewAllContent allows seeing drafts, unpublished lessons and every listing unscoped.
	ViewAllContent Capability = "view_all_content"
	// BrowseUnpublished allows seeing unpublished lessons of visible courses.
	BrowseUnpublished Capability = "browse_unpublished"
	Enroll            Capability = "enroll"
	SubmitWork        Capability = "submit_work"
	SubmitOnBehalf    Capability = "submit_on_behalf"
	GradeSubmissions  Capability = "grade_submissions"
	ManageUsers       Capability = "manage_users"
	ViewCourseStats   Capability = "view_course_stats"
	ViewPlatformStats Capability = "view_platform_stats"
	Converse          Capability = "converse"
	ModerateMessages  Capability = "moderate_messages"
	LinkIntegrations  Capability = "link_integrations"
)

var roleCapabilities = map[user.Role]map[Capability]bool{
	user.RoleStudent: {
		Enroll:           true,
		SubmitWork:       true,
		Converse:         true,
		LinkIntegrations: true,
	},
	user.RoleInstructor: {
		AuthorCourses:     true,
		BrowseUnpublished: true,
		Enroll:            true,
		GradeSubmissions:  true,
		ViewCourseStats:   true,
		Converse:          true,
		LinkIntegrations:  true,
	},
	user.RoleAdmin: {
		AuthorCourses:     true,
		OverrideOwnership: true,
		ViewAllContent:    true,
		BrowseUnpublished: true,
		Enroll:            true,
		SubmitOnBehalf:    true,
		GradeSubmissions:  true,
		ManageUsers:       true,
		ViewCourseStats:   true,
		ViewPlatformStats: true,
		Converse:          true,
		ModerateMessages:  true,
		LinkIntegrations:  true,
	},
}

// Can reports whether the actor's role grants the capability. Anonymous actors have none.
func Can(a Actor, c Capability) bool {
	if !a.IsAuthenticated() {
		return false
	}
	return roleCapabilities[a.Role][c]
}

// Require returns a PermissionError carrying msg unless the actor holds the capability.
func Require(a Actor, c Capability, msg string) error {
	if !Can(a, c) {
		return core.NewPermissionError(msg)
	}
	return nil
}

// IsOwnerOrAdmin reports whether the actor owns the resource or may override ownership.
func IsOwnerOrAdmin(a Actor, ownerID string) bool {
	if !a.IsAuthenticated() {
		return false
	}
	return (ownerID != "" && a.ID == ownerID) || Can(a, OverrideOwnership)
}

func RequireOwnerOrAdmin(a Actor, ownerID, msg string) error {
	if !IsOwnerOrAdmin(a, ownerID) {
		return core.NewPermissionError(msg)
	}
	return nil
}
