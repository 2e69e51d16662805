package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/catalog"
)

var (
	// errors
	ErrNotFound                  = core.NewNotFoundError("integration")
	ErrCourseIntegrationNotFound = core.NewNotFoundError("course integration")
	ErrMeetingNotFound           = core.NewNotFoundError("meeting")
	ErrIntegrationExists         = core.NewFieldError("integration_type", "You already have an integration of this type.")
	ErrCourseIntegrationExists   = core.NewFieldError("integration_id", "This course is already linked to the integration.")
)

type (
	Repository interface {
		CreateIntegration(ctx context.Context, li LMSIntegration) (LMSIntegration, error)
		GetIntegration(ctx context.Context, id string) (LMSIntegration, error)
		QueryIntegrations(ctx context.Context, userID string) ([]LMSIntegration, error)
		UpdateIntegration(ctx context.Context, li LMSIntegration) (LMSIntegration, error)
		DeleteIntegration(ctx context.Context, id string) error

		CreateCourseIntegration(ctx context.Context, ci CourseIntegration) (CourseIntegration, error)
		GetCourseIntegration(ctx context.Context, id string) (CourseIntegration, error)
		QueryCourseIntegrations(ctx context.Context, scope CourseScope) ([]CourseIntegration, error)
		DeleteCourseIntegration(ctx context.Context, id string) error

		CreateMeeting(ctx context.Context, m ZoomMeeting) (ZoomMeeting, error)
		GetMeeting(ctx context.Context, id string) (ZoomMeeting, error)
		QueryMeetings(ctx context.Context, scope CourseScope) ([]ZoomMeeting, error)
		DeleteMeeting(ctx context.Context, id string) error
	}

	Catalog interface {
		GetCourse(ctx context.Context, a access.Actor, id string) (catalog.Course, error)
		LessonCourse(ctx context.Context, a access.Actor, lessonID string) (catalog.Lesson, catalog.Course, error)
		OwnedCourseIDs(ctx context.Context, instructorID string) ([]string, error)
	}

	Enrollments interface {
		EnrolledCourseIDs(ctx context.Context, studentID string) ([]string, error)
	}

	Service struct {
		repo        Repository
		catalog     Catalog
		enrollments Enrollments
	}
)

func NewService(repo Repository, cat Catalog, enrollments Enrollments) *Service {
	return &Service{repo: repo, catalog: cat, enrollments: enrollments}
}

// LMS integrations

func (svc *Service) ListIntegrations(ctx context.Context, a access.Actor) ([]LMSIntegration, error) {
	lis, err := svc.repo.QueryIntegrations(ctx, a.ID)
	return lis, errors.Wrap(err, "querying integrations")
}

// GetIntegration returns one of a's own integrations.
func (svc *Service) GetIntegration(ctx context.Context, a access.Actor, id string) (LMSIntegration, error) {
	li, err := svc.repo.GetIntegration(ctx, id)
	if err != nil {
		return LMSIntegration{}, err
	}
	if li.UserID != a.ID {
		return LMSIntegration{}, ErrNotFound
	}
	return li, nil
}

func (svc *Service) CreateIntegration(ctx context.Context, a access.Actor, ni NewLMSIntegration) (LMSIntegration, error) {
	if err := access.Require(a, access.LinkIntegrations, "You cannot link integrations."); err != nil {
		return LMSIntegration{}, err
	}
	active := true
	if ni.IsActive != nil {
		active = *ni.IsActive
	}
	now := time.Now().UTC()
	li, err := svc.repo.CreateIntegration(ctx, LMSIntegration{
		ID:        uuid.New().String(),
		UserID:    a.ID,
		Type:      ni.Type,
		IsActive:  active,
		Settings:  null.JSONFrom([]byte("{}")),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if core.IsConflict(err) {
			return LMSIntegration{}, ErrIntegrationExists
		}
		return LMSIntegration{}, errors.Wrap(err, "creating integration")
	}
	return li, nil
}

func (svc *Service) UpdateIntegration(ctx context.Context, a access.Actor, id string, ui UpdateLMSIntegration) (LMSIntegration, error) {
	li, err := svc.GetIntegration(ctx, a, id)
	if err != nil {
		return LMSIntegration{}, err
	}
	if ui.IsActive != nil {
		li.IsActive = *ui.IsActive
	}
	li.UpdatedAt = time.Now().UTC()
	li, err = svc.repo.UpdateIntegration(ctx, li)
	return li, errors.Wrap(err, "updating integration")
}

func (svc *Service) DeleteIntegration(ctx context.Context, a access.Actor, id string) error {
	li, err := svc.GetIntegration(ctx, a, id)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteIntegration(ctx, li.ID), "deleting integration")
}

// Configure merges the provider settings allowed for the integration's type into its stored settings.
// Unknown keys are ignored.
func (svc *Service) Configure(ctx context.Context, a access.Actor, id string, typ Type, settings map[string]interface{}) (LMSIntegration, error) {
	li, err := svc.repo.GetIntegration(ctx, id)
	if err != nil {
		return LMSIntegration{}, err
	}
	if li.UserID != a.ID {
		return LMSIntegration{}, core.NewPermissionError("You can only configure your own integrations.")
	}
	if li.Type != typ {
		return LMSIntegration{}, core.NewFieldError("integration_type", fmt.Sprintf("This integration is not a %s integration.", typ.label()))
	}

	current := map[string]interface{}{}
	if li.Settings.Valid && len(li.Settings.JSON) > 0 {
		if err = li.Settings.Unmarshal(&current); err != nil {
			return LMSIntegration{}, errors.Wrap(err, "decoding settings")
		}
	}
	for _, key := range settingKeys[typ] {
		if val, ok := settings[key]; ok {
			current[key] = val
		}
	}
	raw, err := json.Marshal(current)
	if err != nil {
		return LMSIntegration{}, errors.Wrap(err, "encoding settings")
	}
	li.Settings = null.JSONFrom(raw)
	li.UpdatedAt = time.Now().UTC()
	li, err = svc.repo.UpdateIntegration(ctx, li)
	return li, errors.Wrap(err, "updating integration")
}

func (t Type) label() string {
	switch t {
	case Zoom:
		return "Zoom"
	case GoogleClassroom:
		return "Google Classroom"
	case MicrosoftTeams:
		return "Microsoft Teams"
	case Canvas:
		return "Canvas"
	case Blackboard:
		return "Blackboard"
	}
	return string(t)
}

// scope restricts course-linked records: admins see all, instructors their own courses,
// others the courses they are enrolled in.
func (svc *Service) scope(ctx context.Context, a access.Actor, courseID string) (CourseScope, error) {
	sc := CourseScope{CourseID: courseID}
	var err error
	switch {
	case a.IsAdmin():
	case a.IsInstructor():
		sc.CourseIDs, err = svc.catalog.OwnedCourseIDs(ctx, a.ID)
	default:
		sc.CourseIDs, err = svc.enrollments.EnrolledCourseIDs(ctx, a.ID)
	}
	if err == nil && sc.CourseIDs == nil && !a.IsAdmin() {
		sc.CourseIDs = []string{}
	}
	return sc, err
}

func (sc CourseScope) allows(courseID string) bool {
	if sc.CourseIDs == nil {
		return true
	}
	for _, id := range sc.CourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// Course integrations

func (svc *Service) ListCourseIntegrations(ctx context.Context, a access.Actor, courseID string) ([]CourseIntegration, error) {
	sc, err := svc.scope(ctx, a, courseID)
	if err != nil {
		return nil, err
	}
	cis, err := svc.repo.QueryCourseIntegrations(ctx, sc)
	return cis, errors.Wrap(err, "querying course integrations")
}

func (svc *Service) GetCourseIntegration(ctx context.Context, a access.Actor, id string) (CourseIntegration, error) {
	ci, err := svc.repo.GetCourseIntegration(ctx, id)
	if err != nil {
		return CourseIntegration{}, err
	}
	sc, err := svc.scope(ctx, a, "")
	if err != nil {
		return CourseIntegration{}, err
	}
	if !sc.allows(ci.CourseID) {
		return CourseIntegration{}, ErrCourseIntegrationNotFound
	}
	return ci, nil
}

func (svc *Service) CreateCourseIntegration(ctx context.Context, a access.Actor, nc NewCourseIntegration) (CourseIntegration, error) {
	course, err := svc.catalog.GetCourse(ctx, a, nc.CourseID)
	if err != nil {
		if core.IsNotFound(err) {
			return CourseIntegration{}, core.NewFieldError("course_id", err.Error())
		}
		return CourseIntegration{}, err
	}
	if err = access.RequireOwnerOrAdmin(a, course.InstructorID, "You can only create integrations for your own courses."); err != nil {
		return CourseIntegration{}, err
	}
	li, err := svc.repo.GetIntegration(ctx, nc.IntegrationID)
	if err != nil {
		if core.IsNotFound(err) {
			return CourseIntegration{}, core.NewFieldError("integration_id", err.Error())
		}
		return CourseIntegration{}, err
	}
	if li.UserID != a.ID {
		return CourseIntegration{}, core.NewPermissionError("You can only use your own LMS integrations.")
	}

	ci, err := svc.repo.CreateCourseIntegration(ctx, CourseIntegration{
		ID:            uuid.New().String(),
		CourseID:      course.ID,
		IntegrationID: li.ID,
		ExternalID:    nc.ExternalID,
		ExternalURL:   nc.ExternalURL,
		SyncedAt:      nc.SyncedAt,
		AutoSync:      nc.AutoSync,
	})
	if err != nil {
		if core.IsConflict(err) {
			return CourseIntegration{}, ErrCourseIntegrationExists
		}
		return CourseIntegration{}, errors.Wrap(err, "creating course integration")
	}
	return ci, nil
}

func (svc *Service) DeleteCourseIntegration(ctx context.Context, a access.Actor, id string) error {
	ci, err := svc.GetCourseIntegration(ctx, a, id)
	if err != nil {
		return err
	}
	course, err := svc.catalog.GetCourse(ctx, a, ci.CourseID)
	if err != nil {
		return err
	}
	if err = access.RequireOwnerOrAdmin(a, course.InstructorID, "You can only manage integrations of your own courses."); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteCourseIntegration(ctx, ci.ID), "deleting course integration")
}

// Zoom meetings

func (svc *Service) ListMeetings(ctx context.Context, a access.Actor, courseID string) ([]ZoomMeeting, error) {
	sc, err := svc.scope(ctx, a, courseID)
	if err != nil {
		return nil, err
	}
	ms, err := svc.repo.QueryMeetings(ctx, sc)
	return ms, errors.Wrap(err, "querying meetings")
}

func (svc *Service) GetMeeting(ctx context.Context, a access.Actor, id string) (ZoomMeeting, error) {
	m, err := svc.repo.GetMeeting(ctx, id)
	if err != nil {
		return ZoomMeeting{}, err
	}
	if a.IsAdmin() {
		return m, nil
	}
	if li, err := svc.repo.GetIntegration(ctx, m.IntegrationID); err == nil && li.UserID == a.ID {
		return m, nil
	}
	sc, err := svc.scope(ctx, a, "")
	if err != nil {
		return ZoomMeeting{}, err
	}
	if !m.CourseID.Valid || !sc.allows(m.CourseID.String) {
		return ZoomMeeting{}, ErrMeetingNotFound
	}
	return m, nil
}

// CreateMeeting schedules a meeting through one of a's Zoom integrations.
// No provider call is made: the meeting gets a locally generated id & URL.
func (svc *Service) CreateMeeting(ctx context.Context, a access.Actor, nm NewZoomMeeting) (ZoomMeeting, error) {
	li, err := svc.repo.GetIntegration(ctx, nm.IntegrationID)
	if err != nil {
		if core.IsNotFound(err) {
			return ZoomMeeting{}, core.NewFieldError("integration_id", err.Error())
		}
		return ZoomMeeting{}, err
	}
	if li.UserID != a.ID || li.Type != Zoom {
		return ZoomMeeting{}, core.NewPermissionError("You can only create meetings with your own Zoom integration.")
	}

	courseID := nm.CourseID
	if nm.LessonID != "" {
		_, course, err := svc.catalog.LessonCourse(ctx, a, nm.LessonID)
		if err != nil {
			if core.IsNotFound(err) {
				return ZoomMeeting{}, core.NewFieldError("lesson_id", err.Error())
			}
			return ZoomMeeting{}, err
		}
		if courseID == "" {
			courseID = course.ID
		}
	}
	if courseID != "" {
		if _, err = svc.catalog.GetCourse(ctx, a, courseID); err != nil {
			if core.IsNotFound(err) {
				return ZoomMeeting{}, core.NewFieldError("course_id", err.Error())
			}
			return ZoomMeeting{}, err
		}
	}

	duration := nm.DurationMinutes
	if duration == 0 {
		duration = 60
	}
	now := time.Now().UTC()
	meetingID := fmt.Sprintf("zoom_%d", now.UnixNano())
	url := "https://zoom.us/j/" + meetingID
	m, err := svc.repo.CreateMeeting(ctx, ZoomMeeting{
		ID:              uuid.New().String(),
		IntegrationID:   li.ID,
		CourseID:        null.NewString(courseID, courseID != ""),
		LessonID:        null.NewString(nm.LessonID, nm.LessonID != ""),
		MeetingID:       meetingID,
		MeetingURL:      url,
		JoinURL:         url,
		Topic:           nm.Topic,
		StartTime:       nm.StartTime.UTC(),
		DurationMinutes: duration,
		Password:        nm.Password,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	return m, errors.Wrap(err, "creating meeting")
}

func (svc *Service) DeleteMeeting(ctx context.Context, a access.Actor, id string) error {
	m, err := svc.GetMeeting(ctx, a, id)
	if err != nil {
		return err
	}
	if !a.IsAdmin() {
		li, err := svc.repo.GetIntegration(ctx, m.IntegrationID)
		if err != nil {
			return err
		}
		if li.UserID != a.ID {
			return core.NewPermissionError("You can only manage meetings of your own Zoom integration.")
		}
	}
	return errors.Wrap(svc.repo.DeleteMeeting(ctx, m.ID), "deleting meeting")
}
