package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/integration"
)

const (
	lmsIntegrationColumns    = `id, user_id, integration_type, is_active, settings, created_at, updated_at`
	courseIntegrationColumns = `id, course_id, integration_id, external_id, external_url, synced_at, auto_sync`
	meetingColumns           = `id, integration_id, course_id, lesson_id, meeting_id, meeting_url, join_url, topic, start_time, duration_minutes, password, created_at, updated_at`
)

type integrationRepository struct {
	db executor
}

var _ integration.Repository = (*integrationRepository)(nil) // interface compliance check

func NewIntegrationRepository(db *sqlx.DB) *integrationRepository {
	return &integrationRepository{db: db}
}

func conflictErr(err error) error {
	if isUniqueViolation(err) {
		return core.NewConflictError(err.Error())
	}
	return err
}

func scopeWhere(scope integration.CourseScope) where {
	var w where
	w.in("course_id", scope.CourseIDs)
	if scope.CourseID != "" {
		w.add("course_id = ?", scope.CourseID)
	}
	return w
}

func (repo *integrationRepository) CreateIntegration(ctx context.Context, li integration.LMSIntegration) (integration.LMSIntegration, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO lms_integrations (`+lmsIntegrationColumns+`)
		VALUES (:id, :user_id, :integration_type, :is_active, :settings, :created_at, :updated_at)`,
		li,
	)
	return li, conflictErr(err)
}

func (repo *integrationRepository) GetIntegration(ctx context.Context, id string) (integration.LMSIntegration, error) {
	var li integration.LMSIntegration
	err := repo.db.GetContext(ctx, &li, "SELECT "+lmsIntegrationColumns+" FROM lms_integrations WHERE id = $1", id)
	return li, trapNoRowsErr(err, integration.ErrNotFound)
}

func (repo *integrationRepository) QueryIntegrations(ctx context.Context, userID string) ([]integration.LMSIntegration, error) {
	lis := make([]integration.LMSIntegration, 0)
	err := repo.db.SelectContext(ctx, &lis, `
		SELECT `+lmsIntegrationColumns+` FROM lms_integrations WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	return lis, err
}

func (repo *integrationRepository) UpdateIntegration(ctx context.Context, li integration.LMSIntegration) (integration.LMSIntegration, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE lms_integrations SET is_active = :is_active, settings = :settings, updated_at = :updated_at
		WHERE id = :id`,
		li,
	)
	if err = mustAffect(res, err, integration.ErrNotFound); err != nil {
		return integration.LMSIntegration{}, err
	}
	return li, nil
}

func (repo *integrationRepository) DeleteIntegration(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM lms_integrations WHERE id = $1", id)
	return mustAffect(res, err, integration.ErrNotFound)
}

func (repo *integrationRepository) CreateCourseIntegration(ctx context.Context, ci integration.CourseIntegration) (integration.CourseIntegration, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO course_integrations (`+courseIntegrationColumns+`)
		VALUES (:id, :course_id, :integration_id, :external_id, :external_url, :synced_at, :auto_sync)`,
		ci,
	)
	return ci, conflictErr(err)
}

func (repo *integrationRepository) GetCourseIntegration(ctx context.Context, id string) (integration.CourseIntegration, error) {
	var ci integration.CourseIntegration
	err := repo.db.GetContext(ctx, &ci, "SELECT "+courseIntegrationColumns+" FROM course_integrations WHERE id = $1", id)
	return ci, trapNoRowsErr(err, integration.ErrCourseIntegrationNotFound)
}

func (repo *integrationRepository) QueryCourseIntegrations(ctx context.Context, scope integration.CourseScope) ([]integration.CourseIntegration, error) {
	cis := make([]integration.CourseIntegration, 0)
	err := selectWhere(ctx, repo.db, &cis, "SELECT "+courseIntegrationColumns+" FROM course_integrations", scopeWhere(scope), " ORDER BY course_id")
	return cis, err
}

func (repo *integrationRepository) DeleteCourseIntegration(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM course_integrations WHERE id = $1", id)
	return mustAffect(res, err, integration.ErrCourseIntegrationNotFound)
}

func (repo *integrationRepository) CreateMeeting(ctx context.Context, m integration.ZoomMeeting) (integration.ZoomMeeting, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO zoom_meetings (`+meetingColumns+`)
		VALUES (:id, :integration_id, :course_id, :lesson_id, :meeting_id, :meeting_url, :join_url, :topic,
			:start_time, :duration_minutes, :password, :created_at, :updated_at)`,
		m,
	)
	return m, conflictErr(err)
}

func (repo *integrationRepository) GetMeeting(ctx context.Context, id string) (integration.ZoomMeeting, error) {
	var m integration.ZoomMeeting
	err := repo.db.GetContext(ctx, &m, "SELECT "+meetingColumns+" FROM zoom_meetings WHERE id = $1", id)
	return m, trapNoRowsErr(err, integration.ErrMeetingNotFound)
}

func (repo *integrationRepository) QueryMeetings(ctx context.Context, scope integration.CourseScope) ([]integration.ZoomMeeting, error) {
	ms := make([]integration.ZoomMeeting, 0)
	err := selectWhere(ctx, repo.db, &ms, "SELECT "+meetingColumns+" FROM zoom_meetings", scopeWhere(scope), " ORDER BY start_time")
	return ms, err
}

func (repo *integrationRepository) DeleteMeeting(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM zoom_meetings WHERE id = $1", id)
	return mustAffect(res, err, integration.ErrMeetingNotFound)
}
