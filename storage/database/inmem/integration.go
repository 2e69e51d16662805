package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/integration"
)

type integrationRepository struct {
	db *DB
}

var _ integration.Repository = (*integrationRepository)(nil) // interface compliance check

func NewIntegrationRepository(db *DB) *integrationRepository {
	return &integrationRepository{db: db}
}

func inScope(scope integration.CourseScope, courseID string) bool {
	if scope.CourseIDs != nil && !containsID(scope.CourseIDs, courseID) {
		return false
	}
	return scope.CourseID == "" || courseID == scope.CourseID
}

func (repo *integrationRepository) CreateIntegration(_ context.Context, li integration.LMSIntegration) (integration.LMSIntegration, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, other := range repo.db.integrations {
		if other.UserID == li.UserID && other.Type == li.Type {
			return integration.LMSIntegration{}, core.NewConflictError("integration already exists")
		}
	}
	repo.db.integrations[li.ID] = li
	return li, nil
}

func (repo *integrationRepository) GetIntegration(_ context.Context, id string) (integration.LMSIntegration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if li, ok := repo.db.integrations[id]; ok {
		return li, nil
	}
	return integration.LMSIntegration{}, integration.ErrNotFound
}

func (repo *integrationRepository) QueryIntegrations(_ context.Context, userID string) ([]integration.LMSIntegration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	lis := values(repo.db.integrations, func(li integration.LMSIntegration) bool { return li.UserID == userID })
	sort.Slice(lis, func(i, j int) bool { return lis[i].CreatedAt.Before(lis[j].CreatedAt) })
	return lis, nil
}

func (repo *integrationRepository) UpdateIntegration(_ context.Context, li integration.LMSIntegration) (integration.LMSIntegration, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	orig, ok := repo.db.integrations[li.ID]
	if !ok {
		return integration.LMSIntegration{}, integration.ErrNotFound
	}
	orig.IsActive = li.IsActive
	orig.Settings = li.Settings
	orig.UpdatedAt = li.UpdatedAt
	repo.db.integrations[li.ID] = orig
	return orig, nil
}

func (repo *integrationRepository) DeleteIntegration(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.integrations[id]; !ok {
		return integration.ErrNotFound
	}
	for cid, ci := range repo.db.courseIntegrations {
		if ci.IntegrationID == id {
			delete(repo.db.courseIntegrations, cid)
		}
	}
	for mid, m := range repo.db.meetings {
		if m.IntegrationID == id {
			delete(repo.db.meetings, mid)
		}
	}
	delete(repo.db.integrations, id)
	return nil
}

func (repo *integrationRepository) CreateCourseIntegration(_ context.Context, ci integration.CourseIntegration) (integration.CourseIntegration, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, other := range repo.db.courseIntegrations {
		if other.CourseID == ci.CourseID && other.IntegrationID == ci.IntegrationID {
			return integration.CourseIntegration{}, core.NewConflictError("course integration already exists")
		}
	}
	repo.db.courseIntegrations[ci.ID] = ci
	return ci, nil
}

func (repo *integrationRepository) GetCourseIntegration(_ context.Context, id string) (integration.CourseIntegration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if ci, ok := repo.db.courseIntegrations[id]; ok {
		return ci, nil
	}
	return integration.CourseIntegration{}, integration.ErrCourseIntegrationNotFound
}

func (repo *integrationRepository) QueryCourseIntegrations(_ context.Context, scope integration.CourseScope) ([]integration.CourseIntegration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	cis := values(repo.db.courseIntegrations, func(ci integration.CourseIntegration) bool { return inScope(scope, ci.CourseID) })
	sort.Slice(cis, func(i, j int) bool { return cis[i].CourseID < cis[j].CourseID })
	return cis, nil
}

func (repo *integrationRepository) DeleteCourseIntegration(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.courseIntegrations[id]; !ok {
		return integration.ErrCourseIntegrationNotFound
	}
	delete(repo.db.courseIntegrations, id)
	return nil
}

func (repo *integrationRepository) CreateMeeting(_ context.Context, m integration.ZoomMeeting) (integration.ZoomMeeting, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, other := range repo.db.meetings {
		if other.MeetingID == m.MeetingID {
			return integration.ZoomMeeting{}, core.NewConflictError("meeting already exists")
		}
	}
	repo.db.meetings[m.ID] = m
	return m, nil
}

func (repo *integrationRepository) GetMeeting(_ context.Context, id string) (integration.ZoomMeeting, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if m, ok := repo.db.meetings[id]; ok {
		return m, nil
	}
	return integration.ZoomMeeting{}, integration.ErrMeetingNotFound
}

func (repo *integrationRepository) QueryMeetings(_ context.Context, scope integration.CourseScope) ([]integration.ZoomMeeting, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	ms := values(repo.db.meetings, func(m integration.ZoomMeeting) bool {
		if !m.CourseID.Valid {
			return scope.CourseIDs == nil && scope.CourseID == ""
		}
		return inScope(scope, m.CourseID.String)
	})
	sort.Slice(ms, func(i, j int) bool { return ms[i].StartTime.Before(ms[j].StartTime) })
	return ms, nil
}

func (repo *integrationRepository) DeleteMeeting(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.meetings[id]; !ok {
		return integration.ErrMeetingNotFound
	}
	delete(repo.db.meetings, id)
	return nil
}
