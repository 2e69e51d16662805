package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/somesha/core/analytics"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/user"
)

type analyticsSource struct {
	db *DB
}

var _ analytics.Source = (*analyticsSource)(nil) // interface compliance check

func NewAnalyticsSource(db *DB) *analyticsSource {
	return &analyticsSource{db: db}
}

func (src *analyticsSource) CourseStats(_ context.Context, instructorID string) ([]analytics.CourseStats, error) {
	db := src.db
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	courses := values(db.courses, func(c catalog.Course) bool { return instructorID == "" || c.InstructorID == instructorID })
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })

	idx := make(map[string]int, len(courses))
	stats := make([]analytics.CourseStats, 0, len(courses))
	for i, c := range courses {
		idx[c.ID] = i
		stats = append(stats, analytics.CourseStats{Course: c})
	}

	for _, e := range db.enrollments {
		if i, ok := idx[e.CourseID]; ok {
			stats[i].Enrollments++
			stats[i].ProgressSum += e.Progress
			if e.Progress >= 100 {
				stats[i].CompletedEnrollments++
			}
		}
	}
	for _, s := range db.quizSubs {
		if i, ok := idx[db.courseOf(db.quizzes[s.QuizID].ModuleID)]; ok {
			stats[i].QuizSubmissions++
			stats[i].QuizScoreSum += s.Score
		}
	}
	for _, s := range db.assignmentSubs {
		if i, ok := idx[db.courseOf(db.assignments[s.AssignmentID].ModuleID)]; ok {
			stats[i].AssignmentSubmissions++
		}
	}
	return stats, nil
}

func (src *analyticsSource) PlatformStats(context.Context) (analytics.PlatformStats, error) {
	db := src.db
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	ps := analytics.PlatformStats{
		TotalUsers:                 len(db.users),
		TotalCourses:               len(db.courses),
		TotalEnrollments:           len(db.enrollments),
		TotalAssignmentSubmissions: len(db.assignmentSubs),
		TotalQuizSubmissions:       len(db.quizSubs),
	}
	for _, u := range db.users {
		switch u.Role {
		case user.RoleStudent:
			ps.TotalStudents++
		case user.RoleInstructor, user.RoleAdmin:
			ps.TotalInstructors++
		}
	}

	cats := make(map[string]*analytics.CategoryStats)
	for _, c := range db.courses {
		cs, ok := cats[c.Category]
		if !ok {
			cs = &analytics.CategoryStats{Category: c.Category}
			cats[c.Category] = cs
		}
		cs.CourseCount++
	}
	for _, e := range db.enrollments {
		c, ok := db.courses[e.CourseID]
		if !ok {
			continue
		}
		ps.EstimatedRevenue += c.Price
		cats[c.Category].Enrollments++
	}

	ps.CategoryBreakdown = make([]analytics.CategoryStats, 0, len(cats))
	for _, cs := range cats {
		ps.CategoryBreakdown = append(ps.CategoryBreakdown, *cs)
	}
	return ps, nil
}
