package dummydb

import (
	"context"
	"sort"

	"github.com/darasa/shule/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) CreateCategory(ctx context.Context, cat course.Category) (course.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *courseRepository) UpdateCategory(ctx context.Context, cat course.Category) (course.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[cat.ID]; !ok {
		return course.Category{}, course.ErrCategoryNotFound
	}
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *courseRepository) GetCategoryByID(ctx context.Context, id string) (course.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cat, ok := repo.db.categories[id]; ok {
		return *cat, nil
	}
	return course.Category{}, course.ErrCategoryNotFound
}

func (repo *courseRepository) QueryAllCategories(ctx context.Context) ([]course.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cats := make([]course.Category, 0, len(repo.db.categories))
	for _, cat := range repo.db.categories {
		cats = append(cats, *cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) CreateAssignment(ctx context.Context, a course.TeacherAssignment) (course.TeacherAssignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *courseRepository) GetAssignmentByID(ctx context.Context, id string) (course.TeacherAssignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return course.TeacherAssignment{}, course.ErrAssignmentNotFound
}

func (repo *courseRepository) UpdateAssignment(ctx context.Context, a course.TeacherAssignment) (course.TeacherAssignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[a.ID]; !ok {
		return course.TeacherAssignment{}, course.ErrAssignmentNotFound
	}
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *courseRepository) QueryCourseAssignments(ctx context.Context, courseID string) ([]course.TeacherAssignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var assignments []course.TeacherAssignment
	for _, a := range repo.db.assignments {
		if a.CourseID == courseID {
			assignments = append(assignments, *a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].CreatedAt.Before(assignments[j].CreatedAt) })
	return assignments, nil
}

func (repo *courseRepository) QueryAllAssignments(ctx context.Context) ([]course.TeacherAssignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]course.TeacherAssignment, 0, len(repo.db.assignments))
	for _, a := range repo.db.assignments {
		assignments = append(assignments, *a)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].CreatedAt.Before(assignments[j].CreatedAt) })
	return assignments, nil
}
