package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasa/shule/core/course"
)

type courseRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	CategoryID  null.String `db:"category_id"`
	CreatedBy   null.String `db:"created_by"`
	IsPublished bool        `db:"is_published"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		CategoryID:  r.CategoryID.String,
		CreatedBy:   r.CreatedBy.String,
		IsPublished: r.IsPublished,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCategory(ctx context.Context, cat course.Category) (course.Category, error) {
	const query = `
INSERT INTO course_category (id, name, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := repo.db.ExecContext(ctx, query, cat.ID, cat.Name, cat.Description, cat.CreatedAt, cat.UpdatedAt)
	if err != nil {
		return course.Category{}, errors.Wrap(err, "creating category")
	}
	return cat, nil
}

func (repo *courseRepository) UpdateCategory(ctx context.Context, cat course.Category) (course.Category, error) {
	const query = `
UPDATE course_category SET name = $2, description = $3, updated_at = $4 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, cat.ID, cat.Name, cat.Description, cat.UpdatedAt)
	if err != nil {
		return course.Category{}, errors.Wrap(err, "updating category")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Category{}, course.ErrCategoryNotFound
	}
	return cat, nil
}

func (repo *courseRepository) GetCategoryByID(ctx context.Context, id string) (course.Category, error) {
	var cat course.Category
	const query = `SELECT id, name, description, created_at, updated_at FROM course_category WHERE id = $1`
	row := repo.db.QueryRowxContext(ctx, query, id)
	err := row.Scan(&cat.ID, &cat.Name, &cat.Description, &cat.CreatedAt, &cat.UpdatedAt)
	if err == sql.ErrNoRows {
		return course.Category{}, course.ErrCategoryNotFound
	}
	if err != nil {
		return course.Category{}, errors.Wrap(err, "getting category")
	}
	return cat, nil
}

func (repo *courseRepository) QueryAllCategories(ctx context.Context) ([]course.Category, error) {
	var cats []course.Category
	const query = `SELECT id, name, description, created_at, updated_at FROM course_category ORDER BY name`
	rows, err := repo.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var cat course.Category
		if err = rows.Scan(&cat.ID, &cat.Name, &cat.Description, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "querying categories")
		}
		cats = append(cats, cat)
	}
	return cats, errors.Wrap(rows.Err(), "querying categories")
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	const query = `
INSERT INTO course (id, title, description, category_id, created_by, is_published, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, query,
		crs.ID, crs.Title, crs.Description,
		null.NewString(crs.CategoryID, crs.CategoryID != ""),
		null.NewString(crs.CreatedBy, crs.CreatedBy != ""),
		crs.IsPublished, crs.CreatedAt, crs.UpdatedAt,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "creating course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM course WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return course.Course{}, course.ErrNotFound
	}
	if err != nil {
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM course ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) CreateAssignment(ctx context.Context, a course.TeacherAssignment) (course.TeacherAssignment, error) {
	const query = `
INSERT INTO teacher_assignment (id, course_id, teacher_id, role, can_grade, can_manage_content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, query,
		a.ID, a.CourseID, a.TeacherID, string(a.Role), a.CanGrade, a.CanManageContent, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return course.TeacherAssignment{}, errors.Wrap(err, "creating assignment")
	}
	return a, nil
}

func (repo *courseRepository) GetAssignmentByID(ctx context.Context, id string) (course.TeacherAssignment, error) {
	var a course.TeacherAssignment
	const query = `
SELECT id, course_id, teacher_id, role, can_grade, can_manage_content, created_at, updated_at
FROM teacher_assignment WHERE id = $1`
	row := repo.db.QueryRowxContext(ctx, query, id)
	err := row.Scan(&a.ID, &a.CourseID, &a.TeacherID, &a.Role, &a.CanGrade, &a.CanManageContent, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return course.TeacherAssignment{}, course.ErrAssignmentNotFound
	}
	if err != nil {
		return course.TeacherAssignment{}, errors.Wrap(err, "getting assignment")
	}
	return a, nil
}

func (repo *courseRepository) UpdateAssignment(ctx context.Context, a course.TeacherAssignment) (course.TeacherAssignment, error) {
	const query = `
UPDATE teacher_assignment
SET role = $2, can_grade = $3, can_manage_content = $4, updated_at = $5
WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, a.ID, string(a.Role), a.CanGrade, a.CanManageContent, a.UpdatedAt)
	if err != nil {
		return course.TeacherAssignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.TeacherAssignment{}, course.ErrAssignmentNotFound
	}
	return a, nil
}

func (repo *courseRepository) QueryCourseAssignments(ctx context.Context, courseID string) ([]course.TeacherAssignment, error) {
	return repo.queryAssignments(ctx,
		`SELECT id, course_id, teacher_id, role, can_grade, can_manage_content, created_at, updated_at
FROM teacher_assignment WHERE course_id = $1 ORDER BY created_at`, courseID)
}

func (repo *courseRepository) QueryAllAssignments(ctx context.Context) ([]course.TeacherAssignment, error) {
	return repo.queryAssignments(ctx,
		`SELECT id, course_id, teacher_id, role, can_grade, can_manage_content, created_at, updated_at
FROM teacher_assignment ORDER BY created_at`)
}

func (repo *courseRepository) queryAssignments(ctx context.Context, query string, args ...interface{}) ([]course.TeacherAssignment, error) {
	rows, err := repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	defer func() { _ = rows.Close() }()

	var assignments []course.TeacherAssignment
	for rows.Next() {
		var a course.TeacherAssignment
		if err = rows.Scan(&a.ID, &a.CourseID, &a.TeacherID, &a.Role, &a.CanGrade, &a.CanManageContent, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "querying assignments")
		}
		assignments = append(assignments, a)
	}
	return assignments, errors.Wrap(rows.Err(), "querying assignments")
}
