package course

import (
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound           = errors.New("course not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrAssignmentNotFound = errors.New("teacher assignment not found")
	ErrAlreadyAssigned    = errors.New("teacher is already assigned to this course")
)

// AssignmentRole distinguishes the lead teacher from assistants.
type AssignmentRole string

const (
	RolePrimary   AssignmentRole = "primary"
	RoleSecondary AssignmentRole = "secondary"
)

type (
	Category struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at"` // UTC
	}

	Course struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		CategoryID  string    `json:"category_id"`
		CreatedBy   string    `json:"created_by"`
		IsPublished bool      `json:"is_published"`
		CreatedAt   time.Time `json:"created_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at"` // UTC
	}

	// TeacherAssignment links a teacher to a course with per-course permissions.
	TeacherAssignment struct {
		ID               string         `json:"id"`
		CourseID         string         `json:"course_id"`
		TeacherID        string         `json:"teacher_id"`
		Role             AssignmentRole `json:"role"`
		CanGrade         bool           `json:"can_grade"`
		CanManageContent bool           `json:"can_manage_content"`
		CreatedAt        time.Time      `json:"created_at"` // UTC
		UpdatedAt        time.Time      `json:"updated_at"` // UTC
	}
)

type NewCourse struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id"`
}

type NewCategory struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type UpdateCategory struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type NewAssignment struct {
	CourseID         string         `json:"course_id" validate:"required"`
	TeacherID        string         `json:"teacher_id" validate:"required"`
	Role             AssignmentRole `json:"role" validate:"required,oneof=primary secondary"`
	CanGrade         bool           `json:"can_grade"`
	CanManageContent bool           `json:"can_manage_content"`
}

type UpdatePermissions struct {
	CanGrade         *bool `json:"can_grade"`
	CanManageContent *bool `json:"can_manage_content"`
}
