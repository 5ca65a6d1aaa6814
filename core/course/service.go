package course

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/darasa/shule/core"
	"github.com/darasa/shule/core/notification"
)

type (
	Repository interface {
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)
		GetCategoryByID(ctx context.Context, id string) (Category, error)
		QueryAllCategories(ctx context.Context) ([]Category, error)

		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryAllCourses(ctx context.Context) ([]Course, error)

		CreateAssignment(ctx context.Context, a TeacherAssignment) (TeacherAssignment, error)
		GetAssignmentByID(ctx context.Context, id string) (TeacherAssignment, error)
		UpdateAssignment(ctx context.Context, a TeacherAssignment) (TeacherAssignment, error)
		QueryCourseAssignments(ctx context.Context, courseID string) ([]TeacherAssignment, error)
		QueryAllAssignments(ctx context.Context) ([]TeacherAssignment, error)
	}

	Service struct {
		repo     Repository
		notifSvc *notification.Service
		logger   core.Logger
	}
)

func NewService(repo Repository, notifSvc *notification.Service, logger core.Logger) *Service {
	return &Service{repo: repo, notifSvc: notifSvc, logger: logger}
}

func (svc *Service) Create(ctx context.Context, nc NewCourse, createdBy string) (Course, error) {
	if nc.CategoryID != "" {
		if _, err := svc.repo.GetCategoryByID(ctx, nc.CategoryID); err != nil {
			return Course{}, err
		}
	}

	now := time.Now().UTC()
	crs := Course{
		ID:          uuid.New().String(),
		Title:       core.CleanString(nc.Title),
		Description: core.CleanString(nc.Description),
		CategoryID:  nc.CategoryID,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryAllCourses(ctx)
}

// AssignTeacher links a teacher to a course and notifies them.
func (svc *Service) AssignTeacher(ctx context.Context, na NewAssignment) (TeacherAssignment, error) {
	crs, err := svc.repo.GetCourseByID(ctx, na.CourseID)
	if err != nil {
		return TeacherAssignment{}, err
	}

	existing, err := svc.repo.QueryCourseAssignments(ctx, na.CourseID)
	if err != nil {
		return TeacherAssignment{}, err
	}
	for _, a := range existing {
		if a.TeacherID == na.TeacherID {
			return TeacherAssignment{}, ErrAlreadyAssigned
		}
	}

	now := time.Now().UTC()
	a := TeacherAssignment{
		ID:               uuid.New().String(),
		CourseID:         na.CourseID,
		TeacherID:        na.TeacherID,
		Role:             na.Role,
		CanGrade:         na.CanGrade,
		CanManageContent: na.CanManageContent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	a, err = svc.repo.CreateAssignment(ctx, a)
	if err != nil {
		return TeacherAssignment{}, err
	}

	svc.notify(ctx, na.TeacherID, notification.Notification{
		Type:    notification.TypeCourse,
		Title:   "New course assignment",
		Message: fmt.Sprintf("You have been assigned to %q as %s teacher.", crs.Title, a.Role),
		Data:    map[string]interface{}{"courseId": crs.ID, "assignmentId": a.ID},
	})
	return a, nil
}

// UpdatePermissions changes an assignment's per-course permissions and
// notifies the affected teacher.
func (svc *Service) UpdatePermissions(ctx context.Context, assignmentID string, up UpdatePermissions) (TeacherAssignment, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return TeacherAssignment{}, err
	}

	if up.CanGrade != nil {
		a.CanGrade = *up.CanGrade
	}
	if up.CanManageContent != nil {
		a.CanManageContent = *up.CanManageContent
	}
	a.UpdatedAt = time.Now().UTC()

	a, err = svc.repo.UpdateAssignment(ctx, a)
	if err != nil {
		return TeacherAssignment{}, err
	}

	svc.notify(ctx, a.TeacherID, notification.Notification{
		Type:    notification.TypeCourse,
		Title:   "Course permissions updated",
		Message: "Your permissions on a course have changed.",
		Data:    map[string]interface{}{"courseId": a.CourseID, "assignmentId": a.ID},
	})
	return a, nil
}

func (svc *Service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	now := time.Now().UTC()
	cat := Category{
		ID:          uuid.New().String(),
		Name:        core.CleanString(nc.Name),
		Description: core.CleanString(nc.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCategory(ctx, cat)
}

func (svc *Service) UpdateCategory(ctx context.Context, id string, uc UpdateCategory) (Category, error) {
	cat, err := svc.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return Category{}, err
	}

	if uc.Name != "" {
		cat.Name = core.CleanString(uc.Name)
	}
	if uc.Description != "" {
		cat.Description = core.CleanString(uc.Description)
	}
	cat.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCategory(ctx, cat)
}

func (svc *Service) QueryCategories(ctx context.Context) ([]Category, error) {
	return svc.repo.QueryAllCategories(ctx)
}

// Workload aggregates every teacher's course load.
func (svc *Service) Workload(ctx context.Context) ([]TeacherWorkload, error) {
	assignments, err := svc.repo.QueryAllAssignments(ctx)
	if err != nil {
		return nil, err
	}
	return CalculateTeacherWorkload(assignments), nil
}

// notify is best-effort; a delivery failure never fails the mutation.
func (svc *Service) notify(ctx context.Context, userID string, n notification.Notification) {
	if svc.notifSvc == nil {
		return
	}
	if err := svc.notifSvc.Deliver(ctx, userID, n); err != nil {
		svc.logger.Warn(fmt.Sprintf("notifying user %s: %v", userID, err))
	}
}
