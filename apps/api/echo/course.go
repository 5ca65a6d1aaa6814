package echoapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasa/shule/core"
	"github.com/darasa/shule/core/course"
	"github.com/darasa/shule/core/ratelimit"
)

type courseApi struct {
	conf *core.Config
	svc  *course.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, svc *course.Service, rl *rateLimiter) {
	api := courseApi{conf: conf, svc: svc}

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create, teacherMiddleware(), rl.limit(ratelimit.OpCourseCreation))
	cg.GET("", api.query)
	cg.GET("/workload", api.workload, adminMiddleware())
	cg.GET("/:id", api.retrieve)
	cg.POST("/:id/files", api.uploadFile, teacherMiddleware(), rl.limit(ratelimit.OpFileUpload))
	cg.POST("/:id/teachers", api.assignTeacher, adminMiddleware(), rl.limit(ratelimit.OpTeacherAssignment))
	cg.PUT("/assignments/:id/permissions", api.updatePermissions, adminMiddleware(), rl.limit(ratelimit.OpPermissionUpdate))

	catg := g.Group("/categories", jwt)
	catg.GET("", api.queryCategories)
	catg.POST("", api.createCategory, adminMiddleware(), rl.limit(ratelimit.OpCategoryCreation))
	catg.PUT("/:id", api.updateCategory, adminMiddleware(), rl.limit(ratelimit.OpCategoryUpdate))
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		if errors.Cause(err) == course.ErrCategoryNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "category_id", Error: err.Error()})
		}
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	courses, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

// workload reports every teacher's aggregated course load.
func (api *courseApi) workload(ctx echo.Context) error {
	workloads, err := api.svc.Workload(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "calculating workload")
	}
	return ctx.JSON(http.StatusOK, workloads)
}

func (api *courseApi) assignTeacher(ctx echo.Context) error {
	var data course.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	data.CourseID = ctx.Param("id")
	if err := data.Validate(); err != nil {
		return err
	}

	a, err := api.svc.AssignTeacher(ctx.Request().Context(), data)
	if err != nil {
		switch errors.Cause(err) {
		case course.ErrNotFound:
			return errHttpNotFound
		case course.ErrAlreadyAssigned:
			return core.NewValidationError(err, core.FieldError{Field: "teacher_id", Error: err.Error()})
		}
		return errors.Wrap(err, "assigning teacher")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *courseApi) updatePermissions(ctx echo.Context) error {
	var data course.UpdatePermissions
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePermissions")
	}

	a, err := api.svc.UpdatePermissions(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == course.ErrAssignmentNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating permissions")
	}
	return ctx.JSON(http.StatusOK, a)
}

// uploadFile stores one multipart file under the course's media directory.
func (api *courseApi) uploadFile(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting course")
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "file", Error: "file is required"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = src.Close() }()

	dir := filepath.Join(api.conf.WorkDir, "media", "courses", crs.ID)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating media directory")
	}

	name := filepath.Base(fileHeader.Filename)
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	defer func() { _ = dst.Close() }()

	size, err := io.Copy(dst, src)
	if err != nil {
		return errors.Wrap(err, "saving file")
	}

	return ctx.JSON(http.StatusCreated, echo.Map{
		"course_id": crs.ID,
		"filename":  name,
		"size":      size,
	})
}

func (api *courseApi) queryCategories(ctx echo.Context) error {
	cats, err := api.svc.QueryCategories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []course.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *courseApi) createCategory(ctx echo.Context) error {
	var data course.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	cat, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *courseApi) updateCategory(ctx echo.Context) error {
	var data course.UpdateCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCategory")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	cat, err := api.svc.UpdateCategory(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == course.ErrCategoryNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating category")
	}
	return ctx.JSON(http.StatusOK, cat)
}
