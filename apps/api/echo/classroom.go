package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/classroom"
)

type classroomApi struct {
	svc      classroom.Service
	validate *validator.Validate
}

func registerClassroomAPI(g *echo.Group, deps ServerDeps) {
	api := classroomApi{
		svc:      deps.ClassroomSvc,
		validate: deps.Validate,
	}
	teacherOnly := roleMiddleware(account.RoleTeacher)

	g.POST("", api.create, teacherOnly)
	g.GET("", api.list)
	g.PUT("/:id", api.rename, teacherOnly)
	g.DELETE("/:id", api.destroy, teacherOnly)
	g.POST("/:id/students", api.assignStudent, teacherOnly)

	g.POST("/:id/posts", api.post)
	g.GET("/:id/posts", api.posts)
	g.DELETE("/:id/posts/:postID", api.deletePost)

	g.POST("/:id/assignments", api.createAssignment, teacherOnly)
	g.GET("/:id/assignments", api.assignments)
	g.POST("/:id/assignments/:assignmentID/submissions", api.submit, roleMiddleware(account.RoleStudent))
	g.GET("/:id/assignments/:assignmentID/submissions", api.submissions)
}

// Handlers

func (api *classroomApi) create(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}

	var data classroom.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	class, err := api.svc.CreateClass(ctx.Request().Context(), acc, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *classroomApi) list(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	classes, err := api.svc.Classes(ctx.Request().Context(), acc)
	if err != nil {
		return errors.Wrap(err, "listing classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classroomApi) rename(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	var data classroom.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	class, err := api.svc.RenameClass(ctx.Request().Context(), acc, id, data)
	if err != nil {
		return errors.Wrap(err, "renaming class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *classroomApi) destroy(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteClass(ctx.Request().Context(), acc, id); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) assignStudent(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	var data classroom.AssignStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	student, err := api.svc.AssignStudent(ctx.Request().Context(), acc, id, data)
	if err != nil {
		return errors.Wrap(err, "assigning student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *classroomApi) post(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	var data classroom.NewPost
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	upload, closeUpload, err := bindUpload(ctx, "attachment")
	if err != nil {
		return err
	}
	defer closeUpload()

	post, err := api.svc.Post(ctx.Request().Context(), acc, id, data, upload)
	if err != nil {
		return errors.Wrap(err, "posting to class")
	}
	return ctx.JSON(http.StatusCreated, post)
}

func (api *classroomApi) posts(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	posts, err := api.svc.Posts(ctx.Request().Context(), acc, id)
	if err != nil {
		return errors.Wrap(err, "listing posts")
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *classroomApi) deletePost(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	postID, err := paramID(ctx, "postID")
	if err != nil {
		return err
	}
	if err = api.svc.DeletePost(ctx.Request().Context(), acc, id, postID); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) createAssignment(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	var data classroom.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	assignment, err := api.svc.CreateAssignment(ctx.Request().Context(), acc, id, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, assignment)
}

func (api *classroomApi) assignments(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	assignments, err := api.svc.Assignments(ctx.Request().Context(), acc, id)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *classroomApi) submit(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	assignmentID, err := paramID(ctx, "assignmentID")
	if err != nil {
		return err
	}

	upload, closeUpload, err := bindUpload(ctx, "file")
	if err != nil {
		return err
	}
	defer closeUpload()

	sub, err := api.svc.Submit(ctx.Request().Context(), acc, id, assignmentID, upload)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *classroomApi) submissions(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	assignmentID, err := paramID(ctx, "assignmentID")
	if err != nil {
		return err
	}
	subs, err := api.svc.Submissions(ctx.Request().Context(), acc, id, assignmentID)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}
