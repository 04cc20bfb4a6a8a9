package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/community"
)

type communityApi struct {
	svc      community.Service
	validate *validator.Validate
}

func registerCommunityAPI(g *echo.Group, deps ServerDeps) {
	api := communityApi{
		svc:      deps.CommunitySvc,
		validate: deps.Validate,
	}

	g.POST("/messages", api.sendMessage)
	g.GET("/messages", api.messages)

	g.POST("/library", api.publish)
	g.GET("/library", api.searchLibrary)
	g.DELETE("/library/:id", api.removeLibraryContent)

	g.POST("/programs", api.createProgram, roleMiddleware(account.RoleCommunity, account.RoleTeacher))
	g.GET("/programs", api.programs)
	g.POST("/programs/:id/subscription", api.subscribe)
	g.DELETE("/programs/:id/subscription", api.unsubscribe)
}

// Handlers

func (api *communityApi) sendMessage(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}

	var data community.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.SendMessage(ctx.Request().Context(), acc, data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *communityApi) messages(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	msgs, err := api.svc.Messages(ctx.Request().Context(), acc)
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *communityApi) publish(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}

	var data community.NewLibraryContent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLibraryContent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	upload, closeUpload, err := bindUpload(ctx, "file")
	if err != nil {
		return err
	}
	defer closeUpload()

	content, err := api.svc.Publish(ctx.Request().Context(), acc, data, upload)
	if err != nil {
		return errors.Wrap(err, "publishing library content")
	}
	return ctx.JSON(http.StatusCreated, content)
}

func (api *communityApi) searchLibrary(ctx echo.Context) error {
	var filter community.LibraryFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to LibraryFilter")
	}

	contents, err := api.svc.SearchLibrary(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "searching library")
	}
	return ctx.JSON(http.StatusOK, contents)
}

func (api *communityApi) removeLibraryContent(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.RemoveLibraryContent(ctx.Request().Context(), acc, id); err != nil {
		return errors.Wrap(err, "removing library content")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *communityApi) createProgram(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}

	var data community.NewProgram
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProgram")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	prog, err := api.svc.CreateProgram(ctx.Request().Context(), acc, data)
	if err != nil {
		return errors.Wrap(err, "creating program")
	}
	return ctx.JSON(http.StatusCreated, prog)
}

func (api *communityApi) programs(ctx echo.Context) error {
	progs, err := api.svc.Programs(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing programs")
	}
	return ctx.JSON(http.StatusOK, progs)
}

func (api *communityApi) subscribe(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	sub, err := api.svc.Subscribe(ctx.Request().Context(), acc, id)
	if err != nil {
		return errors.Wrap(err, "subscribing to program")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *communityApi) unsubscribe(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Unsubscribe(ctx.Request().Context(), acc, id); err != nil {
		return errors.Wrap(err, "unsubscribing from program")
	}
	return ctx.NoContent(http.StatusNoContent)
}
