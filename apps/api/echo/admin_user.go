package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/user"
)

const userModelName = "Usuário"

func (api *adminApi) queryUsers(ctx echo.Context) error {
	filter := &user.QueryFilter{
		Search:      ctx.QueryParam("q"),
		Group:       ctx.QueryParam("group"),
		IsActive:    queryBool(ctx, "is_active"),
		IsSuperuser: queryBool(ctx, "is_superuser"),
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.users.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *adminApi) queryGroups(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Groups)
}

func (api *adminApi) getUser(ctx echo.Context) (user.User, error) {
	id, err := paramID(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := api.users.GetByID(ctx.Request().Context(), id)
	return usr, errors.Wrap(err, "finding user by ID")
}

func (api *adminApi) createUser(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.users); err != nil {
		return err
	}

	usr, err := api.users.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, flash(usr, core.LevelSuccess, core.CreatedMessage(userModelName, usr)))
}

func (api *adminApi) retrieveUser(ctx echo.Context) error {
	usr, err := api.getUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *adminApi) updateUser(ctx echo.Context) error {
	usr, err := api.getUser(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, usr, api.validate, api.users); err != nil {
		return err
	}

	usr, err = api.users.Update(reqCtx, usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, flash(usr, core.LevelSuccess, core.UpdatedMessage(userModelName, usr)))
}

func (api *adminApi) destroyUser(ctx echo.Context) error {
	usr, err := api.getUser(ctx)
	if err != nil {
		return err
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err := api.users.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.JSON(http.StatusOK, flash(nil, core.LevelSuccess, core.DeletedMessage(userModelName)))
}
