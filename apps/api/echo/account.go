package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/aviso"
	"github.com/trezcool/janus/core/user"
)

const passwordResetSent = "Se o email informado estiver associado a uma conta ativa, " +
	"você receberá em instantes as instruções para redefinir sua senha."

type accountApi struct {
	auth     *authenticator
	users    *user.Service
	avisos   *aviso.Service
	validate *validator.Validate
	logger   core.Logger
}

func registerAccountAPI(g *echo.Group, authed, limited echo.MiddlewareFunc, auth *authenticator, deps *Deps) {
	api := accountApi{
		auth:     auth,
		users:    deps.UserSvc,
		avisos:   deps.AvisoSvc,
		validate: deps.Validate,
		logger:   deps.Logger,
	}

	// un-authed endpoints
	g.POST("/login", api.login, limited)
	g.POST("/password-reset", api.resetPassword, limited)
	g.POST("/password-reset-confirm", api.confirmPasswordReset, limited)

	// authed endpoints
	g.POST("/logout", api.logout, authed)
	g.GET("/menu", api.menu, authed)
}

// Handlers

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	token, usr, err := api.auth.login(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, FirstName: usr.FirstName})
}

func (api *accountApi) logout(ctx echo.Context) error {
	if err := api.auth.logout(ctx); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) menu(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	avisos, err := api.avisos.Query(ctx.Request().Context(), "")
	if err != nil {
		return errors.Wrap(err, "querying avisos")
	}
	if avisos == nil {
		avisos = []aviso.Aviso{}
	}
	return ctx.JSON(http.StatusOK, MenuResponse{
		FirstName:    usr.FirstName,
		IsSuperuser:  usr.IsSuperuser,
		IsSupervisor: usr.IsSupervisor(),
		IsTecnico:    usr.IsTecnico(),
		IsTopografo:  usr.IsTopografo(),
		Avisos:       avisos,
	})
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.users.RequestPasswordReset(ctx.Request().Context(), data.Email)
	if !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetSent})
}

func (api *accountApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.users.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Sua senha foi redefinida."})
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token     string `json:"token"`
		FirstName string `json:"first_name"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	MenuResponse struct {
		FirstName    string        `json:"first_name"`
		IsSuperuser  bool          `json:"is_superuser"`
		IsSupervisor bool          `json:"usuario_no_grupo_supervisor"`
		IsTecnico    bool          `json:"usuario_no_grupo_tecnicos"`
		IsTopografo  bool          `json:"usuario_no_grupo_topografia"`
		Avisos       []aviso.Aviso `json:"avisos"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
