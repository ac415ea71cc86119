package echoapi

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/aviso"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/emailconfig"
	"github.com/trezcool/janus/core/polo"
	"github.com/trezcool/janus/core/projetista"
	"github.com/trezcool/janus/core/user"
)

const unassignedFilter = "nao_atribuido"

type adminApi struct {
	chaves       *chave.Service
	projetistas  *projetista.Service
	polos        *polo.Service
	avisos       *aviso.Service
	emailConfigs *emailconfig.Service
	users        *user.Service
	sessions     core.SessionStore
	validate     *validator.Validate
}

// registerAdminAPI mounts the admin console on g, which is already restricted to staff.
func registerAdminAPI(g *echo.Group, deps *Deps) {
	api := adminApi{
		chaves:       deps.ChaveSvc,
		projetistas:  deps.ProjetistaSvc,
		polos:        deps.PoloSvc,
		avisos:       deps.AvisoSvc,
		emailConfigs: deps.EmailConfigSvc,
		users:        deps.UserSvc,
		sessions:     deps.Sessions,
		validate:     deps.Validate,
	}

	cg := g.Group("/chaves")
	cg.GET("", api.queryChaves)
	cg.POST("", api.createChave)
	cg.POST("/exportar", api.exportChaves)
	cg.POST("/atribuir-projetista", api.selectChaves)
	cg.GET("/:id", api.retrieveChave)
	cg.PUT("/:id", api.updateChave)
	cg.DELETE("/:id", api.destroyChave)

	pg := g.Group("/projetistas")
	pg.GET("", api.queryProjetistas)
	pg.POST("", api.createProjetista)
	pg.GET("/:id", api.retrieveProjetista)
	pg.PUT("/:id", api.updateProjetista)
	pg.DELETE("/:id", api.destroyProjetista)

	plg := g.Group("/polos")
	plg.GET("", api.queryPolos)
	plg.POST("", api.createPolo)
	plg.GET("/:id", api.retrievePolo)
	plg.PUT("/:id", api.updatePolo)
	plg.DELETE("/:id", api.destroyPolo)

	ag := g.Group("/avisos")
	ag.GET("", api.queryAvisos)
	ag.POST("", api.createAviso)
	ag.GET("/:id", api.retrieveAviso)
	ag.PUT("/:id", api.updateAviso)
	ag.DELETE("/:id", api.destroyAviso)

	dg := g.Group("/destinatarios")
	dg.GET("", api.queryEmailConfigs)
	dg.POST("", api.createEmailConfig)
	dg.GET("/:id", api.retrieveEmailConfig)
	dg.PUT("/:id", api.updateEmailConfig)
	dg.DELETE("/:id", api.destroyEmailConfig)

	ug := g.Group("/usuarios", superuserMiddleware())
	ug.GET("", api.queryUsers)
	ug.GET("/groups", api.queryGroups)
	ug.POST("", api.createUser)
	ug.GET("/:id", api.retrieveUser)
	ug.PUT("/:id", api.updateUser)
	ug.DELETE("/:id", api.destroyUser)
}

// Chaves

func (api *adminApi) queryChaves(ctx echo.Context) error {
	filter := chave.QueryFilter{Search: ctx.QueryParam("q")}
	switch p := ctx.QueryParam("projetista"); p {
	case "":
	case unassignedFilter:
		filter.SemProjetista = true
	default:
		id, err := strconv.Atoi(p)
		if err != nil {
			return core.NewFieldError("projetista", "Selecione uma escolha válida.")
		}
		filter.ProjetistaID = id
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	page, err := api.chaves.AdminList(ctx.Request().Context(), filter, ordering.Orderings, ctx.QueryParam("page"))
	if err != nil {
		return errors.Wrap(err, "listing chaves")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *adminApi) getChave(ctx echo.Context) (chave.Chave, error) {
	id, err := paramID(ctx)
	if err != nil {
		return chave.Chave{}, err
	}
	chv, err := api.chaves.GetByID(ctx.Request().Context(), id)
	return chv, errors.Wrap(err, "finding chave by ID")
}

func (api *adminApi) createChave(ctx echo.Context) error {
	var data chave.ChaveData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChaveData")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.chaves); err != nil {
		return err
	}

	chv, err := api.chaves.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating chave")
	}
	return ctx.JSON(http.StatusCreated, flash(chv, core.LevelSuccess, core.CreatedMessage(chave.ModelName, chv)))
}

func (api *adminApi) retrieveChave(ctx echo.Context) error {
	chv, err := api.getChave(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, chv)
}

func (api *adminApi) updateChave(ctx echo.Context) error {
	chv, err := api.getChave(ctx)
	if err != nil {
		return err
	}
	var data chave.ChaveData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChaveData")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.chaves, chv.ID); err != nil {
		return err
	}

	chv, err = api.chaves.AdminUpdate(reqCtx, chv, data)
	if err != nil {
		return errors.Wrap(err, "updating chave")
	}
	return ctx.JSON(http.StatusOK, flash(chv, core.LevelSuccess, core.UpdatedMessage(chave.ModelName, chv)))
}

func (api *adminApi) destroyChave(ctx echo.Context) error {
	chv, err := api.getChave(ctx)
	if err != nil {
		return err
	}
	if err := api.chaves.Delete(ctx.Request().Context(), chv.ID); err != nil {
		return errors.Wrap(err, "deleting chave")
	}
	return ctx.JSON(http.StatusOK, flash(nil, core.LevelSuccess, core.DeletedMessage(chave.ModelName)))
}

func (api *adminApi) exportChaves(ctx echo.Context) error {
	var data IDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}
	var buf bytes.Buffer
	if err := api.chaves.ExportSelection(ctx.Request().Context(), &buf, data.IDs); err != nil {
		return errors.Wrap(err, "exporting chaves")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+chave.ExportFilename+`"`)
	return ctx.Blob(http.StatusOK, chave.ExportContentType, buf.Bytes())
}

// selectChaves keeps the selection in the session for the bulk assignment page.
func (api *adminApi) selectChaves(ctx echo.Context) error {
	sid, err := sessionID(ctx)
	if err != nil {
		return err
	}
	var data IDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}
	if data.IDs == nil {
		data.IDs = []int{}
	}
	if err := core.SetSessionJSON(ctx.Request().Context(), api.sessions, sid, sessionChaveIDs, data.IDs); err != nil {
		return errors.Wrap(err, "storing selected chaves")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"redirect": basePath + "/atribuir-projetista"})
}
